package notifications

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/eventdesk-backend/pkg/config"
	"github.com/angelmondragon/eventdesk-backend/pkg/db"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox/payloads"
)

func newNotifier(t *testing.T, enabled bool) (*OutboxNotifier, *db.Client) {
	t.Helper()
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc := outbox.NewService(outbox.NewRepository(client.DB()), logg)
	n, err := NewOutboxNotifier(client, svc, config.EmailConfig{FromAddress: "tickets@eventdesk.test"}, enabled, logg)
	require.NoError(t, err)
	return n, client
}

func queuedEmails(t *testing.T, client *db.Client) []payloads.EmailRequestedEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Where("event_type = ?", enums.EventNotificationEmailRequest).Find(&rows).Error)
	out := make([]payloads.EmailRequestedEvent, 0, len(rows))
	for _, row := range rows {
		var envelope outbox.PayloadEnvelope
		require.NoError(t, json.Unmarshal(row.Payload, &envelope))
		var email payloads.EmailRequestedEvent
		require.NoError(t, json.Unmarshal(envelope.Data, &email))
		out = append(out, email)
	}
	return out
}

func TestSendCancellationQueuesEmail(t *testing.T) {
	n, client := newNotifier(t, true)
	date := time.Date(2026, time.December, 12, 19, 0, 0, 0, time.UTC)

	err := n.SendCancellation(context.Background(), CancellationEmail{
		EventID:      uuid.New(),
		To:           "alex@example.com",
		AttendeeName: "Alex",
		EventTitle:   "Winter Gala",
		EventDate:    &date,
		VenueName:    "Massey Hall",
		City:         "Toronto",
		TierNames:    "GA, VIP",
		Reason:       "venue flooded",
		RefundAmount: decimal.RequireFromString("1250.5"),
		Currency:     enums.CurrencyCAD,
	})
	require.NoError(t, err)

	emails := queuedEmails(t, client)
	require.Len(t, emails, 1)
	email := emails[0]
	assert.Equal(t, enums.EmailTemplateTicketCancelled, email.Template)
	assert.Equal(t, "Ticket cancelled — Winter Gala", email.Subject)
	assert.Equal(t, "tickets@eventdesk.test", email.From)
	assert.Equal(t, "CA$1,250.50", email.Data["refund_amount"])
	assert.Equal(t, "Saturday, December 12, 2026", email.Data["event_date"])
	assert.Equal(t, "Massey Hall, Toronto", email.Data["venue"])
	assert.Equal(t, "GA, VIP", email.Data["tier_names"])
	assert.Equal(t, true, email.Data["refunded"])
}

func TestSendTicketsQueuesEmail(t *testing.T) {
	n, client := newNotifier(t, true)

	err := n.SendTickets(context.Background(), TicketEmail{
		EventID:    uuid.New(),
		To:         "sam@example.com",
		EventTitle: "Winter Gala",
		Tickets:    []TicketSummary{{TicketID: uuid.New(), TierName: "GA", QRCodeSecret: "abc"}},
	})
	require.NoError(t, err)

	emails := queuedEmails(t, client)
	require.Len(t, emails, 1)
	assert.Equal(t, "Your tickets for Winter Gala", emails[0].Subject)
	assert.Equal(t, "Date TBA", emails[0].Data["event_date"])

	err = n.SendTickets(context.Background(), TicketEmail{To: "sam@example.com"})
	assert.Error(t, err)
}

func TestDisabledNotifierSkipsQueue(t *testing.T) {
	n, client := newNotifier(t, false)

	require.NoError(t, n.SendCancellation(context.Background(), CancellationEmail{
		EventID:    uuid.New(),
		To:         "alex@example.com",
		EventTitle: "Winter Gala",
	}))
	assert.Empty(t, queuedEmails(t, client))
}

func TestSendCancellationRequiresRecipient(t *testing.T) {
	n, _ := newNotifier(t, true)
	assert.Error(t, n.SendCancellation(context.Background(), CancellationEmail{EventTitle: "x"}))
}
