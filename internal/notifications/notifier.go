// Package notifications queues attendee emails. Rows land in the outbox and the
// publisher routes them to the mail delivery service.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/pkg/config"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
	"github.com/angelmondragon/eventdesk-backend/pkg/money"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox/payloads"
)

const eventDateLayout = "Monday, January 2, 2006"

// Notifier sends attendee emails.
type Notifier interface {
	SendCancellation(ctx context.Context, email CancellationEmail) error
	SendTickets(ctx context.Context, email TicketEmail) error
}

// CancellationEmail tells one attendee their tickets were cancelled. TierNames
// lists every tier the attendee lost, and RefundAmount is their share of the refund.
type CancellationEmail struct {
	EventID      uuid.UUID
	To           string
	AttendeeName string
	EventTitle   string
	EventDate    *time.Time
	VenueName    string
	City         string
	TierNames    string
	Reason       string
	RefundAmount decimal.Decimal
	Currency     enums.Currency
}

// TicketSummary is one ticket rendered into a delivery email.
type TicketSummary struct {
	TicketID     uuid.UUID `json:"ticket_id"`
	TierName     string    `json:"tier_name"`
	QRCodeSecret string    `json:"qr_code_secret"`
	AttendeeName string    `json:"attendee_name"`
}

// TicketEmail delivers issued tickets to an address.
type TicketEmail struct {
	EventID      uuid.UUID
	To           string
	AttendeeName string
	EventTitle   string
	EventDate    *time.Time
	VenueName    string
	City         string
	Tickets      []TicketSummary
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OutboxNotifier writes notification.email_requested rows in their own
// transaction, so a failed email never rolls back the change that caused it.
type OutboxNotifier struct {
	tx      txRunner
	outbox  outboxPublisher
	from    string
	enabled bool
	logg    *logger.Logger
}

func NewOutboxNotifier(tx txRunner, publisher outboxPublisher, cfg config.EmailConfig, enabled bool, logg *logger.Logger) (*OutboxNotifier, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &OutboxNotifier{
		tx:      tx,
		outbox:  publisher,
		from:    strings.TrimSpace(cfg.FromAddress),
		enabled: enabled,
		logg:    logg,
	}, nil
}

func (n *OutboxNotifier) SendCancellation(ctx context.Context, email CancellationEmail) error {
	if strings.TrimSpace(email.To) == "" {
		return fmt.Errorf("recipient required")
	}
	currency := enums.FirstCurrency(string(email.Currency))
	return n.queue(ctx, email.EventID, payloads.EmailRequestedEvent{
		Template: enums.EmailTemplateTicketCancelled,
		To:       email.To,
		Subject:  CancellationSubject(email.EventTitle),
		From:     n.from,
		Data: map[string]any{
			"attendee_name": email.AttendeeName,
			"event_title":   email.EventTitle,
			"event_date":    FormatEventDate(email.EventDate),
			"venue":         venueLine(email.VenueName, email.City),
			"tier_names":    email.TierNames,
			"reason":        email.Reason,
			"refund_amount": money.Format(email.RefundAmount, currency),
			"refunded":      email.RefundAmount.IsPositive(),
			"currency":      currency,
		},
	})
}

func (n *OutboxNotifier) SendTickets(ctx context.Context, email TicketEmail) error {
	if strings.TrimSpace(email.To) == "" {
		return fmt.Errorf("recipient required")
	}
	if len(email.Tickets) == 0 {
		return fmt.Errorf("at least one ticket required")
	}
	return n.queue(ctx, email.EventID, payloads.EmailRequestedEvent{
		Template: enums.EmailTemplateTickets,
		To:       email.To,
		Subject:  TicketsSubject(email.EventTitle),
		From:     n.from,
		Data: map[string]any{
			"attendee_name": email.AttendeeName,
			"event_title":   email.EventTitle,
			"event_date":    FormatEventDate(email.EventDate),
			"venue":         venueLine(email.VenueName, email.City),
			"tickets":       email.Tickets,
		},
	})
}

func (n *OutboxNotifier) queue(ctx context.Context, eventID uuid.UUID, payload payloads.EmailRequestedEvent) error {
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"template": payload.Template,
		"event_id": eventID.String(),
	})
	if !n.enabled {
		n.logg.Info(logCtx, "email delivery disabled, skipping")
		return nil
	}
	aggregateID := eventID
	if aggregateID == uuid.Nil {
		aggregateID = uuid.New()
	}
	err := n.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return n.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationEmailRequest,
			AggregateType: enums.AggregateNotification,
			AggregateID:   aggregateID,
			Data:          payload,
		})
	})
	if err != nil {
		return fmt.Errorf("queue %s email: %w", payload.Template, err)
	}
	n.logg.Info(logCtx, "email queued")
	return nil
}

// CancellationSubject is the subject line of a cancellation email.
func CancellationSubject(eventTitle string) string {
	return "Ticket cancelled — " + eventTitle
}

func TicketsSubject(eventTitle string) string {
	return "Your tickets for " + eventTitle
}

// FormatEventDate renders the first occurrence date, or "Date TBA".
func FormatEventDate(at *time.Time) string {
	if at == nil || at.IsZero() {
		return "Date TBA"
	}
	return at.UTC().Format(eventDateLayout)
}

func venueLine(venue, city string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{venue, city} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
