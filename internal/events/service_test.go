package events_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/eventdesk-backend/internal/access"
	"github.com/angelmondragon/eventdesk-backend/internal/events"
	"github.com/angelmondragon/eventdesk-backend/internal/inventory"
	"github.com/angelmondragon/eventdesk-backend/internal/ledger"
	"github.com/angelmondragon/eventdesk-backend/internal/orders"
	"github.com/angelmondragon/eventdesk-backend/internal/organizers"
	"github.com/angelmondragon/eventdesk-backend/internal/refunds"
	"github.com/angelmondragon/eventdesk-backend/internal/refunds/refundstest"
	"github.com/angelmondragon/eventdesk-backend/internal/tickets"
	"github.com/angelmondragon/eventdesk-backend/pkg/db"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
	"github.com/angelmondragon/eventdesk-backend/pkg/metrics"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox"
	"github.com/angelmondragon/eventdesk-backend/pkg/stripe"
)

type harness struct {
	client    *db.Client
	fx        *dbtest.Fixtures
	svc       events.Service
	refunds   refunds.Service
	processor *refundstest.Processor
	notifier  *refundstest.Notifier
	guards    *refundstest.GuardStore
	org       *models.Organizer
	actor     access.Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	inv := inventory.NewLedger(metrics.NewInventoryMetrics(reg))
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()))
	require.NoError(t, err)
	orgSvc, err := organizers.NewService(organizers.NewRepository(client.DB()))
	require.NoError(t, err)

	h := &harness{
		client:    client,
		fx:        dbtest.NewFixtures(t, client.DB()),
		processor: &refundstest.Processor{},
		notifier:  &refundstest.Notifier{},
		guards:    refundstest.NewGuardStore(),
	}
	guard := refunds.NewGuard(h.guards, 0, logg)
	h.svc, err = events.NewService(events.ServiceParams{
		TransactionRunner: client,
		Repo:              events.NewRepository(client.DB()),
		Tickets:           tickets.NewRepository(client.DB(), inv),
		Orders:            orders.NewRepository(client.DB()),
		Organizers:        orgSvc,
		Inventory:         inv,
		Ledger:            ledgerSvc,
		Outbox:            outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Processor:         h.processor,
		Guard:             guard,
		Notifier:          h.notifier,
		Metrics:           metrics.NewRefundMetrics(reg),
		Logger:            logg,
	})
	require.NoError(t, err)
	h.refunds, err = refunds.NewService(refunds.ServiceParams{
		TransactionRunner: client,
		Tickets:           tickets.NewRepository(client.DB(), inv),
		Orders:            orders.NewRepository(client.DB()),
		Events:            events.NewRepository(client.DB()),
		Inventory:         inv,
		Ledger:            ledgerSvc,
		Outbox:            outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Processor:         h.processor,
		Guard:             guard,
		Notifier:          h.notifier,
		Logger:            logg,
	})
	require.NoError(t, err)

	h.org = h.fx.Organizer("owner")
	h.actor = access.Actor{UserID: h.org.ID, Subject: h.org.AuthSubject, OrganizerID: h.org.ID}
	return h
}

func assertCode(t *testing.T, err error, code pkgerrors.Code, message string) {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
	if message != "" {
		assert.Equal(t, message, typed.Message())
	}
}

func TestCreateEventDefaults(t *testing.T) {
	h := newHarness(t)
	start := time.Date(2026, 12, 12, 19, 0, 0, 0, time.UTC)

	dto, err := h.svc.Create(context.Background(), events.CreateEventInput{
		Actor:  h.actor,
		Fields: events.EventFields{Title: "Winter Gala", VenueName: "Massey Hall"},
		Occurrences: []events.OccurrenceInput{
			{StartsAt: start, EndsAt: start.Add(3 * time.Hour)},
		},
		Tiers: []events.TierInput{
			{Name: "GA", Price: decimal.RequireFromString("25"), InitialQuantity: 100},
			{Name: "VIP", Price: decimal.RequireFromString("80"), InitialQuantity: 20, MaxPerOrder: 4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusDraft, dto.Status)
	assert.Equal(t, "winter-gala", dto.Slug)
	assert.Equal(t, enums.CurrencyCAD, dto.Currency)
	assert.Equal(t, enums.LocationTypePhysical, dto.LocationType)
	assert.Equal(t, 120, dto.TotalCapacity)

	stored := h.fx.ReloadEvent(dto.ID)
	assert.Equal(t, 120, stored.TotalCapacity)
	require.Len(t, dto.Tiers, 2)
	ga := h.fx.ReloadTier(dto.Tiers[0].ID)
	assert.Equal(t, 100, ga.RemainingQuantity)
	assert.Equal(t, 10, ga.MaxPerOrder)
	assert.Equal(t, enums.CurrencyCAD, ga.Currency)
	assert.Equal(t, 4, h.fx.ReloadTier(dto.Tiers[1].ID).MaxPerOrder)
	assert.Equal(t, int64(1), h.fx.Count(&models.EventOccurrence{}, "event_id = ?", dto.ID))
}

func TestCreateEventRequiresStripeOnboarding(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.DB().Exec("UPDATE organizers SET stripe_onboarding_completed = ? WHERE id = ?", false, h.org.ID).Error)

	_, err := h.svc.Create(context.Background(), events.CreateEventInput{
		Actor:  h.actor,
		Fields: events.EventFields{Title: "Gala"},
	})
	assertCode(t, err, pkgerrors.CodeForbidden, "stripe account must be connected before creating events")
	assert.Zero(t, h.fx.Count(&models.Event{}, ""))
}

func TestUpdateEventBlocksTierReplacementAfterIssuance(t *testing.T) {
	h := newHarness(t)
	event := h.fx.Event(h.org.ID, enums.EventStatusPublished)
	tier := h.fx.Tier(event.ID, "GA", "25.00", 10, 9)
	order := h.fx.Order(event.ID, "pi_1")
	h.fx.Ticket(order, tier, "a@example.com", enums.TicketStatusCancelled)

	_, err := h.svc.Update(context.Background(), events.UpdateEventInput{
		Actor:   h.actor,
		EventID: event.ID,
		Fields:  events.EventFields{Title: "Renamed"},
		Tiers:   []events.TierInput{{Name: "New", InitialQuantity: 5}},
	})
	assertCode(t, err, pkgerrors.CodeStateConflict, "ticket tiers cannot be replaced after tickets have been issued")

	dto, err := h.svc.Update(context.Background(), events.UpdateEventInput{
		Actor:   h.actor,
		EventID: event.ID,
		Fields:  events.EventFields{Title: "Renamed", City: "Montreal"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", dto.Title)
	require.NotNil(t, dto.City)
	assert.Equal(t, "Montreal", *dto.City)
	require.Len(t, dto.Tiers, 1)
	assert.Equal(t, tier.ID, dto.Tiers[0].ID)
}

func TestUpdateEventReplacesTiersBeforeIssuance(t *testing.T) {
	h := newHarness(t)
	event := h.fx.Event(h.org.ID, enums.EventStatusDraft)
	h.fx.Tier(event.ID, "GA", "25.00", 10, 10)

	dto, err := h.svc.Update(context.Background(), events.UpdateEventInput{
		Actor:   h.actor,
		EventID: event.ID,
		Fields:  events.EventFields{Title: "Gala"},
		Tiers: []events.TierInput{
			{Name: "Early", InitialQuantity: 30},
			{Name: "Late", InitialQuantity: 15},
		},
	})
	require.NoError(t, err)
	assert.Len(t, dto.Tiers, 2)
	assert.Equal(t, 45, dto.TotalCapacity)
}

func TestPublishPreconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	noTiers := h.fx.Event(h.org.ID, enums.EventStatusDraft)
	_, err := h.svc.Publish(ctx, h.actor, noTiers.ID)
	assertCode(t, err, pkgerrors.CodeValidation, "event must have at least one ticket tier")

	noDates := h.fx.Event(h.org.ID, enums.EventStatusDraft)
	h.fx.Tier(noDates.ID, "GA", "10.00", 5, 5)
	require.NoError(t, h.client.DB().Where("event_id = ?", noDates.ID).Delete(&models.EventOccurrence{}).Error)
	_, err = h.svc.Publish(ctx, h.actor, noDates.ID)
	assertCode(t, err, pkgerrors.CodeValidation, "event must have at least one event date")

	published := h.fx.Event(h.org.ID, enums.EventStatusPublished)
	_, err = h.svc.Publish(ctx, h.actor, published.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict, `cannot publish event with status "published"`)

	ready := h.fx.Event(h.org.ID, enums.EventStatusDraft)
	h.fx.Tier(ready.ID, "GA", "10.00", 5, 5)
	res, err := h.svc.Publish(ctx, h.actor, ready.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusPublished, res.Status)
	assert.Equal(t, enums.EventStatusPublished, h.fx.ReloadEvent(ready.ID).Status)
	assert.Equal(t, int64(1), h.fx.Count(&models.OutboxEvent{}, "event_type = ? AND aggregate_id = ?", enums.EventEventPublished, ready.ID))
}

func TestUnpublishAndCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	event := h.fx.Event(h.org.ID, enums.EventStatusPublished)

	res, err := h.svc.Unpublish(ctx, h.actor, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusDraft, res.Status)

	_, err = h.svc.Unpublish(ctx, h.actor, event.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict, `cannot unpublish event with status "draft"`)

	res, err = h.svc.Cancel(ctx, h.actor, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusCancelled, res.Status)
	assert.NotNil(t, h.fx.ReloadEvent(event.ID).CancelledAt)

	_, err = h.svc.Cancel(ctx, h.actor, event.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict, "event is already cancelled")

	completed := h.fx.Event(h.org.ID, enums.EventStatusCompleted)
	_, err = h.svc.Cancel(ctx, h.actor, completed.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict, `cannot cancel event with status "completed"`)
}

func TestLifecycleHidesOtherOrganizersEvents(t *testing.T) {
	h := newHarness(t)
	other := h.fx.Organizer("other")
	event := h.fx.Event(other.ID, enums.EventStatusDraft)

	_, err := h.svc.Get(context.Background(), h.actor, event.ID)
	assertCode(t, err, pkgerrors.CodeNotFound, "event not found")
	_, err = h.svc.Cancel(context.Background(), h.actor, event.ID)
	assertCode(t, err, pkgerrors.CodeNotFound, "event not found")
	assert.Equal(t, enums.EventStatusDraft, h.fx.ReloadEvent(event.ID).Status)
}

func TestAdminActingAsOperatesOnOrganizerEvents(t *testing.T) {
	h := newHarness(t)
	admin := h.fx.Organizer("admin")
	event := h.fx.Event(h.org.ID, enums.EventStatusPublished)

	actor := access.Actor{UserID: admin.ID, Subject: admin.AuthSubject, OrganizerID: h.org.ID, IsAdmin: true, ActingAs: true}
	res, err := h.svc.Unpublish(context.Background(), actor, event.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EventStatusDraft, res.Status)
}

func TestDeleteWithoutTicketsRemovesEvent(t *testing.T) {
	h := newHarness(t)
	event := h.fx.Event(h.org.ID, enums.EventStatusPublished)
	h.fx.Tier(event.ID, "GA", "10.00", 5, 5)

	res, err := h.svc.Delete(context.Background(), events.DeleteEventInput{Actor: h.actor, EventID: event.ID})
	require.NoError(t, err)
	assert.Equal(t, events.DeleteModeDeleted, res.Mode)
	assert.Zero(t, h.fx.Count(&models.Event{}, "id = ?", event.ID))
	assert.Zero(t, h.fx.Count(&models.TicketTier{}, "event_id = ?", event.ID))
	assert.Zero(t, h.fx.Count(&models.EventOccurrence{}, "event_id = ?", event.ID))
	assert.Zero(t, h.processor.CallCount())
	assert.Equal(t, int64(1), h.fx.Count(&models.OutboxEvent{}, "event_type = ?", enums.EventEventDeleted))
}

func TestDeleteWithTicketsRequiresReason(t *testing.T) {
	h := newHarness(t)
	event := h.fx.Event(h.org.ID, enums.EventStatusPublished)
	tier := h.fx.Tier(event.ID, "GA", "10.00", 5, 4)
	order := h.fx.Order(event.ID, "pi_1")
	ticket := h.fx.Ticket(order, tier, "a@example.com", enums.TicketStatusValid)

	_, err := h.svc.Delete(context.Background(), events.DeleteEventInput{Actor: h.actor, EventID: event.ID, Reason: "  "})
	assertCode(t, err, pkgerrors.CodeValidation, "a cancellation reason is required when tickets have been issued")
	assert.Equal(t, enums.TicketStatusValid, h.fx.ReloadTicket(ticket.ID).Status)
	assert.Equal(t, enums.EventStatusPublished, h.fx.ReloadEvent(event.ID).Status)
	assert.Zero(t, h.processor.CallCount())
}

func TestDeleteCascadeRefundsPerOrder(t *testing.T) {
	h := newHarness(t)
	event := h.fx.Event(h.org.ID, enums.EventStatusPublished)
	ga := h.fx.Tier(event.ID, "GA", "25.00", 100, 95)
	vip := h.fx.Tier(event.ID, "VIP", "80.00", 10, 9)

	first := h.fx.Order(event.ID, "pi_first")
	h.fx.Ticket(first, ga, "alex@example.com", enums.TicketStatusValid)
	h.fx.Ticket(first, vip, "alex@example.com", enums.TicketStatusValid)
	second := h.fx.Order(event.ID, "pi_second")
	h.fx.Ticket(second, ga, "sam@example.com", enums.TicketStatusValid)
	h.fx.Ticket(second, ga, "sam@example.com", enums.TicketStatusValid)
	comp := h.fx.Order(event.ID, "")
	h.fx.Ticket(comp, ga, "guest@example.com", enums.TicketStatusValid)
	used := h.fx.Ticket(first, ga, "early@example.com", enums.TicketStatusUsed)

	res, err := h.svc.Delete(context.Background(), events.DeleteEventInput{
		Actor:         h.actor,
		EventID:       event.ID,
		Reason:        "venue flooded",
		ReleaseToPool: true,
	})
	require.NoError(t, err)
	assert.Equal(t, events.DeleteModeCancelled, res.Mode)
	assert.Equal(t, 5, res.CancelledTickets)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, res.RefundedOrders)
	assert.Empty(t, res.FailedRefunds)

	require.Len(t, h.processor.Calls, 2, "one processor refund per paid order")
	amounts := map[string]int64{}
	for _, call := range h.processor.Calls {
		amounts[call.PaymentReference] = call.AmountMinor
		assert.Contains(t, call.IdempotencyKey, "event-cancel:"+event.ID.String())
	}
	assert.Equal(t, int64(10500), amounts["pi_first"])
	assert.Equal(t, int64(5000), amounts["pi_second"])

	assert.Zero(t, h.fx.Count(&models.Ticket{}, "event_id = ? AND status = ?", event.ID, enums.TicketStatusValid))
	assert.Equal(t, int64(5), h.fx.Count(&models.Ticket{}, "event_id = ? AND status = ?", event.ID, enums.TicketStatusRefunded))
	assert.Equal(t, enums.TicketStatusUsed, h.fx.ReloadTicket(used.ID).Status)
	assert.Equal(t, 99, h.fx.ReloadTier(ga.ID).RemainingQuantity)
	assert.Equal(t, 10, h.fx.ReloadTier(vip.ID).RemainingQuantity)
	assert.Equal(t, 1, h.fx.ReloadEvent(event.ID).TotalTicketsSold)

	stored := h.fx.ReloadEvent(event.ID)
	assert.Equal(t, enums.EventStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancellationReason)
	assert.Equal(t, "venue flooded", *stored.CancellationReason)
	assert.Equal(t, enums.OrderStatusRefunded, h.fx.ReloadOrder(first.ID).Status)
	assert.Equal(t, enums.OrderStatusCancelled, h.fx.ReloadOrder(comp.ID).Status)

	require.Len(t, h.notifier.Cancellations, 3)
	byEmail := map[string]string{}
	for _, email := range h.notifier.Cancellations {
		byEmail[email.To] = email.RefundAmount.String() + "|" + email.TierNames
	}
	assert.Equal(t, "105|GA, VIP", byEmail["alex@example.com"])
	assert.Equal(t, "50|GA, GA", byEmail["sam@example.com"])
	assert.Equal(t, "0|GA", byEmail["guest@example.com"])
	assert.Equal(t, 3, res.EmailsSent)
}

func TestDeleteCascadeToleratesProcessorFailures(t *testing.T) {
	h := newHarness(t)
	h.processor.FailFor = map[string]error{"pi_bad": errors.New("charge_disputed")}
	event := h.fx.Event(h.org.ID, enums.EventStatusPublished)
	tier := h.fx.Tier(event.ID, "GA", "20.00", 10, 8)
	good := h.fx.Order(event.ID, "pi_good")
	h.fx.Ticket(good, tier, "good@example.com", enums.TicketStatusValid)
	bad := h.fx.Order(event.ID, "pi_bad")
	h.fx.Ticket(bad, tier, "bad@example.com", enums.TicketStatusValid)

	res, err := h.svc.Delete(context.Background(), events.DeleteEventInput{
		Actor:   h.actor,
		EventID: event.ID,
		Reason:  "artist cancelled",
	})
	require.NoError(t, err)
	assert.Equal(t, events.DeleteModeCancelled, res.Mode)
	assert.Equal(t, []uuid.UUID{good.ID}, res.RefundedOrders)
	require.Len(t, res.FailedRefunds, 1)
	assert.Equal(t, bad.ID, res.FailedRefunds[0].OrderID)
	assert.Equal(t, int64(2000), res.FailedRefunds[0].AmountMinor)
	assert.Equal(t, "charge_disputed", res.FailedRefunds[0].Error)

	assert.Equal(t, int64(2), h.fx.Count(&models.Ticket{}, "event_id = ? AND status = ?", event.ID, enums.TicketStatusCancelled))
	assert.Equal(t, 8, h.fx.ReloadTier(tier.ID).RemainingQuantity, "seats stay sold without release")
	assert.Equal(t, enums.EventStatusCancelled, h.fx.ReloadEvent(event.ID).Status)
	assert.Equal(t, int64(1), h.fx.Count(&models.LedgerEvent{}, "type = ? AND order_id = ?", enums.LedgerEventTypeRefundFailed, bad.ID))
	assert.Equal(t, int64(1), h.fx.Count(&models.LedgerEvent{}, "type = ?", enums.LedgerEventTypeEventCancelled))
	assert.Equal(t, enums.OrderStatusCompleted, h.fx.ReloadOrder(bad.ID).Status)
}

func TestDeleteCascadeBlocksConcurrentTicketRefund(t *testing.T) {
	h := newHarness(t)
	event := h.fx.Event(h.org.ID, enums.EventStatusPublished)
	tier := h.fx.Tier(event.ID, "GA", "25.00", 10, 8)
	order := h.fx.Order(event.ID, "pi_pair")
	first := h.fx.Ticket(order, tier, "a@example.com", enums.TicketStatusValid)
	h.fx.Ticket(order, tier, "b@example.com", enums.TicketStatusValid)

	var ticketErr error
	h.processor.During = func(ctx context.Context, _ stripe.RefundRequest) {
		_, ticketErr = h.refunds.RefundTicket(ctx, refunds.RefundTicketInput{Actor: h.actor, TicketID: first.ID, Reason: "duplicate"})
	}

	res, err := h.svc.Delete(context.Background(), events.DeleteEventInput{Actor: h.actor, EventID: event.ID, Reason: "venue flooded"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{order.ID}, res.RefundedOrders)
	assert.True(t, pkgerrors.IsCode(ticketErr, pkgerrors.CodeConflict), "got %v", ticketErr)

	require.Equal(t, 1, h.processor.CallCount())
	assert.Equal(t, int64(5000), h.processor.RefundedMinor())
	assert.Equal(t, int64(2), h.fx.Count(&models.Ticket{}, "event_id = ? AND status = ?", event.ID, enums.TicketStatusCancelled))
	assert.Zero(t, h.guards.Len())
}

func TestDeleteCascadeWaitsForInFlightOrderRefund(t *testing.T) {
	h := newHarness(t)
	event := h.fx.Event(h.org.ID, enums.EventStatusPublished)
	tier := h.fx.Tier(event.ID, "GA", "25.00", 10, 9)
	order := h.fx.Order(event.ID, "pi_busy")
	ticket := h.fx.Ticket(order, tier, "a@example.com", enums.TicketStatusValid)
	held := h.guards.GuardKey(refunds.GuardScopeOrder, order.ID.String())
	h.guards.Values[held] = "another-request"

	_, err := h.svc.Delete(context.Background(), events.DeleteEventInput{Actor: h.actor, EventID: event.ID, Reason: "venue flooded"})
	assertCode(t, err, pkgerrors.CodeConflict, "")

	assert.Zero(t, h.processor.CallCount())
	assert.Equal(t, enums.TicketStatusValid, h.fx.ReloadTicket(ticket.ID).Status)
	assert.Equal(t, enums.EventStatusPublished, h.fx.ReloadEvent(event.ID).Status)
	assert.Equal(t, "another-request", h.guards.Values[held])
	assert.Equal(t, 1, h.guards.Len(), "no claim outlives the rejected cascade")
}

func TestDeleteCascadeWithOnlyHistoricTickets(t *testing.T) {
	h := newHarness(t)
	event := h.fx.Event(h.org.ID, enums.EventStatusDraft)
	tier := h.fx.Tier(event.ID, "GA", "20.00", 10, 10)
	order := h.fx.Order(event.ID, "pi_1")
	h.fx.Ticket(order, tier, "a@example.com", enums.TicketStatusRefunded)

	res, err := h.svc.Delete(context.Background(), events.DeleteEventInput{Actor: h.actor, EventID: event.ID, Reason: "closing"})
	require.NoError(t, err)
	assert.Equal(t, events.DeleteModeCancelled, res.Mode)
	assert.Zero(t, res.CancelledTickets)
	assert.Zero(t, h.processor.CallCount())
	assert.Empty(t, h.notifier.Cancellations)
	assert.Equal(t, enums.EventStatusCancelled, h.fx.ReloadEvent(event.ID).Status)
}

func TestCompletePastEvents(t *testing.T) {
	h := newHarness(t)
	past := h.fx.Event(h.org.ID, enums.EventStatusPublished)
	require.NoError(t, h.client.DB().Exec(
		"UPDATE event_occurrences SET starts_at = ?, ends_at = ? WHERE event_id = ?",
		time.Now().UTC().Add(-48*time.Hour), time.Now().UTC().Add(-45*time.Hour), past.ID,
	).Error)
	upcoming := h.fx.Event(h.org.ID, enums.EventStatusPublished)
	draft := h.fx.Event(h.org.ID, enums.EventStatusDraft)
	require.NoError(t, h.client.DB().Exec(
		"UPDATE event_occurrences SET ends_at = ? WHERE event_id = ?", time.Now().UTC().Add(-time.Hour), draft.ID,
	).Error)

	n, err := h.svc.CompletePastEvents(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, enums.EventStatusCompleted, h.fx.ReloadEvent(past.ID).Status)
	assert.Equal(t, enums.EventStatusPublished, h.fx.ReloadEvent(upcoming.ID).Status)
	assert.Equal(t, enums.EventStatusDraft, h.fx.ReloadEvent(draft.ID).Status)
	assert.Equal(t, int64(1), h.fx.Count(&models.OutboxEvent{}, "event_type = ?", enums.EventEventCompleted))
}
