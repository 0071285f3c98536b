// Package refunds reconciles processor refunds with ticket status and tier
// inventory. The processor is always called first; local state only changes
// after it accepted the refund.
package refunds

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/internal/access"
	"github.com/angelmondragon/eventdesk-backend/internal/ledger"
	"github.com/angelmondragon/eventdesk-backend/internal/notifications"
	"github.com/angelmondragon/eventdesk-backend/internal/orders"
	"github.com/angelmondragon/eventdesk-backend/internal/tickets"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
	"github.com/angelmondragon/eventdesk-backend/pkg/metrics"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/eventdesk-backend/pkg/stripe"
)

var errTicketsChanged = errors.New("tickets changed status during refund")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Processor issues refunds at the payment processor.
type Processor interface {
	CreateRefund(ctx context.Context, req stripe.RefundRequest) (stripe.Refund, error)
}

type inventoryReleaser interface {
	ReleaseUnits(ctx context.Context, tx *gorm.DB, tierID uuid.UUID, count int) error
	DecrementEventSold(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, count int) error
	ReleaseByTier(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, counts map[uuid.UUID]int) error
}

type eventReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FirstOccurrenceStart(ctx context.Context, eventID uuid.UUID) (*time.Time, error)
	FindTier(ctx context.Context, id uuid.UUID) (*models.TicketTier, error)
	FindTiersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TicketTier, error)
}

type ledgerRecorder interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input ledger.RecordLedgerEventInput) (*models.LedgerEvent, error)
}

// Service refunds single tickets and whole or partial orders.
type Service interface {
	RefundTicket(ctx context.Context, input RefundTicketInput) (*TicketRefundResult, error)
	RefundOrder(ctx context.Context, input RefundOrderInput) (*OrderRefundResult, error)
}

type RefundTicketInput struct {
	Actor         access.Actor
	TicketID      uuid.UUID
	Reason        string
	ReleaseToPool bool
}

type TicketRefundResult struct {
	RefundID    string             `json:"refund_id"`
	TicketID    uuid.UUID          `json:"ticket_id"`
	Status      enums.TicketStatus `json:"status"`
	AmountMinor int64              `json:"amount_minor"`
	Currency    enums.Currency     `json:"currency"`
}

// RefundOrderInput refunds every valid ticket on the order, or only TicketIDs when set.
type RefundOrderInput struct {
	Actor         access.Actor
	OrderID       uuid.UUID
	Reason        string
	ReleaseToPool bool
	TicketIDs     []uuid.UUID
}

type OrderRefundResult struct {
	RefundID      string            `json:"refund_id"`
	RefundedCount int               `json:"refunded_count"`
	TotalRefund   decimal.Decimal   `json:"total_refund"`
	AmountMinor   int64             `json:"amount_minor"`
	Currency      enums.Currency    `json:"currency"`
	OrderStatus   enums.OrderStatus `json:"order_status"`
}

type ServiceParams struct {
	TransactionRunner txRunner
	Tickets           tickets.Repository
	Orders            orders.Repository
	Events            eventReader
	Inventory         inventoryReleaser
	Ledger            ledgerRecorder
	Outbox            outboxPublisher
	Processor         Processor
	Guard             *Guard
	Notifier          notifications.Notifier
	Metrics           *metrics.RefundMetrics
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	tx        txRunner
	tickets   tickets.Repository
	orders    orders.Repository
	events    eventReader
	inventory inventoryReleaser
	ledger    ledgerRecorder
	outbox    outboxPublisher
	processor Processor
	guard     *Guard
	notifier  notifications.Notifier
	metrics   *metrics.RefundMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.TransactionRunner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case params.Tickets == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tickets repository required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	case params.Events == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "events repository required")
	case params.Inventory == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger required")
	case params.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	case params.Processor == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund processor required")
	case params.Notifier == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifier required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:        params.TransactionRunner,
		tickets:   params.Tickets,
		orders:    params.Orders,
		events:    params.Events,
		inventory: params.Inventory,
		ledger:    params.Ledger,
		outbox:    params.Outbox,
		processor: params.Processor,
		guard:     params.Guard,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) RefundTicket(ctx context.Context, input RefundTicketInput) (*TicketRefundResult, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a cancellation reason is required")
	}
	if input.TicketID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket id is required")
	}

	ticket, err := s.tickets.FindByID(ctx, input.TicketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket not found", "load ticket")
	}
	release, err := s.guard.Acquire(ctx, GuardScopeOrder, ticket.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the order guard; a concurrent refund may have settled it.
	ticket, err = s.tickets.FindByID(ctx, input.TicketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket not found", "load ticket")
	}
	if err := tickets.EnsureRefundable(ticket.Status); err != nil {
		return nil, err
	}

	event, err := s.events.FindByID(ctx, ticket.EventID)
	if err != nil {
		return nil, notFoundOr(err, "ticket not found", "load event")
	}
	if !input.Actor.Owns(event.OrganizerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
	}

	order, err := s.orders.FindByID(ctx, ticket.OrderID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil || !order.HasPayment() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no payment found for this ticket")
	}

	tier, err := s.events.FindTier(ctx, ticket.TierID)
	if err != nil {
		return nil, notFoundOr(err, "ticket tier not found", "load ticket tier")
	}

	lines, err := PriceTickets([]models.Ticket{*ticket}, []models.TicketTier{*tier}, order)
	if err != nil {
		return nil, err
	}
	line := lines[0]
	if line.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be greater than zero")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"ticket_id":    ticket.ID.String(),
		"order_id":     order.ID.String(),
		"event_id":     event.ID.String(),
		"organizer_id": input.Actor.OrganizerID.String(),
	})

	refund, err := s.callProcessor(logCtx, metrics.RefundKindTicket, stripe.RefundRequest{
		PaymentReference: *order.PaymentReference,
		AmountMinor:      line.AmountMinor,
		Currency:         line.Currency,
		IdempotencyKey:   TicketIdempotencyKey(ticket.ID),
		Metadata: map[string]string{
			"ticket_id": ticket.ID.String(),
			"order_id":  order.ID.String(),
			"event_id":  event.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	status := tickets.OutcomeFor(input.ReleaseToPool)
	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.tickets.WithTx(tx).TransitionFromValid(ctx, []uuid.UUID{ticket.ID}, status, reason, now)
		if err != nil {
			return err
		}
		if moved != 1 {
			return errTicketsChanged
		}
		if input.ReleaseToPool {
			if err := s.inventory.ReleaseUnits(ctx, tx, tier.ID, 1); err != nil {
				return err
			}
			if err := s.inventory.DecrementEventSold(ctx, tx, event.ID, 1); err != nil {
				return err
			}
		}
		orderStatus, err := s.settleOrderStatus(ctx, tx, order.ID, now)
		if err != nil {
			return err
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			EventID:     event.ID,
			OrderID:     &order.ID,
			TicketID:    &ticket.ID,
			ActorUserID: input.Actor.UserID,
			Type:        enums.LedgerEventTypeRefundIssued,
			AmountMinor: line.AmountMinor,
			Currency:    line.Currency,
			RefundID:    refund.ID,
			Metadata: map[string]any{
				"reason":           reason,
				"status":           status,
				"released_to_pool": input.ReleaseToPool,
				"order_status":     orderStatus,
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTicketRefunded,
			AggregateType: enums.AggregateTicket,
			AggregateID:   ticket.ID,
			Actor:         input.Actor.OutboxRef(),
			Data: payloads.TicketRefundedEvent{
				TicketID:       ticket.ID,
				OrderID:        order.ID,
				EventID:        event.ID,
				TierID:         tier.ID,
				RefundID:       refund.ID,
				AmountMinor:    line.AmountMinor,
				Currency:       line.Currency,
				Status:         status,
				ReleasedToPool: input.ReleaseToPool,
				Reason:         reason,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		s.metrics.Observe(metrics.RefundKindTicket, metrics.RefundOutcomeUnreconciled)
		s.logg.Error(s.logg.WithField(logCtx, "refund_id", refund.ID), "refund processed but local update failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund processed but failed to update ticket status").
			WithDetails(map[string]any{"refund_id": refund.ID, "ticket_id": ticket.ID})
	}

	s.metrics.Observe(metrics.RefundKindTicket, metrics.RefundOutcomeSucceeded)
	s.metrics.AddAmount(string(line.Currency), line.AmountMinor)
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"refund_id":        refund.ID,
		"amount_minor":     line.AmountMinor,
		"status":           status,
		"released_to_pool": input.ReleaseToPool,
	}), "ticket refunded")

	s.sendNotices(ctx, event, reason, line.Currency, GroupByAttendee(lines, nil))

	return &TicketRefundResult{
		RefundID:    refund.ID,
		TicketID:    ticket.ID,
		Status:      status,
		AmountMinor: line.AmountMinor,
		Currency:    line.Currency,
	}, nil
}

func (s *service) RefundOrder(ctx context.Context, input RefundOrderInput) (*OrderRefundResult, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a cancellation reason is required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	release, err := s.guard.Acquire(ctx, GuardScopeOrder, input.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "load order")
	}
	event, err := s.events.FindByID(ctx, order.EventID)
	if err != nil {
		return nil, notFoundOr(err, "order not found", "load event")
	}
	if !input.Actor.Owns(event.OrganizerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !order.HasPayment() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no payment found for this order")
	}

	onOrder, err := s.tickets.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order tickets")
	}
	selected, err := selectTickets(onOrder, input.TicketIDs)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no valid tickets to cancel in this order")
	}

	tiers, err := s.events.FindTiersByIDs(ctx, uniqueTierIDs(selected))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket tiers")
	}
	lines, err := PriceTickets(selected, tiers, order)
	if err != nil {
		return nil, err
	}
	totalDisplay, totalMinor := Totals(lines)
	if totalMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be greater than zero")
	}
	currency := lines[0].Currency
	ids := ticketIDs(lines)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"event_id":     event.ID.String(),
		"organizer_id": input.Actor.OrganizerID.String(),
		"ticket_count": len(ids),
	})

	refund, err := s.callProcessor(logCtx, metrics.RefundKindOrder, stripe.RefundRequest{
		PaymentReference: *order.PaymentReference,
		AmountMinor:      totalMinor,
		Currency:         currency,
		IdempotencyKey:   OrderIdempotencyKey(order.ID, ids),
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"event_id":     event.ID.String(),
			"ticket_count": decimal.NewFromInt(int64(len(ids))).String(),
		},
	})
	if err != nil {
		return nil, err
	}

	status := tickets.OutcomeFor(input.ReleaseToPool)
	now := s.now()
	var orderStatus enums.OrderStatus
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.tickets.WithTx(tx).TransitionFromValid(ctx, ids, status, reason, now)
		if err != nil {
			return err
		}
		if moved != int64(len(ids)) {
			return errTicketsChanged
		}
		if input.ReleaseToPool {
			if err := s.inventory.ReleaseByTier(ctx, tx, event.ID, TierCounts(lines)); err != nil {
				return err
			}
		}
		orderStatus, err = s.settleOrderStatus(ctx, tx, order.ID, now)
		if err != nil {
			return err
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			EventID:     event.ID,
			OrderID:     &order.ID,
			ActorUserID: input.Actor.UserID,
			Type:        enums.LedgerEventTypeRefundIssued,
			AmountMinor: totalMinor,
			Currency:    currency,
			RefundID:    refund.ID,
			Metadata: map[string]any{
				"reason":           reason,
				"status":           status,
				"ticket_ids":       ids,
				"released_to_pool": input.ReleaseToPool,
				"order_status":     orderStatus,
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor.OutboxRef(),
			Data: payloads.OrderRefundedEvent{
				OrderID:        order.ID,
				EventID:        event.ID,
				TicketIDs:      ids,
				RefundID:       refund.ID,
				AmountMinor:    totalMinor,
				Currency:       currency,
				OrderStatus:    orderStatus,
				ReleasedToPool: input.ReleaseToPool,
				Reason:         reason,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		s.metrics.Observe(metrics.RefundKindOrder, metrics.RefundOutcomeUnreconciled)
		s.logg.Error(s.logg.WithField(logCtx, "refund_id", refund.ID), "refund processed but local update failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund processed but failed to update ticket statuses").
			WithDetails(map[string]any{"refund_id": refund.ID, "order_id": order.ID})
	}

	s.metrics.Observe(metrics.RefundKindOrder, metrics.RefundOutcomeSucceeded)
	s.metrics.AddAmount(string(currency), totalMinor)
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"refund_id":    refund.ID,
		"amount_minor": totalMinor,
		"order_status": orderStatus,
	}), "order refunded")

	s.sendNotices(ctx, event, reason, currency, GroupByAttendee(lines, nil))

	return &OrderRefundResult{
		RefundID:      refund.ID,
		RefundedCount: len(lines),
		TotalRefund:   totalDisplay,
		AmountMinor:   totalMinor,
		Currency:      currency,
		OrderStatus:   orderStatus,
	}, nil
}

func (s *service) callProcessor(ctx context.Context, kind string, req stripe.RefundRequest) (stripe.Refund, error) {
	start := time.Now()
	refund, err := s.processor.CreateRefund(ctx, req)
	s.metrics.ObserveProcessorLatency(kind, time.Since(start))
	if err != nil {
		s.metrics.Observe(kind, metrics.RefundOutcomeFailed)
		s.logg.Error(ctx, "processor refund failed", err)
		if pkgerrors.As(err) == nil {
			return refund, pkgerrors.Wrap(pkgerrors.CodeProcessor, err, "refund failed")
		}
		return refund, err
	}
	return refund, nil
}

// settleOrderStatus marks the order refunded once no valid ticket remains on it.
func (s *service) settleOrderStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, now time.Time) (enums.OrderStatus, error) {
	remaining, err := s.tickets.WithTx(tx).CountValidByOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	status := enums.OrderStatusPartiallyRefunded
	if remaining == 0 {
		status = enums.OrderStatusRefunded
	}
	if err := s.orders.WithTx(tx).UpdateStatus(ctx, orderID, status, now); err != nil {
		return "", err
	}
	return status, nil
}

func (s *service) sendNotices(ctx context.Context, event *models.Event, reason string, currency enums.Currency, notices []AttendeeNotice) {
	eventDate, err := s.events.FirstOccurrenceStart(ctx, event.ID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "event_id", event.ID.String()), "failed to load event date for cancellation email")
	}
	SendCancellationNotices(ctx, s.notifier, s.logg, NoticeContext{
		Event:     event,
		EventDate: eventDate,
		Reason:    reason,
		Currency:  currency,
	}, notices)
}

// selectTickets returns the valid tickets among onOrder, restricted to wanted
// when it is non-empty. Wanted ids that are not on the order are rejected.
func selectTickets(onOrder []models.Ticket, wanted []uuid.UUID) ([]models.Ticket, error) {
	if len(wanted) == 0 {
		var out []models.Ticket
		for _, t := range onOrder {
			if t.Status == enums.TicketStatusValid {
				out = append(out, t)
			}
		}
		return out, nil
	}
	byID := make(map[uuid.UUID]models.Ticket, len(onOrder))
	for _, t := range onOrder {
		byID[t.ID] = t
	}
	seen := make(map[uuid.UUID]struct{}, len(wanted))
	var out []models.Ticket
	for _, id := range wanted {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		t, ok := byID[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found on this order")
		}
		if t.Status == enums.TicketStatusValid {
			out = append(out, t)
		}
	}
	return out, nil
}

func uniqueTierIDs(list []models.Ticket) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	for _, t := range list {
		if _, ok := seen[t.TierID]; ok {
			continue
		}
		seen[t.TierID] = struct{}{}
		ids = append(ids, t.TierID)
	}
	return ids
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
