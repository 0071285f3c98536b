package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/internal/ledger"
	"github.com/angelmondragon/eventdesk-backend/internal/refunds"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/metrics"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/eventdesk-backend/pkg/stripe"
)

var errTicketsChanged = errors.New("tickets changed status during cancellation")

const maxPlanRounds = 3

// orderRefund is the cascade's per-order refund attempt.
type orderRefund struct {
	order       models.Order
	lines       []refunds.Line
	amountMinor int64
	currency    enums.Currency
	refundID    string
	err         error
}

func (r *orderRefund) refunded() bool {
	return r.refundID != ""
}

// Delete hard-deletes an event that never issued a ticket. Otherwise it refunds
// every valid ticket (one processor call per paid order), cancels the tickets,
// optionally returns their seats to the pool and marks the event cancelled.
// Per-order processor failures do not stop the cascade; they are reported in
// the result.
func (s *service) Delete(ctx context.Context, input DeleteEventInput) (*DeleteEventResult, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	event, err := s.loadOwned(ctx, input.Actor, input.EventID)
	if err != nil {
		return nil, err
	}

	issued, err := s.tickets.CountByEvent(ctx, event.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count tickets")
	}
	if issued == 0 {
		return s.hardDelete(ctx, input, event)
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a cancellation reason is required when tickets have been issued")
	}

	release, err := s.guard.Acquire(ctx, refunds.GuardScopeEvent, event.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":     event.ID.String(),
		"organizer_id": input.Actor.OrganizerID.String(),
	})

	plan, releaseOrders, err := s.lockedPlan(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	defer releaseOrders()

	var failures error
	for _, r := range plan {
		if !r.order.HasPayment() || r.amountMinor <= 0 {
			continue
		}
		refund, err := s.refundOrder(logCtx, event, r)
		if err != nil {
			r.err = err
			failures = multierr.Append(failures, fmt.Errorf("order %s: %w", r.order.ID, err))
			continue
		}
		r.refundID = refund.ID
	}

	status := enums.TicketStatusCancelled
	if input.ReleaseToPool {
		status = enums.TicketStatusRefunded
	}
	var allLines []refunds.Line
	for _, r := range plan {
		allLines = append(allLines, r.lines...)
	}
	now := s.now()
	refundedTotal := int64(0)
	for _, r := range plan {
		if r.refunded() {
			refundedTotal += r.amountMinor
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if len(allLines) > 0 {
			ids := lineTicketIDs(allLines)
			moved, err := s.tickets.WithTx(tx).TransitionFromValid(ctx, ids, status, reason, now)
			if err != nil {
				return err
			}
			if moved != int64(len(ids)) {
				return errTicketsChanged
			}
			if input.ReleaseToPool {
				if err := s.inventory.ReleaseByTier(ctx, tx, event.ID, refunds.TierCounts(allLines)); err != nil {
					return err
				}
			}
		}
		for _, r := range plan {
			if err := s.settleCascadeOrder(ctx, tx, input, event, r, now); err != nil {
				return err
			}
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			EventID:     event.ID,
			ActorUserID: input.Actor.UserID,
			Type:        enums.LedgerEventTypeEventCancelled,
			AmountMinor: refundedTotal,
			Currency:    cascadeCurrency(allLines, event),
			Metadata: map[string]any{
				"reason":            reason,
				"cancelled_tickets": len(allLines),
				"released_to_pool":  input.ReleaseToPool,
				"failed_orders":     len(failedOrders(plan)),
			},
		}); err != nil {
			return err
		}

		moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, event.ID,
			[]enums.EventStatus{enums.EventStatusDraft, enums.EventStatusPublished, enums.EventStatusCancelled, enums.EventStatusCompleted},
			enums.EventStatusCancelled,
			map[string]any{"cancellation_reason": reason, "cancelled_at": now, "updated_at": now})
		if err != nil {
			return err
		}
		if moved == 0 {
			return gorm.ErrRecordNotFound
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEventCancelled,
			AggregateType: enums.AggregateEvent,
			AggregateID:   event.ID,
			Actor:         input.Actor.OutboxRef(),
			Data: payloads.EventCancelledEvent{
				EventID:          event.ID,
				OrganizerID:      event.OrganizerID,
				Reason:           reason,
				CancelledTickets: len(allLines),
				RefundedOrders:   refundedOrders(plan),
				FailedOrders:     failedOrders(plan),
				ReleasedToPool:   input.ReleaseToPool,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		refundIDs := map[string]string{}
		for _, r := range plan {
			if r.refunded() {
				refundIDs[r.order.ID.String()] = r.refundID
				s.metrics.Observe(metrics.RefundKindCascade, metrics.RefundOutcomeUnreconciled)
			}
		}
		s.logg.Error(logCtx, "event cancellation failed after refunds", err)
		if len(refundIDs) == 0 {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to cancel event")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refunds processed but failed to cancel event").
			WithDetails(map[string]any{"event_id": event.ID, "refund_ids": refundIDs})
	}

	result := &DeleteEventResult{
		ID:               event.ID,
		Mode:             DeleteModeCancelled,
		CancelledTickets: len(allLines),
		RefundedOrders:   refundedOrders(plan),
	}
	for _, r := range plan {
		if r.refunded() {
			s.metrics.Observe(metrics.RefundKindCascade, metrics.RefundOutcomeSucceeded)
			s.metrics.AddAmount(string(r.currency), r.amountMinor)
		}
		if r.err != nil {
			result.FailedRefunds = append(result.FailedRefunds, FailedRefund{
				OrderID:     r.order.ID,
				AmountMinor: r.amountMinor,
				Error:       publicMessage(r.err),
			})
		}
	}
	if failures != nil {
		s.logg.Error(s.logg.WithField(logCtx, "failed_orders", len(result.FailedRefunds)), "event cancelled with failed refunds", failures)
	}
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"cancelled_tickets": result.CancelledTickets,
		"refunded_orders":   len(result.RefundedOrders),
		"released_to_pool":  input.ReleaseToPool,
	}), "event cancelled")

	if len(allLines) > 0 {
		refundedOrderIDs := map[uuid.UUID]bool{}
		for _, r := range plan {
			if r.refunded() {
				refundedOrderIDs[r.order.ID] = true
			}
		}
		eventDate, err := s.repo.FirstOccurrenceStart(ctx, event.ID)
		if err != nil {
			s.logg.Warn(logCtx, "failed to load event date for cancellation email")
		}
		notices := refunds.GroupByAttendee(allLines, func(l refunds.Line) bool {
			return refundedOrderIDs[l.Ticket.OrderID]
		})
		result.EmailsSent = refunds.SendCancellationNotices(ctx, s.notifier, s.logg, refunds.NoticeContext{
			Event:     event,
			EventDate: eventDate,
			Reason:    reason,
			Currency:  cascadeCurrency(allLines, event),
		}, notices)
	}
	return result, nil
}

func (s *service) hardDelete(ctx context.Context, input DeleteEventInput, event *models.Event) (*DeleteEventResult, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Delete(ctx, event.ID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEventDeleted,
			AggregateType: enums.AggregateEvent,
			AggregateID:   event.ID,
			Actor:         input.Actor.OutboxRef(),
			Data: payloads.EventDeletedEvent{
				EventID:     event.ID,
				OrganizerID: event.OrganizerID,
				Title:       event.Title,
			},
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete event")
	}
	s.logg.Info(s.logg.WithField(ctx, "event_id", event.ID.String()), "event deleted")
	return &DeleteEventResult{ID: event.ID, Mode: DeleteModeDeleted}, nil
}

// lockedPlan claims the refund guard of every order the cascade will touch and
// plans under those claims, so a concurrent ticket or order refund can neither
// start nor be counted twice. Orders that gain valid tickets between planning
// and claiming are claimed on the next round.
func (s *service) lockedPlan(ctx context.Context, eventID uuid.UUID) ([]*orderRefund, func(), error) {
	held := map[uuid.UUID]bool{}
	var releases []func()
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for range maxPlanRounds {
		plan, err := s.planRefunds(ctx, eventID)
		if err != nil {
			releaseAll()
			return nil, nil, err
		}
		var missing []uuid.UUID
		for _, r := range plan {
			if !held[r.order.ID] {
				missing = append(missing, r.order.ID)
			}
		}
		if len(missing) == 0 {
			return plan, releaseAll, nil
		}
		release, err := s.guard.AcquireAll(ctx, refunds.GuardScopeOrder, missing)
		if err != nil {
			releaseAll()
			return nil, nil, err
		}
		releases = append(releases, release)
		for _, id := range missing {
			held[id] = true
		}
	}
	releaseAll()
	return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "tickets are still being issued for this event; retry")
}

// planRefunds prices the event's valid tickets grouped by order, in the order
// the tickets were issued.
func (s *service) planRefunds(ctx context.Context, eventID uuid.UUID) ([]*orderRefund, error) {
	valid, err := s.tickets.ListValidByEvent(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tickets")
	}
	if len(valid) == 0 {
		return nil, nil
	}

	var orderIDs, tierIDs []uuid.UUID
	byOrder := map[uuid.UUID][]models.Ticket{}
	seenTier := map[uuid.UUID]bool{}
	for _, t := range valid {
		if _, ok := byOrder[t.OrderID]; !ok {
			orderIDs = append(orderIDs, t.OrderID)
		}
		byOrder[t.OrderID] = append(byOrder[t.OrderID], t)
		if !seenTier[t.TierID] {
			seenTier[t.TierID] = true
			tierIDs = append(tierIDs, t.TierID)
		}
	}

	tiers, err := s.repo.FindTiersByIDs(ctx, tierIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket tiers")
	}
	orderRows, err := s.orders.FindByIDs(ctx, orderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}
	ordersByID := make(map[uuid.UUID]models.Order, len(orderRows))
	for _, o := range orderRows {
		ordersByID[o.ID] = o
	}

	plan := make([]*orderRefund, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		order, ok := ordersByID[orderID]
		if !ok {
			order = models.Order{ID: orderID}
		}
		lines, err := refunds.PriceTickets(byOrder[orderID], tiers, &order)
		if err != nil {
			return nil, err
		}
		_, minor := refunds.Totals(lines)
		plan = append(plan, &orderRefund{
			order:       order,
			lines:       lines,
			amountMinor: minor,
			currency:    lines[0].Currency,
		})
	}
	return plan, nil
}

func (s *service) refundOrder(ctx context.Context, event *models.Event, r *orderRefund) (stripe.Refund, error) {
	start := time.Now()
	refund, err := s.processor.CreateRefund(ctx, stripe.RefundRequest{
		PaymentReference: *r.order.PaymentReference,
		AmountMinor:      r.amountMinor,
		Currency:         r.currency,
		IdempotencyKey:   refunds.EventCancelIdempotencyKey(event.ID, r.order.ID),
		Metadata: map[string]string{
			"event_id": event.ID.String(),
			"order_id": r.order.ID.String(),
		},
	})
	s.metrics.ObserveProcessorLatency(metrics.RefundKindCascade, time.Since(start))
	if err != nil {
		s.metrics.Observe(metrics.RefundKindCascade, metrics.RefundOutcomeFailed)
		s.logg.Error(s.logg.WithField(ctx, "order_id", r.order.ID.String()), "cascade refund failed", err)
		return refund, err
	}
	return refund, nil
}

// settleCascadeOrder records the order's refund outcome. Every valid ticket of
// the event is cancelled, so no order keeps a valid ticket afterwards.
func (s *service) settleCascadeOrder(ctx context.Context, tx *gorm.DB, input DeleteEventInput, event *models.Event, r *orderRefund, now time.Time) error {
	orderID := r.order.ID
	switch {
	case r.refunded():
		if err := s.orders.WithTx(tx).UpdateStatus(ctx, orderID, enums.OrderStatusRefunded, now); err != nil {
			return err
		}
		_, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			EventID:     event.ID,
			OrderID:     &orderID,
			ActorUserID: input.Actor.UserID,
			Type:        enums.LedgerEventTypeRefundIssued,
			AmountMinor: r.amountMinor,
			Currency:    r.currency,
			RefundID:    r.refundID,
			Metadata:    map[string]any{"tickets": len(r.lines), "source": "event_cancellation"},
		})
		return err
	case r.err != nil:
		_, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			EventID:     event.ID,
			OrderID:     &orderID,
			ActorUserID: input.Actor.UserID,
			Type:        enums.LedgerEventTypeRefundFailed,
			AmountMinor: r.amountMinor,
			Currency:    r.currency,
			Metadata:    map[string]any{"error": r.err.Error(), "tickets": len(r.lines)},
		})
		return err
	default:
		if err := s.orders.WithTx(tx).UpdateStatus(ctx, orderID, enums.OrderStatusCancelled, now); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return nil
	}
}

func lineTicketIDs(lines []refunds.Line) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.Ticket.ID)
	}
	return ids
}

func refundedOrders(plan []*orderRefund) []uuid.UUID {
	var ids []uuid.UUID
	for _, r := range plan {
		if r.refunded() {
			ids = append(ids, r.order.ID)
		}
	}
	return ids
}

func failedOrders(plan []*orderRefund) []uuid.UUID {
	var ids []uuid.UUID
	for _, r := range plan {
		if r.err != nil {
			ids = append(ids, r.order.ID)
		}
	}
	return ids
}

func cascadeCurrency(lines []refunds.Line, event *models.Event) enums.Currency {
	if len(lines) > 0 {
		return lines[0].Currency
	}
	return enums.FirstCurrency(string(event.Currency))
}

func publicMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
