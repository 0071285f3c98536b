// Package issuance creates organizer-issued tickets outside checkout: comps,
// manual sales, reissues to a new attendee, and re-sending tickets by email.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/internal/inventory"
	"github.com/angelmondragon/eventdesk-backend/internal/ledger"
	"github.com/angelmondragon/eventdesk-backend/internal/notifications"
	"github.com/angelmondragon/eventdesk-backend/internal/orders"
	"github.com/angelmondragon/eventdesk-backend/internal/tickets"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
	"github.com/angelmondragon/eventdesk-backend/pkg/money"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox/payloads"
)

const maxIssueQuantity = 100

var errTicketChanged = errors.New("ticket changed status during reissue")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type eventReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FirstOccurrenceStart(ctx context.Context, eventID uuid.UUID) (*time.Time, error)
	FindTier(ctx context.Context, id uuid.UUID) (*models.TicketTier, error)
	FindTiersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TicketTier, error)
}

type inventoryReleaser interface {
	ReleaseUnits(ctx context.Context, tx *gorm.DB, tierID uuid.UUID, count int) error
	DecrementEventSold(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, count int) error
}

type ledgerRecorder interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input ledger.RecordLedgerEventInput) (*models.LedgerEvent, error)
}

// Service issues, reissues and re-sends tickets on behalf of an organizer.
type Service interface {
	IssueTickets(ctx context.Context, input IssueTicketsInput) (*IssueTicketsResult, error)
	ReissueTicket(ctx context.Context, input ReissueTicketInput) (*ReissueTicketResult, error)
	SendTicketsToEmail(ctx context.Context, input SendTicketsInput) (*SendTicketsResult, error)
}

type ServiceParams struct {
	TransactionRunner txRunner
	Tickets           tickets.Repository
	Orders            orders.Repository
	Events            eventReader
	Inventory         inventoryReleaser
	Ledger            ledgerRecorder
	Outbox            outboxPublisher
	Notifier          notifications.Notifier
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
	notifier  notifications.Notifier
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
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "events reader required")
	case params.Inventory == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger required")
	case params.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
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
		notifier:  params.Notifier,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// IssueTickets creates a manual order (no payment reference) holding Quantity
// valid tickets. Inventory is consumed by the ticket store as the rows are
// inserted.
func (s *service) IssueTickets(ctx context.Context, input IssueTicketsInput) (*IssueTicketsResult, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	if input.Quantity < 1 || input.Quantity > maxIssueQuantity {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be between 1 and %d", maxIssueQuantity)
	}
	attendee, err := normalizeAttendee(input.Attendee)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a reason is required for manual issuance")
	}

	event, err := s.events.FindByID(ctx, input.EventID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	if event == nil || !input.Actor.Owns(event.OrganizerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found or not authorized")
	}

	tier, err := s.events.FindTier(ctx, input.TierID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket tier")
	}
	if tier == nil || tier.EventID != event.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket tier not found for this event")
	}
	if tier.RemainingQuantity < input.Quantity {
		return nil, inventory.InsufficientError(tier.Name, tier.RemainingQuantity)
	}

	unitPrice := tier.Price
	if input.IsFree {
		unitPrice = decimal.Zero
	}
	total := unitPrice.Mul(decimal.NewFromInt(int64(input.Quantity)))
	currency := enums.FirstCurrency(string(tier.Currency), string(event.Currency))
	notes := "Manual issuance: " + reason

	order := &models.Order{
		ID:          uuid.New(),
		EventID:     event.ID,
		Currency:    currency,
		Status:      enums.OrderStatusCompleted,
		SourceApp:   enums.OrderSourceOrganizer,
		TotalAmount: total,
		BuyerEmail:  attendee.Email,
		BuyerName:   attendee.Name,
		Notes:       &notes,
	}
	issuedBy := input.Actor.Subject
	issued := make([]models.Ticket, input.Quantity)
	for i := range issued {
		issued[i] = models.Ticket{
			ID:            uuid.New(),
			OrderID:       order.ID,
			TierID:        tier.ID,
			EventID:       event.ID,
			AttendeeName:  attendee.Name,
			AttendeeEmail: attendee.Email,
			IssuedBy:      &issuedBy,
			IssueReason:   &reason,
		}
	}
	ticketIDs := idsOf(issued)
	now := s.now()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if err := s.orders.WithTx(tx).CreateItems(ctx, []models.OrderItem{{
			OrderID:   order.ID,
			TierID:    tier.ID,
			Quantity:  input.Quantity,
			UnitPrice: unitPrice,
			Subtotal:  total,
		}}); err != nil {
			return err
		}
		if err := s.tickets.WithTx(tx).CreateIssued(ctx, issued); err != nil {
			return err
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			EventID:     event.ID,
			OrderID:     &order.ID,
			ActorUserID: input.Actor.UserID,
			Type:        enums.LedgerEventTypeTicketsIssued,
			AmountMinor: money.ToMinorUnits(total, currency),
			Currency:    currency,
			Metadata: map[string]any{
				"tier_id":  tier.ID,
				"quantity": input.Quantity,
				"is_free":  input.IsFree,
				"reason":   reason,
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTicketsIssued,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor.OutboxRef(),
			Data: payloads.TicketsIssuedEvent{
				OrderID:   order.ID,
				EventID:   event.ID,
				TierID:    tier.ID,
				TicketIDs: ticketIDs,
				IsFree:    input.IsFree,
				Reason:    reason,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, txError(err, "issue tickets")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id": event.ID.String(),
		"order_id": order.ID.String(),
		"tier_id":  tier.ID.String(),
		"quantity": input.Quantity,
	})
	s.logg.Info(logCtx, "tickets issued")
	s.deliver(logCtx, event, attendee, issued, map[uuid.UUID]string{tier.ID: tier.Name})

	return &IssueTicketsResult{OrderID: order.ID, TicketIDs: ticketIDs}, nil
}

// ReissueTicket cancels a valid ticket and issues a replacement on the same
// order and tier. The old seat is released explicitly and the new one consumed
// by the ticket store, so inventory nets to zero.
func (s *service) ReissueTicket(ctx context.Context, input ReissueTicketInput) (*ReissueTicketResult, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	attendee, err := normalizeAttendee(input.NewAttendee)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a reason is required to reissue a ticket")
	}

	old, err := s.tickets.FindByID(ctx, input.OldTicketID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket")
	}
	if old == nil || old.OrderID != input.OrderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found on this order")
	}
	if err := tickets.EnsureReissuable(old.Status); err != nil {
		return nil, err
	}
	event, err := s.events.FindByID(ctx, old.EventID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	if event == nil || !input.Actor.Owns(event.OrganizerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found on this order")
	}

	issuedBy := input.Actor.Subject
	issueReason := "Reissue: " + reason
	replacement := models.Ticket{
		ID:               uuid.New(),
		OrderID:          old.OrderID,
		TierID:           old.TierID,
		EventID:          old.EventID,
		AttendeeName:     attendee.Name,
		AttendeeEmail:    attendee.Email,
		IssuedBy:         &issuedBy,
		IssueReason:      &issueReason,
		OriginalTicketID: &old.ID,
	}
	note := fmt.Sprintf("Reissued ticket %s → %s: %s", shortID(old.ID), shortID(replacement.ID), reason)
	now := s.now()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.tickets.WithTx(tx).TransitionFromValid(ctx, []uuid.UUID{old.ID}, enums.TicketStatusCancelled, issueReason, now)
		if err != nil {
			return err
		}
		if moved != 1 {
			return errTicketChanged
		}
		if err := s.inventory.ReleaseUnits(ctx, tx, old.TierID, 1); err != nil {
			return err
		}
		if err := s.inventory.DecrementEventSold(ctx, tx, old.EventID, 1); err != nil {
			return err
		}
		created := []models.Ticket{replacement}
		if err := s.tickets.WithTx(tx).CreateIssued(ctx, created); err != nil {
			return err
		}
		replacement = created[0]
		if err := s.orders.WithTx(tx).AppendNote(ctx, old.OrderID, note, now); err != nil {
			return err
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			EventID:     event.ID,
			OrderID:     &old.OrderID,
			TicketID:    &replacement.ID,
			ActorUserID: input.Actor.UserID,
			Type:        enums.LedgerEventTypeTicketReissued,
			Currency:    event.Currency,
			Metadata: map[string]any{
				"old_ticket_id": old.ID,
				"reason":        reason,
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTicketReissued,
			AggregateType: enums.AggregateTicket,
			AggregateID:   replacement.ID,
			Actor:         input.Actor.OutboxRef(),
			Data: payloads.TicketReissuedEvent{
				OrderID:     old.OrderID,
				EventID:     old.EventID,
				OldTicketID: old.ID,
				NewTicketID: replacement.ID,
				Reason:      reason,
			},
			OccurredAt: now,
		})
	})
	if errors.Is(err, errTicketChanged) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "ticket changed status, reload and try again")
	}
	if err != nil {
		return nil, txError(err, "reissue ticket")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":      old.OrderID.String(),
		"old_ticket_id": old.ID.String(),
		"new_ticket_id": replacement.ID.String(),
	})
	s.logg.Info(logCtx, "ticket reissued")

	tierNames := map[uuid.UUID]string{}
	if tier, err := s.events.FindTier(ctx, old.TierID); err == nil {
		tierNames[tier.ID] = tier.Name
	}
	s.deliver(logCtx, event, attendee, []models.Ticket{replacement}, tierNames)

	return &ReissueTicketResult{NewTicketID: replacement.ID}, nil
}

// SendTicketsToEmail delivers the valid tickets among the selection. Unlike the
// courtesy emails after issuance, a delivery failure fails the call.
func (s *service) SendTicketsToEmail(ctx context.Context, input SendTicketsInput) (*SendTicketsResult, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	if len(input.TicketIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no tickets selected")
	}
	recipient, err := normalizeAttendee(Attendee{Name: input.Name, Email: input.Email})
	if err != nil {
		return nil, err
	}

	found, err := s.tickets.FindByIDs(ctx, input.TicketIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tickets")
	}
	if len(found) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tickets not found")
	}
	var valid []models.Ticket
	for _, t := range found {
		if t.Status == enums.TicketStatusValid {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no valid tickets to send")
	}

	var first *models.Event
	seenEvent := map[uuid.UUID]bool{}
	var tierIDs []uuid.UUID
	seenTier := map[uuid.UUID]bool{}
	for _, t := range valid {
		if !seenTier[t.TierID] {
			seenTier[t.TierID] = true
			tierIDs = append(tierIDs, t.TierID)
		}
		if seenEvent[t.EventID] {
			continue
		}
		seenEvent[t.EventID] = true
		event, err := s.events.FindByID(ctx, t.EventID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
		}
		if !input.Actor.Owns(event.OrganizerID) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not authorized to send tickets for this event")
		}
		if first == nil {
			first = event
		}
	}

	tiers, err := s.events.FindTiersByIDs(ctx, tierIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket tiers")
	}
	tierNames := make(map[uuid.UUID]string, len(tiers))
	for _, tier := range tiers {
		tierNames[tier.ID] = tier.Name
	}

	if err := s.send(ctx, first, recipient, valid, tierNames); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "recipient", recipient.Email), "failed to send ticket email", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to send email")
	}
	return &SendTicketsResult{Sent: len(valid)}, nil
}

func (s *service) deliver(ctx context.Context, event *models.Event, to Attendee, list []models.Ticket, tierNames map[uuid.UUID]string) {
	if err := s.send(ctx, event, to, list, tierNames); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "attendee_email", to.Email), "failed to send ticket email", err)
	}
}

func (s *service) send(ctx context.Context, event *models.Event, to Attendee, list []models.Ticket, tierNames map[uuid.UUID]string) error {
	eventDate, err := s.events.FirstOccurrenceStart(ctx, event.ID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "event_id", event.ID.String()), "failed to load event date for ticket email")
	}
	summaries := make([]notifications.TicketSummary, 0, len(list))
	for _, t := range list {
		name, ok := tierNames[t.TierID]
		if !ok {
			name = "Unknown"
		}
		summaries = append(summaries, notifications.TicketSummary{
			TicketID:     t.ID,
			TierName:     name,
			QRCodeSecret: t.QRCodeSecret,
			AttendeeName: t.AttendeeName,
		})
	}
	return s.notifier.SendTickets(ctx, notifications.TicketEmail{
		EventID:      event.ID,
		To:           to.Email,
		AttendeeName: to.Name,
		EventTitle:   event.Title,
		EventDate:    eventDate,
		VenueName:    deref(event.VenueName),
		City:         deref(event.City),
		Tickets:      summaries,
	})
}

func normalizeAttendee(a Attendee) (Attendee, error) {
	out := Attendee{Name: strings.TrimSpace(a.Name), Email: strings.ToLower(strings.TrimSpace(a.Email))}
	if out.Email == "" {
		return out, pkgerrors.New(pkgerrors.CodeValidation, "attendee email is required")
	}
	if _, err := mail.ParseAddress(out.Email); err != nil {
		return out, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid email address %q", out.Email)
	}
	if out.Name == "" {
		out.Name = out.Email
	}
	return out, nil
}

func txError(err error, op string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func idsOf(list []models.Ticket) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(list))
	for _, t := range list {
		ids = append(ids, t.ID)
	}
	return ids
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
