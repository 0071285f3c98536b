package events

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/internal/access"
	"github.com/angelmondragon/eventdesk-backend/internal/ledger"
	"github.com/angelmondragon/eventdesk-backend/internal/notifications"
	"github.com/angelmondragon/eventdesk-backend/internal/orders"
	"github.com/angelmondragon/eventdesk-backend/internal/refunds"
	"github.com/angelmondragon/eventdesk-backend/internal/tickets"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
	"github.com/angelmondragon/eventdesk-backend/pkg/metrics"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox/payloads"
)

const (
	defaultMaxPerOrder   = 10
	completionBatchLimit = 200
)

var errEventChanged = errors.New("event changed status concurrently")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type organizerReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Organizer, error)
}

type inventoryReleaser interface {
	ReleaseByTier(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, counts map[uuid.UUID]int) error
}

type ledgerRecorder interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input ledger.RecordLedgerEventInput) (*models.LedgerEvent, error)
}

// Service drives the event lifecycle: authoring, publication and the
// delete-or-cancel cascade.
type Service interface {
	Create(ctx context.Context, input CreateEventInput) (*EventDTO, error)
	Update(ctx context.Context, input UpdateEventInput) (*EventDTO, error)
	Get(ctx context.Context, actor access.Actor, eventID uuid.UUID) (*EventDTO, error)
	Publish(ctx context.Context, actor access.Actor, eventID uuid.UUID) (*StatusResult, error)
	Unpublish(ctx context.Context, actor access.Actor, eventID uuid.UUID) (*StatusResult, error)
	Cancel(ctx context.Context, actor access.Actor, eventID uuid.UUID) (*StatusResult, error)
	Delete(ctx context.Context, input DeleteEventInput) (*DeleteEventResult, error)
	CompletePastEvents(ctx context.Context, now time.Time) (int, error)
}

type ServiceParams struct {
	TransactionRunner txRunner
	Repo              Repository
	Tickets           tickets.Repository
	Orders            orders.Repository
	Organizers        organizerReader
	Inventory         inventoryReleaser
	Ledger            ledgerRecorder
	Outbox            outboxPublisher
	Processor         refunds.Processor
	Guard             *refunds.Guard
	Notifier          notifications.Notifier
	Metrics           *metrics.RefundMetrics
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	tx         txRunner
	repo       Repository
	tickets    tickets.Repository
	orders     orders.Repository
	organizers organizerReader
	inventory  inventoryReleaser
	ledger     ledgerRecorder
	outbox     outboxPublisher
	processor  refunds.Processor
	guard      *refunds.Guard
	notifier   notifications.Notifier
	metrics    *metrics.RefundMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.TransactionRunner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "events repository required")
	case params.Tickets == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tickets repository required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	case params.Organizers == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "organizers reader required")
	case params.Inventory == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger required")
	case params.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	case params.Processor == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund processor required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:         params.TransactionRunner,
		repo:       params.Repo,
		tickets:    params.Tickets,
		orders:     params.Orders,
		organizers: params.Organizers,
		inventory:  params.Inventory,
		ledger:     params.Ledger,
		outbox:     params.Outbox,
		processor:  params.Processor,
		guard:      params.Guard,
		notifier:   params.Notifier,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateEventInput) (*EventDTO, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	organizer, err := s.organizers.Get(ctx, input.Actor.OrganizerID)
	if err != nil {
		return nil, err
	}
	if !organizer.StripeOnboardingCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "stripe account must be connected before creating events")
	}
	if err := validateFields(input.Fields); err != nil {
		return nil, err
	}
	occurrences, err := buildOccurrences(input.Occurrences)
	if err != nil {
		return nil, err
	}
	tiers, err := buildTiers(input.Tiers)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		ID:           uuid.New(),
		OrganizerID:  input.Actor.OrganizerID,
		Status:       enums.EventStatusDraft,
		Title:        strings.TrimSpace(input.Fields.Title),
		Slug:         slugOrTitle(input.Fields.Slug, input.Fields.Title),
		Currency:     enums.FirstCurrency(string(input.Fields.Currency)),
		LocationType: locationOrDefault(input.Fields.LocationType),
	}
	applyOptionalFields(event, input.Fields)
	event.TotalCapacity = capacityOf(tiers)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, event); err != nil {
			return err
		}
		if err := repo.ReplaceOccurrences(ctx, event.ID, occurrences); err != nil {
			return err
		}
		return repo.ReplaceTiers(ctx, event.ID, tiers)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create event")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event_id":     event.ID.String(),
		"organizer_id": event.OrganizerID.String(),
		"tiers":        len(tiers),
	}), "event created")
	return FromModel(event, occurrences, tiers), nil
}

func (s *service) Update(ctx context.Context, input UpdateEventInput) (*EventDTO, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	event, err := s.loadOwned(ctx, input.Actor, input.EventID)
	if err != nil {
		return nil, err
	}
	if err := validateFields(input.Fields); err != nil {
		return nil, err
	}
	occurrences, err := buildOccurrences(input.Occurrences)
	if err != nil {
		return nil, err
	}
	tiers, err := buildTiers(input.Tiers)
	if err != nil {
		return nil, err
	}
	if len(tiers) > 0 {
		issued, err := s.tickets.CountByEvent(ctx, event.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count tickets")
		}
		if issued > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ticket tiers cannot be replaced after tickets have been issued")
		}
	}

	updates := map[string]any{
		"title":          strings.TrimSpace(input.Fields.Title),
		"slug":           slugOrTitle(input.Fields.Slug, input.Fields.Title),
		"description":    optionalString(input.Fields.Description),
		"location_type":  locationOrDefault(input.Fields.LocationType),
		"venue_name":     optionalString(input.Fields.VenueName),
		"address_text":   optionalString(input.Fields.AddressText),
		"city":           optionalString(input.Fields.City),
		"currency":       enums.FirstCurrency(string(input.Fields.Currency)),
		"sales_start_at": input.Fields.SalesStartAt,
		"sales_end_at":   input.Fields.SalesEndAt,
		"updated_at":     s.now(),
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, event.ID, updates); err != nil {
			return err
		}
		if len(occurrences) > 0 {
			if err := repo.ReplaceOccurrences(ctx, event.ID, occurrences); err != nil {
				return err
			}
		}
		if len(tiers) > 0 {
			if err := repo.ReplaceTiers(ctx, event.ID, tiers); err != nil {
				return err
			}
			return repo.RecomputeCapacity(ctx, event.ID)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update event")
	}
	return s.Get(ctx, input.Actor, event.ID)
}

func (s *service) Get(ctx context.Context, actor access.Actor, eventID uuid.UUID) (*EventDTO, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	event, err := s.loadOwned(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	occurrences, err := s.repo.ListOccurrences(ctx, event.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load occurrences")
	}
	tiers, err := s.repo.ListTiers(ctx, event.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket tiers")
	}
	return FromModel(event, occurrences, tiers), nil
}

func (s *service) Publish(ctx context.Context, actor access.Actor, eventID uuid.UUID) (*StatusResult, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	event, err := s.loadOwned(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != enums.EventStatusDraft {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot publish event with status %q", event.Status)
	}
	if strings.TrimSpace(event.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event must have a title")
	}
	occurrences, err := s.repo.ListOccurrences(ctx, event.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load occurrences")
	}
	if len(occurrences) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event must have at least one event date")
	}
	tiers, err := s.repo.ListTiers(ctx, event.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket tiers")
	}
	if len(tiers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event must have at least one ticket tier")
	}
	return s.transition(ctx, actor, event, []enums.EventStatus{enums.EventStatusDraft}, enums.EventStatusPublished, enums.EventEventPublished, nil, "")
}

func (s *service) Unpublish(ctx context.Context, actor access.Actor, eventID uuid.UUID) (*StatusResult, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	event, err := s.loadOwned(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != enums.EventStatusPublished {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot unpublish event with status %q", event.Status)
	}
	return s.transition(ctx, actor, event, []enums.EventStatus{enums.EventStatusPublished}, enums.EventStatusDraft, enums.EventEventUnpublished, nil, "")
}

// Cancel flips the status only; tickets are untouched. Delete is the cascade
// that refunds attendees.
func (s *service) Cancel(ctx context.Context, actor access.Actor, eventID uuid.UUID) (*StatusResult, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	event, err := s.loadOwned(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	switch event.Status {
	case enums.EventStatusCancelled:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "event is already cancelled")
	case enums.EventStatusDraft, enums.EventStatusPublished:
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot cancel event with status %q", event.Status)
	}
	now := s.now()
	return s.transition(ctx, actor, event,
		[]enums.EventStatus{enums.EventStatusDraft, enums.EventStatusPublished},
		enums.EventStatusCancelled, enums.EventEventCancelled,
		map[string]any{"cancelled_at": now}, "")
}

// CompletePastEvents moves published events whose last occurrence has ended to
// completed. It returns how many events moved.
func (s *service) CompletePastEvents(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.repo.ListCompletable(ctx, now, completionBatchLimit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list completable events")
	}
	completed := 0
	for i := range candidates {
		event := &candidates[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, event.ID,
				[]enums.EventStatus{enums.EventStatusPublished}, enums.EventStatusCompleted,
				map[string]any{"updated_at": now})
			if err != nil {
				return err
			}
			if moved == 0 {
				return errEventChanged
			}
			return s.emitStatusChange(ctx, tx, nil, event, enums.EventStatusCompleted, enums.EventEventCompleted, "", now)
		})
		if errors.Is(err, errEventChanged) {
			continue
		}
		if err != nil {
			return completed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete event")
		}
		completed++
	}
	return completed, nil
}

func (s *service) transition(
	ctx context.Context,
	actor access.Actor,
	event *models.Event,
	from []enums.EventStatus,
	to enums.EventStatus,
	eventType enums.OutboxEventType,
	updates map[string]any,
	reason string,
) (*StatusResult, error) {
	now := s.now()
	if updates == nil {
		updates = map[string]any{}
	}
	updates["updated_at"] = now

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, event.ID, from, to, updates)
		if err != nil {
			return err
		}
		if moved == 0 {
			return errEventChanged
		}
		return s.emitStatusChange(ctx, tx, &actor, event, to, eventType, reason, now)
	})
	if errors.Is(err, errEventChanged) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "event status changed, reload and try again")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update event status")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event_id": event.ID.String(),
		"from":     event.Status,
		"to":       to,
	}), "event status changed")
	return &StatusResult{ID: event.ID, Status: to}, nil
}

func (s *service) emitStatusChange(ctx context.Context, tx *gorm.DB, actor *access.Actor, event *models.Event, to enums.EventStatus, eventType enums.OutboxEventType, reason string, at time.Time) error {
	var ref *outbox.ActorRef
	if actor != nil {
		ref = actor.OutboxRef()
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateEvent,
		AggregateID:   event.ID,
		Actor:         ref,
		Data: payloads.EventStatusChangedEvent{
			EventID:     event.ID,
			OrganizerID: event.OrganizerID,
			From:        event.Status,
			To:          to,
			Reason:      reason,
			ChangedAt:   at,
		},
		OccurredAt: at,
	})
}

// loadOwned hides events of other organizers behind not-found.
func (s *service) loadOwned(ctx context.Context, actor access.Actor, eventID uuid.UUID) (*models.Event, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	if !actor.Owns(event.OrganizerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	return event, nil
}

func validateFields(f EventFields) error {
	if strings.TrimSpace(f.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event must have a title")
	}
	if f.Currency != "" && !enums.FirstCurrency(string(f.Currency)).IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported currency %q", f.Currency)
	}
	if f.LocationType != "" && !f.LocationType.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid location type %q", f.LocationType)
	}
	if f.SalesStartAt != nil && f.SalesEndAt != nil && f.SalesEndAt.Before(*f.SalesStartAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "sales end must be after sales start")
	}
	return nil
}

func buildOccurrences(in []OccurrenceInput) ([]models.EventOccurrence, error) {
	out := make([]models.EventOccurrence, 0, len(in))
	for _, o := range in {
		if o.StartsAt.IsZero() || o.EndsAt.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "event dates need a start and an end")
		}
		if o.EndsAt.Before(o.StartsAt) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "event date must end after it starts")
		}
		out = append(out, models.EventOccurrence{
			ID:       uuid.New(),
			StartsAt: o.StartsAt.UTC(),
			EndsAt:   o.EndsAt.UTC(),
			Label:    optionalString(o.Label),
		})
	}
	return out, nil
}

func buildTiers(in []TierInput) ([]models.TicketTier, error) {
	out := make([]models.TicketTier, 0, len(in))
	for _, t := range in {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket tier name is required")
		}
		if t.InitialQuantity < 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "ticket tier %q quantity cannot be negative", name)
		}
		if t.Price.IsNegative() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "ticket tier %q price cannot be negative", name)
		}
		maxPerOrder := t.MaxPerOrder
		if maxPerOrder <= 0 {
			maxPerOrder = defaultMaxPerOrder
		}
		out = append(out, models.TicketTier{
			ID:                uuid.New(),
			Name:              name,
			Description:       optionalString(t.Description),
			Price:             t.Price,
			Currency:          enums.FirstCurrency(string(t.Currency)),
			InitialQuantity:   t.InitialQuantity,
			RemainingQuantity: t.InitialQuantity,
			MaxPerOrder:       maxPerOrder,
			SalesStartAt:      t.SalesStartAt,
			SalesEndAt:        t.SalesEndAt,
			IsHidden:          t.IsHidden,
		})
	}
	return out, nil
}

func capacityOf(tiers []models.TicketTier) int {
	total := 0
	for _, t := range tiers {
		total += t.InitialQuantity
	}
	return total
}

func applyOptionalFields(event *models.Event, f EventFields) {
	event.Description = optionalString(f.Description)
	event.VenueName = optionalString(f.VenueName)
	event.AddressText = optionalString(f.AddressText)
	event.City = optionalString(f.City)
	event.SalesStartAt = f.SalesStartAt
	event.SalesEndAt = f.SalesEndAt
}

func locationOrDefault(l enums.LocationType) enums.LocationType {
	parsed, err := enums.ParseLocationType(string(l))
	if err != nil {
		return enums.LocationTypePhysical
	}
	return parsed
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func slugOrTitle(slug, title string) string {
	source := strings.TrimSpace(slug)
	if source == "" {
		source = title
	}
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(source), "-"), "-")
}
