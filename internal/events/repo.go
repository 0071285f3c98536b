package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// Repository persists events with their occurrences and ticket tiers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.EventStatus, to enums.EventStatus, updates map[string]any) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListCompletable(ctx context.Context, now time.Time, limit int) ([]models.Event, error)

	ListOccurrences(ctx context.Context, eventID uuid.UUID) ([]models.EventOccurrence, error)
	FirstOccurrenceStart(ctx context.Context, eventID uuid.UUID) (*time.Time, error)
	ReplaceOccurrences(ctx context.Context, eventID uuid.UUID, occurrences []models.EventOccurrence) error

	ListTiers(ctx context.Context, eventID uuid.UUID) ([]models.TicketTier, error)
	FindTier(ctx context.Context, id uuid.UUID) (*models.TicketTier, error)
	FindTiersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TicketTier, error)
	ReplaceTiers(ctx context.Context, eventID uuid.UUID, tiers []models.TicketTier) error
	RecomputeCapacity(ctx context.Context, eventID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an events repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TransitionStatus moves the event to status to only while it is still in one
// of the from statuses; zero rows means a concurrent change won.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.EventStatus, to enums.EventStatus, updates map[string]any) (int64, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	if _, ok := values["updated_at"]; !ok {
		values["updated_at"] = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	return res.RowsAffected, res.Error
}

// Delete removes the event and its tiers and occurrences.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("event_id = ?", id).Delete(&models.TicketTier{}).Error; err != nil {
		return err
	}
	if err := db.Where("event_id = ?", id).Delete(&models.EventOccurrence{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&models.Event{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListCompletable returns published events whose last occurrence has ended.
func (r *repository) ListCompletable(ctx context.Context, now time.Time, limit int) ([]models.Event, error) {
	var events []models.Event
	q := r.db.WithContext(ctx).
		Where("status = ?", enums.EventStatusPublished).
		Where("EXISTS (SELECT 1 FROM event_occurrences o WHERE o.event_id = events.id)").
		Where("NOT EXISTS (SELECT 1 FROM event_occurrences o WHERE o.event_id = events.id AND o.ends_at >= ?)", now).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&events).Error
	return events, err
}

func (r *repository) ListOccurrences(ctx context.Context, eventID uuid.UUID) ([]models.EventOccurrence, error) {
	var occurrences []models.EventOccurrence
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("starts_at ASC").
		Find(&occurrences).Error
	return occurrences, err
}

// FirstOccurrenceStart returns the earliest start, or nil when the event has no dates.
func (r *repository) FirstOccurrenceStart(ctx context.Context, eventID uuid.UUID) (*time.Time, error) {
	var occurrences []models.EventOccurrence
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("starts_at ASC").
		Limit(1).
		Find(&occurrences).Error
	if err != nil || len(occurrences) == 0 {
		return nil, err
	}
	start := occurrences[0].StartsAt
	return &start, nil
}

func (r *repository) ReplaceOccurrences(ctx context.Context, eventID uuid.UUID, occurrences []models.EventOccurrence) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("event_id = ?", eventID).Delete(&models.EventOccurrence{}).Error; err != nil {
		return err
	}
	if len(occurrences) == 0 {
		return nil
	}
	for i := range occurrences {
		occurrences[i].EventID = eventID
		if occurrences[i].ID == uuid.Nil {
			occurrences[i].ID = uuid.New()
		}
	}
	return db.Create(&occurrences).Error
}

func (r *repository) ListTiers(ctx context.Context, eventID uuid.UUID) ([]models.TicketTier, error) {
	var tiers []models.TicketTier
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Order("name ASC").
		Find(&tiers).Error
	return tiers, err
}

func (r *repository) FindTier(ctx context.Context, id uuid.UUID) (*models.TicketTier, error) {
	var tier models.TicketTier
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tier).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

func (r *repository) FindTiersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TicketTier, error) {
	var tiers []models.TicketTier
	if len(ids) == 0 {
		return tiers, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&tiers).Error
	return tiers, err
}

// ReplaceTiers swaps the event's tier set. Callers must ensure no ticket references
// the old tiers.
func (r *repository) ReplaceTiers(ctx context.Context, eventID uuid.UUID, tiers []models.TicketTier) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("event_id = ?", eventID).Delete(&models.TicketTier{}).Error; err != nil {
		return err
	}
	if len(tiers) == 0 {
		return nil
	}
	for i := range tiers {
		tiers[i].EventID = eventID
		if tiers[i].ID == uuid.Nil {
			tiers[i].ID = uuid.New()
		}
	}
	return db.Create(&tiers).Error
}

// RecomputeCapacity sets total_capacity to the sum of tier initial quantities.
func (r *repository) RecomputeCapacity(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(
		"UPDATE events SET total_capacity = (SELECT COALESCE(SUM(initial_quantity), 0) FROM ticket_tiers WHERE event_id = ?) WHERE id = ?",
		eventID, eventID,
	).Error
}
