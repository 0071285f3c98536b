package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// Filter narrows a ledger query. Zero fields do not filter.
type Filter struct {
	EventID uuid.UUID
	OrderID uuid.UUID
	Types   []enums.LedgerEventType
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.EventID != uuid.Nil {
		q = q.Where("event_id = ?", f.EventID)
	}
	if f.OrderID != uuid.Nil {
		q = q.Where("order_id = ?", f.OrderID)
	}
	if len(f.Types) > 0 {
		q = q.Where("type IN ?", f.Types)
	}
	return q
}

// Repository appends to and reads the ledger_events table. Rows are never updated.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.LedgerEvent) error
	Find(ctx context.Context, filter Filter) ([]models.LedgerEvent, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry *models.LedgerEvent) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// Find returns matches oldest first.
func (r *repository) Find(ctx context.Context, filter Filter) ([]models.LedgerEvent, error) {
	var entries []models.LedgerEvent
	err := filter.apply(r.db.WithContext(ctx)).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) Count(ctx context.Context, filter Filter) (int64, error) {
	var n int64
	err := filter.apply(r.db.WithContext(ctx).Model(&models.LedgerEvent{})).Count(&n).Error
	return n, err
}
