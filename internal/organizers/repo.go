package organizers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
)

// Repository reads organizer accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, organizer *models.Organizer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Organizer, error)
	FindBySubject(ctx context.Context, subject string) (*models.Organizer, error)
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

func (r *repository) Create(ctx context.Context, organizer *models.Organizer) error {
	if organizer.ID == uuid.Nil {
		organizer.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(organizer).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Organizer, error) {
	var organizer models.Organizer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&organizer).Error; err != nil {
		return nil, err
	}
	return &organizer, nil
}

func (r *repository) FindBySubject(ctx context.Context, subject string) (*models.Organizer, error) {
	var organizer models.Organizer
	if err := r.db.WithContext(ctx).Where("auth_subject = ?", subject).First(&organizer).Error; err != nil {
		return nil, err
	}
	return &organizer, nil
}
