package models

import (
	"time"

	"github.com/google/uuid"
)

// Organizer is a back-office account that owns events and receives payouts.
type Organizer struct {
	ID                        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuthSubject               string    `gorm:"column:auth_subject;not null;uniqueIndex"`
	Email                     string    `gorm:"column:email;not null"`
	DisplayName               *string   `gorm:"column:display_name"`
	IsAdmin                   bool      `gorm:"column:is_admin;not null;default:false"`
	StripeAccountID           *string   `gorm:"column:stripe_account_id"`
	StripeOnboardingCompleted bool      `gorm:"column:stripe_onboarding_completed;not null;default:false"`
	CreatedAt                 time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
