package models

import (
	"time"

	"github.com/google/uuid"
)

// EventOccurrence is one scheduled date of an event.
type EventOccurrence struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID   uuid.UUID `gorm:"column:event_id;type:uuid;not null"`
	StartsAt  time.Time `gorm:"column:starts_at;not null"`
	EndsAt    time.Time `gorm:"column:ends_at;not null"`
	Label     *string   `gorm:"column:label"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
