package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// Event is an organizer's ticketed event. TotalTicketsSold only moves through delta updates.
type Event struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizerID        uuid.UUID          `gorm:"column:organizer_id;type:uuid;not null"`
	Status             enums.EventStatus  `gorm:"column:status;type:event_status;not null"`
	Title              string             `gorm:"column:title;not null"`
	Slug               string             `gorm:"column:slug;not null"`
	Description        *string            `gorm:"column:description"`
	LocationType       enums.LocationType `gorm:"column:location_type;type:text;not null"`
	VenueName          *string            `gorm:"column:venue_name"`
	AddressText        *string            `gorm:"column:address_text"`
	City               *string            `gorm:"column:city"`
	Currency           enums.Currency     `gorm:"column:currency;type:text;not null"`
	SalesStartAt       *time.Time         `gorm:"column:sales_start_at"`
	SalesEndAt         *time.Time         `gorm:"column:sales_end_at"`
	TotalCapacity      int                `gorm:"column:total_capacity;not null"`
	TotalTicketsSold   int                `gorm:"column:total_tickets_sold;not null;default:0"`
	CancellationReason *string            `gorm:"column:cancellation_reason"`
	CancelledAt        *time.Time         `gorm:"column:cancelled_at"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
