package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// Ticket is one admission. Only Status (and the cancellation columns) change after creation.
type Ticket struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	TierID             uuid.UUID          `gorm:"column:tier_id;type:uuid;not null"`
	EventID            uuid.UUID          `gorm:"column:event_id;type:uuid;not null"`
	AttendeeName       string             `gorm:"column:attendee_name;not null"`
	AttendeeEmail      string             `gorm:"column:attendee_email;not null"`
	Status             enums.TicketStatus `gorm:"column:status;type:ticket_status;not null"`
	QRCodeSecret       string             `gorm:"column:qr_code_secret;not null"`
	IssuedBy           *string            `gorm:"column:issued_by"`
	IssueReason        *string            `gorm:"column:issue_reason"`
	OriginalTicketID   *uuid.UUID         `gorm:"column:original_ticket_id;type:uuid"`
	CancelledAt        *time.Time         `gorm:"column:cancelled_at"`
	CancellationReason *string            `gorm:"column:cancellation_reason"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
