package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// LedgerEvent records an immutable refund or inventory lifecycle event tied to an event.
type LedgerEvent struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID     uuid.UUID             `gorm:"column:event_id;type:uuid;not null"`
	OrderID     *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	TicketID    *uuid.UUID            `gorm:"column:ticket_id;type:uuid"`
	ActorUserID uuid.UUID             `gorm:"column:actor_user_id;type:uuid;not null"`
	Type        enums.LedgerEventType `gorm:"column:type;type:ledger_event_type_enum;not null"`
	AmountMinor int64                 `gorm:"column:amount_minor;not null"`
	Currency    enums.Currency        `gorm:"column:currency;type:text;not null"`
	RefundID    *string               `gorm:"column:refund_id"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
