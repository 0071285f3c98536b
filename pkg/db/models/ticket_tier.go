package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// TicketTier is a priced inventory pool. RemainingQuantity stays within [0, InitialQuantity].
type TicketTier struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID           uuid.UUID       `gorm:"column:event_id;type:uuid;not null"`
	Name              string          `gorm:"column:name;not null"`
	Description       *string         `gorm:"column:description"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Currency          enums.Currency  `gorm:"column:currency;type:text;not null"`
	InitialQuantity   int             `gorm:"column:initial_quantity;not null"`
	RemainingQuantity int             `gorm:"column:remaining_quantity;not null"`
	MaxPerOrder       int             `gorm:"column:max_per_order;not null"`
	SalesStartAt      *time.Time      `gorm:"column:sales_start_at"`
	SalesEndAt        *time.Time      `gorm:"column:sales_end_at"`
	IsHidden          bool            `gorm:"column:is_hidden;not null;default:false"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
