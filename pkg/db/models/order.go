package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// Order groups tickets bought (or issued) together. PaymentReference is nil for manual orders.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID          uuid.UUID         `gorm:"column:event_id;type:uuid;not null"`
	PaymentReference *string           `gorm:"column:payment_reference"`
	Currency         enums.Currency    `gorm:"column:currency;type:text;not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	SourceApp        enums.OrderSource `gorm:"column:source_app;type:text;not null"`
	TotalAmount      decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	BuyerEmail       string            `gorm:"column:buyer_email;not null"`
	BuyerName        string            `gorm:"column:buyer_name;not null"`
	Notes            *string           `gorm:"column:notes"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// HasPayment reports whether the order can be refunded through the processor.
func (o Order) HasPayment() bool {
	return o.PaymentReference != nil && *o.PaymentReference != ""
}
