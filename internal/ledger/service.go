package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// Service defines operations that record ledger events.
type Service interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input RecordLedgerEventInput) (*models.LedgerEvent, error)
	HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.LedgerEventType) (bool, error)
	Entries(ctx context.Context, filter Filter) ([]models.LedgerEvent, error)
}

type service struct {
	repo Repository
}

// RecordLedgerEventInput captures the immutable data a ledger event requires.
type RecordLedgerEventInput struct {
	EventID     uuid.UUID             `json:"event_id"`
	OrderID     *uuid.UUID            `json:"order_id,omitempty"`
	TicketID    *uuid.UUID            `json:"ticket_id,omitempty"`
	ActorUserID uuid.UUID             `json:"actor_user_id"`
	Type        enums.LedgerEventType `json:"type"`
	AmountMinor int64                 `json:"amount_minor"`
	Currency    enums.Currency        `json:"currency"`
	RefundID    string                `json:"refund_id,omitempty"`
	Metadata    any                   `json:"metadata,omitempty"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// RecordEvent appends a ledger row. A non-nil tx binds the row to the caller's
// transaction.
func (s *service) RecordEvent(ctx context.Context, tx *gorm.DB, input RecordLedgerEventInput) (*models.LedgerEvent, error) {
	if input.EventID == uuid.Nil {
		return nil, fmt.Errorf("event id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, fmt.Errorf("actor user id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}
	if input.AmountMinor < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}

	var metadata json.RawMessage
	if input.Metadata != nil {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal ledger metadata: %w", err)
		}
		metadata = raw
	}

	currency := input.Currency
	if currency == "" {
		currency = enums.DefaultCurrency
	}

	event := &models.LedgerEvent{
		EventID:     input.EventID,
		OrderID:     input.OrderID,
		TicketID:    input.TicketID,
		ActorUserID: input.ActorUserID,
		Type:        input.Type,
		AmountMinor: input.AmountMinor,
		Currency:    currency,
		Metadata:    metadata,
	}
	if input.RefundID != "" {
		refundID := input.RefundID
		event.RefundID = &refundID
	}

	if err := s.repo.WithTx(tx).Append(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) HasEvent(ctx context.Context, orderID uuid.UUID, eventType enums.LedgerEventType) (bool, error) {
	if orderID == uuid.Nil {
		return false, fmt.Errorf("order id is required")
	}
	if !eventType.IsValid() {
		return false, fmt.Errorf("invalid ledger event type %q", eventType)
	}

	n, err := s.repo.Count(ctx, Filter{OrderID: orderID, Types: []enums.LedgerEventType{eventType}})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Entries requires an event or order scope; the ledger is never listed whole.
func (s *service) Entries(ctx context.Context, filter Filter) ([]models.LedgerEvent, error) {
	if filter.EventID == uuid.Nil && filter.OrderID == uuid.Nil {
		return nil, fmt.Errorf("event or order id is required")
	}
	return s.repo.Find(ctx, filter)
}
