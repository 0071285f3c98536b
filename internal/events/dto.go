package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/eventdesk-backend/internal/access"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// DeleteMode reports which branch a delete request took.
type DeleteMode string

const (
	DeleteModeDeleted   DeleteMode = "deleted"
	DeleteModeCancelled DeleteMode = "cancelled"
)

// OccurrenceInput is one scheduled date on create or update.
type OccurrenceInput struct {
	StartsAt time.Time
	EndsAt   time.Time
	Label    string
}

// TierInput describes a ticket tier. Zero values fall back to cad pricing and a
// per-order cap of 10.
type TierInput struct {
	Name            string
	Description     string
	Price           decimal.Decimal
	Currency        enums.Currency
	InitialQuantity int
	MaxPerOrder     int
	SalesStartAt    *time.Time
	SalesEndAt      *time.Time
	IsHidden        bool
}

// EventFields holds the editable event attributes shared by create and update.
type EventFields struct {
	Title        string
	Slug         string
	Description  string
	LocationType enums.LocationType
	VenueName    string
	AddressText  string
	City         string
	Currency     enums.Currency
	SalesStartAt *time.Time
	SalesEndAt   *time.Time
}

type CreateEventInput struct {
	Actor       access.Actor
	Fields      EventFields
	Occurrences []OccurrenceInput
	Tiers       []TierInput
}

// UpdateEventInput replaces occurrences and tiers only when the slices are non-empty.
type UpdateEventInput struct {
	Actor       access.Actor
	EventID     uuid.UUID
	Fields      EventFields
	Occurrences []OccurrenceInput
	Tiers       []TierInput
}

type DeleteEventInput struct {
	Actor         access.Actor
	EventID       uuid.UUID
	Reason        string
	ReleaseToPool bool
}

// EventDTO is the organizer-facing view of an event with its schedule and tiers.
type EventDTO struct {
	ID                 uuid.UUID          `json:"id"`
	OrganizerID        uuid.UUID          `json:"organizer_id"`
	Status             enums.EventStatus  `json:"status"`
	Title              string             `json:"title"`
	Slug               string             `json:"slug"`
	Description        *string            `json:"description,omitempty"`
	LocationType       enums.LocationType `json:"location_type"`
	VenueName          *string            `json:"venue_name,omitempty"`
	AddressText        *string            `json:"address_text,omitempty"`
	City               *string            `json:"city,omitempty"`
	Currency           enums.Currency     `json:"currency"`
	SalesStartAt       *time.Time         `json:"sales_start_at,omitempty"`
	SalesEndAt         *time.Time         `json:"sales_end_at,omitempty"`
	TotalCapacity      int                `json:"total_capacity"`
	TotalTicketsSold   int                `json:"total_tickets_sold"`
	CancellationReason *string            `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	Occurrences        []OccurrenceDTO    `json:"occurrences"`
	Tiers              []TierDTO          `json:"ticket_tiers"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type OccurrenceDTO struct {
	ID       uuid.UUID `json:"id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Label    *string   `json:"label,omitempty"`
}

type TierDTO struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Description       *string         `json:"description,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Currency          enums.Currency  `json:"currency"`
	InitialQuantity   int             `json:"initial_quantity"`
	RemainingQuantity int             `json:"remaining_quantity"`
	MaxPerOrder       int             `json:"max_per_order"`
	SalesStartAt      *time.Time      `json:"sales_start_at,omitempty"`
	SalesEndAt        *time.Time      `json:"sales_end_at,omitempty"`
	IsHidden          bool            `json:"is_hidden"`
}

// StatusResult is returned by lifecycle transitions.
type StatusResult struct {
	ID     uuid.UUID         `json:"id"`
	Status enums.EventStatus `json:"status"`
}

// FailedRefund names an order whose processor refund failed during a cascade.
type FailedRefund struct {
	OrderID     uuid.UUID `json:"order_id"`
	AmountMinor int64     `json:"amount_minor"`
	Error       string    `json:"error"`
}

type DeleteEventResult struct {
	ID               uuid.UUID      `json:"id"`
	Mode             DeleteMode     `json:"mode"`
	CancelledTickets int            `json:"cancelled_tickets,omitempty"`
	RefundedOrders   []uuid.UUID    `json:"refunded_orders,omitempty"`
	FailedRefunds    []FailedRefund `json:"failed_refunds,omitempty"`
	EmailsSent       int            `json:"emails_sent,omitempty"`
}

// FromModel maps the persisted event and its children into a DTO.
func FromModel(m *models.Event, occurrences []models.EventOccurrence, tiers []models.TicketTier) *EventDTO {
	if m == nil {
		return nil
	}
	dto := &EventDTO{
		ID:                 m.ID,
		OrganizerID:        m.OrganizerID,
		Status:             m.Status,
		Title:              m.Title,
		Slug:               m.Slug,
		Description:        m.Description,
		LocationType:       m.LocationType,
		VenueName:          m.VenueName,
		AddressText:        m.AddressText,
		City:               m.City,
		Currency:           m.Currency,
		SalesStartAt:       m.SalesStartAt,
		SalesEndAt:         m.SalesEndAt,
		TotalCapacity:      m.TotalCapacity,
		TotalTicketsSold:   m.TotalTicketsSold,
		CancellationReason: m.CancellationReason,
		CancelledAt:        m.CancelledAt,
		Occurrences:        make([]OccurrenceDTO, 0, len(occurrences)),
		Tiers:              make([]TierDTO, 0, len(tiers)),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	for _, o := range occurrences {
		dto.Occurrences = append(dto.Occurrences, OccurrenceDTO{
			ID:       o.ID,
			StartsAt: o.StartsAt,
			EndsAt:   o.EndsAt,
			Label:    o.Label,
		})
	}
	for _, t := range tiers {
		dto.Tiers = append(dto.Tiers, TierDTO{
			ID:                t.ID,
			Name:              t.Name,
			Description:       t.Description,
			Price:             t.Price,
			Currency:          t.Currency,
			InitialQuantity:   t.InitialQuantity,
			RemainingQuantity: t.RemainingQuantity,
			MaxPerOrder:       t.MaxPerOrder,
			SalesStartAt:      t.SalesStartAt,
			SalesEndAt:        t.SalesEndAt,
			IsHidden:          t.IsHidden,
		})
	}
	return dto
}
