package events

import (
	"time"

	"github.com/shopspring/decimal"

	internalevents "github.com/angelmondragon/eventdesk-backend/internal/events"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

type occurrenceRequest struct {
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	Label    string    `json:"label" validate:"max=100"`
}

type tierRequest struct {
	Name            string          `json:"name" validate:"required,max=100"`
	Description     string          `json:"description" validate:"max=1000"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency" validate:"omitempty,len=3"`
	InitialQuantity int             `json:"initial_quantity" validate:"gte=0"`
	MaxPerOrder     int             `json:"max_per_order" validate:"gte=0,max=100"`
	SalesStartAt    *time.Time      `json:"sales_start_at"`
	SalesEndAt      *time.Time      `json:"sales_end_at"`
	IsHidden        bool            `json:"is_hidden"`
}

// eventRequest is the body of create and update. On update, omitted
// occurrences or tiers leave the existing ones in place.
type eventRequest struct {
	Title        string              `json:"title" validate:"required,max=200"`
	Slug         string              `json:"slug" validate:"max=200"`
	Description  string              `json:"description" validate:"max=10000"`
	LocationType string              `json:"location_type" validate:"omitempty,oneof=physical online hybrid"`
	VenueName    string              `json:"venue_name" validate:"max=200"`
	AddressText  string              `json:"address_text" validate:"max=500"`
	City         string              `json:"city" validate:"max=100"`
	Currency     string              `json:"currency" validate:"omitempty,len=3"`
	SalesStartAt *time.Time          `json:"sales_start_at"`
	SalesEndAt   *time.Time          `json:"sales_end_at"`
	Occurrences  []occurrenceRequest `json:"occurrences" validate:"dive"`
	Tiers        []tierRequest       `json:"ticket_tiers" validate:"dive"`
}

func (req eventRequest) fields() internalevents.EventFields {
	return internalevents.EventFields{
		Title:        req.Title,
		Slug:         req.Slug,
		Description:  req.Description,
		LocationType: enums.LocationType(req.LocationType),
		VenueName:    req.VenueName,
		AddressText:  req.AddressText,
		City:         req.City,
		Currency:     enums.Currency(req.Currency),
		SalesStartAt: req.SalesStartAt,
		SalesEndAt:   req.SalesEndAt,
	}
}

func (req eventRequest) occurrences() []internalevents.OccurrenceInput {
	out := make([]internalevents.OccurrenceInput, 0, len(req.Occurrences))
	for _, o := range req.Occurrences {
		out = append(out, internalevents.OccurrenceInput{StartsAt: o.StartsAt, EndsAt: o.EndsAt, Label: o.Label})
	}
	return out
}

func (req eventRequest) tiers() []internalevents.TierInput {
	out := make([]internalevents.TierInput, 0, len(req.Tiers))
	for _, t := range req.Tiers {
		out = append(out, internalevents.TierInput{
			Name:            t.Name,
			Description:     t.Description,
			Price:           t.Price,
			Currency:        enums.Currency(t.Currency),
			InitialQuantity: t.InitialQuantity,
			MaxPerOrder:     t.MaxPerOrder,
			SalesStartAt:    t.SalesStartAt,
			SalesEndAt:      t.SalesEndAt,
			IsHidden:        t.IsHidden,
		})
	}
	return out
}

type deleteRequest struct {
	Reason        string `json:"reason" validate:"max=500"`
	ReleaseToPool bool   `json:"release_to_pool"`
}
