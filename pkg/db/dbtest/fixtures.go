package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// Fixtures seeds rows for engine tests.
type Fixtures struct {
	t  *testing.T
	db *gorm.DB
}

func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

func (f *Fixtures) create(row any) {
	f.t.Helper()
	if err := f.db.Create(row).Error; err != nil {
		f.t.Fatalf("seed %T: %v", row, err)
	}
}

func (f *Fixtures) Organizer(subject string) *models.Organizer {
	f.t.Helper()
	acct := "acct_" + subject
	org := &models.Organizer{
		ID:                        uuid.New(),
		AuthSubject:               subject,
		Email:                     subject + "@example.com",
		StripeAccountID:           &acct,
		StripeOnboardingCompleted: true,
	}
	f.create(org)
	return org
}

// Event seeds an event with a single occurrence starting a week from now.
func (f *Fixtures) Event(organizerID uuid.UUID, status enums.EventStatus) *models.Event {
	f.t.Helper()
	venue := "Massey Hall"
	city := "Toronto"
	event := &models.Event{
		ID:           uuid.New(),
		OrganizerID:  organizerID,
		Status:       status,
		Title:        "Winter Gala",
		Slug:         "winter-gala-" + uuid.NewString()[:8],
		LocationType: enums.LocationTypePhysical,
		VenueName:    &venue,
		City:         &city,
		Currency:     enums.CurrencyCAD,
	}
	f.create(event)
	start := time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Second)
	f.create(&models.EventOccurrence{
		ID:       uuid.New(),
		EventID:  event.ID,
		StartsAt: start,
		EndsAt:   start.Add(3 * time.Hour),
	})
	return event
}

// Tier seeds a tier and grows the event's capacity to match.
func (f *Fixtures) Tier(eventID uuid.UUID, name string, price string, initial, remaining int) *models.TicketTier {
	f.t.Helper()
	tier := &models.TicketTier{
		ID:                uuid.New(),
		EventID:           eventID,
		Name:              name,
		Price:             decimal.RequireFromString(price),
		Currency:          enums.CurrencyCAD,
		InitialQuantity:   initial,
		RemainingQuantity: remaining,
		MaxPerOrder:       10,
	}
	f.create(tier)
	if err := f.db.Exec(
		"UPDATE events SET total_capacity = total_capacity + ?, total_tickets_sold = total_tickets_sold + ? WHERE id = ?",
		initial, initial-remaining, eventID,
	).Error; err != nil {
		f.t.Fatalf("grow event capacity: %v", err)
	}
	return tier
}

// Order seeds a completed order. An empty paymentRef seeds a manual order.
func (f *Fixtures) Order(eventID uuid.UUID, paymentRef string) *models.Order {
	f.t.Helper()
	order := &models.Order{
		ID:          uuid.New(),
		EventID:     eventID,
		Currency:    enums.CurrencyCAD,
		Status:      enums.OrderStatusCompleted,
		SourceApp:   enums.OrderSourceCheckout,
		TotalAmount: decimal.Zero,
		BuyerEmail:  "buyer@example.com",
		BuyerName:   "Buyer",
	}
	if paymentRef != "" {
		order.PaymentReference = &paymentRef
	}
	f.create(order)
	return order
}

// Ticket seeds a ticket without touching inventory; seed tiers with remaining
// already reduced for sold seats.
func (f *Fixtures) Ticket(order *models.Order, tier *models.TicketTier, email string, status enums.TicketStatus) *models.Ticket {
	f.t.Helper()
	ticket := &models.Ticket{
		ID:            uuid.New(),
		OrderID:       order.ID,
		TierID:        tier.ID,
		EventID:       tier.EventID,
		AttendeeName:  "Attendee " + email,
		AttendeeEmail: email,
		Status:        status,
		QRCodeSecret:  uuid.NewString(),
	}
	f.create(ticket)
	return ticket
}

func (f *Fixtures) ReloadTier(id uuid.UUID) models.TicketTier {
	f.t.Helper()
	var tier models.TicketTier
	if err := f.db.First(&tier, "id = ?", id).Error; err != nil {
		f.t.Fatalf("reload tier: %v", err)
	}
	return tier
}

func (f *Fixtures) ReloadEvent(id uuid.UUID) models.Event {
	f.t.Helper()
	var event models.Event
	if err := f.db.First(&event, "id = ?", id).Error; err != nil {
		f.t.Fatalf("reload event: %v", err)
	}
	return event
}

func (f *Fixtures) ReloadTicket(id uuid.UUID) models.Ticket {
	f.t.Helper()
	var ticket models.Ticket
	if err := f.db.First(&ticket, "id = ?", id).Error; err != nil {
		f.t.Fatalf("reload ticket: %v", err)
	}
	return ticket
}

func (f *Fixtures) ReloadOrder(id uuid.UUID) models.Order {
	f.t.Helper()
	var order models.Order
	if err := f.db.First(&order, "id = ?", id).Error; err != nil {
		f.t.Fatalf("reload order: %v", err)
	}
	return order
}

// Count returns the number of rows in model's table matching the optional condition.
func (f *Fixtures) Count(model any, query string, args ...any) int64 {
	f.t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		f.t.Fatalf("count %T: %v", model, err)
	}
	return n
}
