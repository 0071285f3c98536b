package refunds

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/money"
)

const (
	GuardScopeTicket = "ticket-refund"
	GuardScopeOrder  = "order-refund"
	GuardScopeEvent  = "event-cancel"
)

// ResolveCurrency picks the tier currency, then the order currency, then cad.
func ResolveCurrency(tier *models.TicketTier, order *models.Order) enums.Currency {
	var tierCurrency, orderCurrency string
	if tier != nil {
		tierCurrency = string(tier.Currency)
	}
	if order != nil {
		orderCurrency = string(order.Currency)
	}
	return enums.FirstCurrency(tierCurrency, orderCurrency)
}

// Line is one ticket priced at its tier's current price.
type Line struct {
	Ticket      models.Ticket
	Tier        models.TicketTier
	Currency    enums.Currency
	Amount      decimal.Decimal
	AmountMinor int64
}

// PriceTickets prices every ticket against its tier.
func PriceTickets(tickets []models.Ticket, tiers []models.TicketTier, order *models.Order) ([]Line, error) {
	byID := make(map[uuid.UUID]models.TicketTier, len(tiers))
	for _, tier := range tiers {
		byID[tier.ID] = tier
	}
	lines := make([]Line, 0, len(tickets))
	for _, ticket := range tickets {
		tier, ok := byID[ticket.TierID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket tier not found")
		}
		currency := ResolveCurrency(&tier, order)
		lines = append(lines, Line{
			Ticket:      ticket,
			Tier:        tier,
			Currency:    currency,
			Amount:      tier.Price,
			AmountMinor: money.ToMinorUnits(tier.Price, currency),
		})
	}
	return lines, nil
}

// Totals sums display and minor amounts across lines.
func Totals(lines []Line) (decimal.Decimal, int64) {
	display := decimal.Zero
	var minor int64
	for _, line := range lines {
		display = display.Add(line.Amount)
		minor += line.AmountMinor
	}
	return display, minor
}

// TierCounts counts lines per tier for a batched inventory release.
func TierCounts(lines []Line) map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	for _, line := range lines {
		counts[line.Tier.ID]++
	}
	return counts
}

func ticketIDs(lines []Line) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.Ticket.ID)
	}
	return ids
}

// AttendeeNotice is one cancellation email worth of tickets.
type AttendeeNotice struct {
	Email     string
	Name      string
	TierNames []string
	Refund    decimal.Decimal
}

// GroupByAttendee aggregates lines per attendee email in first-seen order. Refund
// is zero for lines the caller did not refund.
func GroupByAttendee(lines []Line, refunded func(Line) bool) []AttendeeNotice {
	index := map[string]int{}
	var notices []AttendeeNotice
	for _, line := range lines {
		email := line.Ticket.AttendeeEmail
		i, ok := index[email]
		if !ok {
			i = len(notices)
			index[email] = i
			notices = append(notices, AttendeeNotice{
				Email:  email,
				Name:   line.Ticket.AttendeeName,
				Refund: decimal.Zero,
			})
		}
		notices[i].TierNames = append(notices[i].TierNames, line.Tier.Name)
		if refunded == nil || refunded(line) {
			notices[i].Refund = notices[i].Refund.Add(line.Amount)
		}
	}
	return notices
}

// JoinedTierNames renders tier names the way cancellation emails list them.
func (n AttendeeNotice) JoinedTierNames() string {
	return strings.Join(n.TierNames, ", ")
}

func TicketIdempotencyKey(ticketID uuid.UUID) string {
	return GuardScopeTicket + ":" + ticketID.String()
}

// OrderIdempotencyKey is stable for the same order and ticket set regardless of order.
func OrderIdempotencyKey(orderID uuid.UUID, ticketIDs []uuid.UUID) string {
	ids := make([]string, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return GuardScopeOrder + ":" + orderID.String() + ":" + hex.EncodeToString(sum[:8])
}

func EventCancelIdempotencyKey(eventID, orderID uuid.UUID) string {
	return GuardScopeEvent + ":" + eventID.String() + ":" + orderID.String()
}
