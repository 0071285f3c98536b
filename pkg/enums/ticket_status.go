package enums

// TicketStatus tracks the lifecycle of a single admission ticket.
type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusRefunded  TicketStatus = "refunded"
)

var validTicketStatuses = []TicketStatus{
	TicketStatusValid,
	TicketStatusUsed,
	TicketStatusCancelled,
	TicketStatusRefunded,
}

// String implements fmt.Stringer.
func (s TicketStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TicketStatus.
func (s TicketStatus) IsValid() bool {
	return known(s, validTicketStatuses)
}

// Consumed reports whether a ticket in this status still holds a seat.
func (s TicketStatus) Consumed() bool {
	return s == TicketStatusValid || s == TicketStatusUsed
}
