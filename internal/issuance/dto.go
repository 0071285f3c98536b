package issuance

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/internal/access"
)

// Attendee is the person a ticket is issued to.
type Attendee struct {
	Name  string
	Email string
}

type IssueTicketsInput struct {
	Actor    access.Actor
	EventID  uuid.UUID
	TierID   uuid.UUID
	Quantity int
	Attendee Attendee
	Reason   string
	IsFree   bool
}

type IssueTicketsResult struct {
	OrderID   uuid.UUID   `json:"order_id"`
	TicketIDs []uuid.UUID `json:"ticket_ids"`
}

type ReissueTicketInput struct {
	Actor       access.Actor
	OrderID     uuid.UUID
	OldTicketID uuid.UUID
	NewAttendee Attendee
	Reason      string
}

type ReissueTicketResult struct {
	NewTicketID uuid.UUID `json:"new_ticket_id"`
}

// SendTicketsInput sends the valid tickets among TicketIDs to Email.
type SendTicketsInput struct {
	Actor     access.Actor
	TicketIDs []uuid.UUID
	Email     string
	Name      string
}

type SendTicketsResult struct {
	Sent int `json:"sent"`
}
