package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

// TicketRefundedEvent is emitted once a single-ticket refund is reconciled locally.
type TicketRefundedEvent struct {
	TicketID       uuid.UUID          `json:"ticket_id"`
	OrderID        uuid.UUID          `json:"order_id"`
	EventID        uuid.UUID          `json:"event_id"`
	TierID         uuid.UUID          `json:"tier_id"`
	RefundID       string             `json:"refund_id"`
	AmountMinor    int64              `json:"amount_minor"`
	Currency       enums.Currency     `json:"currency"`
	Status         enums.TicketStatus `json:"status"`
	ReleasedToPool bool               `json:"released_to_pool"`
	Reason         string             `json:"reason"`
}

// OrderRefundedEvent covers a whole or partial order refund.
type OrderRefundedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	EventID        uuid.UUID         `json:"event_id"`
	TicketIDs      []uuid.UUID       `json:"ticket_ids"`
	RefundID       string            `json:"refund_id"`
	AmountMinor    int64             `json:"amount_minor"`
	Currency       enums.Currency    `json:"currency"`
	OrderStatus    enums.OrderStatus `json:"order_status"`
	ReleasedToPool bool              `json:"released_to_pool"`
	Reason         string            `json:"reason"`
}

// EventStatusChangedEvent reports publish, unpublish, cancel and completion transitions.
type EventStatusChangedEvent struct {
	EventID     uuid.UUID         `json:"event_id"`
	OrganizerID uuid.UUID         `json:"organizer_id"`
	From        enums.EventStatus `json:"from"`
	To          enums.EventStatus `json:"to"`
	Reason      string            `json:"reason,omitempty"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// EventDeletedEvent is emitted when an event with no tickets is removed outright.
type EventDeletedEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	OrganizerID uuid.UUID `json:"organizer_id"`
	Title       string    `json:"title"`
}

// EventCancelledEvent summarizes a delete request that cascaded into a cancellation.
type EventCancelledEvent struct {
	EventID          uuid.UUID   `json:"event_id"`
	OrganizerID      uuid.UUID   `json:"organizer_id"`
	Reason           string      `json:"reason"`
	CancelledTickets int         `json:"cancelled_tickets"`
	RefundedOrders   []uuid.UUID `json:"refunded_orders"`
	FailedOrders     []uuid.UUID `json:"failed_orders,omitempty"`
	ReleasedToPool   bool        `json:"released_to_pool"`
}

// TicketsIssuedEvent is emitted for organizer-issued (comp or manual) tickets.
type TicketsIssuedEvent struct {
	OrderID   uuid.UUID   `json:"order_id"`
	EventID   uuid.UUID   `json:"event_id"`
	TierID    uuid.UUID   `json:"tier_id"`
	TicketIDs []uuid.UUID `json:"ticket_ids"`
	IsFree    bool        `json:"is_free"`
	Reason    string      `json:"reason"`
}

// TicketReissuedEvent links a replacement ticket to the one it cancelled.
type TicketReissuedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	EventID     uuid.UUID `json:"event_id"`
	OldTicketID uuid.UUID `json:"old_ticket_id"`
	NewTicketID uuid.UUID `json:"new_ticket_id"`
	Reason      string    `json:"reason"`
}

// EmailRequestedEvent asks the mail delivery service to render and send a template.
type EmailRequestedEvent struct {
	Template enums.EmailTemplate `json:"template"`
	To       string              `json:"to"`
	Subject  string              `json:"subject"`
	From     string              `json:"from,omitempty"`
	Data     map[string]any      `json:"data"`
}
