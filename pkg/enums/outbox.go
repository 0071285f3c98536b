package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateEvent        OutboxAggregateType = "event"
	AggregateOrder        OutboxAggregateType = "order"
	AggregateTicket       OutboxAggregateType = "ticket"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateEvent,
	AggregateOrder,
	AggregateTicket,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return known(a, validAggregateTypes)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventTicketRefunded           OutboxEventType = "ticket.refunded"
	EventOrderRefunded            OutboxEventType = "order.refunded"
	EventEventPublished           OutboxEventType = "event.published"
	EventEventUnpublished         OutboxEventType = "event.unpublished"
	EventEventCancelled           OutboxEventType = "event.cancelled"
	EventEventDeleted             OutboxEventType = "event.deleted"
	EventEventCompleted           OutboxEventType = "event.completed"
	EventTicketsIssued            OutboxEventType = "tickets.issued"
	EventTicketReissued           OutboxEventType = "ticket.reissued"
	EventNotificationEmailRequest OutboxEventType = "notification.email_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTicketRefunded,
	EventOrderRefunded,
	EventEventPublished,
	EventEventUnpublished,
	EventEventCancelled,
	EventEventDeleted,
	EventEventCompleted,
	EventTicketsIssued,
	EventTicketReissued,
	EventNotificationEmailRequest,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return known(e, validOutboxEventTypes)
}

// DeadLetterReason maps to outbox_dlq_error_reason_enum.
type DeadLetterReason string

const (
	DeadLetterMaxAttempts  DeadLetterReason = "max_attempts"
	DeadLetterNonRetryable DeadLetterReason = "non_retryable"
)

func (r DeadLetterReason) IsValid() bool {
	return r == DeadLetterMaxAttempts || r == DeadLetterNonRetryable
}
