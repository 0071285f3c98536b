package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/pkg/config"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox/payloads"
)

// Route is where one event type is published and how its data decodes.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) Route {
	return Route{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(data json.RawMessage) (any, error) {
			v := new(T)
			if err := json.Unmarshal(data, v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// ResolvedEvent is a validated outbox row ready to publish.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// NonRetryableError marks a row the publisher should dead-letter immediately.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

// NewEventRegistry routes email requests to the notification topic and everything else to the domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	domain, notify := cfg.DomainTopic, cfg.NotificationTopic
	if domain == "" {
		return nil, errors.New("domain topic is required")
	}
	if notify == "" {
		return nil, errors.New("notification topic is required")
	}

	routes := []Route{
		route[payloads.TicketRefundedEvent](enums.EventTicketRefunded, enums.AggregateTicket, domain),
		route[payloads.OrderRefundedEvent](enums.EventOrderRefunded, enums.AggregateOrder, domain),
		route[payloads.EventStatusChangedEvent](enums.EventEventPublished, enums.AggregateEvent, domain),
		route[payloads.EventStatusChangedEvent](enums.EventEventUnpublished, enums.AggregateEvent, domain),
		route[payloads.EventStatusChangedEvent](enums.EventEventCompleted, enums.AggregateEvent, domain),
		route[payloads.EventCancelledEvent](enums.EventEventCancelled, enums.AggregateEvent, domain),
		route[payloads.EventDeletedEvent](enums.EventEventDeleted, enums.AggregateEvent, domain),
		route[payloads.TicketsIssuedEvent](enums.EventTicketsIssued, enums.AggregateOrder, domain),
		route[payloads.TicketReissuedEvent](enums.EventTicketReissued, enums.AggregateTicket, domain),
		route[payloads.EmailRequestedEvent](enums.EventNotificationEmailRequest, enums.AggregateNotification, notify),
	}

	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]Route, len(routes))}
	for _, r := range routes {
		reg.routes[r.EventType] = r
	}
	return reg, nil
}

// Resolve checks the row against its route and decodes the payload. Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	rt, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case rt.AggregateType != event.AggregateType:
		return nil, permanent("aggregate mismatch: expected %s got %s", rt.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("payload missing for %s", event.EventType)
	}

	payload, err := rt.decode(envelope.Data)
	if err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Route: rt, Envelope: envelope, Payload: payload}, nil
}
