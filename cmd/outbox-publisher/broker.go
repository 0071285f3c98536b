package main

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/eventdesk-backend/pkg/outbox/registry"
)

// broker is the slice of Pub/Sub the publisher needs.
type broker interface {
	Ping(ctx context.Context) error
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

type topicPublisherSource interface {
	Ping(ctx context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type pubsubBroker struct {
	client topicPublisherSource
}

func newPubSubBroker(client topicPublisherSource) (*pubsubBroker, error) {
	if client == nil {
		return nil, errors.New("pubsub client is required")
	}
	return &pubsubBroker{client: client}, nil
}

func (b *pubsubBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

// Publish blocks until the server acks. An unconfigured topic is never retried.
func (b *pubsubBroker) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	pub := b.client.Publisher(topic)
	if pub == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	result := pub.Publish(ctx, &gcppubsub.Message{Data: data, Attributes: attrs})
	if result == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	return result.Get(ctx)
}
