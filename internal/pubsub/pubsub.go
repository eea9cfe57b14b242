package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// ConsumerFactory creates independent broker consumers.
// Each call returns a fresh subscriber bound to the given consumer group;
// closing it tears down that session only.
type ConsumerFactory interface {
	NewConsumer(groupID string) (message.Subscriber, error)
}

// ConsumerFactoryFunc adapts a plain function to a ConsumerFactory.
type ConsumerFactoryFunc func(groupID string) (message.Subscriber, error)

// NewConsumer calls f(groupID).
func (f ConsumerFactoryFunc) NewConsumer(groupID string) (message.Subscriber, error) {
	return f(groupID)
}

// Publisher defines the contract for sending raw payloads to a broker topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Broker is a driver that can both publish and hand out consumers.
type Broker interface {
	ConsumerFactory
	Publisher
}
