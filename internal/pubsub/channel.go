package pubsub

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// ErrConsumerClosed is returned when subscribing on a consumer that was already closed.
var ErrConsumerClosed = errors.New("consumer closed")

// ChannelBroker is an in-memory broker built on watermill's GoChannel.
// Every consumer gets its own subscription, so closing one consumer never
// affects another. Messages published before a consumer subscribes are not
// replayed, which matches a Kafka group starting at the newest offset.
type ChannelBroker struct {
	goChannel *gochannel.GoChannel
	logger    watermill.LoggerAdapter
}

// NewChannelBroker initializes an in-memory broker.
func NewChannelBroker(logger watermill.LoggerAdapter) *ChannelBroker {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &ChannelBroker{
		goChannel: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, logger),
		logger: logger,
	}
}

// NewConsumer implements ConsumerFactory.
func (b *ChannelBroker) NewConsumer(groupID string) (message.Subscriber, error) {
	return &channelConsumer{
		groupID: groupID,
		broker:  b,
	}, nil
}

// Publish implements Publisher.
func (b *ChannelBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return b.goChannel.Publish(topic, msg)
}

// Close shuts down the underlying GoChannel and every open subscription.
func (b *ChannelBroker) Close() error {
	return b.goChannel.Close()
}

// channelConsumer is one consumer session on a ChannelBroker.
type channelConsumer struct {
	groupID string
	broker  *ChannelBroker

	mu      sync.Mutex
	cancels []context.CancelFunc
	closed  bool
}

func (c *channelConsumer) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConsumerClosed
	}

	// GoChannel ends a subscription when its context is done.
	subCtx, cancel := context.WithCancel(ctx)
	messages, err := c.broker.goChannel.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		return nil, err
	}
	c.cancels = append(c.cancels, cancel)

	c.broker.logger.Debug("Channel consumer subscribed", watermill.LogFields{
		"topic":          topic,
		"consumer_group": c.groupID,
	})
	return messages, nil
}

func (c *channelConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
	return nil
}
