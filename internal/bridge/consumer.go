package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfrund/topicbridge/internal/metrics"
	"github.com/nfrund/topicbridge/internal/pubsub"
)

// Sink receives frames destined for one client connection.
// Send must not block on network I/O; the message pump calls it inline.
type Sink interface {
	Send(payload []byte) error
}

// Consumer is one broker subscription session bound to a single connection.
// Its message pump runs until Disconnect is called or the subscription ends.
type Consumer struct {
	groupID   string
	sub       message.Subscriber
	logger    *slog.Logger
	collector metrics.Collector
	tracer    trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	topic string
	done  chan struct{}

	once sync.Once
	err  error
}

func newConsumer(parent context.Context, groupID string, sub message.Subscriber, c *Controller) *Consumer {
	ctx, cancel := context.WithCancel(parent)
	return &Consumer{
		groupID:   groupID,
		sub:       sub,
		logger:    c.logger.With("consumer_group", groupID),
		collector: c.collector,
		tracer:    c.tracer,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// GroupID returns the consumer group this session was created with.
func (c *Consumer) GroupID() string {
	return c.groupID
}

// Topic returns the subscribed topic, or "" before Start succeeds.
func (c *Consumer) Topic() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topic
}

// Done is closed once the message pump has exited.
// It is nil if the consumer was never started.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Start subscribes to topic and begins forwarding payloads to sink.
func (c *Consumer) Start(topic string, sink Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return ErrAlreadyStarted
	}
	if err := c.ctx.Err(); err != nil {
		return err
	}

	messages, err := c.sub.Subscribe(c.ctx, topic)
	if err != nil {
		return err
	}

	c.topic = topic
	c.done = make(chan struct{})
	handle := pubsub.TracingMiddleware(c.tracer, topic)(c.forwardTo(sink))
	go c.pump(messages, handle, c.done)
	return nil
}

// Disconnect stops the pump, closes the broker session and waits for the pump
// to exit. Only the first call does any work; later calls return the same error.
func (c *Consumer) Disconnect() error {
	c.once.Do(func() {
		c.cancel()
		c.err = c.sub.Close()

		c.mu.Lock()
		done := c.done
		c.mu.Unlock()
		if done != nil {
			<-done
		}
	})
	return c.err
}

func (c *Consumer) pump(messages <-chan *message.Message, handle message.HandlerFunc, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Message pump panicked", "panic", r)
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				c.logger.Debug("Subscription channel closed")
				return
			}
			// A disconnect may race with delivery; nothing is forwarded after it.
			if c.ctx.Err() != nil {
				msg.Nack()
				return
			}
			if _, err := handle(msg); err != nil {
				c.logger.Warn("Failed to forward message", "msg_id", msg.UUID, "error", err)
			}
			msg.Ack()
		}
	}
}

func (c *Consumer) forwardTo(sink Sink) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		if len(msg.Payload) == 0 {
			c.collector.IncSkipped()
			return nil, nil
		}
		if err := sink.Send(msg.Payload); err != nil {
			c.collector.IncDropped()
			return nil, fmt.Errorf("forward to client: %w", err)
		}
		c.collector.IncForwarded()
		return nil, nil
	}
}
