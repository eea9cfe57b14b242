package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/nfrund/topicbridge/internal/pubsub"
)

var errUnknownTopic = errors.New("kafka: unknown topic or partition")

// fakeBroker hands out fakeConsumers and records the order of broker calls.
type fakeBroker struct {
	mu        sync.Mutex
	consumers []*fakeConsumer
	events    []string
	reject    map[string]bool
	createErr error
	closeErr  error
	// block makes Subscribe wait for its context; entered is signalled first.
	block   bool
	entered chan struct{}
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		reject:  make(map[string]bool),
		entered: make(chan struct{}, 8),
	}
}

func (b *fakeBroker) NewConsumer(groupID string) (message.Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.createErr != nil {
		return nil, b.createErr
	}
	fc := &fakeConsumer{groupID: groupID, broker: b}
	b.consumers = append(b.consumers, fc)
	b.events = append(b.events, "create:"+groupID)
	return fc, nil
}

func (b *fakeBroker) record(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBroker) snapshot() ([]*fakeConsumer, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	consumers := make([]*fakeConsumer, len(b.consumers))
	copy(consumers, b.consumers)
	events := make([]string, len(b.events))
	copy(events, b.events)
	return consumers, events
}

// publish delivers payload to every open consumer subscribed to topic and
// returns how many received it.
func (b *fakeBroker) publish(topic string, payload []byte) int {
	consumers, _ := b.snapshot()
	delivered := 0
	for _, fc := range consumers {
		if fc.deliver(topic, payload) {
			delivered++
		}
	}
	return delivered
}

// live counts consumers that have not been closed.
func (b *fakeBroker) live() int {
	consumers, _ := b.snapshot()
	n := 0
	for _, fc := range consumers {
		if !fc.isClosed() {
			n++
		}
	}
	return n
}

type fakeConsumer struct {
	groupID string
	broker  *fakeBroker

	mu         sync.Mutex
	topic      string
	out        chan *message.Message
	closed     bool
	closeCalls int
}

func (f *fakeConsumer) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	f.broker.mu.Lock()
	rejected := f.broker.reject[topic]
	block := f.broker.block
	f.broker.mu.Unlock()

	if block {
		f.broker.entered <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if rejected {
		return nil, errUnknownTopic
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, pubsub.ErrConsumerClosed
	}
	f.topic = topic
	f.out = make(chan *message.Message, 16)
	f.broker.record("subscribe:" + f.groupID)
	return f.out, nil
}

func (f *fakeConsumer) Close() error {
	f.mu.Lock()
	f.closeCalls++
	if !f.closed {
		f.closed = true
		if f.out != nil {
			close(f.out)
		}
	}
	f.mu.Unlock()

	f.broker.record("close:" + f.groupID)
	f.broker.mu.Lock()
	defer f.broker.mu.Unlock()
	return f.broker.closeErr
}

func (f *fakeConsumer) deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.out == nil || f.topic != topic {
		return false
	}
	select {
	case f.out <- message.NewMessage(watermill.NewUUID(), payload):
		return true
	default:
		return false
	}
}

func (f *fakeConsumer) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConsumer) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

// recordingSink stores every frame sent to it.
type recordingSink struct {
	mu     sync.Mutex
	frames []string
	err    error
	panics bool
}

func (s *recordingSink) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panics {
		panic("sink exploded")
	}
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, string(payload))
	return nil
}

func (s *recordingSink) Frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := make([]string, len(s.frames))
	copy(frames, s.frames)
	return frames
}

// countingCollector is a metrics.Collector that keeps plain counters.
type countingCollector struct {
	subscribed       atomic.Int64
	failed           atomic.Int64
	disconnectErrors atomic.Int64
	forwarded        atomic.Int64
	skipped          atomic.Int64
	dropped          atomic.Int64
	registered       atomic.Int64
}

func (c *countingCollector) IncSwitch(result string) {
	if result == "failed" {
		c.failed.Add(1)
		return
	}
	c.subscribed.Add(1)
}
func (c *countingCollector) IncDisconnectError()          { c.disconnectErrors.Add(1) }
func (c *countingCollector) IncForwarded()                { c.forwarded.Add(1) }
func (c *countingCollector) IncSkipped()                  { c.skipped.Add(1) }
func (c *countingCollector) IncDropped()                  { c.dropped.Add(1) }
func (c *countingCollector) SetRegisteredConsumers(n int) { c.registered.Store(int64(n)) }
