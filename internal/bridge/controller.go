package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nfrund/topicbridge/internal/metrics"
	"github.com/nfrund/topicbridge/internal/pubsub"
)

// session is the per-connection state machine.
type session struct {
	id   ConnID
	sink Sink

	// lock serializes switches and close for this connection. It is a
	// channel so a waiting switch can give up when its context ends.
	lock chan struct{}

	// ctx is cancelled when the connection closes. Consumers derive from it.
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
	topic string
}

func (s *session) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) release() {
	<-s.lock
}

func (s *session) set(state State, topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.topic = topic
}

func (s *session) get() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.topic
}

// Controller switches each connection between broker topics, guaranteeing
// that at most one consumer delivers to a connection at any time.
type Controller struct {
	registry  *Registry
	factory   pubsub.ConsumerFactory
	logger    *slog.Logger
	collector metrics.Collector
	tracer    trace.Tracer
	groupIDs  func() string

	mu       sync.Mutex
	sessions map[ConnID]*session
	closed   bool
}

// Option is a function that configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithCollector sets the metrics collector.
func WithCollector(collector metrics.Collector) Option {
	return func(c *Controller) {
		c.collector = collector
	}
}

// WithTracer sets the tracer used for forwarded messages.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = tracer
	}
}

// WithGroupPrefix sets the prefix of generated consumer group ids.
func WithGroupPrefix(prefix string) Option {
	return func(c *Controller) {
		c.groupIDs = func() string { return pubsub.NewGroupID(prefix) }
	}
}

// WithGroupIDFunc replaces consumer group id generation. Every call must return a new id.
func WithGroupIDFunc(fn func() string) Option {
	return func(c *Controller) {
		c.groupIDs = fn
	}
}

// NewController creates a Controller that tracks consumers in registry and
// creates them through factory.
func NewController(registry *Registry, factory pubsub.ConsumerFactory, opts ...Option) *Controller {
	c := &Controller{
		registry:  registry,
		factory:   factory,
		logger:    slog.Default().With("component", "bridge"),
		collector: metrics.Noop(),
		tracer:    noop.NewTracerProvider().Tracer("bridge"),
		groupIDs:  func() string { return pubsub.NewGroupID(pubsub.DefaultGroupPrefix) },
		sessions:  make(map[ConnID]*session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open starts tracking a connection in the Idle state. No consumer is created
// until the first SwitchTopic.
func (c *Controller) Open(id ConnID, sink Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSessionClosed
	}
	if _, exists := c.sessions[id]; exists {
		return ErrDuplicateConnection
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.sessions[id] = &session{
		id:     id,
		sink:   sink,
		lock:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
	return nil
}

func (c *Controller) session(id ConnID) (*session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	return s, ok
}

// SwitchTopic replaces the connection's consumer with a new one subscribed to
// topic. Any previous consumer is disconnected before the new one is created.
// A new consumer group is used on every call, even for the same topic.
//
// If the new consumer cannot be created or subscribed, the client is sent one
// error notice and a *SubscribeError is returned. The connection stays usable.
func (c *Controller) SwitchTopic(ctx context.Context, id ConnID, topic string) error {
	s, ok := c.session(id)
	if !ok {
		return ErrUnknownConnection
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if state, _ := s.get(); state == StateClosed || s.ctx.Err() != nil {
		return ErrSessionClosed
	}

	logger := c.logger.With("conn_id", id, "topic", topic)
	_, previous := s.get()
	s.set(StateSwitching, "")

	if _, ok := c.registry.Get(id); ok {
		logger.Info("Switching topics, disconnecting previous consumer", "previous_topic", previous)
	}
	c.disconnect(id, logger)

	consumer, err := c.subscribe(s, topic)
	if err != nil {
		s.set(StateIdle, "")
		c.collector.IncSwitch(metrics.ResultFailed)

		subErr := &SubscribeError{Topic: topic, Err: err}
		logger.Error("Failed to switch topic", "error", err)
		if s.ctx.Err() == nil {
			if sendErr := s.sink.Send([]byte(subErr.Notice())); sendErr != nil {
				logger.Warn("Failed to deliver subscribe error notice", "error", sendErr)
			}
		}
		return subErr
	}

	s.set(StateSubscribed, topic)
	c.collector.IncSwitch(metrics.ResultSubscribed)
	logger.Info("Subscribed connection to topic", "consumer_group", consumer.GroupID())
	return nil
}

// subscribe creates, registers and starts a consumer. The consumer is
// registered before it subscribes so a concurrent close can still find it,
// and it stays registered if subscribing fails.
func (c *Controller) subscribe(s *session, topic string) (*Consumer, error) {
	groupID := c.groupIDs()
	sub, err := c.factory.NewConsumer(groupID)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	consumer := newConsumer(s.ctx, groupID, sub, c)
	c.registry.Set(s.id, consumer)
	c.collector.SetRegisteredConsumers(c.registry.Len())

	if err := consumer.Start(topic, s.sink); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return consumer, nil
}

// disconnect tears down and evicts the consumer registered for id, if any.
// Failures are logged and counted but never returned.
func (c *Controller) disconnect(id ConnID, logger *slog.Logger) {
	consumer, ok := c.registry.Get(id)
	if !ok {
		return
	}
	if err := consumer.Disconnect(); err != nil {
		c.collector.IncDisconnectError()
		logger.Warn("Failed to disconnect consumer",
			"consumer_group", consumer.GroupID(),
			"error", err)
	}
	c.registry.Remove(id)
	c.collector.SetRegisteredConsumers(c.registry.Len())
}

// Close disconnects the connection's consumer and forgets the connection.
// An in-flight switch is aborted where the broker allows it, and Close waits
// for it to finish before tearing down whatever it registered. Close is idempotent.
func (c *Controller) Close(id ConnID) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	if ok {
		delete(c.sessions, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	s.cancel()
	_ = s.acquire(context.Background())
	defer s.release()

	s.set(StateClosed, "")
	c.disconnect(id, c.logger.With("conn_id", id))
	c.logger.Debug("Connection closed", "conn_id", id)
}

// State reports the connection's state. Unknown connections report StateClosed.
func (c *Controller) State(id ConnID) State {
	s, ok := c.session(id)
	if !ok {
		return StateClosed
	}
	state, _ := s.get()
	return state
}

// Topic reports the topic the connection is subscribed to, or "".
func (c *Controller) Topic(id ConnID) string {
	s, ok := c.session(id)
	if !ok {
		return ""
	}
	_, topic := s.get()
	return topic
}

// Shutdown closes every open connection and refuses new ones.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	ids := make([]ConnID, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id ConnID) {
				defer wg.Done()
				c.Close(id)
			}(id)
		}
		wg.Wait()
	}()

	select {
	case <-done:
		c.logger.Info("Bridge controller shut down", "connections_closed", len(ids))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bridge shutdown: %w", ctx.Err())
	}
}
