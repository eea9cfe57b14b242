package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Switch results reported through IncSwitch.
const (
	ResultSubscribed = "subscribed"
	ResultFailed     = "failed"
)

// Collector captures bridge events.
//
// Calls happen inline on the switch path and inside message pumps, so
// implementations must be cheap and safe for concurrent use.
type Collector interface {
	IncSwitch(result string)
	IncDisconnectError()
	IncForwarded()
	IncSkipped()
	IncDropped()
	SetRegisteredConsumers(n int)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncSwitch(string)           {}
func (noopCollector) IncDisconnectError()        {}
func (noopCollector) IncForwarded()              {}
func (noopCollector) IncSkipped()                {}
func (noopCollector) IncDropped()                {}
func (noopCollector) SetRegisteredConsumers(int) {}

// PrometheusCollector exposes bridge counters via Prometheus.
type PrometheusCollector struct {
	switches            *prometheus.CounterVec
	disconnectErrors    prometheus.Counter
	forwarded           prometheus.Counter
	skipped             prometheus.Counter
	dropped             prometheus.Counter
	registeredConsumers prometheus.Gauge
}

// NewPrometheusCollector registers the bridge metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer. Metrics that are already
// registered are reused, so several collectors may share one registry.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	switches, err := registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "topicbridge",
		Name:      "switches_total",
		Help:      "Topic switch attempts by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	disconnectErrors, err := registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "topicbridge",
		Name:      "disconnect_errors_total",
		Help:      "Failures while disconnecting superseded or closed consumers.",
	}))
	if err != nil {
		return nil, err
	}
	forwarded, err := registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "topicbridge",
		Name:      "forwarded_messages_total",
		Help:      "Broker messages forwarded to WebSocket clients.",
	}))
	if err != nil {
		return nil, err
	}
	skipped, err := registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "topicbridge",
		Name:      "skipped_messages_total",
		Help:      "Broker messages without a payload.",
	}))
	if err != nil {
		return nil, err
	}
	dropped, err := registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "topicbridge",
		Name:      "dropped_messages_total",
		Help:      "Broker messages the client connection could not accept.",
	}))
	if err != nil {
		return nil, err
	}
	registered, err := registerOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "topicbridge",
		Name:      "registered_consumers",
		Help:      "Consumers currently tracked by the registry.",
	}))
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		switches:            switches,
		disconnectErrors:    disconnectErrors,
		forwarded:           forwarded,
		skipped:             skipped,
		dropped:             dropped,
		registeredConsumers: registered,
	}, nil
}

func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func (c *PrometheusCollector) IncSwitch(result string) {
	c.switches.WithLabelValues(result).Inc()
}

func (c *PrometheusCollector) IncDisconnectError() {
	c.disconnectErrors.Inc()
}

func (c *PrometheusCollector) IncForwarded() {
	c.forwarded.Inc()
}

func (c *PrometheusCollector) IncSkipped() {
	c.skipped.Inc()
}

func (c *PrometheusCollector) IncDropped() {
	c.dropped.Inc()
}

func (c *PrometheusCollector) SetRegisteredConsumers(n int) {
	c.registeredConsumers.Set(float64(n))
}
