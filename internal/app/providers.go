package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"

	"github.com/nfrund/topicbridge/internal/bridge"
	"github.com/nfrund/topicbridge/internal/config"
	"github.com/nfrund/topicbridge/internal/metrics"
	"github.com/nfrund/topicbridge/internal/pubsub"
	"github.com/nfrund/topicbridge/internal/server"
	"github.com/nfrund/topicbridge/internal/websocket"
)

// clientID identifies this service to the Kafka cluster.
const clientID = "topicbridge"

func (a *App) provideTracing(i do.Injector) (*Tracing, error) {
	cfg := do.MustInvoke[*config.Config](i)
	tracer, shutdown, err := pubsub.SetupOTel(context.Background(), cfg.Tracing)
	if err != nil {
		return nil, err
	}
	a.onShutdown("tracing", shutdown)
	return &Tracing{Tracer: tracer}, nil
}

func (a *App) provideBroker(i do.Injector) (pubsub.Broker, error) {
	cfg := do.MustInvoke[*config.Config](i)
	logger := do.MustInvoke[*slog.Logger](i)
	adapter := pubsub.NewSlogAdapter(logger.With("component", "broker"), false)

	var broker pubsub.Broker
	switch cfg.BrokerDriver {
	case config.DriverMemory:
		logger.Info("Using in-memory broker")
		broker = pubsub.NewChannelBroker(adapter)
	case config.DriverKafka:
		logger.Info("Using Kafka broker", "brokers", cfg.Brokers())
		kafkaBroker, err := pubsub.NewKafkaBroker(pubsub.KafkaConfig{
			Brokers:  cfg.Brokers(),
			ClientID: clientID,
		}, adapter)
		if err != nil {
			return nil, err
		}
		broker = kafkaBroker
	default:
		return nil, fmt.Errorf("unknown broker driver %q", cfg.BrokerDriver)
	}

	a.onShutdown("broker", func(context.Context) error { return broker.Close() })
	return broker, nil
}

func providePublisher(i do.Injector) (pubsub.Publisher, error) {
	broker, err := do.Invoke[pubsub.Broker](i)
	if err != nil {
		return nil, err
	}
	tracing, err := do.Invoke[*Tracing](i)
	if err != nil {
		return nil, err
	}
	return pubsub.NewTracingPublisher(broker, tracing.Tracer), nil
}

func provideMetricsRegistry(i do.Injector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return reg, nil
}

func provideCollector(i do.Injector) (metrics.Collector, error) {
	reg := do.MustInvoke[*prometheus.Registry](i)
	return metrics.NewPrometheusCollector(reg)
}

func provideRegistry(i do.Injector) (*bridge.Registry, error) {
	return bridge.NewRegistry(), nil
}

func (a *App) provideController(i do.Injector) (*bridge.Controller, error) {
	cfg := do.MustInvoke[*config.Config](i)
	logger := do.MustInvoke[*slog.Logger](i)

	broker, err := do.Invoke[pubsub.Broker](i)
	if err != nil {
		return nil, err
	}
	tracing, err := do.Invoke[*Tracing](i)
	if err != nil {
		return nil, err
	}
	collector, err := do.Invoke[metrics.Collector](i)
	if err != nil {
		return nil, err
	}

	controller := bridge.NewController(do.MustInvoke[*bridge.Registry](i), broker,
		bridge.WithLogger(logger.With("component", "bridge")),
		bridge.WithCollector(collector),
		bridge.WithTracer(tracing.Tracer),
		bridge.WithGroupPrefix(cfg.GroupPrefix),
	)
	a.onShutdown("bridge", controller.Shutdown)
	return controller, nil
}

func provideHandler(i do.Injector) (*websocket.Handler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	controller, err := do.Invoke[*bridge.Controller](i)
	if err != nil {
		return nil, err
	}
	return websocket.NewHandler(controller, websocket.Config{
		SendBuffer:     cfg.SendBuffer,
		WriteTimeout:   cfg.WriteTimeout,
		PingInterval:   cfg.PingInterval,
		OriginPatterns: cfg.OriginPatterns,
	}), nil
}

func (a *App) provideServer(i do.Injector) (*server.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	handler, err := do.Invoke[*websocket.Handler](i)
	if err != nil {
		return nil, err
	}
	reg, err := do.Invoke[*prometheus.Registry](i)
	if err != nil {
		return nil, err
	}

	srv := server.New(handler, server.Options{
		UpgradeRate: cfg.UpgradeRate,
		Registry:    reg,
		Logger:      do.MustInvoke[*slog.Logger](i),
	})
	a.onShutdown("http", srv.Shutdown)
	return srv, nil
}
