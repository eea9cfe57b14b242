package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfrund/topicbridge/internal/bridge"
	"github.com/nfrund/topicbridge/internal/config"
	"github.com/nfrund/topicbridge/internal/pubsub"
	"github.com/nfrund/topicbridge/internal/server"
)

// Tracing is the process-wide tracer.
type Tracing struct {
	Tracer trace.Tracer
}

type shutdownHook struct {
	name string
	fn   func(context.Context) error
}

// App owns the service container for one process. Services are built lazily
// on first use, so commands that only publish never open an HTTP listener.
type App struct {
	injector *do.RootScope
	cfg      *config.Config
	logger   *slog.Logger

	mu    sync.Mutex
	hooks []shutdownHook
}

// New registers every service provider for cfg.
func New(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		injector: do.New(),
		cfg:      cfg,
		logger:   logger,
	}

	do.ProvideValue(a.injector, cfg)
	do.ProvideValue(a.injector, logger)
	do.Provide(a.injector, a.provideTracing)
	do.Provide(a.injector, a.provideBroker)
	do.Provide(a.injector, providePublisher)
	do.Provide(a.injector, provideMetricsRegistry)
	do.Provide(a.injector, provideCollector)
	do.Provide(a.injector, provideRegistry)
	do.Provide(a.injector, a.provideController)
	do.Provide(a.injector, provideHandler)
	do.Provide(a.injector, a.provideServer)

	return a
}

// onShutdown records a cleanup step. Steps run in reverse registration order,
// and a service is always built after its dependencies, so dependents stop first.
func (a *App) onShutdown(name string, fn func(context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, shutdownHook{name: name, fn: fn})
}

// Publisher returns the traced publisher for the configured broker.
func (a *App) Publisher() (pubsub.Publisher, error) {
	return do.Invoke[pubsub.Publisher](a.injector)
}

// Controller returns the bridge controller.
func (a *App) Controller() (*bridge.Controller, error) {
	return do.Invoke[*bridge.Controller](a.injector)
}

// Run serves HTTP on the configured address until ctx is cancelled, then
// shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.HTTPAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run with a caller-supplied listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv, err := do.Invoke[*server.Server](a.injector)
	if err != nil {
		_ = ln.Close()
		return errors.Join(fmt.Errorf("build server: %w", err), a.Shutdown())
	}
	a.logger.Info("Starting topic bridge", "addr", ln.Addr().String(), "broker", a.cfg.BrokerDriver)

	serveErr := srv.Serve(ctx, ln)
	return errors.Join(serveErr, a.Shutdown())
}

// Shutdown runs every recorded cleanup step within the configured timeout.
// It is safe to call more than once.
func (a *App) Shutdown() error {
	a.mu.Lock()
	hooks := a.hooks
	a.hooks = nil
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.fn(ctx); err != nil {
			a.logger.Error("Shutdown step failed", "step", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		a.logger.Debug("Shutdown step complete", "step", h.name)
	}
	if len(hooks) > 0 {
		a.logger.Info("Shutdown complete")
	}
	return errors.Join(errs...)
}
