package server

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	appmiddleware "github.com/nfrund/topicbridge/internal/middleware"
	"github.com/nfrund/topicbridge/internal/websocket"
)

// Options configures the HTTP server.
type Options struct {
	// UpgradeRate limits WebSocket connection attempts per client IP per minute. Zero disables it.
	UpgradeRate int
	// Registry receives the HTTP request metrics and backs /metrics.
	// A private registry is created when nil.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	E        *echo.Echo
	ws       *websocket.Handler
	registry *prometheus.Registry
	logger   *slog.Logger
	opts     Options
}

// New creates a Server that exposes ws and registers all routes.
func New(ws *websocket.Handler, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmiddleware.Logger(opts.Logger))
	e.Use(requestLogger())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "topicbridge",
		Subsystem:  "http",
		Registerer: opts.Registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	setupErrorHandling(e)

	s := &Server{
		E:        e,
		ws:       ws,
		registry: opts.Registry,
		logger:   opts.Logger,
		opts:     opts,
	}
	s.RegisterRoutes()
	return s
}

// requestLogger logs one line per request through the request-scoped logger.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger := appmiddleware.FromContext(c.Request().Context())
			if v.Error != nil {
				logger.Warn("Request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			logger.Debug("Request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	})
}

// setupErrorHandling installs an error handler that logs unexpected errors
// with a stack trace and keeps echo's response behaviour.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			appmiddleware.FromContext(c.Request().Context()).Error("Internal Server Error (Unhandled)",
				"error", err.Error(),
				"stack_trace", string(debug.Stack()),
			)
		} else if he.Code >= http.StatusInternalServerError {
			appmiddleware.FromContext(c.Request().Context()).Error("Internal Server Error", "error", he.Error())
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}
