package server

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/topicbridge/internal/middleware"
)

// Route paths.
const (
	KafkaPath   = "/kafka"
	HealthPath  = "/health"
	MetricsPath = "/metrics"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	s.E.GET(KafkaPath, s.ws.Handle, middleware.UpgradeLimiter(s.opts.UpgradeRate))

	s.E.GET(HealthPath, func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	s.E.GET(MetricsPath, echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: s.registry,
	}))
}
