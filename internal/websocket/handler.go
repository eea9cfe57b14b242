package websocket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/topicbridge/internal/bridge"
	"github.com/nfrund/topicbridge/internal/middleware"
)

// Greeting is sent to every client right after the upgrade.
const Greeting = "Connected. Send a topic name to subscribe."

// Config controls per-connection transport behaviour.
type Config struct {
	// SendBuffer is the number of outbound frames queued per client.
	SendBuffer int
	// WriteTimeout bounds a single frame write or ping round trip.
	WriteTimeout time.Duration
	// PingInterval is the keepalive period. Zero disables pings.
	PingInterval time.Duration
	// OriginPatterns lists accepted Origin hosts. Empty disables the origin check.
	OriginPatterns []string
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		SendBuffer:   256,
		WriteTimeout: 10 * time.Second,
		PingInterval: 54 * time.Second,
	}
}

// Handler upgrades HTTP requests to WebSocket connections and drives each
// connection's lifecycle through the bridge controller: one greeting on
// connect, one topic switch per inbound frame, and cleanup on close.
type Handler struct {
	controller *bridge.Controller
	clients    *ClientManager
	config     Config
}

// NewHandler creates a Handler that delegates subscriptions to controller.
func NewHandler(controller *bridge.Controller, config Config) *Handler {
	defaults := DefaultConfig()
	if config.SendBuffer <= 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	return &Handler{
		controller: controller,
		clients:    NewClientManager(),
		config:     config,
	}
}

// Clients exposes the live client set.
func (h *Handler) Clients() *ClientManager {
	return h.clients
}

func (h *Handler) acceptOptions() *websocket.AcceptOptions {
	if len(h.config.OriginPatterns) == 0 {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: h.config.OriginPatterns}
}

// Handle is the echo handler for the WebSocket endpoint. It blocks for the
// lifetime of the connection.
func (h *Handler) Handle(c echo.Context) error {
	logger := middleware.FromContext(c.Request().Context())

	conn, err := websocket.Accept(c.Response(), c.Request(), h.acceptOptions())
	if err != nil {
		// Accept has already written the HTTP error response.
		logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return nil
	}

	client := newClient(bridge.NewConnID(), conn, h.config.SendBuffer)
	logger = logger.With("conn_id", client.ID)

	if err := h.controller.Open(client.ID, client); err != nil {
		logger.Warn("Rejecting WebSocket connection", "error", err)
		conn.Close(websocket.StatusTryAgainLater, "server shutting down")
		return nil
	}
	h.clients.Add(client)
	logger.Info("WebSocket connected", "remote_addr", c.RealIP())

	go client.writePump(h.config.WriteTimeout, h.config.PingInterval, logger)
	if err := client.Send([]byte(Greeting)); err != nil {
		logger.Warn("Failed to queue greeting", "error", err)
	}

	h.readPump(client, logger)

	h.controller.Close(client.ID)
	h.clients.Remove(client.ID)
	client.Close()
	logger.Info("WebSocket closed")
	return nil
}

// readPump treats every inbound frame as a topic name and switches to it.
// It returns when the connection is closed or fails.
func (h *Handler) readPump(client *Client, logger *slog.Logger) {
	ctx := context.Background()
	for {
		_, data, err := client.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				logger.Info("WebSocket closed normally by client")
			case errors.Is(err, io.EOF):
				logger.Debug("WebSocket connection ended")
			default:
				logger.Error("WebSocket read error", "error", err)
			}
			return
		}

		topic := string(data)
		logger.Info("Client requested topic", "topic", topic)

		err = h.controller.SwitchTopic(ctx, client.ID, topic)
		var subErr *bridge.SubscribeError
		if err != nil && !errors.As(err, &subErr) {
			logger.Warn("Topic switch rejected", "topic", topic, "error", err)
		}
	}
}

// Shutdown closes every live connection with StatusGoingAway. The read
// loops then run the normal close path for each connection.
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.clients.CloseAll(ctx, websocket.StatusGoingAway, "server shutting down")
}
