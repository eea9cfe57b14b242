package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"

	"github.com/nfrund/topicbridge/internal/bridge"
)

var (
	// ErrSendBufferFull is returned when a client's outbound buffer cannot take another frame.
	ErrSendBufferFull = errors.New("client send buffer full")
	// ErrClientClosed is returned when sending to a client that has disconnected.
	ErrClientClosed = errors.New("client closed")
)

// Client represents a single connected WebSocket client.
type Client struct {
	ID   bridge.ConnID
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	done bool
}

func newClient(id bridge.ConnID, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, buffer),
	}
}

// Send queues one frame for the client without blocking. It implements bridge.Sink.
func (c *Client) Send(payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.done {
		return ErrClientClosed
	}

	select {
	case c.send <- payload:
		return nil
	default:
		slog.Warn("Client send channel full, dropping message", "conn_id", c.ID)
		return ErrSendBufferFull
	}
}

// Close safely closes the client's send channel, which ends the write pump.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.done {
		c.done = true
		close(c.send)
	}
}

// writePump drains the send channel onto the connection. Frames that are
// valid UTF-8 go out as text, anything else as binary. A ping every
// pingInterval detects dead peers; zero disables it.
func (c *Client) writePump(writeTimeout, pingInterval time.Duration, logger *slog.Logger) {
	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.conn.Close(websocket.StatusNormalClosure, "")

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			msgType := websocket.MessageText
			if !utf8.Valid(payload) {
				msgType = websocket.MessageBinary
			}

			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.conn.Write(ctx, msgType, payload)
			cancel()
			if err != nil {
				logger.Error("WebSocket write error", "error", err)
				return
			}

		case <-tick:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				logger.Warn("WebSocket ping failed, closing connection", "error", err)
				return
			}
		}
	}
}
