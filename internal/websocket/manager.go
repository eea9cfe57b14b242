package websocket

import (
	"context"
	"sync"

	"github.com/coder/websocket"

	"github.com/nfrund/topicbridge/internal/bridge"
)

// ClientManager tracks live WebSocket clients so they can be closed on shutdown.
// Hijacked connections are not closed by the HTTP server's own Shutdown.
type ClientManager struct {
	clients map[bridge.ConnID]*Client
	mu      sync.RWMutex
}

// NewClientManager creates a new ClientManager.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[bridge.ConnID]*Client),
	}
}

// Add registers a new client.
func (m *ClientManager) Add(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[client.ID] = client
}

// Remove unregisters a client.
func (m *ClientManager) Remove(id bridge.ConnID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.clients, id)
}

// Len returns the number of connected clients.
func (m *ClientManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.clients)
}

// GetAll returns all currently connected clients.
func (m *ClientManager) GetAll() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		all = append(all, client)
	}
	return all
}

// CloseAll sends a close frame with status to every client and waits for the
// handshakes to finish or ctx to end.
func (m *ClientManager) CloseAll(ctx context.Context, status websocket.StatusCode, reason string) error {
	clients := m.GetAll()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for _, client := range clients {
			wg.Add(1)
			go func(c *Client) {
				defer wg.Done()
				_ = c.conn.Close(status, reason)
			}(client)
		}
		wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, client := range clients {
			_ = client.conn.CloseNow()
		}
		return ctx.Err()
	}
}
