package bridge

import (
	"sync"

	"github.com/google/uuid"
)

// ConnID identifies one client connection. It is issued when the transport
// accepts the connection and is never reused.
type ConnID string

// NewConnID issues a fresh connection id.
func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// Registry maps each connection to its current consumer.
// It performs no side effects on the consumers it stores; disconnecting a
// handle before replacing or removing it is the caller's job.
type Registry struct {
	mu        sync.RWMutex
	consumers map[ConnID]*Consumer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		consumers: make(map[ConnID]*Consumer),
	}
}

// Get returns the consumer registered for id.
func (r *Registry) Get(id ConnID) (*Consumer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.consumers[id]
	return c, ok
}

// Set registers c for id, overwriting any previous entry.
func (r *Registry) Set(id ConnID, c *Consumer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consumers[id] = c
}

// Remove deletes the entry for id. It is a no-op if there is none.
func (r *Registry) Remove(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.consumers, id)
}

// Len returns the number of registered consumers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.consumers)
}
