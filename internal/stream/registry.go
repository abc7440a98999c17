// Package stream implements the WebSocket frame intake: one Session per
// client connection plus a Registry of live connections.
package stream

import "sync"

// Registry tracks live stream connections for stats reporting. Entries are
// bound exactly to connection open/close.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]struct{}
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]struct{})}
}

// Add registers a connection ID.
func (r *Registry) Add(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = struct{}{}
}

// Remove deregisters a connection ID. Removing an unknown ID is a no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connID)
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
