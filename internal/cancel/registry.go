// Package cancel holds the per-client cancellation flags polled by the
// enrichment pipeline at stage checkpoints.
package cancel

import (
	"context"
	"sync"
)

// Registry maps a client id to a cancellation flag. An absent flag reads
// as false.
type Registry interface {
	Set(ctx context.Context, clientID string, cancelled bool) error
	IsCancelled(ctx context.Context, clientID string) (bool, error)
	Clear(ctx context.Context, clientID string) error
}

// Memory is an in-process Registry. Flags are lost on restart, as is any
// run they would have affected.
type Memory struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{flags: make(map[string]bool)}
}

// Set implements Registry. Setting false removes the flag.
func (m *Memory) Set(_ context.Context, clientID string, cancelled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancelled {
		m.flags[clientID] = true
	} else {
		delete(m.flags, clientID)
	}
	return nil
}

// IsCancelled implements Registry.
func (m *Memory) IsCancelled(_ context.Context, clientID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flags[clientID], nil
}

// Clear implements Registry.
func (m *Memory) Clear(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flags, clientID)
	return nil
}

// Len returns the number of set flags.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.flags)
}
