package session

import (
	"context"
	"sync"

	"geoattend-backend/internal/store"
)

// Manager hands out one controller per user, creating and restoring it
// on first use.
type Manager struct {
	mu          sync.Mutex
	store       store.Store
	hooks       Hooks
	controllers map[string]*Controller
}

// NewManager creates an empty controller manager.
func NewManager(s store.Store, hooks Hooks) *Manager {
	return &Manager{
		store:       s,
		hooks:       hooks,
		controllers: make(map[string]*Controller),
	}
}

// Get returns the controller for userID, creating it if needed. A new
// controller adopts any open record the user left behind.
func (m *Manager) Get(ctx context.Context, userID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.controllers[userID]; ok {
		return c, nil
	}

	c := NewController(m.store, userID, m.hooks)
	if err := c.Restore(ctx); err != nil {
		return nil, err
	}
	m.controllers[userID] = c
	return c, nil
}
