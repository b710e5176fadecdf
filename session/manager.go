package session

import (
	"context"
	"sync"
)

// Manager hands out one controller per widget session, rehydrating from the
// session store on first access.
type Manager struct {
	mu          sync.Mutex
	store       *SessionStore
	streamer    Streamer
	observer    Observer
	controllers map[string]*Controller
}

// NewManager creates a manager. observer may be nil.
func NewManager(store *SessionStore, streamer Streamer, observer Observer) *Manager {
	return &Manager{
		store:       store,
		streamer:    streamer,
		observer:    observer,
		controllers: make(map[string]*Controller),
	}
}

// Get returns the controller for sessionID, loading the persisted session
// (or creating a fresh one) on first access.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Controller, error) {
	m.mu.Lock()
	if c, ok := m.controllers[sessionID]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	// Load outside the lock; sqlite reads can be slow on cold paths.
	sess, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.controllers[sessionID]; ok {
		return c, nil
	}
	c := NewController(sess, m.store, m.streamer, m.observer)
	m.controllers[sessionID] = c
	return c, nil
}

// Reset starts a new conversation for sessionID.
func (m *Manager) Reset(ctx context.Context, sessionID string) (*Controller, error) {
	c, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := c.Reset(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
