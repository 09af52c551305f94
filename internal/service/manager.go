package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/identity"
)

// Manager keeps the open tracker of every signed-in user.
type Manager struct {
	ctx    context.Context
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	trackers map[string]*Tracker
}

// NewManager creates a manager whose trackers run until ctx ends.
func NewManager(ctx context.Context, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		ctx:      ctx,
		opts:     opts,
		logger:   opts.Logger,
		trackers: make(map[string]*Tracker),
	}
}

// Open returns the user's tracker, loading it on first use.
func (m *Manager) Open(userID, displayName string) (*Tracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.trackers[userID]; ok {
		return t, nil
	}
	t, err := Open(m.ctx, userID, displayName, m.opts)
	if err != nil {
		return nil, err
	}
	m.trackers[userID] = t
	return t, nil
}

// Get returns an already open tracker.
func (m *Manager) Get(userID string) (*Tracker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[userID]
	return t, ok
}

// Close tears down a user's tracker, if open.
func (m *Manager) Close(userID string) {
	m.mu.Lock()
	t, ok := m.trackers[userID]
	delete(m.trackers, userID)
	m.mu.Unlock()
	if ok {
		t.Close()
	}
}

// Len is the number of open trackers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trackers)
}

// Watch closes trackers when their user signs out. It returns when ctx ends
// or the provider stops the subscription.
func (m *Manager) Watch(ctx context.Context, p identity.Provider) {
	events, cancel := p.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Kind == identity.EventSignedOut {
				m.logger.Debug("Closing tracker after sign-out", zap.String("user_id", e.UserID))
				m.Close(e.UserID)
			}
		}
	}
}

// Shutdown closes every tracker.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := m.trackers
	m.trackers = make(map[string]*Tracker)
	m.mu.Unlock()
	for _, t := range all {
		t.Close()
	}
	m.logger.Info("Trackers shut down", zap.Int("count", len(all)))
}
