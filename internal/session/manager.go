package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/skein-labs/skein/backend/pkg/expand"
	"github.com/skein-labs/skein/backend/pkg/logger"
	"github.com/skein-labs/skein/backend/pkg/provider"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Manager owns every live session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cache   expand.CacheStore
	gateway provider.Gateway
}

// NewManager creates a session manager backed by the given cache store
// and provider gateway.
func NewManager(cache expand.CacheStore, gateway provider.Gateway) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		cache:    cache,
		gateway:  gateway,
	}
}

// Create opens a new empty session.
func (m *Manager) Create() (*Session, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s := New(Params{ID: id, Cache: m.cache, Gateway: m.gateway})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete drops a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how
// many were removed.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Info("[Session] Swept idle sessions", "removed", removed, "remaining", len(m.sessions))
	}
	return removed
}
