package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Manager keeps sessions in memory and drops them after ttl without access
type Manager struct {
	sessions *cache.Cache
}

// NewManager creates a session manager
func NewManager(ttl time.Duration) *Manager {
	cleanup := ttl / 2
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &Manager{sessions: cache.New(ttl, cleanup)}
}

// NewID returns a fresh opaque session ID
func NewID() string {
	return uuid.New().String()
}

// Get returns an existing session and refreshes its expiry
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	v, found := m.sessions.Get(id)
	if !found {
		return nil, false
	}
	sess := v.(*Session)
	m.sessions.SetDefault(id, sess)
	return sess, true
}

// GetOrCreate returns the session for id, creating it when unknown.
// An empty id gets a new random ID.
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	if sess, ok := m.Get(id); ok {
		return sess, false
	}
	if id == "" {
		id = NewID()
	}
	sess := New(id)
	if err := m.sessions.Add(id, sess, cache.DefaultExpiration); err != nil {
		// lost a race with a concurrent create
		if existing, ok := m.Get(id); ok {
			return existing, false
		}
		m.sessions.SetDefault(id, sess)
	}
	return sess, true
}

// Delete ends a session
func (m *Manager) Delete(id string) {
	m.sessions.Delete(id)
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// CountByState tallies live sessions by pipeline state
func (m *Manager) CountByState() map[State]int {
	counts := make(map[State]int)
	for _, item := range m.sessions.Items() {
		if sess, ok := item.Object.(*Session); ok {
			counts[sess.State()]++
		}
	}
	return counts
}
