package state

import (
	"sync"
	"time"
)

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	now      func() time.Time
}

// NewMemoryManager constructs an in-memory Manager.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]Session),
		now:      time.Now,
	}
}

// Get returns a copy of the user's session, or an idle session when none exists.
func (m *memoryManager) Get(userID int64) Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[userID]
	if !ok {
		return Session{State: StateIdle}
	}
	return Session{State: s.State, Data: copyData(s.Data), UpdatedAt: s.UpdatedAt}
}

// Put stores s for the user. Idle sessions are dropped from the map.
func (m *memoryManager) Put(userID int64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Idle() {
		delete(m.sessions, userID)
		return
	}
	s.Data = copyData(s.Data)
	s.UpdatedAt = m.now()
	m.sessions[userID] = s
}

// Clear removes the entire session for a user.
func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// InProgress reports whether the user currently has a non-idle session.
func (m *memoryManager) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return ok && !s.Idle()
}

// Len returns the number of stored sessions.
func (m *memoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func copyData(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
