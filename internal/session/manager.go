package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ended sessions are forgotten after this many inactivity timeouts. Their
// history stays in the memory store and Ensure revives them.
const endedRetention = 4

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create() *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

// Ensure returns the session with id, registering it when unknown. Clients
// may invent ids when session creation fails, and an ended session becomes
// active again when it is used. created reports whether id was new.
func (m *Manager) Ensure(sessionID string) (s *Session, created bool) {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[sessionID]
	if !ok {
		existing = &Session{
			ID:        sessionID,
			StartedAt: now,
		}
		m.sessions[sessionID] = existing
		created = true
	}
	existing.Status = StatusActive
	existing.LastActivityAt = now
	return clone(existing), created
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// update applies fn to the live session under the write lock.
func (m *Manager) update(sessionID string, fn func(s *Session)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	fn(s)
	s.LastActivityAt = time.Now().UTC()
	return clone(s), nil
}

func (m *Manager) Touch(sessionID string) error {
	_, err := m.update(sessionID, func(*Session) {})
	return err
}

func (m *Manager) StartTurn(sessionID, turnID string) error {
	_, err := m.update(sessionID, func(s *Session) { s.ActiveTurnID = turnID })
	return err
}

// FinishTurn clears the active turn. completed counts it toward TurnCount.
func (m *Manager) FinishTurn(sessionID, turnID string, completed bool) error {
	_, err := m.update(sessionID, func(s *Session) {
		if s.ActiveTurnID == turnID {
			s.ActiveTurnID = ""
		}
		if completed {
			s.TurnCount++
		}
	})
	return err
}

// ResetTurns zeroes the turn counter after the history was cleared.
func (m *Manager) ResetTurns(sessionID string) error {
	_, err := m.update(sessionID, func(s *Session) { s.TurnCount = 0 })
	return err
}

func (m *Manager) End(sessionID string) (*Session, error) {
	return m.update(sessionID, func(s *Session) {
		s.Status = StatusEnded
		s.ActiveTurnID = ""
	})
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Status == StatusEnded && now.Sub(s.LastActivityAt) >= endedRetention*m.inactivityTimeout {
			delete(m.sessions, id)
			continue
		}
		if s.Status != StatusActive || s.ActiveTurnID != "" {
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.LastActivityAt = now
		expired = append(expired, clone(s))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}
