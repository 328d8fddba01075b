package calendar

import (
	"context"
	"sync"
)

// SessionState is the client-session data the reconciler owns: relocation
// overrides, the local creation log and dismissed placeholder ids.
type SessionState struct {
	Overrides map[string]Override `json:"overrides"`
	LocalLog  []Event             `json:"local_log"`
	Dismissed []string            `json:"dismissed,omitempty"`
}

// NewSessionState returns an empty state.
func NewSessionState() *SessionState {
	return &SessionState{Overrides: make(map[string]Override)}
}

// Clone returns a deep copy so a write can be prepared without touching the original.
func (s *SessionState) Clone() *SessionState {
	out := NewSessionState()
	if s == nil {
		return out
	}
	for id, o := range s.Overrides {
		out.Overrides[id] = o
	}
	if len(s.LocalLog) > 0 {
		out.LocalLog = append([]Event(nil), s.LocalLog...)
	}
	if len(s.Dismissed) > 0 {
		out.Dismissed = append([]string(nil), s.Dismissed...)
	}
	return out
}

// absorb merges other into s. Used to view several module scopes at once.
func (s *SessionState) absorb(other *SessionState) {
	if other == nil {
		return
	}
	for id, o := range other.Overrides {
		s.Overrides[id] = o
	}
	s.LocalLog = append(s.LocalLog, other.LocalLog...)
	s.Dismissed = append(s.Dismissed, other.Dismissed...)
}

// IsDismissed reports whether a placeholder id was deleted by the user.
func (s *SessionState) IsDismissed(id string) bool {
	for _, d := range s.Dismissed {
		if d == id {
			return true
		}
	}
	return false
}

// LocalIndex returns the position of id in the creation log, or -1.
func (s *SessionState) LocalIndex(id string) int {
	for i, ev := range s.LocalLog {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

func (s *SessionState) removeLocal(id string) bool {
	i := s.LocalIndex(id)
	if i < 0 {
		return false
	}
	s.LocalLog = append(s.LocalLog[:i], s.LocalLog[i+1:]...)
	return true
}

// SessionStore persists SessionState per scope. Load of an unknown scope
// returns an empty state, not an error.
type SessionStore interface {
	Load(ctx context.Context, scope Scope) (*SessionState, error)
	Save(ctx context.Context, scope Scope, state *SessionState) error
}

// MemoryStore is an in-process SessionStore.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*SessionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*SessionState)}
}

func (m *MemoryStore) Load(ctx context.Context, scope Scope) (*SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[scope.Key()].Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, scope Scope, state *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[scope.Key()] = state.Clone()
	return nil
}
