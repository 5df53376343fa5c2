package chat

import (
	"context"
	"sort"
	"sync"
)

type memKey struct{ userID, sessionID string }

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[memKey]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[memKey]*Session{}}
}

func (m *MemoryStore) Create(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memKey{s.UserID, s.ID}
	if _, ok := m.sessions[k]; ok {
		return ErrSessionExists
	}
	s.Turns = append([]Turn(nil), s.Turns...)
	m.sessions[k] = &s
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, userID, sessionID string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[memKey{userID, sessionID}]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	out := *s
	out.Turns = tail(s.Turns, 0)
	return out, nil
}

func (m *MemoryStore) List(ctx context.Context, userID string) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Session
	for k, s := range m.sessions {
		if k.userID != userID {
			continue
		}
		cp := *s
		cp.Turns = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Append(ctx context.Context, userID, sessionID string, t Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[memKey{userID, sessionID}]
	if !ok {
		return ErrSessionNotFound
	}
	s.Turns = append(s.Turns, t)
	return nil
}

func (m *MemoryStore) LastTurns(ctx context.Context, userID, sessionID string, n int) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[memKey{userID, sessionID}]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return tail(s.Turns, n), nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memKey{userID, sessionID}
	s, ok := m.sessions[k]
	if !ok {
		return 0, ErrSessionNotFound
	}
	delete(m.sessions, k)
	return len(s.Turns), nil
}
