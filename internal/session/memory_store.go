package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. It does not survive
// restarts and is meant for tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	policy   Policy
	opts     options
	sessions map[string]Session
}

// NewMemoryStore builds an in-memory store.
func NewMemoryStore(policy Policy, opts ...Option) *MemoryStore {
	return &MemoryStore{policy: policy, opts: buildOptions(opts), sessions: make(map[string]Session)}
}

func (m *MemoryStore) Create(_ context.Context, ref Ref) (Session, error) {
	s, err := newSession(ref, m.opts.now(), m.policy)
	if err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[storageKey(s.ID)] = s
	return s, nil
}

func (m *MemoryStore) Read(_ context.Context, token string) (Session, bool, error) {
	if !wellFormed(token) {
		return Session{}, false, nil
	}
	key := storageKey(token)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return Session{}, false, nil
	}
	if s.ExpiredAt(m.opts.now()) {
		delete(m.sessions, key)
		return Session{}, false, nil
	}
	return s, true, nil
}

func (m *MemoryStore) Touch(_ context.Context, token string) (Session, bool, error) {
	if !wellFormed(token) {
		return Session{}, false, nil
	}
	key := storageKey(token)
	now := m.opts.now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok || s.ExpiredAt(now) {
		return Session{}, false, nil
	}
	s.LastSeenAt = now
	if m.policy.Sliding {
		s.ExpiresAt = now.Add(m.policy.ttl())
	}
	m.sessions[key] = s
	return s, true, nil
}

func (m *MemoryStore) Destroy(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, storageKey(token))
	return nil
}

func (m *MemoryStore) Prune(_ context.Context) (int64, error) {
	now := m.opts.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, s := range m.sessions {
		if s.ExpiredAt(now) {
			delete(m.sessions, key)
			n++
		}
	}
	return n, nil
}
