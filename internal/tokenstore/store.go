package tokenstore

import "sync"

// Store keeps the bearer token and last-known username. A non-empty token
// means "valid session". Persist failures are reported as warnings by the
// implementations, never surfaced to callers.
type Store interface {
	Token() string
	SetToken(token string)
	Username() string
	SetUsername(username string)
	IsValid() bool
	Clear()
}

// MemoryStore is a process-local Store. It backs tests and the "memory"
// backend, which does not survive restart.
type MemoryStore struct {
	mu       sync.RWMutex
	token    string
	username string
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *MemoryStore) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *MemoryStore) SetUsername(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
}

func (s *MemoryStore) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.username = ""
}
