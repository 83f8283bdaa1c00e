package directory

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory directory for tests.
type MemoryStore struct {
	mu      sync.Mutex
	byUser  map[string]User
	byPhone map[string]string // phone number -> user id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: map[string]User{}, byPhone: map[string]string{}}
}

func (s *MemoryStore) Upsert(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byUser[u.UserID]; ok && prev.PhoneNumber != u.PhoneNumber {
		delete(s.byPhone, prev.PhoneNumber)
	}
	s.byUser[u.UserID] = u
	s.byPhone[u.PhoneNumber] = u.UserID
	return nil
}

func (s *MemoryStore) ByUserID(ctx context.Context, userID string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byUser[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) ByPhoneNumber(ctx context.Context, number string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPhone[number]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.byUser[id], nil
}
