package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and early development.
//
// Locking: the store-level mutex guards only the two index maps. Each record
// carries its own mutex, so UpdateStatus on different records never contends.
type MemoryStore struct {
	mu         sync.Mutex
	byInternal map[string]*memRecord
	byProvider map[string]string // provider id -> internal id
}

type memRecord struct {
	mu  sync.Mutex
	rec CallRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byInternal: map[string]*memRecord{},
		byProvider: map[string]string{},
	}
}

func (s *MemoryStore) Create(ctx context.Context, rec CallRecord) error {
	if rec.CallID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byInternal[rec.CallID]; ok {
		return ErrConflict
	}
	if rec.ProviderCallID != "" {
		if _, ok := s.byProvider[rec.ProviderCallID]; ok {
			return ErrConflict
		}
		s.byProvider[rec.ProviderCallID] = rec.CallID
	}
	s.byInternal[rec.CallID] = &memRecord{rec: rec}
	return nil
}

func (s *MemoryStore) LinkProviderID(ctx context.Context, callID, providerCallID string) error {
	if callID == "" || providerCallID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byInternal[callID]
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.ProviderCallID == providerCallID {
		return nil // idempotent re-link
	}
	if e.rec.ProviderCallID != "" {
		return ErrConflict
	}
	if owner, ok := s.byProvider[providerCallID]; ok && owner != callID {
		return ErrConflict
	}
	e.rec.ProviderCallID = providerCallID
	s.byProvider[providerCallID] = callID
	return nil
}

func (s *MemoryStore) FindByInternal(ctx context.Context, callID string) (CallRecord, error) {
	e, err := s.entry(ByInternal(callID))
	if err != nil {
		return CallRecord{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, nil
}

func (s *MemoryStore) FindByProvider(ctx context.Context, providerCallID string) (CallRecord, error) {
	e, err := s.entry(ByProvider(providerCallID))
	if err != nil {
		return CallRecord{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, key Key, upd StatusUpdate) (CallRecord, bool, error) {
	e, err := s.entry(key)
	if err != nil {
		return CallRecord{}, false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	applied := applyTransition(&e.rec, upd)
	return e.rec, applied, nil
}

func (s *MemoryStore) ListByParty(ctx context.Context, identity string) ([]CallRecord, error) {
	if identity == "" {
		return nil, ErrInvalidArgument
	}
	s.mu.Lock()
	entries := make([]*memRecord, 0, len(s.byInternal))
	for _, e := range s.byInternal {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	out := make([]CallRecord, 0)
	for _, e := range entries {
		e.mu.Lock()
		rec := e.rec
		e.mu.Unlock()
		if rec.FromParty == identity || rec.ToParty == identity {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *MemoryStore) entry(key Key) (*memRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := key.Internal
	if id == "" {
		var ok bool
		id, ok = s.byProvider[key.Provider]
		if !ok {
			return nil, ErrNotFound
		}
	}
	e, ok := s.byInternal[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
