package memory

import (
	"context"
	"sync"

	"github.com/sejink/gatehouse/internal/gatehouse/store"
	"github.com/sejink/gatehouse/internal/gatehouse/types"
)

// PrincipalStore is an in-memory credential map for tests and dev.
type PrincipalStore struct {
	mu    sync.RWMutex
	byKey map[string]types.Principal
	byID  map[string]types.Principal
}

func NewPrincipalStore(principals []types.Principal) *PrincipalStore {
	s := &PrincipalStore{
		byKey: make(map[string]types.Principal, len(principals)),
		byID:  make(map[string]types.Principal, len(principals)),
	}
	for _, p := range principals {
		s.byKey[p.APIKey] = p
		s.byID[p.ID] = p
	}
	return s
}

func (s *PrincipalStore) LookupByAPIKey(_ context.Context, apiKey string) (types.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byKey[apiKey]
	if !ok {
		return types.Principal{}, store.ErrNotFound
	}
	return p, nil
}

func (s *PrincipalStore) LookupByID(_ context.Context, id string) (types.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return types.Principal{}, store.ErrNotFound
	}
	return p, nil
}

// Put inserts or replaces a principal.  Test-only helper.
func (s *PrincipalStore) Put(p types.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[p.APIKey] = p
	s.byID[p.ID] = p
}
