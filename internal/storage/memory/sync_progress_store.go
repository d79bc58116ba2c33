package memory

import (
	"context"
	"sync"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

// SyncProgressStore is an in-memory implementation of storage.SyncProgressStore.
type SyncProgressStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SyncProgress
}

var _ storage.SyncProgressStore = (*SyncProgressStore)(nil)

// NewSyncProgressStore creates a new in-memory sync progress store.
func NewSyncProgressStore() *SyncProgressStore {
	return &SyncProgressStore{
		data: make(map[string]*domain.SyncProgress),
	}
}

// Upsert records the highest fully recorded block for a follower.
func (s *SyncProgressStore) Upsert(_ context.Context, p *domain.SyncProgress) error {
	if p == nil || p.Source == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.data[p.Source] = &copy
	return nil
}

// Get retrieves the cursor for a follower.
func (s *SyncProgressStore) Get(_ context.Context, source string) (*domain.SyncProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[source]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *p
	return &copy, nil
}
