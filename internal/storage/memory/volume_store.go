package memory

import (
	"context"
	"sort"
	"sync"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

// VolumeStore is an in-memory implementation of storage.VolumeStore.
type VolumeStore struct {
	mu   sync.RWMutex
	data map[uint64]*domain.VolumePoint // keyed by block number
}

var _ storage.VolumeStore = (*VolumeStore)(nil)

// NewVolumeStore creates a new in-memory volume store.
func NewVolumeStore() *VolumeStore {
	return &VolumeStore{
		data: make(map[uint64]*domain.VolumePoint),
	}
}

// InsertBulk adds multiple points. Fails entire batch on duplicate block_number.
func (s *VolumeStore) InsertBulk(_ context.Context, points []*domain.VolumePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[uint64]struct{}, len(points))
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[p.BlockNumber]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[p.BlockNumber]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[p.BlockNumber] = struct{}{}
	}

	for _, p := range points {
		copy := *p
		s.data[p.BlockNumber] = &copy
	}

	return nil
}

// GetByBlockRange retrieves points within [start, end] inclusive, ordered by block ASC.
func (s *VolumeStore) GetByBlockRange(_ context.Context, start, end uint64) ([]*domain.VolumePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.VolumePoint
	for _, p := range s.data {
		if p.BlockNumber >= start && p.BlockNumber <= end {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BlockNumber < result[j].BlockNumber
	})
	return result, nil
}
