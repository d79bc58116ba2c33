package memory

import (
	"context"
	"sort"
	"sync"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

// ReceiptStore is an in-memory implementation of storage.ReceiptStore.
type ReceiptStore struct {
	mu   sync.RWMutex
	data map[domain.Hash]*domain.ReceiptRecord
}

var _ storage.ReceiptStore = (*ReceiptStore)(nil)

// NewReceiptStore creates a new in-memory receipt store.
func NewReceiptStore() *ReceiptStore {
	return &ReceiptStore{
		data: make(map[domain.Hash]*domain.ReceiptRecord),
	}
}

// Insert adds a new receipt. Returns ErrDuplicateKey if tx_hash exists.
func (s *ReceiptStore) Insert(_ context.Context, r *domain.ReceiptRecord) error {
	if r == nil || r.TxHash.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.TxHash]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.TxHash] = &copy
	return nil
}

// GetByTxHash retrieves a receipt by transaction hash.
func (s *ReceiptStore) GetByTxHash(_ context.Context, txHash domain.Hash) (*domain.ReceiptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[txHash]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByBlock retrieves all receipts mined in a block.
func (s *ReceiptStore) GetByBlock(_ context.Context, blockNumber uint64) ([]*domain.ReceiptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ReceiptRecord
	for _, r := range s.data {
		if r.BlockNumber == blockNumber {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TxHash.String() < result[j].TxHash.String()
	})
	return result, nil
}
