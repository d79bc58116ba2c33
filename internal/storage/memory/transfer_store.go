package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

// TransferStore is an in-memory implementation of storage.TransferStore.
type TransferStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransferRecord // keyed by composite key
}

var _ storage.TransferStore = (*TransferStore)(nil)

// NewTransferStore creates a new in-memory transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{
		data: make(map[string]*domain.TransferRecord),
	}
}

// transferKey generates a unique key for a transfer.
func transferKey(txHash domain.Hash, kind string) string {
	return fmt.Sprintf("%s|%s", txHash, kind)
}

// Insert adds a new transfer. Returns ErrDuplicateKey if exists.
func (s *TransferStore) Insert(_ context.Context, t *domain.TransferRecord) error {
	if t == nil || t.TxHash.IsZero() || t.Kind == "" {
		return storage.ErrInvalidInput
	}

	key := transferKey(t.TxHash, t.Kind)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[key] = &copy
	return nil
}

// InsertBulk adds multiple transfers atomically. Fails entire batch on any duplicate.
func (s *TransferStore) InsertBulk(_ context.Context, transfers []*domain.TransferRecord) error {
	if len(transfers) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(transfers))

	// First pass: check for duplicates (existing + intra-batch)
	for _, t := range transfers {
		if t == nil || t.TxHash.IsZero() || t.Kind == "" {
			return storage.ErrInvalidInput
		}
		key := transferKey(t.TxHash, t.Kind)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, t := range transfers {
		copy := *t
		s.data[transferKey(t.TxHash, t.Kind)] = &copy
	}

	return nil
}

// GetByTxHash retrieves all transfers carried by one transaction.
func (s *TransferStore) GetByTxHash(_ context.Context, txHash domain.Hash) ([]*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferRecord
	for _, t := range s.data {
		if t.TxHash == txHash {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})
	return result, nil
}

// GetByBlockRange retrieves transfers mined within [start, end] inclusive.
func (s *TransferStore) GetByBlockRange(_ context.Context, start, end uint64) ([]*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferRecord
	for _, t := range s.data {
		if t.BlockNumber >= start && t.BlockNumber <= end {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTransfers(result)
	return result, nil
}

// GetByAccount retrieves transfers where addr is the sender or the recipient.
func (s *TransferStore) GetByAccount(_ context.Context, addr domain.Address) ([]*domain.TransferRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransferRecord
	for _, t := range s.data {
		if t.From == addr || t.To == addr {
			copy := *t
			result = append(result, &copy)
		}
	}

	sortTransfers(result)
	return result, nil
}

func sortTransfers(transfers []*domain.TransferRecord) {
	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].BlockNumber != transfers[j].BlockNumber {
			return transfers[i].BlockNumber < transfers[j].BlockNumber
		}
		return transfers[i].TxIndex < transfers[j].TxIndex
	})
}
