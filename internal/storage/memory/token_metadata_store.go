package memory

import (
	"context"
	"sync"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

// TokenMetadataStore is an in-memory implementation of storage.TokenMetadataStore.
type TokenMetadataStore struct {
	mu   sync.RWMutex
	data map[domain.Address]*domain.TokenMetadata
}

var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// NewTokenMetadataStore creates a new in-memory token metadata store.
func NewTokenMetadataStore() *TokenMetadataStore {
	return &TokenMetadataStore{
		data: make(map[domain.Address]*domain.TokenMetadata),
	}
}

// Insert adds new metadata. Returns ErrDuplicateKey if the token exists.
func (s *TokenMetadataStore) Insert(_ context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Token.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.Token]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *m
	s.data[m.Token] = &copy
	return nil
}

// GetByToken retrieves metadata by token contract address.
func (s *TokenMetadataStore) GetByToken(_ context.Context, token domain.Address) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[token]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *m
	return &copy, nil
}
