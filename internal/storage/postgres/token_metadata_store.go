package postgres

import (
	"context"
	"fmt"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

// TokenMetadataStore implements storage.TokenMetadataStore using PostgreSQL.
type TokenMetadataStore struct {
	pool *Pool
}

// NewTokenMetadataStore creates a new TokenMetadataStore.
func NewTokenMetadataStore(pool *Pool) *TokenMetadataStore {
	return &TokenMetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// Insert adds new metadata. Returns ErrDuplicateKey if the token address exists.
func (s *TokenMetadataStore) Insert(ctx context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Token.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_metadata (token, name, symbol, decimals, total_supply, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		m.Token.String(),
		m.Name,
		m.Symbol,
		int16(m.Decimals),
		m.TotalSupply.String(),
		m.FetchedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token metadata: %w", err)
	}
	return nil
}

// GetByToken retrieves metadata by token contract address. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetByToken(ctx context.Context, token domain.Address) (*domain.TokenMetadata, error) {
	query := `
		SELECT token, name, symbol, decimals, total_supply, fetched_at
		FROM token_metadata
		WHERE token = $1
	`

	var (
		tokenCol, name, symbol, totalSupply string
		decimals                            int16
		fetchedAt                           int64
	)
	err := s.pool.QueryRow(ctx, query, token.String()).
		Scan(&tokenCol, &name, &symbol, &decimals, &totalSupply, &fetchedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token metadata: %w", err)
	}

	m := &domain.TokenMetadata{
		Name:      name,
		Symbol:    symbol,
		Decimals:  uint8(decimals),
		FetchedAt: fetchedAt,
	}
	if m.Token, err = domain.ParseAddress(tokenCol); err != nil {
		return nil, fmt.Errorf("token column: %w", err)
	}
	if m.TotalSupply, err = domain.ParseAmount(totalSupply); err != nil {
		return nil, fmt.Errorf("total_supply column: %w", err)
	}
	return m, nil
}
