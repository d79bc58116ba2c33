package postgres

import (
	"context"
	"fmt"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

// SyncProgressStore implements storage.SyncProgressStore using PostgreSQL.
type SyncProgressStore struct {
	pool *Pool
}

// NewSyncProgressStore creates a new SyncProgressStore.
func NewSyncProgressStore(pool *Pool) *SyncProgressStore {
	return &SyncProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SyncProgressStore = (*SyncProgressStore)(nil)

// Upsert records the highest fully recorded block for a follower.
func (s *SyncProgressStore) Upsert(ctx context.Context, p *domain.SyncProgress) error {
	if p == nil || p.Source == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO sync_progress (source, last_block, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query, p.Source, int64(p.LastBlock), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert sync progress: %w", err)
	}
	return nil
}

// Get retrieves the cursor for a follower. Returns ErrNotFound if not exists.
func (s *SyncProgressStore) Get(ctx context.Context, source string) (*domain.SyncProgress, error) {
	query := `
		SELECT source, last_block, updated_at
		FROM sync_progress
		WHERE source = $1
	`

	var (
		src                  string
		lastBlock, updatedAt int64
	)
	err := s.pool.QueryRow(ctx, query, source).Scan(&src, &lastBlock, &updatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get sync progress: %w", err)
	}

	return &domain.SyncProgress{
		Source:    src,
		LastBlock: uint64(lastBlock),
		UpdatedAt: updatedAt,
	}, nil
}
