package storage

import (
	"context"

	"evm-token-lab/internal/domain"
)

// ReceiptStore provides access to receipts storage.
type ReceiptStore interface {
	// Insert adds a new receipt. Returns ErrDuplicateKey if tx_hash exists.
	Insert(ctx context.Context, r *domain.ReceiptRecord) error

	// GetByTxHash retrieves a receipt by transaction hash. Returns ErrNotFound if not exists.
	GetByTxHash(ctx context.Context, txHash domain.Hash) (*domain.ReceiptRecord, error)

	// GetByBlock retrieves all receipts mined in a block.
	GetByBlock(ctx context.Context, blockNumber uint64) ([]*domain.ReceiptRecord, error)
}

// TransferStore provides access to transfers storage.
type TransferStore interface {
	// Insert adds a new transfer. Returns ErrDuplicateKey if (tx_hash, kind) exists.
	Insert(ctx context.Context, t *domain.TransferRecord) error

	// InsertBulk adds multiple transfers atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, transfers []*domain.TransferRecord) error

	// GetByTxHash retrieves all transfers carried by one transaction.
	GetByTxHash(ctx context.Context, txHash domain.Hash) ([]*domain.TransferRecord, error)

	// GetByBlockRange retrieves transfers mined within [start, end] (inclusive),
	// ordered by block number then tx position.
	GetByBlockRange(ctx context.Context, start, end uint64) ([]*domain.TransferRecord, error)

	// GetByAccount retrieves transfers where addr is the sender or the recipient,
	// ordered by block number then tx position.
	GetByAccount(ctx context.Context, addr domain.Address) ([]*domain.TransferRecord, error)
}

// TokenMetadataStore provides access to token_metadata storage.
type TokenMetadataStore interface {
	// Insert adds new metadata. Returns ErrDuplicateKey if the token address exists.
	Insert(ctx context.Context, m *domain.TokenMetadata) error

	// GetByToken retrieves metadata by token contract address. Returns ErrNotFound if not exists.
	GetByToken(ctx context.Context, token domain.Address) (*domain.TokenMetadata, error)
}

// SyncProgressStore provides access to sync_progress storage. Unlike the
// append-only stores, progress rows are upserted: a follower overwrites
// its own cursor as it advances.
type SyncProgressStore interface {
	// Upsert records the highest fully recorded block for a follower.
	Upsert(ctx context.Context, p *domain.SyncProgress) error

	// Get retrieves the cursor for a follower. Returns ErrNotFound if not exists.
	Get(ctx context.Context, source string) (*domain.SyncProgress, error)
}

// VolumeStore provides access to transfer_volume storage.
type VolumeStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate block_number.
	InsertBulk(ctx context.Context, points []*domain.VolumePoint) error

	// GetByBlockRange retrieves points within [start, end] (inclusive), ordered by block ASC.
	GetByBlockRange(ctx context.Context, start, end uint64) ([]*domain.VolumePoint, error)
}
