package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

// ReceiptStore implements storage.ReceiptStore using PostgreSQL.
type ReceiptStore struct {
	pool *Pool
}

// NewReceiptStore creates a new ReceiptStore.
func NewReceiptStore(pool *Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReceiptStore = (*ReceiptStore)(nil)

// Insert adds a new receipt. Returns ErrDuplicateKey if tx_hash exists.
func (s *ReceiptStore) Insert(ctx context.Context, r *domain.ReceiptRecord) error {
	if r == nil || r.TxHash.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO receipts (
			tx_hash, block_number, block_hash, sender, recipient, status, gas_used, mined_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var recipient *string
	if r.To != nil {
		to := r.To.String()
		recipient = &to
	}

	_, err := s.pool.Exec(ctx, query,
		r.TxHash.String(),
		int64(r.BlockNumber),
		r.BlockHash.String(),
		r.From.String(),
		recipient,
		int16(r.Status),
		int64(r.GasUsed),
		r.MinedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// GetByTxHash retrieves a receipt by transaction hash. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByTxHash(ctx context.Context, txHash domain.Hash) (*domain.ReceiptRecord, error) {
	query := `
		SELECT tx_hash, block_number, block_hash, sender, recipient, status, gas_used, mined_at
		FROM receipts
		WHERE tx_hash = $1
	`

	row := s.pool.QueryRow(ctx, query, txHash.String())
	r, err := scanReceipt(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get receipt by tx hash: %w", err)
	}
	return r, nil
}

// GetByBlock retrieves all receipts mined in a block.
func (s *ReceiptStore) GetByBlock(ctx context.Context, blockNumber uint64) ([]*domain.ReceiptRecord, error) {
	query := `
		SELECT tx_hash, block_number, block_hash, sender, recipient, status, gas_used, mined_at
		FROM receipts
		WHERE block_number = $1
		ORDER BY tx_hash ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("get receipts by block: %w", err)
	}
	defer rows.Close()

	var result []*domain.ReceiptRecord
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanReceipt(row pgx.Row) (*domain.ReceiptRecord, error) {
	var (
		txHash, blockHash, sender string
		recipient                 *string
		blockNumber, gasUsed      int64
		status                    int16
		minedAt                   int64
	)
	if err := row.Scan(&txHash, &blockNumber, &blockHash, &sender, &recipient, &status, &gasUsed, &minedAt); err != nil {
		return nil, err
	}

	r := &domain.ReceiptRecord{
		BlockNumber: uint64(blockNumber),
		Status:      uint8(status),
		GasUsed:     uint64(gasUsed),
		MinedAt:     minedAt,
	}
	var err error
	if r.TxHash, err = domain.ParseHash(txHash); err != nil {
		return nil, fmt.Errorf("tx_hash column: %w", err)
	}
	if r.BlockHash, err = domain.ParseHash(blockHash); err != nil {
		return nil, fmt.Errorf("block_hash column: %w", err)
	}
	if r.From, err = domain.ParseAddress(sender); err != nil {
		return nil, fmt.Errorf("sender column: %w", err)
	}
	if recipient != nil {
		to, err := domain.ParseAddress(*recipient)
		if err != nil {
			return nil, fmt.Errorf("recipient column: %w", err)
		}
		r.To = &to
	}
	return r, nil
}
