package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

// TransferStore implements storage.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *Pool
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(pool *Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

const insertTransferQuery = `
	INSERT INTO transfers (
		tx_hash, block_number, tx_index, kind, sender, recipient, spender, amount, mined_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

const selectTransferColumns = `
	SELECT tx_hash, block_number, tx_index, kind, sender, recipient, spender, amount, mined_at
	FROM transfers
`

// Insert adds a new transfer. Returns ErrDuplicateKey if (tx_hash, kind) exists.
func (s *TransferStore) Insert(ctx context.Context, t *domain.TransferRecord) error {
	if t == nil || t.TxHash.IsZero() || t.Kind == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTransferQuery, transferArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// InsertBulk adds multiple transfers atomically. Fails entire batch on any duplicate.
func (s *TransferStore) InsertBulk(ctx context.Context, transfers []*domain.TransferRecord) error {
	if len(transfers) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range transfers {
		if t == nil || t.TxHash.IsZero() || t.Kind == "" {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertTransferQuery, transferArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert transfer in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByTxHash retrieves all transfers carried by one transaction.
func (s *TransferStore) GetByTxHash(ctx context.Context, txHash domain.Hash) ([]*domain.TransferRecord, error) {
	query := selectTransferColumns + `
		WHERE tx_hash = $1
		ORDER BY kind ASC
	`

	rows, err := s.pool.Query(ctx, query, txHash.String())
	if err != nil {
		return nil, fmt.Errorf("get transfers by tx hash: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// GetByBlockRange retrieves transfers mined within [start, end] (inclusive).
func (s *TransferStore) GetByBlockRange(ctx context.Context, start, end uint64) ([]*domain.TransferRecord, error) {
	query := selectTransferColumns + `
		WHERE block_number >= $1 AND block_number <= $2
		ORDER BY block_number ASC, tx_index ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("get transfers by block range: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// GetByAccount retrieves transfers where addr is the sender or the recipient.
func (s *TransferStore) GetByAccount(ctx context.Context, addr domain.Address) ([]*domain.TransferRecord, error) {
	query := selectTransferColumns + `
		WHERE sender = $1 OR recipient = $1
		ORDER BY block_number ASC, tx_index ASC
	`

	rows, err := s.pool.Query(ctx, query, addr.String())
	if err != nil {
		return nil, fmt.Errorf("get transfers by account: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

func transferArgs(t *domain.TransferRecord) []any {
	var spender *string
	if t.Spender != nil {
		s := t.Spender.String()
		spender = &s
	}
	return []any{
		t.TxHash.String(),
		int64(t.BlockNumber),
		int32(t.TxIndex),
		t.Kind,
		t.From.String(),
		t.To.String(),
		spender,
		t.Amount.String(),
		t.MinedAt,
	}
}

func scanTransfers(rows pgx.Rows) ([]*domain.TransferRecord, error) {
	var result []*domain.TransferRecord
	for rows.Next() {
		var (
			txHash, kind, sender, recipient, amount string
			spender                                 *string
			blockNumber, minedAt                    int64
			txIndex                                 int32
		)
		if err := rows.Scan(&txHash, &blockNumber, &txIndex, &kind, &sender, &recipient, &spender, &amount, &minedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}

		t := &domain.TransferRecord{
			BlockNumber: uint64(blockNumber),
			TxIndex:     uint32(txIndex),
			Kind:        kind,
			MinedAt:     minedAt,
		}
		var err error
		if t.TxHash, err = domain.ParseHash(txHash); err != nil {
			return nil, fmt.Errorf("tx_hash column: %w", err)
		}
		if t.From, err = domain.ParseAddress(sender); err != nil {
			return nil, fmt.Errorf("sender column: %w", err)
		}
		if t.To, err = domain.ParseAddress(recipient); err != nil {
			return nil, fmt.Errorf("recipient column: %w", err)
		}
		if spender != nil {
			sp, err := domain.ParseAddress(*spender)
			if err != nil {
				return nil, fmt.Errorf("spender column: %w", err)
			}
			t.Spender = &sp
		}
		if t.Amount, err = domain.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("amount column: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
