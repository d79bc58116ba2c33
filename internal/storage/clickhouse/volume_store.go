package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

// VolumeStore implements storage.VolumeStore using ClickHouse.
type VolumeStore struct {
	conn *Conn
}

// NewVolumeStore creates a new VolumeStore.
func NewVolumeStore(conn *Conn) *VolumeStore {
	return &VolumeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.VolumeStore = (*VolumeStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate block_number.
// MergeTree does not enforce uniqueness at insert time, so duplicates are
// checked explicitly before the batch is sent.
func (s *VolumeStore) InsertBulk(ctx context.Context, points []*domain.VolumePoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[uint64]struct{}, len(points))
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[p.BlockNumber]; exists {
			return storage.ErrDuplicateKey
		}
		seen[p.BlockNumber] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, p := range points {
		exists, err := s.exists(ctx, p.BlockNumber)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO transfer_volume (
			block_number, mined_at, transfer_count, token_volume, native_volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.BlockNumber, p.MinedAt, p.TransferCount,
			p.TokenVolume.BigInt(), p.NativeVolume.BigInt(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByBlockRange retrieves points within [start, end] (inclusive), ordered by block ASC.
func (s *VolumeStore) GetByBlockRange(ctx context.Context, start, end uint64) ([]*domain.VolumePoint, error) {
	query := `
		SELECT block_number, mined_at, transfer_count, token_volume, native_volume
		FROM transfer_volume
		WHERE block_number >= ? AND block_number <= ?
		ORDER BY block_number ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by block range: %w", err)
	}
	defer rows.Close()

	var result []*domain.VolumePoint
	for rows.Next() {
		var (
			p            domain.VolumePoint
			token, nativ big.Int
		)
		if err := rows.Scan(&p.BlockNumber, &p.MinedAt, &p.TransferCount, &token, &nativ); err != nil {
			return nil, fmt.Errorf("scan volume point: %w", err)
		}
		if p.TokenVolume, err = domain.AmountFromBig(&token); err != nil {
			return nil, fmt.Errorf("token_volume column: %w", err)
		}
		if p.NativeVolume, err = domain.AmountFromBig(&nativ); err != nil {
			return nil, fmt.Errorf("native_volume column: %w", err)
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

func (s *VolumeStore) exists(ctx context.Context, blockNumber uint64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM transfer_volume WHERE block_number = ?`, blockNumber,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
