package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
	"evm-token-lab/internal/storage/postgres"
)

func TestReceiptStore_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReceiptStore(pool)
	ctx := context.Background()

	to := testAddress(2)
	r := &domain.ReceiptRecord{
		TxHash:      testHash(1),
		BlockNumber: 42,
		BlockHash:   testHash(0xb1),
		From:        testAddress(1),
		To:          &to,
		Status:      domain.ReceiptStatusSuccess,
		GasUsed:     21000,
		MinedAt:     1704067200000,
	}

	require.NoError(t, store.Insert(ctx, r))

	got, err := store.GetByTxHash(ctx, testHash(1))
	require.NoError(t, err)
	require.Equal(t, r.BlockNumber, got.BlockNumber)
	require.Equal(t, r.From, got.From)
	require.NotNil(t, got.To)
	require.Equal(t, to, *got.To)
	require.Equal(t, domain.ReceiptStatusSuccess, got.Status)

	// Same tx hash again is a duplicate.
	require.ErrorIs(t, store.Insert(ctx, r), storage.ErrDuplicateKey)
}

func TestReceiptStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReceiptStore(pool)

	_, err := store.GetByTxHash(context.Background(), testHash(0xff))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReceiptStore_GetByBlock(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReceiptStore(pool)
	ctx := context.Background()

	for i := byte(1); i <= 3; i++ {
		block := uint64(10)
		if i == 3 {
			block = 11
		}
		r := &domain.ReceiptRecord{
			TxHash:      testHash(i),
			BlockNumber: block,
			BlockHash:   testHash(0xb0),
			From:        testAddress(i),
			Status:      domain.ReceiptStatusReverted,
			GasUsed:     50000,
		}
		require.NoError(t, store.Insert(ctx, r))
	}

	got, err := store.GetByBlock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
}
