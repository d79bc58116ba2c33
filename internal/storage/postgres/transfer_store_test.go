package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
	"evm-token-lab/internal/storage/postgres"
)

func TestTransferStore_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTransferStore(pool)
	ctx := context.Background()

	spender := testAddress(3)
	tr := &domain.TransferRecord{
		TxHash:      testHash(1),
		BlockNumber: 5,
		TxIndex:     0,
		Kind:        domain.TransferKindDelegated,
		From:        testAddress(1),
		To:          testAddress(2),
		Spender:     &spender,
		Amount:      domain.Units(150, 18),
		MinedAt:     1704067200000,
	}

	require.NoError(t, store.Insert(ctx, tr))

	got, err := store.GetByTxHash(ctx, testHash(1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Amount.Eq(domain.Units(150, 18)), "amount survives the 256-bit round trip")
	require.NotNil(t, got[0].Spender)
	require.Equal(t, spender, *got[0].Spender)

	require.ErrorIs(t, store.Insert(ctx, tr), storage.ErrDuplicateKey)
}

func TestTransferStore_InsertBulk_Atomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTransferStore(pool)
	ctx := context.Background()

	batch := []*domain.TransferRecord{
		{TxHash: testHash(1), BlockNumber: 1, Kind: domain.TransferKindToken, From: testAddress(1), To: testAddress(2), Amount: domain.NewAmount(1)},
		{TxHash: testHash(1), BlockNumber: 1, Kind: domain.TransferKindToken, From: testAddress(1), To: testAddress(3), Amount: domain.NewAmount(2)},
	}

	require.ErrorIs(t, store.InsertBulk(ctx, batch), storage.ErrDuplicateKey)

	got, err := store.GetByTxHash(ctx, testHash(1))
	require.NoError(t, err)
	require.Empty(t, got, "failed batch must insert nothing")
}

func TestTransferStore_Queries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTransferStore(pool)
	ctx := context.Background()

	batch := []*domain.TransferRecord{
		{TxHash: testHash(1), BlockNumber: 4, TxIndex: 0, Kind: domain.TransferKindToken, From: testAddress(1), To: testAddress(2), Amount: domain.NewAmount(100)},
		{TxHash: testHash(2), BlockNumber: 5, TxIndex: 0, Kind: domain.TransferKindNative, From: testAddress(2), To: testAddress(3), Amount: domain.Units(1, 18)},
		{TxHash: testHash(3), BlockNumber: 5, TxIndex: 1, Kind: domain.TransferKindToken, From: testAddress(1), To: testAddress(4), Amount: domain.NewAmount(50)},
		{TxHash: testHash(4), BlockNumber: 9, TxIndex: 0, Kind: domain.TransferKindToken, From: testAddress(4), To: testAddress(1), Amount: domain.NewAmount(25)},
	}
	require.NoError(t, store.InsertBulk(ctx, batch))

	byRange, err := store.GetByBlockRange(ctx, 4, 5)
	require.NoError(t, err)
	require.Len(t, byRange, 3)
	require.Equal(t, uint64(4), byRange[0].BlockNumber)
	require.Equal(t, uint32(1), byRange[2].TxIndex)

	byAccount, err := store.GetByAccount(ctx, testAddress(2))
	require.NoError(t, err)
	require.Len(t, byAccount, 2)
}

func TestTokenMetadataStore_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTokenMetadataStore(pool)
	ctx := context.Background()

	meta := &domain.TokenMetadata{
		Token:       testAddress(0xaa),
		Name:        "MyToken",
		Symbol:      "MTK",
		Decimals:    18,
		TotalSupply: domain.Units(1_000_000, 18),
		FetchedAt:   1704067200000,
	}

	require.NoError(t, store.Insert(ctx, meta))

	got, err := store.GetByToken(ctx, testAddress(0xaa))
	require.NoError(t, err)
	require.Equal(t, "MTK", got.Symbol)
	require.True(t, got.TotalSupply.Eq(domain.Units(1_000_000, 18)))

	require.ErrorIs(t, store.Insert(ctx, meta), storage.ErrDuplicateKey)

	_, err = store.GetByToken(ctx, testAddress(0xbb))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSyncProgressStore_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewSyncProgressStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.SyncProgress{Source: "history", LastBlock: 5, UpdatedAt: 1}))
	require.NoError(t, store.Upsert(ctx, &domain.SyncProgress{Source: "history", LastBlock: 9, UpdatedAt: 2}))

	got, err := store.Get(ctx, "history")
	require.NoError(t, err)
	require.Equal(t, uint64(9), got.LastBlock)

	_, err = store.Get(ctx, "unknown")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
