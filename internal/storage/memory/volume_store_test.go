package memory

import (
	"context"
	"errors"
	"testing"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

func TestVolumeStore_InsertBulkAndRange(t *testing.T) {
	store := NewVolumeStore()
	ctx := context.Background()

	points := []*domain.VolumePoint{
		{BlockNumber: 3, TransferCount: 2, TokenVolume: domain.NewAmount(250)},
		{BlockNumber: 1, TransferCount: 1, TokenVolume: domain.NewAmount(100)},
		{BlockNumber: 5, TransferCount: 1, NativeVolume: domain.Units(1, 18)},
	}
	if err := store.InsertBulk(ctx, points); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByBlockRange(ctx, 1, 3)
	if err != nil {
		t.Fatalf("GetByBlockRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].BlockNumber != 1 || got[1].BlockNumber != 3 {
		t.Errorf("wrong ordering: %+v", got)
	}
}

func TestVolumeStore_DuplicateBlock(t *testing.T) {
	store := NewVolumeStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.VolumePoint{{BlockNumber: 1}}); err != nil {
		t.Fatalf("first InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.VolumePoint{{BlockNumber: 2}, {BlockNumber: 1}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetByBlockRange(ctx, 0, 10)
	if err != nil {
		t.Fatalf("GetByBlockRange failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("failed batch must insert nothing, found %d points", len(got))
	}
}
