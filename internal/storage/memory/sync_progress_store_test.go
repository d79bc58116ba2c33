package memory

import (
	"context"
	"errors"
	"testing"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

func TestSyncProgressStore_UpsertOverwrites(t *testing.T) {
	store := NewSyncProgressStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.SyncProgress{Source: "history", LastBlock: 5}); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, &domain.SyncProgress{Source: "history", LastBlock: 9}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "history")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.LastBlock != 9 {
		t.Errorf("LastBlock mismatch: got %d, want 9", got.LastBlock)
	}
}

func TestSyncProgressStore_NotFound(t *testing.T) {
	store := NewSyncProgressStore()

	_, err := store.Get(context.Background(), "unknown")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncProgressStore_InvalidInput(t *testing.T) {
	store := NewSyncProgressStore()

	err := store.Upsert(context.Background(), &domain.SyncProgress{Source: ""})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
