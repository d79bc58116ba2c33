package memory

import (
	"context"
	"errors"
	"testing"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/storage"
)

func TestTokenMetadataStore_InsertAndGet(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	meta := &domain.TokenMetadata{
		Token:       testAddress(0xaa),
		Name:        "MyToken",
		Symbol:      "MTK",
		Decimals:    18,
		TotalSupply: domain.Units(1_000_000, 18),
		FetchedAt:   1704067200000,
	}

	if err := store.Insert(ctx, meta); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByToken(ctx, testAddress(0xaa))
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if got.Symbol != "MTK" {
		t.Errorf("Symbol mismatch: got %s, want MTK", got.Symbol)
	}
	if !got.TotalSupply.Eq(domain.Units(1_000_000, 18)) {
		t.Errorf("TotalSupply mismatch: got %s", got.TotalSupply)
	}
}

func TestTokenMetadataStore_Duplicate(t *testing.T) {
	store := NewTokenMetadataStore()
	ctx := context.Background()

	meta := &domain.TokenMetadata{Token: testAddress(0xaa), Name: "MyToken", Decimals: 18}
	if err := store.Insert(ctx, meta); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	if err := store.Insert(ctx, meta); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTokenMetadataStore_NotFound(t *testing.T) {
	store := NewTokenMetadataStore()

	_, err := store.GetByToken(context.Background(), testAddress(0xbb))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
