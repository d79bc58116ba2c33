package history

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"evm-token-lab/internal/abi"
	"evm-token-lab/internal/devnet"
	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/eth"
	"evm-token-lab/internal/storage"
	"evm-token-lab/internal/storage/memory"
	"evm-token-lab/internal/wallet"
)

type fixture struct {
	chain     *devnet.Chain
	recorder  *Recorder
	receipts  *memory.ReceiptStore
	transfers *memory.TransferStore
	progress  *memory.SyncProgressStore
	volumes   *memory.VolumeStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chain := devnet.New(devnet.Config{})
	srv := httptest.NewServer(devnet.NewServer(chain, nil))
	t.Cleanup(srv.Close)

	f := &fixture{
		chain:     chain,
		receipts:  memory.NewReceiptStore(),
		transfers: memory.NewTransferStore(),
		progress:  memory.NewSyncProgressStore(),
		volumes:   memory.NewVolumeStore(),
	}
	recorder, err := New(Options{
		Node:      eth.NewHTTPClient(srv.URL, eth.WithMaxRetries(0)),
		Token:     devnet.TokenAddress,
		Receipts:  f.receipts,
		Transfers: f.transfers,
		Progress:  f.progress,
		Volumes:   f.volumes,
	})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	f.recorder = recorder
	return f
}

func submit(t *testing.T, chain *devnet.Chain, key *wallet.Key, nonce uint64, to domain.Address, value domain.Amount, data []byte) domain.Hash {
	t.Helper()
	gasLimit := uint64(21_000)
	if len(data) > 0 {
		gasLimit = 100_000
	}
	tx := wallet.LegacyTx{
		Nonce:    nonce,
		GasPrice: domain.NewAmount(devnet.GasPriceSuggestion),
		GasLimit: gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	}
	signed, err := wallet.SignTx(tx, devnet.DefaultChainID, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw, err := signed.Raw()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	hash, err := chain.SubmitRaw(raw)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return hash
}

func tokenTransfer(to domain.Address, amount domain.Amount) []byte {
	return abi.MethodTransfer.Pack(abi.AddressWord(to), abi.AmountWord(amount))
}

func TestCatchUpRecordsActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keys := wallet.DevKeys()
	owner, spender, recipient := keys[0], keys[1], keys[2].Address()

	// Block 1: native transfer. Block 2: token transfer. Block 3:
	// approve. Block 4: delegated transfer. Block 5: reverted transfer
	// from a token-poor account.
	nativeHash := submit(t, f.chain, owner, 0, recipient, domain.Units(2, 18), nil)
	tokenHash := submit(t, f.chain, owner, 1, devnet.TokenAddress, domain.Amount{}, tokenTransfer(recipient, domain.NewAmount(100)))
	submit(t, f.chain, owner, 2, devnet.TokenAddress, domain.Amount{},
		abi.MethodApprove.Pack(abi.AddressWord(spender.Address()), abi.AmountWord(domain.NewAmount(200))))
	delegatedHash := submit(t, f.chain, spender, 0, devnet.TokenAddress, domain.Amount{},
		abi.MethodTransferFrom.Pack(abi.AddressWord(owner.Address()), abi.AddressWord(recipient), abi.AmountWord(domain.NewAmount(150))))
	revertedHash := submit(t, f.chain, spender, 1, devnet.TokenAddress, domain.Amount{}, tokenTransfer(recipient, domain.NewAmount(1)))

	if err := f.recorder.CatchUp(ctx); err != nil {
		t.Fatalf("catch up: %v", err)
	}

	// Every mined transaction has a receipt row.
	for _, hash := range []domain.Hash{nativeHash, tokenHash, delegatedHash, revertedHash} {
		if _, err := f.receipts.GetByTxHash(ctx, hash); err != nil {
			t.Errorf("receipt for %s: %v", hash, err)
		}
	}
	reverted, err := f.receipts.GetByTxHash(ctx, revertedHash)
	if err != nil {
		t.Fatalf("reverted receipt: %v", err)
	}
	if reverted.Status != domain.ReceiptStatusReverted {
		t.Errorf("reverted status = %d, want 0", reverted.Status)
	}

	// Approvals and reverts produce no transfer rows.
	head := f.chain.BlockNumber()
	records, err := f.transfers.GetByBlockRange(ctx, 0, head)
	if err != nil {
		t.Fatalf("transfers: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("recorded %d transfers, want 3", len(records))
	}
	byKind := make(map[string]*domain.TransferRecord)
	for _, record := range records {
		byKind[record.Kind] = record
	}

	native := byKind[domain.TransferKindNative]
	if native == nil || native.TxHash != nativeHash || !native.Amount.Eq(domain.Units(2, 18)) {
		t.Errorf("native transfer = %+v", native)
	}
	token := byKind[domain.TransferKindToken]
	if token == nil || token.TxHash != tokenHash || !token.Amount.Eq(domain.NewAmount(100)) {
		t.Errorf("token transfer = %+v", token)
	}
	delegated := byKind[domain.TransferKindDelegated]
	if delegated == nil || delegated.TxHash != delegatedHash {
		t.Fatalf("delegated transfer = %+v", delegated)
	}
	if delegated.From != owner.Address() || delegated.To != recipient {
		t.Errorf("delegated endpoints = %s -> %s", delegated.From, delegated.To)
	}
	if delegated.Spender == nil || *delegated.Spender != spender.Address() {
		t.Errorf("delegated spender = %v, want %s", delegated.Spender, spender.Address())
	}

	// Cursor sits at the head.
	progress, err := f.progress.Get(ctx, DefaultSource)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.LastBlock != head {
		t.Errorf("cursor = %d, want %d", progress.LastBlock, head)
	}

	// One volume point per non-empty block; the token block moved 100.
	points, err := f.volumes.GetByBlockRange(ctx, 0, head)
	if err != nil {
		t.Fatalf("volumes: %v", err)
	}
	if len(points) != 5 {
		t.Fatalf("recorded %d volume points, want 5", len(points))
	}
	if !points[1].TokenVolume.Eq(domain.NewAmount(100)) || points[1].TransferCount != 1 {
		t.Errorf("block 2 volume = %+v", points[1])
	}
	if !points[0].NativeVolume.Eq(domain.Units(2, 18)) {
		t.Errorf("block 1 native volume = %s", points[0].NativeVolume)
	}
	if points[4].TransferCount != 0 {
		t.Errorf("reverted block transfer count = %d, want 0", points[4].TransferCount)
	}
}

func TestCatchUpIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keys := wallet.DevKeys()

	submit(t, f.chain, keys[0], 0, keys[1].Address(), domain.Units(1, 18), nil)

	if err := f.recorder.CatchUp(ctx); err != nil {
		t.Fatalf("first catch up: %v", err)
	}
	if err := f.recorder.CatchUp(ctx); err != nil {
		t.Fatalf("second catch up: %v", err)
	}

	records, err := f.transfers.GetByBlockRange(ctx, 0, f.chain.BlockNumber())
	if err != nil {
		t.Fatalf("transfers: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("recorded %d transfers after re-run, want 1", len(records))
	}
}

func TestRecorderResumesFromCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keys := wallet.DevKeys()

	submit(t, f.chain, keys[0], 0, keys[1].Address(), domain.Units(1, 18), nil)
	if err := f.recorder.CatchUp(ctx); err != nil {
		t.Fatalf("catch up: %v", err)
	}

	// Blocks recorded before the cursor was taken are not re-read:
	// wipe the receipt store, mine again, resume.
	fresh := memory.NewReceiptStore()
	f.recorder.receipts = fresh

	second := submit(t, f.chain, keys[0], 1, keys[1].Address(), domain.Units(1, 18), nil)
	if err := f.recorder.CatchUp(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}

	if _, err := fresh.GetByTxHash(ctx, second); err != nil {
		t.Errorf("new block not recorded after resume: %v", err)
	}
	all, err := fresh.GetByBlock(ctx, 1)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get by block: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("block before cursor re-recorded: %d rows", len(all))
	}
}
