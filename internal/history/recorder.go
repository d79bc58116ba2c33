// Package history follows the chain head and records mined activity
// into storage: one receipt row per transaction, one transfer row per
// balance movement, and a per-block volume aggregate for analytics. The
// cursor lives in the progress store, so a restarted recorder resumes
// where it stopped instead of re-scanning from genesis.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/eth"
	"evm-token-lab/internal/observability"
	"evm-token-lab/internal/storage"
)

// DefaultPollInterval is the fallback cadence when no head feed is
// attached or the feed goes quiet.
const DefaultPollInterval = 2 * time.Second

// DefaultSource identifies this follower's cursor row.
const DefaultSource = "history"

// Node is the read surface the recorder needs. *eth.HTTPClient
// satisfies it.
type Node interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetBlockByNumber(ctx context.Context, number uint64) (*eth.Block, error)
	GetTransactionReceipt(ctx context.Context, hash domain.Hash) (*eth.Receipt, error)
}

var _ Node = (*eth.HTTPClient)(nil)

// Options configures a Recorder. Node, Token, Receipts, Transfers and
// Progress are required; Volumes is optional analytics output.
type Options struct {
	Node  Node
	Token domain.Address

	Receipts  storage.ReceiptStore
	Transfers storage.TransferStore
	Progress  storage.SyncProgressStore
	Volumes   storage.VolumeStore

	// Heads, when set, triggers recording as blocks are announced.
	// Polling continues either way and catches anything the feed drops.
	Heads <-chan eth.Head

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	// Source names the cursor row. Defaults to DefaultSource.
	Source string

	Clock  clockwork.Clock
	Logger *zap.Logger
}

// Recorder is the chain follower.
type Recorder struct {
	node  Node
	token domain.Address

	receipts  storage.ReceiptStore
	transfers storage.TransferStore
	progress  storage.SyncProgressStore
	volumes   storage.VolumeStore

	heads    <-chan eth.Head
	interval time.Duration
	source   string
	clock    clockwork.Clock
	log      *zap.Logger
}

// New validates opts and creates a Recorder. Run starts the loop.
func New(opts Options) (*Recorder, error) {
	if opts.Node == nil {
		return nil, fmt.Errorf("history: Node is required")
	}
	if opts.Receipts == nil || opts.Transfers == nil || opts.Progress == nil {
		return nil, fmt.Errorf("history: Receipts, Transfers and Progress stores are required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Recorder{
		node:      opts.Node,
		token:     opts.Token,
		receipts:  opts.Receipts,
		transfers: opts.Transfers,
		progress:  opts.Progress,
		volumes:   opts.Volumes,
		heads:     opts.Heads,
		interval:  opts.PollInterval,
		source:    opts.Source,
		clock:     opts.Clock,
		log:       opts.Logger,
	}, nil
}

// Run catches up to the head, then keeps following until ctx ends.
// Recording failures are logged and retried on the next tick; the
// cursor only advances past fully recorded blocks.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		if err := r.CatchUp(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Warn("catch up", zap.Error(err))
		}

		timer := r.clock.After(r.interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer:
		case _, ok := <-r.heads:
			if !ok {
				r.heads = nil
			}
		}
	}
}

// CatchUp records every block between the stored cursor and the current
// head, advancing the cursor after each block.
func (r *Recorder) CatchUp(ctx context.Context) error {
	cursor, err := r.cursor(ctx)
	if err != nil {
		return err
	}
	head, err := r.node.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("fetch head: %w", err)
	}

	for number := cursor + 1; number <= head; number++ {
		if err := r.RecordBlock(ctx, number); err != nil {
			return fmt.Errorf("record block %d: %w", number, err)
		}
	}
	return nil
}

// cursor returns the highest fully recorded block, zero for a fresh
// follower. The genesis block carries no transactions, so starting the
// scan at block one loses nothing.
func (r *Recorder) cursor(ctx context.Context) (uint64, error) {
	progress, err := r.progress.Get(ctx, r.source)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	return progress.LastBlock, nil
}

// RecordBlock fetches one block, decodes its activity and writes it
// out. Re-recording an already stored block is a no-op: duplicate rows
// are skipped, not errors.
func (r *Recorder) RecordBlock(ctx context.Context, number uint64) error {
	block, err := r.node.GetBlockByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("fetch block: %w", err)
	}
	if block == nil {
		return fmt.Errorf("block %d not found", number)
	}

	var records []*domain.TransferRecord
	for i := range block.Transactions {
		tx := &block.Transactions[i]
		receipt, err := r.node.GetTransactionReceipt(ctx, tx.Hash)
		if err != nil {
			return fmt.Errorf("fetch receipt %s: %w", tx.Hash, err)
		}
		if receipt == nil {
			return fmt.Errorf("mined transaction %s has no receipt", tx.Hash)
		}

		if err := r.insertReceipt(ctx, block, receipt); err != nil {
			return err
		}
		records = append(records, decodeTransfers(r.token, block, tx, receipt)...)
	}

	if err := r.insertTransfers(ctx, records); err != nil {
		return err
	}
	if err := r.insertVolume(ctx, block, records); err != nil {
		return err
	}

	if err := r.progress.Upsert(ctx, &domain.SyncProgress{
		Source:    r.source,
		LastBlock: number,
		UpdatedAt: r.clock.Now().UnixMilli(),
	}); err != nil {
		observability.RecordStorageError("sync_progress")
		return fmt.Errorf("advance cursor: %w", err)
	}

	observability.RecordBlockRecorded(number)
	r.log.Debug("block recorded",
		zap.Uint64("number", number),
		zap.Int("txs", len(block.Transactions)),
		zap.Int("transfers", len(records)),
	)
	return nil
}

func (r *Recorder) insertReceipt(ctx context.Context, block *eth.Block, receipt *eth.Receipt) error {
	record := &domain.ReceiptRecord{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
		BlockHash:   receipt.BlockHash,
		From:        receipt.From,
		To:          receipt.To,
		Status:      receipt.Status,
		GasUsed:     receipt.GasUsed,
		MinedAt:     int64(block.Time) * 1000,
	}
	err := r.receipts.Insert(ctx, record)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	if err != nil {
		observability.RecordStorageError("receipts")
		return fmt.Errorf("insert receipt %s: %w", receipt.TxHash, err)
	}
	return nil
}

func (r *Recorder) insertTransfers(ctx context.Context, records []*domain.TransferRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := r.transfers.InsertBulk(ctx, records)
	if err == nil {
		for _, record := range records {
			observability.RecordTransferRecorded(record.Kind)
		}
		return nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		observability.RecordStorageError("transfers")
		return fmt.Errorf("insert transfers: %w", err)
	}

	// The bulk insert is all-or-nothing; on a partial re-record fall
	// back to row inserts and skip what is already there.
	for _, record := range records {
		err := r.transfers.Insert(ctx, record)
		if errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		if err != nil {
			observability.RecordStorageError("transfers")
			return fmt.Errorf("insert transfer %s/%s: %w", record.TxHash, record.Kind, err)
		}
		observability.RecordTransferRecorded(record.Kind)
	}
	return nil
}

func (r *Recorder) insertVolume(ctx context.Context, block *eth.Block, records []*domain.TransferRecord) error {
	if r.volumes == nil || len(block.Transactions) == 0 {
		return nil
	}
	point := aggregateVolume(block, records)
	err := r.volumes.InsertBulk(ctx, []*domain.VolumePoint{point})
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	if err != nil {
		observability.RecordStorageError("transfer_volume")
		return fmt.Errorf("insert volume point: %w", err)
	}
	return nil
}
