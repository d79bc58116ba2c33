package txclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/eth"
	"evm-token-lab/internal/observability"
)

// Pending is the handle for a broadcast, not yet resolved transaction.
// Any number of callers may Wait on it; a caller whose context expires
// gets a timed-out outcome while the watcher keeps tracking the hash,
// and the same handle (or a later Attach) can be awaited again.
type Pending struct {
	Hash domain.Hash

	done    chan struct{}
	outcome Outcome // valid after done closes
}

// Wait blocks until the transaction resolves or ctx ends. A context
// expiry yields StatusTimedOut: an ambiguous result, never proof the
// transaction did not happen.
func (p *Pending) Wait(ctx context.Context) Outcome {
	select {
	case <-p.done:
		return p.outcome
	case <-ctx.Done():
		return Outcome{Status: StatusTimedOut}
	}
}

// Resolved reports whether a terminal outcome has been observed.
func (p *Pending) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// watcher resolves pending transactions from one shared goroutine. It
// polls receipts on a timer and is nudged by new-head announcements, so
// tracking many transactions costs one timer rather than one goroutine
// per transaction.
type watcher struct {
	client       *Client
	heads        <-chan eth.Head
	pollInterval time.Duration
	clock        clockwork.Clock
	log          *zap.Logger

	mu      sync.Mutex
	tracked map[domain.Hash]*trackedTx

	quit chan struct{}
	wg   sync.WaitGroup
}

type trackedTx struct {
	pending *Pending
	probe   *eth.CallMsg // revert-reason lookup, optional
	since   time.Time
}

func newWatcher(client *Client, heads <-chan eth.Head, pollInterval time.Duration, clock clockwork.Clock) *watcher {
	return &watcher{
		client:       client,
		heads:        heads,
		pollInterval: pollInterval,
		clock:        clock,
		log:          client.log,
		tracked:      make(map[domain.Hash]*trackedTx),
		quit:         make(chan struct{}),
	}
}

func (w *watcher) start() {
	w.wg.Add(1)
	go w.loop()
}

func (w *watcher) stop() {
	close(w.quit)
	w.wg.Wait()
}

// track registers hash and returns its handle. Re-attaching to an
// already tracked hash returns the existing handle; a cached terminal
// receipt resolves immediately without touching the node.
func (w *watcher) track(hash domain.Hash, probe *eth.CallMsg) *Pending {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.tracked[hash]; ok {
		return t.pending
	}

	p := &Pending{Hash: hash, done: make(chan struct{})}
	if receipt, ok := w.client.receipts.Get(hash); ok {
		p.outcome = w.outcomeFor(receipt, probe)
		close(p.done)
		return p
	}

	w.tracked[hash] = &trackedTx{pending: p, probe: probe, since: time.Now()}
	return p
}

func (w *watcher) loop() {
	defer w.wg.Done()

	for {
		timer := w.clock.After(w.pollInterval)
		select {
		case <-w.quit:
			return
		case <-timer:
		case _, ok := <-w.heads:
			if !ok {
				// Head feed gone; keep polling on the timer alone.
				w.heads = nil
				continue
			}
		}
		w.pollOnce()
	}
}

// pollOnce checks every tracked hash against the node. Transport
// failures leave the hash tracked; the next tick retries.
func (w *watcher) pollOnce() {
	w.mu.Lock()
	snapshot := make(map[domain.Hash]*trackedTx, len(w.tracked))
	for h, t := range w.tracked {
		snapshot[h] = t
	}
	w.mu.Unlock()

	for hash, t := range snapshot {
		ctx, cancel := context.WithTimeout(context.Background(), w.pollInterval*4)
		receipt, err := w.client.node.GetTransactionReceipt(ctx, hash)
		cancel()
		if err != nil {
			w.log.Debug("receipt poll failed", zap.Stringer("hash", hash), zap.Error(err))
			continue
		}
		if receipt == nil {
			continue
		}
		w.resolve(hash, t, receipt)
	}
}

func (w *watcher) resolve(hash domain.Hash, t *trackedTx, receipt *eth.Receipt) {
	w.client.receipts.Add(hash, receipt)
	outcome := w.outcomeFor(receipt, t.probe)

	w.mu.Lock()
	delete(w.tracked, hash)
	w.mu.Unlock()

	t.pending.outcome = outcome
	close(t.pending.done)

	observability.RecordTxOutcome(outcome.Status.String(), time.Since(t.since))
	w.log.Debug("transaction resolved",
		zap.Stringer("hash", hash),
		zap.Stringer("status", outcome.Status),
		zap.Uint64("block", receipt.BlockNumber),
	)
}

// outcomeFor classifies a receipt. For reverts the original payload is
// re-simulated once to recover the contract's reason; the lookup is
// best effort and advisory, the status always comes from the receipt.
func (w *watcher) outcomeFor(receipt *eth.Receipt, probe *eth.CallMsg) Outcome {
	if receipt.Succeeded() {
		return Outcome{Status: StatusConfirmed, Receipt: receipt}
	}

	outcome := Outcome{Status: StatusReverted, Receipt: receipt}
	if probe != nil {
		ctx, cancel := context.WithTimeout(context.Background(), w.pollInterval*4)
		_, err := w.client.node.Call(ctx, *probe)
		cancel()
		var rpcErr *eth.RPCError
		if errors.As(err, &rpcErr) && rpcErr.IsRevert() {
			outcome.Reason, _ = rpcErr.RevertReason()
		}
	}
	return outcome
}
