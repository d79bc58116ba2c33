// Package txclient drives a ledger-mutating intent through its
// lifecycle: build with a freshly acquired nonce, sign with EIP-155
// replay protection, broadcast, and wait for the node to report a
// terminal outcome. Reads never pass through here.
package txclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/eth"
)

// Node is the JSON-RPC surface the client needs from a remote node.
// *eth.HTTPClient satisfies it.
type Node interface {
	GetTransactionCount(ctx context.Context, addr domain.Address, tag string) (uint64, error)
	GasPrice(ctx context.Context) (domain.Amount, error)
	Call(ctx context.Context, msg eth.CallMsg) ([]byte, error)
	SendRawTransaction(ctx context.Context, raw []byte) (domain.Hash, error)
	GetTransactionReceipt(ctx context.Context, hash domain.Hash) (*eth.Receipt, error)
}

var _ Node = (*eth.HTTPClient)(nil)

// Default configuration values.
const (
	DefaultGasLimit     = 300_000
	DefaultPollInterval = 500 * time.Millisecond
	receiptCacheSize    = 1024
)

// Options configures a Client. Node and ChainID are required.
type Options struct {
	Node    Node
	ChainID uint64

	// Heads, when set, nudges the confirmation watcher on every new
	// block so receipts resolve without waiting out a poll interval.
	Heads <-chan eth.Head

	// PollInterval is the receipt polling cadence. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	// GasLimit applies to intents that do not set their own. Defaults
	// to DefaultGasLimit.
	GasLimit uint64

	// Clock drives the watcher's timers. Real clock when nil.
	Clock clockwork.Clock

	// Logger receives lifecycle events. Nop when nil.
	Logger *zap.Logger
}

// Client submits transactions for any number of accounts, serializing
// nonce acquisition per account while letting independent intents sign,
// broadcast and confirm concurrently.
type Client struct {
	node     Node
	chainID  uint64
	gasLimit uint64
	log      *zap.Logger

	nonces   *nonceTracker
	watcher  *watcher
	receipts *lru.Cache[domain.Hash, *eth.Receipt]
}

// New creates a Client and starts its confirmation watcher.
func New(opts Options) (*Client, error) {
	if opts.Node == nil {
		return nil, fmt.Errorf("txclient: Node is required")
	}
	if opts.ChainID == 0 {
		return nil, fmt.Errorf("txclient: ChainID is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.GasLimit == 0 {
		opts.GasLimit = DefaultGasLimit
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	receipts, err := lru.New[domain.Hash, *eth.Receipt](receiptCacheSize)
	if err != nil {
		return nil, fmt.Errorf("txclient: receipt cache: %w", err)
	}

	c := &Client{
		node:     opts.Node,
		chainID:  opts.ChainID,
		gasLimit: opts.GasLimit,
		log:      opts.Logger,
		nonces:   newNonceTracker(opts.Node),
		receipts: receipts,
	}
	c.watcher = newWatcher(c, opts.Heads, opts.PollInterval, opts.Clock)
	c.watcher.start()
	return c, nil
}

// ChainID returns the chain identifier every signature binds.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// Close stops the confirmation watcher. Pending handles stop resolving.
func (c *Client) Close() {
	c.watcher.stop()
}

// Attach returns a handle for an already broadcast transaction, letting
// a caller resume a wait it previously cancelled. Terminal receipts are
// served from cache without re-polling.
func (c *Client) Attach(hash domain.Hash) *Pending {
	return c.watcher.track(hash, nil)
}

// Preflight simulates call against current state without broadcasting.
// A nil return predicts success; a *RevertError predicts a ledger-rule
// revert. Advisory only: state can change between simulation and
// inclusion.
func (c *Client) Preflight(ctx context.Context, from domain.Address, call Call) error {
	if call.To == nil {
		return fmt.Errorf("txclient: preflight requires a call target")
	}
	_, err := c.node.Call(ctx, eth.CallMsg{From: &from, To: *call.To, Data: call.Data})
	if err == nil {
		return nil
	}

	var rpcErr *eth.RPCError
	if errors.As(err, &rpcErr) && rpcErr.IsRevert() {
		reason, _ := rpcErr.RevertReason()
		return &RevertError{Reason: reason}
	}
	return fmt.Errorf("txclient: preflight: %w", err)
}

// classifySubmitError maps node rejections onto the client taxonomy.
func classifySubmitError(err error) error {
	var rpcErr *eth.RPCError
	if errors.As(err, &rpcErr) {
		msg := strings.ToLower(rpcErr.Message)
		if strings.Contains(msg, "nonce") {
			return fmt.Errorf("%w: %s", ErrInvalidNonce, rpcErr.Message)
		}
	}
	return err
}
