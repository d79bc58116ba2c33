package txclient

import (
	"context"
	"errors"
	"fmt"

	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/eth"
	"evm-token-lab/internal/observability"
	"evm-token-lab/internal/wallet"
	"go.uber.org/zap"
)

// Call describes the ledger transition an intent should apply.
type Call struct {
	To    *domain.Address // nil creates a contract
	Value domain.Amount
	Data  []byte

	// GasLimit overrides the client default when non-zero.
	GasLimit uint64

	// GasPrice is the legacy single price. When zero the node's
	// suggestion is fetched at build time. Scenarios submitting with
	// escalating prices set it explicitly per intent.
	GasPrice domain.Amount
}

// intentState tracks an intent through its lifecycle.
type intentState int

const (
	stateBuilt intentState = iota
	stateSigned
	stateBroadcast
)

// Intent is one ledger-mutating transaction moving through
// built -> signed -> broadcast. The nonce is fixed at build time and
// never silently replaced; a failed broadcast requires a fresh Build.
type Intent struct {
	key   *wallet.Key
	tx    wallet.LegacyTx
	state intentState
}

// Nonce returns the value reserved at build time.
func (i *Intent) Nonce() uint64 {
	return i.tx.Nonce
}

// Signer returns the submitting account.
func (i *Intent) Signer() domain.Address {
	return i.key.Address()
}

// Build binds call to the next nonce of key's account. Acquisition is
// serialized per account: concurrent Builds for the same key always
// receive distinct nonces.
func (c *Client) Build(ctx context.Context, key *wallet.Key, call Call) (*Intent, error) {
	gasPrice := call.GasPrice
	if gasPrice.IsZero() {
		suggested, err := c.node.GasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch gas price: %w", err)
		}
		gasPrice = suggested
	}
	gasLimit := call.GasLimit
	if gasLimit == 0 {
		gasLimit = c.gasLimit
	}

	nonce, err := c.nonces.acquire(ctx, key.Address())
	if err != nil {
		return nil, err
	}

	observability.RecordTxBuilt()
	c.log.Debug("built intent",
		zap.Stringer("signer", key.Address()),
		zap.Uint64("nonce", nonce),
		zap.String("gas_price", gasPrice.String()),
	)

	return &Intent{
		key: key,
		tx: wallet.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			GasLimit: gasLimit,
			To:       call.To,
			Value:    call.Value,
			Data:     call.Data,
		},
	}, nil
}

// Sign completes the intent's EIP-155 signature, binding payload, nonce,
// fee parameters and chain id together.
func (c *Client) Sign(intent *Intent) error {
	if intent.state != stateBuilt {
		return fmt.Errorf("sign: intent is not in built state")
	}
	signed, err := wallet.SignTx(intent.tx, c.chainID, intent.key)
	if err != nil {
		return err
	}
	intent.tx = signed
	intent.state = stateSigned
	return nil
}

// Broadcast submits the signed intent and returns a pending handle.
// Broadcast is irrevocable: a cancelled wait never retracts the
// transaction. On a transport failure the reserved nonce is returned to
// the tracker and the caller retries with a fresh Build; the client
// never resubmits with a different nonce on its own.
func (c *Client) Broadcast(ctx context.Context, intent *Intent) (*Pending, error) {
	if intent.state != stateSigned {
		return nil, fmt.Errorf("broadcast: intent is not signed")
	}

	raw, err := intent.tx.Raw()
	if err != nil {
		return nil, err
	}

	hash, err := c.node.SendRawTransaction(ctx, raw)
	if err != nil {
		var netErr *eth.NetworkError
		if errors.As(err, &netErr) {
			c.nonces.release(intent.Signer(), intent.tx.Nonce)
		}
		return nil, classifySubmitError(err)
	}
	intent.state = stateBroadcast

	observability.RecordTxBroadcast()
	c.log.Debug("broadcast transaction",
		zap.Stringer("hash", hash),
		zap.Uint64("nonce", intent.tx.Nonce),
	)

	var probeMsg *eth.CallMsg
	if intent.tx.To != nil {
		from := intent.Signer()
		probeMsg = &eth.CallMsg{From: &from, To: *intent.tx.To, Data: intent.tx.Data}
	}
	return c.watcher.track(hash, probeMsg), nil
}

// Submit is the common path: Build, Sign and Broadcast in one step.
func (c *Client) Submit(ctx context.Context, key *wallet.Key, call Call) (*Pending, error) {
	intent, err := c.Build(ctx, key, call)
	if err != nil {
		return nil, err
	}
	if err := c.Sign(intent); err != nil {
		return nil, err
	}
	return c.Broadcast(ctx, intent)
}
