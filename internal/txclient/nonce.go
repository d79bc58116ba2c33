package txclient

import (
	"context"
	"fmt"
	"sync"

	"evm-token-lab/internal/domain"
)

// nonceTracker hands out per-account nonces. Acquisition is a critical
// section per account: the account's slot stays locked across the node
// fetch, so two concurrent Builds can never hold the same value even
// when both race the same remote count.
type nonceTracker struct {
	node Node

	mu       sync.Mutex
	accounts map[domain.Address]*accountNonce
}

type accountNonce struct {
	mu sync.Mutex
	// next is the lowest nonce not yet reserved locally. The remote
	// pending count wins when it is ahead, which re-syncs the tracker
	// after transactions submitted elsewhere.
	next uint64
}

func newNonceTracker(node Node) *nonceTracker {
	return &nonceTracker{
		node:     node,
		accounts: make(map[domain.Address]*accountNonce),
	}
}

func (t *nonceTracker) account(addr domain.Address) *accountNonce {
	t.mu.Lock()
	defer t.mu.Unlock()
	acct := t.accounts[addr]
	if acct == nil {
		acct = &accountNonce{}
		t.accounts[addr] = acct
	}
	return acct
}

// acquire reserves the next nonce for addr, fetching the node's pending
// count fresh under the account lock.
func (t *nonceTracker) acquire(ctx context.Context, addr domain.Address) (uint64, error) {
	acct := t.account(addr)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	remote, err := t.node.GetTransactionCount(ctx, addr, "pending")
	if err != nil {
		return 0, fmt.Errorf("fetch nonce for %s: %w", addr, err)
	}
	nonce := acct.next
	if remote > nonce {
		nonce = remote
	}
	acct.next = nonce + 1
	return nonce, nil
}

// release returns a reserved nonce after a failed or abandoned
// broadcast, but only while it is still the newest reservation. If the
// transaction did reach the node despite the failure, the next acquire
// re-syncs from the remote pending count.
func (t *nonceTracker) release(addr domain.Address, nonce uint64) {
	acct := t.account(addr)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	if acct.next == nonce+1 {
		acct.next = nonce
	}
}
