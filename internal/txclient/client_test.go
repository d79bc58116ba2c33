package txclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"evm-token-lab/internal/devnet"
	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/eth"
	"evm-token-lab/internal/wallet"
)

// stubNode is an in-memory Node with scriptable failures.
type stubNode struct {
	mu       sync.Mutex
	pending  map[domain.Address]uint64
	gasPrice domain.Amount
	sendErr  error
	callErr  error
	receipts map[domain.Hash]*eth.Receipt
	sent     int
}

func newStubNode() *stubNode {
	return &stubNode{
		pending:  make(map[domain.Address]uint64),
		gasPrice: domain.NewAmount(devnet.GasPriceSuggestion),
		receipts: make(map[domain.Hash]*eth.Receipt),
	}
}

func (n *stubNode) GetTransactionCount(ctx context.Context, addr domain.Address, tag string) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending[addr], nil
}

func (n *stubNode) GasPrice(ctx context.Context) (domain.Amount, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gasPrice, nil
}

func (n *stubNode) Call(ctx context.Context, msg eth.CallMsg) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.callErr != nil {
		return nil, n.callErr
	}
	return nil, nil
}

func (n *stubNode) SendRawTransaction(ctx context.Context, raw []byte) (domain.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return domain.Hash{}, n.sendErr
	}
	n.sent++
	return domain.Keccak256(raw), nil
}

func (n *stubNode) GetTransactionReceipt(ctx context.Context, hash domain.Hash) (*eth.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.receipts[hash], nil
}

func (n *stubNode) setSendErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendErr = err
}

func (n *stubNode) addReceipt(hash domain.Hash, status uint8) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts[hash] = &eth.Receipt{TxHash: hash, BlockNumber: 1, Status: status, GasUsed: 21_000}
}

func newStubClient(t *testing.T, node Node) *Client {
	t.Helper()
	c, err := New(Options{
		Node:         node,
		ChainID:      devnet.DefaultChainID,
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func testCall() Call {
	to := wallet.DevKeys()[1].Address()
	return Call{To: &to, Value: domain.NewAmount(1)}
}

func TestConcurrentBuildsReceiveDistinctNonces(t *testing.T) {
	c := newStubClient(t, newStubNode())
	key := wallet.DevKeys()[0]

	const n = 16
	nonces := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			intent, err := c.Build(context.Background(), key, testCall())
			if err != nil {
				t.Errorf("build: %v", err)
				return
			}
			nonces <- intent.Nonce()
		}()
	}
	wg.Wait()
	close(nonces)

	seen := make(map[uint64]bool, n)
	for nonce := range nonces {
		if seen[nonce] {
			t.Fatalf("nonce %d handed out twice", nonce)
		}
		seen[nonce] = true
	}
	for i := uint64(0); i < n; i++ {
		if !seen[i] {
			t.Errorf("nonce %d never handed out", i)
		}
	}
}

func TestBuildResyncsFromRemotePendingCount(t *testing.T) {
	node := newStubNode()
	c := newStubClient(t, node)
	key := wallet.DevKeys()[0]

	node.mu.Lock()
	node.pending[key.Address()] = 7
	node.mu.Unlock()

	intent, err := c.Build(context.Background(), key, testCall())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if intent.Nonce() != 7 {
		t.Errorf("nonce = %d, want remote pending count 7", intent.Nonce())
	}
}

func TestBroadcastNetworkFailureReleasesNonce(t *testing.T) {
	node := newStubNode()
	c := newStubClient(t, node)
	key := wallet.DevKeys()[0]
	ctx := context.Background()

	node.setSendErr(&eth.NetworkError{Err: errors.New("connection refused")})

	intent, err := c.Build(ctx, key, testCall())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := c.Sign(intent); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Broadcast(ctx, intent); err == nil {
		t.Fatal("broadcast should fail")
	}

	// The reserved nonce goes back; a rebuilt intent gets it again.
	node.setSendErr(nil)
	rebuilt, err := c.Build(ctx, key, testCall())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rebuilt.Nonce() != intent.Nonce() {
		t.Errorf("rebuilt nonce = %d, want released %d", rebuilt.Nonce(), intent.Nonce())
	}
}

func TestBroadcastNodeRejectionKeepsNonceAndClassifies(t *testing.T) {
	node := newStubNode()
	c := newStubClient(t, node)
	key := wallet.DevKeys()[0]
	ctx := context.Background()

	node.setSendErr(&eth.RPCError{Code: -32000, Message: "nonce too low"})

	intent, err := c.Build(ctx, key, testCall())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := c.Sign(intent); err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = c.Broadcast(ctx, intent)
	if !errors.Is(err, ErrInvalidNonce) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidNonce)
	}

	// A node rejection is not a transport failure; the nonce may be
	// burned remotely, so it is not handed out again locally.
	node.setSendErr(nil)
	rebuilt, err := c.Build(ctx, key, testCall())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rebuilt.Nonce() != intent.Nonce()+1 {
		t.Errorf("rebuilt nonce = %d, want %d", rebuilt.Nonce(), intent.Nonce()+1)
	}
}

func TestWaitTimeoutThenReattach(t *testing.T) {
	node := newStubNode()
	c := newStubClient(t, node)
	key := wallet.DevKeys()[0]
	ctx := context.Background()

	pending, err := c.Submit(ctx, key, testCall())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	outcome := pending.Wait(shortCtx)
	cancel()
	if outcome.Status != StatusTimedOut {
		t.Fatalf("outcome = %s, want timed out while unmined", outcome.Status)
	}
	if pending.Resolved() {
		t.Fatal("handle resolved without a receipt")
	}

	// The watcher kept tracking; once the receipt lands the same
	// handle resolves.
	node.addReceipt(pending.Hash, domain.ReceiptStatusSuccess)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	outcome = pending.Wait(waitCtx)
	if outcome.Status != StatusConfirmed {
		t.Fatalf("outcome = %s, want confirmed after receipt", outcome.Status)
	}

	// Re-attaching by hash serves the cached receipt immediately.
	attached := c.Attach(pending.Hash)
	if !attached.Resolved() {
		t.Error("attach after resolution should be resolved immediately")
	}
	if got := attached.Wait(ctx); got.Status != StatusConfirmed {
		t.Errorf("attached outcome = %s, want confirmed", got.Status)
	}
}

func TestRevertedOutcomeRecoversReason(t *testing.T) {
	node := newStubNode()
	c := newStubClient(t, node)
	key := wallet.DevKeys()[0]
	ctx := context.Background()

	node.mu.Lock()
	node.callErr = &eth.RPCError{Code: 3, Message: "execution reverted: transfer amount exceeds balance"}
	node.mu.Unlock()

	pending, err := c.Submit(ctx, key, testCall())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	node.addReceipt(pending.Hash, domain.ReceiptStatusReverted)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	outcome := pending.Wait(waitCtx)
	if outcome.Status != StatusReverted {
		t.Fatalf("outcome = %s, want reverted", outcome.Status)
	}
	if outcome.Reason != "transfer amount exceeds balance" {
		t.Errorf("reason = %q, want recovered revert reason", outcome.Reason)
	}
}

func TestSubmitAgainstNode(t *testing.T) {
	chain := devnet.New(devnet.Config{})
	srv := httptest.NewServer(devnet.NewServer(chain, nil))
	t.Cleanup(srv.Close)

	c := newStubClient(t, eth.NewHTTPClient(srv.URL, eth.WithMaxRetries(0)))
	keys := wallet.DevKeys()
	recipient := keys[1].Address()
	before := chain.BalanceAt(recipient)

	to := recipient
	pending, err := c.Submit(context.Background(), keys[0], Call{
		To:       &to,
		Value:    domain.Units(1, 18),
		GasLimit: 21_000,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	outcome := pending.Wait(ctx)
	if !outcome.Confirmed() {
		t.Fatalf("outcome = %s, want confirmed", outcome.Status)
	}
	want, _ := before.Add(domain.Units(1, 18))
	if got := chain.BalanceAt(recipient); !got.Eq(want) {
		t.Errorf("recipient balance = %s, want %s", got, want)
	}
}

func TestExplicitGasPriceEscalation(t *testing.T) {
	c := newStubClient(t, newStubNode())
	key := wallet.DevKeys()[0]

	for i, gwei := range []uint64{2, 3, 4, 6} {
		call := testCall()
		call.GasPrice = domain.NewAmount(gwei * 1_000_000_000)
		intent, err := c.Build(context.Background(), key, call)
		if err != nil {
			t.Fatalf("build %d: %v", i, err)
		}
		if intent.Nonce() != uint64(i) {
			t.Errorf("nonce = %d, want %d", intent.Nonce(), i)
		}
		if !intent.tx.GasPrice.Eq(call.GasPrice) {
			t.Errorf("gas price = %s, want %s", intent.tx.GasPrice, call.GasPrice)
		}
	}

	// Omitting the price falls back to the node suggestion.
	intent, err := c.Build(context.Background(), key, testCall())
	if err != nil {
		t.Fatalf("build default: %v", err)
	}
	if !intent.tx.GasPrice.Eq(domain.NewAmount(devnet.GasPriceSuggestion)) {
		t.Errorf("default gas price = %s", intent.tx.GasPrice)
	}
}
