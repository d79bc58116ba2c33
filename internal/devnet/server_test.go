package devnet

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evm-token-lab/internal/abi"
	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/eth"
	"evm-token-lab/internal/wallet"
)

func newTestServer(t *testing.T) (*Chain, *eth.HTTPClient, *httptest.Server) {
	t.Helper()
	chain := New(Config{})
	srv := httptest.NewServer(NewServer(chain, nil))
	t.Cleanup(srv.Close)
	client := eth.NewHTTPClient(srv.URL, eth.WithMaxRetries(0))
	return chain, client, srv
}

func TestServerBasicQueries(t *testing.T) {
	chain, client, _ := newTestServer(t)
	ctx := context.Background()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		t.Fatalf("chainId: %v", err)
	}
	if chainID != DefaultChainID {
		t.Errorf("chainId = %d, want %d", chainID, DefaultChainID)
	}

	head, err := client.BlockNumber(ctx)
	if err != nil {
		t.Fatalf("blockNumber: %v", err)
	}
	if head != 0 {
		t.Errorf("blockNumber = %d, want 0", head)
	}

	gasPrice, err := client.GasPrice(ctx)
	if err != nil {
		t.Fatalf("gasPrice: %v", err)
	}
	if !gasPrice.Eq(domain.NewAmount(GasPriceSuggestion)) {
		t.Errorf("gasPrice = %s, want %d", gasPrice, GasPriceSuggestion)
	}

	dev := wallet.DevKeys()[0].Address()
	balance, err := client.GetBalance(ctx, dev)
	if err != nil {
		t.Fatalf("getBalance: %v", err)
	}
	if want := chain.BalanceAt(dev); !balance.Eq(want) {
		t.Errorf("balance = %s, want %s", balance, want)
	}

	nonce, err := client.GetTransactionCount(ctx, dev, eth.BlockPending)
	if err != nil {
		t.Fatalf("getTransactionCount: %v", err)
	}
	if nonce != 0 {
		t.Errorf("nonce = %d, want 0", nonce)
	}
}

func TestServerSubmitAndReceipt(t *testing.T) {
	chain, client, _ := newTestServer(t)
	ctx := context.Background()
	keys := wallet.DevKeys()
	sender, recipient := keys[0], keys[1].Address()

	raw := signedRaw(t, sender, 0, recipient, domain.Units(1, 18), nil)
	hash, err := client.SendRawTransaction(ctx, raw)
	if err != nil {
		t.Fatalf("sendRawTransaction: %v", err)
	}

	receipt, err := client.GetTransactionReceipt(ctx, hash)
	if err != nil {
		t.Fatalf("getTransactionReceipt: %v", err)
	}
	if receipt == nil {
		t.Fatal("instantly mined transaction has no receipt")
	}
	if !receipt.Succeeded() {
		t.Errorf("status = %d, want success", receipt.Status)
	}
	if receipt.TxHash != hash {
		t.Errorf("receipt hash = %s, want %s", receipt.TxHash, hash)
	}
	if receipt.From != sender.Address() {
		t.Errorf("receipt from = %s, want %s", receipt.From, sender.Address())
	}
	if receipt.To == nil || *receipt.To != recipient {
		t.Errorf("receipt to = %v, want %s", receipt.To, recipient)
	}
	if receipt.GasUsed != gasTransfer {
		t.Errorf("gasUsed = %d, want %d", receipt.GasUsed, gasTransfer)
	}

	// Unknown hashes resolve to a nil receipt, not an error.
	missing, err := client.GetTransactionReceipt(ctx, domain.Keccak256([]byte("missing")))
	if err != nil {
		t.Fatalf("receipt for unknown hash: %v", err)
	}
	if missing != nil {
		t.Errorf("receipt for unknown hash = %+v, want nil", missing)
	}

	block, err := client.GetBlockByNumber(ctx, chain.BlockNumber())
	if err != nil {
		t.Fatalf("getBlockByNumber: %v", err)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("block has %d transactions, want 1", len(block.Transactions))
	}
	tx := block.Transactions[0]
	if tx.Hash != hash {
		t.Errorf("block tx hash = %s, want %s", tx.Hash, hash)
	}
	if !tx.Value.Eq(domain.Units(1, 18)) {
		t.Errorf("block tx value = %s, want 1 ETH", tx.Value)
	}
}

func TestServerSubmitErrors(t *testing.T) {
	_, client, _ := newTestServer(t)
	ctx := context.Background()
	keys := wallet.DevKeys()
	sender, recipient := keys[0], keys[1].Address()

	raw := signedRaw(t, sender, 0, recipient, domain.Units(1, 18), nil)
	if _, err := client.SendRawTransaction(ctx, raw); err != nil {
		t.Fatalf("first submission: %v", err)
	}

	_, err := client.SendRawTransaction(ctx, raw)
	var rpcErr *eth.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("err = %v, want RPCError", err)
	}
	if !strings.Contains(rpcErr.Message, "nonce too low") && !strings.Contains(rpcErr.Message, "already known") {
		t.Errorf("message = %q, want a stale-transaction rejection", rpcErr.Message)
	}
}

func TestServerCallRevert(t *testing.T) {
	_, client, _ := newTestServer(t)
	ctx := context.Background()
	keys := wallet.DevKeys()
	poor := keys[1].Address()

	_, err := client.Call(ctx, eth.CallMsg{
		From: &poor,
		To:   TokenAddress,
		Data: transferData(keys[2].Address(), domain.NewAmount(1)),
	})
	var rpcErr *eth.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("err = %v, want RPCError", err)
	}
	if !rpcErr.IsRevert() {
		t.Fatalf("message = %q, want execution revert", rpcErr.Message)
	}
	reason, ok := rpcErr.RevertReason()
	if !ok {
		t.Fatal("no revert reason recovered")
	}
	if !strings.Contains(reason, "transfer amount exceeds balance") {
		t.Errorf("reason = %q, want balance failure", reason)
	}
}

func TestServerCallReads(t *testing.T) {
	chain, client, _ := newTestServer(t)
	ctx := context.Background()
	dev := wallet.DevKeys()[0].Address()

	out, err := client.Call(ctx, eth.CallMsg{To: TokenAddress, Data: abi.MethodSymbol.Pack()})
	if err != nil {
		t.Fatalf("symbol: %v", err)
	}
	if symbol, _ := abi.UnpackString(out); symbol != "MTK" {
		t.Errorf("symbol = %q, want MTK", symbol)
	}

	out, err = client.Call(ctx, eth.CallMsg{To: TokenAddress, Data: abi.MethodBalanceOf.Pack(abi.AddressWord(dev))})
	if err != nil {
		t.Fatalf("balanceOf: %v", err)
	}
	balance, err := abi.UnpackAmount(out)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if !balance.Eq(chain.Token().TotalSupply()) {
		t.Errorf("balance = %s, want full supply", balance)
	}
}

func TestServerNewHeadsSubscription(t *testing.T) {
	chain, _, srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, err := eth.NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer ws.Close()

	heads, err := ws.SubscribeNewHeads(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	keys := wallet.DevKeys()
	mustSubmit(t, chain, signedRaw(t, keys[0], 0, keys[1].Address(), domain.Units(1, 18), nil))

	select {
	case head := <-heads:
		if head.Number != 1 {
			t.Errorf("head number = %d, want 1", head.Number)
		}
		if head.Hash == (domain.Hash{}) {
			t.Error("head hash is zero")
		}
	case <-ctx.Done():
		t.Fatal("no head notification")
	}
}
