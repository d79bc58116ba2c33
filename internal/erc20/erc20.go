// Package erc20 is a typed binding over a deployed token contract:
// reads go straight to the node as static calls, writes run through the
// transaction client's full intent lifecycle.
package erc20

import (
	"context"
	"fmt"
	"strings"

	"evm-token-lab/internal/abi"
	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/eth"
	"evm-token-lab/internal/ledger"
	"evm-token-lab/internal/txclient"
	"evm-token-lab/internal/wallet"
)

// Caller executes static calls against latest state.
type Caller interface {
	Call(ctx context.Context, msg eth.CallMsg) ([]byte, error)
}

// Token binds a contract address to a node connection. The txclient is
// only needed for mutating operations; a read-only binding passes nil.
type Token struct {
	address domain.Address
	caller  Caller
	client  *txclient.Client
}

// New creates a binding for the token at address.
func New(address domain.Address, caller Caller, client *txclient.Client) *Token {
	return &Token{address: address, caller: caller, client: client}
}

// Address returns the bound contract address.
func (t *Token) Address() domain.Address {
	return t.address
}

// Reads.

func (t *Token) Name(ctx context.Context) (string, error) {
	out, err := t.caller.Call(ctx, eth.CallMsg{To: t.address, Data: abi.MethodName.Pack()})
	if err != nil {
		return "", fmt.Errorf("name: %w", err)
	}
	return abi.UnpackString(out)
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	out, err := t.caller.Call(ctx, eth.CallMsg{To: t.address, Data: abi.MethodSymbol.Pack()})
	if err != nil {
		return "", fmt.Errorf("symbol: %w", err)
	}
	return abi.UnpackString(out)
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.caller.Call(ctx, eth.CallMsg{To: t.address, Data: abi.MethodDecimals.Pack()})
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	return abi.UnpackUint8(out)
}

func (t *Token) TotalSupply(ctx context.Context) (domain.Amount, error) {
	out, err := t.caller.Call(ctx, eth.CallMsg{To: t.address, Data: abi.MethodTotalSupply.Pack()})
	if err != nil {
		return domain.Amount{}, fmt.Errorf("totalSupply: %w", err)
	}
	return abi.UnpackAmount(out)
}

func (t *Token) BalanceOf(ctx context.Context, addr domain.Address) (domain.Amount, error) {
	out, err := t.caller.Call(ctx, eth.CallMsg{
		To:   t.address,
		Data: abi.MethodBalanceOf.Pack(abi.AddressWord(addr)),
	})
	if err != nil {
		return domain.Amount{}, fmt.Errorf("balanceOf %s: %w", addr, err)
	}
	return abi.UnpackAmount(out)
}

func (t *Token) Allowance(ctx context.Context, owner, spender domain.Address) (domain.Amount, error) {
	out, err := t.caller.Call(ctx, eth.CallMsg{
		To:   t.address,
		Data: abi.MethodAllowance.Pack(abi.AddressWord(owner), abi.AddressWord(spender)),
	})
	if err != nil {
		return domain.Amount{}, fmt.Errorf("allowance %s->%s: %w", owner, spender, err)
	}
	return abi.UnpackAmount(out)
}

// Metadata fetches the full descriptor in one pass.
func (t *Token) Metadata(ctx context.Context) (domain.TokenMetadata, error) {
	name, err := t.Name(ctx)
	if err != nil {
		return domain.TokenMetadata{}, err
	}
	symbol, err := t.Symbol(ctx)
	if err != nil {
		return domain.TokenMetadata{}, err
	}
	decimals, err := t.Decimals(ctx)
	if err != nil {
		return domain.TokenMetadata{}, err
	}
	supply, err := t.TotalSupply(ctx)
	if err != nil {
		return domain.TokenMetadata{}, err
	}
	return domain.TokenMetadata{
		Token:       t.address,
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		TotalSupply: supply,
	}, nil
}

// Call builders. Exposed so callers can preflight or customize gas
// before committing to a submission.

func (t *Token) TransferCall(to domain.Address, amount domain.Amount) txclient.Call {
	return txclient.Call{
		To:   &t.address,
		Data: abi.MethodTransfer.Pack(abi.AddressWord(to), abi.AmountWord(amount)),
	}
}

func (t *Token) ApproveCall(spender domain.Address, amount domain.Amount) txclient.Call {
	return txclient.Call{
		To:   &t.address,
		Data: abi.MethodApprove.Pack(abi.AddressWord(spender), abi.AmountWord(amount)),
	}
}

func (t *Token) TransferFromCall(owner, to domain.Address, amount domain.Amount) txclient.Call {
	return txclient.Call{
		To:   &t.address,
		Data: abi.MethodTransferFrom.Pack(abi.AddressWord(owner), abi.AddressWord(to), abi.AmountWord(amount)),
	}
}

// Writes. Each returns a pending handle immediately after broadcast;
// the caller decides whether and how long to wait.

func (t *Token) Transfer(ctx context.Context, key *wallet.Key, to domain.Address, amount domain.Amount) (*txclient.Pending, error) {
	return t.submit(ctx, key, t.TransferCall(to, amount))
}

func (t *Token) Approve(ctx context.Context, key *wallet.Key, spender domain.Address, amount domain.Amount) (*txclient.Pending, error) {
	return t.submit(ctx, key, t.ApproveCall(spender, amount))
}

func (t *Token) TransferFrom(ctx context.Context, key *wallet.Key, owner, to domain.Address, amount domain.Amount) (*txclient.Pending, error) {
	return t.submit(ctx, key, t.TransferFromCall(owner, to, amount))
}

func (t *Token) submit(ctx context.Context, key *wallet.Key, call txclient.Call) (*txclient.Pending, error) {
	if t.client == nil {
		return nil, fmt.Errorf("read-only binding: no transaction client")
	}
	return t.client.Submit(ctx, key, call)
}

// RevertCause maps a node-reported revert reason back to the ledger
// sentinel it originated from. Unrecognized reasons come back verbatim.
func RevertCause(reason string) error {
	switch {
	case strings.Contains(reason, ledger.ErrInsufficientBalance.Error()):
		return ledger.ErrInsufficientBalance
	case strings.Contains(reason, ledger.ErrInsufficientAllowance.Error()):
		return ledger.ErrInsufficientAllowance
	case reason == "":
		return nil
	default:
		return fmt.Errorf("execution reverted: %s", reason)
	}
}
