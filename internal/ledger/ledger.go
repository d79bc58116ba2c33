package ledger

import (
	"fmt"
	"sync"

	"evm-token-lab/internal/domain"
)

// Ledger is the authoritative token balance and allowance state machine.
// Every mutating operation applies atomically: a failing call leaves the
// state exactly as it was. Safe for concurrent use.
type Ledger struct {
	mu         sync.RWMutex
	meta       domain.TokenMetadata
	balances   map[domain.Address]domain.Amount
	allowances map[allowanceKey]domain.Amount
}

type allowanceKey struct {
	owner   domain.Address
	spender domain.Address
}

// Snapshot is a deep copy of the ledger state at one instant.
type Snapshot struct {
	Metadata   domain.TokenMetadata
	Balances   map[domain.Address]domain.Amount
	Allowances map[domain.Address]map[domain.Address]domain.Amount
}

// New creates a ledger and mints the entire supply to owner. The mint is
// the genesis transition: no state before it is observable.
func New(meta domain.TokenMetadata, owner domain.Address) *Ledger {
	l := &Ledger{
		meta:       meta,
		balances:   make(map[domain.Address]domain.Amount),
		allowances: make(map[allowanceKey]domain.Amount),
	}
	l.balances[owner] = meta.TotalSupply
	return l
}

// Metadata returns the token description fixed at genesis.
func (l *Ledger) Metadata() domain.TokenMetadata {
	return l.meta
}

// TotalSupply returns the fixed token supply.
func (l *Ledger) TotalSupply() domain.Amount {
	return l.meta.TotalSupply
}

// BalanceOf returns the balance of addr. Unknown accounts hold zero.
func (l *Ledger) BalanceOf(addr domain.Address) domain.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr]
}

// Allowance returns what spender may move out of owner's balance.
// Absent entries are zero.
func (l *Ledger) Allowance(owner, spender domain.Address) domain.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances[allowanceKey{owner, spender}]
}

// Transfer moves amount from one account to another. It fails iff the
// sender's balance is below amount. Zero amounts and self-transfers are
// legal no-effect transitions.
func (l *Ledger) Transfer(from, to domain.Address, amount domain.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(from, to, amount)
}

func (l *Ledger) transfer(from, to domain.Address, amount domain.Amount) error {
	fromBal, ok := l.balances[from].Sub(amount)
	if !ok {
		return fmt.Errorf("transfer from %s: %w", from, ErrInsufficientBalance)
	}
	if from == to || amount.IsZero() {
		return nil
	}
	toBal, ok := l.balances[to].Add(amount)
	if !ok {
		// Unreachable while the supply invariant holds: no balance can
		// exceed the total supply.
		return fmt.Errorf("transfer to %s: balance overflow", to)
	}
	l.balances[from] = fromBal
	l.balances[to] = toBal
	return nil
}

// Approve sets spender's allowance over owner's balance to amount,
// overwriting any previous value. Approving above the current balance is
// legal: the balance check happens at spend time.
func (l *Ledger) Approve(owner, spender domain.Address, amount domain.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{owner, spender}] = amount
}

// TransferFrom moves amount from owner to recipient on spender's
// authority. Both the allowance and the owner's balance must cover
// amount; on success the allowance is reduced by amount.
func (l *Ledger) TransferFrom(spender, owner, to domain.Address, amount domain.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := allowanceKey{owner, spender}
	remaining, ok := l.allowances[key].Sub(amount)
	if !ok {
		return fmt.Errorf("transfer from %s by %s: %w", owner, spender, ErrInsufficientAllowance)
	}
	if err := l.transfer(owner, to, amount); err != nil {
		return err
	}
	l.allowances[key] = remaining
	return nil
}

// Snapshot copies the full ledger state for auditing.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{
		Metadata:   l.meta,
		Balances:   make(map[domain.Address]domain.Amount, len(l.balances)),
		Allowances: make(map[domain.Address]map[domain.Address]domain.Amount),
	}
	for addr, bal := range l.balances {
		snap.Balances[addr] = bal
	}
	for key, amt := range l.allowances {
		byOwner := snap.Allowances[key.owner]
		if byOwner == nil {
			byOwner = make(map[domain.Address]domain.Amount)
			snap.Allowances[key.owner] = byOwner
		}
		byOwner[key.spender] = amt
	}
	return snap
}

// BalanceSum adds up every account balance. While the ledger is healthy
// it equals the total supply.
func (l *Ledger) BalanceSum() domain.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum domain.Amount
	for _, bal := range l.balances {
		next, ok := sum.Add(bal)
		if !ok {
			// Only possible with a corrupted state.
			panic("ledger: balance sum overflows 256 bits")
		}
		sum = next
	}
	return sum
}
