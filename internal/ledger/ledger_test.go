package ledger

import (
	"errors"
	"testing"

	"evm-token-lab/internal/domain"
)

func addr(b byte) domain.Address {
	var a domain.Address
	a[domain.AddressLength-1] = b
	return a
}

func newTestLedger(t *testing.T) (*Ledger, domain.Address) {
	t.Helper()
	owner := addr(1)
	meta := domain.TokenMetadata{
		Token:       addr(0xAA),
		Name:        "MyToken",
		Symbol:      "MTK",
		Decimals:    18,
		TotalSupply: domain.Units(1_000_000, 18),
	}
	return New(meta, owner), owner
}

func requireSupplyIntact(t *testing.T, l *Ledger) {
	t.Helper()
	if sum := l.BalanceSum(); !sum.Eq(l.TotalSupply()) {
		t.Fatalf("balance sum %s != total supply %s", sum, l.TotalSupply())
	}
}

func TestGenesisMintsEverythingToOwner(t *testing.T) {
	l, owner := newTestLedger(t)

	if got := l.BalanceOf(owner); !got.Eq(l.TotalSupply()) {
		t.Errorf("owner balance = %s, want %s", got, l.TotalSupply())
	}
	if got := l.BalanceOf(addr(9)); !got.IsZero() {
		t.Errorf("stranger balance = %s, want 0", got)
	}
	requireSupplyIntact(t, l)
}

func TestTransferMovesBalance(t *testing.T) {
	l, owner := newTestLedger(t)
	other := addr(2)

	if err := l.Transfer(owner, other, domain.NewAmount(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := l.BalanceOf(other); !got.Eq(domain.NewAmount(100)) {
		t.Errorf("recipient balance = %s, want 100", got)
	}
	want, _ := l.TotalSupply().Sub(domain.NewAmount(100))
	if got := l.BalanceOf(owner); !got.Eq(want) {
		t.Errorf("owner balance = %s, want %s", got, want)
	}
	requireSupplyIntact(t, l)
}

func TestTransferInsufficientBalance(t *testing.T) {
	l, owner := newTestLedger(t)
	poor := addr(2)
	rich := addr(3)

	if err := l.Transfer(owner, poor, domain.NewAmount(10)); err != nil {
		t.Fatalf("fund: %v", err)
	}

	// One unit above the balance must revert and change nothing.
	err := l.Transfer(poor, rich, domain.NewAmount(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if got := l.BalanceOf(poor); !got.Eq(domain.NewAmount(10)) {
		t.Errorf("sender balance changed on revert: %s", got)
	}
	if got := l.BalanceOf(rich); !got.IsZero() {
		t.Errorf("recipient balance changed on revert: %s", got)
	}
	requireSupplyIntact(t, l)
}

func TestTransferEdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		amount uint64
		self   bool
	}{
		{"zero amount", 0, false},
		{"self transfer", 50, true},
		{"self transfer zero", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, owner := newTestLedger(t)
			before := l.BalanceOf(owner)

			to := addr(2)
			if tt.self {
				to = owner
			}
			if err := l.Transfer(owner, to, domain.NewAmount(tt.amount)); err != nil {
				t.Fatalf("transfer: %v", err)
			}
			if tt.self || tt.amount == 0 {
				if got := l.BalanceOf(owner); !got.Eq(before) {
					t.Errorf("owner balance = %s, want unchanged %s", got, before)
				}
			}
			requireSupplyIntact(t, l)
		})
	}
}

func TestSelfTransferAboveBalanceStillReverts(t *testing.T) {
	l, owner := newTestLedger(t)
	over, _ := l.BalanceOf(owner).Add(domain.NewAmount(1))

	if err := l.Transfer(owner, owner, over); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
	requireSupplyIntact(t, l)
}

func TestApproveOverwrites(t *testing.T) {
	l, owner := newTestLedger(t)
	spender := addr(2)

	l.Approve(owner, spender, domain.NewAmount(100))
	l.Approve(owner, spender, domain.NewAmount(40))

	// Overwrite, never additive.
	if got := l.Allowance(owner, spender); !got.Eq(domain.NewAmount(40)) {
		t.Errorf("allowance = %s, want 40", got)
	}
}

func TestApproveAboveBalanceIsLegal(t *testing.T) {
	l, _ := newTestLedger(t)
	broke := addr(7)
	spender := addr(8)

	// The balance check happens at spend time, not approve time.
	l.Approve(broke, spender, domain.Units(5, 18))
	if got := l.Allowance(broke, spender); !got.Eq(domain.Units(5, 18)) {
		t.Errorf("allowance = %s", got)
	}

	err := l.TransferFrom(spender, broke, addr(9), domain.NewAmount(1))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("spend err = %v, want ErrInsufficientBalance", err)
	}
	if got := l.Allowance(broke, spender); !got.Eq(domain.Units(5, 18)) {
		t.Errorf("allowance changed on reverted spend: %s", got)
	}
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	l, owner := newTestLedger(t)
	spender := addr(2)
	recipient := addr(3)

	l.Approve(owner, spender, domain.NewAmount(100))
	if err := l.TransferFrom(spender, owner, recipient, domain.NewAmount(100)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}

	if got := l.Allowance(owner, spender); !got.IsZero() {
		t.Errorf("allowance = %s, want 0", got)
	}
	if got := l.BalanceOf(recipient); !got.Eq(domain.NewAmount(100)) {
		t.Errorf("recipient balance = %s, want 100", got)
	}
	requireSupplyIntact(t, l)
}

func TestTransferFromWithoutAllowance(t *testing.T) {
	l, owner := newTestLedger(t)
	spender := addr(2)
	recipient := addr(3)

	err := l.TransferFrom(spender, owner, recipient, domain.NewAmount(1))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("err = %v, want ErrInsufficientAllowance", err)
	}
	if got := l.BalanceOf(owner); !got.Eq(l.TotalSupply()) {
		t.Errorf("owner balance changed on revert: %s", got)
	}
	requireSupplyIntact(t, l)
}

func TestScenarioTransferApproveTransferFrom(t *testing.T) {
	l, owner := newTestLedger(t)
	other := addr(2)
	recipient := addr(3)

	if err := l.Transfer(owner, other, domain.NewAmount(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := l.BalanceOf(other); !got.Eq(domain.NewAmount(100)) {
		t.Fatalf("other balance = %s, want 100", got)
	}
	wantOwner, _ := l.TotalSupply().Sub(domain.NewAmount(100))
	if got := l.BalanceOf(owner); !got.Eq(wantOwner) {
		t.Fatalf("owner balance = %s, want %s", got, wantOwner)
	}

	l.Approve(owner, other, domain.NewAmount(200))
	if got := l.Allowance(owner, other); !got.Eq(domain.NewAmount(200)) {
		t.Fatalf("allowance = %s, want 200", got)
	}

	if err := l.TransferFrom(other, owner, recipient, domain.NewAmount(150)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := l.BalanceOf(recipient); !got.Eq(domain.NewAmount(150)) {
		t.Errorf("recipient balance = %s, want 150", got)
	}
	if got := l.Allowance(owner, other); !got.Eq(domain.NewAmount(50)) {
		t.Errorf("allowance = %s, want 50", got)
	}
	requireSupplyIntact(t, l)
}

func TestSnapshotIsDetached(t *testing.T) {
	l, owner := newTestLedger(t)
	other := addr(2)
	l.Approve(owner, other, domain.NewAmount(5))

	snap := l.Snapshot()
	snap.Balances[owner] = domain.NewAmount(0)
	snap.Allowances[owner][other] = domain.NewAmount(99)

	if got := l.BalanceOf(owner); !got.Eq(l.TotalSupply()) {
		t.Errorf("mutating snapshot leaked into ledger: balance %s", got)
	}
	if got := l.Allowance(owner, other); !got.Eq(domain.NewAmount(5)) {
		t.Errorf("mutating snapshot leaked into ledger: allowance %s", got)
	}
}
