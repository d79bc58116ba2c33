package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 256-bit token quantity. The zero value is zero.
// Arithmetic reports overflow and underflow instead of wrapping; a failed
// operation is a revert condition for the caller, never silent wraparound.
type Amount struct {
	u uint256.Int
}

// NewAmount returns v as an Amount.
func NewAmount(v uint64) Amount {
	var a Amount
	a.u.SetUint64(v)
	return a
}

// Units returns n scaled by 10^decimals, e.g. Units(5, 18) is five whole
// tokens of an 18-decimal token. Panics when the product overflows.
func Units(n uint64, decimals uint8) Amount {
	var scale uint256.Int
	scale.Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	var a Amount
	if _, overflow := a.u.MulOverflow(uint256.NewInt(n), &scale); overflow {
		panic(fmt.Sprintf("amount: %d * 10^%d overflows 256 bits", n, decimals))
	}
	return a
}

// ParseAmount decodes a decimal or 0x-prefixed hex quantity.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if s == "" {
		return a, fmt.Errorf("amount: empty string")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		u, err := uint256.FromHex("0x" + s[2:])
		if err != nil {
			return a, fmt.Errorf("amount %q: %w", s, err)
		}
		a.u = *u
		return a, nil
	}
	u, err := uint256.FromDecimal(s)
	if err != nil {
		return a, fmt.Errorf("amount %q: %w", s, err)
	}
	a.u = *u
	return a, nil
}

// MustParseAmount panics when s is not a valid amount. For fixed
// constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AmountFromBytes decodes a big-endian quantity of at most 32 bytes.
func AmountFromBytes(b []byte) (Amount, error) {
	var a Amount
	if len(b) > 32 {
		return a, fmt.Errorf("amount: %d bytes exceeds 256 bits", len(b))
	}
	a.u.SetBytes(b)
	return a, nil
}

// AmountFromBig converts b, rejecting negative and oversized values.
func AmountFromBig(b *big.Int) (Amount, error) {
	var a Amount
	if b.Sign() < 0 {
		return a, fmt.Errorf("amount: negative value %s", b)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return a, fmt.Errorf("amount: %s exceeds 256 bits", b)
	}
	a.u = *u
	return a, nil
}

// Add returns a+b. ok is false when the sum overflows 256 bits.
func (a Amount) Add(b Amount) (sum Amount, ok bool) {
	_, overflow := sum.u.AddOverflow(&a.u, &b.u)
	return sum, !overflow
}

// Sub returns a-b. ok is false when b exceeds a.
func (a Amount) Sub(b Amount) (diff Amount, ok bool) {
	_, underflow := diff.u.SubOverflow(&a.u, &b.u)
	return diff, !underflow
}

// Mul returns a*b. ok is false when the product overflows 256 bits.
func (a Amount) Mul(b Amount) (prod Amount, ok bool) {
	_, overflow := prod.u.MulOverflow(&a.u, &b.u)
	return prod, !overflow
}

// Cmp returns -1, 0 or 1 as a is below, equal to or above b.
func (a Amount) Cmp(b Amount) int {
	return a.u.Cmp(&b.u)
}

// Lt reports a < b.
func (a Amount) Lt(b Amount) bool {
	return a.u.Lt(&b.u)
}

// Eq reports a == b.
func (a Amount) Eq(b Amount) bool {
	return a.u.Eq(&b.u)
}

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool {
	return a.u.IsZero()
}

// Uint64 returns the low 64 bits. ok is false when a does not fit.
func (a Amount) Uint64() (uint64, bool) {
	if !a.u.IsUint64() {
		return 0, false
	}
	return a.u.Uint64(), true
}

// Bytes32 returns the quantity as a 32-byte big-endian word.
func (a Amount) Bytes32() [32]byte {
	return a.u.Bytes32()
}

// BigInt returns a copy as a big.Int.
func (a Amount) BigInt() *big.Int {
	return a.u.ToBig()
}

// String renders the quantity in decimal.
func (a Amount) String() string {
	return a.u.Dec()
}

// Hex renders the quantity as minimal 0x-hex.
func (a Amount) Hex() string {
	return a.u.Hex()
}

// MarshalText implements encoding.TextMarshaler, rendering decimal.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.u.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting decimal
// or 0x-hex.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
