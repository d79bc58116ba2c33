package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of an account address.
const AddressLength = 20

// Address is a 20-byte account identifier. Comparable, usable as a map key.
// The zero value is the zero address.
type Address [AddressLength]byte

// ParseAddress decodes a 0x-prefixed hex address. Letter case is not
// checked, so both plain and checksummed forms parse.
func ParseAddress(s string) (Address, error) {
	var a Address
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return a, fmt.Errorf("address %q: missing 0x prefix", s)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return a, fmt.Errorf("address %q: %w", s, err)
	}
	if len(raw) != AddressLength {
		return a, fmt.Errorf("address %q: want %d bytes, got %d", s, AddressLength, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress panics when s is not a valid address. For fixed
// constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Bytes returns the address as a fresh byte slice.
func (a Address) Bytes() []byte {
	return a[:]
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String renders the address as EIP-55 checksummed hex.
func (a Address) String() string {
	lower := hex.EncodeToString(a[:])
	sum := Keccak256([]byte(lower))
	out := []byte(lower)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && (sum[i/2]>>(4*uint(1-i%2)))&0xf >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return "0x" + string(out)
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
