package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashLength is the byte length of a transaction or block hash.
const HashLength = 32

// Hash is a 32-byte transaction or block identifier.
type Hash [HashLength]byte

// ParseHash decodes a 0x-prefixed hex hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return h, fmt.Errorf("hash %q: missing 0x prefix", s)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return h, fmt.Errorf("hash %q: %w", s, err)
	}
	if len(raw) != HashLength {
		return h, fmt.Errorf("hash %q: want %d bytes, got %d", s, HashLength, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// MustParseHash panics when s is not a valid hash. For fixed constants
// and tests.
func MustParseHash(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String renders the hash as lowercase 0x-hex.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Keccak256 hashes the concatenation of data with legacy Keccak-256,
// the hash every EVM identifier is built from.
func Keccak256(data ...[]byte) Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var h Hash
	d.Sum(h[:0])
	return h
}
