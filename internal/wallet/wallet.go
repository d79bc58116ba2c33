// Package wallet holds secp256k1 account keys and signs legacy
// transactions with EIP-155 replay protection.
package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"evm-token-lab/internal/domain"
)

// Key is a secp256k1 signing key with its derived account address.
type Key struct {
	priv *secp256k1.PrivateKey
	addr domain.Address
}

// GenerateKey creates a fresh random key.
func GenerateKey() (*Key, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return fromPrivate(priv), nil
}

// ParseKey decodes a 32-byte hex private key, with or without the 0x
// prefix.
func ParseKey(s string) (*Key, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key: want 32 bytes, got %d", len(raw))
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("private key: zero scalar")
	}
	return fromPrivate(priv), nil
}

// MustParseKey panics when s is not a valid key. For fixed dev accounts
// and tests.
func MustParseKey(s string) *Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

func fromPrivate(priv *secp256k1.PrivateKey) *Key {
	return &Key{priv: priv, addr: pubkeyAddress(priv.PubKey())}
}

// Address returns the account address derived from the public key.
func (k *Key) Address() domain.Address {
	return k.addr
}

// pubkeyAddress derives the account address: the low 20 bytes of
// keccak256 over the uncompressed public key without its 0x04 tag.
func pubkeyAddress(pub *secp256k1.PublicKey) domain.Address {
	h := domain.Keccak256(pub.SerializeUncompressed()[1:])
	var addr domain.Address
	copy(addr[:], h.Bytes()[domain.HashLength-domain.AddressLength:])
	return addr
}

// Well-known deterministic dev-chain private keys. Every local EVM dev
// node derives the same ten accounts from the "test test ... junk"
// mnemonic; key 0 deploys the reference token.
var devKeyHex = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
	"8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba",
	"92db14e403b83dfe3df233f83dfa3a0d7096f21ca9b0d6d6b8d88b2b4ec1564e",
	"4bbbf85ce3377467afe5d46f804f221813b2bb87f24d81f60f1fcdbf7cbf4356",
	"dbda1821b80551c9d65939329250298aa3472ba22feea921c0cf5d620ea67b97",
	"2a871d0798f97d79848a013d4936a73bf4cc922c825d33c1cf7073dff6d409c6",
}

var devKeys = func() []*Key {
	keys := make([]*Key, len(devKeyHex))
	for i, h := range devKeyHex {
		keys[i] = MustParseKey(h)
	}
	return keys
}()

// DevKeys returns the deterministic dev-chain accounts the local devnet
// prefunds at genesis.
func DevKeys() []*Key {
	out := make([]*Key, len(devKeys))
	copy(out, devKeys)
	return out
}
