package wallet

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"evm-token-lab/internal/domain"
)

// Signature errors.
var (
	// ErrUnsigned marks use of a transaction before Sign.
	ErrUnsigned = errors.New("transaction is not signed")

	// ErrChainMismatch marks a signature bound to a different chain id.
	// Replaying a transaction on another chain fails with this.
	ErrChainMismatch = errors.New("signature bound to a different chain")
)

// LegacyTx is a pre-EIP-1559 transaction with a single gas price. The
// EIP-155 signature digest covers payload, nonce, fee parameters and
// chain id together.
type LegacyTx struct {
	Nonce    uint64
	GasPrice domain.Amount
	GasLimit uint64
	To       *domain.Address // nil creates a contract
	Value    domain.Amount
	Data     []byte

	// Signature values; zero until signed.
	V    uint64
	R, S [32]byte
}

// Signed reports whether the transaction carries a signature.
func (tx *LegacyTx) Signed() bool {
	return tx.R != [32]byte{} || tx.S != [32]byte{}
}

func (tx *LegacyTx) encodeBody(dst []byte) []byte {
	dst = rlpAppendUint(dst, tx.Nonce)
	dst = rlpAppendAmount(dst, tx.GasPrice)
	dst = rlpAppendUint(dst, tx.GasLimit)
	if tx.To != nil {
		dst = rlpAppendBytes(dst, tx.To.Bytes())
	} else {
		dst = rlpAppendBytes(dst, nil)
	}
	dst = rlpAppendAmount(dst, tx.Value)
	dst = rlpAppendBytes(dst, tx.Data)
	return dst
}

// SigningHash is the EIP-155 digest for chainID: keccak256 of the nine
// item list ending in (chainID, 0, 0).
func (tx *LegacyTx) SigningHash(chainID uint64) domain.Hash {
	payload := tx.encodeBody(nil)
	payload = rlpAppendUint(payload, chainID)
	payload = rlpAppendUint(payload, 0)
	payload = rlpAppendUint(payload, 0)
	return domain.Keccak256(rlpWrapList(payload))
}

// SignTx signs tx for chainID with key and returns a completed copy.
// The input is not modified.
func SignTx(tx LegacyTx, chainID uint64, key *Key) (LegacyTx, error) {
	hash := tx.SigningHash(chainID)
	compact := ecdsa.SignCompact(key.priv, hash.Bytes(), false)
	recID := uint64(compact[0] - 27)
	if recID > 1 {
		return LegacyTx{}, fmt.Errorf("sign: unsupported recovery id %d", recID)
	}
	tx.V = chainID*2 + 35 + recID
	copy(tx.R[:], compact[1:33])
	copy(tx.S[:], compact[33:65])
	return tx, nil
}

// Raw returns the signed wire encoding, the form eth_sendRawTransaction
// accepts.
func (tx *LegacyTx) Raw() ([]byte, error) {
	if !tx.Signed() {
		return nil, ErrUnsigned
	}
	payload := tx.encodeBody(nil)
	payload = rlpAppendUint(payload, tx.V)
	payload = rlpAppendBytes(payload, trimLeadingZeros(tx.R))
	payload = rlpAppendBytes(payload, trimLeadingZeros(tx.S))
	return rlpWrapList(payload), nil
}

func trimLeadingZeros(word [32]byte) []byte {
	b := word[:]
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return b
}

// Hash is the transaction identifier: keccak256 of the signed wire
// encoding.
func (tx *LegacyTx) Hash() (domain.Hash, error) {
	raw, err := tx.Raw()
	if err != nil {
		return domain.Hash{}, err
	}
	return domain.Keccak256(raw), nil
}

// Sender recovers the signing address. The v value must carry chainID's
// EIP-155 binding, so a transaction signed for another chain fails with
// ErrChainMismatch.
func Sender(tx *LegacyTx, chainID uint64) (domain.Address, error) {
	if !tx.Signed() {
		return domain.Address{}, ErrUnsigned
	}
	base := chainID*2 + 35
	if tx.V != base && tx.V != base+1 {
		return domain.Address{}, fmt.Errorf("v=%d on chain %d: %w", tx.V, chainID, ErrChainMismatch)
	}
	compact := make([]byte, 65)
	compact[0] = byte(27 + (tx.V - base))
	copy(compact[1:33], tx.R[:])
	copy(compact[33:65], tx.S[:])

	hash := tx.SigningHash(chainID)
	pub, _, err := ecdsa.RecoverCompact(compact, hash.Bytes())
	if err != nil {
		return domain.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return pubkeyAddress(pub), nil
}

// DecodeTx parses a signed raw legacy transaction, enforcing canonical
// RLP throughout.
func DecodeTx(raw []byte) (LegacyTx, error) {
	var tx LegacyTx
	payload, isList, rest, err := rlpRead(raw)
	if err != nil {
		return tx, fmt.Errorf("decode tx: %w", err)
	}
	if !isList {
		return tx, fmt.Errorf("decode tx: not a list")
	}
	if len(rest) != 0 {
		return tx, fmt.Errorf("decode tx: %d trailing bytes", len(rest))
	}

	items := make([][]byte, 0, 9)
	for data := payload; len(data) > 0; {
		var item []byte
		item, data, err = rlpReadString(data)
		if err != nil {
			return tx, fmt.Errorf("decode tx: %w", err)
		}
		items = append(items, item)
	}
	if len(items) != 9 {
		return tx, fmt.Errorf("decode tx: %d fields, want 9", len(items))
	}

	if tx.Nonce, err = rlpUint(items[0]); err != nil {
		return tx, fmt.Errorf("decode tx nonce: %w", err)
	}
	if tx.GasPrice, err = rlpAmount(items[1]); err != nil {
		return tx, fmt.Errorf("decode tx gas price: %w", err)
	}
	if tx.GasLimit, err = rlpUint(items[2]); err != nil {
		return tx, fmt.Errorf("decode tx gas limit: %w", err)
	}
	switch len(items[3]) {
	case 0:
		// Contract creation.
	case domain.AddressLength:
		var to domain.Address
		copy(to[:], items[3])
		tx.To = &to
	default:
		return tx, fmt.Errorf("decode tx to: %d bytes", len(items[3]))
	}
	if tx.Value, err = rlpAmount(items[4]); err != nil {
		return tx, fmt.Errorf("decode tx value: %w", err)
	}
	tx.Data = append([]byte(nil), items[5]...)
	if tx.V, err = rlpUint(items[6]); err != nil {
		return tx, fmt.Errorf("decode tx v: %w", err)
	}
	r, err := rlpAmount(items[7])
	if err != nil {
		return tx, fmt.Errorf("decode tx r: %w", err)
	}
	tx.R = r.Bytes32()
	s, err := rlpAmount(items[8])
	if err != nil {
		return tx, fmt.Errorf("decode tx s: %w", err)
	}
	tx.S = s.Bytes32()

	if !tx.Signed() {
		return tx, fmt.Errorf("decode tx: %w", ErrUnsigned)
	}
	return tx, nil
}
