// Package abi packs and unpacks contract call data: a 4-byte function
// selector followed by 32-byte big-endian argument words.
package abi

import (
	"bytes"
	"fmt"

	"evm-token-lab/internal/domain"
)

// WordLength is the byte length of one ABI argument word.
const WordLength = 32

// SelectorLength is the byte length of a function selector.
const SelectorLength = 4

// Method is a contract function with its precomputed selector,
// keccak256 of the canonical signature truncated to four bytes.
type Method struct {
	Signature string
	Selector  [SelectorLength]byte
}

// NewMethod derives a Method from a canonical signature like
// "transfer(address,uint256)".
func NewMethod(signature string) Method {
	h := domain.Keccak256([]byte(signature))
	var sel [SelectorLength]byte
	copy(sel[:], h.Bytes()[:SelectorLength])
	return Method{Signature: signature, Selector: sel}
}

// Pack builds calldata for the method from argument words.
func (m Method) Pack(words ...[WordLength]byte) []byte {
	return append(m.Selector[:], PackWords(words...)...)
}

// Matches reports whether data starts with the method's selector.
func (m Method) Matches(data []byte) bool {
	return len(data) >= SelectorLength && bytes.Equal(data[:SelectorLength], m.Selector[:])
}

// PackWords concatenates words into one blob.
func PackWords(words ...[WordLength]byte) []byte {
	out := make([]byte, 0, len(words)*WordLength)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

// Split separates calldata into the selector and the argument area. The
// argument area of a static call must be whole words.
func Split(data []byte) (sel [SelectorLength]byte, args []byte, err error) {
	if len(data) < SelectorLength {
		return sel, nil, fmt.Errorf("calldata %d bytes, want at least %d", len(data), SelectorLength)
	}
	args = data[SelectorLength:]
	if len(args)%WordLength != 0 {
		return sel, nil, fmt.Errorf("argument area %d bytes is not whole words", len(args))
	}
	copy(sel[:], data[:SelectorLength])
	return sel, args, nil
}

// ArgWord returns argument word i of the argument area.
func ArgWord(args []byte, i int) ([WordLength]byte, error) {
	var w [WordLength]byte
	start := i * WordLength
	if start < 0 || start+WordLength > len(args) {
		return w, fmt.Errorf("argument %d out of range, have %d words", i, len(args)/WordLength)
	}
	copy(w[:], args[start:start+WordLength])
	return w, nil
}

// AddressWord left-pads an address to a full word.
func AddressWord(a domain.Address) [WordLength]byte {
	var w [WordLength]byte
	copy(w[WordLength-domain.AddressLength:], a.Bytes())
	return w
}

// AmountWord renders a quantity as a big-endian word.
func AmountWord(a domain.Amount) [WordLength]byte {
	return a.Bytes32()
}

// Uint64Word renders v as a big-endian word. Covers every unsigned
// integer width below 256 bits.
func Uint64Word(v uint64) [WordLength]byte {
	return AmountWord(domain.NewAmount(v))
}

// BoolWord renders a boolean as a word, 1 for true.
func BoolWord(b bool) [WordLength]byte {
	var w [WordLength]byte
	if b {
		w[WordLength-1] = 1
	}
	return w
}

// WordAddress decodes an address word, rejecting dirty padding.
func WordAddress(w [WordLength]byte) (domain.Address, error) {
	var a domain.Address
	for _, b := range w[:WordLength-domain.AddressLength] {
		if b != 0 {
			return a, fmt.Errorf("address word has non-zero padding")
		}
	}
	copy(a[:], w[WordLength-domain.AddressLength:])
	return a, nil
}

// WordAmount decodes an unsigned 256-bit word.
func WordAmount(w [WordLength]byte) domain.Amount {
	a, _ := domain.AmountFromBytes(w[:])
	return a
}

// UnpackAmount decodes a return blob holding exactly one quantity word.
func UnpackAmount(data []byte) (domain.Amount, error) {
	if len(data) != WordLength {
		return domain.Amount{}, fmt.Errorf("return data %d bytes, want %d", len(data), WordLength)
	}
	return domain.AmountFromBytes(data)
}

// UnpackBool decodes a return blob holding exactly one boolean word.
func UnpackBool(data []byte) (bool, error) {
	amt, err := UnpackAmount(data)
	if err != nil {
		return false, err
	}
	switch {
	case amt.IsZero():
		return false, nil
	case amt.Eq(domain.NewAmount(1)):
		return true, nil
	default:
		return false, fmt.Errorf("boolean word holds %s", amt)
	}
}

// UnpackUint8 decodes a return blob holding one word constrained to a
// uint8, the decimals() shape.
func UnpackUint8(data []byte) (uint8, error) {
	amt, err := UnpackAmount(data)
	if err != nil {
		return 0, err
	}
	v, ok := amt.Uint64()
	if !ok || v > 0xff {
		return 0, fmt.Errorf("uint8 word holds %s", amt)
	}
	return uint8(v), nil
}

// PackString encodes s as a dynamic string return blob: offset word,
// length word, then the bytes padded to whole words.
func PackString(s string) []byte {
	payload := []byte(s)
	padded := (len(payload) + WordLength - 1) / WordLength * WordLength
	out := make([]byte, 2*WordLength+padded)
	copy(out[:WordLength], PackWords(Uint64Word(WordLength)))
	copy(out[WordLength:2*WordLength], PackWords(Uint64Word(uint64(len(payload)))))
	copy(out[2*WordLength:], payload)
	return out
}

// UnpackString decodes a dynamic string return blob.
func UnpackString(data []byte) (string, error) {
	if len(data) < 2*WordLength {
		return "", fmt.Errorf("string return %d bytes, want at least %d", len(data), 2*WordLength)
	}
	offsetWord, _ := domain.AmountFromBytes(data[:WordLength])
	// Subtraction form keeps crafted offsets from wrapping uint64 and
	// sliding past the bounds checks.
	offset, ok := offsetWord.Uint64()
	if !ok || offset > uint64(len(data))-WordLength {
		return "", fmt.Errorf("string offset %s out of range", offsetWord)
	}
	lengthWord, _ := domain.AmountFromBytes(data[offset : offset+WordLength])
	length, ok := lengthWord.Uint64()
	if !ok || length > uint64(len(data))-WordLength-offset {
		return "", fmt.Errorf("string length %s out of range", lengthWord)
	}
	start := offset + WordLength
	return string(data[start : start+length]), nil
}
