package wallet

import (
	"encoding/binary"
	"fmt"

	"evm-token-lab/internal/domain"
)

// Minimal RLP codec covering what legacy transactions need: byte
// strings, unsigned integers and one level of list nesting. Decoding is
// strict about canonical form so the devnet rejects malleable
// encodings.

func rlpAppendBytes(dst, b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return append(dst, b[0])
	}
	dst = rlpAppendLength(dst, len(b), 0x80)
	return append(dst, b...)
}

func rlpAppendUint(dst []byte, v uint64) []byte {
	if v == 0 {
		return append(dst, 0x80)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	i := 0
	for buf[i] == 0 {
		i++
	}
	return rlpAppendBytes(dst, buf[i:])
}

func rlpAppendAmount(dst []byte, a domain.Amount) []byte {
	word := a.Bytes32()
	i := 0
	for i < len(word) && word[i] == 0 {
		i++
	}
	return rlpAppendBytes(dst, word[i:])
}

func rlpWrapList(payload []byte) []byte {
	out := rlpAppendLength(nil, len(payload), 0xc0)
	return append(out, payload...)
}

func rlpAppendLength(dst []byte, n int, offset byte) []byte {
	if n <= 55 {
		return append(dst, offset+byte(n))
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	i := 0
	for buf[i] == 0 {
		i++
	}
	dst = append(dst, offset+55+byte(8-i))
	return append(dst, buf[i:]...)
}

// rlpRead parses one item off the front of data.
func rlpRead(data []byte) (payload []byte, isList bool, rest []byte, err error) {
	if len(data) == 0 {
		return nil, false, nil, fmt.Errorf("rlp: empty input")
	}
	b0 := data[0]
	switch {
	case b0 < 0x80:
		return data[:1], false, data[1:], nil
	case b0 <= 0xb7:
		n := int(b0 - 0x80)
		if len(data) < 1+n {
			return nil, false, nil, fmt.Errorf("rlp: string of %d bytes truncated", n)
		}
		payload = data[1 : 1+n]
		if n == 1 && payload[0] < 0x80 {
			return nil, false, nil, fmt.Errorf("rlp: non-canonical single byte")
		}
		return payload, false, data[1+n:], nil
	case b0 <= 0xbf:
		return rlpReadLong(data, b0-0xb7, false)
	case b0 <= 0xf7:
		n := int(b0 - 0xc0)
		if len(data) < 1+n {
			return nil, false, nil, fmt.Errorf("rlp: list of %d bytes truncated", n)
		}
		return data[1 : 1+n], true, data[1+n:], nil
	default:
		return rlpReadLong(data, b0-0xf7, true)
	}
}

func rlpReadLong(data []byte, lenOfLen byte, isList bool) ([]byte, bool, []byte, error) {
	if lenOfLen > 8 || len(data) < 1+int(lenOfLen) {
		return nil, false, nil, fmt.Errorf("rlp: truncated length prefix")
	}
	lenBytes := data[1 : 1+lenOfLen]
	if lenBytes[0] == 0 {
		return nil, false, nil, fmt.Errorf("rlp: length has leading zeros")
	}
	var n uint64
	for _, b := range lenBytes {
		n = n<<8 | uint64(b)
	}
	if n <= 55 {
		return nil, false, nil, fmt.Errorf("rlp: non-canonical long length %d", n)
	}
	// Checked before computing end so a near-2^64 declared length
	// cannot wrap the bounds check.
	if n > uint64(len(data)) {
		return nil, false, nil, fmt.Errorf("rlp: payload of %d bytes truncated", n)
	}
	end := 1 + uint64(lenOfLen) + n
	if uint64(len(data)) < end {
		return nil, false, nil, fmt.Errorf("rlp: payload of %d bytes truncated", n)
	}
	return data[1+lenOfLen : end], isList, data[end:], nil
}

// rlpReadString reads one string item, rejecting nested lists.
func rlpReadString(data []byte) (payload, rest []byte, err error) {
	payload, isList, rest, err := rlpRead(data)
	if err != nil {
		return nil, nil, err
	}
	if isList {
		return nil, nil, fmt.Errorf("rlp: expected string, found list")
	}
	return payload, rest, nil
}

func rlpUint(payload []byte) (uint64, error) {
	if len(payload) > 8 {
		return 0, fmt.Errorf("rlp: integer of %d bytes exceeds 64 bits", len(payload))
	}
	if len(payload) > 0 && payload[0] == 0 {
		return 0, fmt.Errorf("rlp: integer has leading zeros")
	}
	var v uint64
	for _, b := range payload {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

func rlpAmount(payload []byte) (domain.Amount, error) {
	if len(payload) > 0 && payload[0] == 0 {
		return domain.Amount{}, fmt.Errorf("rlp: integer has leading zeros")
	}
	return domain.AmountFromBytes(payload)
}
