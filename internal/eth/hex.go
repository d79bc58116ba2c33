package eth

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"evm-token-lab/internal/domain"
)

// Wire hex helpers. Quantities travel as minimal 0x-hex, data blobs as
// even-length 0x-hex.

func encodeUint(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

func decodeUint(s string) (uint64, error) {
	digits, err := stripHexPrefix(s)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("quantity %q: %w", s, err)
	}
	return v, nil
}

func encodeBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func decodeBytes(s string) ([]byte, error) {
	digits, err := stripHexPrefix(s)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("data %q: %w", s, err)
	}
	return raw, nil
}

func decodeAmount(s string) (domain.Amount, error) {
	if _, err := stripHexPrefix(s); err != nil {
		return domain.Amount{}, err
	}
	return domain.ParseAmount(s)
}

func stripHexPrefix(s string) (string, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("hex value %q: missing 0x prefix", s)
	}
	return s[2:], nil
}
