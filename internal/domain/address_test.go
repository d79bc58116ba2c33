package domain

import (
	"encoding/json"
	"testing"
)

func TestParseAddressRoundTrip(t *testing.T) {
	// Checksum vectors from EIP-55.
	tests := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
		"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
	}
	for _, want := range tests {
		a, err := ParseAddress(want)
		if err != nil {
			t.Fatalf("ParseAddress(%q): %v", want, err)
		}
		if got := a.String(); got != want {
			t.Errorf("checksum render = %q, want %q", got, want)
		}
	}
}

func TestParseAddressAcceptsLowercase(t *testing.T) {
	a, err := ParseAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if got := a.String(); got != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Errorf("checksum render = %q", got)
	}
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no prefix", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"},
		{"short", "0x5aaeb6"},
		{"long", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed00"},
		{"not hex", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaeg"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAddress(tt.in); err == nil {
				t.Errorf("ParseAddress(%q) accepted malformed input", tt.in)
			}
		})
	}
}

func TestAddressJSONMapKey(t *testing.T) {
	a := MustParseAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	m := map[Address]uint64{a: 7}

	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[Address]uint64
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[a] != 7 {
		t.Errorf("round trip lost entry: %v", back)
	}
}

func TestAddressIsZero(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Error("zero value not reported as zero")
	}
	if MustParseAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266").IsZero() {
		t.Error("non-zero address reported as zero")
	}
}
