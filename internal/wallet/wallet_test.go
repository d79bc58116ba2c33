package wallet

import (
	"testing"

	"evm-token-lab/internal/domain"
)

func TestDevKeyAddresses(t *testing.T) {
	// The published addresses of the deterministic dev mnemonic.
	tests := []struct {
		index int
		want  string
	}{
		{0, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"},
		{1, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"},
		{2, "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"},
		{3, "0x90F79bf6EB2c4f870365E785982E1f101E93b906"},
		{9, "0xa0Ee7A142d267C1f36714E4a8F75612F20a79720"},
	}
	keys := DevKeys()
	if len(keys) != 10 {
		t.Fatalf("DevKeys() returned %d keys, want 10", len(keys))
	}
	for _, tt := range tests {
		if got := keys[tt.index].Address().String(); got != tt.want {
			t.Errorf("dev key %d address = %s, want %s", tt.index, got, tt.want)
		}
	}
}

func TestParseKey(t *testing.T) {
	withPrefix := MustParseKey("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	bare := MustParseKey("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if withPrefix.Address() != bare.Address() {
		t.Error("prefix handling changed the derived address")
	}

	bad := []string{"", "0x1234", "not hex at all", "0x" + string(make([]byte, 64))}
	for _, in := range bad {
		if _, err := ParseKey(in); err == nil {
			t.Errorf("ParseKey(%q) accepted malformed input", in)
		}
	}
	zero := "0x0000000000000000000000000000000000000000000000000000000000000000"
	if _, err := ParseKey(zero); err == nil {
		t.Error("zero scalar accepted")
	}
}

func TestGenerateKeyDistinct(t *testing.T) {
	a, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	b, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if a.Address() == b.Address() {
		t.Error("two generated keys derived the same address")
	}
	if a.Address().IsZero() {
		t.Error("generated key derived the zero address")
	}
}

func TestAddressDerivationMatchesChecksum(t *testing.T) {
	key := MustParseKey(devKeyHex[0])
	want := domain.MustParseAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	if key.Address() != want {
		t.Errorf("address = %s, want %s", key.Address(), want)
	}
}
