package abi

import (
	"bytes"
	"encoding/hex"
	"math"
	"testing"

	"evm-token-lab/internal/domain"
)

func TestSelectorsMatchKnownValues(t *testing.T) {
	// Published ERC20 selector values.
	tests := []struct {
		method Method
		want   string
	}{
		{MethodName, "06fdde03"},
		{MethodSymbol, "95d89b41"},
		{MethodDecimals, "313ce567"},
		{MethodTotalSupply, "18160ddd"},
		{MethodBalanceOf, "70a08231"},
		{MethodAllowance, "dd62ed3e"},
		{MethodTransfer, "a9059cbb"},
		{MethodApprove, "095ea7b3"},
		{MethodTransferFrom, "23b872dd"},
		{methodError, "08c379a0"},
	}
	for _, tt := range tests {
		if got := hex.EncodeToString(tt.method.Selector[:]); got != tt.want {
			t.Errorf("%s selector = %s, want %s", tt.method.Signature, got, tt.want)
		}
	}
}

func TestPackTransferCalldata(t *testing.T) {
	to := domain.MustParseAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	data := MethodTransfer.Pack(AddressWord(to), AmountWord(domain.NewAmount(100)))

	want := "a9059cbb" +
		"00000000000000000000000070997970c51812dc3a010c7d01b50e0d17dc79c8" +
		"0000000000000000000000000000000000000000000000000000000000000064"
	if got := hex.EncodeToString(data); got != want {
		t.Errorf("calldata = %s, want %s", got, want)
	}
}

func TestSplitAndArgWords(t *testing.T) {
	owner := domain.MustParseAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	spender := domain.MustParseAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	data := MethodAllowance.Pack(AddressWord(owner), AddressWord(spender))

	sel, args, err := Split(data)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !bytes.Equal(sel[:], MethodAllowance.Selector[:]) {
		t.Errorf("selector = %x", sel)
	}

	w0, err := ArgWord(args, 0)
	if err != nil {
		t.Fatalf("ArgWord(0): %v", err)
	}
	got, err := WordAddress(w0)
	if err != nil {
		t.Fatalf("WordAddress: %v", err)
	}
	if got != owner {
		t.Errorf("arg 0 = %s, want %s", got, owner)
	}

	if _, err := ArgWord(args, 2); err == nil {
		t.Error("ArgWord(2) on two-word args did not fail")
	}
}

func TestSplitRejectsMalformed(t *testing.T) {
	if _, _, err := Split([]byte{0xa9, 0x05}); err == nil {
		t.Error("short calldata accepted")
	}
	if _, _, err := Split(append(MethodTransfer.Selector[:], 0x01)); err == nil {
		t.Error("ragged argument area accepted")
	}
}

func TestWordAddressRejectsDirtyPadding(t *testing.T) {
	w := AddressWord(domain.MustParseAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"))
	w[0] = 0xff
	if _, err := WordAddress(w); err == nil {
		t.Error("dirty padding accepted")
	}
}

func TestUnpackAmount(t *testing.T) {
	word := AmountWord(domain.Units(1_000_000, 18))
	got, err := UnpackAmount(word[:])
	if err != nil {
		t.Fatalf("UnpackAmount: %v", err)
	}
	if !got.Eq(domain.Units(1_000_000, 18)) {
		t.Errorf("amount = %s", got)
	}

	if _, err := UnpackAmount(word[:31]); err == nil {
		t.Error("short return data accepted")
	}
}

func TestUnpackBool(t *testing.T) {
	if got, err := UnpackBool(PackWords(BoolWord(true))); err != nil || !got {
		t.Errorf("true word = %v, %v", got, err)
	}
	if got, err := UnpackBool(PackWords(BoolWord(false))); err != nil || got {
		t.Errorf("false word = %v, %v", got, err)
	}
	if _, err := UnpackBool(PackWords(Uint64Word(2))); err == nil {
		t.Error("word holding 2 accepted as bool")
	}
}

func TestUnpackUint8(t *testing.T) {
	if got, err := UnpackUint8(PackWords(Uint64Word(18))); err != nil || got != 18 {
		t.Errorf("decimals = %d, %v", got, err)
	}
	if _, err := UnpackUint8(PackWords(Uint64Word(300))); err == nil {
		t.Error("oversized uint8 accepted")
	}
}

func TestStringRoundTrip(t *testing.T) {
	tests := []string{"", "MTK", "MyToken", "a string spilling over one packing word boundary"}
	for _, want := range tests {
		got, err := UnpackString(PackString(want))
		if err != nil {
			t.Fatalf("UnpackString(%q): %v", want, err)
		}
		if got != want {
			t.Errorf("round trip = %q, want %q", got, want)
		}
	}
}

func TestUnpackStringRejectsMalformed(t *testing.T) {
	if _, err := UnpackString([]byte{0x01}); err == nil {
		t.Error("short blob accepted")
	}

	// Length word claiming more bytes than present.
	blob := PackString("MyToken")
	copy(blob[WordLength:2*WordLength], PackWords(Uint64Word(1024)))
	if _, err := UnpackString(blob); err == nil {
		t.Error("oversized length accepted")
	}

	// Words chosen so naive addition in the bounds check would wrap
	// uint64.
	blob = PackString("MyToken")
	copy(blob[:WordLength], PackWords(Uint64Word(math.MaxUint64-WordLength+1)))
	if _, err := UnpackString(blob); err == nil {
		t.Error("wrapping offset accepted")
	}

	blob = PackString("MyToken")
	copy(blob[WordLength:2*WordLength], PackWords(Uint64Word(math.MaxUint64-2*WordLength)))
	if _, err := UnpackString(blob); err == nil {
		t.Error("wrapping length accepted")
	}
}

func TestRevertRoundTrip(t *testing.T) {
	data := EncodeRevert("transfer amount exceeds balance")
	reason, ok := DecodeRevert(data)
	if !ok || reason != "transfer amount exceeds balance" {
		t.Errorf("DecodeRevert = %q, %v", reason, ok)
	}

	if _, ok := DecodeRevert([]byte{0x01, 0x02, 0x03, 0x04}); ok {
		t.Error("arbitrary bytes decoded as revert")
	}
}
