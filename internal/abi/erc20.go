package abi

// The ERC20 function set. Selectors are derived once at init.
var (
	MethodName         = NewMethod("name()")
	MethodSymbol       = NewMethod("symbol()")
	MethodDecimals     = NewMethod("decimals()")
	MethodTotalSupply  = NewMethod("totalSupply()")
	MethodBalanceOf    = NewMethod("balanceOf(address)")
	MethodAllowance    = NewMethod("allowance(address,address)")
	MethodTransfer     = NewMethod("transfer(address,uint256)")
	MethodApprove      = NewMethod("approve(address,uint256)")
	MethodTransferFrom = NewMethod("transferFrom(address,address,uint256)")
)

// methodError is the canonical Error(string) revert wrapper.
var methodError = NewMethod("Error(string)")

// EncodeRevert builds the standard revert return data carrying reason.
func EncodeRevert(reason string) []byte {
	return append(methodError.Selector[:], PackString(reason)...)
}

// DecodeRevert extracts the reason from standard revert return data.
// ok is false when data is not an Error(string) payload.
func DecodeRevert(data []byte) (reason string, ok bool) {
	if !methodError.Matches(data) {
		return "", false
	}
	reason, err := UnpackString(data[SelectorLength:])
	if err != nil {
		return "", false
	}
	return reason, true
}
