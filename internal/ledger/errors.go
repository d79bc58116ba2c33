package ledger

import "errors"

// Revert reasons. Mutating operations wrap these with call context; match
// with errors.Is. A revert leaves the ledger unchanged.
var (
	// ErrInsufficientBalance rejects a transfer exceeding the sender's balance.
	ErrInsufficientBalance = errors.New("transfer amount exceeds balance")

	// ErrInsufficientAllowance rejects a delegated transfer exceeding the
	// spender's approval.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)
