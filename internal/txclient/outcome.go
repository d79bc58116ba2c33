package txclient

import (
	"errors"
	"fmt"

	"evm-token-lab/internal/eth"
)

// Status is the terminal classification of a submitted intent.
type Status int

const (
	// StatusConfirmed means the transaction was mined and executed
	// without revert.
	StatusConfirmed Status = iota

	// StatusReverted means the transaction was mined but the ledger
	// transition failed. Reverts are deterministic for the included
	// state and are never retried.
	StatusReverted

	// StatusTimedOut means no receipt was observed within the wait
	// bound. The outcome is ambiguous: the transaction may still land,
	// so the handle stays attachable.
	StatusTimedOut
)

// String returns the status label used in logs and metrics.
func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusReverted:
		return "reverted"
	case StatusTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the typed result of a confirmation wait. Callers must
// branch on Status: a revert is a business-rule failure, a timeout is
// not evidence the transaction did not happen.
type Outcome struct {
	Status  Status
	Receipt *eth.Receipt // set unless timed out
	Reason  string       // revert reason when one could be recovered
}

// Confirmed reports whether the transaction executed successfully.
func (o Outcome) Confirmed() bool {
	return o.Status == StatusConfirmed
}

// ErrInvalidNonce marks a node rejection caused by nonce sequencing:
// the presented nonce was already used. This signals a caller-side
// sequencing bug, not a ledger business rule.
var ErrInvalidNonce = errors.New("invalid nonce")

// RevertError is a predicted or observed execution revert carrying the
// contract's reason.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}
