package domain

// TransferRecord represents a mined balance movement.
// Corresponds to the transfers table in PostgreSQL.
type TransferRecord struct {
	TxHash      Hash     // transaction that carried the movement
	BlockNumber uint64   // block the transaction was mined in
	TxIndex     uint32   // position within the block
	Kind        string   // TransferKind* constant
	From        Address  // debited account
	To          Address  // credited account
	Spender     *Address // approved spender for delegated transfers (nullable)
	Amount      Amount   // token or native units depending on Kind
	MinedAt     int64    // block timestamp (ms)
}

// Transfer kind codes
const (
	TransferKindToken     = "TOKEN"     // direct token transfer
	TransferKindDelegated = "DELEGATED" // allowance-funded transfer
	TransferKindNative    = "NATIVE"    // plain value transfer
)
