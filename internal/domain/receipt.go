package domain

// ReceiptRecord represents a stored transaction receipt.
// Corresponds to the receipts table in PostgreSQL.
type ReceiptRecord struct {
	TxHash      Hash     // transaction identifier
	BlockNumber uint64   // block the transaction was mined in
	BlockHash   Hash     // hash of that block
	From        Address  // recovered sender
	To          *Address // nil for contract creation
	Status      uint8    // ReceiptStatus* constant
	GasUsed     uint64   // gas consumed by execution
	MinedAt     int64    // block timestamp (ms)
}

// Receipt status codes
const (
	ReceiptStatusReverted uint8 = 0
	ReceiptStatusSuccess  uint8 = 1
)
