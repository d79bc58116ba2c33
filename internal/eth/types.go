package eth

import (
	"fmt"

	"evm-token-lab/internal/domain"
)

// CallMsg describes a static execution request against latest state.
type CallMsg struct {
	From *domain.Address
	To   domain.Address
	Data []byte
}

func (m CallMsg) toParam() map[string]string {
	param := map[string]string{
		"to":   m.To.String(),
		"data": encodeBytes(m.Data),
	}
	if m.From != nil {
		param["from"] = m.From.String()
	}
	return param
}

// Receipt is the node's confirmation record for a mined transaction,
// carrying the execution outcome.
type Receipt struct {
	TxHash          domain.Hash
	TxIndex         uint32
	BlockNumber     uint64
	BlockHash       domain.Hash
	From            domain.Address
	To              *domain.Address
	Status          uint8
	GasUsed         uint64
	ContractAddress *domain.Address
}

// Succeeded reports whether the transaction executed without revert.
func (r *Receipt) Succeeded() bool {
	return r.Status == domain.ReceiptStatusSuccess
}

// Head is a new-block announcement.
type Head struct {
	Number     uint64
	Hash       domain.Hash
	ParentHash domain.Hash
	Time       uint64
}

// Block is a mined block with its transactions.
type Block struct {
	Number       uint64
	Hash         domain.Hash
	ParentHash   domain.Hash
	Time         uint64
	Transactions []BlockTx
}

// BlockTx is one transaction inside a fetched block.
type BlockTx struct {
	Hash     domain.Hash
	Index    uint32
	Nonce    uint64
	From     domain.Address
	To       *domain.Address
	Value    domain.Amount
	GasLimit uint64
	GasPrice domain.Amount
	Input    []byte
}

// Raw wire shapes. Every scalar arrives as 0x-hex per the JSON-RPC
// convention and is converted into domain types before leaving this
// package.

type receiptResult struct {
	TransactionHash  string  `json:"transactionHash"`
	TransactionIndex string  `json:"transactionIndex"`
	BlockNumber      string  `json:"blockNumber"`
	BlockHash        string  `json:"blockHash"`
	From             string  `json:"from"`
	To               *string `json:"to"`
	Status           string  `json:"status"`
	GasUsed          string  `json:"gasUsed"`
	ContractAddress  *string `json:"contractAddress"`
}

func (r *receiptResult) toReceipt() (*Receipt, error) {
	txHash, err := domain.ParseHash(r.TransactionHash)
	if err != nil {
		return nil, fmt.Errorf("receipt transactionHash: %w", err)
	}
	txIndex, err := decodeUint(r.TransactionIndex)
	if err != nil {
		return nil, fmt.Errorf("receipt transactionIndex: %w", err)
	}
	blockNumber, err := decodeUint(r.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("receipt blockNumber: %w", err)
	}
	blockHash, err := domain.ParseHash(r.BlockHash)
	if err != nil {
		return nil, fmt.Errorf("receipt blockHash: %w", err)
	}
	from, err := domain.ParseAddress(r.From)
	if err != nil {
		return nil, fmt.Errorf("receipt from: %w", err)
	}
	status, err := decodeUint(r.Status)
	if err != nil || status > 1 {
		return nil, fmt.Errorf("receipt status %q", r.Status)
	}
	gasUsed, err := decodeUint(r.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("receipt gasUsed: %w", err)
	}

	receipt := &Receipt{
		TxHash:      txHash,
		TxIndex:     uint32(txIndex),
		BlockNumber: blockNumber,
		BlockHash:   blockHash,
		From:        from,
		Status:      uint8(status),
		GasUsed:     gasUsed,
	}
	if r.To != nil {
		to, err := domain.ParseAddress(*r.To)
		if err != nil {
			return nil, fmt.Errorf("receipt to: %w", err)
		}
		receipt.To = &to
	}
	if r.ContractAddress != nil {
		created, err := domain.ParseAddress(*r.ContractAddress)
		if err != nil {
			return nil, fmt.Errorf("receipt contractAddress: %w", err)
		}
		receipt.ContractAddress = &created
	}
	return receipt, nil
}

type headResult struct {
	Number     string `json:"number"`
	Hash       string `json:"hash"`
	ParentHash string `json:"parentHash"`
	Timestamp  string `json:"timestamp"`
}

func (h *headResult) toHead() (Head, error) {
	number, err := decodeUint(h.Number)
	if err != nil {
		return Head{}, fmt.Errorf("head number: %w", err)
	}
	hash, err := domain.ParseHash(h.Hash)
	if err != nil {
		return Head{}, fmt.Errorf("head hash: %w", err)
	}
	parent, err := domain.ParseHash(h.ParentHash)
	if err != nil {
		return Head{}, fmt.Errorf("head parentHash: %w", err)
	}
	ts, err := decodeUint(h.Timestamp)
	if err != nil {
		return Head{}, fmt.Errorf("head timestamp: %w", err)
	}
	return Head{Number: number, Hash: hash, ParentHash: parent, Time: ts}, nil
}

type blockResult struct {
	Number       string          `json:"number"`
	Hash         string          `json:"hash"`
	ParentHash   string          `json:"parentHash"`
	Timestamp    string          `json:"timestamp"`
	Transactions []blockTxResult `json:"transactions"`
}

type blockTxResult struct {
	Hash             string  `json:"hash"`
	TransactionIndex string  `json:"transactionIndex"`
	Nonce            string  `json:"nonce"`
	From             string  `json:"from"`
	To               *string `json:"to"`
	Value            string  `json:"value"`
	Gas              string  `json:"gas"`
	GasPrice         string  `json:"gasPrice"`
	Input            string  `json:"input"`
}

func (b *blockResult) toBlock() (*Block, error) {
	number, err := decodeUint(b.Number)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	hash, err := domain.ParseHash(b.Hash)
	if err != nil {
		return nil, fmt.Errorf("block hash: %w", err)
	}
	parent, err := domain.ParseHash(b.ParentHash)
	if err != nil {
		return nil, fmt.Errorf("block parentHash: %w", err)
	}
	ts, err := decodeUint(b.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("block timestamp: %w", err)
	}

	block := &Block{Number: number, Hash: hash, ParentHash: parent, Time: ts}
	for i, raw := range b.Transactions {
		tx, err := raw.toBlockTx()
		if err != nil {
			return nil, fmt.Errorf("block tx %d: %w", i, err)
		}
		block.Transactions = append(block.Transactions, tx)
	}
	return block, nil
}

func (t *blockTxResult) toBlockTx() (BlockTx, error) {
	hash, err := domain.ParseHash(t.Hash)
	if err != nil {
		return BlockTx{}, fmt.Errorf("hash: %w", err)
	}
	index, err := decodeUint(t.TransactionIndex)
	if err != nil {
		return BlockTx{}, fmt.Errorf("transactionIndex: %w", err)
	}
	nonce, err := decodeUint(t.Nonce)
	if err != nil {
		return BlockTx{}, fmt.Errorf("nonce: %w", err)
	}
	from, err := domain.ParseAddress(t.From)
	if err != nil {
		return BlockTx{}, fmt.Errorf("from: %w", err)
	}
	value, err := decodeAmount(t.Value)
	if err != nil {
		return BlockTx{}, fmt.Errorf("value: %w", err)
	}
	gas, err := decodeUint(t.Gas)
	if err != nil {
		return BlockTx{}, fmt.Errorf("gas: %w", err)
	}
	gasPrice, err := decodeAmount(t.GasPrice)
	if err != nil {
		return BlockTx{}, fmt.Errorf("gasPrice: %w", err)
	}
	input, err := decodeBytes(t.Input)
	if err != nil {
		return BlockTx{}, fmt.Errorf("input: %w", err)
	}

	tx := BlockTx{
		Hash:     hash,
		Index:    uint32(index),
		Nonce:    nonce,
		From:     from,
		Value:    value,
		GasLimit: gas,
		GasPrice: gasPrice,
		Input:    input,
	}
	if t.To != nil {
		to, err := domain.ParseAddress(*t.To)
		if err != nil {
			return BlockTx{}, fmt.Errorf("to: %w", err)
		}
		tx.To = &to
	}
	return tx, nil
}
