package eth

import (
	"context"

	"evm-token-lab/internal/domain"
)

// Block tags accepted by stateful queries.
const (
	BlockLatest  = "latest"
	BlockPending = "pending"
)

// ChainID returns the identifier signatures must bind.
func (c *HTTPClient) ChainID(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_chainId", nil, &result); err != nil {
		return 0, err
	}
	return decodeUint(result)
}

// BlockNumber returns the height of the latest block.
func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_blockNumber", nil, &result); err != nil {
		return 0, err
	}
	return decodeUint(result)
}

// GetBalance returns the native balance of addr at latest state.
func (c *HTTPClient) GetBalance(ctx context.Context, addr domain.Address) (domain.Amount, error) {
	var result string
	if err := c.call(ctx, "eth_getBalance", []interface{}{addr.String(), BlockLatest}, &result); err != nil {
		return domain.Amount{}, err
	}
	return decodeAmount(result)
}

// GetTransactionCount returns the nonce of addr at the given block tag.
// The pending tag includes queued transactions, which is what a builder
// acquiring the next nonce wants.
func (c *HTTPClient) GetTransactionCount(ctx context.Context, addr domain.Address, tag string) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_getTransactionCount", []interface{}{addr.String(), tag}, &result); err != nil {
		return 0, err
	}
	return decodeUint(result)
}

// GasPrice returns the node's suggested legacy gas price.
func (c *HTTPClient) GasPrice(ctx context.Context) (domain.Amount, error) {
	var result string
	if err := c.call(ctx, "eth_gasPrice", nil, &result); err != nil {
		return domain.Amount{}, err
	}
	return decodeAmount(result)
}

// Call executes msg against latest state without creating a
// transaction. Reverts surface as *RPCError carrying the reason.
func (c *HTTPClient) Call(ctx context.Context, msg CallMsg) ([]byte, error) {
	var result string
	if err := c.call(ctx, "eth_call", []interface{}{msg.toParam(), BlockLatest}, &result); err != nil {
		return nil, err
	}
	return decodeBytes(result)
}

// SendRawTransaction submits a signed raw transaction and returns its
// hash. Broadcast is irrevocable: cancelling a later wait does not
// retract the transaction.
func (c *HTTPClient) SendRawTransaction(ctx context.Context, raw []byte) (domain.Hash, error) {
	var result string
	if err := c.call(ctx, "eth_sendRawTransaction", []interface{}{encodeBytes(raw)}, &result); err != nil {
		return domain.Hash{}, err
	}
	return domain.ParseHash(result)
}

// GetTransactionReceipt fetches the receipt for hash. Returns nil
// without error while the transaction is not mined.
func (c *HTTPClient) GetTransactionReceipt(ctx context.Context, hash domain.Hash) (*Receipt, error) {
	var result *receiptResult
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{hash.String()}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.toReceipt()
}

// GetBlockByNumber fetches a block with full transaction bodies.
// Returns nil without error when the block does not exist yet.
func (c *HTTPClient) GetBlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	var result *blockResult
	if err := c.call(ctx, "eth_getBlockByNumber", []interface{}{encodeUint(number), true}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.toBlock()
}
