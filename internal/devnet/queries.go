package devnet

import (
	"fmt"

	"evm-token-lab/internal/abi"
	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/ledger"
	"evm-token-lab/internal/wallet"
)

// BlockNumber returns the current head height.
func (c *Chain) BlockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[len(c.blocks)-1].number
}

// BalanceAt returns the native balance of addr at latest state.
func (c *Chain) BalanceAt(addr domain.Address) domain.Amount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.native[addr]
}

// NonceAt returns the account's transaction count. The pending view
// extends the confirmed count by the gapless queued prefix, which is
// what a builder acquiring the next nonce needs.
func (c *Chain) NonceAt(addr domain.Address, pending bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.nonces[addr]
	if !pending {
		return next
	}
	queue := c.mempool[addr]
	for {
		if _, ok := queue[next]; !ok {
			return next
		}
		next++
	}
}

// Token exposes the reference ledger for invariant audits.
func (c *Chain) Token() *ledgerView {
	return &ledgerView{c: c}
}

// ledgerView is a read-only window over the chain's token ledger.
type ledgerView struct {
	c *Chain
}

// BalanceOf returns the confirmed token balance of addr.
func (v *ledgerView) BalanceOf(addr domain.Address) domain.Amount {
	return v.c.token.BalanceOf(addr)
}

// Allowance returns the confirmed allowance for (owner, spender).
func (v *ledgerView) Allowance(owner, spender domain.Address) domain.Amount {
	return v.c.token.Allowance(owner, spender)
}

// TotalSupply returns the fixed token supply.
func (v *ledgerView) TotalSupply() domain.Amount {
	return v.c.token.TotalSupply()
}

// BalanceSum audits the supply invariant.
func (v *ledgerView) BalanceSum() domain.Amount {
	return v.c.token.BalanceSum()
}

// RevertError is a static-call failure carrying the contract's reason,
// rendered to clients the way a node reports execution reverts.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// ReturnData encodes the canonical Error(string) payload.
func (e *RevertError) ReturnData() []byte {
	return abi.EncodeRevert(e.Reason)
}

// StaticCall executes calldata against latest state without a
// transaction. Mutating selectors are simulated: their guard conditions
// run, their state changes do not.
func (c *Chain) StaticCall(from *domain.Address, to domain.Address, data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if to != TokenAddress {
		// Plain accounts have no code; a call returns empty data.
		return nil, nil
	}

	sel, args, err := abi.Split(data)
	if err != nil {
		return nil, &RevertError{Reason: err.Error()}
	}

	meta := c.token.Metadata()
	switch sel {
	case abi.MethodName.Selector:
		return abi.PackString(meta.Name), nil
	case abi.MethodSymbol.Selector:
		return abi.PackString(meta.Symbol), nil
	case abi.MethodDecimals.Selector:
		w := abi.Uint64Word(uint64(meta.Decimals))
		return w[:], nil
	case abi.MethodTotalSupply.Selector:
		w := abi.AmountWord(meta.TotalSupply)
		return w[:], nil

	case abi.MethodBalanceOf.Selector:
		addrWord, err := abi.ArgWord(args, 0)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		addr, err := abi.WordAddress(addrWord)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		w := abi.AmountWord(c.token.BalanceOf(addr))
		return w[:], nil

	case abi.MethodAllowance.Selector:
		owner, spender, err := unpackTwoAddresses(args)
		if err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		w := abi.AmountWord(c.token.Allowance(owner, spender))
		return w[:], nil

	case abi.MethodTransfer.Selector, abi.MethodApprove.Selector, abi.MethodTransferFrom.Selector:
		if from == nil {
			return nil, &RevertError{Reason: "missing from address"}
		}
		if err := c.simulateTokenCallLocked(*from, sel, args); err != nil {
			return nil, &RevertError{Reason: err.Error()}
		}
		w := abi.BoolWord(true)
		return w[:], nil

	default:
		return nil, &RevertError{Reason: fmt.Sprintf("unknown function selector %x", sel)}
	}
}

// simulateTokenCallLocked runs a mutating selector's guards against
// current state without applying the transition.
func (c *Chain) simulateTokenCallLocked(sender domain.Address, sel [abi.SelectorLength]byte, args []byte) error {
	switch sel {
	case abi.MethodApprove.Selector:
		_, _, err := unpackAddressAmount(args)
		return err

	case abi.MethodTransfer.Selector:
		_, amount, err := unpackAddressAmount(args)
		if err != nil {
			return err
		}
		if c.token.BalanceOf(sender).Lt(amount) {
			return fmt.Errorf("transfer from %s: %w", sender, ledger.ErrInsufficientBalance)
		}
		return nil

	case abi.MethodTransferFrom.Selector:
		owner, _, amount, err := unpackTransferFromArgs(args)
		if err != nil {
			return err
		}
		if c.token.Allowance(owner, sender).Lt(amount) {
			return fmt.Errorf("transfer from %s by %s: %w", owner, sender, ledger.ErrInsufficientAllowance)
		}
		if c.token.BalanceOf(owner).Lt(amount) {
			return fmt.Errorf("transfer from %s: %w", owner, ledger.ErrInsufficientBalance)
		}
		return nil
	}
	return fmt.Errorf("unknown function selector %x", sel)
}

func unpackTwoAddresses(args []byte) (domain.Address, domain.Address, error) {
	firstWord, err := abi.ArgWord(args, 0)
	if err != nil {
		return domain.Address{}, domain.Address{}, err
	}
	first, err := abi.WordAddress(firstWord)
	if err != nil {
		return domain.Address{}, domain.Address{}, err
	}
	secondWord, err := abi.ArgWord(args, 1)
	if err != nil {
		return domain.Address{}, domain.Address{}, err
	}
	second, err := abi.WordAddress(secondWord)
	if err != nil {
		return domain.Address{}, domain.Address{}, err
	}
	return first, second, nil
}

// TxResult is the mined view of one transaction.
type TxResult struct {
	Hash        domain.Hash
	Tx          wallet.LegacyTx
	From        domain.Address
	BlockNumber uint64
	BlockHash   domain.Hash
	Index       uint32
	Status      uint8
	GasUsed     uint64
	Reason      string
	MinedAt     uint64
}

// Receipt returns the mined result for hash, or nil while unmined.
func (c *Chain) Receipt(hash domain.Hash) *TxResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	mined, ok := c.txs[hash]
	if !ok {
		return nil
	}
	return c.resultLocked(mined)
}

// BlockResult is the mined view of one block.
type BlockResult struct {
	Number     uint64
	Hash       domain.Hash
	ParentHash domain.Hash
	Time       uint64
	Txs        []*TxResult
}

// Block returns the sealed block at number, or nil beyond the head.
func (c *Chain) Block(number uint64) *BlockResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if number >= uint64(len(c.blocks)) {
		return nil
	}
	block := c.blocks[number]
	result := &BlockResult{
		Number:     block.number,
		Hash:       block.hash,
		ParentHash: block.parentHash,
		Time:       block.time,
	}
	for _, mined := range block.txs {
		result.Txs = append(result.Txs, c.resultLocked(mined))
	}
	return result
}

func (c *Chain) resultLocked(mined *minedTx) *TxResult {
	block := c.blocks[mined.blockNumber]
	return &TxResult{
		Hash:        mined.hash,
		Tx:          mined.tx,
		From:        mined.from,
		BlockNumber: mined.blockNumber,
		BlockHash:   mined.blockHash,
		Index:       mined.index,
		Status:      mined.status,
		GasUsed:     mined.gasUsed,
		Reason:      mined.reason,
		MinedAt:     block.time,
	}
}

// SubscribeHeads registers a buffered head feed. The returned cancel
// function drops the subscription.
func (c *Chain) SubscribeHeads() (<-chan HeadEvent, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subSeq++
	id := c.subSeq
	ch := make(chan HeadEvent, 16)
	c.headSubs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.headSubs, id)
	}
	return ch, cancel
}
