// Package devnet is a single-process development chain: it accepts
// signed raw legacy transactions, sequences them per account by nonce,
// executes native value transfers and reference-token calls against an
// in-memory ledger, and serves the JSON-RPC surface the lab's client
// speaks. One instance plays the role an external dev node plays for
// the end-to-end flow.
package devnet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"evm-token-lab/internal/abi"
	"evm-token-lab/internal/domain"
	"evm-token-lab/internal/ledger"
	"evm-token-lab/internal/observability"
	"evm-token-lab/internal/wallet"
)

// Defaults and genesis constants.
const (
	DefaultChainID = 31337

	// GasPriceSuggestion is the flat legacy price the node suggests.
	GasPriceSuggestion = 1_000_000_000 // 1 gwei

	gasTransfer  = 21_000 // plain value transfer
	gasTokenCall = 51_000 // successful token operation
	gasRevert    = 28_000 // reverted token operation
)

// TokenAddress is where the reference token lives from genesis.
var TokenAddress = domain.MustParseAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// GenesisMetadata describes the reference token minted at genesis.
func GenesisMetadata() domain.TokenMetadata {
	return domain.TokenMetadata{
		Token:       TokenAddress,
		Name:        "MyToken",
		Symbol:      "MTK",
		Decimals:    18,
		TotalSupply: domain.Units(1_000_000, 18),
	}
}

// Config configures a Chain.
type Config struct {
	// ChainID every accepted signature must bind. Defaults to
	// DefaultChainID.
	ChainID uint64

	// BlockInterval switches to interval mining when positive: accepted
	// transactions wait in the mempool until the next tick. Zero mines
	// instantly on submission.
	BlockInterval time.Duration

	// Clock drives block timestamps and interval mining. Real clock
	// when nil.
	Clock clockwork.Clock

	// Logger receives chain events. Nop when nil.
	Logger *zap.Logger
}

// Chain is the devnet state machine. Safe for concurrent use.
type Chain struct {
	chainID  uint64
	interval time.Duration
	clock    clockwork.Clock
	log      *zap.Logger

	mu      sync.Mutex
	token   *ledger.Ledger
	native  map[domain.Address]domain.Amount
	nonces  map[domain.Address]uint64 // next expected nonce per account
	mempool map[domain.Address]map[uint64]*wallet.LegacyTx
	blocks  []*minedBlock
	txs     map[domain.Hash]*minedTx

	headSubs map[uint64]chan HeadEvent
	subSeq   uint64

	minerQuit chan struct{}
	minerWG   sync.WaitGroup
}

// minedBlock is one sealed block.
type minedBlock struct {
	number     uint64
	hash       domain.Hash
	parentHash domain.Hash
	time       uint64
	txs        []*minedTx
}

// minedTx is a transaction with its execution result.
type minedTx struct {
	hash        domain.Hash
	tx          wallet.LegacyTx
	from        domain.Address
	blockNumber uint64
	blockHash   domain.Hash
	index       uint32
	status      uint8
	gasUsed     uint64
	reason      string // revert reason, empty on success
}

// HeadEvent announces a sealed block to subscribers.
type HeadEvent struct {
	Number     uint64
	Hash       domain.Hash
	ParentHash domain.Hash
	Time       uint64
}

// New creates a chain, prefunds the deterministic dev accounts with
// 10,000 ETH each, and mints the reference token supply to account 0.
// The genesis block is sealed before New returns.
func New(cfg Config) *Chain {
	if cfg.ChainID == 0 {
		cfg.ChainID = DefaultChainID
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	keys := wallet.DevKeys()
	meta := GenesisMetadata()

	c := &Chain{
		chainID:  cfg.ChainID,
		interval: cfg.BlockInterval,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		token:    ledger.New(meta, keys[0].Address()),
		native:   make(map[domain.Address]domain.Amount),
		nonces:   make(map[domain.Address]uint64),
		mempool:  make(map[domain.Address]map[uint64]*wallet.LegacyTx),
		txs:      make(map[domain.Hash]*minedTx),
		headSubs: make(map[uint64]chan HeadEvent),
	}
	for _, key := range keys {
		c.native[key.Address()] = domain.Units(10_000, 18)
	}

	genesis := &minedBlock{
		number: 0,
		time:   uint64(c.clock.Now().Unix()),
	}
	genesis.hash = blockHash(genesis)
	c.blocks = []*minedBlock{genesis}
	return c
}

// ChainID returns the identifier accepted signatures must bind.
func (c *Chain) ChainID() uint64 {
	return c.chainID
}

// Start launches interval mining. A no-op for instant-mining chains.
func (c *Chain) Start() {
	if c.interval <= 0 || c.minerQuit != nil {
		return
	}
	c.minerQuit = make(chan struct{})
	c.minerWG.Add(1)
	go func() {
		defer c.minerWG.Done()
		for {
			select {
			case <-c.minerQuit:
				return
			case <-c.clock.After(c.interval):
				c.mu.Lock()
				c.mineLocked()
				c.mu.Unlock()
			}
		}
	}()
}

// Stop halts interval mining.
func (c *Chain) Stop() {
	if c.minerQuit == nil {
		return
	}
	close(c.minerQuit)
	c.minerWG.Wait()
	c.minerQuit = nil
}

// Submission errors, surfaced to clients as node RPC errors.
var (
	ErrNonceTooLow        = errors.New("nonce too low")
	ErrInsufficientFunds  = errors.New("insufficient funds for gas * price + value")
	ErrKnownTransaction   = errors.New("already known")
	ErrContractCreation   = errors.New("contract creation is not supported")
	ErrInvalidSignature   = errors.New("invalid transaction signature")
	ErrWrongChain         = errors.New("invalid chain id for signer")
	ErrIntrinsicGasTooLow = errors.New("intrinsic gas too low")
	ErrGasPriceZero       = errors.New("transaction gas price is zero")
)

// SubmitRaw validates a signed raw transaction and queues it for
// mining. Stale nonces are rejected; future nonces wait in the mempool
// until the gap fills. With instant mining the executable prefix is
// mined before SubmitRaw returns.
func (c *Chain) SubmitRaw(raw []byte) (domain.Hash, error) {
	tx, err := wallet.DecodeTx(raw)
	if err != nil {
		return domain.Hash{}, err
	}
	from, err := wallet.Sender(&tx, c.chainID)
	if err != nil {
		if errors.Is(err, wallet.ErrChainMismatch) {
			return domain.Hash{}, ErrWrongChain
		}
		return domain.Hash{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	hash, err := tx.Hash()
	if err != nil {
		return domain.Hash{}, err
	}

	if tx.To == nil {
		return domain.Hash{}, ErrContractCreation
	}
	if tx.GasPrice.IsZero() {
		return domain.Hash{}, ErrGasPriceZero
	}
	if tx.GasLimit < gasTransfer {
		return domain.Hash{}, ErrIntrinsicGasTooLow
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, mined := c.txs[hash]; mined {
		return domain.Hash{}, ErrKnownTransaction
	}
	if tx.Nonce < c.nonces[from] {
		return domain.Hash{}, fmt.Errorf("%w: have %d, want %d", ErrNonceTooLow, tx.Nonce, c.nonces[from])
	}

	// The sender must cover the worst case up front.
	if err := c.checkFundsLocked(from, &tx); err != nil {
		return domain.Hash{}, err
	}

	queue := c.mempool[from]
	if queue == nil {
		queue = make(map[uint64]*wallet.LegacyTx)
		c.mempool[from] = queue
	}
	if _, dup := queue[tx.Nonce]; dup {
		return domain.Hash{}, ErrKnownTransaction
	}
	queue[tx.Nonce] = &tx
	observability.UpdateMempoolSize(c.mempoolSizeLocked())

	c.log.Debug("transaction accepted",
		zap.Stringer("hash", hash),
		zap.Stringer("from", from),
		zap.Uint64("nonce", tx.Nonce),
	)

	if c.interval <= 0 {
		c.mineLocked()
	}
	return hash, nil
}

func (c *Chain) checkFundsLocked(from domain.Address, tx *wallet.LegacyTx) error {
	gasCost, ok := tx.GasPrice.Mul(domain.NewAmount(tx.GasLimit))
	if !ok {
		return ErrInsufficientFunds
	}
	total, ok := gasCost.Add(tx.Value)
	if !ok {
		return ErrInsufficientFunds
	}
	if c.native[from].Lt(total) {
		return ErrInsufficientFunds
	}
	return nil
}

// mineLocked seals blocks until no executable transaction remains. A
// transaction is executable when its nonce equals the account's next
// expected value; execution is strictly gapless per account.
func (c *Chain) mineLocked() {
	for {
		batch := c.executableLocked()
		if len(batch) == 0 {
			return
		}
		c.sealLocked(batch)
	}
}

type readyTx struct {
	from domain.Address
	tx   *wallet.LegacyTx
}

// executableLocked drains the gapless nonce prefix of every account,
// ordered by account address for determinism. The global order within
// a block is sequencer-determined, not submission-determined.
func (c *Chain) executableLocked() []readyTx {
	accounts := make([]domain.Address, 0, len(c.mempool))
	for addr := range c.mempool {
		accounts = append(accounts, addr)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i].Bytes(), accounts[j].Bytes()) < 0
	})

	var batch []readyTx
	for _, addr := range accounts {
		queue := c.mempool[addr]
		next := c.nonces[addr]
		for {
			tx, ok := queue[next]
			if !ok {
				break
			}
			delete(queue, next)
			batch = append(batch, readyTx{from: addr, tx: tx})
			next++
		}
		if len(queue) == 0 {
			delete(c.mempool, addr)
		}
	}
	return batch
}

// sealLocked executes batch into one new block and announces the head.
func (c *Chain) sealLocked(batch []readyTx) {
	parent := c.blocks[len(c.blocks)-1]
	block := &minedBlock{
		number:     parent.number + 1,
		parentHash: parent.hash,
		time:       uint64(c.clock.Now().Unix()),
	}

	statuses := make([]string, 0, len(batch))
	for i, ready := range batch {
		mined := c.executeLocked(ready.from, ready.tx)
		mined.blockNumber = block.number
		mined.index = uint32(i)
		block.txs = append(block.txs, mined)
		c.txs[mined.hash] = mined
		c.nonces[ready.from] = ready.tx.Nonce + 1
		if mined.status == domain.ReceiptStatusSuccess {
			statuses = append(statuses, "success")
		} else {
			statuses = append(statuses, "reverted")
		}
	}

	block.hash = blockHash(block)
	for _, mined := range block.txs {
		mined.blockHash = block.hash
	}
	c.blocks = append(c.blocks, block)

	observability.RecordBlockMined(block.number, statuses)
	observability.UpdateMempoolSize(c.mempoolSizeLocked())
	c.log.Info("block sealed",
		zap.Uint64("number", block.number),
		zap.Int("txs", len(block.txs)),
	)

	event := HeadEvent{Number: block.number, Hash: block.hash, ParentHash: block.parentHash, Time: block.time}
	for _, ch := range c.headSubs {
		select {
		case ch <- event:
		default:
			// Slow subscriber; drop rather than stall sealing.
		}
	}
}

// executeLocked applies one transaction. Gas for the observed execution
// is charged to the sender whatever the outcome; a reverted token call
// burns gas but leaves token state untouched.
func (c *Chain) executeLocked(from domain.Address, tx *wallet.LegacyTx) *minedTx {
	hash, _ := tx.Hash()
	mined := &minedTx{hash: hash, tx: *tx, from: from}

	execErr := c.applyLocked(from, tx, mined)
	if execErr != nil {
		mined.status = domain.ReceiptStatusReverted
		mined.reason = execErr.Error()
		if mined.gasUsed == 0 {
			mined.gasUsed = gasRevert
		}
	} else {
		mined.status = domain.ReceiptStatusSuccess
	}

	gasCost, _ := tx.GasPrice.Mul(domain.NewAmount(mined.gasUsed))
	if remaining, ok := c.native[from].Sub(gasCost); ok {
		c.native[from] = remaining
	} else {
		// Funds were checked at admission; only draining transactions
		// sequenced in between can trigger this. Burn what is left.
		c.native[from] = domain.Amount{}
	}
	return mined
}

func (c *Chain) applyLocked(from domain.Address, tx *wallet.LegacyTx, mined *minedTx) error {
	to := *tx.To

	if to == TokenAddress {
		mined.gasUsed = gasTokenCall
		if err := c.applyTokenCallLocked(from, tx.Data); err != nil {
			mined.gasUsed = gasRevert
			return err
		}
		return nil
	}

	// Plain value transfer.
	mined.gasUsed = gasTransfer
	if len(tx.Data) != 0 {
		return fmt.Errorf("unexpected calldata for account %s", to)
	}
	if tx.Value.IsZero() {
		return nil
	}
	remaining, ok := c.native[from].Sub(tx.Value)
	if !ok {
		return errors.New("insufficient native balance")
	}
	if to == from {
		return nil
	}
	credited, ok := c.native[to].Add(tx.Value)
	if !ok {
		return errors.New("native balance overflow")
	}
	c.native[from] = remaining
	c.native[to] = credited
	return nil
}

// applyTokenCallLocked dispatches calldata against the token ledger
// with the transaction sender as the authorizing party.
func (c *Chain) applyTokenCallLocked(sender domain.Address, data []byte) error {
	sel, args, err := abi.Split(data)
	if err != nil {
		return err
	}

	switch sel {
	case abi.MethodTransfer.Selector:
		to, amount, err := unpackAddressAmount(args)
		if err != nil {
			return err
		}
		return c.token.Transfer(sender, to, amount)

	case abi.MethodApprove.Selector:
		spender, amount, err := unpackAddressAmount(args)
		if err != nil {
			return err
		}
		c.token.Approve(sender, spender, amount)
		return nil

	case abi.MethodTransferFrom.Selector:
		owner, to, amount, err := unpackTransferFromArgs(args)
		if err != nil {
			return err
		}
		return c.token.TransferFrom(sender, owner, to, amount)

	default:
		return fmt.Errorf("unknown function selector %x", sel)
	}
}

func unpackAddressAmount(args []byte) (domain.Address, domain.Amount, error) {
	addrWord, err := abi.ArgWord(args, 0)
	if err != nil {
		return domain.Address{}, domain.Amount{}, err
	}
	addr, err := abi.WordAddress(addrWord)
	if err != nil {
		return domain.Address{}, domain.Amount{}, err
	}
	amountWord, err := abi.ArgWord(args, 1)
	if err != nil {
		return domain.Address{}, domain.Amount{}, err
	}
	return addr, abi.WordAmount(amountWord), nil
}

func unpackTransferFromArgs(args []byte) (owner, to domain.Address, amount domain.Amount, err error) {
	ownerWord, err := abi.ArgWord(args, 0)
	if err != nil {
		return
	}
	if owner, err = abi.WordAddress(ownerWord); err != nil {
		return
	}
	toWord, err := abi.ArgWord(args, 1)
	if err != nil {
		return
	}
	if to, err = abi.WordAddress(toWord); err != nil {
		return
	}
	amountWord, err := abi.ArgWord(args, 2)
	if err != nil {
		return
	}
	amount = abi.WordAmount(amountWord)
	return
}

func (c *Chain) mempoolSizeLocked() int {
	n := 0
	for _, queue := range c.mempool {
		n += len(queue)
	}
	return n
}

// blockHash derives a deterministic block identifier from the header
// fields and the contained transaction hashes.
func blockHash(b *minedBlock) domain.Hash {
	var num [8]byte
	binary.BigEndian.PutUint64(num[:], b.number)
	parts := [][]byte{num[:], b.parentHash.Bytes()}
	for _, tx := range b.txs {
		parts = append(parts, tx.hash.Bytes())
	}
	return domain.Keccak256(parts...)
}
