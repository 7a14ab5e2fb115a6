// Package blockchain implements the ordered, hash-linked block sequence,
// its derived balance and confirmation indices, proof-of-work mining, and
// the consensus validation/replacement rules of spec.md §4.1.
package blockchain

import (
	"sync"
	"time"

	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/common"
	"github.com/ledgerd/ledgerd/log"
)

var logger = log.NewModuleLogger(log.Blockchain)

// Balance is the derived per-address balance snapshot of spec.md §3.
type Balance struct {
	Confirmed   float64 `json:"confirmed"`
	Pending     float64 `json:"pending"`
	LastUpdated int64   `json:"last_updated"`
}

// ConfirmationStatus is the coarse status get_transaction_confirmation
// reports (spec.md §4.1, Glossary "Confirmation count").
type ConfirmationStatus string

const (
	StatusPending   ConfirmationStatus = "pending"
	StatusConfirmed ConfirmationStatus = "confirmed"
)

// Confirmation reports how deeply buried a transaction is.
type Confirmation struct {
	BlockHeight   uint64             `json:"block_height"`
	Confirmations uint64             `json:"confirmations"`
	Status        ConfirmationStatus `json:"status"`
}

// Blockchain is the authoritative, ordered block sequence plus its derived
// indices. The sequence is authoritative; balances/confirmations are
// caches rebuilt on ReplaceChain and maintained incrementally on append
// (spec.md §3, and the Open Question resolution in DESIGN.md).
type Blockchain struct {
	mu         sync.RWMutex
	blocks     []types.Block
	difficulty int

	balances     map[string]*Balance  // keyed by common.NormalizeKey(pubkey)
	txHeight     map[string]uint64    // tx id -> block height it was included at
	balanceCache *common.BalanceCache // bounded cache fronting `balances`
}

// New creates a chain seeded with the canonical Genesis block at the given
// difficulty.
func New(difficulty int) *Blockchain {
	cache, err := common.NewBalanceCache(4096)
	if err != nil {
		// A failed LRU allocation only happens with non-positive size,
		// which NewBalanceCache normalizes away; treat as unreachable.
		cache = nil
	}
	bc := &Blockchain{
		difficulty:   difficulty,
		balances:     make(map[string]*Balance),
		txHeight:     make(map[string]uint64),
		balanceCache: cache,
	}
	bc.blocks = []types.Block{types.Genesis(difficulty)}
	return bc
}

// Difficulty returns the chain's fixed PoW difficulty (no retargeting, per
// spec.md §9).
func (bc *Blockchain) Difficulty() int {
	return bc.difficulty
}

// Len returns the number of blocks in the chain, including Genesis.
func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}

// Tip returns a copy of the last block in the chain.
func (bc *Blockchain) Tip() types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blocks[len(bc.blocks)-1]
}

// Blocks returns a defensive copy of the full chain.
func (bc *Blockchain) Blocks() []types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	out := make([]types.Block, len(bc.blocks))
	copy(out, bc.blocks)
	return out
}

// MineBlock performs the nonce search of spec.md §4.1: starting from
// nonce=0, it recomputes hash = SHA256(canonical(block)) and increments
// nonce until the first `difficulty` hex digits are zero. It cooperatively
// checks stop every batch of iterations so a caller running this on a
// worker goroutine can cancel an in-flight mine (spec.md §5); stop may be
// nil for an uncancellable mine.
func MineBlock(b *types.Block, difficulty int, stop <-chan struct{}) (bool, error) {
	const yieldBatch = 4096
	b.Nonce = 0
	for {
		for i := 0; i < yieldBatch; i++ {
			hash, err := b.ComputeHash()
			if err != nil {
				return false, err
			}
			if types.SatisfiesDifficulty(hash, difficulty) {
				b.Hash = hash
				return true, nil
			}
			b.Nonce++
		}
		if stop != nil {
			select {
			case <-stop:
				return false, nil
			default:
			}
		}
	}
}

// CreateBlock assembles, mines, and appends a new block built from txs,
// crediting reward to miner (spec.md §4.1). The coinbase transaction is
// expected to already be the first entry of txs - callers (the mining
// loop, tests) build it themselves since only they know the signing
// identity.
func (bc *Blockchain) CreateBlock(txs []types.Transaction, miner string, reward float64) (*types.Block, error) {
	tip := bc.Tip()
	b := &types.Block{
		Index:        tip.Index + 1,
		PreviousHash: tip.Hash,
		Timestamp:    nowMs(),
		Transactions: txs,
		Miner:        miner,
		Reward:       reward,
	}
	if _, err := MineBlock(b, bc.difficulty, nil); err != nil {
		return nil, err
	}
	if err := bc.AppendBlock(*b); err != nil {
		return nil, err
	}
	return b, nil
}

// AppendBlock validates b as the immediate successor of the current tip
// and, if valid, appends it and updates the derived indices in the same
// critical section (spec.md §5: "chain state mutations are serialized by
// the loop; derived indices are recomputed inside the same critical
// section").
func (bc *Blockchain) AppendBlock(b types.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	tip := bc.blocks[len(bc.blocks)-1]
	if err := bc.validateNextBlockLocked(b, tip); err != nil {
		return err
	}

	bc.blocks = append(bc.blocks, b)
	bc.applyBlockLocked(b)
	return nil
}

func (bc *Blockchain) validateNextBlockLocked(b types.Block, tip types.Block) error {
	if b.Index != tip.Index+1 {
		return newValidationError("block index %d is not the next height after tip %d", b.Index, tip.Index)
	}
	if b.PreviousHash != tip.Hash {
		return newValidationError("block %d previous_hash does not match tip hash", b.Index)
	}
	recomputed, err := b.ComputeHash()
	if err != nil {
		return newValidationError("block %d: %v", b.Index, err)
	}
	if recomputed != b.Hash {
		return newValidationError("block %d hash does not match its canonical encoding", b.Index)
	}
	if !types.SatisfiesDifficulty(b.Hash, bc.difficulty) {
		return newValidationError("block %d hash does not satisfy difficulty %d", b.Index, bc.difficulty)
	}
	if err := bc.validateBlockTransactionsLocked(b); err != nil {
		return err
	}
	return nil
}

func (bc *Blockchain) validateBlockTransactionsLocked(b types.Block) error {
	coinbase, ok := b.Coinbase()
	if !ok {
		return newValidationError("block %d has no coinbase transaction", b.Index)
	}
	if !bc.validateCoinbaseLocked(*coinbase, b.Index) {
		return newValidationError("block %d coinbase transaction is invalid", b.Index)
	}
	// Simulate the block's ordinary transactions against a scratch copy of
	// the current confirmed balances so a block cannot spend funds its own
	// earlier transactions haven't yet credited, without mutating bc.balances
	// until the whole block is known-good.
	scratch := bc.snapshotConfirmedLocked()
	scratch[common.NormalizeKey(coinbase.Recipient)] += coinbase.Amount

	for i := 1; i < len(b.Transactions); i++ {
		tx := b.Transactions[i]
		if tx.IsCoinbase {
			return newValidationError("block %d has more than one coinbase transaction", b.Index)
		}
		if !bc.validateOrdinaryLocked(tx, scratch) {
			return newValidationError("block %d transaction %s is invalid", b.Index, tx.ID)
		}
		scratch[tx.NormalizedSender()] -= tx.Amount
		scratch[tx.NormalizedRecipient()] += tx.Amount
	}
	return nil
}

func (bc *Blockchain) snapshotConfirmedLocked() map[string]float64 {
	out := make(map[string]float64, len(bc.balances))
	for k, v := range bc.balances {
		out[k] = v.Confirmed
	}
	return out
}

// applyBlockLocked folds an already-validated block into the derived
// indices. Caller must hold bc.mu.
func (bc *Blockchain) applyBlockLocked(b types.Block) {
	for _, tx := range b.Transactions {
		if tx.IsCoinbase {
			bc.creditLocked(tx.NormalizedRecipient(), tx.Amount, b.Timestamp)
		} else {
			bc.debitLocked(tx.NormalizedSender(), tx.Amount, b.Timestamp)
			bc.creditLocked(tx.NormalizedRecipient(), tx.Amount, b.Timestamp)
		}
		bc.txHeight[tx.ID] = b.Index
	}
	if bc.balanceCache != nil {
		bc.balanceCache.Purge()
	}
}

func (bc *Blockchain) creditLocked(addr string, amount float64, ts int64) {
	bal := bc.balances[addr]
	if bal == nil {
		bal = &Balance{}
		bc.balances[addr] = bal
	}
	bal.Confirmed += amount
	bal.Pending = bal.Confirmed
	bal.LastUpdated = ts
}

func (bc *Blockchain) debitLocked(addr string, amount float64, ts int64) {
	bal := bc.balances[addr]
	if bal == nil {
		bal = &Balance{}
		bc.balances[addr] = bal
	}
	bal.Confirmed -= amount
	bal.Pending = bal.Confirmed
	bal.LastUpdated = ts
}

// nowMs is overridable in tests for deterministic timestamps.
var nowMs = func() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
