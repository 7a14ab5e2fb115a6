package blockchain

import (
	"reflect"

	"github.com/ledgerd/ledgerd/blockchain/types"
)

// IsValid reports whether chain is a well-formed, fully-linked,
// proof-of-work-satisfying sequence starting from the canonical Genesis
// block at bc.difficulty (spec.md §4.1).
func (bc *Blockchain) IsValid(chain []types.Block) bool {
	ok, _ := bc.firstInvalidIndex(chain)
	return ok
}

// firstInvalidIndex validates chain the way IsValid does, additionally
// reporting the index of the first block that fails validation so callers
// can name the offending height in an error.
func (bc *Blockchain) firstInvalidIndex(chain []types.Block) (valid bool, failedIndex uint64) {
	if len(chain) == 0 {
		return false, 0
	}
	genesis := types.Genesis(bc.difficulty)
	if !reflect.DeepEqual(chain[0], genesis) {
		return false, chain[0].Index
	}

	scratch := newScratchLedger()
	scratch.apply(chain[0])

	for i := 1; i < len(chain); i++ {
		b := chain[i]
		prev := chain[i-1]
		if b.Index != prev.Index+1 {
			return false, b.Index
		}
		if b.PreviousHash != prev.Hash {
			return false, b.Index
		}
		recomputed, err := b.ComputeHash()
		if err != nil || recomputed != b.Hash {
			return false, b.Index
		}
		if !types.SatisfiesDifficulty(b.Hash, bc.difficulty) {
			return false, b.Index
		}
		coinbase, ok := b.Coinbase()
		if !ok || !bc.validateCoinbaseLocked(*coinbase, b.Index) {
			return false, b.Index
		}
		confirmed := scratch.snapshot()
		confirmed[coinbase.NormalizedRecipient()] += coinbase.Amount
		for j := 1; j < len(b.Transactions); j++ {
			tx := b.Transactions[j]
			if tx.IsCoinbase {
				return false, b.Index
			}
			if !bc.validateOrdinaryLocked(tx, confirmed) {
				return false, b.Index
			}
			confirmed[tx.NormalizedSender()] -= tx.Amount
			confirmed[tx.NormalizedRecipient()] += tx.Amount
		}
		scratch.apply(b)
	}
	return true, 0
}

// ReplaceChain implements the longest-valid-chain rule of spec.md §4.1: a
// candidate chain replaces the current one only if it is strictly longer
// and fully valid. On acceptance, the balance and confirmation indices are
// rebuilt wholesale from the new chain rather than diffed incrementally,
// since a reorg can touch any prefix of the chain.
func (bc *Blockchain) ReplaceChain(candidate []types.Block) error {
	bc.mu.RLock()
	tooShort := len(candidate) <= len(bc.blocks)
	bc.mu.RUnlock()
	if tooShort {
		return newResourceError("candidate chain of length %d is not longer than current chain length", len(candidate))
	}
	if valid, failedIndex := bc.firstInvalidIndex(candidate); !valid {
		return newValidationError("candidate chain failed validation at block %d", failedIndex)
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if len(candidate) <= len(bc.blocks) {
		return newResourceError("candidate chain of length %d is not longer than current chain of length %d", len(candidate), len(bc.blocks))
	}

	ledger := newScratchLedger()
	bc.txHeight = make(map[string]uint64, len(bc.txHeight))
	for _, b := range candidate {
		ledger.apply(b)
		for _, tx := range b.Transactions {
			bc.txHeight[tx.ID] = b.Index
		}
	}

	bc.balances = make(map[string]*Balance, len(ledger.balances))
	for addr, amount := range ledger.balances {
		bc.balances[addr] = &Balance{Confirmed: amount, Pending: amount, LastUpdated: ledger.lastUpdated[addr]}
	}
	bc.blocks = candidate
	if bc.balanceCache != nil {
		bc.balanceCache.Purge()
	}

	logger.Info("replaced chain", "new_length", len(candidate))
	return nil
}

// scratchLedger replays a candidate chain's transactions to compute final
// balances without touching the live Blockchain state, used by both IsValid
// and ReplaceChain.
type scratchLedger struct {
	balances    map[string]float64
	lastUpdated map[string]int64
}

func newScratchLedger() *scratchLedger {
	return &scratchLedger{balances: make(map[string]float64), lastUpdated: make(map[string]int64)}
}

func (s *scratchLedger) snapshot() map[string]float64 {
	out := make(map[string]float64, len(s.balances))
	for k, v := range s.balances {
		out[k] = v
	}
	return out
}

func (s *scratchLedger) apply(b types.Block) {
	for _, tx := range b.Transactions {
		if tx.IsCoinbase {
			s.balances[tx.NormalizedRecipient()] += tx.Amount
		} else {
			s.balances[tx.NormalizedSender()] -= tx.Amount
			s.balances[tx.NormalizedRecipient()] += tx.Amount
		}
		s.lastUpdated[tx.NormalizedRecipient()] = b.Timestamp
		if !tx.IsCoinbase {
			s.lastUpdated[tx.NormalizedSender()] = b.Timestamp
		}
	}
}
