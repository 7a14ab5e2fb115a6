package blockchain

import (
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/params"
)

// ValidateCoinbase applies the coinbase rules of spec.md §4.1 to a
// standalone transaction, without requiring it to already sit inside a
// block. Used by the mining loop when it assembles its own coinbase.
func (bc *Blockchain) ValidateCoinbase(tx types.Transaction, blockIndex uint64) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.validateCoinbaseLocked(tx, blockIndex)
}

func (bc *Blockchain) validateCoinbaseLocked(tx types.Transaction, blockIndex uint64) bool {
	if !tx.IsCoinbase {
		return false
	}
	if tx.Sender != nil {
		return false
	}
	if tx.Recipient == "" {
		return false
	}
	if tx.Amount != params.RewardForHeight(blockIndex) {
		return false
	}
	if !tx.VerifySignature() {
		return false
	}
	return true
}

// ValidateTransaction applies the ordinary-transaction rules of spec.md
// §4.1/§4.2 against the chain's current confirmed balances: positive
// amount, valid signature, and sufficient confirmed balance to cover it.
func (bc *Blockchain) ValidateTransaction(tx types.Transaction) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	scratch := bc.snapshotConfirmedLocked()
	return bc.validateOrdinaryLocked(tx, scratch)
}

func (bc *Blockchain) validateOrdinaryLocked(tx types.Transaction, confirmed map[string]float64) bool {
	if tx.IsCoinbase {
		return false
	}
	if tx.Sender == nil || *tx.Sender == "" {
		return false
	}
	if tx.Recipient == "" {
		return false
	}
	if tx.Amount <= 0 {
		return false
	}
	if tx.NormalizedSender() == tx.NormalizedRecipient() {
		return false
	}
	if !tx.VerifySignature() {
		return false
	}
	if confirmed[tx.NormalizedSender()] < tx.Amount {
		return false
	}
	return true
}
