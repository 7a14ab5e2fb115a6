package blockchain

import (
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/common"
	"github.com/ledgerd/ledgerd/params"
)

// GetAccountBalance returns the confirmed/pending balance for a public key,
// per spec.md §4.1. Pending mirrors confirmed at the chain layer - the
// mempool-aware pending-debits view lives in the mempool package (spec.md
// §9 design note).
func (bc *Blockchain) GetAccountBalance(pubkeyPEM string) Balance {
	addr := common.NormalizeKey(pubkeyPEM)

	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if bc.balanceCache != nil {
		if cached, ok := bc.balanceCache.Get(addr); ok {
			if bal, ok := cached.(Balance); ok {
				return bal
			}
		}
	}

	bal := bc.balances[addr]
	if bal == nil {
		return Balance{}
	}
	result := *bal
	if bc.balanceCache != nil {
		bc.balanceCache.Add(addr, result)
	}
	return result
}

// GetTransactionHistory returns, in chain order, every transaction that
// touches pubkeyPEM as sender or recipient (spec.md §4.1).
func (bc *Blockchain) GetTransactionHistory(pubkeyPEM string) []types.Transaction {
	addr := common.NormalizeKey(pubkeyPEM)

	bc.mu.RLock()
	defer bc.mu.RUnlock()

	var out []types.Transaction
	for _, b := range bc.blocks {
		for _, tx := range b.Transactions {
			if tx.InvolvesAddress(addr) {
				out = append(out, tx)
			}
		}
	}
	return out
}

// GetTransactionConfirmation reports how many blocks have been mined on
// top of the block containing txID, and whether that meets
// params.RequiredConfirms (spec.md §4.1/§6). The zero value's Status is
// StatusPending when txID is unknown (not yet mined).
func (bc *Blockchain) GetTransactionConfirmation(txID string) (Confirmation, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	height, ok := bc.txHeight[txID]
	if !ok {
		return Confirmation{Status: StatusPending}, false
	}
	tip := bc.blocks[len(bc.blocks)-1]
	confirmations := tip.Index - height + 1
	status := StatusPending
	if confirmations >= params.RequiredConfirms {
		status = StatusConfirmed
	}
	return Confirmation{
		BlockHeight:   height,
		Confirmations: confirmations,
		Status:        status,
	}, true
}
