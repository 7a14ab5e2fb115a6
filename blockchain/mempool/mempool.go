// Package mempool is the storage for transactions that have passed
// admission but are not yet included in a mined block (spec.md §4.2).
package mempool

import (
	"sync"
	"time"

	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/log"
	"github.com/ledgerd/ledgerd/metrics"
	"github.com/ledgerd/ledgerd/params"
)

var logger = log.NewModuleLogger(log.Mempool)

var (
	admittedCounter = metrics.NewRegisteredCounter("mempool/admitted", nil)
	rejectedCounter = metrics.NewRegisteredCounter("mempool/rejected", nil)
	evictedCounter  = metrics.NewRegisteredCounter("mempool/evicted", nil)
)

// chainView is the subset of *blockchain.Blockchain the mempool depends on,
// kept narrow so package tests can supply a fake.
type chainView interface {
	ValidateTransaction(tx types.Transaction) bool
	GetAccountBalance(pubkeyPEM string) blockchain.Balance
}

// entry pairs a pending transaction with its admission time, used for both
// FIFO ordering and TTL eviction.
type entry struct {
	tx         types.Transaction
	receivedAt time.Time
}

// Mempool is the FIFO pool of pending transactions, ordered by arrival
// (spec.md §3, §4.2).
type Mempool struct {
	mu    sync.RWMutex
	chain chainView
	order []entry // arrival order; index 0 is oldest
	byID  map[string]int
}

// New creates an empty mempool backed by chain for balance/signature
// validation.
func New(chain chainView) *Mempool {
	return &Mempool{
		chain: chain,
		byID:  make(map[string]int),
	}
}

// AddTransaction applies the admission rules of spec.md §4.2: the
// transaction must be well-formed and signed (delegated to the chain's
// ValidateTransaction, which checks confirmed balance), must not already be
// pending, and admission must not exceed params.MempoolMaxTransactions. The
// pending-debits check only considers confirmed balance minus amounts
// already committed by this address's other pending transactions - it does
// not account for incoming pending credits, by design (spec.md §9).
func (mp *Mempool) AddTransaction(tx types.Transaction) error {
	if !mp.chain.ValidateTransaction(tx) {
		rejectedCounter.Inc(1)
		return newValidationError("transaction %s failed chain validation", tx.ID)
	}
	if time.Since(time.Unix(0, tx.Timestamp*int64(time.Millisecond))) > params.MempoolTransactionTTL {
		rejectedCounter.Inc(1)
		return newValidationError("transaction %s is older than the mempool TTL", tx.ID)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.byID[tx.ID]; exists {
		rejectedCounter.Inc(1)
		return newValidationError("transaction %s is already pending", tx.ID)
	}
	if len(mp.order) >= params.MempoolMaxTransactions {
		rejectedCounter.Inc(1)
		return newResourceError("mempool is full (%d transactions)", params.MempoolMaxTransactions)
	}

	confirmed := mp.chain.GetAccountBalance(*tx.Sender).Confirmed
	debited := mp.pendingDebitsLocked(tx.NormalizedSender())
	if confirmed-debited < tx.Amount {
		rejectedCounter.Inc(1)
		return newValidationError("transaction %s exceeds available balance after pending debits", tx.ID)
	}

	mp.byID[tx.ID] = len(mp.order)
	mp.order = append(mp.order, entry{tx: tx, receivedAt: time.Now()})
	admittedCounter.Inc(1)
	logger.Debug("admitted transaction", "id", tx.ID, "pending", len(mp.order))
	return nil
}

// GetTransactions returns up to limit pending transactions in FIFO order,
// for block assembly (spec.md §4.2). limit<=0 means no limit, capped at
// params.MaxTxsPerBlock regardless.
func (mp *Mempool) GetTransactions(limit int) []types.Transaction {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if limit <= 0 || limit > params.MaxTxsPerBlock {
		limit = params.MaxTxsPerBlock
	}
	if limit > len(mp.order) {
		limit = len(mp.order)
	}
	out := make([]types.Transaction, limit)
	for i := 0; i < limit; i++ {
		out[i] = mp.order[i].tx
	}
	return out
}

// RemoveTransaction removes a transaction by id, e.g. once it has been
// mined into a block.
func (mp *Mempool) RemoveTransaction(id string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.removeLocked(id)
}

// RemoveTransactions removes every transaction in txs; used after a block
// is appended or a reorg makes a set of transactions final.
func (mp *Mempool) RemoveTransactions(txs []types.Transaction) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for _, tx := range txs {
		mp.removeLocked(tx.ID)
	}
}

func (mp *Mempool) removeLocked(id string) {
	idx, ok := mp.byID[id]
	if !ok {
		return
	}
	mp.order = append(mp.order[:idx], mp.order[idx+1:]...)
	delete(mp.byID, id)
	for i := idx; i < len(mp.order); i++ {
		mp.byID[mp.order[i].tx.ID] = i
	}
}

// Cleanup evicts transactions that have sat pending longer than
// params.MempoolTransactionTTL (spec.md §6).
func (mp *Mempool) Cleanup() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	cutoff := time.Now().Add(-params.MempoolTransactionTTL)
	var stale []string
	for _, e := range mp.order {
		if e.receivedAt.Before(cutoff) {
			stale = append(stale, e.tx.ID)
		}
	}
	for _, id := range stale {
		mp.removeLocked(id)
	}
	if len(stale) > 0 {
		evictedCounter.Inc(int64(len(stale)))
		logger.Debug("evicted stale transactions", "count", len(stale))
	}
}

// Len returns the number of pending transactions.
func (mp *Mempool) Len() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.order)
}

// Has reports whether a transaction id is currently pending.
func (mp *Mempool) Has(id string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	_, ok := mp.byID[id]
	return ok
}

// PendingDebits returns the sum of amounts already committed by normalized
// sender address across all currently pending transactions (spec.md §9's
// "pending debits only" rule).
func (mp *Mempool) PendingDebits(normalizedSender string) float64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.pendingDebitsLocked(normalizedSender)
}

func (mp *Mempool) pendingDebitsLocked(normalizedSender string) float64 {
	var sum float64
	for _, e := range mp.order {
		if e.tx.NormalizedSender() == normalizedSender {
			sum += e.tx.Amount
		}
	}
	return sum
}
