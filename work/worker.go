// Package work implements the mining loop of spec.md §4.5: assembling a
// block from the mempool plus a coinbase reward, running a cancellable
// nonce search, and committing/broadcasting the result - restarting
// whenever a competing block preempts the in-flight tip.
package work

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/crypto"
	"github.com/ledgerd/ledgerd/log"
	"github.com/ledgerd/ledgerd/metrics"
	"github.com/ledgerd/ledgerd/params"
	gometrics "github.com/rcrowley/go-metrics"
)

var logger = log.NewModuleLogger(log.Work)

var restartCounter = metrics.NewRegisteredCounter("miner/restarts", gometrics.DefaultRegistry)

// Task is a single unmined block template plus the transactions it carries,
// handed to an Agent for its nonce search.
type Task struct {
	Block        *types.Block
	transactions []types.Transaction // excludes the coinbase entry
}

// Result is a completed (sealed) Task.
type Result struct {
	Task  *Task
	Block *types.Block
}

// blockSource is the narrow chain-side slice the miner needs: the current
// tip, its fixed difficulty, and the ability to commit a sealed block.
type blockSource interface {
	Tip() types.Block
	Difficulty() int
	AppendBlock(b types.Block) error
}

// txSource is the narrow mempool-side slice the miner needs.
type txSource interface {
	GetTransactions(limit int) []types.Transaction
	RemoveTransactions(txs []types.Transaction)
}

// broadcaster announces a locally-mined block to the network.
type broadcaster interface {
	BroadcastBlock(b types.Block)
}

// Miner owns the mining loop's single Agent and drives it from the chain
// and mempool. It implements node.BlockAppendObserver so a competing
// block - mined by a peer and adopted via ReplaceChain/AppendBlock - can
// preempt an in-flight mine (spec.md §4.5 step 6).
type Miner struct {
	mu sync.Mutex

	chain       blockSource
	mempool     txSource
	broadcaster broadcaster

	minerPublicKey  string
	minerPrivateKey string

	agent *Agent
	recv  chan *Result

	currentMu sync.Mutex
	current   *Task

	ticker     *time.Ticker
	tickerDone chan struct{}

	mining int32
}

// NewMiner creates a miner that mints coinbase rewards to minerPublicKey,
// signed by minerPrivateKey, mining at chain's fixed difficulty.
func NewMiner(chain blockSource, mempool txSource, broadcaster broadcaster, minerPublicKey, minerPrivateKey string) *Miner {
	m := &Miner{
		chain:           chain,
		mempool:         mempool,
		broadcaster:     broadcaster,
		minerPublicKey:  minerPublicKey,
		minerPrivateKey: minerPrivateKey,
		agent:           NewAgent(chain.Difficulty()),
		recv:            make(chan *Result, 1),
	}
	m.agent.SetReturnCh(m.recv)
	return m
}

// Start begins mining: spins up the agent and schedules the periodic
// params.MiningTickInterval tick that drives commitNewWork (spec.md §4.5).
func (m *Miner) Start() {
	if !atomic.CompareAndSwapInt32(&m.mining, 0, 1) {
		return
	}
	m.agent.Start()
	go m.wait()
	m.ticker = time.NewTicker(params.MiningTickInterval)
	m.tickerDone = make(chan struct{})
	go m.tickLoop()
}

// Stop halts mining, clearing the tick and aborting any in-flight nonce
// search (spec.md §5 - "on shutdown, the ticker is cleared and the loop
// releases").
func (m *Miner) Stop() {
	if !atomic.CompareAndSwapInt32(&m.mining, 1, 0) {
		return
	}
	m.ticker.Stop()
	close(m.tickerDone)
	m.agent.Stop()
}

func (m *Miner) tickLoop() {
	for {
		select {
		case <-m.ticker.C:
			m.commitNewWork()
		case <-m.tickerDone:
			return
		}
	}
}

// OnBlockAppended implements node.BlockAppendObserver: a block the manager
// accepted from a peer (or a longer chain it adopted) means the current
// work item's PreviousHash is stale, so restart against the new tip.
// Blocks this Miner appends itself in wait() do not trigger it.
func (m *Miner) OnBlockAppended(b types.Block) {
	if atomic.LoadInt32(&m.mining) == 1 {
		restartCounter.Inc(1)
		m.commitNewWork()
	}
}

func (m *Miner) commitNewWork() {
	tip := m.chain.Tip()
	txs := m.mempool.GetTransactions(params.MaxTxsPerBlock - 1)

	coinbase, err := m.buildCoinbase(tip.Index + 1)
	if err != nil {
		logger.Error("building coinbase failed", "err", err)
		return
	}

	all := make([]types.Transaction, 0, len(txs)+1)
	all = append(all, coinbase)
	all = append(all, txs...)

	block := &types.Block{
		Index:        tip.Index + 1,
		PreviousHash: tip.Hash,
		Timestamp:    nowMs(),
		Transactions: all,
		Miner:        m.minerPublicKey,
		Reward:       coinbase.Amount,
	}

	m.currentMu.Lock()
	m.current = &Task{Block: block, transactions: txs}
	m.currentMu.Unlock()

	m.agent.Work() <- m.current
}

func (m *Miner) buildCoinbase(height uint64) (types.Transaction, error) {
	id, err := crypto.RandomHex(32)
	if err != nil {
		return types.Transaction{}, err
	}
	tx := types.Transaction{
		ID:         id,
		Recipient:  m.minerPublicKey,
		Amount:     params.RewardForHeight(height),
		Timestamp:  nowMs(),
		IsCoinbase: true,
	}
	if err := tx.Sign(m.minerPrivateKey); err != nil {
		return types.Transaction{}, err
	}
	return tx, nil
}

func (m *Miner) wait() {
	for result := range m.recv {
		if atomic.LoadInt32(&m.mining) == 0 {
			return
		}
		if result == nil {
			// Preempted or sealing failed; OnBlockAppended restarts
			// immediately, otherwise the next tick queues a fresh task.
			continue
		}
		if err := m.chain.AppendBlock(*result.Block); err != nil {
			logger.Warn("committing sealed block failed, waiting for next tick", "err", err)
			continue
		}
		m.mempool.RemoveTransactions(result.Task.transactions)
		logger.Info("mined block", "index", result.Block.Index, "hash", result.Block.Hash, "txs", len(result.Task.transactions))
		m.broadcaster.BroadcastBlock(*result.Block)
	}
}

func nowMs() int64 { return time.Now().UnixNano() / int64(time.Millisecond) }
