// Package node hosts the network manager: the gossip state machine that
// owns a node's chain and mempool and reacts to transport events
// (spec.md §4.4). Its reactions run on the transport's per-peer read
// goroutines; the chain and mempool each serialize their own mutations
// with their own locks.
package node

import (
	"sync"
	"time"

	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/mempool"
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/log"
	"github.com/ledgerd/ledgerd/networks/p2p"
	"github.com/ledgerd/ledgerd/params"
	"github.com/pkg/errors"
)

var logger = log.NewModuleLogger(log.Node)

// BlockAppendObserver is notified whenever the manager appends a block
// received from a peer or adopts a longer chain from a CHAIN_RESPONSE.
// Blocks a local Miner seals and appends itself do not pass through the
// manager and are not reported. The mining loop
// implements this to preempt an in-flight mine against a stale tip
// (spec.md §4.5) without the manager needing to know mining exists -
// composition over the manager subclassing or special-casing a miner
// (SPEC_FULL design notes).
type BlockAppendObserver interface {
	OnBlockAppended(b types.Block)
}

// Manager is the gossip state machine of spec.md §4.4. One Manager exists
// per node process; a wallet-mode Manager is configured with
// params.WalletListenSentinel as its listening address, which makes the
// far side file it as a wallet connection rather than a peer, and on its
// own side suppresses PEER_DISCOVERY reactions and the peer_connected
// announce/CHAIN_REQUEST (spec.md §4.4).
type Manager struct {
	nodeID           string
	listeningAddress string
	role             params.Role

	chain   *blockchain.Blockchain
	mempool *mempool.Mempool
	tr      *p2p.Transport

	observers []BlockAppendObserver

	waitersMu sync.Mutex
	waiters   map[string]chan MempoolResponsePayload

	chainWaitersMu sync.Mutex
	chainWaiters   map[string]chan ChainResponsePayload
}

// NewManager creates a manager identified by nodeID, advertising
// listeningAddress to peers, backed by chain and mempool.
func NewManager(nodeID, listeningAddress string, role params.Role, chain *blockchain.Blockchain, mp *mempool.Mempool) *Manager {
	m := &Manager{
		nodeID:           nodeID,
		listeningAddress: listeningAddress,
		role:             role,
		chain:            chain,
		mempool:          mp,
		waiters:          make(map[string]chan MempoolResponsePayload),
		chainWaiters:     make(map[string]chan ChainResponsePayload),
	}
	m.tr = p2p.New(nodeID, listeningAddress, m)
	return m
}

// Chain exposes the manager's blockchain (read paths: balances, history,
// confirmations, and the API/CLI surfaces built on it).
func (m *Manager) Chain() *blockchain.Blockchain { return m.chain }

// Mempool exposes the manager's mempool.
func (m *Manager) Mempool() *mempool.Mempool { return m.mempool }

// AddBlockObserver registers o to be notified on every appended block.
func (m *Manager) AddBlockObserver(o BlockAppendObserver) {
	m.observers = append(m.observers, o)
}

// Listen starts accepting inbound connections on addr.
func (m *Manager) Listen(addr string) error {
	return m.tr.Listen(addr)
}

// Close stops accepting new connections.
func (m *Manager) Close() error {
	return m.tr.Close()
}

// Dial opens an outbound connection to addr and runs its handshake.
func (m *Manager) Dial(addr string) (*p2p.Peer, error) {
	return m.tr.Dial(addr)
}

// ListenAddr returns the bound listening address string, valid after Listen
// succeeds.
func (m *Manager) ListenAddr() string {
	if a := m.tr.Addr(); a != nil {
		return a.String()
	}
	return ""
}

// isWallet reports whether this manager is a wallet-attached transport
// (spec.md §4.4: "wallet-attached managers suppress all PEER_DISCOVERY
// reactions and do not advertise themselves").
func (m *Manager) isWallet() bool {
	return m.listeningAddress == params.WalletListenSentinel
}

// OnPeerConnected implements p2p.Handler (spec.md §4.4's peer_connected
// reaction).
func (m *Manager) OnPeerConnected(p *p2p.Peer) {
	if p.Type == p2p.ConnWallet || m.isWallet() {
		logger.Info("peer connected", "node_id", p.NodeID, "type", p.Type)
		return
	}

	logger.Info("peer connected", "node_id", p.NodeID, "listening_address", p.ListeningAddress)

	f, err := p2p.NewFrame(p2p.PeerDiscovery, m.nodeID, nowMs(), p2p.PeerDiscoveryPayload{
		ListeningAddress: p.ListeningAddress,
	})
	if err == nil {
		m.tr.BroadcastExcept(f, p.NodeID)
	}

	req, err := p2p.NewFrame(p2p.ChainRequest, m.nodeID, nowMs(), struct{}{})
	if err == nil {
		_ = p.Send(req)
	}
}

// OnPeerDisconnected implements p2p.Handler.
func (m *Manager) OnPeerDisconnected(nodeID string) {
	logger.Info("peer disconnected", "node_id", nodeID)
}

// OnFrame implements p2p.Handler, dispatching to the reaction table of
// spec.md §4.4.
func (m *Manager) OnFrame(p *p2p.Peer, f Frame) {
	switch f.Type {
	case p2p.PeerDiscovery:
		m.onPeerDiscovery(f)
	case p2p.ChainRequest:
		m.onChainRequest(p)
	case p2p.ChainResponse:
		m.onChainResponse(f)
	case p2p.BlockFrame:
		m.onBlock(p, f)
	case p2p.TransactionFrame:
		m.onTransaction(p, f)
	case p2p.MempoolRequest:
		m.onMempoolRequest(p)
	case p2p.MempoolResponse:
		m.onMempoolResponse(f)
	default:
		logger.Warn("unknown frame type", "type", f.Type)
	}
}

type Frame = p2p.Frame

func nowMs() int64 { return time.Now().UnixNano() / int64(time.Millisecond) }

func (m *Manager) onMempoolResponse(f Frame) {
	m.waitersMu.Lock()
	ch, ok := m.waiters[f.Sender]
	if ok {
		delete(m.waiters, f.Sender)
	}
	m.waitersMu.Unlock()
	if !ok {
		return
	}
	var payload MempoolResponsePayload
	if err := f.Decode(&payload); err != nil {
		logger.Warn("malformed MEMPOOL_RESPONSE payload", "err", err)
		return
	}
	ch <- payload
}

func (m *Manager) notifyChainWaiter(nodeID string, payload ChainResponsePayload) {
	m.chainWaitersMu.Lock()
	ch, ok := m.chainWaiters[nodeID]
	if ok {
		delete(m.chainWaiters, nodeID)
	}
	m.chainWaitersMu.Unlock()
	if ok {
		ch <- payload
	}
}

// RequestChainSync sends a CHAIN_REQUEST to nodeID and blocks until its
// CHAIN_RESPONSE arrives (applied via the normal onChainResponse reaction
// regardless of this call) or timeout elapses. Wallet CLI commands use
// this to pull a fresh copy of the chain before computing a balance or
// transaction status (spec.md §4.6, "chain sync uses a 10s timeout at the
// caller") - unlike the automatic peer_connected CHAIN_REQUEST, which
// wallet-mode managers suppress entirely.
func (m *Manager) RequestChainSync(nodeID string, timeout time.Duration) error {
	ch := make(chan ChainResponsePayload, 1)
	m.chainWaitersMu.Lock()
	m.chainWaiters[nodeID] = ch
	m.chainWaitersMu.Unlock()

	f, err := p2p.NewFrame(p2p.ChainRequest, m.nodeID, nowMs(), struct{}{})
	if err != nil {
		m.chainWaitersMu.Lock()
		delete(m.chainWaiters, nodeID)
		m.chainWaitersMu.Unlock()
		return err
	}
	if err := m.tr.SendTo(nodeID, f); err != nil {
		m.chainWaitersMu.Lock()
		delete(m.chainWaiters, nodeID)
		m.chainWaitersMu.Unlock()
		return err
	}

	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		m.chainWaitersMu.Lock()
		delete(m.chainWaiters, nodeID)
		m.chainWaitersMu.Unlock()
		return errors.New("node: chain sync timed out")
	}
}

// QueryMempool sends a MEMPOOL_REQUEST to nodeID and blocks for its
// MEMPOOL_RESPONSE, used by get_transaction_status (§4.6) to check whether
// a transaction is pending on a peer. At most one query per peer may be
// in flight at a time.
func (m *Manager) QueryMempool(nodeID string, timeout time.Duration) ([]types.Transaction, error) {
	ch := make(chan MempoolResponsePayload, 1)
	m.waitersMu.Lock()
	m.waiters[nodeID] = ch
	m.waitersMu.Unlock()

	if err := m.RequestMempool(nodeID); err != nil {
		m.waitersMu.Lock()
		delete(m.waiters, nodeID)
		m.waitersMu.Unlock()
		return nil, err
	}

	select {
	case payload := <-ch:
		return payload.Transactions, nil
	case <-time.After(timeout):
		m.waitersMu.Lock()
		delete(m.waiters, nodeID)
		m.waitersMu.Unlock()
		return nil, errors.New("node: mempool query timed out")
	}
}
