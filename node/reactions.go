package node

import (
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/networks/p2p"
	"github.com/ledgerd/ledgerd/params"
)

// ChainResponsePayload carries the entire current chain (spec.md §4.1/§4.4).
type ChainResponsePayload struct {
	Chain []types.Block `json:"chain"`
}

// BlockPayload wraps a single mined or received block.
type BlockPayload struct {
	Block types.Block `json:"block"`
}

// TransactionPayload wraps a single transaction.
type TransactionPayload struct {
	Transaction types.Transaction `json:"transaction"`
}

// MempoolResponsePayload carries the current mempool contents.
type MempoolResponsePayload struct {
	Transactions []types.Transaction `json:"transactions"`
}

func (m *Manager) onPeerDiscovery(f Frame) {
	if m.isWallet() {
		return
	}
	var payload p2p.PeerDiscoveryPayload
	if err := f.Decode(&payload); err != nil {
		logger.Warn("malformed PEER_DISCOVERY payload", "err", err)
		return
	}
	addr := payload.ListeningAddress
	if addr == "" || addr == m.listeningAddress || addr == params.WalletListenSentinel {
		return
	}
	if m.tr.Table().KnownAddress(addr) {
		return
	}
	m.tr.Table().MarkDialing(addr)
	go func() {
		if _, err := m.tr.Dial(addr); err != nil {
			logger.Warn("dial from PEER_DISCOVERY failed", "addr", addr, "err", err)
			m.tr.Table().UnmarkDialing(addr)
		}
	}()
}

func (m *Manager) onChainRequest(p *p2p.Peer) {
	f, err := p2p.NewFrame(p2p.ChainResponse, m.nodeID, nowMs(), ChainResponsePayload{Chain: m.chain.Blocks()})
	if err != nil {
		logger.Error("encoding CHAIN_RESPONSE failed", "err", err)
		return
	}
	if err := p.Send(f); err != nil {
		logger.Warn("sending CHAIN_RESPONSE failed", "err", err)
	}
}

func (m *Manager) onChainResponse(f Frame) {
	var payload ChainResponsePayload
	if err := f.Decode(&payload); err != nil {
		logger.Warn("malformed CHAIN_RESPONSE payload", "err", err)
		return
	}
	defer m.notifyChainWaiter(f.Sender, payload)

	if len(payload.Chain) <= m.chain.Len() {
		return
	}
	if !m.chain.IsValid(payload.Chain) {
		logger.Warn("received chain failed validation", "length", len(payload.Chain))
		return
	}
	if err := m.chain.ReplaceChain(payload.Chain); err != nil {
		logger.Warn("replace_chain failed", "err", err)
		return
	}
	logger.Info("adopted longer chain", "length", len(payload.Chain))
	m.notifyObservers(m.chain.Tip())
}

func (m *Manager) onBlock(p *p2p.Peer, f Frame) {
	var payload BlockPayload
	if err := f.Decode(&payload); err != nil {
		logger.Warn("malformed BLOCK payload", "err", err)
		return
	}
	if err := m.chain.AppendBlock(payload.Block); err != nil {
		logger.Warn("rejected block from peer", "err", err)
		return
	}
	m.mempool.RemoveTransactions(payload.Block.Transactions)
	logger.Info("accepted block from peer", "index", payload.Block.Index, "from", p.NodeID)
	m.notifyObservers(payload.Block)
	m.tr.BroadcastExcept(f, p.NodeID)
}

func (m *Manager) onTransaction(p *p2p.Peer, f Frame) {
	var payload TransactionPayload
	if err := f.Decode(&payload); err != nil {
		logger.Warn("malformed TRANSACTION payload", "err", err)
		return
	}
	if err := m.mempool.AddTransaction(payload.Transaction); err != nil {
		logger.Debug("rejected transaction from peer", "err", err)
		return
	}
	m.tr.BroadcastExcept(f, p.NodeID)
}

func (m *Manager) onMempoolRequest(p *p2p.Peer) {
	f, err := p2p.NewFrame(p2p.MempoolResponse, m.nodeID, nowMs(), MempoolResponsePayload{
		Transactions: m.mempool.GetTransactions(0),
	})
	if err != nil {
		logger.Error("encoding MEMPOOL_RESPONSE failed", "err", err)
		return
	}
	if err := p.Send(f); err != nil {
		logger.Warn("sending MEMPOOL_RESPONSE failed", "err", err)
	}
}

func (m *Manager) notifyObservers(b types.Block) {
	for _, o := range m.observers {
		o.OnBlockAppended(b)
	}
}

// BroadcastBlock announces a locally-mined block to every connected peer
// (spec.md §4.5 step 5).
func (m *Manager) BroadcastBlock(b types.Block) {
	f, err := p2p.NewFrame(p2p.BlockFrame, m.nodeID, nowMs(), BlockPayload{Block: b})
	if err != nil {
		logger.Error("encoding BLOCK failed", "err", err)
		return
	}
	m.tr.Broadcast(f)
}

// SubmitTransaction admits tx to the local mempool and broadcasts it, used
// by both the wallet collaborator (§4.6) and relay nodes accepting a
// locally-originated transfer.
func (m *Manager) SubmitTransaction(tx types.Transaction) error {
	if err := m.mempool.AddTransaction(tx); err != nil {
		return err
	}
	f, err := p2p.NewFrame(p2p.TransactionFrame, m.nodeID, nowMs(), TransactionPayload{Transaction: tx})
	if err != nil {
		return err
	}
	m.tr.Broadcast(f)
	return nil
}

// RequestMempool sends a MEMPOOL_REQUEST to a single peer, used by
// get_transaction_status (§4.6) to check whether a transaction is pending
// elsewhere.
func (m *Manager) RequestMempool(nodeID string) error {
	f, err := p2p.NewFrame(p2p.MempoolRequest, m.nodeID, nowMs(), struct{}{})
	if err != nil {
		return err
	}
	return m.tr.SendTo(nodeID, f)
}
