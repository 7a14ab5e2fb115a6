package p2p

import (
	"sync"

	"gopkg.in/fatih/set.v0"
)

// Table is the peer table of spec.md §3: peers (full gossip nodes) and
// wallet_connections (attached wallets) are disjoint sub-sets, keyed by
// node id. knownAddrs dedups outbound dials by listening address so a
// PEER_DISCOVERY advertisement for an address already being dialed is not
// acted on twice.
type Table struct {
	mu                sync.RWMutex
	peers             map[string]*Peer
	walletConnections map[string]*Peer
	knownAddrs        *set.Set
}

// NewTable creates an empty peer table.
func NewTable() *Table {
	return &Table{
		peers:             make(map[string]*Peer),
		walletConnections: make(map[string]*Peer),
		knownAddrs:        set.New(),
	}
}

// Add places p into the peer table's peers or walletConnections set
// according to p.Type.
func (t *Table) Add(p *Peer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.Type == ConnWallet {
		t.walletConnections[p.NodeID] = p
		return
	}
	t.peers[p.NodeID] = p
	if p.ListeningAddress != "" {
		t.knownAddrs.Add(p.ListeningAddress)
	}
}

// Remove drops a peer (by node id) from whichever set it belongs to.
func (t *Table) Remove(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, nodeID)
	delete(t.walletConnections, nodeID)
}

// Get returns the full peer with the given node id, if connected.
func (t *Table) Get(nodeID string) (*Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[nodeID]
	return p, ok
}

// Peers returns a snapshot of every connected full peer (not wallets).
func (t *Table) Peers() []*Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// PeersExcept returns every connected full peer other than excludeNodeID.
func (t *Table) PeersExcept(excludeNodeID string) []*Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Peer, 0, len(t.peers))
	for id, p := range t.peers {
		if id == excludeNodeID {
			continue
		}
		out = append(out, p)
	}
	return out
}

// KnownAddress reports whether listeningAddr already belongs to a connected
// peer or an in-flight dial marked via MarkDialing.
func (t *Table) KnownAddress(listeningAddr string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.knownAddrs.Has(listeningAddr)
}

// MarkDialing optimistically records listeningAddr as known before a dial
// completes, per spec.md §4.4's PEER_DISCOVERY reaction. Call UnmarkDialing
// if the dial fails.
func (t *Table) MarkDialing(listeningAddr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.knownAddrs.Add(listeningAddr)
}

// UnmarkDialing reverts a MarkDialing after a failed dial.
func (t *Table) UnmarkDialing(listeningAddr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.knownAddrs.Remove(listeningAddr)
}

// Count returns the number of connected full peers.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}
