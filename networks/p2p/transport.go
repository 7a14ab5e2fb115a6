package p2p

import (
	"net"
	"time"

	"github.com/ledgerd/ledgerd/metrics"
	"github.com/ledgerd/ledgerd/params"
)

var (
	framesReceivedCounter    = metrics.NewRegisteredCounter("p2p/frames/received", nil)
	peersConnectedCounter    = metrics.NewRegisteredCounter("p2p/peers/connected", nil)
	peersDisconnectedCounter = metrics.NewRegisteredCounter("p2p/peers/disconnected", nil)
)

// Handler receives transport-level events; the network manager implements
// this to run the gossip state machine of spec.md §4.4.
type Handler interface {
	OnPeerConnected(p *Peer)
	OnPeerDisconnected(nodeID string)
	OnFrame(p *Peer, f Frame)
}

// Transport owns the listening socket, the peer table, and every open
// connection's read loop (spec.md §4.3). NodeID and ListeningAddress
// identify this node in handshakes; ListeningAddress is
// params.WalletListenSentinel for wallet-side transports, which suppresses
// peer-table membership on the far side.
type Transport struct {
	NodeID           string
	ListeningAddress string

	table    *Table
	handler  Handler
	listener net.Listener
}

// New creates a transport identified by nodeID/listeningAddress, dispatching
// transport events to handler.
func New(nodeID, listeningAddress string, handler Handler) *Transport {
	return &Transport{
		NodeID:           nodeID,
		ListeningAddress: listeningAddress,
		table:            NewTable(),
		handler:          handler,
	}
}

// Table exposes the transport's peer table for the manager's reactions
// (peer lists, broadcast exclusion, etc.).
func (tr *Transport) Table() *Table { return tr.table }

// Listen binds addr and accepts connections until Close is called.
func (tr *Transport) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	tr.listener = ln
	go tr.acceptLoop(ln)
	return nil
}

// Addr returns the transport's bound listening address, valid after a
// successful Listen call.
func (tr *Transport) Addr() net.Addr {
	if tr.listener == nil {
		return nil
	}
	return tr.listener.Addr()
}

// Close stops accepting new connections.
func (tr *Transport) Close() error {
	if tr.listener == nil {
		return nil
	}
	return tr.listener.Close()
}

func (tr *Transport) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go tr.handleInbound(conn)
	}
}

func (tr *Transport) handleInbound(conn net.Conn) {
	peer := newPeer(conn)
	if err := tr.serverHandshake(peer); err != nil {
		logger.Warn("inbound handshake failed", "remote", peer.RemoteAddress, "err", err)
		conn.Close()
		return
	}
	tr.registerAndServe(peer)
}

// Dial opens an outbound connection to addr, performs the handshake, and
// registers the resulting peer. Self-dial (addr == tr.ListeningAddress) and
// duplicate dials to an already-known address are refused.
func (tr *Transport) Dial(addr string) (*Peer, error) {
	if addr == tr.ListeningAddress {
		return nil, errSelfDial
	}
	if tr.table.KnownAddress(addr) {
		return nil, errAlreadyKnown
	}

	conn, err := net.DialTimeout("tcp", addr, params.WalletConnectTimeout)
	if err != nil {
		return nil, err
	}
	peer := newPeer(conn)
	if err := tr.clientHandshake(peer); err != nil {
		conn.Close()
		return nil, err
	}
	tr.registerAndServe(peer)
	return peer, nil
}

func (tr *Transport) registerAndServe(peer *Peer) {
	if peer.ListeningAddress == params.WalletListenSentinel {
		peer.Type = ConnWallet
	} else {
		peer.Type = ConnPeer
	}
	tr.table.Add(peer)
	peersConnectedCounter.Inc(1)
	tr.handler.OnPeerConnected(peer)
	go tr.readLoop(peer)
}

func (tr *Transport) readLoop(peer *Peer) {
	defer func() {
		peer.Close()
		tr.table.Remove(peer.NodeID)
		peersDisconnectedCounter.Inc(1)
		tr.handler.OnPeerDisconnected(peer.NodeID)
	}()
	for {
		frame, err := peer.Recv()
		if err != nil {
			return
		}
		framesReceivedCounter.Inc(1)
		tr.handler.OnFrame(peer, frame)
	}
}

// Broadcast sends f to every connected full peer.
func (tr *Transport) Broadcast(f Frame) {
	for _, p := range tr.table.Peers() {
		if err := p.Send(f); err != nil {
			logger.Warn("broadcast send failed", "peer", p.NodeID, "err", err)
		}
	}
}

// BroadcastExcept sends f to every connected full peer other than
// excludeNodeID (spec.md §4.4's re-broadcast-excluding-sender rule).
func (tr *Transport) BroadcastExcept(f Frame, excludeNodeID string) {
	for _, p := range tr.table.PeersExcept(excludeNodeID) {
		if err := p.Send(f); err != nil {
			logger.Warn("broadcast send failed", "peer", p.NodeID, "err", err)
		}
	}
}

// SendTo sends f to a single peer by node id.
func (tr *Transport) SendTo(nodeID string, f Frame) error {
	p, ok := tr.table.Get(nodeID)
	if !ok {
		return errUnknownPeer
	}
	return p.Send(f)
}

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
