package p2p

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"

	"github.com/ledgerd/ledgerd/log"
)

var logger = log.NewModuleLogger(log.P2P)

// ConnType classifies an established connection: a full gossip peer, or an
// attached wallet that is excluded from peer lists and block/tx fan-out
// (spec.md §4.3).
type ConnType int

const (
	ConnUnknown ConnType = iota
	ConnPeer
	ConnWallet
)

func (t ConnType) String() string {
	switch t {
	case ConnPeer:
		return "peer"
	case ConnWallet:
		return "wallet"
	default:
		return "unknown"
	}
}

// Peer is one established, handshaken connection: its node id, advertised
// listening address, and the framed stream used to exchange Frames.
type Peer struct {
	NodeID           string
	ListeningAddress string
	RemoteAddress    string
	Type             ConnType

	conn   net.Conn
	writeM sync.Mutex
	reader *bufio.Reader
}

func newPeer(conn net.Conn) *Peer {
	return &Peer{
		conn:          conn,
		RemoteAddress: conn.RemoteAddr().String(),
		reader:        bufio.NewReader(conn),
	}
}

// Send writes f to the peer as a single newline-delimited JSON frame.
// Concurrent sends on the same peer are serialized so frames never
// interleave on the wire.
func (p *Peer) Send(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	p.writeM.Lock()
	defer p.writeM.Unlock()
	_, err = p.conn.Write(data)
	return err
}

// Recv blocks until the next newline-delimited frame arrives, or the
// connection is closed/errors.
func (p *Peer) Recv() (Frame, error) {
	line, err := p.reader.ReadBytes('\n')
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Close closes the underlying connection.
func (p *Peer) Close() error {
	return p.conn.Close()
}
