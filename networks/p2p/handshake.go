package p2p

import "github.com/pkg/errors"

var (
	errSelfDial     = errors.New("p2p: refusing to dial own listening address")
	errAlreadyKnown = errors.New("p2p: listening address is already known")
	errUnknownPeer  = errors.New("p2p: unknown peer id")
	errBadHandshake = errors.New("p2p: unexpected frame type during handshake")
)

// serverHandshake runs the accept-side of the HANDSHAKE exchange (spec.md
// §4.3): wait for the remote's HANDSHAKE frame, then reply with our own.
func (tr *Transport) serverHandshake(peer *Peer) error {
	remote, err := tr.recvHandshake(peer)
	if err != nil {
		return err
	}
	peer.NodeID = remote.NodeID
	peer.ListeningAddress = remote.ListeningAddress

	return tr.sendHandshake(peer)
}

// clientHandshake runs the dial-side of the exchange: send first, then wait
// for the remote's reply.
func (tr *Transport) clientHandshake(peer *Peer) error {
	if err := tr.sendHandshake(peer); err != nil {
		return err
	}
	remote, err := tr.recvHandshake(peer)
	if err != nil {
		return err
	}
	peer.NodeID = remote.NodeID
	peer.ListeningAddress = remote.ListeningAddress
	return nil
}

func (tr *Transport) sendHandshake(peer *Peer) error {
	f, err := NewFrame(Handshake, tr.NodeID, nowMs(), HandshakePayload{
		NodeID:           tr.NodeID,
		ListeningAddress: tr.ListeningAddress,
	})
	if err != nil {
		return err
	}
	return peer.Send(f)
}

func (tr *Transport) recvHandshake(peer *Peer) (HandshakePayload, error) {
	f, err := peer.Recv()
	if err != nil {
		return HandshakePayload{}, err
	}
	if f.Type != Handshake {
		return HandshakePayload{}, errBadHandshake
	}
	var hp HandshakePayload
	if err := f.Decode(&hp); err != nil {
		return HandshakePayload{}, err
	}
	return hp, nil
}
