// Package p2p is the peer-to-peer transport: newline-delimited JSON frames
// over plain net.Conn streams, a handshake, and a peer table split into
// full peers and attached wallets (spec.md §4.3).
package p2p

import (
	"encoding/json"
)

// FrameType enumerates the wire message kinds of spec.md §4.3.
type FrameType string

const (
	Handshake        FrameType = "HANDSHAKE"
	PeerDiscovery    FrameType = "PEER_DISCOVERY"
	ChainRequest     FrameType = "CHAIN_REQUEST"
	ChainResponse    FrameType = "CHAIN_RESPONSE"
	BlockFrame       FrameType = "BLOCK"
	TransactionFrame FrameType = "TRANSACTION"
	MempoolRequest   FrameType = "MEMPOOL_REQUEST"
	MempoolResponse  FrameType = "MEMPOOL_RESPONSE"
)

// Frame is the wire envelope: {type, payload, sender, timestamp}
// (spec.md §4.3/§6). Payload is left raw so each handler can unmarshal the
// shape it expects without the transport knowing about chain/mempool types.
type Frame struct {
	Type      FrameType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Sender    string          `json:"sender"`
	Timestamp int64           `json:"timestamp"`
}

// HandshakePayload is HANDSHAKE's payload shape: {node_id, listening_address}.
type HandshakePayload struct {
	NodeID           string `json:"node_id"`
	ListeningAddress string `json:"listening_address"`
}

// PeerDiscoveryPayload advertises one newly-seen peer's listening address.
type PeerDiscoveryPayload struct {
	ListeningAddress string `json:"listening_address"`
}

// NewFrame builds a Frame with the given type/payload/sender, JSON-encoding
// payload into the envelope's raw payload field.
func NewFrame(typ FrameType, sender string, timestampMs int64, payload interface{}) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: typ, Payload: data, Sender: sender, Timestamp: timestampMs}, nil
}

// Decode unmarshals f's payload into v.
func (f Frame) Decode(v interface{}) error {
	return json.Unmarshal(f.Payload, v)
}
