package p2p

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu        sync.Mutex
	connected []*Peer
	frames    []Frame
	connectedCh chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{connectedCh: make(chan struct{}, 8)}
}

func (h *recordingHandler) OnPeerConnected(p *Peer) {
	h.mu.Lock()
	h.connected = append(h.connected, p)
	h.mu.Unlock()
	h.connectedCh <- struct{}{}
}

func (h *recordingHandler) OnPeerDisconnected(nodeID string) {}

func (h *recordingHandler) OnFrame(p *Peer, f Frame) {
	h.mu.Lock()
	h.frames = append(h.frames, f)
	h.mu.Unlock()
}

func waitConnected(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for peer_connected")
	}
}

func TestDialPerformsHandshakeAndRegistersPeer(t *testing.T) {
	serverHandler := newRecordingHandler()
	server := New("server-id", "127.0.0.1:0", serverHandler)
	require.NoError(t, server.Listen("127.0.0.1:0"))
	defer server.Close()
	addr := server.listener.Addr().String()
	server.ListeningAddress = addr

	clientHandler := newRecordingHandler()
	client := New("client-id", "127.0.0.1:0", clientHandler)

	peer, err := client.Dial(addr)
	require.NoError(t, err)
	require.Equal(t, "server-id", peer.NodeID)

	waitConnected(t, serverHandler.connectedCh)
	waitConnected(t, clientHandler.connectedCh)

	require.Equal(t, 1, server.table.Count())
	require.Equal(t, 1, client.table.Count())
}

func TestDialRefusesSelfAndDuplicate(t *testing.T) {
	handler := newRecordingHandler()
	tr := New("node", "self:1", handler)
	_, err := tr.Dial("self:1")
	require.ErrorIs(t, err, errSelfDial)

	tr.table.MarkDialing("1.2.3.4:9")
	_, err = tr.Dial("1.2.3.4:9")
	require.ErrorIs(t, err, errAlreadyKnown)
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	serverHandler := newRecordingHandler()
	server := New("server-id", "", serverHandler)
	require.NoError(t, server.Listen("127.0.0.1:0"))
	defer server.Close()
	addr := server.listener.Addr().String()

	clientHandler := newRecordingHandler()
	client := New("client-id", "127.0.0.1:0", clientHandler)
	_, err := client.Dial(addr)
	require.NoError(t, err)
	waitConnected(t, serverHandler.connectedCh)

	f, err := NewFrame(PeerDiscovery, "server-id", 1, PeerDiscoveryPayload{ListeningAddress: "x:1"})
	require.NoError(t, err)
	server.BroadcastExcept(f, "client-id")

	time.Sleep(100 * time.Millisecond)
	clientHandler.mu.Lock()
	defer clientHandler.mu.Unlock()
	require.Len(t, clientHandler.frames, 0)
}
