package node

import (
	"testing"
	"time"

	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/mempool"
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/crypto"
	"github.com/ledgerd/ledgerd/params"
	"github.com/stretchr/testify/require"
)

type keypair struct{ pub, priv string }

func newKeypair(t *testing.T) keypair {
	t.Helper()
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return keypair{pub: pub, priv: priv}
}

func newManager(t *testing.T, nodeID string, difficulty int) *Manager {
	t.Helper()
	chain := blockchain.New(difficulty)
	mp := mempool.New(chain)
	m := NewManager(nodeID, "", params.RoleRelay, chain, mp)
	require.NoError(t, m.Listen("127.0.0.1:0"))
	t.Cleanup(func() { m.Close() })
	return m
}

func mineOnto(t *testing.T, bc *blockchain.Blockchain, miner keypair, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		id, err := crypto.RandomHex(32)
		require.NoError(t, err)
		cb := types.Transaction{ID: id, Recipient: miner.pub, Amount: params.InitialReward, Timestamp: int64(i) + 1, IsCoinbase: true}
		require.NoError(t, cb.Sign(miner.priv))
		_, err = bc.CreateBlock([]types.Transaction{cb}, miner.pub, params.InitialReward)
		require.NoError(t, err)
	}
}

func TestTwoNodesConvergeOnLongerChain(t *testing.T) {
	miner := newKeypair(t)

	n1 := newManager(t, "n1", 1)
	mineOnto(t, n1.Chain(), miner, 2)

	n2 := newManager(t, "n2", 1)

	_, err := n2.Dial(n1.ListenAddr())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return n2.Chain().Len() == n1.Chain().Len()
	}, 2*time.Second, 20*time.Millisecond)

	require.Equal(t, n1.Chain().Tip().Hash, n2.Chain().Tip().Hash)
	bal := n2.Chain().GetAccountBalance(miner.pub)
	require.Equal(t, 2*params.InitialReward, bal.Confirmed)
}
