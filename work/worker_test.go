package work

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

// miningWait is how long tests allow for a miner's first tick plus the
// nonce search itself: Start schedules the first attempt on the next
// params.MiningTickInterval tick rather than mining immediately.
const miningWait = params.MiningTickInterval + 5*time.Second

type keypair struct{ pub, priv string }

func newKeypair(t *testing.T) keypair {
	t.Helper()
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return keypair{pub: pub, priv: priv}
}

type recordingBroadcaster struct {
	blocks []types.Block
}

func (r *recordingBroadcaster) BroadcastBlock(b types.Block) {
	r.blocks = append(r.blocks, b)
}

func TestMinerMinesAndAppendsBlockWithCoinbase(t *testing.T) {
	miner := newKeypair(t)
	bc := blockchain.New(1)
	mp := mempool.New(bc)
	bcast := &recordingBroadcaster{}

	m := NewMiner(bc, mp, bcast, miner.pub, miner.priv)
	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return bc.Len() == 2
	}, miningWait, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(bcast.blocks) >= 1
	}, time.Second, 5*time.Millisecond)

	tip := bc.Tip()
	require.Equal(t, miner.pub, tip.Miner)
	require.Len(t, tip.Transactions, 1)
	require.True(t, tip.Transactions[0].IsCoinbase)
}

func TestMinerIncludesMempoolTransactions(t *testing.T) {
	alice := newKeypair(t)
	bob := newKeypair(t)
	minerKp := newKeypair(t)

	bc := blockchain.New(1)
	mp := mempool.New(bc)
	bcast := &recordingBroadcaster{}

	m := NewMiner(bc, mp, bcast, minerKp.pub, minerKp.priv)
	m.Start()

	require.Eventually(t, func() bool { return bc.Len() == 2 }, miningWait, 5*time.Millisecond)
	m.Stop()

	// Fund alice via the mined coinbase credited to the miner isn't alice,
	// so instead submit a transfer once alice has a confirmed balance from
	// a second miner round targeting her directly.
	bc2 := blockchain.New(1)
	mp2 := mempool.New(bc2)
	m2 := NewMiner(bc2, mp2, &recordingBroadcaster{}, alice.pub, alice.priv)
	m2.Start()
	require.Eventually(t, func() bool { return bc2.Len() == 2 }, miningWait, 5*time.Millisecond)
	m2.Stop()

	id, err := crypto.RandomHex(32)
	require.NoError(t, err)
	sender := alice.pub
	transfer := types.Transaction{ID: id, Sender: &sender, Recipient: bob.pub, Amount: 1, Timestamp: time.Now().UnixNano() / int64(time.Millisecond)}
	require.NoError(t, transfer.Sign(alice.priv))
	require.NoError(t, mp2.AddTransaction(transfer))

	bcast2 := &recordingBroadcaster{}
	m3 := NewMiner(bc2, mp2, bcast2, minerKp.pub, minerKp.priv)
	m3.Start()
	defer m3.Stop()

	require.Eventually(t, func() bool { return bc2.Len() == 3 }, miningWait, 5*time.Millisecond)
	require.Eventually(t, func() bool { return mp2.Len() == 0 }, time.Second, 5*time.Millisecond)

	tip := bc2.Tip()
	found := false
	for _, tx := range tip.Transactions {
		if tx.ID == transfer.ID {
			found = true
		}
	}
	require.True(t, found)
}

func TestOnBlockAppendedQueuesWorkOnCurrentTip(t *testing.T) {
	minerKp := newKeypair(t)
	bc := blockchain.New(20) // hard enough that the queued mine never finishes during the test
	mp := mempool.New(bc)
	bcast := &recordingBroadcaster{}

	m := NewMiner(bc, mp, bcast, minerKp.pub, minerKp.priv)
	m.Start()
	defer m.Stop()

	tip := bc.Tip()
	require.NotPanics(t, func() {
		m.OnBlockAppended(tip)
	})

	m.currentMu.Lock()
	current := m.current
	m.currentMu.Unlock()
	require.NotNil(t, current)
	require.Equal(t, tip.Index+1, current.Block.Index)
	require.Equal(t, tip.Hash, current.Block.PreviousHash)
}
