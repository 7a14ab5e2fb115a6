package mempool

import (
	"testing"
	"time"

	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/crypto"
	"github.com/ledgerd/ledgerd/params"
	"github.com/stretchr/testify/require"
)

func nowMs() int64 { return time.Now().UnixNano() / int64(time.Millisecond) }

type keypair struct{ pub, priv string }

func newKeypair(t *testing.T) keypair {
	t.Helper()
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return keypair{pub: pub, priv: priv}
}

func signedTransfer(t *testing.T, from, to keypair, amount float64) types.Transaction {
	t.Helper()
	id, err := crypto.RandomHex(32)
	require.NoError(t, err)
	sender := from.pub
	tx := types.Transaction{ID: id, Sender: &sender, Recipient: to.pub, Amount: amount, Timestamp: nowMs()}
	require.NoError(t, tx.Sign(from.priv))
	return tx
}

func newFundedChain(t *testing.T, who keypair, amount float64) *blockchain.Blockchain {
	t.Helper()
	bc := blockchain.New(1)
	id, err := crypto.RandomHex(32)
	require.NoError(t, err)
	cb := types.Transaction{ID: id, Recipient: who.pub, Amount: amount, Timestamp: nowMs(), IsCoinbase: true}
	require.NoError(t, cb.Sign(who.priv))
	_, err = bc.CreateBlock([]types.Transaction{cb}, who.pub, amount)
	require.NoError(t, err)
	return bc
}

func TestAddTransactionAdmitsValidTransaction(t *testing.T) {
	alice := newKeypair(t)
	bob := newKeypair(t)
	bc := newFundedChain(t, alice, params.InitialReward)
	mp := New(bc)

	tx := signedTransfer(t, alice, bob, 10)
	require.NoError(t, mp.AddTransaction(tx))
	require.Equal(t, 1, mp.Len())
	require.True(t, mp.Has(tx.ID))
}

func TestAddTransactionRejectsDuplicate(t *testing.T) {
	alice := newKeypair(t)
	bob := newKeypair(t)
	bc := newFundedChain(t, alice, params.InitialReward)
	mp := New(bc)

	tx := signedTransfer(t, alice, bob, 10)
	require.NoError(t, mp.AddTransaction(tx))
	require.Error(t, mp.AddTransaction(tx))
}

func TestAddTransactionEnforcesPendingDebits(t *testing.T) {
	alice := newKeypair(t)
	bob := newKeypair(t)
	bc := newFundedChain(t, alice, params.InitialReward)
	mp := New(bc)

	first := signedTransfer(t, alice, bob, 30)
	require.NoError(t, mp.AddTransaction(first))

	second := signedTransfer(t, alice, bob, 30)
	err := mp.AddTransaction(second)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestAddTransactionRejectsStaleTransaction(t *testing.T) {
	alice := newKeypair(t)
	bob := newKeypair(t)
	bc := newFundedChain(t, alice, params.InitialReward)
	mp := New(bc)

	tx := signedTransfer(t, alice, bob, 10)
	tx.Timestamp = nowMs() - 2*params.MempoolTransactionTTL.Milliseconds()
	require.NoError(t, tx.Sign(alice.priv))

	err := mp.AddTransaction(tx)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.False(t, mp.Has(tx.ID))
}

func TestGetTransactionsReturnsFIFOOrder(t *testing.T) {
	alice := newKeypair(t)
	bob := newKeypair(t)
	bc := newFundedChain(t, alice, params.InitialReward)
	mp := New(bc)

	tx1 := signedTransfer(t, alice, bob, 5)
	require.NoError(t, mp.AddTransaction(tx1))
	tx2 := signedTransfer(t, bob, alice, 1)
	cbID, err := crypto.RandomHex(32)
	require.NoError(t, err)
	bobReward := params.RewardForHeight(2)
	cb := types.Transaction{ID: cbID, Recipient: bob.pub, Amount: bobReward, Timestamp: nowMs(), IsCoinbase: true}
	require.NoError(t, cb.Sign(bob.priv))
	_, err = bc.CreateBlock([]types.Transaction{cb}, bob.pub, bobReward)
	require.NoError(t, err)
	require.NoError(t, mp.AddTransaction(tx2))

	got := mp.GetTransactions(0)
	require.Len(t, got, 2)
	require.Equal(t, tx1.ID, got[0].ID)
	require.Equal(t, tx2.ID, got[1].ID)
}

func TestRemoveTransactionDropsFromPool(t *testing.T) {
	alice := newKeypair(t)
	bob := newKeypair(t)
	bc := newFundedChain(t, alice, params.InitialReward)
	mp := New(bc)

	tx := signedTransfer(t, alice, bob, 10)
	require.NoError(t, mp.AddTransaction(tx))
	mp.RemoveTransaction(tx.ID)
	require.Equal(t, 0, mp.Len())
	require.False(t, mp.Has(tx.ID))
}

func TestMempoolFullRejectsAdmission(t *testing.T) {
	alice := newKeypair(t)
	bob := newKeypair(t)
	bc := newFundedChain(t, alice, params.InitialReward)
	mp := New(bc)

	for i := 0; i < params.MempoolMaxTransactions; i++ {
		tx := signedTransfer(t, alice, bob, 0.0001)
		require.NoError(t, mp.AddTransaction(tx))
	}

	overflow := signedTransfer(t, alice, bob, 0.0001)
	err := mp.AddTransaction(overflow)
	require.Error(t, err)
	require.True(t, IsResourceError(err))
}
