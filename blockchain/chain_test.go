package blockchain

import (
	"testing"

	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/crypto"
	"github.com/ledgerd/ledgerd/params"
	"github.com/stretchr/testify/require"
)

type keypair struct {
	pub, priv string
}

func newKeypair(t *testing.T) keypair {
	t.Helper()
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return keypair{pub: pub, priv: priv}
}

func coinbaseTx(t *testing.T, to keypair, amount float64, ts int64) types.Transaction {
	t.Helper()
	id, err := crypto.RandomHex(32)
	require.NoError(t, err)
	tx := types.Transaction{
		ID:         id,
		Sender:     nil,
		Recipient:  to.pub,
		Amount:     amount,
		Timestamp:  ts,
		IsCoinbase: true,
	}
	require.NoError(t, tx.Sign(to.priv))
	return tx
}

func transferTx(t *testing.T, from, to keypair, amount float64, ts int64) types.Transaction {
	t.Helper()
	id, err := crypto.RandomHex(32)
	require.NoError(t, err)
	sender := from.pub
	tx := types.Transaction{
		ID:        id,
		Sender:    &sender,
		Recipient: to.pub,
		Amount:    amount,
		Timestamp: ts,
	}
	require.NoError(t, tx.Sign(from.priv))
	return tx
}

func TestNewHasGenesisBlock(t *testing.T) {
	bc := New(1)
	require.Equal(t, 1, bc.Len())
	tip := bc.Tip()
	require.Equal(t, uint64(0), tip.Index)
	require.Equal(t, params.GenesisMiner, tip.Miner)
}

func TestCreateBlockCreditsMinerAndAdvancesTip(t *testing.T) {
	bc := New(1)
	miner := newKeypair(t)

	cb := coinbaseTx(t, miner, params.InitialReward, 1)
	block, err := bc.CreateBlock([]types.Transaction{cb}, miner.pub, params.InitialReward)
	require.NoError(t, err)
	require.Equal(t, uint64(1), block.Index)

	bal := bc.GetAccountBalance(miner.pub)
	require.Equal(t, params.InitialReward, bal.Confirmed)
}

func TestAppendBlockRejectsBadLinkage(t *testing.T) {
	bc := New(1)
	miner := newKeypair(t)
	cb := coinbaseTx(t, miner, params.InitialReward, 1)
	bad := types.Block{
		Index:        1,
		PreviousHash: "not-the-tip-hash",
		Timestamp:    1,
		Transactions: []types.Transaction{cb},
		Miner:        miner.pub,
		Reward:       params.InitialReward,
	}
	hash, err := bad.ComputeHash()
	require.NoError(t, err)
	bad.Hash = hash

	err = bc.AppendBlock(bad)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.Equal(t, 1, bc.Len())
}

func TestValidateTransactionRequiresSufficientConfirmedBalance(t *testing.T) {
	bc := New(1)
	alice := newKeypair(t)
	bob := newKeypair(t)

	tx := transferTx(t, alice, bob, 10, 1)
	require.False(t, bc.ValidateTransaction(tx))

	cb := coinbaseTx(t, alice, params.InitialReward, 1)
	_, err := bc.CreateBlock([]types.Transaction{cb}, alice.pub, params.InitialReward)
	require.NoError(t, err)

	require.True(t, bc.ValidateTransaction(tx))
}

func TestGetTransactionConfirmationTracksDepth(t *testing.T) {
	bc := New(1)
	miner := newKeypair(t)
	cb := coinbaseTx(t, miner, params.InitialReward, 1)
	block, err := bc.CreateBlock([]types.Transaction{cb}, miner.pub, params.InitialReward)
	require.NoError(t, err)

	conf, ok := bc.GetTransactionConfirmation(cb.ID)
	require.True(t, ok)
	require.Equal(t, block.Index, conf.BlockHeight)
	require.Equal(t, uint64(1), conf.Confirmations)
	require.Equal(t, StatusPending, conf.Status)

	for i := uint64(0); i < params.RequiredConfirms-1; i++ {
		cb2 := coinbaseTx(t, miner, params.InitialReward, int64(i)+2)
		_, err := bc.CreateBlock([]types.Transaction{cb2}, miner.pub, params.InitialReward)
		require.NoError(t, err)
	}

	conf, ok = bc.GetTransactionConfirmation(cb.ID)
	require.True(t, ok)
	require.Equal(t, params.RequiredConfirms, conf.Confirmations)
	require.Equal(t, StatusConfirmed, conf.Status)
}

func TestReplaceChainRejectsShorterOrInvalidChain(t *testing.T) {
	bc := New(1)
	miner := newKeypair(t)
	cb := coinbaseTx(t, miner, params.InitialReward, 1)
	_, err := bc.CreateBlock([]types.Transaction{cb}, miner.pub, params.InitialReward)
	require.NoError(t, err)

	err = bc.ReplaceChain([]types.Block{types.Genesis(1)})
	require.Error(t, err)
	require.True(t, IsResourceError(err))

	tampered := bc.Blocks()
	tampered = append(tampered, tampered[len(tampered)-1])
	tampered[len(tampered)-1].Hash = "deadbeef"
	err = bc.ReplaceChain(tampered)
	require.Error(t, err)
}

func TestReplaceChainAdoptsLongerValidChain(t *testing.T) {
	genesis := types.Genesis(1)
	miner := newKeypair(t)

	other := New(1)
	cb1 := coinbaseTx(t, miner, params.InitialReward, 1)
	_, err := other.CreateBlock([]types.Transaction{cb1}, miner.pub, params.InitialReward)
	require.NoError(t, err)
	cb2 := coinbaseTx(t, miner, params.InitialReward, 2)
	_, err = other.CreateBlock([]types.Transaction{cb2}, miner.pub, params.InitialReward)
	require.NoError(t, err)

	bc := New(1)
	require.Equal(t, genesis.Hash, bc.Tip().Hash)

	err = bc.ReplaceChain(other.Blocks())
	require.NoError(t, err)
	require.Equal(t, 3, bc.Len())

	bal := bc.GetAccountBalance(miner.pub)
	require.Equal(t, 2*params.InitialReward, bal.Confirmed)
}
