package accounts

import (
	"testing"
	"time"

	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/stretchr/testify/require"
)

func TestCreateTransactionProducesValidSignedTransfer(t *testing.T) {
	alice, err := NewIdentity("alice", 1000)
	require.NoError(t, err)
	bob, err := NewIdentity("bob", 1000)
	require.NoError(t, err)

	w := NewWallet(alice)
	tx, err := w.CreateTransaction(bob.PublicKey, 5, 2000)
	require.NoError(t, err)

	require.NotEmpty(t, tx.ID)
	require.Equal(t, alice.PublicKey, *tx.Sender)
	require.Equal(t, bob.PublicKey, tx.Recipient)
	require.Equal(t, 5.0, tx.Amount)
	require.False(t, tx.IsCoinbase)
	require.True(t, tx.VerifySignature())
}

type fakeSubmitter struct {
	submitted  []types.Transaction
	submitErr  error
	mempoolTxs []types.Transaction
	queryErr   error
}

func (f *fakeSubmitter) SubmitTransaction(tx types.Transaction) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, tx)
	return nil
}

func (f *fakeSubmitter) QueryMempool(nodeID string, timeout time.Duration) ([]types.Transaction, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.mempoolTxs, nil
}

type fakeChainReader struct {
	confirmations map[string]blockchain.Confirmation
}

func (f *fakeChainReader) GetTransactionConfirmation(txID string) (blockchain.Confirmation, bool) {
	c, ok := f.confirmations[txID]
	return c, ok
}

func TestSubmitTransactionDelegatesToManager(t *testing.T) {
	alice, err := NewIdentity("alice", 1000)
	require.NoError(t, err)
	bob, err := NewIdentity("bob", 1000)
	require.NoError(t, err)

	w := NewWallet(alice)
	sub := &fakeSubmitter{}
	tx, err := w.SubmitTransaction(sub, bob.PublicKey, 10, 3000)
	require.NoError(t, err)
	require.Len(t, sub.submitted, 1)
	require.Equal(t, tx.ID, sub.submitted[0].ID)
}

func TestGetTransactionStatusReturnsConfirmedWhenInChain(t *testing.T) {
	chain := &fakeChainReader{confirmations: map[string]blockchain.Confirmation{
		"tx1": {BlockHeight: 2, Confirmations: 1, Status: blockchain.StatusPending},
	}}
	status := GetTransactionStatus(chain, nil, nil, "", "tx1", time.Second)
	require.Equal(t, StatusConfirmed, status)
}

func TestGetTransactionStatusReturnsPendingWhenInOwnMempool(t *testing.T) {
	chain := &fakeChainReader{confirmations: map[string]blockchain.Confirmation{}}
	ownHas := func(txID string) bool { return txID == "tx1" }
	status := GetTransactionStatus(chain, ownHas, nil, "", "tx1", time.Second)
	require.Equal(t, StatusPending, status)
}

func TestGetTransactionStatusReturnsPendingWhenInPeerMempool(t *testing.T) {
	chain := &fakeChainReader{confirmations: map[string]blockchain.Confirmation{}}
	ownHas := func(txID string) bool { return false }
	sub := &fakeSubmitter{mempoolTxs: []types.Transaction{{ID: "tx1"}}}
	status := GetTransactionStatus(chain, ownHas, sub, "peer-1", "tx1", time.Second)
	require.Equal(t, StatusPending, status)
}

func TestGetTransactionStatusReturnsRejectedWhenNowhereFound(t *testing.T) {
	chain := &fakeChainReader{confirmations: map[string]blockchain.Confirmation{}}
	ownHas := func(txID string) bool { return false }
	sub := &fakeSubmitter{mempoolTxs: nil}
	status := GetTransactionStatus(chain, ownHas, sub, "peer-1", "tx1", time.Second)
	require.Equal(t, StatusRejected, status)
}
