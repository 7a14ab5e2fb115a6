package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/mempool"
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/crypto"
	"github.com/ledgerd/ledgerd/params"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) (*NodeBackend, string, string) {
	t.Helper()
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	chain := blockchain.New(1)
	mp := mempool.New(chain)

	id, err := crypto.RandomHex(32)
	require.NoError(t, err)
	cb := types.Transaction{ID: id, Recipient: pub, Amount: params.InitialReward, Timestamp: 1, IsCoinbase: true}
	require.NoError(t, cb.Sign(priv))
	_, err = chain.CreateBlock([]types.Transaction{cb}, pub, params.InitialReward)
	require.NoError(t, err)

	return &NodeBackend{Chain: chain, Mempool: mp}, pub, priv
}

func TestHandleBalanceReturnsAccountBalance(t *testing.T) {
	backend, pub, _ := newBackend(t)
	router := NewRouter(backend)

	req := httptest.NewRequest(http.MethodGet, "/balance/"+pub, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var bal blockchain.Balance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	require.Equal(t, params.InitialReward, bal.Confirmed)
}

func TestHandleChainHeightReturnsTipIndex(t *testing.T) {
	backend, _, _ := newBackend(t)
	router := NewRouter(backend)

	req := httptest.NewRequest(http.MethodGet, "/chain/height", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]uint64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, uint64(1), out["height"])
}

func TestHandleTxStatusReturns404ForUnknownID(t *testing.T) {
	backend, _, _ := newBackend(t)
	router := NewRouter(backend)

	req := httptest.NewRequest(http.MethodGet, "/tx/doesnotexist/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMempoolReturnsCurrentTransactions(t *testing.T) {
	alice, alicePriv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	bob, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	chain := blockchain.New(1)
	mp := mempool.New(chain)
	id, err := crypto.RandomHex(32)
	require.NoError(t, err)
	cb := types.Transaction{ID: id, Recipient: alice, Amount: params.InitialReward, Timestamp: 1, IsCoinbase: true}
	require.NoError(t, cb.Sign(alicePriv))
	_, err = chain.CreateBlock([]types.Transaction{cb}, alice, params.InitialReward)
	require.NoError(t, err)

	txID, err := crypto.RandomHex(32)
	require.NoError(t, err)
	sender := alice
	tx := types.Transaction{ID: txID, Sender: &sender, Recipient: bob, Amount: 1, Timestamp: time.Now().UnixNano() / int64(time.Millisecond)}
	require.NoError(t, tx.Sign(alicePriv))
	require.NoError(t, mp.AddTransaction(tx))

	backend := &NodeBackend{Chain: chain, Mempool: mp}
	router := NewRouter(backend)

	req := httptest.NewRequest(http.MethodGet, "/mempool", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var txs []types.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 1)
	require.Equal(t, txID, txs[0].ID)
}
