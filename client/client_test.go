package client

import (
	"testing"
	"time"

	"github.com/ledgerd/ledgerd/accounts"
	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/mempool"
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/crypto"
	"github.com/ledgerd/ledgerd/node"
	"github.com/ledgerd/ledgerd/params"
	"github.com/stretchr/testify/require"
)

func newRelayNode(t *testing.T, minerPub, minerPriv string) *node.Manager {
	t.Helper()
	chain := blockchain.New(params.InitialDifficulty)
	mp := mempool.New(chain)
	m := node.NewManager("relay-1", "", params.RoleRelay, chain, mp)
	require.NoError(t, m.Listen("127.0.0.1:0"))
	t.Cleanup(func() { m.Close() })

	id, err := crypto.RandomHex(32)
	require.NoError(t, err)
	cb := types.Transaction{ID: id, Recipient: minerPub, Amount: params.InitialReward, Timestamp: 1, IsCoinbase: true}
	require.NoError(t, cb.Sign(minerPriv))
	_, err = chain.CreateBlock([]types.Transaction{cb}, minerPub, params.InitialReward)
	require.NoError(t, err)

	return m
}

func TestConnectSyncsChainAndCheckBalanceSeesFundedAccount(t *testing.T) {
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	relay := newRelayNode(t, pub, priv)

	identity, err := accounts.NewIdentity("miner", 1000)
	require.NoError(t, err)
	identity.PublicKey = pub
	identity.PrivateKey = priv

	c, err := Connect(identity, relay.ListenAddr())
	require.NoError(t, err)
	defer c.Close()

	bal := c.CheckBalance()
	require.Equal(t, params.InitialReward, bal.Confirmed)
}

func TestSubmitTransactionAndGetTransactionStatus(t *testing.T) {
	minerPub, minerPriv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	relay := newRelayNode(t, minerPub, minerPriv)

	senderIdentity, err := accounts.NewIdentity("sender", 1000)
	require.NoError(t, err)
	senderIdentity.PublicKey = minerPub
	senderIdentity.PrivateKey = minerPriv

	recipient, err := accounts.NewIdentity("recipient", 1000)
	require.NoError(t, err)

	c, err := Connect(senderIdentity, relay.ListenAddr())
	require.NoError(t, err)
	defer c.Close()

	tx, err := c.SubmitTransaction(recipient.PublicKey, 5, time.Now().UnixNano()/int64(time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return relay.Mempool().Has(tx.ID)
	}, time.Second, 10*time.Millisecond)

	status := c.GetTransactionStatus(tx.ID)
	require.Equal(t, accounts.StatusPending, status)
}
