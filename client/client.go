// Package client is the wallet-side façade over the raw p2p/node transport
// that the CLI commands of spec.md §6 connect-wallet, check-balance and
// send-transaction drive (view-mempool and show-keys do not go through
// it). It is grounded on the
// teacher's client.Client method-per-operation shape (one function per
// wallet action, a connection handle threaded through each) - rehomed from
// a JSON-RPC CallContext client to a direct node.Manager/accounts.Wallet
// pairing since this spec has no JSON-RPC layer.
package client

import (
	"github.com/ledgerd/ledgerd/accounts"
	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/mempool"
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/node"
	"github.com/ledgerd/ledgerd/params"
	"github.com/pkg/errors"
)

// Client is a single wallet's attachment to one node: a wallet-mode
// node.Manager (suppressed gossip, per spec.md §4.4) dialed into peerAddr,
// paired with the identity that signs outgoing transactions.
type Client struct {
	wallet  *accounts.Wallet
	manager *node.Manager
	peerID  string
}

// Connect dials addr as a wallet connection and pulls a fresh copy of the
// chain before returning, so CheckBalance/GetTransactionStatus see
// up-to-date state (spec.md §4.6's 10s chain-sync timeout). The local
// chain copy is built at params.InitialDifficulty, so a chain served by a
// node running at any other difficulty fails genesis validation and is not
// adopted.
func Connect(identity *accounts.Identity, addr string) (*Client, error) {
	chain := blockchain.New(params.InitialDifficulty)
	mp := mempool.New(chain)
	manager := node.NewManager(identity.ID, params.WalletListenSentinel, params.RoleWallet, chain, mp)

	peer, err := manager.Dial(addr)
	if err != nil {
		return nil, errors.Wrap(err, "client: connecting to node")
	}

	if err := manager.RequestChainSync(peer.NodeID, params.ChainSyncTimeout); err != nil {
		return nil, errors.Wrap(err, "client: syncing chain")
	}

	return &Client{
		wallet:  accounts.NewWallet(identity),
		manager: manager,
		peerID:  peer.NodeID,
	}, nil
}

// Close tears down the wallet's connection to its node.
func (c *Client) Close() error {
	return c.manager.Close()
}

// CheckBalance returns the wallet's own identity's current balance, as
// known by the attached node's synced chain copy.
func (c *Client) CheckBalance() blockchain.Balance {
	return c.manager.Chain().GetAccountBalance(c.wallet.Identity().PublicKey)
}

// CreateTransaction builds (but does not submit) a signed transfer.
func (c *Client) CreateTransaction(recipientPublicKeyPEM string, amount float64, nowMs int64) (types.Transaction, error) {
	return c.wallet.CreateTransaction(recipientPublicKeyPEM, amount, nowMs)
}

// SubmitTransaction builds, signs, and gossips a transfer via the attached
// node (spec.md §4.6).
func (c *Client) SubmitTransaction(recipientPublicKeyPEM string, amount float64, nowMs int64) (types.Transaction, error) {
	return c.wallet.SubmitTransaction(c.manager, recipientPublicKeyPEM, amount, nowMs)
}

// GetTransactionStatus resolves txID's tri-state status (spec.md §4.6),
// consulting the wallet's local mempool and then the attached node's
// mempool (via a MEMPOOL_REQUEST) before concluding REJECTED.
func (c *Client) GetTransactionStatus(txID string) accounts.TransactionStatus {
	return accounts.GetTransactionStatus(c.manager.Chain(), c.manager.Mempool().Has, c.manager, c.peerID, txID, params.ChainSyncTimeout)
}

// ViewMempool returns the attached node's current mempool contents, via a
// MEMPOOL_REQUEST/MEMPOOL_RESPONSE round trip.
func (c *Client) ViewMempool() ([]types.Transaction, error) {
	return c.manager.QueryMempool(c.peerID, params.ChainSyncTimeout)
}

// ShowKeys returns the wallet's own identity (public and private key PEM).
func (c *Client) ShowKeys() *accounts.Identity {
	return c.wallet.Identity()
}
