package api

import (
	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/mempool"
	"github.com/ledgerd/ledgerd/blockchain/types"
)

// NodeBackend adapts a node's own Blockchain/Mempool to the Backend
// interface the HTTP handlers consume.
type NodeBackend struct {
	Chain   *blockchain.Blockchain
	Mempool *mempool.Mempool
}

func (n *NodeBackend) GetAccountBalance(pubkeyPEM string) blockchain.Balance {
	return n.Chain.GetAccountBalance(pubkeyPEM)
}

func (n *NodeBackend) GetTransactionHistory(pubkeyPEM string) []types.Transaction {
	return n.Chain.GetTransactionHistory(pubkeyPEM)
}

func (n *NodeBackend) GetTransactionConfirmation(txID string) (blockchain.Confirmation, bool) {
	return n.Chain.GetTransactionConfirmation(txID)
}

func (n *NodeBackend) MempoolTransactions() []types.Transaction {
	return n.Mempool.GetTransactions(0)
}

func (n *NodeBackend) ChainHeight() uint64 {
	return n.Chain.Tip().Index
}
