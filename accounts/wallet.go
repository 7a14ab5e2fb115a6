package accounts

import (
	"time"

	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/crypto"
	"github.com/pkg/errors"
)

// TransactionStatus is the tri-state result of get_transaction_status
// (spec.md §4.6).
type TransactionStatus string

const (
	StatusConfirmed TransactionStatus = "CONFIRMED"
	StatusPending   TransactionStatus = "PENDING"
	StatusRejected  TransactionStatus = "REJECTED"
)

// transactionSubmitter is the narrow slice of node.Manager the wallet
// collaborator needs: submit a transaction and query a peer's mempool.
// Kept as an interface here (rather than importing node directly) since
// node already imports blockchain/mempool and blockchain/types - this
// avoids a needless accounts<->node coupling beyond what's used.
type transactionSubmitter interface {
	SubmitTransaction(tx types.Transaction) error
	QueryMempool(nodeID string, timeout time.Duration) ([]types.Transaction, error)
}

// chainReader is the chain-side subset the wallet needs for status checks.
type chainReader interface {
	GetTransactionConfirmation(txID string) (blockchain.Confirmation, bool)
}

// Wallet is the collaborator of spec.md §4.6: it owns an Identity and
// builds/submits transactions signed by it.
type Wallet struct {
	identity *Identity
}

// NewWallet wraps identity as a wallet collaborator.
func NewWallet(identity *Identity) *Wallet {
	return &Wallet{identity: identity}
}

// Identity returns the wallet's underlying identity.
func (w *Wallet) Identity() *Identity {
	return w.identity
}

// CreateTransaction constructs a Transaction to recipient for amount,
// signed by the wallet's identity (spec.md §4.6).
func (w *Wallet) CreateTransaction(recipientPublicKeyPEM string, amount float64, nowMs int64) (types.Transaction, error) {
	id, err := crypto.RandomHex(32)
	if err != nil {
		return types.Transaction{}, errors.Wrap(err, "accounts: generating transaction id")
	}
	sender := w.identity.PublicKey
	tx := types.Transaction{
		ID:        id,
		Sender:    &sender,
		Recipient: recipientPublicKeyPEM,
		Amount:    amount,
		Timestamp: nowMs,
	}
	if err := tx.Sign(w.identity.PrivateKey); err != nil {
		return types.Transaction{}, err
	}
	return tx, nil
}

// SubmitTransaction constructs and broadcasts a transfer via manager.
func (w *Wallet) SubmitTransaction(manager transactionSubmitter, recipientPublicKeyPEM string, amount float64, nowMs int64) (types.Transaction, error) {
	tx, err := w.CreateTransaction(recipientPublicKeyPEM, amount, nowMs)
	if err != nil {
		return types.Transaction{}, err
	}
	if err := manager.SubmitTransaction(tx); err != nil {
		return types.Transaction{}, err
	}
	return tx, nil
}

// GetTransactionStatus implements spec.md §4.6's tri-state lookup: CONFIRMED
// if present in chain confirmations, PENDING if present in own or a peer's
// mempool, REJECTED otherwise.
func GetTransactionStatus(chain chainReader, ownMempoolHas func(txID string) bool, manager transactionSubmitter, peerNodeID, txID string, queryTimeout time.Duration) TransactionStatus {
	if _, ok := chain.GetTransactionConfirmation(txID); ok {
		return StatusConfirmed
	}
	if ownMempoolHas != nil && ownMempoolHas(txID) {
		return StatusPending
	}
	if manager != nil && peerNodeID != "" {
		txs, err := manager.QueryMempool(peerNodeID, queryTimeout)
		if err == nil {
			for _, tx := range txs {
				if tx.ID == txID {
					return StatusPending
				}
			}
		}
	}
	return StatusRejected
}
