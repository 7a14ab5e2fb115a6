// Package types defines the wire-stable data model: Transaction and Block,
// plus their canonical JSON encodings for hashing and signing (spec.md §3).
package types

import (
	"encoding/json"

	"github.com/ledgerd/ledgerd/common"
	"github.com/ledgerd/ledgerd/crypto"
	"github.com/pkg/errors"
)

// Transaction is a single signed value transfer, or the coinbase minting
// entry of a block.
type Transaction struct {
	ID         string  `json:"id"`
	Sender     *string `json:"sender"`
	Recipient  string  `json:"recipient"`
	Amount     float64 `json:"amount"`
	Timestamp  int64   `json:"timestamp"`
	Signature  string  `json:"signature,omitempty"`
	IsCoinbase bool    `json:"is_coinbase"`
}

// canonicalTx is the fixed-field-order, signature-excluded shape that gets
// hashed and signed (spec.md §3: {id, sender, recipient, amount, timestamp,
// is_coinbase}).
type canonicalTx struct {
	ID         string  `json:"id"`
	Sender     *string `json:"sender"`
	Recipient  string  `json:"recipient"`
	Amount     float64 `json:"amount"`
	Timestamp  int64   `json:"timestamp"`
	IsCoinbase bool    `json:"is_coinbase"`
}

// CanonicalBytes returns the canonical JSON encoding used for hashing and
// signing this transaction. Field order and omission of signature are
// fixed by spec.md §3 and must never drift between encode and verify.
func (t *Transaction) CanonicalBytes() ([]byte, error) {
	c := canonicalTx{
		ID:         t.ID,
		Sender:     t.Sender,
		Recipient:  t.Recipient,
		Amount:     t.Amount,
		Timestamp:  t.Timestamp,
		IsCoinbase: t.IsCoinbase,
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "types: encoding canonical transaction")
	}
	return b, nil
}

// SigningKey returns the PEM public key a transaction's signature must
// verify against: the recipient's for coinbase transactions, the sender's
// otherwise (spec.md §3).
func (t *Transaction) SigningKey() (string, error) {
	if t.IsCoinbase {
		if t.Recipient == "" {
			return "", errors.New("types: coinbase transaction has empty recipient")
		}
		return t.Recipient, nil
	}
	if t.Sender == nil || *t.Sender == "" {
		return "", errors.New("types: non-coinbase transaction has no sender")
	}
	return *t.Sender, nil
}

// Sign signs the transaction's canonical form with privateKeyPEM and sets
// Signature. The caller is responsible for passing the correct key
// (recipient's for coinbase, sender's otherwise).
func (t *Transaction) Sign(privateKeyPEM string) error {
	data, err := t.CanonicalBytes()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(data, privateKeyPEM)
	if err != nil {
		return err
	}
	t.Signature = sig
	return nil
}

// VerifySignature checks the transaction's signature against its signing
// key. Never panics on malformed transactions - the wire is adversarial.
func (t *Transaction) VerifySignature() bool {
	key, err := t.SigningKey()
	if err != nil {
		return false
	}
	data, err := t.CanonicalBytes()
	if err != nil {
		return false
	}
	return crypto.Verify(data, t.Signature, key)
}

// NormalizedSender returns the sender key normalized for map-key/equality
// use, or "" for coinbase transactions.
func (t *Transaction) NormalizedSender() string {
	if t.Sender == nil {
		return ""
	}
	return common.NormalizeKey(*t.Sender)
}

// NormalizedRecipient returns the recipient key normalized for
// map-key/equality use.
func (t *Transaction) NormalizedRecipient() string {
	return common.NormalizeKey(t.Recipient)
}

// InvolvesAddress reports whether normalizedAddr is the (normalized)
// sender or recipient of this transaction.
func (t *Transaction) InvolvesAddress(normalizedAddr string) bool {
	return t.NormalizedRecipient() == normalizedAddr || t.NormalizedSender() == normalizedAddr
}
