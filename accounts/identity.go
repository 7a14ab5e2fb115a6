// Package accounts implements the identity key pair, its encrypted on-disk
// store, and the wallet-side collaborator of spec.md §4.6. The core
// specification treats identity storage as an external collaborator
// (spec.md §1 Out of scope); this package is the concrete implementation
// SPEC_FULL.md wires into the CLI surface.
package accounts

import (
	"github.com/ledgerd/ledgerd/crypto"
	"github.com/pkg/errors"
)

// Identity is a key pair plus metadata (spec.md §3).
type Identity struct {
	ID         string `json:"id"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	Name       string `json:"name,omitempty"`
	CreatedAt  int64  `json:"created_at"`
	LastUsed   int64  `json:"last_used,omitempty"`
}

// NewIdentity generates a fresh RSA-2048 key pair and wraps it as an
// Identity with a random 128-bit hex id.
func NewIdentity(name string, nowMs int64) (*Identity, error) {
	id, err := crypto.RandomHex(16)
	if err != nil {
		return nil, errors.Wrap(err, "accounts: generating identity id")
	}
	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "accounts: generating key pair")
	}
	return &Identity{
		ID:         id,
		PublicKey:  pub,
		PrivateKey: priv,
		Name:       name,
		CreatedAt:  nowMs,
	}, nil
}

// Touch records a "used" timestamp, per spec.md §3 ("mutated only by 'use'
// updates").
func (i *Identity) Touch(nowMs int64) {
	i.LastUsed = nowMs
}
