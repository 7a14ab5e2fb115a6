package types

import (
	"encoding/json"
	"strings"

	"github.com/ledgerd/ledgerd/crypto"
	"github.com/ledgerd/ledgerd/params"
	"github.com/pkg/errors"
)

// Block is one entry in the hash-linked chain.
type Block struct {
	Index        uint64        `json:"index"`
	PreviousHash string        `json:"previous_hash"`
	Timestamp    int64         `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`
	Miner        string        `json:"miner"`
	Reward       float64       `json:"reward"`
}

// canonicalBlock is the fixed-field-order, hash-excluded shape that is
// SHA-256 hashed to produce Block.Hash (spec.md §3).
type canonicalBlock struct {
	Index        uint64        `json:"index"`
	PreviousHash string        `json:"previous_hash"`
	Timestamp    int64         `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Nonce        uint64        `json:"nonce"`
	Miner        string        `json:"miner"`
	Reward       float64       `json:"reward"`
}

// CanonicalBytes returns the canonical JSON encoding hashed to produce this
// block's Hash field.
func (b *Block) CanonicalBytes() ([]byte, error) {
	c := canonicalBlock{
		Index:        b.Index,
		PreviousHash: b.PreviousHash,
		Timestamp:    b.Timestamp,
		Transactions: b.Transactions,
		Nonce:        b.Nonce,
		Miner:        b.Miner,
		Reward:       b.Reward,
	}
	if c.Transactions == nil {
		c.Transactions = []Transaction{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "types: encoding canonical block")
	}
	return data, nil
}

// ComputeHash recomputes this block's hash from its canonical encoding,
// without mutating Hash.
func (b *Block) ComputeHash() (string, error) {
	data, err := b.CanonicalBytes()
	if err != nil {
		return "", err
	}
	return crypto.Sha256Hex(data), nil
}

// SatisfiesDifficulty reports whether hash begins with difficulty leading
// hex zero nibbles.
func SatisfiesDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(hash) < difficulty {
		return false
	}
	return strings.Count(hash[:difficulty], "0") == difficulty
}

// Coinbase returns the block's coinbase transaction, if present. Every
// valid block has exactly one, as the first transaction.
func (b *Block) Coinbase() (*Transaction, bool) {
	if len(b.Transactions) == 0 {
		return nil, false
	}
	if !b.Transactions[0].IsCoinbase {
		return nil, false
	}
	return &b.Transactions[0], true
}

// Genesis builds the deterministic index-0 block, bit-exact per spec.md §6:
// previous_hash = "0"*D + "1" + "0"*(63-D).
func Genesis(difficulty int) Block {
	prevHash := strings.Repeat("0", difficulty) + "1" + strings.Repeat("0", 63-difficulty)
	b := Block{
		Index:        0,
		PreviousHash: prevHash,
		Timestamp:    params.GenesisTimestampMs,
		Transactions: []Transaction{},
		Nonce:        0,
		Miner:        params.GenesisMiner,
		Reward:       0,
	}
	hash, err := b.ComputeHash()
	if err != nil {
		// Genesis construction is pure and deterministic; an error here
		// indicates a broken canonical encoder, not bad input.
		panic(errors.Wrap(err, "types: computing genesis hash"))
	}
	b.Hash = hash
	return b
}
