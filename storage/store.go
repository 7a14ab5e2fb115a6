// Package storage is ledgerd's persistence collaborator (SPEC_FULL.md §4.7).
// spec.md explicitly disclaims chain-state recovery across restarts as a
// Non-goal; that stays true for the default run mode, where no snapshot
// store is opened. The pluggable LevelDB/Badger-backed stores exist purely
// so an operator can ask for a crash-diagnostic breadcrumb - the chain tip
// height and hash, rewritten every 10 seconds by cmd/ledgerd - never read
// back on startup.
package storage

import (
	"encoding/json"
	"sync"

	"github.com/ledgerd/ledgerd/log"
	"github.com/pkg/errors"
)

var logger = log.NewModuleLogger(log.Storage)

// ErrNotFound is returned by Get when key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// Store is the narrow persistence surface ledgerd needs: a flat
// key/value byte store. It is deliberately far smaller than the teacher's
// ~40-method DBManager (headers/receipts/tries/bloom-bits/...) since there
// is no trie, no receipts, and no per-block index beyond the tip snapshot
// described above.
type Store interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Close() error
}

// memStore is the default backend: nothing survives process exit.
type memStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore returns the default, process-lifetime-only Store.
func NewMemStore() Store {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[string(key)] = cp
	return nil
}

func (m *memStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *memStore) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *memStore) Close() error { return nil }

// tipSnapshotKey is the single key the chain-tip snapshot is written under.
const tipSnapshotKey = "chain/tip"

// TipSnapshot is the crash-diagnostic breadcrumb cmd/ledgerd persists on a
// 10-second ticker (SPEC_FULL.md §4.7) - never read back on startup.
type TipSnapshot struct {
	Height int64  `json:"height"`
	Hash   string `json:"hash"`
}

// WriteTipSnapshot overwrites the single tip-snapshot record in s.
func WriteTipSnapshot(s Store, snap TipSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "storage: encoding tip snapshot")
	}
	if err := s.Put([]byte(tipSnapshotKey), b); err != nil {
		return errors.Wrap(err, "storage: writing tip snapshot")
	}
	return nil
}

// ReadTipSnapshot reads back the last-written tip snapshot, purely for
// operator inspection (e.g. a CLI diagnostic command) - never used to
// resume chain state.
func ReadTipSnapshot(s Store) (TipSnapshot, error) {
	b, err := s.Get([]byte(tipSnapshotKey))
	if err != nil {
		return TipSnapshot{}, err
	}
	var snap TipSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return TipSnapshot{}, errors.Wrap(err, "storage: decoding tip snapshot")
	}
	return snap, nil
}
