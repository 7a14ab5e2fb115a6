package storage

import (
	"os"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
)

type badgerStore struct {
	path string
	db   *badger.DB
}

func badgerOptions(dir string) badger.Options {
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	return opts
}

// NewBadgerStore opens (creating if absent) a Badger-backed Store at path,
// mirroring the teacher's NewBadgerDB directory-creation behavior.
func NewBadgerStore(path string) (Store, error) {
	if fi, err := os.Stat(path); err == nil {
		if !fi.IsDir() {
			return nil, errors.Errorf("storage: %s is not a directory", path)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, errors.Wrapf(err, "storage: creating badger directory %s", path)
		}
	} else {
		return nil, errors.Wrapf(err, "storage: checking badger directory %s", path)
	}

	db, err := badger.Open(badgerOptions(path))
	if err != nil {
		return nil, errors.Wrapf(err, "storage: opening badger store at %s", path)
	}
	logger.Info("opened badger snapshot store", "path", path)
	return &badgerStore{path: path, db: db}, nil
}

func (s *badgerStore) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *badgerStore) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			out = append([]byte(nil), v...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *badgerStore) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
