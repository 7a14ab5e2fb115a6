package storage

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	goleveldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// OpenFileLimit mirrors the teacher's leveldb_database.go tunable of the
// same name.
var OpenFileLimit = 64

type levelDBStore struct {
	path string
	db   *leveldb.DB
}

func ldbOptions(cacheSizeMB, numHandles int) *opt.Options {
	if cacheSizeMB < 16 {
		cacheSizeMB = 16
	}
	if numHandles < 16 {
		numHandles = 16
	}
	return &opt.Options{
		OpenFilesCacheCapacity: numHandles,
		BlockCacheCapacity:     cacheSizeMB / 2 * opt.MiB,
		WriteBuffer:            cacheSizeMB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}
}

// NewLevelDBStore opens (creating if absent) a LevelDB-backed Store at
// path, recovering from a corrupted database file the same way the
// teacher's NewLDBDatabase does.
func NewLevelDBStore(path string) (Store, error) {
	db, err := leveldb.OpenFile(path, ldbOptions(16, OpenFileLimit))
	if _, corrupted := err.(*goleveldberrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "storage: opening leveldb store at %s", path)
	}
	logger.Info("opened leveldb snapshot store", "path", path)
	return &levelDBStore{path: path, db: db}, nil
}

func (s *levelDBStore) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *levelDBStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *levelDBStore) Has(key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

func (s *levelDBStore) Close() error {
	return s.db.Close()
}
