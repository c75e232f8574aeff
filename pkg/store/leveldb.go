package store

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelStore is a goleveldb-backed KV implementation, used for the event
// log, resource head table, and snapshot store in any non-test deployment.
// leveldb's own WAL gives us crash-consistent writes without a separate log.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (creating if absent) a leveldb database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &LevelStore{db: db}, nil
}

func (s *LevelStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *LevelStore) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *LevelStore) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

func (s *LevelStore) Iterator(prefix []byte) Iterator {
	var rng *util.Range
	if len(prefix) > 0 {
		rng = util.BytesPrefix(prefix)
	}
	return &levelIterator{it: s.db.NewIterator(rng, nil)}
}

func (s *LevelStore) NewBatch() Batch {
	return &levelBatch{b: new(leveldb.Batch)}
}

func (s *LevelStore) WriteBatch(b Batch) error {
	lb, ok := b.(*levelBatch)
	if !ok {
		return fmt.Errorf("store: batch not created by this store")
	}
	return s.db.Write(lb.b, nil)
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}

type levelIterator struct {
	it iterator.Iterator
}

func (i *levelIterator) Next() bool      { return i.it.Next() }
func (i *levelIterator) Key() []byte     { return i.it.Key() }
func (i *levelIterator) Value() []byte   { return i.it.Value() }
func (i *levelIterator) Error() error    { return i.it.Error() }
func (i *levelIterator) Release()        { i.it.Release() }

type levelBatch struct {
	b *leveldb.Batch
}

func (b *levelBatch) Set(key, value []byte) { b.b.Put(key, value) }
func (b *levelBatch) Delete(key []byte)     { b.b.Delete(key) }
