// Package badgerstore is a store.Store backed by an embedded Badger key/value database.
//
// Records are stored as JSON under "rec/<collection>/<id padded to 20 digits>", so a prefix scan returns a
// collection in id order and a reverse seek finds the highest id.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/alquilibros/alquilibros-server/internal/store"
)

const keyPrefix = "rec/"

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	names  []string

	// Badger detects write conflicts optimistically; serializing writers avoids ErrConflict on the id
	// allocation scan.
	writeMu sync.Mutex
}

// Options configures Open.
type Options struct {
	// InMemory keeps everything in RAM, for tests.
	InMemory bool
}

// Open opens or creates the database directory at path.
func Open(path string, collections []string, logger *slog.Logger, o Options) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger.Debug("badger store opened", "path", path, "in_memory", o.InMemory)

	return &Store{db: db, logger: logger, names: slices.Clone(collections)}, nil
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&tx{txn: txn, names: s.names})
	})
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		return fn(&tx{txn: txn, names: s.names, writable: true})
	})
}

// Collections implements store.Store.
func (s *Store) Collections() []string {
	return slices.Clone(s.names)
}

// Close closes the database.
func (s *Store) Close() error {
	s.logger.Debug("closing badger store")
	return s.db.Close()
}

func collectionPrefix(collection string) []byte {
	return []byte(keyPrefix + collection + "/")
}

func recordKey(collection string, id int64) []byte {
	return fmt.Appendf(nil, "%s%s/%020d", keyPrefix, collection, id)
}

type tx struct {
	txn      *badger.Txn
	names    []string
	writable bool
}

func (t *tx) check(collection string, write bool) error {
	if !slices.Contains(t.names, collection) {
		return store.UnknownCollectionError(collection)
	}
	if write && !t.writable {
		return store.ErrReadOnly
	}
	return nil
}

func decodeItem(item *badger.Item) (store.Record, error) {
	var rec store.Record
	err := item.Value(func(val []byte) error {
		var err error
		rec, err = store.Unmarshal(val)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", item.Key(), err)
	}
	return rec, nil
}

func (t *tx) List(collection string) ([]store.Record, error) {
	if err := t.check(collection, false); err != nil {
		return nil, err
	}

	prefix := collectionPrefix(collection)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var out []store.Record
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		rec, err := decodeItem(it.Item())
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t *tx) Get(collection, id string) (store.Record, error) {
	if err := t.check(collection, false); err != nil {
		return nil, err
	}
	n, err := store.ParseID(id)
	if err != nil {
		return nil, store.NotFoundError(collection, id)
	}

	item, err := t.txn.Get(recordKey(collection, n))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.NotFoundError(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeItem(item)
}

// maxID returns the highest id stored in the collection, 0 when empty.
func (t *tx) maxID(collection string) (int64, error) {
	prefix := collectionPrefix(collection)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	// In reverse mode Seek lands on the largest key <= the seek key.
	seek := append(slices.Clone(prefix), 0xFF)
	it.Seek(seek)
	if !it.ValidForPrefix(prefix) {
		return 0, nil
	}
	key := it.Item().Key()
	n, err := strconv.ParseInt(string(key[len(prefix):]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed key %q: %w", key, err)
	}
	return n, nil
}

func (t *tx) Insert(collection string, rec store.Record) (store.Record, error) {
	if err := t.check(collection, true); err != nil {
		return nil, err
	}
	last, err := t.maxID(collection)
	if err != nil {
		return nil, err
	}

	stored := rec.Clone()
	if stored == nil {
		stored = store.Record{}
	}
	stored[store.IDField] = store.FormatID(last + 1)
	if err := t.write(collection, last+1, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func (t *tx) Put(collection string, rec store.Record) error {
	n, err := store.ParseID(rec.ID())
	if err != nil {
		return err
	}
	if err := t.check(collection, true); err != nil {
		return err
	}
	stored := rec.Clone()
	stored[store.IDField] = rec.ID()
	return t.write(collection, n, stored)
}

func (t *tx) write(collection string, id int64, rec store.Record) error {
	body, err := store.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", collection, err)
	}
	if err := t.txn.Set(recordKey(collection, id), body); err != nil {
		return fmt.Errorf("write %s/%d: %w", collection, id, err)
	}
	return nil
}

func (t *tx) Delete(collection, id string) error {
	if err := t.check(collection, true); err != nil {
		return err
	}
	n, err := store.ParseID(id)
	if err != nil {
		return store.NotFoundError(collection, id)
	}

	key := recordKey(collection, n)
	if _, err := t.txn.Get(key); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.NotFoundError(collection, id)
		}
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if err := t.txn.Delete(key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}
