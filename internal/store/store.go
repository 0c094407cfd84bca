// Package store defines the record store used by every collection of the rental API.
//
// A store holds a fixed set of named collections. Each collection is a flat list of JSON objects (records)
// identified by sequential decimal ids. All access happens inside transactions: View for reads, Update for
// writes. Update calls are serialized per store, so read-check-write logic inside one Update callback (id
// allocation, uniqueness checks, availability flips) cannot race with another writer.
//
// Backends live in subpackages: jsonfile, sqlite, badger and postgres. NewMemory provides a volatile store
// for tests and tooling.
package store

import (
	"context"
)

// Tx is a view of the store inside a transaction. Records returned by Tx are copies; mutate them and write
// them back with Put.
type Tx interface {
	// List returns every record of the collection ordered by numeric id.
	List(collection string) ([]Record, error)

	// Get returns the record with the given id or ErrNotFound.
	Get(collection, id string) (Record, error)

	// Insert assigns the next id (max numeric id + 1, "1" for an empty collection), stores the record and
	// returns the stored copy. A client supplied id is overwritten.
	Insert(collection string, rec Record) (Record, error)

	// Put stores rec under rec.ID(), replacing any existing record with that id.
	Put(collection string, rec Record) error

	// Delete removes the record or returns ErrNotFound.
	Delete(collection, id string) error
}

// Store is a transactional record store.
type Store interface {
	// View runs fn in a read-only transaction. Write methods of the Tx return ErrReadOnly.
	View(ctx context.Context, fn func(Tx) error) error

	// Update runs fn in a read-write transaction. Changes are committed only when fn returns nil.
	Update(ctx context.Context, fn func(Tx) error) error

	// Collections returns the collection names the store was opened with.
	Collections() []string

	// Close releases the backend.
	Close() error
}

// Reloader is implemented by stores whose content can change outside of Update, such as a JSON file edited
// by hand. Subscribers are called after each reload.
type Reloader interface {
	OnReload(fn func())
}

// HasCollection reports whether s was opened with the named collection.
func HasCollection(s Store, name string) bool {
	for _, c := range s.Collections() {
		if c == name {
			return true
		}
	}
	return false
}
