// Package storetest holds the behaviour every store backend must share. Backend packages call Run from their
// own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alquilibros/alquilibros-server/internal/store"
)

// Collections the factory must open the store with.
var Collections = []string{"usuarios", "libros", "alquileres"}

// Factory opens a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the shared backend suite.
func Run(t *testing.T, open Factory) {
	t.Helper()

	t.Run("InsertAssignsSequentialIDs", func(t *testing.T) { testInsertSequentialIDs(t, open(t)) })
	t.Run("GetReturnsCopy", func(t *testing.T) { testGetReturnsCopy(t, open(t)) })
	t.Run("PutReplacesAndUpserts", func(t *testing.T) { testPut(t, open(t)) })
	t.Run("DeleteAndGapReuse", func(t *testing.T) { testDeleteGapReuse(t, open(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, open(t)) })
	t.Run("NonCanonicalIDNotFound", func(t *testing.T) { testNonCanonicalID(t, open(t)) })
	t.Run("UnknownCollection", func(t *testing.T) { testUnknownCollection(t, open(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("ViewIsReadOnly", func(t *testing.T) { testViewReadOnly(t, open(t)) })
	t.Run("ConcurrentInsertsGetDistinctIDs", func(t *testing.T) { testConcurrentInserts(t, open(t)) })
	t.Run("ListOrderedByNumericID", func(t *testing.T) { testListOrder(t, open(t)) })
}

func insert(t *testing.T, s store.Store, collection string, rec store.Record) store.Record {
	t.Helper()
	var out store.Record
	err := s.Update(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = tx.Insert(collection, rec)
		return err
	})
	require.NoError(t, err)
	return out
}

func list(t *testing.T, s store.Store, collection string) []store.Record {
	t.Helper()
	var out []store.Record
	err := s.View(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = tx.List(collection)
		return err
	})
	require.NoError(t, err)
	return out
}

func testInsertSequentialIDs(t *testing.T, s store.Store) {
	first := insert(t, s, "libros", store.Record{"titulo": "Rayuela", "id": "99"})
	second := insert(t, s, "libros", store.Record{"titulo": "Ficciones"})
	other := insert(t, s, "usuarios", store.Record{"correo": "a@x.com"})

	assert.Equal(t, "1", first.ID(), "client supplied id is ignored")
	assert.Equal(t, "2", second.ID())
	assert.Equal(t, "1", other.ID(), "ids are per collection")

	records := list(t, s, "libros")
	require.Len(t, records, 2)
	assert.Equal(t, "Rayuela", records[0]["titulo"])
}

func testGetReturnsCopy(t *testing.T, s store.Store) {
	rec := insert(t, s, "alquileres", store.Record{"librosIds": []any{1.0, 2.0}, "estado": true})

	err := s.View(context.Background(), func(tx store.Tx) error {
		got, err := tx.Get("alquileres", rec.ID())
		if err != nil {
			return err
		}
		got["estado"] = false
		got["librosIds"].([]any)[0] = 42.0
		return nil
	})
	require.NoError(t, err)

	records := list(t, s, "alquileres")
	require.Len(t, records, 1)
	assert.Equal(t, true, records[0]["estado"])
	assert.Equal(t, []any{1.0, 2.0}, records[0]["librosIds"])
}

func testPut(t *testing.T, s store.Store) {
	rec := insert(t, s, "libros", store.Record{"titulo": "Rayuela", "disponible": true})

	err := s.Update(context.Background(), func(tx store.Tx) error {
		rec["disponible"] = false
		if err := tx.Put("libros", rec); err != nil {
			return err
		}
		return tx.Put("libros", store.Record{"id": "10", "titulo": "Importado"})
	})
	require.NoError(t, err)

	records := list(t, s, "libros")
	require.Len(t, records, 2)
	assert.Equal(t, false, records[0]["disponible"])
	assert.Equal(t, "10", records[1].ID())

	next := insert(t, s, "libros", store.Record{"titulo": "Nuevo"})
	assert.Equal(t, "11", next.ID())

	err = s.Update(context.Background(), func(tx store.Tx) error {
		return tx.Put("libros", store.Record{"id": "abc"})
	})
	assert.ErrorIs(t, err, store.ErrInvalidID)
}

func testDeleteGapReuse(t *testing.T, s store.Store) {
	insert(t, s, "libros", store.Record{"titulo": "a"})
	insert(t, s, "libros", store.Record{"titulo": "b"})
	third := insert(t, s, "libros", store.Record{"titulo": "c"})

	err := s.Update(context.Background(), func(tx store.Tx) error {
		return tx.Delete("libros", third.ID())
	})
	require.NoError(t, err)

	again := insert(t, s, "libros", store.Record{"titulo": "d"})
	assert.Equal(t, "3", again.ID(), "the id of a deleted maximum is handed out again")
}

func testNotFound(t *testing.T, s store.Store) {
	err := s.View(context.Background(), func(tx store.Tx) error {
		_, err := tx.Get("libros", "7")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Update(context.Background(), func(tx store.Tx) error {
		return tx.Delete("libros", "7")
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testNonCanonicalID(t *testing.T, s store.Store) {
	insert(t, s, "libros", store.Record{"titulo": "a"})

	for _, id := range []string{"01", "+1", "1.0"} {
		err := s.View(context.Background(), func(tx store.Tx) error {
			_, err := tx.Get("libros", id)
			return err
		})
		assert.ErrorIs(t, err, store.ErrNotFound, id)

		err = s.Update(context.Background(), func(tx store.Tx) error {
			return tx.Delete("libros", id)
		})
		assert.ErrorIs(t, err, store.ErrNotFound, id)
	}
	assert.Len(t, list(t, s, "libros"), 1)
}

func testUnknownCollection(t *testing.T, s store.Store) {
	err := s.View(context.Background(), func(tx store.Tx) error {
		_, err := tx.List("auth")
		return err
	})
	assert.ErrorIs(t, err, store.ErrUnknownCollection)
	assert.ElementsMatch(t, Collections, s.Collections())
}

func testRollback(t *testing.T, s store.Store) {
	insert(t, s, "libros", store.Record{"titulo": "a", "disponible": true})

	boom := errors.New("boom")
	err := s.Update(context.Background(), func(tx store.Tx) error {
		if _, err := tx.Insert("alquileres", store.Record{"librosIds": []any{1.0}}); err != nil {
			return err
		}
		book, err := tx.Get("libros", "1")
		if err != nil {
			return err
		}
		book["disponible"] = false
		if err := tx.Put("libros", book); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, list(t, s, "alquileres"))
	assert.Equal(t, true, list(t, s, "libros")[0]["disponible"])
}

func testViewReadOnly(t *testing.T, s store.Store) {
	err := s.View(context.Background(), func(tx store.Tx) error {
		_, err := tx.Insert("libros", store.Record{"titulo": "x"})
		return err
	})
	assert.ErrorIs(t, err, store.ErrReadOnly)
}

func testConcurrentInserts(t *testing.T, s store.Store) {
	const writers = 8

	var wg sync.WaitGroup
	ids := make(chan string, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(context.Background(), func(tx store.Tx) error {
				rec, err := tx.Insert("alquileres", store.Record{"estado": true})
				if err == nil {
					ids <- rec.ID()
				}
				return err
			})
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %s allocated twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, writers)
}

func testListOrder(t *testing.T, s store.Store) {
	err := s.Update(context.Background(), func(tx store.Tx) error {
		for _, id := range []string{"10", "2", "1"} {
			if err := tx.Put("usuarios", store.Record{"id": id}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	records := list(t, s, "usuarios")
	got := make([]string, len(records))
	for i, r := range records {
		got[i] = r.ID()
	}
	assert.Equal(t, []string{"1", "2", "10"}, got)
}
