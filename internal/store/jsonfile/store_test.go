package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alquilibros/alquilibros-server/internal/logger"
	"github.com/alquilibros/alquilibros-server/internal/store"
	"github.com/alquilibros/alquilibros-server/internal/store/storetest"
)

func openTemp(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db.json"), storetest.Collections, logger.Discard(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTemp(t, Options{})
	})
}

func TestOpen_CreatesDocument(t *testing.T) {
	s := openTemp(t, Options{})

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	doc, err := store.UnmarshalDocument(data)
	require.NoError(t, err)
	for _, name := range storetest.Collections {
		assert.Contains(t, doc, name)
	}
}

func TestOpen_LoadsJSONServerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	content := `{
  "libros": [{"id": 2, "titulo": "Ficciones"}, {"id": "1", "titulo": "Rayuela"}],
  "usuarios": [],
  "profile": [{"name": "typicode"}]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Open(path, storetest.Collections, logger.Discard(), Options{})
	require.NoError(t, err)
	defer s.Close()

	var libros []store.Record
	require.NoError(t, s.View(context.Background(), func(tx store.Tx) error {
		var err error
		libros, err = tx.List("libros")
		return err
	}))
	require.Len(t, libros, 2)
	assert.Equal(t, "1", libros[0].ID())
	assert.Equal(t, "2", libros[1].ID())

	require.NoError(t, s.Update(context.Background(), func(tx store.Tx) error {
		_, err := tx.Insert("alquileres", store.Record{"estado": true})
		return err
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "typicode", "unknown top-level keys survive a rewrite")
}

func TestOpen_RejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"libros": {}}`), 0o644))

	_, err := Open(path, storetest.Collections, logger.Discard(), Options{})
	assert.Error(t, err)
}

func TestUpdate_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s, err := Open(path, storetest.Collections, logger.Discard(), Options{})
	require.NoError(t, err)

	require.NoError(t, s.Update(context.Background(), func(tx store.Tx) error {
		_, err := tx.Insert("libros", store.Record{"titulo": "Rayuela"})
		return err
	}))
	require.NoError(t, s.Close())

	reopened, err := Open(path, storetest.Collections, logger.Discard(), Options{})
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.View(context.Background(), func(tx store.Tx) error {
		rec, err := tx.Get("libros", "1")
		if err != nil {
			return err
		}
		assert.Equal(t, "Rayuela", rec["titulo"])
		return nil
	}))
}

func TestWatch_ReloadsExternalEdits(t *testing.T) {
	s := openTemp(t, Options{Watch: true, Debounce: 20 * time.Millisecond})

	var reloads atomic.Int32
	s.OnReload(func() { reloads.Add(1) })

	// The store's own write must not trigger a reload.
	require.NoError(t, s.Update(context.Background(), func(tx store.Tx) error {
		_, err := tx.Insert("libros", store.Record{"titulo": "Rayuela"})
		return err
	}))

	edited := `{"usuarios": [], "libros": [{"id": "1", "titulo": "Rayuela"}, {"id": "2", "titulo": "Ficciones"}], "alquileres": []}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(edited), 0o644))

	require.Eventually(t, func() bool {
		var n int
		_ = s.View(context.Background(), func(tx store.Tx) error {
			recs, err := tx.List("libros")
			n = len(recs)
			return err
		})
		return n == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return reloads.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWatch_KeepsStateOnInvalidEdit(t *testing.T) {
	s := openTemp(t, Options{Watch: true, Debounce: 10 * time.Millisecond})

	require.NoError(t, s.Update(context.Background(), func(tx store.Tx) error {
		_, err := tx.Insert("libros", store.Record{"titulo": "Rayuela"})
		return err
	}))
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"libros": [`), 0o644))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, s.View(context.Background(), func(tx store.Tx) error {
		_, err := tx.Get("libros", "1")
		return err
	}))
}
