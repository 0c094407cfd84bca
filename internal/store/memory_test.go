package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alquilibros/alquilibros-server/internal/store"
	"github.com/alquilibros/alquilibros-server/internal/store/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return store.NewMemory(storetest.Collections...)
	})
}

func TestNextID(t *testing.T) {
	assert.Equal(t, "1", store.NextID(nil))
	assert.Equal(t, "8", store.NextID([]store.Record{{"id": "3"}, {"id": "7"}, {"id": "x"}}))
	assert.Equal(t, "5", store.NextID([]store.Record{{"id": 4.0}}))
}

func TestRecord_ID(t *testing.T) {
	assert.Equal(t, "12", store.Record{"id": "12"}.ID())
	assert.Equal(t, "12", store.Record{"id": 12.0}.ID())
	assert.Equal(t, "", store.Record{"id": 1.5}.ID())
	assert.Equal(t, "", store.Record{}.ID())
}

func TestParseID(t *testing.T) {
	n, err := store.ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	for _, bad := range []string{"", "0", "-3", "abc", "1.5", "01", "+1", " 1"} {
		_, err := store.ParseID(bad)
		assert.ErrorIs(t, err, store.ErrInvalidID, bad)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := map[string][]store.Record{
		"usuarios": {{"id": "1", "correo": "a@x.com"}},
		"libros":   {{"id": 2.0, "titulo": "Rayuela", "disponible": true}},
	}

	data, err := store.MarshalDocument([]string{"usuarios", "libros", "alquileres"}, doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"alquileres"`)

	back, err := store.UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, "2", back["libros"][0]["id"], "numeric ids are normalized to strings")
	assert.Equal(t, "Rayuela", back["libros"][0]["titulo"])
	assert.Empty(t, back["alquileres"])
}

func TestRecord_CloneIsDeep(t *testing.T) {
	orig := store.Record{"librosIds": []any{1.0}, "meta": map[string]any{"k": "v"}}
	c := orig.Clone()
	c["librosIds"].([]any)[0] = 9.0
	c["meta"].(map[string]any)["k"] = "changed"

	assert.Equal(t, 1.0, orig["librosIds"].([]any)[0])
	assert.Equal(t, "v", orig["meta"].(map[string]any)["k"])
}

func TestRecord_Without(t *testing.T) {
	r := store.Record{"id": "1", "contrasena": "hash", "correo": "a@x.com"}
	assert.Equal(t, store.Record{"id": "1", "correo": "a@x.com"}, r.Without("contrasena"))
	assert.Contains(t, r, "contrasena")
}
