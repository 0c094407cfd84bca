package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/query"
	"github.com/alquilibros/alquilibros-server/internal/service"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

func TestBooks_PublicReads(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	ts.seed(t, "libros",
		store.Record{"id": "1", "titulo": "Rayuela", "autor": "Julio Cortázar", "anioPublicacion": 1963.0, "disponible": true},
		store.Record{"id": "2", "titulo": "Ficciones", "autor": "Jorge Luis Borges", "anioPublicacion": 1944.0, "disponible": false},
	)

	w := ts.do(t, http.MethodGet, "/api/libros", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))
	assert.Len(t, decode[[]store.Record](t, w), 2)

	w = ts.do(t, http.MethodGet, "/api/libros?disponible=true", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	books := decode[[]store.Record](t, w)
	require.Len(t, books, 1)
	assert.Equal(t, "Rayuela", books[0]["titulo"])

	w = ts.do(t, http.MethodGet, "/api/libros/2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ficciones", decode[store.Record](t, w)["titulo"])

	assertError(t, ts.do(t, http.MethodGet, "/api/libros/99", "", nil), http.StatusNotFound, "NOT_FOUND", "")
}

func TestBooks_Pagination(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	for _, id := range []string{"1", "2", "3"} {
		ts.seed(t, "libros", store.Record{"id": id, "titulo": "Libro " + id, "disponible": true})
	}

	w := ts.do(t, http.MethodGet, "/api/libros?_page=2&_per_page=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))

	page := decode[query.Page](t, w)
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 3, page.Items)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "3", page.Data[0].ID())

	w = ts.do(t, http.MethodGet, "/api/libros?_page=9&_per_page=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestBooks_WritesNeedAdmin(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	userToken, _ := ts.registerUser(t, "111", "a@x.com")

	assertError(t, ts.do(t, http.MethodPost, "/api/libros", "", libro("Rayuela", "")),
		http.StatusUnauthorized, "MISSING_TOKEN", domainerrors.MsgMissingToken)
	assertError(t, ts.do(t, http.MethodPost, "/api/libros", "bogus", libro("Rayuela", "")),
		http.StatusUnauthorized, "INVALID_TOKEN", domainerrors.MsgInvalidToken)
	assertError(t, ts.do(t, http.MethodPost, "/api/libros", userToken, libro("Rayuela", "")),
		http.StatusForbidden, "FORBIDDEN", domainerrors.MsgForbidden)
}

func TestBooks_AdminCRUD(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	admin := ts.adminToken(t)

	body := libro("Rayuela", "978-84-376-0494-7")
	body["sinopsis"] = "<p>Una novela <b>abierta</b></p>"
	w := ts.do(t, http.MethodPost, "/api/libros", admin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[store.Record](t, w)
	assert.Equal(t, "1", created.ID())
	assert.Equal(t, true, created["disponible"])
	assert.Equal(t, "Una novela **abierta**", created["sinopsis"])

	w = ts.do(t, http.MethodPost, "/api/libros", admin, libro("Otra", "978-84-376-0494-7"))
	assertError(t, w, http.StatusBadRequest, "DUPLICATE_IDENTITY", service.MsgDuplicateISBN)

	w = ts.do(t, http.MethodPatch, "/api/libros/1", admin, map[string]any{"categoria": "Novela"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Novela", decode[store.Record](t, w)["categoria"])

	replacement := libro("Rayuela (ed. crítica)", "")
	w = ts.do(t, http.MethodPut, "/api/libros/1", admin, replacement)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	replaced := decode[store.Record](t, w)
	assert.Equal(t, "1", replaced.ID())
	assert.Equal(t, "Rayuela (ed. crítica)", replaced["titulo"])

	w = ts.do(t, http.MethodDelete, "/api/libros/1", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1", decode[store.Record](t, w).ID())

	assertError(t, ts.do(t, http.MethodDelete, "/api/libros/1", admin, nil), http.StatusNotFound, "NOT_FOUND", "")
}

func TestBooks_ValidationErrors(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	admin := ts.adminToken(t)

	w := ts.do(t, http.MethodPost, "/api/libros", admin, map[string]any{"titulo": "Sin autor"})
	body := assertError(t, w, http.StatusBadRequest, "VALIDATION", "")
	assert.Contains(t, body.Details, "autor")

	w = ts.do(t, http.MethodPost, "/api/libros", admin, map[string]any{
		"titulo": "Futuro", "autor": "X", "anioPublicacion": 3000,
	})
	assertError(t, w, http.StatusBadRequest, "VALIDATION", "")

	for _, raw := range []string{`{}`, `[]`, `{"titulo":`} {
		w = ts.do(t, http.MethodPost, "/api/libros", admin, raw)
		assertError(t, w, http.StatusBadRequest, "INVALID_BODY", domainerrors.MsgInvalidBody)
	}
}

func TestUsers_AdminManagement(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	admin := ts.adminToken(t)
	userToken, userID := ts.registerUser(t, "111", "a@x.com")

	assertError(t, ts.do(t, http.MethodGet, "/api/usuarios", userToken, nil), http.StatusForbidden, "FORBIDDEN", "")

	w := ts.do(t, http.MethodGet, "/api/usuarios", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))
	for _, u := range decode[[]store.Record](t, w) {
		assert.NotContains(t, u, "contrasena")
	}

	w = ts.do(t, http.MethodGet, "/api/usuarios?contrasena_like=a", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Total-Count"), "secrets cannot be probed through filters")

	w = ts.do(t, http.MethodPost, "/api/usuarios", admin, map[string]any{
		"cedula": "333", "nombreCompleo": "Marta", "apellidoCompleto": "Ruiz", "correo": "m@x.com",
		"contrasena": "secreto1", "rol": "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "admin", decode[store.Record](t, w)["rol"])

	w = ts.do(t, http.MethodDelete, "/api/usuarios/"+userID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, decode[store.Record](t, w), "contrasena")
}

func TestUsers_DeleteCascadesDependents(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	admin := ts.adminToken(t)
	ts.seed(t, "usuarios", store.Record{"id": "5", "cedula": "5", "correo": "c@x.com", "rol": "user", "estado": true})
	ts.seed(t, "alquileres", store.Record{
		"id": "1", "usuarioId": 5.0, "librosIds": []any{1.0}, "fechaInicio": "2025-01-01", "fechaFin": "2025-01-08", "estado": false,
	})

	w := ts.do(t, http.MethodDelete, "/api/usuarios/5?_dependent=revistas", admin, nil)
	assertError(t, w, http.StatusBadRequest, "VALIDATION", "")

	w = ts.do(t, http.MethodDelete, "/api/usuarios/5", admin, nil)
	assertError(t, w, http.StatusConflict, "CONFLICT", service.MsgUserHasHistory)

	w = ts.do(t, http.MethodDelete, "/api/usuarios/5?_dependent=alquileres", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/alquileres", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Total-Count"))
}

func TestProfile(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	token, userID := ts.registerUser(t, "111", "a@x.com")
	otherToken, _ := ts.registerUser(t, "222", "b@x.com")

	w := ts.do(t, http.MethodGet, "/api/usuarios/"+userID, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "a@x.com", decode[store.Record](t, w)["correo"])

	assertError(t, ts.do(t, http.MethodGet, "/api/usuarios/"+userID, otherToken, nil),
		http.StatusForbidden, "FORBIDDEN", domainerrors.MsgForbidden)
	assertError(t, ts.do(t, http.MethodGet, "/api/usuarios/"+userID, "", nil),
		http.StatusUnauthorized, "MISSING_TOKEN", "")

	w = ts.do(t, http.MethodPatch, "/api/usuarios/"+userID, token, map[string]any{
		"telefono": "0991234567", "rol": "admin",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[store.Record](t, w)
	assert.Equal(t, "0991234567", updated["telefono"])
	assert.Equal(t, "user", updated["rol"])

	w = ts.do(t, http.MethodPatch, "/api/usuarios/"+userID, token, map[string]any{"rol": "admin"})
	assertError(t, w, http.StatusBadRequest, "VALIDATION", service.MsgNoProfileFields)
}

func TestSearchBooks(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	admin := ts.adminToken(t)

	for _, b := range []store.Record{libro("Rayuela", ""), libro("Cien años de soledad", "")} {
		w := ts.do(t, http.MethodPost, "/api/libros", admin, b)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := ts.do(t, http.MethodGet, "/api/search/libros?q=soledad", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	hits := decode[[]store.Record](t, w)
	require.Len(t, hits, 1)
	assert.Equal(t, "Cien años de soledad", hits[0]["titulo"])

	w = ts.do(t, http.MethodGet, "/api/search/libros?q=", "", nil)
	assertError(t, w, http.StatusBadRequest, "VALIDATION", service.MsgSearchQueryRequired)
}
