package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alquilibros/alquilibros-server/internal/service"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

func seedCatalog(t *testing.T, ts *testServer) {
	t.Helper()
	ts.seed(t, "libros",
		store.Record{"id": "1", "titulo": "Rayuela", "autor": "Julio Cortázar", "anioPublicacion": 1963.0, "disponible": true},
		store.Record{"id": "2", "titulo": "Ficciones", "autor": "Jorge Luis Borges", "anioPublicacion": 1944.0, "disponible": true},
	)
}

func TestRentals_CreateForCaller(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	seedCatalog(t, ts)
	token, userID := ts.registerUser(t, "111", "a@x.com")

	w := ts.do(t, http.MethodPost, "/api/alquileres", token, map[string]any{
		"usuarioId":   99,
		"librosIds":   []int{1, 2},
		"fechaInicio": "2025-03-01",
		"fechaFin":    "2025-03-15",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	rental := decode[store.Record](t, w)
	assert.Equal(t, "1", rental.ID())
	assert.Equal(t, userID, store.Record{"id": rental["usuarioId"]}.ID(), "rentals belong to the caller")
	assert.Equal(t, true, rental["estado"])

	assert.Equal(t, false, ts.record(t, "libros", "1")["disponible"])
	assert.Equal(t, false, ts.record(t, "libros", "2")["disponible"])

	otherToken, _ := ts.registerUser(t, "222", "b@x.com")
	w = ts.do(t, http.MethodPost, "/api/alquileres", otherToken, map[string]any{
		"librosIds": []int{1}, "fechaInicio": "2025-03-02", "fechaFin": "2025-03-09",
	})
	assertError(t, w, http.StatusConflict, "CONFLICT", service.MsgBookUnavailable)
}

func TestRentals_RequireToken(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	assertError(t, ts.do(t, http.MethodGet, "/api/alquileres", "", nil), http.StatusUnauthorized, "MISSING_TOKEN", "")
	assertError(t, ts.do(t, http.MethodGet, "/api/alquileres/1", "", nil), http.StatusUnauthorized, "MISSING_TOKEN", "")
	assertError(t, ts.do(t, http.MethodPost, "/api/alquileres", "", map[string]any{"librosIds": []int{1}}),
		http.StatusUnauthorized, "MISSING_TOKEN", "")
}

func TestRentals_ListIsScoped(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	admin := ts.adminToken(t)
	token, userID := ts.registerUser(t, "111", "a@x.com")
	ts.seed(t, "alquileres",
		store.Record{"id": "1", "usuarioId": userID, "librosIds": []any{1.0}, "fechaInicio": "2025-01-01", "fechaFin": "2025-01-08", "estado": true},
		store.Record{"id": "2", "usuarioId": "77", "librosIds": []any{2.0}, "fechaInicio": "2025-01-01", "fechaFin": "2025-01-08", "estado": true},
	)

	w := ts.do(t, http.MethodGet, "/api/alquileres", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1", w.Header().Get("X-Total-Count"))
	rentals := decode[[]store.Record](t, w)
	require.Len(t, rentals, 1)
	assert.Equal(t, "1", rentals[0].ID())

	w = ts.do(t, http.MethodGet, "/api/alquileres?usuarioId=77", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Total-Count"), "filters cannot widen the scope")

	assertError(t, ts.do(t, http.MethodGet, "/api/alquileres/2", token, nil), http.StatusForbidden, "FORBIDDEN", "")

	w = ts.do(t, http.MethodGet, "/api/alquileres", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))
}

func TestRentals_ReturnAndExtend(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	seedCatalog(t, ts)
	admin := ts.adminToken(t)
	token, _ := ts.registerUser(t, "111", "a@x.com")

	w := ts.do(t, http.MethodPost, "/api/alquileres", token, map[string]any{
		"librosIds": []int{1}, "fechaInicio": "2025-01-01", "fechaFin": "2025-01-08",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assertError(t, ts.do(t, http.MethodPost, "/api/alquileres/1/extender", token, map[string]any{"dias": 3}),
		http.StatusForbidden, "FORBIDDEN", "")
	assertError(t, ts.do(t, http.MethodPost, "/api/alquileres/1/extender", admin, map[string]any{"dias": 0}),
		http.StatusBadRequest, "VALIDATION", service.MsgInvalidExtension)

	w = ts.do(t, http.MethodPost, "/api/alquileres/1/extender", admin, map[string]any{"dias": 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2025-01-15", decode[store.Record](t, w)["fechaFin"])

	w = ts.do(t, http.MethodPost, "/api/alquileres/1/devolver", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode[store.Record](t, w)["estado"])
	assert.Equal(t, true, ts.record(t, "libros", "1")["disponible"])

	assertError(t, ts.do(t, http.MethodPost, "/api/alquileres/1/devolver", token, nil),
		http.StatusConflict, "CONFLICT", service.MsgRentalReturned)
	assertError(t, ts.do(t, http.MethodPost, "/api/alquileres/1/extender", admin, map[string]any{"dias": 1}),
		http.StatusConflict, "CONFLICT", service.MsgRentalInactive)
	assertError(t, ts.do(t, http.MethodPost, "/api/alquileres/9/extender", admin, map[string]any{"dias": 1}),
		http.StatusNotFound, "NOT_FOUND", "")
}

func TestRentals_AdminEditsAndDelete(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	seedCatalog(t, ts)
	admin := ts.adminToken(t)
	token, _ := ts.registerUser(t, "111", "a@x.com")

	w := ts.do(t, http.MethodPost, "/api/alquileres", token, map[string]any{
		"librosIds": []int{1}, "fechaInicio": "2025-01-01", "fechaFin": "2025-01-08",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assertError(t, ts.do(t, http.MethodPatch, "/api/alquileres/1", token, map[string]any{"fechaFin": "2025-02-01"}),
		http.StatusForbidden, "FORBIDDEN", "")

	w = ts.do(t, http.MethodPatch, "/api/alquileres/1", admin, map[string]any{"librosIds": []int{2}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, ts.record(t, "libros", "1")["disponible"])
	assert.Equal(t, false, ts.record(t, "libros", "2")["disponible"])

	w = ts.do(t, http.MethodDelete, "/api/alquileres/1", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "1", decode[store.Record](t, w).ID())
	assert.Equal(t, true, ts.record(t, "libros", "2")["disponible"])
}
