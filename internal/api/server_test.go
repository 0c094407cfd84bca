package api

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	"github.com/alquilibros/alquilibros-server/internal/config"
	"github.com/alquilibros/alquilibros-server/internal/domain"
	"github.com/alquilibros/alquilibros-server/internal/logger"
	"github.com/alquilibros/alquilibros-server/internal/search"
	"github.com/alquilibros/alquilibros-server/internal/service"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

type testServer struct {
	*Server
	store *store.Memory
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Environment: "test"},
		Server: config.ServerConfig{
			CORSAllowedOrigins: []string{"*"},
			AuthRatePerMinute:  600,
			AuthRateBurst:      100,
		},
		Auth:    config.AuthConfig{TokenTTL: time.Hour},
		Catalog: config.CatalogConfig{PerPage: 10, YearMin: 1450, YearMax: 2030},
		Client: config.ClientConfig{
			APIBaseURL:      "http://localhost:4000/api",
			UploadCloudName: "demo",
			UploadPreset:    "libros",
		},
	}
}

// setupTestServer creates a server over an in-memory store.
func setupTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	log := logger.Discard()

	key, err := auth.DeriveKey("api test secret")
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, cfg.Auth.TokenTTL)
	require.NoError(t, err)

	index, err := search.NewIndex(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	st := store.NewMemory(domain.Collections...)
	services := service.New(st, tokens, index, service.Options{
		PerPage: cfg.Catalog.PerPage,
		YearMin: cfg.Catalog.YearMin,
		YearMax: cfg.Catalog.YearMax,
	}, log)

	server := NewServer(cfg, services, log)
	t.Cleanup(server.Close)

	return &testServer{Server: server, store: st}
}

// do performs a request against the server. body may be nil, a string or any JSON-encodable value.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:4321"
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

// seed writes records directly, bypassing hooks.
func (ts *testServer) seed(t *testing.T, collection string, records ...store.Record) {
	t.Helper()
	err := ts.store.Update(context.Background(), func(tx store.Tx) error {
		for _, r := range records {
			if err := tx.Put(collection, r); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func (ts *testServer) record(t *testing.T, collection, id string) store.Record {
	t.Helper()
	var rec store.Record
	err := ts.store.View(context.Background(), func(tx store.Tx) error {
		var err error
		rec, err = tx.Get(collection, id)
		return err
	})
	require.NoError(t, err)
	return rec
}

// registerUser registers through the API and returns the token and the user id.
func (ts *testServer) registerUser(t *testing.T, cedula, correo string) (token, userID string) {
	t.Helper()
	w := ts.do(t, http.MethodPost, registerPath, "", map[string]any{
		"cedula":           cedula,
		"nombreCompleo":    "Lucía",
		"apellidoCompleto": "Gómez",
		"correo":           correo,
		"contrasena":       "secreto1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var session struct {
		Token string       `json:"token"`
		User  store.Record `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	return session.Token, session.User.ID()
}

// adminToken creates an administrator and logs in.
func (ts *testServer) adminToken(t *testing.T) string {
	t.Helper()
	_, err := ts.services.Records.Create(context.Background(), domain.Usuarios, store.Record{
		"cedula":           "100",
		"nombreCompleo":    "Admin",
		"apellidoCompleto": "Biblioteca",
		"correo":           "admin@biblio.test",
		"contrasena":       "adminpass",
		"rol":              domain.RoleAdmin,
	})
	require.NoError(t, err)

	w := ts.do(t, http.MethodPost, loginPath, "", map[string]any{
		"correo": "admin@biblio.test", "contrasena": "adminpass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	return session.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code, message string) errorBody {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	body := decode[errorBody](t, w)
	assert.Equal(t, code, body.Code)
	if message != "" {
		assert.Equal(t, message, body.Message)
	}
	return body
}

func libro(titulo, isbn string) store.Record {
	return store.Record{
		"titulo": titulo, "autor": "Julio Cortázar", "anioPublicacion": 1963, "isbn": isbn,
	}
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestClientConfig(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	w := ts.do(t, http.MethodGet, "/api/config", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[ClientConfigResponse](t, w)
	assert.Equal(t, "http://localhost:4000/api", got.APIBaseURL)
	assert.Equal(t, 10, got.ItemsPerPage)
	assert.Equal(t, 1450, got.YearMin)
	assert.Equal(t, 2030, got.YearMax)
	assert.Equal(t, "demo", got.Upload.CloudName)
	assert.Equal(t, "libros", got.Upload.UploadPreset)
}

func TestUnknownRoutes(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	assertError(t, ts.do(t, http.MethodGet, "/api/revistas", "", nil), http.StatusNotFound, "NOT_FOUND", "")
	assertError(t, ts.do(t, http.MethodGet, "/api/auth", "", nil), http.StatusNotFound, "NOT_FOUND", "")
}

func TestCORSExposesTotalCount(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/libros", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Total-Count")
}
