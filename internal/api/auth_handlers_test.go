package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/service"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

type sessionBody struct {
	Token string       `json:"token"`
	User  store.Record `json:"user"`
}

func TestRegister(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	w := ts.do(t, http.MethodPost, registerPath, "", map[string]any{
		"cedula":           " 1712345678 ",
		"nombreCompleo":    "Lucía",
		"apellidoCompleto": "Gómez",
		"correo":           "Lucia@Example.COM",
		"contrasena":       "secreto1",
		"rol":              "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	session := decode[sessionBody](t, w)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "1", session.User.ID())
	assert.Equal(t, "user", session.User["rol"], "role cannot be chosen at registration")
	assert.Equal(t, true, session.User["estado"])
	assert.Equal(t, "1712345678", session.User["cedula"])
	assert.Equal(t, "lucia@example.com", session.User["correo"])
	assert.NotContains(t, session.User, "contrasena")

	stored := ts.record(t, "usuarios", "1")
	assert.NotEqual(t, "secreto1", stored["contrasena"])
}

func TestRegister_MissingFields(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	w := ts.do(t, http.MethodPost, registerPath, "", map[string]any{"correo": "a@x.com"})
	body := assertError(t, w, http.StatusBadRequest, "VALIDATION", service.MsgRegisterMissingFields)
	assert.ElementsMatch(t, []any{"cedula", "nombreCompleo", "apellidoCompleto", "contrasena"}, body.Details["missing"])
}

func TestRegister_Duplicates(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	ts.registerUser(t, "111", "a@x.com")

	w := ts.do(t, http.MethodPost, registerPath, "", map[string]any{
		"cedula": "222", "nombreCompleo": "B", "apellidoCompleto": "C", "correo": "A@x.com", "contrasena": "secreto1",
	})
	assertError(t, w, http.StatusBadRequest, "DUPLICATE_IDENTITY", service.MsgDuplicateCorreo)

	w = ts.do(t, http.MethodPost, registerPath, "", map[string]any{
		"cedula": "111", "nombreCompleo": "B", "apellidoCompleto": "C", "correo": "b@x.com", "contrasena": "secreto1",
	})
	assertError(t, w, http.StatusBadRequest, "DUPLICATE_IDENTITY", service.MsgDuplicateCedula)
}

func TestRegister_MalformedJSON(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	w := ts.do(t, http.MethodPost, registerPath, "", `{"correo":`)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestLogin(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	ts.registerUser(t, "111", "a@x.com")

	w := ts.do(t, http.MethodPost, loginPath, "", map[string]any{"correo": " A@X.com ", "contrasena": "secreto1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := decode[sessionBody](t, w)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "a@x.com", session.User["correo"])
	assert.NotContains(t, session.User, "contrasena")

	w = ts.do(t, http.MethodPost, loginPath, "", map[string]any{"correo": "a@x.com", "contrasena": "otra-clave"})
	assertError(t, w, http.StatusUnauthorized, "INVALID_CREDENTIALS", domainerrors.MsgInvalidCredentials)

	w = ts.do(t, http.MethodPost, loginPath, "", map[string]any{"correo": "nadie@x.com", "contrasena": "secreto1"})
	assertError(t, w, http.StatusUnauthorized, "INVALID_CREDENTIALS", domainerrors.MsgInvalidCredentials)
}

func TestLogin_MissingFields(t *testing.T) {
	ts := setupTestServer(t, testConfig())

	w := ts.do(t, http.MethodPost, loginPath, "", map[string]any{"correo": "a@x.com"})
	assertError(t, w, http.StatusBadRequest, "VALIDATION", service.MsgLoginMissingFields)
}

func TestMe(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	token, userID := ts.registerUser(t, "111", "a@x.com")

	w := ts.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	me := decode[MeResponse](t, w)
	require.NotNil(t, me.User)
	assert.Equal(t, userID, me.User.ID)
	assert.Equal(t, "a@x.com", me.User.Correo)
	assert.False(t, me.User.IsAdmin())

	assertError(t, ts.do(t, http.MethodGet, "/api/auth/me", "", nil),
		http.StatusUnauthorized, "MISSING_TOKEN", domainerrors.MsgMissingToken)
	assertError(t, ts.do(t, http.MethodGet, "/api/auth/me", "not-a-token", nil),
		http.StatusUnauthorized, "INVALID_TOKEN", domainerrors.MsgInvalidToken)
}

func TestLogout_RevokesToken(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	token, _ := ts.registerUser(t, "111", "a@x.com")

	w := ts.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	assertError(t, ts.do(t, http.MethodGet, "/api/auth/me", token, nil),
		http.StatusUnauthorized, "INVALID_TOKEN", "")

	w = ts.do(t, http.MethodPost, loginPath, "", map[string]any{"correo": "a@x.com", "contrasena": "secreto1"})
	require.Equal(t, http.StatusOK, w.Code, "logging in again still works")
}

func TestLogin_InactiveUser(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	admin := ts.adminToken(t)
	_, userID := ts.registerUser(t, "111", "a@x.com")

	w := ts.do(t, http.MethodPatch, "/api/usuarios/"+userID, admin, map[string]any{"estado": false})
	require.Equal(t, http.StatusForbidden, w.Code, "profile edits are self only, even for admins")

	w = ts.do(t, http.MethodPut, "/api/usuarios/"+userID, admin, map[string]any{
		"cedula": "111", "nombreCompleo": "Lucía", "apellidoCompleto": "Gómez", "correo": "a@x.com", "estado": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, loginPath, "", map[string]any{"correo": "a@x.com", "contrasena": "secreto1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
}
