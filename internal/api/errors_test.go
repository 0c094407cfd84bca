package api

import (
	"encoding/json/v2"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/store"
	"github.com/alquilibros/alquilibros-server/internal/validation"
)

func TestNewAPIError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		errs    []error
		want    int
		code    string
		message string
	}{
		{
			name:    "domain error keeps its status",
			status:  http.StatusInternalServerError,
			errs:    []error{domainerrors.Conflict("El libro está en un alquiler activo.")},
			want:    http.StatusConflict,
			code:    "CONFLICT",
			message: "El libro está en un alquiler activo.",
		},
		{
			name:    "store not found",
			status:  http.StatusInternalServerError,
			errs:    []error{store.NotFoundError("libros", "3")},
			want:    http.StatusNotFound,
			code:    "NOT_FOUND",
			message: domainerrors.MsgNotFound,
		},
		{
			name:    "unprocessable entity becomes validation",
			status:  http.StatusUnprocessableEntity,
			errs:    []error{&huma.ErrorDetail{Location: "body.dias", Message: "expected integer"}},
			want:    http.StatusBadRequest,
			code:    "VALIDATION",
			message: validation.MsgInvalidData,
		},
		{
			name:    "internal details are hidden",
			status:  http.StatusInternalServerError,
			errs:    []error{errors.New("disk on fire")},
			want:    http.StatusInternalServerError,
			code:    "INTERNAL",
			message: domainerrors.MsgInternal,
		},
		{
			name:    "internal domain error is hidden",
			status:  http.StatusInternalServerError,
			errs:    []error{domainerrors.Internal("decode registered user")},
			want:    http.StatusInternalServerError,
			code:    "INTERNAL",
			message: domainerrors.MsgInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newAPIError(tt.status, "msg", tt.errs...)
			apiErr, ok := err.(*APIError)
			require.True(t, ok)
			assert.Equal(t, tt.want, apiErr.GetStatus())
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestValidationDetails(t *testing.T) {
	details := validationDetails([]error{
		&huma.ErrorDetail{Location: "body.dias", Message: "expected integer"},
		&huma.ErrorDetail{Location: "", Message: "unexpected end of JSON input"},
		errors.New("not a detail"),
	})
	assert.Equal(t, map[string]string{"dias": "expected integer", "body": "unexpected end of JSON input"}, details)

	assert.Nil(t, validationDetails(nil))
}

func TestExtendRental_TypedBodyValidation(t *testing.T) {
	ts := setupTestServer(t, testConfig())
	admin := ts.adminToken(t)
	api := humatest.Wrap(t, ts.API())

	resp := api.Post("/api/alquileres/1/extender", "Authorization: Bearer "+admin, map[string]any{"dias": "siete"})
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

	var body errorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION", body.Code)
	assert.Equal(t, validation.MsgInvalidData, body.Message)
	assert.Contains(t, body.Details, "dias")
}
