package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeMissingToken, http.StatusUnauthorized},
		{CodeInvalidToken, http.StatusUnauthorized},
		{CodeInvalidCredentials, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeValidation, http.StatusBadRequest},
		{CodeInvalidBody, http.StatusBadRequest},
		{CodeDuplicateIdentity, http.StatusBadRequest},
		{CodeConflict, http.StatusConflict},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := DuplicateIdentity("Ya existe un usuario con esta cédula.")

	assert.True(t, Is(err, ErrDuplicateIdentity))
	assert.False(t, Is(err, ErrConflict))

	wrapped := fmt.Errorf("register: %w", err)
	assert.True(t, Is(wrapped, ErrDuplicateIdentity))
}

func TestError_WithCauseKeepsMessage(t *testing.T) {
	cause := New("disk full")
	err := Wrap(cause, CodeInternal, MsgInternal)

	assert.Equal(t, "Error interno del servidor.: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(fmt.Errorf("x: %w", ErrNotFound)))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(New("plain")))
}
