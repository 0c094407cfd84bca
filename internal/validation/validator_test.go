package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/validation"
)

type TestRequest struct {
	Email    string   `json:"correo" validate:"required,email"`
	Password string   `json:"contrasena" validate:"required,min=6,max=1024"`
	Name     string   `json:"nombreCompleo" validate:"required"`
	Since    string   `json:"fechaInicio" validate:"omitempty,isodate"`
	Books    []int    `json:"librosIds" validate:"omitempty,min=1,unique"`
	Role     string   `json:"rol" validate:"omitempty,oneof=user admin"`
	Tags     []string `json:"-"`
}

func valid() TestRequest {
	return TestRequest{Email: "test@example.com", Password: "secreto", Name: "Ana"}
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusBadRequest, de.HTTPStatus())
	assert.Equal(t, validation.MsgInvalidData, de.Message)
	d, ok := de.Details.(map[string]string)
	require.True(t, ok)
	return d
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()
	req := valid()
	req.Since = "2025-01-31"
	req.Books = []int{1, 2}
	assert.NoError(t, v.Validate(req))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name   string
		mutate func(*TestRequest)
		field  string
		reason string
	}{
		{"missing required field", func(r *TestRequest) { r.Name = "" }, "nombreCompleo", "is required"},
		{"invalid email", func(r *TestRequest) { r.Email = "not-an-email" }, "correo", "must be a valid email address"},
		{"password too short", func(r *TestRequest) { r.Password = "corto" }, "contrasena", "must be at least 6 characters"},
		{"bad date", func(r *TestRequest) { r.Since = "31/01/2025" }, "fechaInicio", "must be a date formatted YYYY-MM-DD"},
		{"impossible date", func(r *TestRequest) { r.Since = "2025-02-30" }, "fechaInicio", "must be a date formatted YYYY-MM-DD"},
		{"duplicate ids", func(r *TestRequest) { r.Books = []int{3, 3} }, "librosIds", "must not contain duplicates"},
		{"unknown role", func(r *TestRequest) { r.Role = "root" }, "rol", "must be one of: user admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			d := details(t, v.Validate(req))
			assert.Equal(t, tt.reason, d[tt.field])
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	req := valid()
	req.Email = ""

	d := details(t, v.Validate(req))
	assert.Contains(t, d, "correo")
	assert.NotContains(t, d, "Email")
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Var("dias", 3, "gte=1"))
	d := details(t, v.Var("dias", 0, "gte=1"))
	assert.Equal(t, "must be greater than or equal to 1", d["dias"])
}
