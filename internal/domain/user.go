package domain

import "strings"

// Role represents the user's permission level.
type Role string

const (
	// RoleUser is a standard library member.
	RoleUser Role = "user"
	// RoleAdmin manages books, users and every rental.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account in the usuarios collection.
type User struct {
	ID               string `json:"id,omitzero"`
	Cedula           string `json:"cedula" validate:"required,max=32"`
	NombreCompleo    string `json:"nombreCompleo" validate:"required,max=120"`
	ApellidoCompleto string `json:"apellidoCompleto" validate:"required,max=120"`
	Telefono         string `json:"telefono" validate:"max=32"`
	Dirreccion       string `json:"dirreccion" validate:"max=255"`
	Correo           string `json:"correo" validate:"required,email"`
	Contrasena       string `json:"contrasena,omitzero"` // argon2id or legacy bcrypt hash, stripped from responses
	Estado           bool   `json:"estado"`
	Rol              Role   `json:"rol" validate:"oneof=user admin"`
	TokenVersion     int64  `json:"tokenVersion,omitzero"` // bumped to revoke every outstanding token
}

// Secret fields never leave the server.
var UserSecretFields = []string{"contrasena", "tokenVersion"}

// ProfileFields are the fields a user may change on their own profile.
var ProfileFields = []string{"nombreCompleo", "apellidoCompleto", "telefono", "dirreccion", "correo", "contrasena"}

// MinPasswordLength applies to every place a plaintext password is set.
const MinPasswordLength = 6

// IsAdmin reports whether the user has administrative privileges.
func (u *User) IsAdmin() bool {
	return u.Rol == RoleAdmin
}

// IsActive reports whether the user may authenticate.
func (u *User) IsActive() bool {
	return u.Estado
}

// NormalizeEmail returns the canonical stored form of an email address. Uniqueness is checked on this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
