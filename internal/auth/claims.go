package auth

import (
	"time"

	"github.com/alquilibros/alquilibros-server/internal/domain"
)

// Claims is the decoded payload of a session token. v4.local tokens are encrypted, so clients only see the
// claims through GET /auth/me.
type Claims struct {
	ID      string      `json:"id"`
	Correo  string      `json:"correo"`
	Estado  bool        `json:"estado"`
	Rol     domain.Role `json:"rol"`
	Version int64       `json:"ver"`

	IssuedAt   time.Time `json:"iat"`
	Expiration time.Time `json:"exp"`
	TokenID    string    `json:"jti,omitzero"`
}

// IsAdmin reports whether the token was issued to an administrator.
func (c *Claims) IsAdmin() bool {
	return c.Rol == domain.RoleAdmin
}

// Matches reports whether the claims still describe user: same account, still active, and issued after the
// latest revocation.
func (c *Claims) Matches(user *domain.User) bool {
	return user != nil && user.ID == c.ID && user.IsActive() && user.TokenVersion == c.Version
}
