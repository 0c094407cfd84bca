package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
)

func newTestTokens(t *testing.T, secret string) *TokenService {
	t.Helper()
	key, err := DeriveKey(secret)
	require.NoError(t, err)
	s, err := NewTokenService(key, 7*time.Hour)
	require.NoError(t, err)
	return s
}

func testUser() *domain.User {
	return &domain.User{ID: "4", Correo: "a@x.com", Estado: true, Rol: domain.RoleUser, TokenVersion: 2}
}

func TestTokenService_RoundTrip(t *testing.T) {
	s := newTestTokens(t, "secreto")

	token, err := s.Issue(testUser())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "4", claims.ID)
	assert.Equal(t, "a@x.com", claims.Correo)
	assert.True(t, claims.Estado)
	assert.Equal(t, domain.RoleUser, claims.Rol)
	assert.Equal(t, int64(2), claims.Version)
	assert.NotEmpty(t, claims.TokenID)
	assert.WithinDuration(t, claims.IssuedAt.Add(7*time.Hour), claims.Expiration, time.Second)
	assert.False(t, claims.IsAdmin())
	assert.True(t, claims.Matches(testUser()))
}

func TestTokenService_Expired(t *testing.T) {
	s := newTestTokens(t, "secreto")
	token, err := s.Issue(testUser())
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(8 * time.Hour) }
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)
}

func TestTokenService_Rejects(t *testing.T) {
	s := newTestTokens(t, "secreto")
	token, err := s.Issue(testUser())
	require.NoError(t, err)

	other := newTestTokens(t, "rotado")
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken, "rotating the secret invalidates tokens")

	tampered := token[:len(token)-2] + "AA"
	if tampered == token {
		tampered = token[:len(token)-2] + "BB"
	}
	_, err = s.Verify(tampered)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)

	for _, bad := range []string{"", "garbage", "v4.local.", "v4.public.abc"} {
		_, err = s.Verify(bad)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidToken, bad)
	}
}

func TestClaims_Matches(t *testing.T) {
	claims := &Claims{ID: "4", Version: 2}

	u := testUser()
	assert.True(t, claims.Matches(u))

	u.TokenVersion = 3
	assert.False(t, claims.Matches(u), "bumped version revokes")

	u = testUser()
	u.Estado = false
	assert.False(t, claims.Matches(u), "inactive user")

	assert.False(t, claims.Matches(nil))
}

func TestNewTokenService_Validation(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour)
	assert.Error(t, err)

	key, err := DeriveKey("x")
	require.NoError(t, err)
	_, err = NewTokenService(key, 0)
	assert.Error(t, err)
}
