package auth

import (
	"encoding/json/v2"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/id"
)

const (
	tokenIssuer   = "alquilibros-server"
	tokenAudience = "alquilibros-client"
)

// TokenService issues and verifies PASETO v4.local session tokens.
type TokenService struct {
	symmetricKey paseto.V4SymmetricKey
	ttl          time.Duration
	now          func() time.Time
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, ttl time.Duration) (*TokenService, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyLength, len(key))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	symmetricKey, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &TokenService{symmetricKey: symmetricKey, ttl: ttl, now: time.Now}, nil
}

// Issue creates a token for user embedding {id, correo, estado, rol, ver}.
func (s *TokenService) Issue(user *domain.User) (string, error) {
	now := s.now()

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(user.ID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.ttl))
	token.SetJti(id.Short())

	claims := map[string]any{
		"id":     user.ID,
		"correo": user.Correo,
		"estado": user.Estado,
		"rol":    string(user.Rol),
		"ver":    user.TokenVersion,
	}
	for k, v := range claims {
		if err := token.Set(k, v); err != nil {
			return "", fmt.Errorf("set claim %s: %w", k, err)
		}
	}

	return token.V4Encrypt(s.symmetricKey, nil), nil
}

// Verify decrypts and validates a token. Any failure (wrong key, tampering, malformed payload, expiry) is
// reported as ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ValidAt(s.now()))

	token, err := parser.ParseV4Local(s.symmetricKey, tokenString, nil)
	if err != nil {
		return nil, domainerrors.ErrInvalidToken.WithCause(err)
	}

	var claims Claims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, domainerrors.ErrInvalidToken.WithCause(fmt.Errorf("parse claims: %w", err))
	}
	if claims.ID == "" {
		return nil, domainerrors.ErrInvalidToken.WithCause(fmt.Errorf("token has no subject"))
	}

	return &claims, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
