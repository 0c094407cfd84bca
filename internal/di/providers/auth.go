package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	"github.com/alquilibros/alquilibros-server/internal/config"
)

// AuthKey wraps the token key bytes.
type AuthKey []byte

// ProvideAuthKey derives the key from the configured secret, or loads or generates the key file.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	key, err := auth.ResolveKey(cfg.Auth.TokenSecret, cfg.Auth.KeyFile)
	if err != nil {
		return nil, err
	}

	source := "secret"
	if cfg.Auth.TokenSecret == "" {
		source = cfg.Auth.KeyFile
	}
	log.Info("Authentication key loaded", "source", source, "token_ttl", cfg.Auth.TokenTTL)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService([]byte(authKey), cfg.Auth.TokenTTL)
}
