package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const (
	// claimsKey holds the verified *auth.Claims of the request.
	claimsKey ctxKey = "claims"
	// tokenErrKey holds the reason a presented token was rejected.
	tokenErrKey ctxKey = "tokenErr"
)

// ClaimsFrom returns the verified claims of the request, or nil when none were presented or they were invalid.
func ClaimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// RequireClaims returns the verified claims or the 401 the request deserves: MissingToken without a token,
// InvalidToken with a rejected one.
func RequireClaims(ctx context.Context) (*auth.Claims, error) {
	if claims := ClaimsFrom(ctx); claims != nil {
		return claims, nil
	}
	if _, rejected := ctx.Value(tokenErrKey).(error); rejected {
		return nil, domainerrors.ErrInvalidToken
	}
	return nil, domainerrors.ErrMissingToken
}

// RequireAdmin allows only administrators.
func RequireAdmin(ctx context.Context) (*auth.Claims, error) {
	claims, err := RequireClaims(ctx)
	if err != nil {
		return nil, err
	}
	if !claims.IsAdmin() {
		return nil, domainerrors.ErrForbidden
	}
	return claims, nil
}

// RequireSelf allows only the user whose id is given. Admins are not exempt.
func RequireSelf(ctx context.Context, userID string) (*auth.Claims, error) {
	claims, err := RequireClaims(ctx)
	if err != nil {
		return nil, err
	}
	if claims.ID != userID {
		return nil, domainerrors.ErrForbidden
	}
	return claims, nil
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", header != ""
	}
	token = strings.TrimSpace(token)
	return token, true
}

// authMiddleware resolves the bearer token of every request. Valid claims are stored in the context; a
// rejected token is recorded so guards can answer InvalidToken instead of MissingToken. Nothing is refused
// here.
func authMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present := bearerToken(r)
			if !present {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			if token == "" {
				ctx = context.WithValue(ctx, tokenErrKey, domainerrors.ErrInvalidToken)
			} else if claims, err := authService.Authenticate(ctx, token); err != nil {
				ctx = context.WithValue(ctx, tokenErrKey, err)
			} else {
				ctx = context.WithValue(ctx, claimsKey, claims)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
