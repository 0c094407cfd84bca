package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

// Messages of authentication errors.
const (
	MsgRegisterMissingFields = "Faltan campos obligatorios para el registro."
	MsgLoginMissingFields    = "Correo y contraseña son obligatorios."
)

// registerRequired are the fields registration cannot do without.
var registerRequired = []string{"cedula", "correo", "contrasena", "nombreCompleo", "apellidoCompleto"}

// registerFields are taken from a registration body; anything else is ignored.
var registerFields = append([]string{"telefono", "dirreccion"}, registerRequired...)

// Session is a freshly issued token with the user it was issued to.
type Session struct {
	Token string       `json:"token"`
	User  store.Record `json:"user"`
}

// AuthService handles registration, login, token resolution and logout.
type AuthService struct {
	records *RecordService
	tokens  *auth.TokenService
	logger  *slog.Logger
}

// NewAuthService creates an auth service.
func NewAuthService(records *RecordService, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{records: records, tokens: tokens, logger: logger}
}

// Register creates an active standard user and signs them in.
func (s *AuthService) Register(ctx context.Context, body store.Record) (*Session, error) {
	var missing []string
	for _, field := range registerRequired {
		if v, _ := body[field].(string); strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, domainerrors.Validation(MsgRegisterMissingFields).WithDetails(map[string]any{"missing": missing})
	}

	candidate := store.Record{"rol": string(domain.RoleUser), "estado": true, "telefono": "", "dirreccion": ""}
	for _, field := range registerFields {
		if v, ok := body[field]; ok {
			candidate[field] = v
		}
	}

	rec, err := s.records.Create(ctx, domain.Usuarios, candidate)
	if err != nil {
		return nil, err
	}

	var user domain.User
	if err := store.Decode(rec, &user); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode registered user")
	}
	token, err := s.tokens.Issue(&user)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "issue token")
	}

	s.logger.Info("user registered", "user_id", user.ID, "correo", user.Correo)
	return &Session{Token: token, User: rec}, nil
}

// Login verifies credentials and issues a token. Unknown, inactive and wrong-password attempts are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, correo, contrasena string) (*Session, error) {
	correo = domain.NormalizeEmail(correo)
	if correo == "" || contrasena == "" {
		return nil, domainerrors.Validation(MsgLoginMissingFields)
	}

	// Argon2id verification runs outside any write transaction.
	var user *domain.User
	err := s.records.Store().View(ctx, func(tx store.Tx) error {
		var err error
		user, err = findUserByEmail(tx, correo)
		return err
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	if user == nil || !user.IsActive() || !auth.VerifyPassword(user.Contrasena, contrasena) {
		s.logger.Info("login rejected", "correo", correo)
		return nil, domainerrors.ErrInvalidCredentials
	}

	if auth.NeedsRehash(user.Contrasena) {
		s.upgradeHash(ctx, user, contrasena)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "issue token")
	}
	rec, err := encodeEntity(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: PresentUser(rec)}, nil
}

// upgradeHash replaces a legacy or weak hash after a successful login. The write is skipped when the stored
// hash changed since it was verified. Failures only cost the upgrade.
func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Warn("password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	err = s.records.Store().Update(ctx, func(tx store.Tx) error {
		rec, err := tx.Get(domain.Usuarios, user.ID)
		if err != nil {
			return err
		}
		if stored, _ := rec["contrasena"].(string); stored != user.Contrasena {
			return nil
		}
		rec["contrasena"] = hash
		return tx.Put(domain.Usuarios, rec)
	})
	if err != nil {
		s.logger.Warn("password rehash not stored", "user_id", user.ID, "error", err)
		return
	}
	user.Contrasena = hash
}

// Authenticate verifies a token and checks it against the current state of its user. Tokens of deleted or
// deactivated users, or issued before the user's last revocation, are invalid.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	var user *domain.User
	err = s.records.Store().View(ctx, func(tx store.Tx) error {
		var err error
		user, err = loadUser(tx, claims.ID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !claims.Matches(user) {
		return nil, domainerrors.ErrInvalidToken
	}
	return claims, nil
}

// Logout revokes every token of the caller.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return domainerrors.ErrMissingToken
	}
	err := s.records.Store().Update(ctx, func(tx store.Tx) error {
		return revokeSessions(tx, claims.ID)
	})
	if err != nil {
		return mapStoreError(err)
	}
	s.logger.Info("user logged out", "user_id", claims.ID)
	return nil
}

// revokeSessions bumps the user's token version.
func revokeSessions(tx store.Tx, userID string) error {
	user, err := loadUser(tx, userID)
	if err != nil {
		return err
	}
	rec, err := tx.Get(domain.Usuarios, userID)
	if err != nil {
		return err
	}
	rec["tokenVersion"] = float64(user.TokenVersion + 1)
	return tx.Put(domain.Usuarios, rec)
}

func findUserByEmail(tx store.Tx, correo string) (*domain.User, error) {
	users, err := tx.List(domain.Usuarios)
	if err != nil {
		return nil, err
	}
	for _, rec := range users {
		if c, _ := rec["correo"].(string); domain.NormalizeEmail(c) != correo {
			continue
		}
		var user domain.User
		if err := store.Decode(rec, &user); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode stored user")
		}
		return &user, nil
	}
	return nil, nil
}
