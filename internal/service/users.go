package service

import (
	"log/slog"
	"strings"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/store"
	"github.com/alquilibros/alquilibros-server/internal/validation"
)

// Messages of user account errors.
const (
	MsgDuplicateCedula = "Ya existe un usuario con esta cédula."
	MsgDuplicateCorreo = "Ya existe un usuario con este correo electrónico."
	MsgUserHasRentals  = "El usuario tiene alquileres activos."
	MsgUserHasHistory  = "El usuario tiene alquileres registrados."
)

// UserHooks maintains the usuarios collection: schema, unique cedula and correo, password hashing and token
// revocation.
type UserHooks struct {
	logger *slog.Logger
}

// NewUserHooks creates the usuarios hooks.
func NewUserHooks(logger *slog.Logger) *UserHooks {
	return &UserHooks{logger: logger}
}

// Hooks returns the hook set to register for domain.Usuarios.
func (h *UserHooks) Hooks() Hooks {
	return Hooks{
		Prepare:      h.prepare,
		BeforeDelete: h.beforeDelete,
		Present:      PresentUser,
	}
}

// PresentUser strips secrets from a user record.
func PresentUser(rec store.Record) store.Record {
	return rec.Without(domain.UserSecretFields...)
}

func (h *UserHooks) prepare(tx store.Tx, c *Change) (store.Record, error) {
	var user domain.User
	if err := decodeRecord(c.Record, c.Body, &user); err != nil {
		return nil, err
	}

	var existing *domain.User
	if c.Existing != nil {
		existing = &domain.User{}
		if err := store.Decode(c.Existing, existing); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode stored user")
		}
		user.ID = existing.ID
	}

	applyUserDefaults(&user, c.Body, existing)
	user.Cedula = strings.TrimSpace(user.Cedula)
	user.Correo = domain.NormalizeEmail(user.Correo)

	passwordChanged, err := resolvePassword(&user, c.Body, existing)
	if err != nil {
		return nil, err
	}

	if err := validate.Validate(&user); err != nil {
		return nil, err
	}
	if err := checkUserUnique(tx, &user); err != nil {
		return nil, err
	}

	if existing != nil {
		user.TokenVersion = existing.TokenVersion
		if passwordChanged || (existing.Estado && !user.Estado) || existing.Rol != user.Rol {
			user.TokenVersion++
			h.logger.Info("user sessions revoked", "user_id", user.ID)
		}
	} else {
		user.TokenVersion = 0
	}

	return encodeEntity(&user)
}

// applyUserDefaults fills estado and rol the client left out: active standard users on create, the stored
// values on update.
func applyUserDefaults(user *domain.User, body store.Record, existing *domain.User) {
	if !has(body, "estado") {
		user.Estado = existing == nil || existing.Estado
	}
	if !has(body, "rol") {
		if existing != nil {
			user.Rol = existing.Rol
		} else {
			user.Rol = domain.RoleUser
		}
	}
}

// resolvePassword hashes a newly supplied password in place. A missing or empty password, or one equal to the
// stored hash, keeps the stored hash. New users must supply one.
func resolvePassword(user *domain.User, body store.Record, existing *domain.User) (bool, error) {
	plain, _ := body["contrasena"].(string)
	if !has(body, "contrasena") || plain == "" || (existing != nil && plain == existing.Contrasena) {
		if existing == nil {
			return false, validate.Var("contrasena", "", "required")
		}
		user.Contrasena = existing.Contrasena
		return false, nil
	}

	if len(plain) < domain.MinPasswordLength {
		return false, domainerrors.ValidationWithDetails(validation.MsgInvalidData, map[string]string{
			"contrasena": "must be at least 6 characters",
		})
	}
	hash, err := auth.HashPassword(plain)
	if err != nil {
		return false, domainerrors.Validation(validation.MsgInvalidData).WithCause(err)
	}
	user.Contrasena = hash
	return true, nil
}

// checkUserUnique rejects a cedula or correo already used by another user.
func checkUserUnique(tx store.Tx, user *domain.User) error {
	users, err := tx.List(domain.Usuarios)
	if err != nil {
		return err
	}
	for _, other := range users {
		if other.ID() == user.ID {
			continue
		}
		if cedula, _ := other["cedula"].(string); strings.TrimSpace(cedula) == user.Cedula {
			return domainerrors.DuplicateIdentity(MsgDuplicateCedula)
		}
		if correo, _ := other["correo"].(string); domain.NormalizeEmail(correo) == user.Correo {
			return domainerrors.DuplicateIdentity(MsgDuplicateCorreo)
		}
	}
	return nil
}

// beforeDelete refuses to delete a user any rental belongs to. Cascading the rentals first removes them.
func (h *UserHooks) beforeDelete(tx store.Tx, rec store.Record) error {
	rentals, err := rentalsWhere(tx, func(r *domain.Rental) bool { return r.OwnedBy(rec.ID()) })
	if err != nil {
		return err
	}
	return refusal(rentals, MsgUserHasRentals, MsgUserHasHistory)
}

// loadUser reads and decodes one user inside tx.
func loadUser(tx store.Tx, userID string) (*domain.User, error) {
	rec, err := tx.Get(domain.Usuarios, userID)
	if err != nil {
		return nil, err
	}
	var user domain.User
	if err := store.Decode(rec, &user); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode stored user")
	}
	return &user, nil
}
