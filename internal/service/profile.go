package service

import (
	"context"
	"log/slog"
	"slices"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

// MsgNoProfileFields is returned when a profile update carries nothing editable.
const MsgNoProfileFields = "No hay campos válidos para actualizar."

// ProfileService lets users read and edit their own account.
type ProfileService struct {
	records *RecordService
	logger  *slog.Logger
}

// NewProfileService creates a profile service.
func NewProfileService(records *RecordService, logger *slog.Logger) *ProfileService {
	return &ProfileService{records: records, logger: logger}
}

// Get returns the caller's own user record.
func (s *ProfileService) Get(ctx context.Context, claims *auth.Claims, id string) (store.Record, error) {
	if err := requireSelf(claims, id); err != nil {
		return nil, err
	}
	return s.records.Get(ctx, domain.Usuarios, id)
}

// Update applies the editable fields of body to the caller's account. Other fields are dropped. Changing the
// password revokes every token of the user, the current one included.
func (s *ProfileService) Update(ctx context.Context, claims *auth.Claims, id string, body store.Record) (store.Record, error) {
	if err := requireSelf(claims, id); err != nil {
		return nil, err
	}

	changes := make(store.Record, len(body))
	for k, v := range body {
		if slices.Contains(domain.ProfileFields, k) {
			changes[k] = v
		}
	}
	if len(changes) == 0 {
		return nil, domainerrors.Validation(MsgNoProfileFields)
	}

	rec, err := s.records.Patch(ctx, domain.Usuarios, id, changes)
	if err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", "user_id", id)
	return rec, nil
}

// requireSelf allows only the user the record belongs to. Admins are not exempt.
func requireSelf(claims *auth.Claims, id string) error {
	if claims == nil {
		return domainerrors.ErrMissingToken
	}
	if claims.ID != id {
		return domainerrors.ErrForbidden
	}
	return nil
}
