package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/alquilibros/alquilibros-server/internal/store"
)

func (s *Server) registerProfileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getProfile",
		Method:      http.MethodGet,
		Path:        "/api/usuarios/{id}",
		Summary:     "Get own profile",
		Description: "Returns the caller's user record without secrets. Only the account owner may read it.",
		Tags:        []string{"Profile"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateProfile",
		Method:      http.MethodPatch,
		Path:        "/api/usuarios/{id}",
		Summary:     "Update own profile",
		Description: "Updates nombreCompleo, apellidoCompleto, telefono, dirreccion, correo and contrasena. " +
			"Other fields are ignored. A new password signs out every session.",
		Tags:     []string{"Profile"},
		Security: []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateProfile)
}

// ProfileIDInput identifies a user.
type ProfileIDInput struct {
	ID string `path:"id" doc:"User ID"`
}

// UpdateProfileInput carries the fields to change.
type UpdateProfileInput struct {
	ID   string `path:"id" doc:"User ID"`
	Body map[string]any
}

// RecordOutput wraps a single record for Huma.
type RecordOutput struct {
	Body store.Record
}

func (s *Server) handleGetProfile(ctx context.Context, input *ProfileIDInput) (*RecordOutput, error) {
	claims, err := RequireSelf(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	user, err := s.services.Profile.Get(ctx, claims, input.ID)
	if err != nil {
		return nil, err
	}
	return &RecordOutput{Body: user}, nil
}

func (s *Server) handleUpdateProfile(ctx context.Context, input *UpdateProfileInput) (*RecordOutput, error) {
	claims, err := RequireSelf(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	user, err := s.services.Profile.Update(ctx, claims, input.ID, store.Record(input.Body))
	if err != nil {
		return nil, err
	}
	return &RecordOutput{Body: user}, nil
}
