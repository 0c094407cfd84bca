package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	"github.com/alquilibros/alquilibros-server/internal/service"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          registerPath,
		Summary:       "Register new user",
		Description:   "Creates an active standard user account and returns a session token",
		Tags:          []string{"Authentication"},
		DefaultStatus: http.StatusCreated,
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        loginPath,
		Summary:     "User login",
		Description: "Authenticates a user by email and password and returns a session token",
		Tags:        []string{"Authentication"},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/api/auth/me",
		Summary:     "Current token",
		Description: "Returns the claims of the presented token",
		Tags:        []string{"Authentication"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMe)

	huma.Register(s.api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/api/auth/logout",
		Summary:       "Logout",
		Description:   "Revokes every token of the caller",
		Tags:          []string{"Authentication"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleLogout)
}

// === DTOs ===

// RegisterRequest is the request body for user registration. Required fields are checked by the service so
// the error names every missing one.
type RegisterRequest struct {
	_                struct{} `json:"-" additionalProperties:"true"`
	Cedula           string   `json:"cedula,omitempty" maxLength:"32" doc:"National id number"`
	NombreCompleo    string   `json:"nombreCompleo,omitempty" maxLength:"120" doc:"Given names"`
	ApellidoCompleto string   `json:"apellidoCompleto,omitempty" maxLength:"120" doc:"Surnames"`
	Telefono         string   `json:"telefono,omitempty" maxLength:"32" doc:"Phone number"`
	Dirreccion       string   `json:"dirreccion,omitempty" maxLength:"255" doc:"Postal address"`
	Correo           string   `json:"correo,omitempty" maxLength:"254" doc:"Email address"`
	Contrasena       string   `json:"contrasena,omitempty" maxLength:"1024" doc:"Password, at least 6 characters"`
}

// RegisterInput wraps the register request for Huma.
type RegisterInput struct {
	Body RegisterRequest
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	_          struct{} `json:"-" additionalProperties:"true"`
	Correo     string   `json:"correo,omitempty" maxLength:"254" doc:"User email"`
	Contrasena string   `json:"contrasena,omitempty" maxLength:"1024" doc:"User password"`
}

// LoginInput wraps the login request for Huma.
type LoginInput struct {
	Body LoginRequest
}

// AuthOutput wraps the session for Huma.
type AuthOutput struct {
	Body *service.Session
}

// MeResponse wraps the decoded claims.
type MeResponse struct {
	User *auth.Claims `json:"user" doc:"Claims of the presented token"`
}

// MeOutput wraps the me response for Huma.
type MeOutput struct {
	Body MeResponse
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
	req := input.Body
	body := store.Record{
		"cedula":           req.Cedula,
		"nombreCompleo":    req.NombreCompleo,
		"apellidoCompleto": req.ApellidoCompleto,
		"telefono":         req.Telefono,
		"dirreccion":       req.Dirreccion,
		"correo":           req.Correo,
		"contrasena":       req.Contrasena,
	}

	session, err := s.services.Auth.Register(ctx, body)
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: session}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	session, err := s.services.Auth.Login(ctx, input.Body.Correo, input.Body.Contrasena)
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: session}, nil
}

func (s *Server) handleMe(ctx context.Context, _ *struct{}) (*MeOutput, error) {
	claims, err := RequireClaims(ctx)
	if err != nil {
		return nil, err
	}
	return &MeOutput{Body: MeResponse{User: claims}}, nil
}

func (s *Server) handleLogout(ctx context.Context, _ *struct{}) (*struct{}, error) {
	claims, err := RequireClaims(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Auth.Logout(ctx, claims); err != nil {
		return nil, err
	}
	return nil, nil
}
