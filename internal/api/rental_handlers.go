package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerRentalRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "extendRental",
		Method:      http.MethodPost,
		Path:        "/api/alquileres/{id}/extender",
		Summary:     "Extend rental",
		Description: "Moves the end date of an active rental by the given number of days. Admin only.",
		Tags:        []string{"Rentals"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleExtendRental)

	huma.Register(s.api, huma.Operation{
		OperationID: "returnRental",
		Method:      http.MethodPost,
		Path:        "/api/alquileres/{id}/devolver",
		Summary:     "Return rental",
		Description: "Closes an active rental and makes its books available again. Owner or admin.",
		Tags:        []string{"Rentals"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleReturnRental)
}

// ExtendRentalRequest is the request body of an extension.
type ExtendRentalRequest struct {
	Dias int `json:"dias" doc:"Days to add to fechaFin, at least 1"`
}

// ExtendRentalInput wraps the extension for Huma.
type ExtendRentalInput struct {
	ID   string `path:"id" doc:"Rental ID"`
	Body ExtendRentalRequest
}

// RentalIDInput identifies a rental.
type RentalIDInput struct {
	ID string `path:"id" doc:"Rental ID"`
}

func (s *Server) handleExtendRental(ctx context.Context, input *ExtendRentalInput) (*RecordOutput, error) {
	claims, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	rental, err := s.services.Rentals.Extend(ctx, claims, input.ID, input.Body.Dias)
	if err != nil {
		return nil, err
	}
	return &RecordOutput{Body: rental}, nil
}

func (s *Server) handleReturnRental(ctx context.Context, input *RentalIDInput) (*RecordOutput, error) {
	claims, err := RequireClaims(ctx)
	if err != nil {
		return nil, err
	}
	rental, err := s.services.Rentals.Return(ctx, claims, input.ID)
	if err != nil {
		return nil, err
	}
	return &RecordOutput{Body: rental}, nil
}
