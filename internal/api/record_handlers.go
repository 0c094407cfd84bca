package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/http/response"
	"github.com/alquilibros/alquilibros-server/internal/query"
	"github.com/alquilibros/alquilibros-server/internal/service"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

// maxBodySize bounds record bodies.
const maxBodySize = 1 << 20

// guard authorizes a request before a handler runs.
type guard func(ctx context.Context) (*auth.Claims, error)

// public lets anyone through.
func public(ctx context.Context) (*auth.Claims, error) {
	return ClaimsFrom(ctx), nil
}

// registerRecordRoutes mounts the json-server style collection endpoints. These are raw chi handlers: bodies
// are arbitrary JSON objects and list queries take arbitrary filter parameters.
//
//	libros       reads public, writes admin
//	usuarios     list, create, replace and delete admin; GET/PATCH by id are the profile operations
//	alquileres   scoped to the caller, see RentalService
func (s *Server) registerRecordRoutes() {
	s.router.Get("/api/libros", s.guarded(public, s.handleListRecords(domain.Libros)))
	s.router.Post("/api/libros", s.guarded(RequireAdmin, s.handleCreateRecord(domain.Libros)))
	s.router.Get("/api/libros/{id}", s.guarded(public, s.handleGetRecord(domain.Libros)))
	s.router.Put("/api/libros/{id}", s.guarded(RequireAdmin, s.handleReplaceRecord(domain.Libros)))
	s.router.Patch("/api/libros/{id}", s.guarded(RequireAdmin, s.handlePatchRecord(domain.Libros)))
	s.router.Delete("/api/libros/{id}", s.guarded(RequireAdmin, s.handleDeleteRecord(domain.Libros)))

	s.router.Get("/api/usuarios", s.guarded(RequireAdmin, s.handleListRecords(domain.Usuarios)))
	s.router.Post("/api/usuarios", s.guarded(RequireAdmin, s.handleCreateRecord(domain.Usuarios)))
	s.router.Put("/api/usuarios/{id}", s.guarded(RequireAdmin, s.handleReplaceRecord(domain.Usuarios)))
	s.router.Delete("/api/usuarios/{id}", s.guarded(RequireAdmin, s.handleDeleteRecord(domain.Usuarios)))

	s.router.Get("/api/alquileres", s.guarded(RequireClaims, s.handleListRentals))
	s.router.Post("/api/alquileres", s.guarded(RequireClaims, s.handleCreateRental))
	s.router.Get("/api/alquileres/{id}", s.guarded(RequireClaims, s.handleGetRental))
	s.router.Put("/api/alquileres/{id}", s.guarded(RequireAdmin, s.handleReplaceRental))
	s.router.Patch("/api/alquileres/{id}", s.guarded(RequireAdmin, s.handlePatchRental))
	s.router.Delete("/api/alquileres/{id}", s.guarded(RequireClaims, s.handleDeleteRental))
}

// claimsHandler is a handler that runs after its guard passed.
type claimsHandler func(w http.ResponseWriter, r *http.Request, claims *auth.Claims)

func (s *Server) guarded(g guard, h claimsHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := g(r.Context())
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		h(w, r, claims)
	}
}

// readRecord decodes the request body as a non-empty JSON object.
func readRecord(w http.ResponseWriter, r *http.Request) (store.Record, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, domainerrors.ErrInvalidBody.WithCause(err)
	}
	return service.ParseBody(data)
}

// dependents reads ?_dependent=a,b (or repeated) for cascading deletes.
func dependents(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["_dependent"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func (s *Server) writeResult(w http.ResponseWriter, res query.Result) {
	if res.Page != nil {
		if res.Page.Data == nil {
			res.Page.Data = []store.Record{}
		}
		response.List(w, res.Page, res.Total, s.logger)
		return
	}
	items := res.Items
	if items == nil {
		items = []store.Record{}
	}
	response.List(w, items, res.Total, s.logger)
}

// === Generic collections ===

func (s *Server) handleListRecords(collection string) claimsHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		res, err := s.services.Records.Find(r.Context(), collection, r.URL.Query())
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		s.writeResult(w, res)
	}
}

func (s *Server) handleGetRecord(collection string) claimsHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		rec, err := s.services.Records.Get(r.Context(), collection, chi.URLParam(r, "id"))
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		response.Success(w, rec, s.logger)
	}
}

func (s *Server) handleCreateRecord(collection string) claimsHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		body, err := readRecord(w, r)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		rec, err := s.services.Records.Create(r.Context(), collection, body)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		response.Created(w, rec, s.logger)
	}
}

func (s *Server) handleReplaceRecord(collection string) claimsHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		body, err := readRecord(w, r)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		rec, err := s.services.Records.Replace(r.Context(), collection, chi.URLParam(r, "id"), body)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		response.Success(w, rec, s.logger)
	}
}

func (s *Server) handlePatchRecord(collection string) claimsHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		body, err := readRecord(w, r)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		rec, err := s.services.Records.Patch(r.Context(), collection, chi.URLParam(r, "id"), body)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		response.Success(w, rec, s.logger)
	}
}

func (s *Server) handleDeleteRecord(collection string) claimsHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		rec, err := s.services.Records.Delete(r.Context(), collection, chi.URLParam(r, "id"), dependents(r))
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		response.Success(w, rec, s.logger)
	}
}

// === Rentals ===

func (s *Server) handleListRentals(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	res, err := s.services.Rentals.List(r.Context(), claims, r.URL.Query())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleGetRental(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	rental, err := s.services.Rentals.Get(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, rental, s.logger)
}

func (s *Server) handleCreateRental(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	body, err := readRecord(w, r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	rental, err := s.services.Rentals.Create(r.Context(), claims, body)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, rental, s.logger)
}

func (s *Server) handleReplaceRental(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	body, err := readRecord(w, r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	rental, err := s.services.Rentals.Replace(r.Context(), claims, chi.URLParam(r, "id"), body)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, rental, s.logger)
}

func (s *Server) handlePatchRental(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	body, err := readRecord(w, r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	rental, err := s.services.Rentals.Patch(r.Context(), claims, chi.URLParam(r, "id"), body)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, rental, s.logger)
}

func (s *Server) handleDeleteRental(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	rental, err := s.services.Rentals.Delete(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, rental, s.logger)
}
