package service

import (
	"context"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/query"
	"github.com/alquilibros/alquilibros-server/internal/store"
	"github.com/alquilibros/alquilibros-server/internal/validation"
)

// Messages of rental errors.
const (
	MsgBookUnavailable  = "Libro no disponible"
	MsgBookNotFound     = "Libro no encontrado"
	MsgUserNotFound     = "Usuario no encontrado"
	MsgRentalReturned   = "El alquiler ya fue devuelto."
	MsgRentalInactive   = "El alquiler no está activo."
	MsgRentalNotFound   = "Alquiler no encontrado"
	MsgInvalidExtension = "La cantidad de días debe ser al menos 1."
)

// RentalHooks keep book availability consistent with rentals. Every change to a rental's book set or active
// state reserves and releases books in the same transaction.
type RentalHooks struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewRentalHooks creates the alquileres hooks.
func NewRentalHooks(logger *slog.Logger) *RentalHooks {
	return &RentalHooks{now: time.Now, logger: logger}
}

// Hooks returns the hook set to register for domain.Alquileres.
func (h *RentalHooks) Hooks() Hooks {
	return Hooks{
		Prepare:      h.prepare,
		BeforeDelete: h.beforeDelete,
	}
}

func (h *RentalHooks) prepare(tx store.Tx, c *Change) (store.Record, error) {
	var rental domain.Rental
	if err := decodeRecord(c.Record, c.Body, &rental); err != nil {
		return nil, err
	}

	var existing *domain.Rental
	if c.Existing != nil {
		existing = &domain.Rental{}
		if err := store.Decode(c.Existing, existing); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode stored rental")
		}
		rental.ID = c.Existing.ID()
	}

	if rental.FechaInicio == "" {
		rental.FechaInicio = domain.FormatDate(h.now())
	}
	if !has(c.Body, "estado") {
		rental.Estado = existing == nil || existing.Estado
	}

	if err := validate.Validate(&rental); err != nil {
		return nil, err
	}
	if err := rental.CheckDates(); err != nil {
		return nil, domainerrors.ValidationWithDetails(validation.MsgInvalidData, map[string]string{
			"fechaFin": "must not be before fechaInicio",
		})
	}
	if _, err := tx.Get(domain.Usuarios, rental.UsuarioID.String()); err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound(MsgUserNotFound)
		}
		return nil, err
	}

	if err := h.reconcile(tx, heldBooks(existing), heldBooks(&rental)); err != nil {
		return nil, err
	}
	return encodeEntity(&rental)
}

func (h *RentalHooks) beforeDelete(tx store.Tx, rec store.Record) error {
	var rental domain.Rental
	if err := store.Decode(rec, &rental); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "decode stored rental")
	}
	return h.reconcile(tx, heldBooks(&rental), nil)
}

// heldBooks returns the books a rental keeps unavailable: all of them while active, none otherwise.
func heldBooks(r *domain.Rental) []string {
	if r == nil || !r.Estado {
		return nil
	}
	return r.BookIDs()
}

// reconcile releases the books in before but not after, then reserves the books in after but not before.
// Reserved books must exist and be available. Released books that no longer exist are skipped.
func (h *RentalHooks) reconcile(tx store.Tx, before, after []string) error {
	for _, bookID := range before {
		if slices.Contains(after, bookID) {
			continue
		}
		book, err := tx.Get(domain.Libros, bookID)
		if domainerrors.Is(err, store.ErrNotFound) {
			h.logger.Warn("rented book no longer exists", "book_id", bookID)
			continue
		}
		if err != nil {
			return err
		}
		book["disponible"] = true
		if err := tx.Put(domain.Libros, book); err != nil {
			return err
		}
	}

	for _, bookID := range after {
		if slices.Contains(before, bookID) {
			continue
		}
		book, err := tx.Get(domain.Libros, bookID)
		if domainerrors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound(MsgBookNotFound).WithDetails(map[string]string{"libroId": bookID})
		}
		if err != nil {
			return err
		}
		if available, _ := book["disponible"].(bool); !available {
			return domainerrors.Conflict(MsgBookUnavailable).WithDetails(map[string]string{"libroId": bookID})
		}
		book["disponible"] = false
		if err := tx.Put(domain.Libros, book); err != nil {
			return err
		}
	}
	return nil
}

// rentalsWhere returns the rentals accepted by match, returned ones included.
func rentalsWhere(tx store.Tx, match func(*domain.Rental) bool) ([]*domain.Rental, error) {
	records, err := tx.List(domain.Alquileres)
	if err != nil {
		return nil, err
	}
	var out []*domain.Rental
	for _, rec := range records {
		var r domain.Rental
		if err := store.Decode(rec, &r); err != nil {
			// Hand-edited documents may hold malformed rentals; they hold no books.
			continue
		}
		r.ID = rec.ID()
		if match(&r) {
			out = append(out, &r)
		}
	}
	return out, nil
}

// refusal picks the conflict for deleting a record the rentals still reference: active holds take
// precedence over history. nil when nothing references it.
func refusal(rentals []*domain.Rental, activeMsg, historyMsg string) error {
	if len(rentals) == 0 {
		return nil
	}
	if slices.ContainsFunc(rentals, func(r *domain.Rental) bool { return r.Estado }) {
		return domainerrors.Conflict(activeMsg)
	}
	// Ids are reissued from max+1, so a returned rental must not outlive what it points at.
	return domainerrors.Conflict(historyMsg)
}

// RentalService exposes the rental workflow with per-caller access rules.
type RentalService struct {
	records *RecordService
	logger  *slog.Logger
}

// NewRentalService creates a rental service over the shared record service.
func NewRentalService(records *RecordService, logger *slog.Logger) *RentalService {
	return &RentalService{records: records, logger: logger}
}

// List returns every rental to admins and only their own to other users.
func (s *RentalService) List(ctx context.Context, claims *auth.Claims, values url.Values) (query.Result, error) {
	if claims == nil {
		return query.Result{}, domainerrors.ErrMissingToken
	}
	var scope func(store.Record) bool
	if !claims.IsAdmin() {
		scope = func(rec store.Record) bool { return refMatches(rec["usuarioId"], claims.ID) }
	}
	return s.records.FindWhere(ctx, domain.Alquileres, values, scope)
}

// Get returns a rental to its owner or an admin.
func (s *RentalService) Get(ctx context.Context, claims *auth.Claims, id string) (store.Record, error) {
	rec, err := s.records.Get(ctx, domain.Alquileres, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeRental(claims, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Create rents books to the caller. usuarioId is always the caller's.
func (s *RentalService) Create(ctx context.Context, claims *auth.Claims, body store.Record) (store.Record, error) {
	if claims == nil {
		return nil, domainerrors.ErrMissingToken
	}
	if len(body) == 0 {
		return nil, domainerrors.ErrInvalidBody
	}
	body = body.Clone()
	userID, err := store.ParseID(claims.ID)
	if err != nil {
		return nil, domainerrors.ErrInvalidToken.WithCause(err)
	}
	body["usuarioId"] = float64(userID)

	rec, err := s.records.Create(ctx, domain.Alquileres, body)
	if err != nil {
		return nil, err
	}
	s.logger.Info("rental created", "rental_id", rec.ID(), "user_id", claims.ID, "books", rec["librosIds"])
	return rec, nil
}

// Replace is an administrative edit; book changes are reconciled.
func (s *RentalService) Replace(ctx context.Context, claims *auth.Claims, id string, body store.Record) (store.Record, error) {
	if err := requireAdmin(claims); err != nil {
		return nil, err
	}
	return s.records.Replace(ctx, domain.Alquileres, id, body)
}

// Patch is the partial form of Replace.
func (s *RentalService) Patch(ctx context.Context, claims *auth.Claims, id string, body store.Record) (store.Record, error) {
	if err := requireAdmin(claims); err != nil {
		return nil, err
	}
	return s.records.Patch(ctx, domain.Alquileres, id, body)
}

// Delete removes a rental, releasing its books when it was active.
func (s *RentalService) Delete(ctx context.Context, claims *auth.Claims, id string) (store.Record, error) {
	rec, err := s.records.DeleteChecked(ctx, domain.Alquileres, id, nil, func(existing store.Record) error {
		return authorizeRental(claims, existing)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("rental deleted", "rental_id", id, "by", claims.ID)
	return rec, nil
}

// Return closes an active rental and releases its books.
func (s *RentalService) Return(ctx context.Context, claims *auth.Claims, id string) (store.Record, error) {
	return s.records.Modify(ctx, domain.Alquileres, id, func(existing store.Record) (store.Record, error) {
		if err := authorizeRental(claims, existing); err != nil {
			return nil, err
		}
		if active, _ := existing["estado"].(bool); !active {
			return nil, domainerrors.Conflict(MsgRentalReturned)
		}
		return store.Record{"estado": false}, nil
	})
}

// Extend moves the end date of an active rental by dias calendar days.
func (s *RentalService) Extend(ctx context.Context, claims *auth.Claims, id string, dias int) (store.Record, error) {
	if err := requireAdmin(claims); err != nil {
		return nil, err
	}
	if dias < 1 {
		return nil, domainerrors.ValidationWithDetails(MsgInvalidExtension, map[string]string{"dias": "must be at least 1"})
	}

	found := false
	rec, err := s.records.Modify(ctx, domain.Alquileres, id, func(existing store.Record) (store.Record, error) {
		found = true
		if active, _ := existing["estado"].(bool); !active {
			return nil, domainerrors.Conflict(MsgRentalInactive)
		}
		fechaFin, _ := existing["fechaFin"].(string)
		extended, err := domain.AddDays(fechaFin, dias)
		if err != nil {
			return nil, domainerrors.ValidationWithDetails(validation.MsgInvalidData, map[string]string{
				"fechaFin": "is not a valid date",
			})
		}
		return store.Record{"fechaFin": extended}, nil
	})
	if err != nil {
		if !found && domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound(MsgRentalNotFound)
		}
		return nil, err
	}
	s.logger.Info("rental extended", "rental_id", id, "dias", dias, "fecha_fin", rec["fechaFin"])
	return rec, nil
}

// authorizeRental allows the rental's owner and admins.
func authorizeRental(claims *auth.Claims, rec store.Record) error {
	if claims == nil {
		return domainerrors.ErrMissingToken
	}
	if claims.IsAdmin() || refMatches(rec["usuarioId"], claims.ID) {
		return nil
	}
	return domainerrors.ErrForbidden
}

func requireAdmin(claims *auth.Claims) error {
	if claims == nil {
		return domainerrors.ErrMissingToken
	}
	if !claims.IsAdmin() {
		return domainerrors.ErrForbidden
	}
	return nil
}
