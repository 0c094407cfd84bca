// Package service implements the rental API's use cases on top of the record store: the collection-agnostic
// record service with per-collection hooks, authentication, profiles, the book catalogue and the rental
// workflow.
package service

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/alquilibros/alquilibros-server/internal/auth"
	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/search"
	"github.com/alquilibros/alquilibros-server/internal/store"
	"github.com/alquilibros/alquilibros-server/internal/validation"
)

// validate is the shared validator instance.
var validate = validation.New()

// ParseBody decodes a request body that must be a non-empty JSON object. Arrays, primitives, null and {} are
// rejected with InvalidBody.
func ParseBody(data []byte) (store.Record, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, domainerrors.ErrInvalidBody.WithCause(err)
	}
	obj, ok := v.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil, domainerrors.ErrInvalidBody
	}
	return store.Record(obj), nil
}

// mapStoreError translates store errors into domain errors. Other errors pass through.
func mapStoreError(err error) error {
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		return err
	}
	switch storeErr.HTTPCode() {
	case http.StatusNotFound:
		return domainerrors.NotFound(domainerrors.MsgNotFound).WithCause(err)
	case http.StatusBadRequest:
		return domainerrors.Validation(storeErr.Message).WithCause(err)
	}
	return err
}

// decodeRecord converts a record into a typed entity. Unknown members listed in body are rejected and type
// mismatches are reported per field; both are validation errors.
func decodeRecord(rec, body store.Record, v any) error {
	if unknown := unknownFields(body, v); len(unknown) > 0 {
		details := make(map[string]string, len(unknown))
		for _, f := range unknown {
			details[f] = "is not a known field"
		}
		return domainerrors.ValidationWithDetails(validation.MsgInvalidData, details)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		var semErr *json.SemanticError
		if errors.As(err, &semErr) {
			field := strings.TrimPrefix(string(semErr.JSONPointer), "/")
			if i := strings.IndexByte(field, '/'); i > 0 {
				field = field[:i]
			}
			if field == "" {
				field = "body"
			}
			return domainerrors.ValidationWithDetails(validation.MsgInvalidData, map[string]string{
				field: "has the wrong type",
			})
		}
		return domainerrors.ErrInvalidBody.WithCause(err)
	}
	return nil
}

// unknownFields returns the keys of body that are not JSON fields of the struct v points to.
func unknownFields(body store.Record, v any) []string {
	known := jsonFields(reflect.TypeOf(v).Elem())
	var out []string
	for k := range body {
		if !known[k] {
			out = append(out, k)
		}
	}
	return out
}

func jsonFields(t reflect.Type) map[string]bool {
	fields := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		fields[name] = true
	}
	return fields
}

// encodeEntity converts a typed entity back into a record, keeping only its declared fields.
func encodeEntity(v any) (store.Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	return store.Unmarshal(data)
}

// has reports whether the client sent key.
func has(body store.Record, key string) bool {
	_, ok := body[key]
	return ok
}

// Options tune the services built by New.
type Options struct {
	PerPage int
	YearMin int
	YearMax int
}

// Services bundles every use case of the API over one store.
type Services struct {
	Records *RecordService
	Auth    *AuthService
	Profile *ProfileService
	Rentals *RentalService
	Search  *SearchService
}

// New wires the record service with the hooks of every collection and builds the services on top of it.
func New(st store.Store, tokens *auth.TokenService, index *search.Index, opts Options, logger *slog.Logger) *Services {
	records := NewRecordService(st, opts.PerPage, logger)
	records.Register(domain.Usuarios, NewUserHooks(logger).Hooks())
	records.Register(domain.Libros, NewBookHooks(opts.YearMin, opts.YearMax, index, logger).Hooks())
	records.Register(domain.Alquileres, NewRentalHooks(logger).Hooks())

	return &Services{
		Records: records,
		Auth:    NewAuthService(records, tokens, logger),
		Profile: NewProfileService(records, logger),
		Rentals: NewRentalService(records, logger),
		Search:  NewSearchService(st, index, logger),
	}
}
