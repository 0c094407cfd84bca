package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/query"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

// Op identifies a committed mutation.
type Op string

// Mutation kinds passed to Hooks.AfterCommit.
const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes a write about to happen inside a transaction.
type Change struct {
	Collection string
	// Body is what the client sent.
	Body store.Record
	// Record is the candidate: the body on create and replace, existing merged with the body on patch.
	Record store.Record
	// Existing is the stored record, nil on create.
	Existing store.Record
}

// Hooks customize one collection. Every hook is optional.
type Hooks struct {
	// Prepare validates and normalizes the candidate record and may touch other records in the same
	// transaction. The returned record is what gets stored.
	Prepare func(tx store.Tx, c *Change) (store.Record, error)
	// BeforeDelete runs inside the delete transaction, before removal.
	BeforeDelete func(tx store.Tx, rec store.Record) error
	// AfterCommit runs once the transaction has committed.
	AfterCommit func(op Op, rec store.Record)
	// Present shapes a record for clients, e.g. to strip secrets.
	Present func(store.Record) store.Record
}

// committed is a mutation waiting for its transaction to commit.
type committed struct {
	collection string
	op         Op
	rec        store.Record
}

// RecordService provides json-server style CRUD over every collection of the store.
type RecordService struct {
	store          store.Store
	hooks          map[string]*Hooks
	defaultPerPage int
	logger         *slog.Logger
}

// NewRecordService creates a record service. defaultPerPage applies to _page queries without a page size.
func NewRecordService(st store.Store, defaultPerPage int, logger *slog.Logger) *RecordService {
	return &RecordService{
		store:          st,
		hooks:          make(map[string]*Hooks),
		defaultPerPage: defaultPerPage,
		logger:         logger,
	}
}

// Register installs hooks for a collection, replacing earlier ones.
func (s *RecordService) Register(collection string, h Hooks) {
	s.hooks[collection] = &h
}

// Store returns the underlying store.
func (s *RecordService) Store() store.Store {
	return s.store
}

// Has reports whether collection is served. "auth" is never a collection.
func (s *RecordService) Has(collection string) bool {
	return collection != "auth" && store.HasCollection(s.store, collection)
}

func (s *RecordService) check(collection string) error {
	if !s.Has(collection) {
		return domainerrors.NotFound(domainerrors.MsgNotFound).WithCause(store.UnknownCollectionError(collection))
	}
	return nil
}

func (s *RecordService) hooksFor(collection string) *Hooks {
	if h, ok := s.hooks[collection]; ok {
		return h
	}
	return &Hooks{}
}

// Present applies the collection's Present hook.
func (s *RecordService) Present(collection string, rec store.Record) store.Record {
	if h := s.hooksFor(collection); h.Present != nil && rec != nil {
		return h.Present(rec)
	}
	return rec
}

func (s *RecordService) presentAll(collection string, records []store.Record) []store.Record {
	out := make([]store.Record, len(records))
	for i, r := range records {
		out[i] = s.Present(collection, r)
	}
	return out
}

// update runs fn in a write transaction and fires AfterCommit hooks for what it recorded once committed.
func (s *RecordService) update(ctx context.Context, fn func(tx store.Tx, record func(collection string, op Op, rec store.Record)) error) error {
	var events []committed
	err := s.store.Update(ctx, func(tx store.Tx) error {
		events = events[:0]
		return fn(tx, func(collection string, op Op, rec store.Record) {
			events = append(events, committed{collection: collection, op: op, rec: rec})
		})
	})
	if err != nil {
		return mapStoreError(err)
	}
	for _, e := range events {
		if h := s.hooksFor(e.collection); h.AfterCommit != nil {
			h.AfterCommit(e.op, e.rec)
		}
	}
	return nil
}

// Find lists a collection with json-server query semantics.
func (s *RecordService) Find(ctx context.Context, collection string, values url.Values) (query.Result, error) {
	return s.FindWhere(ctx, collection, values, nil)
}

// FindWhere is Find restricted to records accepted by scope (nil accepts all) before filtering.
func (s *RecordService) FindWhere(ctx context.Context, collection string, values url.Values, scope func(store.Record) bool) (query.Result, error) {
	if err := s.check(collection); err != nil {
		return query.Result{}, err
	}
	q, err := query.Parse(values, s.defaultPerPage)
	if err != nil {
		return query.Result{}, err
	}

	var records []store.Record
	err = s.store.View(ctx, func(tx store.Tx) error {
		var err error
		records, err = tx.List(collection)
		return err
	})
	if err != nil {
		return query.Result{}, mapStoreError(err)
	}

	if scope != nil {
		records = slices.DeleteFunc(records, func(r store.Record) bool { return !scope(r) })
	}

	// Filter on the presented form so stripped secrets cannot be probed through query parameters.
	return q.Apply(s.presentAll(collection, records)), nil
}

// Get returns one record.
func (s *RecordService) Get(ctx context.Context, collection, id string) (store.Record, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}
	var rec store.Record
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		rec, err = tx.Get(collection, id)
		return err
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return s.Present(collection, rec), nil
}

// Create validates body and stores it under the next id.
func (s *RecordService) Create(ctx context.Context, collection string, body store.Record) (store.Record, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, domainerrors.ErrInvalidBody
	}
	h := s.hooksFor(collection)

	var created store.Record
	err := s.update(ctx, func(tx store.Tx, record func(string, Op, store.Record)) error {
		candidate := body.Without(store.IDField)
		if h.Prepare != nil {
			var err error
			if candidate, err = h.Prepare(tx, &Change{Collection: collection, Body: body, Record: candidate}); err != nil {
				return err
			}
		}
		var err error
		if created, err = tx.Insert(collection, candidate); err != nil {
			return err
		}
		record(collection, OpCreate, created)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("record created", "collection", collection, "id", created.ID())
	return s.Present(collection, created), nil
}

// Replace swaps the whole record for body, keeping its id.
func (s *RecordService) Replace(ctx context.Context, collection, id string, body store.Record) (store.Record, error) {
	return s.write(ctx, collection, id, func(existing store.Record) (store.Record, store.Record, error) {
		if len(body) == 0 {
			return nil, nil, domainerrors.ErrInvalidBody
		}
		return body, body.Without(store.IDField), nil
	})
}

// Patch merges body into the record. The id cannot change.
func (s *RecordService) Patch(ctx context.Context, collection, id string, body store.Record) (store.Record, error) {
	return s.Modify(ctx, collection, id, func(store.Record) (store.Record, error) {
		return body, nil
	})
}

// Modify patches a record with the body fn derives from its stored state. fn runs inside the write
// transaction, so checks it makes on the existing record hold when the patch is written.
func (s *RecordService) Modify(ctx context.Context, collection, id string, fn func(existing store.Record) (store.Record, error)) (store.Record, error) {
	return s.write(ctx, collection, id, func(existing store.Record) (store.Record, store.Record, error) {
		body, err := fn(existing)
		if err != nil {
			return nil, nil, err
		}
		if len(body) == 0 {
			return nil, nil, domainerrors.ErrInvalidBody
		}
		merged := existing.Clone()
		for k, v := range body {
			if k != store.IDField {
				merged[k] = v
			}
		}
		return body, merged, nil
	})
}

// write loads the record, lets build produce the client body and the candidate, runs Prepare and stores the
// result under the original id.
func (s *RecordService) write(ctx context.Context, collection, id string, build func(existing store.Record) (body, candidate store.Record, err error)) (store.Record, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}
	h := s.hooksFor(collection)

	var stored store.Record
	err := s.update(ctx, func(tx store.Tx, record func(string, Op, store.Record)) error {
		existing, err := tx.Get(collection, id)
		if err != nil {
			return err
		}
		body, next, err := build(existing)
		if err != nil {
			return err
		}
		if h.Prepare != nil {
			if next, err = h.Prepare(tx, &Change{Collection: collection, Body: body, Record: next, Existing: existing}); err != nil {
				return err
			}
		}
		next[store.IDField] = existing.ID()
		if err := tx.Put(collection, next); err != nil {
			return err
		}
		stored = next
		record(collection, OpUpdate, stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Present(collection, stored), nil
}

// Delete removes a record and returns it. Each collection in dependents is cascaded first: its records
// referencing the deleted one through the foreign key ("usuarioId" for usuarios) are deleted too, running their
// own BeforeDelete hooks. Rentals also count as referencing a book listed in librosIds.
func (s *RecordService) Delete(ctx context.Context, collection, id string, dependents []string) (store.Record, error) {
	return s.DeleteChecked(ctx, collection, id, dependents, nil)
}

// DeleteChecked is Delete with a check on the stored record run inside the delete transaction, before any
// cascade. A nil check accepts every record.
func (s *RecordService) DeleteChecked(ctx context.Context, collection, id string, dependents []string, check func(existing store.Record) error) (store.Record, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}
	for _, dep := range dependents {
		if err := s.check(dep); err != nil {
			return nil, domainerrors.Validationf("Colección dependiente desconocida: %s", dep)
		}
	}

	var deleted store.Record
	err := s.update(ctx, func(tx store.Tx, record func(string, Op, store.Record)) error {
		target, err := tx.Get(collection, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(target); err != nil {
				return err
			}
		}

		for _, dep := range dependents {
			refs, err := tx.List(dep)
			if err != nil {
				return err
			}
			for _, ref := range refs {
				if !references(ref, collection, id) {
					continue
				}
				if err := s.deleteOne(tx, dep, ref, record); err != nil {
					return fmt.Errorf("cascade %s/%s: %w", dep, ref.ID(), err)
				}
			}
		}

		// Cascades may have rewritten the target (a rental releasing the book being deleted).
		if target, err = tx.Get(collection, id); err != nil {
			return err
		}
		if err := s.deleteOne(tx, collection, target, record); err != nil {
			return err
		}
		deleted = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("record deleted", "collection", collection, "id", id, "dependents", strings.Join(dependents, ","))
	return s.Present(collection, deleted), nil
}

func (s *RecordService) deleteOne(tx store.Tx, collection string, rec store.Record, record func(string, Op, store.Record)) error {
	if h := s.hooksFor(collection); h.BeforeDelete != nil {
		if err := h.BeforeDelete(tx, rec); err != nil {
			return err
		}
	}
	if err := tx.Delete(collection, rec.ID()); err != nil {
		return err
	}
	record(collection, OpDelete, rec)
	return nil
}

// references reports whether rec points at collection/id through the foreign key, or through librosIds for
// books.
func references(rec store.Record, collection, id string) bool {
	if refMatches(rec[domain.ForeignKey(collection)], id) {
		return true
	}
	if collection == domain.Libros {
		if ids, ok := rec["librosIds"].([]any); ok {
			return slices.ContainsFunc(ids, func(v any) bool { return refMatches(v, id) })
		}
	}
	return false
}

func refMatches(v any, id string) bool {
	switch t := v.(type) {
	case string:
		return t == id
	case float64:
		return store.Record{store.IDField: t}.ID() == id
	}
	return false
}
