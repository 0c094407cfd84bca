package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/alquilibros/alquilibros-server/internal/domain"
	domainerrors "github.com/alquilibros/alquilibros-server/internal/errors"
	"github.com/alquilibros/alquilibros-server/internal/search"
	"github.com/alquilibros/alquilibros-server/internal/store"
)

// MsgSearchQueryRequired is returned for a blank search.
const MsgSearchQueryRequired = "El parámetro q es obligatorio."

// SearchService answers catalogue searches from the full-text index.
type SearchService struct {
	store  store.Store
	index  *search.Index
	logger *slog.Logger
}

// NewSearchService creates a search service. Call Rebuild before serving.
func NewSearchService(st store.Store, index *search.Index, logger *slog.Logger) *SearchService {
	s := &SearchService{store: st, index: index, logger: logger}
	if r, ok := st.(store.Reloader); ok {
		r.OnReload(func() {
			if err := s.Rebuild(context.Background()); err != nil {
				logger.Error("search index rebuild after reload failed", "error", err)
			}
		})
	}
	return s
}

// Rebuild reindexes every book in the store.
func (s *SearchService) Rebuild(ctx context.Context) error {
	var books []store.Record
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		books, err = tx.List(domain.Libros)
		return err
	})
	if err != nil {
		return err
	}
	if err := s.index.Rebuild(books); err != nil {
		return err
	}
	s.logger.Info("search index rebuilt", "books", len(books))
	return nil
}

// Books returns the books matching text, best first. Books removed since indexing are skipped.
func (s *SearchService) Books(ctx context.Context, text string, limit int) ([]store.Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domainerrors.Validation(MsgSearchQueryRequired)
	}
	hits, err := s.index.Search(ctx, text, limit)
	if err != nil {
		return nil, err
	}

	out := make([]store.Record, 0, len(hits))
	err = s.store.View(ctx, func(tx store.Tx) error {
		for _, hit := range hits {
			book, err := tx.Get(domain.Libros, hit.ID)
			if domainerrors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, book)
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return out, nil
}
