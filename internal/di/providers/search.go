package providers

import (
	"context"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/alquilibros/alquilibros-server/internal/search"
	"github.com/alquilibros/alquilibros-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the in-memory Bleve index over libros.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	log := do.MustInvoke[*slog.Logger](i)

	index, err := search.NewIndex(log)
	if err != nil {
		return nil, err
	}
	return &SearchIndexHandle{Index: index}, nil
}

// RebuildSearchIndex fills the index from the store. The index lives in memory, so this runs on every start.
func RebuildSearchIndex(i do.Injector) error {
	services := do.MustInvoke[*service.Services](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*slog.Logger](i)

	if err := services.Search.Rebuild(context.Background()); err != nil {
		return err
	}

	docCount, _ := indexHandle.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)
	return nil
}
