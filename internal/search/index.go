package search

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/alquilibros/alquilibros-server/internal/store"
)

// Index is an in-memory Bleve index of books. The catalogue is small and the store is the source of truth, so
// the index is rebuilt from the store at start and after external reloads instead of being persisted.
//
// All methods are safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	logger *slog.Logger
}

// NewIndex creates an empty index.
func NewIndex(logger *slog.Logger) (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: index, logger: logger}, nil
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

// Upsert indexes or re-indexes one book record.
func (i *Index) Upsert(rec store.Record) error {
	doc := DocumentFromRecord(rec)
	if doc.ID == "" {
		return fmt.Errorf("book record has no id")
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Index(doc.ID, doc.toMap())
}

// Delete removes a book from the index. Unknown ids are ignored.
func (i *Index) Delete(id string) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.Delete(id)
}

// Rebuild replaces the whole index with records. Searches running meanwhile see the old index.
func (i *Index) Rebuild(records []store.Record) error {
	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	batch := fresh.NewBatch()
	for _, rec := range records {
		doc := DocumentFromRecord(rec)
		if doc.ID == "" {
			continue
		}
		if err := batch.Index(doc.ID, doc.toMap()); err != nil {
			fresh.Close()
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		fresh.Close()
		return fmt.Errorf("commit batch: %w", err)
	}

	i.mu.Lock()
	old := i.index
	i.index = fresh
	i.mu.Unlock()

	if err := old.Close(); err != nil {
		i.logger.Warn("failed to close previous search index", "error", err)
	}
	i.logger.Debug("rebuilt search index", "books", len(records))
	return nil
}

// DocumentCount returns the number of indexed books.
func (i *Index) DocumentCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}
