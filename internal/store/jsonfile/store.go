// Package jsonfile is a store.Store persisted as a single db.json document, the layout json-server uses:
// one top-level key per collection holding an array of objects.
//
// Every committed Update rewrites the file atomically (temp file, fsync, rename). With Options.Watch the
// file is also watched with fsnotify so hand edits are picked up without a restart; the store's own writes
// are recognized by content hash and ignored.
package jsonfile

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alquilibros/alquilibros-server/internal/store"
)

// DefaultDebounce is how long the watcher waits for writes to settle before reloading.
const DefaultDebounce = 200 * time.Millisecond

// Options configures Open.
type Options struct {
	// Watch reloads the document when the file changes on disk.
	Watch bool
	// Debounce overrides DefaultDebounce.
	Debounce time.Duration
}

// Store keeps the whole document in memory and mirrors it to disk.
type Store struct {
	path   string
	logger *slog.Logger
	names  []string

	mu       sync.RWMutex
	doc      map[string][]store.Record
	extra    map[string][]store.Record // top-level keys that are not collections, written back untouched
	lastHash [sha256.Size]byte

	subMu       sync.Mutex
	subscribers []func()

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// Open loads path, creating it with empty collections when it does not exist.
func Open(path string, collections []string, logger *slog.Logger, opts Options) (*Store, error) {
	s := &Store{
		path:   filepath.Clean(path),
		logger: logger,
		names:  slices.Clone(collections),
		done:   make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.doc, s.extra = s.split(nil)
		if err := s.persist(s.doc); err != nil {
			return nil, err
		}
		logger.Info("created json document", "path", s.path)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	default:
		raw, err := store.UnmarshalDocument(data)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", s.path, err)
		}
		s.doc, s.extra = s.split(raw)
		s.lastHash = sha256.Sum256(data)
	}

	if opts.Watch {
		debounce := opts.Debounce
		if debounce <= 0 {
			debounce = DefaultDebounce
		}
		if err := s.watch(debounce); err != nil {
			return nil, err
		}
	}

	logger.Debug("json store opened", "path", s.path, "watch", opts.Watch)
	return s, nil
}

// split separates known collections from other top-level keys, sorting each collection by id.
func (s *Store) split(raw map[string][]store.Record) (doc, extra map[string][]store.Record) {
	doc = make(map[string][]store.Record, len(s.names))
	for _, name := range s.names {
		records := raw[name]
		store.SortByID(records)
		doc[name] = records
	}
	for name, records := range raw {
		if slices.Contains(s.names, name) {
			continue
		}
		if extra == nil {
			extra = make(map[string][]store.Record)
		}
		extra[name] = records
	}
	return doc, extra
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(store.NewDocTx(s.names, s.doc, false))
}

// Update implements store.Store. The document is written before the new state becomes visible; a failed
// write leaves both memory and disk unchanged.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := store.NewDocTx(s.names, s.doc, true)
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.Dirty() {
		return nil
	}

	next := tx.Result()
	if err := s.persist(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// persist writes doc atomically. Callers hold mu (or own s exclusively).
func (s *Store) persist(doc map[string][]store.Record) error {
	names := slices.Clone(s.names)
	full := make(map[string][]store.Record, len(doc)+len(s.extra))
	for k, v := range doc {
		full[k] = v
	}
	extraNames := make([]string, 0, len(s.extra))
	for k, v := range s.extra {
		full[k] = v
		extraNames = append(extraNames, k)
	}
	slices.Sort(extraNames)
	names = append(names, extraNames...)

	data, err := store.MarshalDocument(names, full)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.lastHash = sha256.Sum256(data)
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Collections implements store.Store.
func (s *Store) Collections() []string {
	return slices.Clone(s.names)
}

// OnReload implements store.Reloader.
func (s *Store) OnReload(fn func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Close stops the watcher.
func (s *Store) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.wg.Wait()
	return err
}

// watch observes the parent directory, since editors and our own rename replace the file inode.
func (s *Store) watch(debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = w

	s.wg.Add(1)
	go s.processEvents(debounce)
	return nil
}

func (s *Store) processEvents(debounce time.Duration) {
	defer s.wg.Done()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("json store watcher error", "error", err)
		}
	}
}

// reload re-reads the file. Content identical to what was last written or read is ignored; content that
// fails to parse is logged and the in-memory state is kept.
func (s *Store) reload() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Warn("json store reload failed", "path", s.path, "error", err)
		return
	}

	s.mu.Lock()
	if sha256.Sum256(data) == s.lastHash {
		s.mu.Unlock()
		return
	}
	raw, err := store.UnmarshalDocument(data)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("json store ignored invalid document", "path", s.path, "error", err)
		return
	}
	s.doc, s.extra = s.split(raw)
	s.lastHash = sha256.Sum256(data)
	s.mu.Unlock()

	s.logger.Info("json store reloaded", "path", s.path)

	s.subMu.Lock()
	subs := slices.Clone(s.subscribers)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
