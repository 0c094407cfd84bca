// Package sqlite is a store.Store backed by an embedded SQLite database (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alquilibros/alquilibros-server/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed record persistence.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	names  []string

	// SQLite allows a single writer; serializing here keeps id allocation race free without relying on
	// SQLITE_BUSY retries.
	writeMu sync.Mutex
}

// Open creates or opens the database at path. It configures WAL mode and applies the schema.
func Open(path string, collections []string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger.Debug("sqlite store opened", "path", path)

	return &Store{db: db, logger: logger, names: slices.Clone(collections)}, nil
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck // read-only, nothing to undo

	return fn(&tx{ctx: ctx, sqlTx: sqlTx, names: s.names})
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write transaction: %w", err)
	}

	if err := fn(&tx{ctx: ctx, sqlTx: sqlTx, names: s.names, writable: true}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Error("sqlite rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Collections implements store.Store.
func (s *Store) Collections() []string {
	return slices.Clone(s.names)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type tx struct {
	ctx      context.Context
	sqlTx    *sql.Tx
	names    []string
	writable bool
}

func (t *tx) check(collection string, write bool) error {
	if !slices.Contains(t.names, collection) {
		return store.UnknownCollectionError(collection)
	}
	if write && !t.writable {
		return store.ErrReadOnly
	}
	return nil
}

func (t *tx) List(collection string) ([]store.Record, error) {
	if err := t.check(collection, false); err != nil {
		return nil, err
	}

	rows, err := t.sqlTx.QueryContext(t.ctx,
		"SELECT body FROM records WHERE collection = ? ORDER BY id", collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		rec, err := store.Unmarshal([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *tx) Get(collection, id string) (store.Record, error) {
	if err := t.check(collection, false); err != nil {
		return nil, err
	}
	n, err := store.ParseID(id)
	if err != nil {
		return nil, store.NotFoundError(collection, id)
	}

	var body string
	err = t.sqlTx.QueryRowContext(t.ctx,
		"SELECT body FROM records WHERE collection = ? AND id = ?", collection, n).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundError(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return store.Unmarshal([]byte(body))
}

func (t *tx) Insert(collection string, rec store.Record) (store.Record, error) {
	if err := t.check(collection, true); err != nil {
		return nil, err
	}

	var next int64
	err := t.sqlTx.QueryRowContext(t.ctx,
		"SELECT COALESCE(MAX(id), 0) + 1 FROM records WHERE collection = ?", collection).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("next id for %s: %w", collection, err)
	}

	stored := rec.Clone()
	if stored == nil {
		stored = store.Record{}
	}
	stored[store.IDField] = store.FormatID(next)
	if err := t.write(collection, next, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func (t *tx) Put(collection string, rec store.Record) error {
	n, err := store.ParseID(rec.ID())
	if err != nil {
		return err
	}
	if err := t.check(collection, true); err != nil {
		return err
	}
	stored := rec.Clone()
	stored[store.IDField] = rec.ID()
	return t.write(collection, n, stored)
}

func (t *tx) write(collection string, id int64, rec store.Record) error {
	body, err := store.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", collection, err)
	}
	_, err = t.sqlTx.ExecContext(t.ctx, `
		INSERT INTO records (collection, id, body) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`,
		collection, id, string(body))
	if err != nil {
		return fmt.Errorf("write %s/%d: %w", collection, id, err)
	}
	return nil
}

func (t *tx) Delete(collection, id string) error {
	if err := t.check(collection, true); err != nil {
		return err
	}
	n, err := store.ParseID(id)
	if err != nil {
		return store.NotFoundError(collection, id)
	}

	res, err := t.sqlTx.ExecContext(t.ctx,
		"DELETE FROM records WHERE collection = ? AND id = ?", collection, n)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if affected == 0 {
		return store.NotFoundError(collection, id)
	}
	return nil
}
