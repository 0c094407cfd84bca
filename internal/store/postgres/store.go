// Package postgres is a store.Store backed by PostgreSQL through a pgx connection pool.
//
// Records live in a single table keyed by (collection, id) with JSONB bodies. Every write transaction takes a
// SHARE ROW EXCLUSIVE lock on the table, which serializes writers across processes while leaving readers
// unblocked, so id allocation stays atomic even with several API instances.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/alquilibros/alquilibros-server/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store provides PostgreSQL-backed record persistence.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	names  []string
}

// Open connects to databaseURL and applies the schema.
func Open(ctx context.Context, databaseURL string, collections []string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger.Debug("postgres store opened", "host", pool.Config().ConnConfig.Host)

	return &Store{pool: pool, logger: logger, names: slices.Clone(collections)}, nil
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	defer pgTx.Rollback(ctx) //nolint:errcheck // read-only, nothing to undo

	return fn(&tx{ctx: ctx, pgTx: pgTx, names: s.names})
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin write transaction: %w", err)
	}

	if _, err := pgTx.Exec(ctx, "LOCK TABLE records IN SHARE ROW EXCLUSIVE MODE"); err != nil {
		_ = pgTx.Rollback(ctx)
		return fmt.Errorf("lock records: %w", err)
	}

	if err := fn(&tx{ctx: ctx, pgTx: pgTx, names: s.names, writable: true}); err != nil {
		if rbErr := pgTx.Rollback(ctx); rbErr != nil {
			s.logger.Error("postgres rollback failed", "error", rbErr)
		}
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Collections implements store.Store.
func (s *Store) Collections() []string {
	return slices.Clone(s.names)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type tx struct {
	ctx      context.Context
	pgTx     pgx.Tx
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

	rows, err := t.pgTx.Query(t.ctx,
		"SELECT body::text FROM records WHERE collection = $1 ORDER BY id", collection)
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
	err = t.pgTx.QueryRow(t.ctx,
		"SELECT body::text FROM records WHERE collection = $1 AND id = $2", collection, n).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
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
	err := t.pgTx.QueryRow(t.ctx,
		"SELECT COALESCE(MAX(id), 0) + 1 FROM records WHERE collection = $1", collection).Scan(&next)
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
	_, err = t.pgTx.Exec(t.ctx, `
		INSERT INTO records (collection, id, body) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body`,
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

	tag, err := t.pgTx.Exec(t.ctx, "DELETE FROM records WHERE collection = $1 AND id = $2", collection, n)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.NotFoundError(collection, id)
	}
	return nil
}
