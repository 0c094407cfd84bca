package store

import (
	"context"
	"slices"
	"sync"
)

// DocTx implements Tx over an in-memory document (records per collection). Collections touched by a write are
// copied on first write, so the committed document is never mutated and a failed transaction is simply
// dropped. The jsonfile backend and Memory share it.
type DocTx struct {
	names    []string
	base     map[string][]Record
	work     map[string][]Record
	writable bool
}

// NewDocTx opens a transaction over base. base must not be modified while the transaction is in use.
func NewDocTx(names []string, base map[string][]Record, writable bool) *DocTx {
	return &DocTx{names: names, base: base, work: make(map[string][]Record), writable: writable}
}

// Dirty reports whether the transaction wrote anything.
func (t *DocTx) Dirty() bool {
	return len(t.work) > 0
}

// Result returns the document as it looks after the transaction. Untouched collections are shared with base.
func (t *DocTx) Result() map[string][]Record {
	out := make(map[string][]Record, len(t.names))
	for _, name := range t.names {
		if records, ok := t.work[name]; ok {
			out[name] = records
		} else {
			out[name] = t.base[name]
		}
	}
	return out
}

func (t *DocTx) records(collection string, forWrite bool) ([]Record, error) {
	if !slices.Contains(t.names, collection) {
		return nil, UnknownCollectionError(collection)
	}
	if forWrite && !t.writable {
		return nil, ErrReadOnly
	}
	if records, ok := t.work[collection]; ok {
		return records, nil
	}
	if !forWrite {
		return t.base[collection], nil
	}
	records := slices.Clone(t.base[collection])
	t.work[collection] = records
	return records, nil
}

func indexOf(records []Record, id string) int {
	return slices.IndexFunc(records, func(r Record) bool { return r.ID() == id })
}

// List implements Tx.
func (t *DocTx) List(collection string) ([]Record, error) {
	records, err := t.records(collection, false)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out, nil
}

// Get implements Tx.
func (t *DocTx) Get(collection, id string) (Record, error) {
	records, err := t.records(collection, false)
	if err != nil {
		return nil, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return nil, NotFoundError(collection, id)
	}
	return records[i].Clone(), nil
}

// Insert implements Tx.
func (t *DocTx) Insert(collection string, rec Record) (Record, error) {
	records, err := t.records(collection, true)
	if err != nil {
		return nil, err
	}
	stored := rec.Clone()
	if stored == nil {
		stored = Record{}
	}
	stored[IDField] = NextID(records)
	t.work[collection] = append(records, stored)
	return stored.Clone(), nil
}

// Put implements Tx.
func (t *DocTx) Put(collection string, rec Record) error {
	if _, err := ParseID(rec.ID()); err != nil {
		return err
	}
	records, err := t.records(collection, true)
	if err != nil {
		return err
	}
	stored := rec.Clone()
	stored[IDField] = rec.ID()

	if i := indexOf(records, stored.ID()); i >= 0 {
		records[i] = stored
		return nil
	}
	records = append(records, stored)
	SortByID(records)
	t.work[collection] = records
	return nil
}

// Delete implements Tx.
func (t *DocTx) Delete(collection, id string) error {
	records, err := t.records(collection, true)
	if err != nil {
		return err
	}
	i := indexOf(records, id)
	if i < 0 {
		return NotFoundError(collection, id)
	}
	t.work[collection] = slices.Delete(records, i, i+1)
	return nil
}

// Memory is a volatile Store. Writers are serialized; readers see the last committed state.
type Memory struct {
	mu    sync.RWMutex
	names []string
	doc   map[string][]Record
}

// NewMemory returns an empty in-memory store with the given collections.
func NewMemory(collections ...string) *Memory {
	doc := make(map[string][]Record, len(collections))
	for _, c := range collections {
		doc[c] = nil
	}
	return &Memory{names: slices.Clone(collections), doc: doc}
}

// View implements Store.
func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(NewDocTx(m.names, m.doc, false))
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := NewDocTx(m.names, m.doc, true)
	if err := fn(tx); err != nil {
		return err
	}
	if tx.Dirty() {
		m.doc = tx.Result()
	}
	return nil
}

// Collections implements Store.
func (m *Memory) Collections() []string {
	return slices.Clone(m.names)
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}
