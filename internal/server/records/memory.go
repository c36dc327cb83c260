package records

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/goalboard/internal/common"
)

// MemoryRepository keeps records in process memory, in insertion order.
type MemoryRepository struct {
	mu     sync.RWMutex
	tables map[string][]Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tables: make(map[string][]Record)}
}

func clone(r Record) Record {
	r.Data = slices.Clone(r.Data)
	return r
}

func (m *MemoryRepository) indexLocked(table string, match func(Record) bool) int {
	return slices.IndexFunc(m.tables[table], match)
}

func (m *MemoryRepository) keyTakenLocked(table, key, except string) bool {
	if key == "" {
		return false
	}
	return m.indexLocked(table, func(r Record) bool { return r.ConflictKey == key && r.ID != except }) >= 0
}

func (m *MemoryRepository) List(_ context.Context, table string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, clone(r))
	}
	return out, nil
}

func (m *MemoryRepository) Insert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexLocked(rec.Table, func(r Record) bool { return r.ID == rec.ID }) >= 0 || m.keyTakenLocked(rec.Table, rec.ConflictKey, "") {
		return Record{}, ErrConflict
	}
	rec.UpdatedAt = rec.CreatedAt
	m.tables[rec.Table] = append(m.tables[rec.Table], clone(rec))
	return rec, nil
}

func (m *MemoryRepository) Upsert(_ context.Context, rec Record) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(rec.Table, func(r Record) bool { return r.ConflictKey == rec.ConflictKey })
	if i < 0 {
		rec.UpdatedAt = rec.CreatedAt
		m.tables[rec.Table] = append(m.tables[rec.Table], clone(rec))
		return rec, true, nil
	}

	cur := &m.tables[rec.Table][i]
	cur.Data = slices.Clone(rec.Data)
	cur.UpdatedAt = rec.CreatedAt
	return clone(*cur), false, nil
}

func (m *MemoryRepository) Update(_ context.Context, table, id string, fn func(*Record) error) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(table, func(r Record) bool { return r.ID == id })
	if i < 0 {
		return Record{}, common.ErrNotFound
	}
	rec := clone(m.tables[table][i])
	if err := fn(&rec); err != nil {
		return Record{}, err
	}
	if m.keyTakenLocked(table, rec.ConflictKey, id) {
		return Record{}, ErrConflict
	}
	m.tables[table][i] = clone(rec)
	return rec, nil
}

func (m *MemoryRepository) Delete(_ context.Context, table, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(table, func(r Record) bool { return r.ID == id })
	if i < 0 {
		return Record{}, common.ErrNotFound
	}
	rec := m.tables[table][i]
	m.tables[table] = slices.Delete(m.tables[table], i, i+1)
	return rec, nil
}

func (m *MemoryRepository) Ping(context.Context) error { return nil }
