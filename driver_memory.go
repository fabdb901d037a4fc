package adbm

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

type memoryTable struct {
	docs    map[string]Document
	indexes map[string]IndexDefinition
}

// MemoryDriver keeps databases in process memory. It is meant for testing
// migrations without a database server.
type MemoryDriver struct {
	mu       sync.Mutex
	database string
	dbs      map[string]map[string]*memoryTable
}

// NewMemoryDriver returns a MemoryDriver whose default database already exists.
func NewMemoryDriver(database string) *MemoryDriver {
	if database == "" {
		database = "test"
	}
	return &MemoryDriver{
		database: database,
		dbs: map[string]map[string]*memoryTable{
			database: {},
		},
	}
}

func (m *MemoryDriver) Database() string {
	return m.database
}

func (m *MemoryDriver) Close() error {
	return nil
}

func (m *MemoryDriver) ListDatabases(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return sortedKeys(m.dbs), nil
}

func (m *MemoryDriver) CreateDatabase(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.dbs[name]; exists {
		return fmt.Errorf("database %q already exists", name)
	}
	m.dbs[name] = map[string]*memoryTable{}
	return nil
}

func (m *MemoryDriver) ListTables(ctx context.Context, db string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tables, ok := m.dbs[db]
	if !ok {
		return nil, fmt.Errorf("database %q does not exist", db)
	}
	return sortedKeys(tables), nil
}

func (m *MemoryDriver) CreateTable(ctx context.Context, db, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tables, ok := m.dbs[db]
	if !ok {
		return fmt.Errorf("database %q does not exist", db)
	}
	if _, exists := tables[table]; exists {
		return fmt.Errorf("table %q already exists", table)
	}
	tables[table] = &memoryTable{
		docs:    map[string]Document{},
		indexes: map[string]IndexDefinition{},
	}
	return nil
}

func (m *MemoryDriver) DropTable(ctx context.Context, db, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.table(db, table); err != nil {
		return err
	}
	delete(m.dbs[db], table)
	return nil
}

func (m *MemoryDriver) ListIndexes(ctx context.Context, db, table string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(db, table)
	if err != nil {
		return nil, err
	}
	return sortedKeys(t.indexes), nil
}

func (m *MemoryDriver) CreateIndex(ctx context.Context, db, table, index string, def IndexDefinition, opts *IndexOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(db, table)
	if err != nil {
		return err
	}
	if _, exists := t.indexes[index]; exists {
		return fmt.Errorf("index %q already exists on table %q", index, table)
	}
	if def == nil {
		def = index
	}
	t.indexes[index] = def
	return nil
}

// IndexDefinition returns the definition an index was created with.
func (m *MemoryDriver) IndexDefinition(db, table, index string) (IndexDefinition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(db, table)
	if err != nil {
		return nil, false
	}
	def, ok := t.indexes[index]
	return def, ok
}

func (m *MemoryDriver) DropIndex(ctx context.Context, db, table, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(db, table)
	if err != nil {
		return err
	}
	if _, exists := t.indexes[index]; !exists {
		return fmt.Errorf("index %q does not exist on table %q", index, table)
	}
	delete(t.indexes, index)
	return nil
}

// WaitIndex returns at once: memory indexes are ready as soon as they exist.
func (m *MemoryDriver) WaitIndex(ctx context.Context, db, table, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(db, table)
	if err != nil {
		return err
	}
	if _, exists := t.indexes[index]; !exists {
		return fmt.Errorf("index %q does not exist on table %q", index, table)
	}
	return nil
}

func (m *MemoryDriver) InsertDocument(ctx context.Context, db, table string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(db, table)
	if err != nil {
		return err
	}
	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("document without string id")
	}
	if _, exists := t.docs[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, id)
	}
	t.docs[id] = maps.Clone(doc)
	return nil
}

func (m *MemoryDriver) DeleteDocument(ctx context.Context, db, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(db, table)
	if err != nil {
		return err
	}
	delete(t.docs, id)
	return nil
}

func (m *MemoryDriver) PluckDocuments(ctx context.Context, db, table string, fields ...string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(db, table)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(t.docs))
	for _, id := range sortedKeys(t.docs) {
		docs = append(docs, pluck(t.docs[id], fields))
	}
	return docs, nil
}

func (m *MemoryDriver) table(db, table string) (*memoryTable, error) {
	tables, ok := m.dbs[db]
	if !ok {
		return nil, fmt.Errorf("database %q does not exist", db)
	}
	t, ok := tables[table]
	if !ok {
		return nil, fmt.Errorf("table %q does not exist in database %q", table, db)
	}
	return t, nil
}

func pluck(doc Document, fields []string) Document {
	out := make(Document, len(fields))
	for _, field := range fields {
		if value, ok := doc[field]; ok {
			out[field] = value
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
