package adbm

import (
	"context"
	"sort"
	"time"
)

// DefaultMetadataName is the metadata table used when a Target does not name one.
const DefaultMetadataName = "_adbm"

// Document is a single stored row. The "id" key holds its primary key.
type Document map[string]any

// IndexDefinition is a driver specific index expression. RethinkDB drivers
// accept ReQL terms or functions, SQL drivers accept an SQL expression string.
type IndexDefinition any

// IndexOptions mirrors the options RethinkDB accepts when creating an index.
type IndexOptions struct {
	Multi bool
	Geo   bool
}

// IndexSpec describes one index created by BuildIndexMigration.
type IndexSpec struct {
	Table string
	Index string
	// Spec computes the index definition once a driver is available.
	Spec    func(d Driver) IndexDefinition
	Options *IndexOptions
}

// MigrationFunc is one direction of a migration.
type MigrationFunc func(ctx context.Context, d Driver, logger Logger) error

// Target bundles everything an adapter operation needs. It is passed by
// value on every call; the adapter keeps nothing between calls.
type Target struct {
	Driver       Driver
	DatabaseName string
	MetadataName string
	Logger       Logger
	TimeNow      func() time.Time
}

// MigrationRecord is the bookkeeping entry of a completed migration.
type MigrationRecord struct {
	ID          string    `json:"id"`
	CompletedAt time.Time `json:"completed"`
}

type MigrationRecordList []MigrationRecord

func (m MigrationRecordList) IDs() []string {
	ids := make([]string, 0, len(m))
	for _, record := range m {
		ids = append(ids, record.ID)
	}
	return ids
}

func (m MigrationRecordList) Sort() {
	sort.Slice(m, func(i, j int) bool { return m[i].ID < m[j].ID })
}

func (m MigrationRecordList) Print() {
	var tableData [][]string
	tableData = append(tableData, []string{"Migration ID", "Completed At"})

	for _, record := range m {
		completedAt := "N/A"
		if !record.CompletedAt.IsZero() {
			completedAt = record.CompletedAt.Format(time.RFC3339)
		}
		tableData = append(tableData, []string{record.ID, completedAt})
	}

	printTable(tableData)
}
