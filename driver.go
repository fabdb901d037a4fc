package adbm

import (
	"context"
)

// Driver is the database handle handed to the adapter and to migrations.
// Implementations never retry; every error is returned as reported.
type Driver interface {
	// Database returns the database used when a caller does not name one.
	Database() string

	// ListDatabases returns the names of all databases visible to the connection.
	ListDatabases(ctx context.Context) ([]string, error)

	// CreateDatabase creates a database. It fails if the database already exists.
	CreateDatabase(ctx context.Context, name string) error

	// ListTables returns the tables of the given database.
	ListTables(ctx context.Context, db string) ([]string, error)

	// CreateTable creates a document table keyed by "id".
	CreateTable(ctx context.Context, db, table string) error

	// DropTable removes a table and all of its indexes.
	DropTable(ctx context.Context, db, table string) error

	// ListIndexes returns the secondary indexes of a table.
	ListIndexes(ctx context.Context, db, table string) ([]string, error)

	// CreateIndex creates a secondary index. A nil def indexes the document
	// field named like the index.
	CreateIndex(ctx context.Context, db, table, index string, def IndexDefinition, opts *IndexOptions) error

	// DropIndex removes a secondary index.
	DropIndex(ctx context.Context, db, table, index string) error

	// WaitIndex blocks until the index can serve queries.
	WaitIndex(ctx context.Context, db, table, index string) error

	// InsertDocument inserts a document. A clash on "id" returns an error
	// wrapping ErrDuplicateKey and leaves the stored document untouched.
	InsertDocument(ctx context.Context, db, table string, doc Document) error

	// DeleteDocument deletes the document with the given id. Deleting a
	// missing id is not an error.
	DeleteDocument(ctx context.Context, db, table, id string) error

	// PluckDocuments reads every document of a table, keeping only the given fields.
	PluckDocuments(ctx context.Context, db, table string, fields ...string) ([]Document, error)

	// Close gracefully closes the connection to the database or releases resources.
	Close() error
}
