package adbm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// PostgresDriver stores documents as JSONB rows. Each RethinkDB style
// database maps to a PostgreSQL schema.
type PostgresDriver struct {
	db           *sql.DB
	schema       string
	pollInterval time.Duration
}

// NewPostgresDriver creates and returns a new instance of PostgresDriver.
// It opens a connection to the given PostgreSQL database; schema becomes the default database.
func NewPostgresDriver(
	host string,
	port string,
	user string,
	password string,
	database string,
	schema string,
) (*PostgresDriver, error) {
	if schema == "" {
		schema = "public"
	}
	dsn := "host=%s port=%s user=%s password=%s dbname=%s sslmode=disable search_path=%s"
	dsn = fmt.Sprintf(dsn, host, port, user, password, database, schema)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &PostgresDriver{
		db:           db,
		schema:       schema,
		pollInterval: 100 * time.Millisecond,
	}, nil
}

// Database returns the default schema.
func (p *PostgresDriver) Database() string {
	return p.schema
}

// Close closes the database connection.
func (p *PostgresDriver) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// ListDatabases returns every schema of the connected database.
func (p *PostgresDriver) ListDatabases(ctx context.Context) ([]string, error) {
	return p.queryStrings(ctx, `SELECT schema_name FROM information_schema.schemata ORDER BY schema_name;`)
}

// CreateDatabase creates a schema.
func (p *PostgresDriver) CreateDatabase(ctx context.Context, name string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA %s;`, pq.QuoteIdentifier(name)))
	return err
}

func (p *PostgresDriver) ListTables(ctx context.Context, db string) ([]string, error) {
	return p.queryStrings(ctx, `SELECT tablename FROM pg_tables WHERE schemaname = $1 ORDER BY tablename;`, db)
}

func (p *PostgresDriver) CreateTable(ctx context.Context, db, table string) error {
	query := fmt.Sprintf(
		`CREATE TABLE %s (id VARCHAR(255) PRIMARY KEY NOT NULL, doc JSONB NOT NULL DEFAULT '{}'::jsonb);`,
		p.qualified(db, table),
	)
	_, err := p.db.ExecContext(ctx, query)
	return err
}

func (p *PostgresDriver) DropTable(ctx context.Context, db, table string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE %s;`, p.qualified(db, table)))
	return err
}

// ListIndexes returns the indexes created through CreateIndex on a table,
// under the names they were created with.
func (p *PostgresDriver) ListIndexes(ctx context.Context, db, table string) ([]string, error) {
	names, err := p.queryStrings(
		ctx,
		`SELECT indexname FROM pg_indexes WHERE schemaname = $1 AND tablename = $2 AND indexname <> $3 ORDER BY indexname;`,
		db, table, table+"_pkey",
	)
	if err != nil {
		return nil, err
	}

	prefix := table + "_"
	indexes := []string{}
	for _, name := range names {
		if index, ok := strings.CutPrefix(name, prefix); ok && index != "" {
			indexes = append(indexes, index)
		}
	}
	return indexes, nil
}

// indexRelation names the index relation. Postgres index names are unique per
// schema, so the table name is part of it.
func indexRelation(table, index string) string {
	return table + "_" + index
}

// CreateIndex indexes the text of the document field named like the index
// when def is nil. A string def is used as the index expression. Multi
// indexes use GIN over the JSON value.
func (p *PostgresDriver) CreateIndex(ctx context.Context, db, table, index string, def IndexDefinition, opts *IndexOptions) error {
	multi := false
	if opts != nil {
		if opts.Geo {
			return fmt.Errorf("%w: geo index %q on postgres", ErrUnsupportedIndexOption, index)
		}
		multi = opts.Multi
	}

	var expr string
	switch d := def.(type) {
	case nil:
		op := "->>"
		if multi {
			op = "->"
		}
		expr = "doc" + op + jsonFieldLiteral("", index)
	case string:
		expr = d
	default:
		return fmt.Errorf("postgres index definition must be an SQL expression string, got %T", def)
	}

	using := ""
	if multi {
		using = "USING GIN "
	}

	query := fmt.Sprintf(`CREATE INDEX %s ON %s %s((%s));`, pq.QuoteIdentifier(indexRelation(table, index)), p.qualified(db, table), using, expr)
	_, err := p.db.ExecContext(ctx, query)
	return err
}

func (p *PostgresDriver) DropIndex(ctx context.Context, db, table, index string) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`DROP INDEX %s;`, p.qualified(db, indexRelation(table, index))))
	return err
}

// WaitIndex polls pg_index until the index is valid and ready.
func (p *PostgresDriver) WaitIndex(ctx context.Context, db, table, index string) error {
	query := `SELECT i.indisvalid AND i.indisready FROM pg_index i JOIN pg_class c ON c.oid = i.indexrelid JOIN pg_namespace n ON n.oid = c.relnamespace WHERE n.nspname = $1 AND c.relname = $2;`

	for {
		var ready bool
		err := p.db.QueryRowContext(ctx, query, db, indexRelation(table, index)).Scan(&ready)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("index %q does not exist on table %q", index, table)
		}
		if err != nil {
			return err
		}
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}
}

func (p *PostgresDriver) InsertDocument(ctx context.Context, db, table string, doc Document) error {
	id, body, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2);`, p.qualified(db, table))
	_, err = p.db.ExecContext(ctx, query, id, string(body))

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%w: %q: %w", ErrDuplicateKey, id, err)
	}
	return err
}

func (p *PostgresDriver) DeleteDocument(ctx context.Context, db, table, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1;`, p.qualified(db, table))
	_, err := p.db.ExecContext(ctx, query, id)
	return err
}

func (p *PostgresDriver) PluckDocuments(ctx context.Context, db, table string, fields ...string) ([]Document, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, doc FROM %s;`, p.qualified(db, table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(id, raw, fields)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return docs, nil
}

func (p *PostgresDriver) qualified(db, name string) string {
	return pq.QuoteIdentifier(db) + "." + pq.QuoteIdentifier(name)
}

func (p *PostgresDriver) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return values, nil
}
