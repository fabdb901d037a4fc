package adbm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

// MySqlDriver stores documents as JSON rows. Each RethinkDB style database
// maps to a MySQL database.
type MySqlDriver struct {
	db       *sql.DB
	database string
}

func NewMySqlDriver(
	host string,
	port string,
	user string,
	password string,
	database string,
	charset string,
) (*MySqlDriver, error) {
	if charset == "" {
		charset = "utf8mb4"
	}
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		user,
		password,
		host,
		port,
		database,
		charset,
	)

	db, err := sql.Open("mysql", dsn)

	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &MySqlDriver{
		db:       db,
		database: database,
	}, nil
}

func (m *MySqlDriver) Database() string {
	return m.database
}

func (m *MySqlDriver) Close() error {
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (m *MySqlDriver) ListDatabases(ctx context.Context) ([]string, error) {
	return m.queryStrings(ctx, `SHOW DATABASES;`)
}

func (m *MySqlDriver) CreateDatabase(ctx context.Context, name string) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`CREATE DATABASE %s;`, quoteMySqlIdentifier(name)))
	return err
}

func (m *MySqlDriver) ListTables(ctx context.Context, db string) ([]string, error) {
	return m.queryStrings(ctx, `SELECT table_name FROM information_schema.tables WHERE table_schema = ? ORDER BY table_name;`, db)
}

func (m *MySqlDriver) CreateTable(ctx context.Context, db, table string) error {
	query := fmt.Sprintf(
		`CREATE TABLE %s (id VARCHAR(255) PRIMARY KEY NOT NULL, doc JSON NOT NULL);`,
		m.qualified(db, table),
	)
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *MySqlDriver) DropTable(ctx context.Context, db, table string) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE %s;`, m.qualified(db, table)))
	return err
}

func (m *MySqlDriver) ListIndexes(ctx context.Context, db, table string) ([]string, error) {
	return m.queryStrings(
		ctx,
		`SELECT DISTINCT index_name FROM information_schema.statistics WHERE table_schema = ? AND table_name = ? AND index_name <> 'PRIMARY' ORDER BY index_name;`,
		db, table,
	)
}

// CreateIndex builds a functional index over the document field named like
// the index when def is nil. Multi indexes become multi-valued array indexes.
func (m *MySqlDriver) CreateIndex(ctx context.Context, db, table, index string, def IndexDefinition, opts *IndexOptions) error {
	multi := false
	if opts != nil {
		if opts.Geo {
			return fmt.Errorf("%w: geo index %q on mysql", ErrUnsupportedIndexOption, index)
		}
		multi = opts.Multi
	}

	var expr string
	switch d := def.(type) {
	case nil:
		path := jsonFieldLiteral("$.", index)
		if multi {
			expr = fmt.Sprintf("CAST(doc->%s AS CHAR(255) ARRAY)", path)
		} else {
			expr = fmt.Sprintf("CAST(doc->>%s AS CHAR(255)) COLLATE utf8mb4_bin", path)
		}
	case string:
		expr = d
	default:
		return fmt.Errorf("mysql index definition must be an SQL expression string, got %T", def)
	}

	query := fmt.Sprintf(`CREATE INDEX %s ON %s ((%s));`, quoteMySqlIdentifier(index), m.qualified(db, table), expr)
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *MySqlDriver) DropIndex(ctx context.Context, db, table, index string) error {
	query := fmt.Sprintf(`DROP INDEX %s ON %s;`, quoteMySqlIdentifier(index), m.qualified(db, table))
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// WaitIndex only checks that the index exists: MySQL builds indexes before
// CREATE INDEX returns.
func (m *MySqlDriver) WaitIndex(ctx context.Context, db, table, index string) error {
	var count int
	err := m.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = ? AND table_name = ? AND index_name = ?;`,
		db, table, index,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("index %q does not exist on table %q", index, table)
	}
	return nil
}

func (m *MySqlDriver) InsertDocument(ctx context.Context, db, table string, doc Document) error {
	id, body, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (?, ?);`, m.qualified(db, table))
	_, err = m.db.ExecContext(ctx, query, id, string(body))

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %q: %w", ErrDuplicateKey, id, err)
	}
	return err
}

func (m *MySqlDriver) DeleteDocument(ctx context.Context, db, table, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?;`, m.qualified(db, table))
	_, err := m.db.ExecContext(ctx, query, id)
	return err
}

func (m *MySqlDriver) PluckDocuments(ctx context.Context, db, table string, fields ...string) ([]Document, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, doc FROM %s;`, m.qualified(db, table)))
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

func (m *MySqlDriver) qualified(db, name string) string {
	return quoteMySqlIdentifier(db) + "." + quoteMySqlIdentifier(name)
}

func (m *MySqlDriver) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}

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

func quoteMySqlIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
