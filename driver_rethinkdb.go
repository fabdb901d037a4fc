package adbm

import (
	"context"
	"fmt"
	"net"
	"strings"

	r "gopkg.in/rethinkdb/rethinkdb-go.v6"
)

const rethinkDuplicateKey = "Duplicate primary key"

// RethinkDBDriver runs ReQL queries through a session or any other query executor.
type RethinkDBDriver struct {
	session  r.QueryExecutor
	database string
}

// NewRethinkDBDriver connects to a RethinkDB server. database becomes the
// default database of the session.
func NewRethinkDBDriver(
	host string,
	port string,
	authKey string,
	database string,
) (*RethinkDBDriver, error) {
	if port == "" {
		port = "28015"
	}
	if database == "" {
		database = "test"
	}

	session, err := r.Connect(r.ConnectOpts{
		Address:  net.JoinHostPort(host, port),
		Database: database,
		AuthKey:  authKey,
	})
	if err != nil {
		return nil, err
	}

	return &RethinkDBDriver{
		session:  session,
		database: database,
	}, nil
}

// NewRethinkDBDriverWithExecutor wraps an existing session or an r.Mock.
// The caller keeps ownership of the executor.
func NewRethinkDBDriverWithExecutor(executor r.QueryExecutor, database string) *RethinkDBDriver {
	if database == "" {
		database = "test"
	}
	return &RethinkDBDriver{
		session:  executor,
		database: database,
	}
}

func (d *RethinkDBDriver) Database() string {
	return d.database
}

// Close closes the session if the driver opened one itself.
func (d *RethinkDBDriver) Close() error {
	if session, ok := d.session.(*r.Session); ok && session != nil {
		return session.Close()
	}
	return nil
}

func (d *RethinkDBDriver) ListDatabases(ctx context.Context) ([]string, error) {
	return d.readStrings(ctx, r.DBList())
}

func (d *RethinkDBDriver) CreateDatabase(ctx context.Context, name string) error {
	return d.write(ctx, r.DBCreate(name))
}

func (d *RethinkDBDriver) ListTables(ctx context.Context, db string) ([]string, error) {
	return d.readStrings(ctx, r.DB(db).TableList())
}

func (d *RethinkDBDriver) CreateTable(ctx context.Context, db, table string) error {
	return d.write(ctx, r.DB(db).TableCreate(table))
}

func (d *RethinkDBDriver) DropTable(ctx context.Context, db, table string) error {
	return d.write(ctx, r.DB(db).TableDrop(table))
}

func (d *RethinkDBDriver) ListIndexes(ctx context.Context, db, table string) ([]string, error) {
	return d.readStrings(ctx, r.DB(db).Table(table).IndexList())
}

// CreateIndex creates a simple index on the field named like the index when
// def is nil, otherwise an index computed from def (a term or a function).
func (d *RethinkDBDriver) CreateIndex(ctx context.Context, db, table, index string, def IndexDefinition, opts *IndexOptions) error {
	// The option fields are interface{}, so a false value would still be sent.
	var createOpts []r.IndexCreateOpts
	if opts != nil && (opts.Multi || opts.Geo) {
		o := r.IndexCreateOpts{}
		if opts.Multi {
			o.Multi = true
		}
		if opts.Geo {
			o.Geo = true
		}
		createOpts = append(createOpts, o)
	}

	term := r.DB(db).Table(table)
	if def == nil {
		return d.write(ctx, term.IndexCreate(index, createOpts...))
	}
	return d.write(ctx, term.IndexCreateFunc(index, def, createOpts...))
}

func (d *RethinkDBDriver) DropIndex(ctx context.Context, db, table, index string) error {
	return d.write(ctx, r.DB(db).Table(table).IndexDrop(index))
}

func (d *RethinkDBDriver) WaitIndex(ctx context.Context, db, table, index string) error {
	cursor, err := r.DB(db).Table(table).IndexWait(index).Run(d.session, r.RunOpts{Context: ctx})
	if err != nil {
		return err
	}
	return cursor.Close()
}

func (d *RethinkDBDriver) InsertDocument(ctx context.Context, db, table string, doc Document) error {
	resp, err := r.DB(db).Table(table).Insert(map[string]any(doc)).RunWrite(d.session, r.RunOpts{Context: ctx})
	if resp.Errors > 0 && strings.HasPrefix(resp.FirstError, rethinkDuplicateKey) {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, resp.FirstError)
	}
	if err != nil {
		return err
	}
	if resp.Errors > 0 {
		return fmt.Errorf("insert into %s.%s: %s", db, table, resp.FirstError)
	}
	return nil
}

// DeleteDocument deletes by primary key. ReQL reports a missing key as skipped, not as an error.
func (d *RethinkDBDriver) DeleteDocument(ctx context.Context, db, table, id string) error {
	return d.write(ctx, r.DB(db).Table(table).Get(id).Delete())
}

func (d *RethinkDBDriver) PluckDocuments(ctx context.Context, db, table string, fields ...string) ([]Document, error) {
	args := make([]any, 0, len(fields))
	for _, field := range fields {
		args = append(args, field)
	}

	cursor, err := r.DB(db).Table(table).Pluck(args...).Run(d.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var rows []map[string]any
	if err := cursor.All(&rows); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document(row))
	}
	return docs, nil
}

func (d *RethinkDBDriver) write(ctx context.Context, term r.Term) error {
	_, err := term.RunWrite(d.session, r.RunOpts{Context: ctx})
	return err
}

func (d *RethinkDBDriver) readStrings(ctx context.Context, term r.Term) ([]string, error) {
	cursor, err := term.Run(d.session, r.RunOpts{Context: ctx})
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	values := []string{}
	if err := cursor.All(&values); err != nil {
		return nil, err
	}
	return values, nil
}
