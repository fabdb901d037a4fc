package adbm

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDBPostgres(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresDriver) {
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
	)
	require.NoError(t, err)

	driver := &PostgresDriver{
		db:           db,
		schema:       "public",
		pollInterval: time.Millisecond,
	}

	return db, mock, driver
}

func TestListDatabasesPostgresDriver(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT schema_name FROM information_schema.schemata ORDER BY schema_name;`).
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("information_schema").AddRow("public"))

	dbs, err := driver.ListDatabases(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"information_schema", "public"}, dbs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDatabasePostgresDriver(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	mock.ExpectExec(`CREATE SCHEMA "app";`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := driver.CreateDatabase(context.Background(), "app")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTablesPostgresDriver(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT tablename FROM pg_tables WHERE schemaname = $1 ORDER BY tablename;`).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).AddRow("_adbm"))
	mock.ExpectExec(`CREATE TABLE "public"."users" (id VARCHAR(255) PRIMARY KEY NOT NULL, doc JSONB NOT NULL DEFAULT '{}'::jsonb);`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE "public"."users";`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	tables, err := driver.ListTables(ctx, "public")
	assert.NoError(t, err)
	assert.Equal(t, []string{"_adbm"}, tables)

	assert.NoError(t, driver.CreateTable(ctx, "public", "users"))
	assert.NoError(t, driver.DropTable(ctx, "public", "users"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIndexPostgresDriver(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	mock.ExpectExec(`CREATE INDEX "users_email" ON "public"."users" ((doc->>'email'));`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX "users_tags" ON "public"."users" USING GIN ((doc->'tags'));`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX "users_full_name" ON "public"."users" ((lower(doc->>'name')));`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	assert.NoError(t, driver.CreateIndex(ctx, "public", "users", "email", nil, nil))
	assert.NoError(t, driver.CreateIndex(ctx, "public", "users", "tags", nil, &IndexOptions{Multi: true}))
	assert.NoError(t, driver.CreateIndex(ctx, "public", "users", "full_name", "lower(doc->>'name')", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIndexPostgresDriver_Unsupported(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	ctx := context.Background()
	err := driver.CreateIndex(ctx, "public", "places", "location", nil, &IndexOptions{Geo: true})
	assert.ErrorIs(t, err, ErrUnsupportedIndexOption)

	err = driver.CreateIndex(ctx, "public", "places", "location", 42, nil)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitIndexPostgresDriver(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	query := `SELECT i.indisvalid AND i.indisready FROM pg_index i JOIN pg_class c ON c.oid = i.indexrelid JOIN pg_namespace n ON n.oid = c.relnamespace WHERE n.nspname = $1 AND c.relname = $2;`
	mock.ExpectQuery(query).WithArgs("public", "users_email").
		WillReturnRows(sqlmock.NewRows([]string{"ready"}).AddRow(false))
	mock.ExpectQuery(query).WithArgs("public", "users_email").
		WillReturnRows(sqlmock.NewRows([]string{"ready"}).AddRow(true))

	err := driver.WaitIndex(context.Background(), "public", "users", "email")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitIndexPostgresDriver_Missing(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT i.indisvalid AND i.indisready FROM pg_index i JOIN pg_class c ON c.oid = i.indexrelid JOIN pg_namespace n ON n.oid = c.relnamespace WHERE n.nspname = $1 AND c.relname = $2;`).
		WithArgs("public", "users_email").
		WillReturnRows(sqlmock.NewRows([]string{"ready"}))

	err := driver.WaitIndex(context.Background(), "public", "users", "email")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestIndexListAndDropPostgresDriver(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT indexname FROM pg_indexes WHERE schemaname = $1 AND tablename = $2 AND indexname <> $3 ORDER BY indexname;`).
		WithArgs("public", "users", "users_pkey").
		WillReturnRows(sqlmock.NewRows([]string{"indexname"}).AddRow("users_email"))
	mock.ExpectExec(`DROP INDEX "public"."users_email";`).WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	indexes, err := driver.ListIndexes(ctx, "public", "users")
	assert.NoError(t, err)
	assert.Equal(t, []string{"email"}, indexes)
	assert.NoError(t, driver.DropIndex(ctx, "public", "users", "email"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexSameNameOnTwoTablesPostgresDriver(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	wait := `SELECT i.indisvalid AND i.indisready FROM pg_index i JOIN pg_class c ON c.oid = i.indexrelid JOIN pg_namespace n ON n.oid = c.relnamespace WHERE n.nspname = $1 AND c.relname = $2;`
	mock.ExpectExec(`CREATE INDEX "users_email" ON "public"."users" ((doc->>'email'));`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(wait).WithArgs("public", "users_email").
		WillReturnRows(sqlmock.NewRows([]string{"ready"}).AddRow(true))
	mock.ExpectExec(`CREATE INDEX "orders_email" ON "public"."orders" ((doc->>'email'));`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(wait).WithArgs("public", "orders_email").
		WillReturnRows(sqlmock.NewRows([]string{"ready"}).AddRow(true))
	mock.ExpectExec(`DROP INDEX "public"."users_email";`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP INDEX "public"."orders_email";`).WillReturnResult(sqlmock.NewResult(0, 0))

	m, err := BuildIndexMigration([]IndexSpec{
		{Table: "users", Index: "email"},
		{Table: "orders", Index: "email"},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Up(ctx, driver, nil))
	require.NoError(t, m.Down(ctx, driver, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListIndexesPostgresDriver_OnlyOwnIndexes(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT indexname FROM pg_indexes WHERE schemaname = $1 AND tablename = $2 AND indexname <> $3 ORDER BY indexname;`).
		WithArgs("public", "orders", "orders_pkey").
		WillReturnRows(sqlmock.NewRows([]string{"indexname"}).AddRow("idx_external").AddRow("orders_email").AddRow("orders_total"))

	indexes, err := driver.ListIndexes(context.Background(), "public", "orders")
	assert.NoError(t, err)
	assert.Equal(t, []string{"email", "total"}, indexes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDocumentPostgresDriver(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	completed := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO "public"."_adbm" (id, doc) VALUES ($1, $2);`).
		WithArgs("a", `{"completed":"2024-04-26T12:00:00Z"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := driver.InsertDocument(context.Background(), "public", "_adbm", Document{"id": "a", "completed": completed})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDocumentPostgresDriver_Duplicate(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO "public"."_adbm" (id, doc) VALUES ($1, $2);`).
		WithArgs("a", `{}`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := driver.InsertDocument(context.Background(), "public", "_adbm", Document{"id": "a"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocumentPostgresDriver(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM "public"."_adbm" WHERE id = $1;`).WithArgs("missing-id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := driver.DeleteDocument(context.Background(), "public", "_adbm", "missing-id")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPluckDocumentsPostgresDriver(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, doc FROM "public"."_adbm";`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc"}).
			AddRow("m1", []byte(`{"completed":"2024-04-26T12:00:00Z"}`)).
			AddRow("m2", []byte(`{}`)))

	docs, err := driver.PluckDocuments(context.Background(), "public", "_adbm", "id", "completed")
	assert.NoError(t, err)
	assert.Equal(t, []Document{
		{"id": "m1", "completed": "2024-04-26T12:00:00Z"},
		{"id": "m2"},
	}, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterMigrationPostgresDriver(t *testing.T) {
	db, mock, driver := setupMockDBPostgres(t)
	defer db.Close()

	completed := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)
	insert := `INSERT INTO "public"."_adbm" (id, doc) VALUES ($1, $2);`
	mock.ExpectExec(insert).WithArgs("m1", `{"completed":"2024-04-26T12:00:00Z"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insert).WithArgs("m1", `{"completed":"2024-04-26T12:00:00Z"}`).
		WillReturnError(&pq.Error{Code: "23505"})

	target := Target{Driver: driver, TimeNow: func() time.Time { return completed }}
	ctx := context.Background()

	assert.NoError(t, RegisterMigration(ctx, "m1", target))
	assert.ErrorIs(t, RegisterMigration(ctx, "m1", target), ErrDuplicateMigration)
	assert.NoError(t, mock.ExpectationsWereMet())
}
