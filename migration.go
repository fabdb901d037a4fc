package adbm

import (
	"context"
	"fmt"
	"strings"
)

// Migration is a reversible change made of an up and a down function.
// The zero value is not usable; build one with NewMigration or a builder.
type Migration struct {
	up   MigrationFunc
	down MigrationFunc
}

// NewMigration pairs up and down into a Migration. Both are required.
func NewMigration(up, down MigrationFunc) (Migration, error) {
	if up == nil || down == nil {
		return Migration{}, invalidArgument("NewMigration needs both an up and a down function")
	}
	return Migration{up: up, down: down}, nil
}

// Must panics if err is non-nil. It is meant for package level migration variables.
func Must(m Migration, err error) Migration {
	if err != nil {
		panic(err)
	}
	return m
}

// Up applies the migration.
func (m Migration) Up(ctx context.Context, d Driver, logger Logger) error {
	if m.up == nil {
		return invalidArgument("migration has no up function")
	}
	if logger == nil {
		logger = NopLogger{}
	}
	return m.up(ctx, d, logger)
}

// Down reverts the migration.
func (m Migration) Down(ctx context.Context, d Driver, logger Logger) error {
	if m.down == nil {
		return invalidArgument("migration has no down function")
	}
	if logger == nil {
		logger = NopLogger{}
	}
	return m.down(ctx, d, logger)
}

// BuildTablesMigration returns a migration that creates the tables in order
// when migrating up and drops them in the same order when migrating down.
// The first failure stops the loop; tables handled before it stay as they are.
func BuildTablesMigration(tables []string) (Migration, error) {
	if len(tables) == 0 {
		return Migration{}, invalidArgument("BuildTablesMigration expects a non-empty list of table names")
	}
	for i, table := range tables {
		if table == "" {
			return Migration{}, invalidArgument("table name at position %d is empty", i)
		}
	}

	tables = append([]string(nil), tables...)
	tableList := strings.Join(tables, ", ")

	up := func(ctx context.Context, d Driver, logger Logger) error {
		logger.Verbosef("Will create tables: %s", tableList)

		for _, table := range tables {
			if err := d.CreateTable(ctx, d.Database(), table); err != nil {
				return storeError(err, "create table %q", table)
			}
		}
		return nil
	}

	down := func(ctx context.Context, d Driver, logger Logger) error {
		logger.Verbosef("Will drop tables: %s", tableList)

		for _, table := range tables {
			if err := d.DropTable(ctx, d.Database(), table); err != nil {
				return storeError(err, "drop table %q", table)
			}
		}
		return nil
	}

	return NewMigration(up, down)
}

// BuildIndexMigration returns a migration that creates the indexes in order
// when migrating up, waiting for each one to become ready before the next,
// and drops them in the same order when migrating down.
func BuildIndexMigration(indexes []IndexSpec) (Migration, error) {
	if len(indexes) == 0 {
		return Migration{}, invalidArgument("BuildIndexMigration expects a non-empty list of index specifications")
	}
	for i, spec := range indexes {
		if spec.Table == "" || spec.Index == "" {
			return Migration{}, invalidArgument("index specification at position %d needs both a table and an index", i)
		}
	}

	indexes = append([]IndexSpec(nil), indexes...)

	up := func(ctx context.Context, d Driver, logger Logger) error {
		db := d.Database()
		for _, spec := range indexes {
			logger.Verbosef("Creating index %q in table %q", spec.Index, spec.Table)

			var def IndexDefinition
			if spec.Spec != nil {
				def = spec.Spec(d)
			}

			if err := d.CreateIndex(ctx, db, spec.Table, spec.Index, def, spec.Options); err != nil {
				return storeError(err, "create index %s.%s", spec.Table, spec.Index)
			}
			if err := d.WaitIndex(ctx, db, spec.Table, spec.Index); err != nil {
				return storeError(err, "wait for index %s.%s", spec.Table, spec.Index)
			}
		}
		return nil
	}

	names := make([]string, 0, len(indexes))
	for _, spec := range indexes {
		names = append(names, fmt.Sprintf("%s.%s", spec.Table, spec.Index))
	}
	indexList := strings.Join(names, ", ")

	down := func(ctx context.Context, d Driver, logger Logger) error {
		logger.Verbosef("Dropping indexes %s", indexList)

		db := d.Database()
		for _, spec := range indexes {
			if err := d.DropIndex(ctx, db, spec.Table, spec.Index); err != nil {
				return storeError(err, "drop index %s.%s", spec.Table, spec.Index)
			}
		}
		return nil
	}

	return NewMigration(up, down)
}
