// Package adbm adapts a generic migration runner to document databases.
// It bootstraps the metadata table, records which migrations have completed,
// and builds migrations that create or drop tables and indexes.
package adbm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

func (t Target) normalize() (Target, error) {
	if t.Driver == nil {
		return t, ErrDriverNotProvided
	}
	if t.MetadataName == "" {
		t.MetadataName = DefaultMetadataName
	}
	if _, err := sanitizeTableName(t.MetadataName); err != nil {
		return t, fmt.Errorf("%w: invalid metadata table name: %w", ErrInvalidArgument, err)
	}
	if t.DatabaseName == "" {
		t.DatabaseName = t.Driver.Database()
	}
	if t.Logger == nil {
		t.Logger = NopLogger{}
	}
	if t.TimeNow == nil {
		t.TimeNow = time.Now
	}
	return t, nil
}

// Init makes sure the target database and its metadata table exist.
// It is safe to call on every run.
func Init(ctx context.Context, t Target) error {
	t, err := t.normalize()
	if err != nil {
		return err
	}

	dbs, err := t.Driver.ListDatabases(ctx)
	if err != nil {
		return storeError(err, "list databases")
	}
	if slices.Contains(dbs, t.DatabaseName) {
		t.Logger.Debugf("○ Database %q already exists.", t.DatabaseName)
	} else {
		if err := t.Driver.CreateDatabase(ctx, t.DatabaseName); err != nil {
			return storeError(err, "create database %q", t.DatabaseName)
		}
		t.Logger.Infof("+ Created database %q.", t.DatabaseName)
	}

	tables, err := t.Driver.ListTables(ctx, t.DatabaseName)
	if err != nil {
		return storeError(err, "list tables of %q", t.DatabaseName)
	}
	if slices.Contains(tables, t.MetadataName) {
		t.Logger.Debugf("○ Metadata table %q already exists.", t.MetadataName)
		return nil
	}
	if err := t.Driver.CreateTable(ctx, t.DatabaseName, t.MetadataName); err != nil {
		return storeError(err, "create metadata table %q", t.MetadataName)
	}
	t.Logger.Infof("+ Created metadata table %q.", t.MetadataName)

	return nil
}

// CompletedMigrationIDs returns the ids of every recorded migration in the
// order the store yields them. An empty metadata table gives an empty slice.
func CompletedMigrationIDs(ctx context.Context, t Target) ([]string, error) {
	t, err := t.normalize()
	if err != nil {
		return nil, err
	}

	docs, err := t.Driver.PluckDocuments(ctx, t.DatabaseName, t.MetadataName, "id")
	if err != nil {
		return nil, storeError(err, "read metadata table %q", t.MetadataName)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, ok := doc["id"].(string)
		if !ok {
			return nil, fmt.Errorf("metadata table %q: record without string id: %v", t.MetadataName, doc["id"])
		}
		ids = append(ids, id)
	}

	t.Logger.Debugf("○ Found %d completed migrations in metadata table %q.", len(ids), t.MetadataName)

	return ids, nil
}

// CompletedMigrations returns every recorded migration with its completion
// time, sorted by id.
func CompletedMigrations(ctx context.Context, t Target) (MigrationRecordList, error) {
	t, err := t.normalize()
	if err != nil {
		return nil, err
	}

	docs, err := t.Driver.PluckDocuments(ctx, t.DatabaseName, t.MetadataName, "id", "completed")
	if err != nil {
		return nil, storeError(err, "read metadata table %q", t.MetadataName)
	}

	records := make(MigrationRecordList, 0, len(docs))
	for _, doc := range docs {
		record, err := recordFromDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("metadata table %q: %w", t.MetadataName, err)
		}
		records = append(records, record)
	}
	records.Sort()

	return records, nil
}

// RegisterMigration records id as completed now. Registering an id twice
// fails with ErrDuplicateMigration; the first record is kept.
func RegisterMigration(ctx context.Context, id string, t Target) error {
	if id == "" {
		return ErrMigrationIDNotProvided
	}
	t, err := t.normalize()
	if err != nil {
		return err
	}

	doc := Document{"id": id, "completed": t.TimeNow()}
	if err := t.Driver.InsertDocument(ctx, t.DatabaseName, t.MetadataName, doc); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return fmt.Errorf("%w: %q: %w", ErrDuplicateMigration, id, err)
		}
		return storeError(err, "register migration %q", id)
	}

	return nil
}

// UnregisterMigration removes the record of id. A missing record is not an error.
func UnregisterMigration(ctx context.Context, id string, t Target) error {
	if id == "" {
		return ErrMigrationIDNotProvided
	}
	t, err := t.normalize()
	if err != nil {
		return err
	}

	if err := t.Driver.DeleteDocument(ctx, t.DatabaseName, t.MetadataName, id); err != nil {
		return storeError(err, "unregister migration %q", id)
	}

	return nil
}

func recordFromDocument(doc Document) (MigrationRecord, error) {
	id, ok := doc["id"].(string)
	if !ok {
		return MigrationRecord{}, fmt.Errorf("record without string id: %v", doc["id"])
	}

	record := MigrationRecord{ID: id}
	switch completed := doc["completed"].(type) {
	case time.Time:
		record.CompletedAt = completed
	case string:
		at, err := time.Parse(time.RFC3339Nano, completed)
		if err != nil {
			return MigrationRecord{}, fmt.Errorf("record %q: invalid completion time: %w", id, err)
		}
		record.CompletedAt = at
	}

	return record, nil
}
