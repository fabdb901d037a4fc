package adbm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manager drives the bookkeeping operations from tooling such as the adbm
// command. It never runs migrations itself; that is the runner's job.
type Manager struct {
	target            Target
	migrationFilesDir string
	timeNow           func() time.Time
}

// NewManager validates the configuration, applies defaults for missing
// fields and binds it to an open driver.
func NewManager(driver Driver, config *Config, logger Logger) (*Manager, error) {
	if config == nil {
		return nil, ErrConfigNotProvided
	}
	if driver == nil {
		return nil, ErrDriverNotProvided
	}
	if logger == nil {
		logger = NopLogger{}
	}

	if config.MigrationFilesDir == "" {
		config.MigrationFilesDir = "migrations"
	}
	if config.MetadataName == "" {
		config.MetadataName = DefaultMetadataName
	}

	if _, err := sanitizeTableName(config.MetadataName); err != nil {
		return nil, fmt.Errorf("%w: invalid metadata table name: %w", ErrInvalidArgument, err)
	}

	return &Manager{
		// DatabaseName stays empty so the driver's default applies; for
		// postgres that is the schema, not config.Database.
		target: Target{
			Driver:       driver,
			MetadataName: config.MetadataName,
			Logger:       logger,
		},
		migrationFilesDir: config.MigrationFilesDir,
		timeNow:           time.Now,
	}, nil
}

// Target returns the adapter target the manager works on.
func (m *Manager) Target() Target {
	return m.target
}

// Init creates the database and the metadata table when they are missing.
func (m *Manager) Init(ctx context.Context) error {
	if err := Init(ctx, m.target); err != nil {
		return err
	}
	m.target.Logger.Infof("✅ Metadata table %q is ready", m.target.MetadataName)
	return nil
}

// List returns every completed migration with its completion time.
func (m *Manager) List(ctx context.Context) (MigrationRecordList, error) {
	return CompletedMigrations(ctx, m.target)
}

// Mark records id as completed without running anything.
func (m *Manager) Mark(ctx context.Context, id string) error {
	if err := RegisterMigration(ctx, id, m.target); err != nil {
		return err
	}
	m.target.Logger.Infof("✅ Marked as completed: %s", id)
	return nil
}

// Unmark removes the record of id. Unknown ids are accepted.
func (m *Manager) Unmark(ctx context.Context, id string) error {
	if err := UnregisterMigration(ctx, id, m.target); err != nil {
		return err
	}
	m.target.Logger.Infof("🔄 Unmarked: %s", id)
	return nil
}

// Create generates a new migration file using the given name.
// The generated file includes a timestamp prefix and a skeleton migration.
func (m *Manager) Create(fileName string) (string, error) {
	if fileName == "" {
		return "", ErrMigrationNameNotProvided
	}

	migrationName, err := sanitizeMigrationName(fileName)
	if err != nil {
		return "", err
	}

	if !migrationDirExists(m.migrationFilesDir) {
		return "", fmt.Errorf("migration directory %q does not exist", m.migrationFilesDir)
	}

	migrationName = fmt.Sprintf("%s_%s", m.timeNow().Format("20060102150405"), migrationName)
	migrationFileName := filepath.Join(m.migrationFilesDir, migrationName+".go")

	if fileExists(migrationFileName) {
		return "", ErrMigrationFileAlreadyExists
	}

	template, err := migrationFileTemplate(getPackageNameFromMigrationDir(m.migrationFilesDir), migrationName)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(migrationFileName, []byte(template), 0644); err != nil {
		return "", err
	}
	m.target.Logger.Infof("📦 Migration file created: %s", migrationFileName)

	return migrationFileName, nil
}

// Close releases the driver.
func (m *Manager) Close() error {
	return m.target.Driver.Close()
}
