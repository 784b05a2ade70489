package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Source says where migration files are read from: a directory on disk or
// an fs.FS such as the embedded set shipped with the binary.
type Source struct {
	dir  string
	fsys fs.FS
}

// FromDir reads migrations from a directory
func FromDir(path string) Source {
	return Source{dir: path}
}

// FromFS reads migrations from the root of fsys
func FromFS(fsys fs.FS) Source {
	return Source{fsys: fsys}
}

// String describes the source for logs
func (s Source) String() string {
	if s.fsys != nil {
		return "embedded"
	}
	return "file://" + s.dir
}

func (s Source) driver() (source.Driver, error) {
	if s.fsys == nil {
		return nil, nil
	}
	return iofs.New(s.fsys, ".")
}

// Migrator handles database migrations using golang-migrate
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New creates a Migrator on an open postgres connection
func New(db *sql.DB, src Source, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	srcDriver, err := src.driver()
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	var m *migrate.Migrate
	if srcDriver != nil {
		m, err = migrate.NewWithInstance("iofs", srcDriver, "postgres", driver)
	} else {
		m, err = migrate.NewWithDatabaseInstance(src.String(), "postgres", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	logger.Debug("Migrator ready", zap.Stringer("source", src))
	return &Migrator{migrate: m, logger: logger}, nil
}

// NewFromURL creates a Migrator from a database URL
func NewFromURL(databaseURL string, src Source, logger *zap.Logger) (*Migrator, error) {
	srcDriver, err := src.driver()
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	var m *migrate.Migrate
	if srcDriver != nil {
		m, err = migrate.NewWithSourceInstance("iofs", srcDriver, databaseURL)
	} else {
		m, err = migrate.New(src.String(), databaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{migrate: m, logger: logger}, nil
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	m.logger.Info("Running migrations up")

	applied, err := m.run(m.migrate.Up)
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	if !applied {
		m.logger.Info("No migrations to apply")
		return nil
	}
	return m.logVersion("Migrations completed")
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	m.logger.Info("Running migrations down")

	applied, err := m.run(m.migrate.Down)
	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	if !applied {
		m.logger.Info("No migrations to roll back")
		return nil
	}

	m.logger.Info("All migrations rolled back")
	return nil
}

// Steps applies n migrations (positive = up, negative = down)
func (m *Migrator) Steps(n int) error {
	m.logger.Info("Running migration steps", zap.Int("steps", n))

	applied, err := m.run(func() error { return m.migrate.Steps(n) })
	if err != nil {
		return fmt.Errorf("migration steps failed: %w", err)
	}
	if !applied {
		m.logger.Info("No migrations to apply")
		return nil
	}
	return m.logVersion("Migration steps completed")
}

// GoTo migrates to a specific version
func (m *Migrator) GoTo(version uint) error {
	m.logger.Info("Migrating to version", zap.Uint("target_version", version))

	applied, err := m.run(func() error { return m.migrate.Migrate(version) })
	if err != nil {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	if !applied {
		m.logger.Info("Already at target version")
		return nil
	}

	m.logger.Info("Migration to version completed", zap.Uint("version", version))
	return nil
}

// Version returns the current migration version; an empty schema reports 0
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations.
// Only for repairing a dirty schema after a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))

	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}

	m.logger.Info("Migration version forced", zap.Int("version", version))
	return nil
}

// Drop drops every table in the database, sync history included
func (m *Migrator) Drop() error {
	m.logger.Warn("Dropping database - all data will be lost")

	if err := m.migrate.Drop(); err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}

	m.logger.Info("Database dropped")
	return nil
}

// Close closes the migrator and releases resources
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

// run executes a migrate operation, reporting whether anything changed
func (m *Migrator) run(op func() error) (bool, error) {
	err := op()
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Migrator) logVersion(msg string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
