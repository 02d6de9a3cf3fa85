// Package migration applies the versioned schema and checks that every
// tenant-scoped table carries the tenant column the isolation enforcer
// depends on.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hashicorp/go-multierror"
	"github.com/mise/backend/migrations"
	"go.uber.org/zap"
)

// MigrationsTable records the applied schema version
const MigrationsTable = "schema_migrations"

// Migrator runs golang-migrate against PostgreSQL
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New creates a Migrator over db. With an empty dir the migrations embedded
// in the binary are used; otherwise the files in dir.
func New(db *sql.DB, dir string, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	var m *migrate.Migrate
	if dir == "" {
		src, err := iofs.New(migrations.FS, ".")
		if err != nil {
			return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migrate instance: %w", err)
		}
	} else {
		m, err = migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migrate instance: %w", err)
		}
	}
	m.Log = migrateLogger{logger.Sugar()}

	return &Migrator{migrate: m, logger: logger}, nil
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	return m.apply("up", m.migrate.Up)
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	return m.apply("down", m.migrate.Down)
}

// Steps applies n migrations, rolling back when n is negative
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("steps(%d)", n), func() error { return m.migrate.Steps(n) })
}

// GoTo migrates up or down to version
func (m *Migrator) GoTo(version uint) error {
	return m.apply(fmt.Sprintf("goto(%d)", version), func() error { return m.migrate.Migrate(version) })
}

func (m *Migrator) apply(op string, fn func() error) error {
	m.logger.Info("Running migration", zap.String("operation", op))
	if err := fn(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Schema already up to date", zap.String("operation", op))
			return nil
		}
		return fmt.Errorf("migration %s failed: %w", op, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Migration completed",
		zap.String("operation", op),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

// Version returns the applied version; 0 means none
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the version without running migrations, for repairing a dirty
// schema after a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Close releases the source and the database driver
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	var result *multierror.Error
	if sourceErr != nil {
		result = multierror.Append(result, fmt.Errorf("close source: %w", sourceErr))
	}
	if dbErr != nil {
		result = multierror.Append(result, fmt.Errorf("close database: %w", dbErr))
	}
	return result.ErrorOrNil()
}

const tenantColumnQuery = `SELECT is_nullable FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2`

// CheckTenantColumns verifies that every table in tables has a NOT NULL
// column named column. The isolation enforcer trusts this without looking;
// a table missing it would be queried unscoped.
func CheckTenantColumns(ctx context.Context, db *sql.DB, column string, tables []string) error {
	var result *multierror.Error
	for _, table := range tables {
		var nullable string
		err := db.QueryRowContext(ctx, tenantColumnQuery, table, column).Scan(&nullable)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			result = multierror.Append(result, fmt.Errorf("table %s has no %s column", table, column))
		case err != nil:
			return fmt.Errorf("inspect table %s: %w", table, err)
		case nullable != "NO":
			result = multierror.Append(result, fmt.Errorf("column %s.%s must be NOT NULL", table, column))
		}
	}
	return result.ErrorOrNil()
}

// migrateLogger adapts zap to golang-migrate's logger
type migrateLogger struct {
	*zap.SugaredLogger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.Debugf(format, v...)
}

func (l migrateLogger) Verbose() bool { return false }
