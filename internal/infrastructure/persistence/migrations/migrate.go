// Package migrations versions the postgres schema behind the gorm gateway.
// The SQL lives in sql/ and is embedded into the binary.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

const migrationsTable = "ecofridge_schema_migrations"

// ErrDirty is returned when a previous migration failed half way. The
// schema has to be repaired by hand before the server will start.
var ErrDirty = errors.New("schema is dirty")

// Result describes one Up run
type Result struct {
	From     uint
	To       uint
	Duration time.Duration
}

// Applied reports whether the run changed the schema
func (r Result) Applied() bool {
	return r.From != r.To
}

// Migrator applies the embedded migrations
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New prepares a migrator on db. Close closes db.
func New(db *sql.DB, databaseName string, logger *zap.Logger) (*Migrator, error) {
	source, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: migrationsTable,
		DatabaseName:    databaseName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, databaseName, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{migrate: m, logger: logger.Named("migrations")}, nil
}

// Up applies every pending migration. A dirty schema is refused.
func (m *Migrator) Up() (Result, error) {
	start := time.Now()

	from, dirty, err := m.version()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return Result{From: from, To: from}, fmt.Errorf("%w at version %d", ErrDirty, from)
	}

	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Result{From: from}, fmt.Errorf("failed to apply migrations: %w", err)
	}

	to, _, err := m.version()
	if err != nil {
		return Result{From: from}, fmt.Errorf("failed to read schema version: %w", err)
	}

	res := Result{From: from, To: to, Duration: time.Since(start)}
	if res.Applied() {
		m.logger.Info("Schema migrated",
			zap.Uint("from_version", res.From),
			zap.Uint("to_version", res.To),
			zap.Duration("duration", res.Duration),
		)
	} else {
		m.logger.Debug("Schema up to date", zap.Uint("version", res.To))
	}
	return res, nil
}

// version treats a fresh database as version 0
func (m *Migrator) version() (uint, bool, error) {
	v, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the source and the database handle passed to New
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}
