// Package migrator implements database migrations
package migrator

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrator implements DB migrations.
type Migrator struct {
	logger    *slog.Logger
	srcDriver source.Driver
}

// New returns new instance of Migrator.
func New(sqlFiles fs.FS, dirName string, logger *slog.Logger) (*Migrator, error) {
	d, err := iofs.New(sqlFiles, dirName)
	if err != nil {
		return nil, err
	}

	return &Migrator{
		logger:    logger,
		srcDriver: d,
	}, nil
}

// ApplyMigrations applies DB migrations and returns the resulting schema version.
func (m *Migrator) ApplyMigrations(db *sql.DB) (uint, error) {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return 0, fmt.Errorf("unable to create db instance: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", m.srcDriver, "sqlite3", driver)
	if err != nil {
		return 0, fmt.Errorf("unable to create migration: %w", err)
	}

	m.logger.Debug("Applying DB migrations")

	if err = migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("unable to apply migrations: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		m.logger.Error("Failed to get DB migration version", "err", err)

		return 0, nil
	}

	m.logger.Debug("Current DB migration version", "version", version, "dirty", dirty)

	return version, nil
}
