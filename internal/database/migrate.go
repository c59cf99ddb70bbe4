package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// MigrationResult reports the schema version after Migrate.
type MigrationResult struct {
	Version uint
	Changed bool
	Empty   bool
}

// Migrate applies every pending up migration from sourceURL (for example
// file://migrations). A dirty version is an error that needs manual repair.
func Migrate(databaseURL, sourceURL string) (MigrationResult, error) {
	var result MigrationResult

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return result, fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return result, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return result, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return result, fmt.Errorf("failed to apply migrations: %w", upErr)
	}
	result.Changed = upErr == nil

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		result.Empty = true
	case err != nil:
		return result, fmt.Errorf("failed to get migration version: %w", err)
	case dirty:
		return result, fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	}
	result.Version = version
	return result, nil
}
