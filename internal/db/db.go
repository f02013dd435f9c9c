package db

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

// pragmas are applied to every connection opened through Open.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// DB is the scene index and run provenance store.
type DB struct {
	*sql.DB
}

// Open opens the SQLite database at path and applies the connection pragmas.
// The schema is managed by migrations; Open does not create tables. Use
// OpenAndMigrate to bring a fresh file up to the latest schema.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// SQLite serialises writers; a single connection keeps the pragmas and
	// WAL state consistent across the pool.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return &DB{sqlDB}, nil
}

// OpenAndMigrate opens path and applies every pending embedded migration.
func OpenAndMigrate(path string) (*DB, error) {
	database, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateUp(Migrations()); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
