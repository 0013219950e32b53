// Package db opens the nexus index database: a local SQLite file holding
// reports and amendment records. Document lifecycle state is NOT stored
// here; the object store prefix is the source of truth for state, and the
// index can always be rebuilt from the bucket plus a reprocessing pass.
package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Init creates the database file and applies the schema.
func Init(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("db: create data directory: %w", err)
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("db: open %s: %w", path, err)
	}
	defer database.Close()

	if _, err := database.Exec(schemaSQL); err != nil {
		return fmt.Errorf("db: apply schema: %w", err)
	}
	return nil
}

// Open opens an existing database, applying the schema if the file is new.
func Open(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	if _, err := database.Exec("PRAGMA foreign_keys = ON"); err != nil {
		database.Close()
		return nil, fmt.Errorf("db: enable foreign keys: %w", err)
	}
	if _, err := database.Exec(schemaSQL); err != nil {
		database.Close()
		return nil, fmt.Errorf("db: apply schema: %w", err)
	}
	return database, nil
}

// Schema returns the embedded schema SQL. Used by test helpers.
func Schema() string {
	return schemaSQL
}
