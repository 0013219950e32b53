package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/cbrane/nexus/internal/db"
)

// OpenTestDB creates an in-memory SQLite DB and applies the nexus schema.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	_, _ = database.Exec("PRAGMA foreign_keys = ON")

	if _, err := database.Exec(db.Schema()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return database
}
