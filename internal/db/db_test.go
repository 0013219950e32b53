package db

import (
	"path/filepath"
	"testing"
)

func TestInitAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nexus.db")

	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	// Schema application is idempotent and the tables exist.
	for _, table := range []string{"reports", "amendment_records"} {
		var name string
		err := database.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}
