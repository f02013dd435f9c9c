package db

import (
	"path/filepath"
	"testing"
)

// TestPragmasApplied verifies that essential PRAGMAs are set on open.
func TestPragmasApplied(t *testing.T) {
	database := setupUnmigratedDB(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"busy_timeout", "5000"},
		{"synchronous", "1"}, // NORMAL
		{"temp_store", "2"},  // MEMORY
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		var got string
		if err := database.QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", tt.pragma, err)
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %s, want %s", tt.pragma, got, tt.want)
		}
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenAndMigrate_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	first, err := OpenAndMigrate(path)
	if err != nil {
		t.Fatalf("OpenAndMigrate: %v", err)
	}
	first.Close()

	second, err := OpenAndMigrate(path)
	if err != nil {
		t.Fatalf("second OpenAndMigrate: %v", err)
	}
	defer second.Close()

	if err := second.CheckMigrations(Migrations()); err != nil {
		t.Errorf("CheckMigrations after reopen: %v", err)
	}
}
