package db

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/wordstash/wordstash/internal/clock"
)

// setupTestDB opens an isolated on-disk database with the full schema
// applied. Each test gets its own database under t.TempDir.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	database.SetMaxOpenConns(1)
	if _, err := database.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := NewMigrator(database).Up(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { database.Close() })
	return database
}

// fixedClock pins store timestamps for deterministic assertions.
var fixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() clock.Clock {
	return clock.Fixed(fixedTime)
}

// validDraft returns a draft that passes validation.
func validDraft() Draft {
	return Draft{
		Text:      "serendipity",
		Context:   "A fortunate stroke of serendipity brought them together.",
		SourceURL: "https://example.com/article",
		Language:  "en",
		Tags:      []string{"literature"},
	}
}

func TestMigratorIsIdempotent(t *testing.T) {
	database := setupTestDB(t)

	m := NewMigrator(database)
	if err := m.Up(); err != nil {
		t.Fatalf("second Up failed: %v", err)
	}

	version, err := m.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
}
