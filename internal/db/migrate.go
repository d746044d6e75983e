// Database schema migration management. Migrations are compiled in so
// the daemon has no runtime dependency on a migrations directory.
package db

import (
	"database/sql"
	"fmt"
	"time"
)

// migration is one versioned schema step.
type migration struct {
	version     int
	description string
	statements  []string
}

var migrations = []migration{
	{
		version:     1,
		description: "initial schema",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS words (
				id TEXT PRIMARY KEY,
				display_text TEXT NOT NULL,
				normalized_text TEXT NOT NULL,
				definitions TEXT NOT NULL DEFAULT '[]',
				phonetic TEXT NOT NULL DEFAULT '',
				audio_url TEXT NOT NULL DEFAULT '',
				context TEXT NOT NULL DEFAULT '',
				source_url TEXT NOT NULL DEFAULT '',
				source_title TEXT NOT NULL DEFAULT '',
				language TEXT NOT NULL DEFAULT 'en',
				tags TEXT NOT NULL DEFAULT '[]',
				favorite INTEGER NOT NULL DEFAULT 0,
				note TEXT NOT NULL DEFAULT '',
				view_count INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL,
				last_viewed_at INTEGER NOT NULL DEFAULT 0,
				deleted_at INTEGER NOT NULL DEFAULT 0
			);`,
			`CREATE INDEX IF NOT EXISTS idx_words_normalized ON words(normalized_text);`,
			`CREATE INDEX IF NOT EXISTS idx_words_created ON words(created_at);`,
			`CREATE TABLE IF NOT EXISTS review_states (
				id TEXT PRIMARY KEY REFERENCES words(id) ON DELETE CASCADE,
				next_review_at INTEGER NOT NULL,
				interval_days INTEGER NOT NULL DEFAULT 0,
				ease_factor REAL NOT NULL DEFAULT 2.5,
				repetitions INTEGER NOT NULL DEFAULT 0
			);`,
			`CREATE INDEX IF NOT EXISTS idx_review_due ON review_states(next_review_at);`,
			`CREATE TABLE IF NOT EXISTS review_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				owner_id TEXT NOT NULL REFERENCES review_states(id) ON DELETE CASCADE,
				reviewed_at INTEGER NOT NULL,
				rating INTEGER NOT NULL,
				interval_before INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_history_owner ON review_history(owner_id);`,
			`CREATE TABLE IF NOT EXISTS quiz_sessions (
				key TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				created_at INTEGER NOT NULL,
				expires_at INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_quiz_expires ON quiz_sessions(expires_at);`,
		},
	},
}

// Migrator applies pending schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL,
		description TEXT NOT NULL CHECK(length(description) > 0)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version, 0 when none.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Up applies all pending migrations, each inside a transaction.
func (m *Migrator) Up() error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, mig := range migrations {
		if mig.version <= current {
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", mig.version, err)
		}

		for _, stmt := range mig.statements {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", mig.version, mig.description, err)
			}
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			mig.version, time.Now().Unix(), mig.description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", mig.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", mig.version, err)
		}
	}

	return nil
}
