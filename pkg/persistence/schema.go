package persistence

import (
	"database/sql"
	"fmt"
)

// createSchema creates the tables if they do not exist. The schema is small
// enough that idempotent CREATE IF NOT EXISTS replaces versioned migrations.
func createSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS message_queue (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			payload    TEXT    NOT NULL,
			created_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`,
		`CREATE TABLE IF NOT EXISTS persona_cache (
			email       TEXT PRIMARY KEY,
			first_name  TEXT,
			department  TEXT,
			team        TEXT,
			resolved_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
