package db

import (
	"database/sql"
	"fmt"

	"github.com/lucasdoreac/triage/internal/logging"
)

type migration struct {
	version int
	name    string
	ddl     string
}

// Schema history. Each step runs once, in order, inside its own
// transaction; PRAGMA user_version records the last applied step.
var schema = []migration{
	{1, "journal_entries", `
CREATE TABLE journal_entries (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    description   TEXT NOT NULL,
    class         INTEGER NOT NULL,
    status        TEXT NOT NULL,
    submitted_at  DATETIME NOT NULL,
    dispatched_at DATETIME
);

CREATE INDEX idx_journal_status_time ON journal_entries(status, submitted_at);
CREATE INDEX idx_journal_class ON journal_entries(class);
`},
	{2, "journal_entries.source", `
ALTER TABLE journal_entries ADD COLUMN source TEXT NOT NULL DEFAULT '';
`},
}

func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	log := logging.Component("db")
	for _, step := range schema {
		if step.version <= current {
			continue
		}

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", step.version, err)
		}
		if _, err := tx.Exec(step.ddl); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", step.version, step.name, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", step.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", step.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", step.version, err)
		}

		log.Infof("applied migration %d (%s)", step.version, step.name)
		current = step.version
	}
	return nil
}

func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}
