// Package journal persists every submission and dispatch to SQLite so queue
// state survives between CLI invocations. The live queues stay in memory;
// the journal is what rebuilds them on the next run.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucasdoreac/triage/internal/db"
	"github.com/lucasdoreac/triage/internal/task"
)

// Status tracks what happened to a journaled submission.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusRejected   Status = "rejected"
)

// Known submission sources.
const (
	SourceCLI   = "cli"
	SourceSpool = "spool"
	SourceDemo  = "demo"
)

// ErrNoPendingEntry is returned by MarkDispatched when no pending entry
// matches the dispatched task.
var ErrNoPendingEntry = errors.New("no pending journal entry for task")

// timeLayout is fixed-width UTC so that lexicographic ordering of the stored
// strings matches chronological ordering.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Entry is one journaled submission.
type Entry struct {
	ID           string     `json:"id"`
	Task         task.Task  `json:"task"`
	Status       Status     `json:"status"`
	Source       string     `json:"source,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
}

// Totals holds lifetime counters across all journal entries.
type Totals struct {
	Submitted  int `json:"submitted"`
	Pending    int `json:"pending"`
	Dispatched int `json:"dispatched"`
	Rejected   int `json:"rejected"`
}

// Journal records queue activity in SQLite.
type Journal struct {
	db      *db.DB
	nowFunc func() time.Time
}

// New creates a Journal backed by the given database.
func New(database *db.DB) *Journal {
	return &Journal{
		db:      database,
		nowFunc: time.Now,
	}
}

// RecordSubmitted inserts a pending entry for an accepted task and returns
// the entry id.
func (j *Journal) RecordSubmitted(t task.Task, source string) (string, error) {
	return j.insert(t, source, StatusPending)
}

// RecordRejected inserts a rejected entry so refused submissions still show
// up in the history.
func (j *Journal) RecordRejected(t task.Task, source string) (string, error) {
	return j.insert(t, source, StatusRejected)
}

func (j *Journal) insert(t task.Task, source string, status Status) (string, error) {
	id := uuid.NewString()
	submittedAt := j.nowFunc().UTC().Format(timeLayout)

	_, err := j.db.SQL().Exec(
		`INSERT INTO journal_entries (id, name, description, class, status, submitted_at, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, t.Name, t.Description, t.Class, string(status), submittedAt, source,
	)
	if err != nil {
		return "", fmt.Errorf("insert journal entry: %w", err)
	}
	return id, nil
}

// MarkDispatched flips the oldest pending entry carrying the same name,
// description and class to dispatched and returns its id. Identical tasks
// are interchangeable, so oldest-first matching preserves arrival order.
func (j *Journal) MarkDispatched(t task.Task) (string, error) {
	tx, err := j.db.SQL().Begin()
	if err != nil {
		return "", fmt.Errorf("begin dispatch update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRow(
		`SELECT id FROM journal_entries
		 WHERE status = ? AND class = ? AND name = ? AND description = ?
		 ORDER BY submitted_at, rowid
		 LIMIT 1`,
		string(StatusPending), t.Class, t.Name, t.Description,
	)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %q (class %d)", ErrNoPendingEntry, t.Name, t.Class)
		}
		return "", fmt.Errorf("find pending entry: %w", err)
	}

	dispatchedAt := j.nowFunc().UTC().Format(timeLayout)
	if _, err := tx.Exec(
		`UPDATE journal_entries SET status = ?, dispatched_at = ? WHERE id = ?`,
		string(StatusDispatched), dispatchedAt, id,
	); err != nil {
		return "", fmt.Errorf("mark entry dispatched: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit dispatch update: %w", err)
	}
	return id, nil
}

// Pending returns the entries still waiting for dispatch, oldest first.
// Replaying them through the queue in this order reproduces the arrival
// order within every class.
func (j *Journal) Pending() ([]Entry, error) {
	rows, err := j.db.SQL().Query(
		`SELECT id, name, description, class, status, CAST(submitted_at AS TEXT), CAST(dispatched_at AS TEXT), source
		 FROM journal_entries
		 WHERE status = ?
		 ORDER BY submitted_at, rowid`,
		string(StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("query pending entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// Recent returns the newest entries across all statuses, newest first.
// A limit of 0 or less means no limit.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	query := `SELECT id, name, description, class, status, CAST(submitted_at AS TEXT), CAST(dispatched_at AS TEXT), source
	          FROM journal_entries
	          ORDER BY submitted_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.SQL().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// Totals counts entries by status across the journal's lifetime.
func (j *Journal) Totals() (*Totals, error) {
	rows, err := j.db.SQL().Query(
		`SELECT status, COUNT(*) FROM journal_entries GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	totals := &Totals{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		switch Status(status) {
		case StatusPending:
			totals.Pending = count
		case StatusDispatched:
			totals.Dispatched = count
		case StatusRejected:
			totals.Rejected = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("totals rows: %w", err)
	}

	totals.Submitted = totals.Pending + totals.Dispatched
	return totals, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e             Entry
			status        string
			submittedRaw  string
			dispatchedRaw sql.NullString
			source        string
		)
		if err := rows.Scan(&e.ID, &e.Task.Name, &e.Task.Description, &e.Task.Class, &status, &submittedRaw, &dispatchedRaw, &source); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Status = Status(status)
		e.Source = source
		if t, ok := parseDBTimestamp(submittedRaw); ok {
			e.SubmittedAt = t
		}
		if dispatchedRaw.Valid {
			if t, ok := parseDBTimestamp(dispatchedRaw.String); ok {
				e.DispatchedAt = &t
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal rows: %w", err)
	}
	return entries, nil
}

// parseDBTimestamp tolerates the handful of formats SQLite hands back for
// DATETIME columns, including rows written by CURRENT_TIMESTAMP.
func parseDBTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	layouts := []string{
		timeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
