// Package stats computes aggregate statistics for the triage queue.
// It merges the manager's live counts with history read straight from the
// journal's table.
package stats

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lucasdoreac/triage/internal/db"
	"github.com/lucasdoreac/triage/internal/journal"
	"github.com/lucasdoreac/triage/internal/logging"
	"github.com/lucasdoreac/triage/internal/queue"
	"github.com/lucasdoreac/triage/internal/task"
)

// Duration is a time.Duration that travels through JSON as whole seconds.
type Duration struct {
	time.Duration
}

// MarshalJSON encodes the duration as seconds.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(d.Duration / time.Second))
}

// UnmarshalJSON decodes seconds back into a duration.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var secs int64
	if err := json.Unmarshal(b, &secs); err != nil {
		return err
	}
	d.Duration = time.Duration(secs) * time.Second
	return nil
}

// String renders the duration at a precision that suits its size, such
// as "42s", "12m 5s" or "3h 40m".
func (d Duration) String() string {
	switch dur := d.Duration; {
	case dur < time.Minute:
		return fmt.Sprintf("%ds", int(dur.Seconds()))
	case dur < time.Hour:
		return fmt.Sprintf("%dm %ds", int(dur.Minutes()), int(dur.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(dur.Hours()), int(dur.Minutes())%60)
	}
}

// ClassCount is the live depth of one priority class.
type ClassCount struct {
	Class int    `json:"class"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// StatsResult is the full stats read model, ready for JSON output.
type StatsResult struct {
	GeneratedAt time.Time `json:"generated_at"`

	// Live queue
	QueueTotal int          `json:"queue_total"`
	Classes    []ClassCount `json:"classes,omitempty"`

	// Journal lifetime
	Submitted        int        `json:"submitted"`
	Dispatched       int        `json:"dispatched"`
	Rejected         int        `json:"rejected"`
	Pending          int        `json:"pending"`
	FirstSubmittedAt *time.Time `json:"first_submitted_at,omitempty"`
	LastSubmittedAt  *time.Time `json:"last_submitted_at,omitempty"`
	OldestPendingAge *Duration  `json:"oldest_pending_age,omitempty"`
}

// Stats computes aggregate statistics from queue and journal data.
type Stats struct {
	db       *db.DB
	labelFor func(int) string
	nowFunc  func() time.Time
	log      *logging.Logger
}

// New creates a Stats instance. database may be nil, in which case results
// carry live queue numbers only. labelFor resolves class display labels and
// may be nil to use the defaults.
func New(database *db.DB, labelFor func(int) string) *Stats {
	if labelFor == nil {
		labelFor = task.Label
	}
	return &Stats{
		db:       database,
		labelFor: labelFor,
		nowFunc:  time.Now,
		log:      logging.Component("stats"),
	}
}

// Compute merges the manager's live stats with journal history. classes must
// be the recognized classes in ascending order.
func (s *Stats) Compute(qs queue.Stats, classes []int) (*StatsResult, error) {
	result := &StatsResult{
		GeneratedAt: s.nowFunc().UTC(),
		QueueTotal:  qs.Total,
	}
	for _, class := range classes {
		result.Classes = append(result.Classes, ClassCount{
			Class: class,
			Label: s.labelFor(class),
			Count: qs.PerClass[class],
		})
	}

	if s.db != nil {
		s.computeFromJournal(result)
	}

	return result, nil
}

// computeFromJournal queries the journal_entries table for lifetime stats.
func (s *Stats) computeFromJournal(result *StatsResult) {
	sqlDB := s.db.SQL()
	if sqlDB == nil {
		return
	}

	rows, err := sqlDB.Query(`SELECT status, COUNT(*) FROM journal_entries GROUP BY status`)
	if err != nil {
		s.log.Errorf("count journal entries: %v", err)
		return
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			s.log.Errorf("scan status count: %v", err)
			continue
		}
		switch journal.Status(status) {
		case journal.StatusPending:
			result.Pending = count
		case journal.StatusDispatched:
			result.Dispatched = count
		case journal.StatusRejected:
			result.Rejected = count
		}
	}
	if err := rows.Err(); err != nil {
		s.log.Errorf("journal rows: %v", err)
	}
	result.Submitted = result.Pending + result.Dispatched

	// First and last accepted submission. Scan as strings because the modernc
	// SQLite driver returns aggregated DATETIME columns as strings.
	row := sqlDB.QueryRow(
		`SELECT CAST(MIN(submitted_at) AS TEXT), CAST(MAX(submitted_at) AS TEXT)
		 FROM journal_entries WHERE status <> ?`,
		string(journal.StatusRejected),
	)
	var firstRaw, lastRaw sql.NullString
	if err := row.Scan(&firstRaw, &lastRaw); err != nil {
		s.log.Errorf("journal min/max: %v", err)
	} else {
		if firstRaw.Valid {
			if t, ok := parseDBTimestamp(firstRaw.String); ok {
				result.FirstSubmittedAt = &t
			}
		}
		if lastRaw.Valid {
			if t, ok := parseDBTimestamp(lastRaw.String); ok {
				result.LastSubmittedAt = &t
			}
		}
	}

	// Age of the pending task that has been waiting longest.
	row = sqlDB.QueryRow(
		`SELECT CAST(MIN(submitted_at) AS TEXT) FROM journal_entries WHERE status = ?`,
		string(journal.StatusPending),
	)
	var oldestRaw sql.NullString
	if err := row.Scan(&oldestRaw); err != nil {
		s.log.Errorf("oldest pending: %v", err)
		return
	}
	if oldestRaw.Valid {
		if t, ok := parseDBTimestamp(oldestRaw.String); ok {
			age := s.nowFunc().UTC().Sub(t)
			if age < 0 {
				age = 0
			}
			result.OldestPendingAge = &Duration{age}
		}
	}
}

func parseDBTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	layouts := []string{
		"2006-01-02 15:04:05.000000000",
		time.RFC3339Nano,
		time.RFC3339,
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
