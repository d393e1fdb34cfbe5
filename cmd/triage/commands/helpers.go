package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lucasdoreac/triage/internal/config"
	"github.com/lucasdoreac/triage/internal/db"
	"github.com/lucasdoreac/triage/internal/dispatch"
	"github.com/lucasdoreac/triage/internal/journal"
	"github.com/lucasdoreac/triage/internal/logging"
)

// openDispatch opens the journal database and builds a dispatch service over
// the configured classes. Pending journal entries are replayed into the
// queues, so the service sees everything submitted by earlier invocations.
// The caller closes the returned database.
func openDispatch(cfg *config.Config) (*dispatch.Service, *db.DB, error) {
	database, err := db.Open(cfg.StoragePath())
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}

	svc, err := dispatch.New(cfg.ClassNumbers(), dispatch.WithJournal(journal.New(database)))
	if err != nil {
		_ = database.Close()
		return nil, nil, fmt.Errorf("init dispatcher: %w", err)
	}
	return svc, database, nil
}

// initLogging initializes the logging subsystem for long-running commands.
func initLogging(cfg *config.Config) error {
	return logging.Init(logging.Config{
		Level:         cfg.Logging.Level,
		Path:          cfg.Logging.Path,
		Format:        cfg.Logging.Format,
		RetentionDays: cfg.Logging.RetentionDays,
	})
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// preview shortens a description for one-line listings.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
