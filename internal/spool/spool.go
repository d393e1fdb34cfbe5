// Package spool ingests task files dropped into a watched directory.
// A spool file is a JSON document carrying a task's name, description and
// class; processed files move to done/ or failed/ subdirectories.
package spool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lucasdoreac/triage/internal/logging"
	"github.com/lucasdoreac/triage/internal/task"
)

// Archive subdirectories inside the spool.
const (
	doneDir   = "done"
	failedDir = "failed"
)

// Watcher state errors.
var (
	ErrAlreadyWatching = errors.New("spool watcher already running")
	ErrNotWatching     = errors.New("spool watcher not running")
)

// Handler consumes a task parsed from a spool file. A non-nil error moves
// the file to failed/ instead of done/.
type Handler func(t task.Task) error

// Watcher scans and watches a spool directory for task files.
type Watcher struct {
	dir     string
	handler Handler
	logger  *logging.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	done    chan struct{}
	running bool

	// procMu serializes file processing so a scan and a watch event can
	// never ingest the same file twice.
	procMu sync.Mutex
}

// New creates a watcher over dir. Nothing happens until Scan or Start.
func New(dir string, handler Handler) *Watcher {
	return &Watcher{
		dir:     dir,
		handler: handler,
		logger:  logging.Component("spool"),
	}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Scan ingests every task file already sitting in the spool directory and
// returns the number accepted. Malformed files move to failed/; a missing
// spool directory is not an error.
func (w *Watcher) Scan() (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read spool dir: %w", err)
	}

	ingested := 0
	for _, entry := range entries {
		if entry.IsDir() || !isTaskFile(entry.Name()) {
			continue
		}
		if w.process(filepath.Join(w.dir, entry.Name()), true) {
			ingested++
		}
	}
	return ingested, nil
}

// Start launches the fsnotify loop. The spool directory is created if
// missing. Files are processed as they appear until Stop or context
// cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyWatching
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create spool dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		w.mu.Unlock()
		return fmt.Errorf("watch spool dir: %w", err)
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.running = true
	done := w.done
	w.mu.Unlock()

	go w.loop(ctx, fsw, done)
	return nil
}

// Stop halts the watch loop and waits for it to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return ErrNotWatching
	}
	w.running = false
	fsw := w.fsw
	done := w.done
	w.fsw = nil
	w.mu.Unlock()

	_ = fsw.Close() // closes the event channel, the loop exits
	<-done
	return nil
}

// IsRunning reports whether the watch loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isTaskFile(filepath.Base(event.Name)) {
				continue
			}
			w.process(event.Name, false)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("spool watcher error: %v", err)
		}
	}
}

// process reads one spool file and hands the task over. archiveMalformed is
// set for scans, where file contents are stable; watch events may observe a
// half-written file, so those leave unparsable files in place for a later
// write or scan to finish.
func (w *Watcher) process(path string, archiveMalformed bool) bool {
	w.procMu.Lock()
	defer w.procMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warnf("read spool file %s: %v", filepath.Base(path), err)
		}
		return false
	}

	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil || strings.TrimSpace(t.Name) == "" {
		if archiveMalformed {
			w.logger.Warnf("malformed spool file %s", filepath.Base(path))
			w.archive(path, failedDir)
		}
		return false
	}

	if err := w.handler(t); err != nil {
		w.logger.Warnf("spool task %q refused: %v", t.Name, err)
		w.archive(path, failedDir)
		return false
	}

	w.logger.Infof("ingested spool task %q (class %d)", t.Name, t.Class)
	w.archive(path, doneDir)
	return true
}

func (w *Watcher) archive(path, sub string) {
	dir := filepath.Join(w.dir, sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.logger.Errorf("create %s dir: %v", sub, err)
		return
	}

	target := filepath.Join(dir, time.Now().Format("20060102-150405.000")+"-"+filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		w.logger.Errorf("archive %s: %v", filepath.Base(path), err)
	}
}

func isTaskFile(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}
