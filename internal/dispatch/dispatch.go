// Package dispatch coordinates the priority queue with its collaborators.
// It journals every submission and dispatch, rebuilds the in-memory queues
// from the journal at startup, and fans queue events out to the CLI and TUI.
package dispatch

import (
	"fmt"

	"github.com/lucasdoreac/triage/internal/journal"
	"github.com/lucasdoreac/triage/internal/logging"
	"github.com/lucasdoreac/triage/internal/queue"
	"github.com/lucasdoreac/triage/internal/task"
)

// Service binds a queue.Manager to an optional journal. The manager holds
// the live queues; the journal makes them survive process restarts.
type Service struct {
	manager *queue.Manager
	journal *journal.Journal
	logger  *logging.Logger
	handler queue.EventHandler // optional callback for queue lifecycle events

	// replaying suppresses event delivery while the queue is being rebuilt
	// from the journal. Set only during New, before any concurrency.
	replaying bool
}

// Option configures a Service.
type Option func(*Service)

// WithJournal sets the journal that records submissions and dispatches.
func WithJournal(j *journal.Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithEventHandler sets an optional callback for queue lifecycle events.
// Replayed journal entries do not produce events.
func WithEventHandler(h queue.EventHandler) Option {
	return func(s *Service) {
		s.handler = h
	}
}

// New creates a Service over the given priority classes and, when a journal
// is configured, replays its pending entries into the queue so the process
// picks up exactly where the previous one stopped.
func New(classes []int, opts ...Option) (*Service, error) {
	s := &Service{
		logger: logging.Component("dispatch"),
	}
	for _, opt := range opts {
		opt(s)
	}

	manager, err := queue.NewManager(classes, queue.WithEventHandler(s.emit))
	if err != nil {
		return nil, err
	}
	s.manager = manager

	if s.journal != nil {
		if err := s.replay(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// emit forwards manager events to the registered handler, if any.
func (s *Service) emit(e queue.Event) {
	if s.replaying || s.handler == nil {
		return
	}
	s.handler(e)
}

// replay feeds the journal's pending entries back into the queue in
// submission order, which reproduces the arrival order within every class.
// Entries whose class is no longer configured stay pending in the journal
// so they are not lost if the class comes back.
func (s *Service) replay() error {
	pending, err := s.journal.Pending()
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}

	s.replaying = true
	defer func() { s.replaying = false }()

	replayed := 0
	for _, e := range pending {
		if err := s.manager.Submit(e.Task); err != nil {
			s.logger.Warnf("journal entry %s not replayed: %v", e.ID, err)
			continue
		}
		replayed++
	}
	if replayed > 0 {
		s.logger.Infof("replayed %d pending tasks from the journal", replayed)
	}
	return nil
}

// Submit journals and enqueues a task. source tags where the submission came
// from (cli, spool, demo). Rejected tasks are journaled as rejected and the
// queue error is returned unchanged, so errors.Is(err, queue.ErrUnknownClass)
// works at call sites.
func (s *Service) Submit(t task.Task, source string) error {
	if !s.manager.Recognizes(t.Class) {
		if s.journal != nil {
			if _, jerr := s.journal.RecordRejected(t, source); jerr != nil {
				s.logger.Errorf("journal rejected task %q: %v", t.Name, jerr)
			}
		}
		return s.manager.Submit(t)
	}

	// Journal before enqueueing: a task that is visible in memory must
	// always have a pending journal row behind it.
	if s.journal != nil {
		if _, err := s.journal.RecordSubmitted(t, source); err != nil {
			return fmt.Errorf("journal submission of %q: %w", t.Name, err)
		}
	}
	return s.manager.Submit(t)
}

// Next dispatches the most urgent pending task and marks it dispatched in
// the journal. ok is false when the queue is empty. When ok is true and err
// is non-nil the task was dispatched but the journal update failed.
func (s *Service) Next() (task.Task, bool, error) {
	t, ok := s.manager.Next()
	if !ok {
		return task.Task{}, false, nil
	}
	if s.journal != nil {
		if _, err := s.journal.MarkDispatched(t); err != nil {
			return t, true, fmt.Errorf("journal dispatch of %q: %w", t.Name, err)
		}
	}
	return t, true, nil
}

// Peek returns the task Next would dispatch without removing it.
func (s *Service) Peek() (task.Task, bool) {
	return s.manager.Peek()
}

// Stats returns the live queue population.
func (s *Service) Stats() queue.Stats {
	return s.manager.Stats()
}

// Snapshot returns the full queue contents grouped by class.
func (s *Service) Snapshot() []queue.ClassSnapshot {
	return s.manager.Snapshot()
}

// Classes returns the configured priority classes in ascending order.
func (s *Service) Classes() []int {
	return s.manager.Classes()
}

// Recognizes reports whether submissions of the given class are accepted.
func (s *Service) Recognizes(class int) bool {
	return s.manager.Recognizes(class)
}

// Drain dispatches queued tasks until the queue is empty, handing each one
// to fn. A nil fn just journals and counts. Drain stops at the first error
// and reports how many tasks were dispatched, including the failed one.
func (s *Service) Drain(fn func(task.Task) error) (int, error) {
	count := 0
	for {
		t, ok, err := s.Next()
		if !ok {
			return count, nil
		}
		count++
		if err != nil {
			return count, err
		}
		if fn != nil {
			if err := fn(t); err != nil {
				return count, err
			}
		}
	}
}
