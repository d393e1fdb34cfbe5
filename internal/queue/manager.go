// Package queue implements the strict-priority dispatch core of triage:
// one FIFO queue per priority class, always served in ascending class order.
package queue

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lucasdoreac/triage/internal/logging"
	"github.com/lucasdoreac/triage/internal/task"
)

// Submission and construction errors.
var (
	// ErrUnknownClass is returned by Submit when a task carries a priority
	// class the manager was not configured with. Nothing is stored.
	ErrUnknownClass = errors.New("unknown priority class")

	// ErrNoClasses is returned by NewManager for an empty class set.
	ErrNoClasses = errors.New("no priority classes configured")

	// ErrInvalidClass is returned by NewManager for a class that is zero
	// or negative.
	ErrInvalidClass = errors.New("priority class must be a positive integer")

	// ErrDuplicateClass is returned by NewManager when a class appears twice.
	ErrDuplicateClass = errors.New("duplicate priority class")
)

// Stats reports the queue population at a point in time. PerClass carries an
// entry for every configured class, including empty ones.
type Stats struct {
	Total    int         `json:"total"`
	PerClass map[int]int `json:"per_class"`
}

// ClassSnapshot is a read-only listing of one class queue, tasks in FIFO
// order. The slice is a copy; mutating it does not touch the queue.
type ClassSnapshot struct {
	Class int         `json:"class"`
	Tasks []task.Task `json:"tasks"`
}

// Manager routes tasks into per-class FIFO queues and hands them back in
// strict priority order: the lowest class number that has work always drains
// first, and a class never starves a lower one. There is no aging and no
// fairness between classes.
//
// All methods are safe for concurrent use. The priority scan and the dequeue
// happen under one lock, so two callers can never claim the same task.
type Manager struct {
	mu      sync.Mutex
	classes []int // configured classes, ascending, fixed for the manager's lifetime
	queues  map[int]*classQueue
	logger  *logging.Logger
	events  EventHandler // optional callback for queue lifecycle events
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithEventHandler sets an optional callback for queue lifecycle events.
// The handler runs synchronously on the calling goroutine, outside the
// manager's lock.
func WithEventHandler(h EventHandler) Option {
	return func(m *Manager) {
		m.events = h
	}
}

// NewManager creates a manager that recognizes exactly the given priority
// classes. Classes must be positive and unique; the set cannot be empty.
// Input order does not matter, dispatch order is always ascending.
func NewManager(classes []int, opts ...Option) (*Manager, error) {
	if len(classes) == 0 {
		return nil, ErrNoClasses
	}

	sorted := make([]int, len(classes))
	copy(sorted, classes)
	sort.Ints(sorted)

	queues := make(map[int]*classQueue, len(sorted))
	for i, c := range sorted {
		if c <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidClass, c)
		}
		if i > 0 && sorted[i-1] == c {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateClass, c)
		}
		queues[c] = newClassQueue()
	}

	m := &Manager{
		classes: sorted,
		queues:  queues,
		logger:  logging.Component("queue"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Classes returns the configured priority classes in ascending order.
func (m *Manager) Classes() []int {
	out := make([]int, len(m.classes))
	copy(out, m.classes)
	return out
}

// Recognizes reports whether the manager accepts tasks of the given class.
func (m *Manager) Recognizes(class int) bool {
	_, ok := m.queues[class]
	return ok
}

// emit sends an event to the registered handler, if any.
func (m *Manager) emit(e Event) {
	if m.events != nil {
		e.Time = time.Now()
		m.events(e)
	}
}

// Submit appends a task to the back of its class queue. A task whose class
// is not configured is rejected with ErrUnknownClass and nothing changes.
func (m *Manager) Submit(t task.Task) error {
	m.mu.Lock()
	q, ok := m.queues[t.Class]
	if ok {
		q.enqueue(t)
	}
	m.mu.Unlock()

	if !ok {
		err := fmt.Errorf("%w: %d", ErrUnknownClass, t.Class)
		m.logger.Warnf("rejected task %q: %v", t.Name, err)
		m.emit(Event{
			Type:    EventRejected,
			Task:    t,
			Class:   t.Class,
			Message: fmt.Sprintf("Error: invalid priority class (%d)", t.Class),
			Err:     err,
		})
		return err
	}

	m.logger.Debugf("task %q queued with priority %d", t.Name, t.Class)
	m.emit(Event{
		Type:    EventSubmitted,
		Task:    t,
		Class:   t.Class,
		Message: fmt.Sprintf("Task %q added with priority %d", t.Name, t.Class),
	})
	return nil
}

// Next removes and returns the most urgent pending task: classes are scanned
// in ascending order and the head of the first non-empty queue is taken.
// Within a class, tasks leave in the order they arrived. ok is false when
// every queue is empty; an empty manager is a normal condition, not an error.
func (m *Manager) Next() (task.Task, bool) {
	m.mu.Lock()
	for _, c := range m.classes {
		if t, ok := m.queues[c].dequeue(); ok {
			m.mu.Unlock()
			m.logger.Debugf("dispatched task %q from class %d", t.Name, c)
			m.emit(Event{
				Type:    EventDispatched,
				Task:    t,
				Class:   c,
				Message: fmt.Sprintf("Task %q dispatched from priority %d", t.Name, c),
			})
			return t, true
		}
	}
	m.mu.Unlock()
	return task.Task{}, false
}

// Peek returns the task Next would dispatch without removing it. Calling
// Peek any number of times changes nothing.
func (m *Manager) Peek() (task.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.classes {
		if t, ok := m.queues[c].peek(); ok {
			return t, true
		}
	}
	return task.Task{}, false
}

// Stats counts the queued tasks per class and in total. The counts are read
// from the live queues on every call, so they are exact at the moment the
// lock is held: submissions increment them, dispatches decrement them, and
// rejected submissions leave them untouched.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{PerClass: make(map[int]int, len(m.classes))}
	for _, c := range m.classes {
		n := m.queues[c].size()
		s.PerClass[c] = n
		s.Total += n
	}
	return s
}

// Snapshot returns the full queue contents grouped by class in ascending
// order, each class's tasks in FIFO order. Empty classes are included. The
// result is a copy and never observes later mutations.
func (m *Manager) Snapshot() []ClassSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ClassSnapshot, len(m.classes))
	for i, c := range m.classes {
		out[i] = ClassSnapshot{Class: c, Tasks: m.queues[c].tasks()}
	}
	return out
}
