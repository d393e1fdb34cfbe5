package queue

import (
	"time"

	"github.com/lucasdoreac/triage/internal/task"
)

// EventType classifies queue lifecycle events.
type EventType int

const (
	EventSubmitted  EventType = iota // task accepted into its class queue
	EventDispatched                  // task removed from the queue by Next
	EventRejected                    // submission refused, unrecognized class
)

// Event carries data about a queue lifecycle event.
type Event struct {
	Type    EventType
	Time    time.Time
	Task    task.Task
	Class   int    // the class involved, mirrors Task.Class
	Message string // human-readable message
	Err     error  // set for EventRejected
}

// EventHandler is a callback that receives queue events.
type EventHandler func(Event)
