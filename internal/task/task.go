// Package task defines the unit of work that triage dispatches.
package task

import "fmt"

// Reference priority classes. The dispatcher accepts any caller-supplied
// class set; these are the defaults and the classes with well-known labels.
const (
	ClassHigh   = 1
	ClassMedium = 2
	ClassLow    = 3
)

// Task is an immutable unit of work: a name, a free-text description, and
// the priority class it belongs to. Names identify tasks to humans and are
// not required to be unique. A task never changes after construction;
// re-prioritizing means dispatching it and submitting a replacement.
type Task struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Class       int    `json:"class"`
}

// New builds a task. No validation happens here: a task may carry a class
// the dispatcher does not recognize, and submission is where that is caught.
func New(name, description string, class int) Task {
	return Task{Name: name, Description: description, Class: class}
}

// Label maps a priority class to its display label. Classes outside the
// reference set render as "Unknown".
func Label(class int) string {
	switch class {
	case ClassHigh:
		return "High"
	case ClassMedium:
		return "Medium"
	case ClassLow:
		return "Low"
	default:
		return "Unknown"
	}
}

// String renders the task for humans: name and priority label on the first
// line, description on the second.
func (t Task) String() string {
	return fmt.Sprintf("Task: %s (Priority: %s)\nDescription: %s", t.Name, Label(t.Class), t.Description)
}
