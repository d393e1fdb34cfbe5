package queue

import (
	"fmt"
	"testing"

	"github.com/lucasdoreac/triage/internal/task"
)

func TestClassQueueFIFO(t *testing.T) {
	q := newClassQueue()

	if _, ok := q.dequeue(); ok {
		t.Fatal("dequeue on empty queue returned ok")
	}

	for i := 0; i < 3; i++ {
		q.enqueue(task.New(fmt.Sprintf("t%d", i), "", 1))
	}
	if q.size() != 3 {
		t.Fatalf("size = %d, want 3", q.size())
	}

	for i := 0; i < 3; i++ {
		got, ok := q.dequeue()
		if !ok {
			t.Fatalf("dequeue %d: queue unexpectedly empty", i)
		}
		if want := fmt.Sprintf("t%d", i); got.Name != want {
			t.Errorf("dequeue %d = %q, want %q", i, got.Name, want)
		}
	}
	if q.size() != 0 {
		t.Errorf("size after drain = %d, want 0", q.size())
	}
}

func TestClassQueueWraparound(t *testing.T) {
	// Interleave enqueues and dequeues so the head walks past the end of the
	// backing array and the buffer grows while wrapped.
	q := newClassQueue()
	next := 0
	expect := 0

	push := func(n int) {
		for i := 0; i < n; i++ {
			q.enqueue(task.New(fmt.Sprintf("t%d", next), "", 1))
			next++
		}
	}
	pop := func(n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			got, ok := q.dequeue()
			if !ok {
				t.Fatalf("dequeue: queue empty, expected t%d", expect)
			}
			if want := fmt.Sprintf("t%d", expect); got.Name != want {
				t.Fatalf("dequeue = %q, want %q", got.Name, want)
			}
			expect++
		}
	}

	push(minRingCap)
	pop(minRingCap - 2)
	push(minRingCap) // wraps, then grows past the original capacity
	pop(2)
	push(minRingCap * 2)
	pop(q.size())

	if expect != next {
		t.Errorf("dequeued %d tasks, enqueued %d", expect, next)
	}
}

func TestClassQueuePeek(t *testing.T) {
	q := newClassQueue()

	if _, ok := q.peek(); ok {
		t.Fatal("peek on empty queue returned ok")
	}

	q.enqueue(task.New("first", "", 1))
	q.enqueue(task.New("second", "", 1))

	for i := 0; i < 2; i++ {
		got, ok := q.peek()
		if !ok || got.Name != "first" {
			t.Fatalf("peek #%d = (%q, %v), want (\"first\", true)", i+1, got.Name, ok)
		}
	}
	if q.size() != 2 {
		t.Errorf("peek changed size to %d, want 2", q.size())
	}
}

func TestClassQueueTasksCopies(t *testing.T) {
	q := newClassQueue()
	q.enqueue(task.New("a", "", 1))
	q.enqueue(task.New("b", "", 1))

	got := q.tasks()
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("tasks() = %v, want [a b]", got)
	}

	got[0].Name = "mutated"
	if head, _ := q.peek(); head.Name != "a" {
		t.Errorf("mutating tasks() result changed the queue head to %q", head.Name)
	}
}
