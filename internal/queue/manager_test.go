package queue

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/lucasdoreac/triage/internal/task"
)

func newTestManager(t *testing.T, classes []int, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(classes, opts...)
	if err != nil {
		t.Fatalf("NewManager(%v) error: %v", classes, err)
	}
	return m
}

func mustSubmit(t *testing.T, m *Manager, tk task.Task) {
	t.Helper()
	if err := m.Submit(tk); err != nil {
		t.Fatalf("Submit(%q) error: %v", tk.Name, err)
	}
}

// drain pops every task and returns their names in dispatch order.
func drain(m *Manager) []string {
	var names []string
	for {
		tk, ok := m.Next()
		if !ok {
			return names
		}
		names = append(names, tk.Name)
	}
}

func TestNewManagerValidation(t *testing.T) {
	tests := []struct {
		name    string
		classes []int
		wantErr error
	}{
		{"default set", []int{1, 2, 3}, nil},
		{"unsorted input", []int{3, 1, 2}, nil},
		{"sparse set", []int{2, 5, 7}, nil},
		{"single class", []int{1}, nil},
		{"empty set", nil, ErrNoClasses},
		{"zero class", []int{0, 1}, ErrInvalidClass},
		{"negative class", []int{-1, 2}, ErrInvalidClass},
		{"duplicate class", []int{1, 2, 2}, ErrDuplicateClass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager(tt.classes)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewManager(%v) error = %v, want %v", tt.classes, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewManager(%v) error: %v", tt.classes, err)
			}
			if got := len(m.Classes()); got != len(tt.classes) {
				t.Errorf("Classes() has %d entries, want %d", got, len(tt.classes))
			}
		})
	}
}

func TestClassesAscending(t *testing.T) {
	m := newTestManager(t, []int{7, 2, 5})

	got := m.Classes()
	want := []int{2, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Classes() = %v, want %v", got, want)
		}
	}

	// The returned slice is a copy.
	got[0] = 99
	if m.Classes()[0] != 2 {
		t.Error("mutating Classes() result changed the manager's class set")
	}
}

func TestSubmitUnknownClass(t *testing.T) {
	m := newTestManager(t, []int{1, 2, 3})
	mustSubmit(t, m, task.New("kept", "", 1))

	err := m.Submit(task.New("stray", "", 5))
	if !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("Submit error = %v, want ErrUnknownClass", err)
	}
	if !strings.Contains(err.Error(), "5") {
		t.Errorf("error %q does not name the offending class", err)
	}

	// The rejected task left no trace.
	if s := m.Stats(); s.Total != 1 {
		t.Errorf("Stats().Total = %d after rejection, want 1", s.Total)
	}
	if got := drain(m); len(got) != 1 || got[0] != "kept" {
		t.Errorf("drain = %v, want [kept]", got)
	}
}

func TestNextStrictPriorityOrder(t *testing.T) {
	m := newTestManager(t, []int{1, 2, 3})

	mustSubmit(t, m, task.New("A", "", 1))
	mustSubmit(t, m, task.New("B", "", 2))
	mustSubmit(t, m, task.New("C", "", 1))

	want := []string{"A", "C", "B"}
	for i, name := range want {
		tk, ok := m.Next()
		if !ok {
			t.Fatalf("Next #%d: manager empty, want %q", i+1, name)
		}
		if tk.Name != name {
			t.Fatalf("Next #%d = %q, want %q", i+1, tk.Name, name)
		}
	}

	if _, ok := m.Next(); ok {
		t.Error("Next on drained manager returned ok")
	}
	if s := m.Stats(); s.Total != 0 {
		t.Errorf("Stats().Total = %d after drain, want 0", s.Total)
	}
}

func TestNextFIFOWithinClass(t *testing.T) {
	m := newTestManager(t, []int{1, 2, 3})

	for i := 0; i < 20; i++ {
		mustSubmit(t, m, task.New(fmt.Sprintf("t%02d", i), "", 2))
	}

	got := drain(m)
	for i, name := range got {
		if want := fmt.Sprintf("t%02d", i); name != want {
			t.Fatalf("dispatch #%d = %q, want %q", i, name, want)
		}
	}
}

func TestNextReevaluatesPriorityEachCall(t *testing.T) {
	m := newTestManager(t, []int{1, 2, 3})

	mustSubmit(t, m, task.New("low", "", 3))
	mustSubmit(t, m, task.New("medium", "", 2))

	if tk, _ := m.Next(); tk.Name != "medium" {
		t.Fatalf("first Next = %q, want medium", tk.Name)
	}

	// A late high-priority arrival overtakes the waiting low one.
	mustSubmit(t, m, task.New("high", "", 1))

	want := []string{"high", "low"}
	for _, name := range want {
		if tk, _ := m.Next(); tk.Name != name {
			t.Fatalf("Next = %q, want %q", tk.Name, name)
		}
	}
}

func TestDispatchOrderAcrossShuffledBurst(t *testing.T) {
	classes := []int{1, 2, 3}
	m := newTestManager(t, classes)

	// Build the expected order first: ascending class, FIFO inside a class.
	const perClass = 25
	var want []string
	tasksByClass := make(map[int][]task.Task)
	for _, c := range classes {
		for i := 0; i < perClass; i++ {
			tk := task.New(fmt.Sprintf("c%d-%02d", c, i), "", c)
			tasksByClass[c] = append(tasksByClass[c], tk)
			want = append(want, tk.Name)
		}
	}

	// Submit in a shuffled interleaving that still respects per-class order.
	rng := rand.New(rand.NewSource(1))
	remaining := len(want)
	for remaining > 0 {
		c := classes[rng.Intn(len(classes))]
		if len(tasksByClass[c]) == 0 {
			continue
		}
		mustSubmit(t, m, tasksByClass[c][0])
		tasksByClass[c] = tasksByClass[c][1:]
		remaining--
	}

	got := drain(m)
	if len(got) != len(want) {
		t.Fatalf("drained %d tasks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch #%d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPeek(t *testing.T) {
	m := newTestManager(t, []int{1, 2, 3})

	if _, ok := m.Peek(); ok {
		t.Fatal("Peek on empty manager returned ok")
	}

	mustSubmit(t, m, task.New("B", "", 2))
	mustSubmit(t, m, task.New("A", "", 1))

	// Repeated peeks agree and remove nothing.
	for i := 0; i < 3; i++ {
		tk, ok := m.Peek()
		if !ok || tk.Name != "A" {
			t.Fatalf("Peek #%d = (%q, %v), want (\"A\", true)", i+1, tk.Name, ok)
		}
	}
	if s := m.Stats(); s.Total != 2 {
		t.Fatalf("Stats().Total = %d after peeks, want 2", s.Total)
	}

	// Peek agrees with what Next then dispatches.
	peeked, _ := m.Peek()
	popped, _ := m.Next()
	if peeked.Name != popped.Name {
		t.Errorf("Peek = %q but Next = %q", peeked.Name, popped.Name)
	}
	if tk, _ := m.Peek(); tk.Name != "B" {
		t.Errorf("Peek after dispatch = %q, want B", tk.Name)
	}
}

func TestStatsPerClass(t *testing.T) {
	m := newTestManager(t, []int{1, 2, 3})

	s := m.Stats()
	if s.Total != 0 {
		t.Fatalf("Stats().Total = %d on empty manager, want 0", s.Total)
	}
	// Every configured class reports, even when empty.
	for _, c := range []int{1, 2, 3} {
		if n, ok := s.PerClass[c]; !ok || n != 0 {
			t.Fatalf("PerClass[%d] = (%d, %v), want (0, true)", c, n, ok)
		}
	}

	mustSubmit(t, m, task.New("a", "", 1))
	mustSubmit(t, m, task.New("b", "", 1))
	mustSubmit(t, m, task.New("c", "", 3))
	m.Submit(task.New("rejected", "", 9)) // must not count

	s = m.Stats()
	if s.Total != 3 {
		t.Errorf("Stats().Total = %d, want 3", s.Total)
	}
	wantPer := map[int]int{1: 2, 2: 0, 3: 1}
	for c, n := range wantPer {
		if s.PerClass[c] != n {
			t.Errorf("PerClass[%d] = %d, want %d", c, s.PerClass[c], n)
		}
	}

	m.Next()
	if s := m.Stats(); s.Total != 2 || s.PerClass[1] != 1 {
		t.Errorf("after dispatch: Total = %d PerClass[1] = %d, want 2 and 1", s.Total, s.PerClass[1])
	}
}

func TestSnapshot(t *testing.T) {
	m := newTestManager(t, []int{3, 1, 2})

	mustSubmit(t, m, task.New("first-low", "", 3))
	mustSubmit(t, m, task.New("high", "", 1))
	mustSubmit(t, m, task.New("second-low", "", 3))

	snap := m.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot has %d classes, want 3", len(snap))
	}

	// Ascending class order, empty classes included.
	if snap[0].Class != 1 || snap[1].Class != 2 || snap[2].Class != 3 {
		t.Fatalf("Snapshot classes = [%d %d %d], want [1 2 3]", snap[0].Class, snap[1].Class, snap[2].Class)
	}
	if len(snap[1].Tasks) != 0 {
		t.Errorf("class 2 snapshot has %d tasks, want 0", len(snap[1].Tasks))
	}
	if got := snap[2].Tasks; len(got) != 2 || got[0].Name != "first-low" || got[1].Name != "second-low" {
		t.Errorf("class 3 snapshot = %v, want FIFO [first-low second-low]", got)
	}

	// The snapshot is detached from the live queues.
	snap[0].Tasks[0].Name = "mutated"
	if tk, _ := m.Peek(); tk.Name != "high" {
		t.Errorf("mutating snapshot changed queue head to %q", tk.Name)
	}
	m.Next()
	if snap[0].Tasks[0].Class != 1 {
		t.Error("dispatch mutated a previously taken snapshot")
	}
}

func TestCustomClassSet(t *testing.T) {
	m := newTestManager(t, []int{10, 20, 30})

	mustSubmit(t, m, task.New("twenty", "", 20))
	mustSubmit(t, m, task.New("thirty", "", 30))
	mustSubmit(t, m, task.New("ten", "", 10))

	// Classes outside the configured set are rejected even if they would be
	// valid in the default set.
	if err := m.Submit(task.New("one", "", 1)); !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("Submit(class 1) error = %v, want ErrUnknownClass", err)
	}

	got := drain(m)
	want := []string{"ten", "twenty", "thirty"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drain = %v, want %v", got, want)
		}
	}
}

func TestRecognizes(t *testing.T) {
	m := newTestManager(t, []int{1, 2, 3})

	if !m.Recognizes(2) {
		t.Error("Recognizes(2) = false, want true")
	}
	if m.Recognizes(4) {
		t.Error("Recognizes(4) = true, want false")
	}
}

func TestEventHandler(t *testing.T) {
	var events []Event
	m := newTestManager(t, []int{1, 2, 3}, WithEventHandler(func(e Event) {
		events = append(events, e)
	}))

	mustSubmit(t, m, task.New("a", "", 1))
	m.Submit(task.New("bad", "", 8))
	m.Next()
	m.Next() // empty, no event

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	if e := events[0]; e.Type != EventSubmitted || e.Task.Name != "a" || e.Class != 1 {
		t.Errorf("event 0 = %+v, want submitted for a/1", e)
	}
	if e := events[1]; e.Type != EventRejected || e.Class != 8 || !errors.Is(e.Err, ErrUnknownClass) {
		t.Errorf("event 1 = %+v, want rejection for class 8", e)
	}
	if !strings.Contains(events[1].Message, "invalid priority class (8)") {
		t.Errorf("rejection message = %q, want it to name the class", events[1].Message)
	}
	if e := events[2]; e.Type != EventDispatched || e.Task.Name != "a" {
		t.Errorf("event 2 = %+v, want dispatch of a", e)
	}
	for i, e := range events {
		if e.Time.IsZero() {
			t.Errorf("event %d has zero timestamp", i)
		}
	}
}

func TestConcurrentSubmitAndNext(t *testing.T) {
	m := newTestManager(t, []int{1, 2, 3})

	const (
		producers = 4
		perProd   = 200
	)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProd; i++ {
				m.Submit(task.New(fmt.Sprintf("p%d-%d", p, i), "", i%3+1))
			}
		}(p)
	}

	var (
		dispatched [producers]int
		cwg        sync.WaitGroup
	)
	for c := 0; c < producers; c++ {
		cwg.Add(1)
		go func(c int) {
			defer cwg.Done()
			for {
				if _, ok := m.Next(); !ok {
					return
				}
				dispatched[c]++
			}
		}(c)
	}

	wg.Wait()  // all submissions in
	cwg.Wait() // consumers stop once they observe empty

	total := 0
	for _, n := range dispatched {
		total += n
	}
	remaining := m.Stats().Total
	if total+remaining != producers*perProd {
		t.Errorf("dispatched %d + remaining %d, want %d total", total, remaining, producers*perProd)
	}
	if got := len(drain(m)); got != remaining {
		t.Errorf("drained %d leftover tasks, stats said %d", got, remaining)
	}
}
