package queue

import "github.com/lucasdoreac/triage/internal/task"

// minRingCap is the initial capacity of a class queue's ring buffer.
const minRingCap = 8

// classQueue is a FIFO of tasks within one priority class, backed by a
// growable ring buffer so both enqueue and dequeue stay O(1) amortized.
type classQueue struct {
	buf  []task.Task
	head int
	n    int
}

func newClassQueue() *classQueue {
	return &classQueue{buf: make([]task.Task, minRingCap)}
}

func (q *classQueue) enqueue(t task.Task) {
	if q.n == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.n)%len(q.buf)] = t
	q.n++
}

func (q *classQueue) dequeue() (task.Task, bool) {
	if q.n == 0 {
		return task.Task{}, false
	}
	t := q.buf[q.head]
	q.buf[q.head] = task.Task{} // clear the slot so the strings can be collected
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return t, true
}

func (q *classQueue) peek() (task.Task, bool) {
	if q.n == 0 {
		return task.Task{}, false
	}
	return q.buf[q.head], true
}

func (q *classQueue) size() int { return q.n }

// grow doubles the buffer and unwraps the ring so head starts at zero.
func (q *classQueue) grow() {
	next := make([]task.Task, len(q.buf)*2)
	for i := 0; i < q.n; i++ {
		next[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = next
	q.head = 0
}

// tasks copies the queued tasks out in FIFO order without mutating the queue.
func (q *classQueue) tasks() []task.Task {
	out := make([]task.Task, q.n)
	for i := 0; i < q.n; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}
