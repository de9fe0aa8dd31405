package taskshare

import "fmt"

// OverflowPolicy selects what Put does when the queue is full.
type OverflowPolicy int

const (
	// DropNewest rejects the incoming item and keeps the buffered ones.
	DropNewest OverflowPolicy = iota
	// OverwriteOldest evicts the oldest buffered item to make room.
	OverwriteOldest
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropNewest:
		return "drop-newest"
	case OverwriteOldest:
		return "overwrite-oldest"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a config string onto an OverflowPolicy. Empty means DropNewest.
func ParsePolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "drop-newest":
		return DropNewest, nil
	case "overwrite-oldest":
		return OverwriteOldest, nil
	default:
		return DropNewest, fmt.Errorf("taskshare: unknown overflow policy %q", s)
	}
}

// Queue is a fixed-capacity FIFO ring buffer. No operation blocks: a full
// queue reports ErrQueueFull and an empty one reports ErrQueueEmpty.
type Queue[T any] struct {
	name    string
	buf     []T
	head    int
	n       int
	policy  OverflowPolicy
	dropped uint64
	maxFill int
}

// NewQueue allocates a queue of the given capacity. Capacity below one is
// raised to one.
func NewQueue[T any](name string, capacity int, policy OverflowPolicy) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		name:   name,
		buf:    make([]T, capacity),
		policy: policy,
	}
}

func (q *Queue[T]) Name() string           { return q.name }
func (q *Queue[T]) Cap() int               { return len(q.buf) }
func (q *Queue[T]) Len() int               { return q.n }
func (q *Queue[T]) Any() bool              { return q.n > 0 }
func (q *Queue[T]) Full() bool             { return q.n == len(q.buf) }
func (q *Queue[T]) Policy() OverflowPolicy { return q.policy }

// Dropped counts items lost to overflow, whichever side was discarded.
func (q *Queue[T]) Dropped() uint64 { return q.dropped }

// MaxFill is the highest fill count observed since creation or Clear.
func (q *Queue[T]) MaxFill() int { return q.maxFill }

// Put appends v. On a full queue it returns ErrQueueFull (DropNewest, v is
// discarded) or ErrQueueOverwrote (OverwriteOldest, v replaced the oldest item).
func (q *Queue[T]) Put(v T) error {
	if q.n == len(q.buf) {
		q.dropped++
		if q.policy == DropNewest {
			return ErrQueueFull
		}
		q.buf[q.head] = v
		q.head = (q.head + 1) % len(q.buf)
		return ErrQueueOverwrote
	}
	q.buf[(q.head+q.n)%len(q.buf)] = v
	q.n++
	if q.n > q.maxFill {
		q.maxFill = q.n
	}
	return nil
}

// Get removes and returns the oldest item.
func (q *Queue[T]) Get() (T, error) {
	var zero T
	if q.n == 0 {
		return zero, ErrQueueEmpty
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return v, nil
}

// Items copies the buffered items oldest first without removing them.
func (q *Queue[T]) Items() []T {
	out := make([]T, q.n)
	for i := 0; i < q.n; i++ {
		out[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	return out
}

func (q *Queue[T]) Clear() {
	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.head, q.n, q.maxFill = 0, 0, 0
}

func (q *Queue[T]) Describe() string {
	return fmt.Sprintf("queue %-12s %4d/%-4d max %-4d dropped %d (%s)",
		q.name, q.n, len(q.buf), q.maxFill, q.dropped, q.policy)
}
