package sched

import (
	"fmt"
	"strings"
	"time"

	"github.com/san-kum/motorctl/internal/taskshare"
)

// DefaultTraceSize bounds a task trace when Config.TraceSize is unset.
const DefaultTraceSize = 64

// Transition records one state change of a task.
type Transition struct {
	At   time.Duration
	From State
	To   State
}

// Trace keeps the most recent transitions of a task. Older entries are
// overwritten so memory stays fixed over an arbitrarily long run.
type Trace struct {
	q *taskshare.Queue[Transition]
}

func newTrace(name string, size int) *Trace {
	if size <= 0 {
		size = DefaultTraceSize
	}
	return &Trace{q: taskshare.NewQueue[Transition](name+".trace", size, taskshare.OverwriteOldest)}
}

func (tr *Trace) record(at time.Duration, from, to State) {
	// ErrQueueOverwrote is expected once the ring is full.
	_ = tr.q.Put(Transition{At: at, From: from, To: to})
}

// Entries returns the retained transitions, oldest first.
func (tr *Trace) Entries() []Transition {
	return tr.q.Items()
}

// Lost counts transitions that were overwritten.
func (tr *Trace) Lost() uint64 {
	return tr.q.Dropped()
}

func (tr *Trace) String() string {
	var b strings.Builder
	for _, e := range tr.Entries() {
		fmt.Fprintf(&b, "%12s: %s -> %s\n", e.At, e.From, e.To)
	}
	return b.String()
}
