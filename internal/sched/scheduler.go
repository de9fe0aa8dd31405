package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/rs/zerolog"
)

// Scheduler dispatches registered tasks by priority on the caller's goroutine.
type Scheduler struct {
	clock   Clock
	log     zerolog.Logger
	tree    *redblacktree.Tree // taskKey -> *Task, most urgent first
	byName  map[string]*Task
	seq     uint64
	running bool
	ticks   uint64
	idle    uint64
	faults  []*TaskFault
	onFault func(*TaskFault)
}

type Option func(*Scheduler)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithFaultHandler installs a callback invoked for every task fault, after
// the task has been marked Dead.
func WithFaultHandler(fn func(*TaskFault)) Option {
	return func(s *Scheduler) { s.onFault = fn }
}

func New(clock Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  clock,
		log:    zerolog.Nop(),
		tree:   redblacktree.NewWith(compareKeys),
		byName: make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Clock() Clock { return s.clock }

// Register adds a task before the run loop starts. Its first release is one
// period from now.
func (s *Scheduler) Register(t *Task) error {
	if t == nil || t.stepper == nil {
		return ErrNilTask
	}
	if s.running {
		return ErrRunning
	}
	if t.period <= 0 {
		return fmt.Errorf("task %s: %w", t.name, ErrInvalidPeriod)
	}
	if _, dup := s.byName[t.name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.name)
	}

	now := s.clock.Now()
	s.seq++
	t.seq = s.seq
	t.next = now + t.period
	t.transition(now, StateReady)

	s.tree.Put(taskKey{priority: t.priority, seq: t.seq}, t)
	s.byName[t.name] = t

	s.log.Debug().
		Str("task", t.name).
		Int("priority", t.priority).
		Dur("period", t.period).
		Msg("task registered")
	return nil
}

// Tasks returns the registered tasks in dispatch order.
func (s *Scheduler) Tasks() []*Task {
	out := make([]*Task, 0, s.tree.Size())
	it := s.tree.Iterator()
	for it.Next() {
		out = append(out, it.Value().(*Task))
	}
	return out
}

func (s *Scheduler) Task(name string) (*Task, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Snapshot returns the stats of every task in dispatch order.
func (s *Scheduler) Snapshot() []Stats {
	tasks := s.Tasks()
	out := make([]Stats, len(tasks))
	for i, t := range tasks {
		out[i] = t.Stats()
	}
	return out
}

// Faults returns every fault observed since the scheduler was created.
func (s *Scheduler) Faults() []*TaskFault {
	out := make([]*TaskFault, len(s.faults))
	copy(out, s.faults)
	return out
}

// Ticks counts Tick calls; Idle counts the ones that found nothing ready.
func (s *Scheduler) Ticks() uint64 { return s.ticks }
func (s *Scheduler) Idle() uint64  { return s.idle }

// Tick dispatches the most urgent ready task, if any, for exactly one slice.
// A non-nil error is always a *TaskFault.
func (s *Scheduler) Tick() (bool, error) {
	s.ticks++
	now := s.clock.Now()

	it := s.tree.Iterator()
	for it.Next() {
		t := it.Value().(*Task)
		if !t.ready(now) {
			continue
		}
		if fault := s.dispatch(t, now); fault != nil {
			return true, fault
		}
		return true, nil
	}

	s.idle++
	return false, nil
}

func (s *Scheduler) dispatch(t *Task, now time.Duration) *TaskFault {
	late := now - t.next
	t.transition(now, StateRunning)

	start := s.clock.Now()
	err := t.step(now)
	end := s.clock.Now()

	t.next += t.period
	t.runs++
	if t.profile {
		t.prof.record(end-start, late)
	}

	if err != nil {
		fault := &TaskFault{Task: t.name, At: now, Err: err}
		t.transition(end, StateDead)
		s.faults = append(s.faults, fault)

		s.log.Error().
			Err(err).
			Str("task", t.name).
			Dur("at", now).
			Msg("task faulted; marked dead")
		if s.onFault != nil {
			s.onFault(fault)
		}
		return fault
	}

	if t.state == StateRunning {
		t.transition(end, StateReady)
	}
	return nil
}

// nextRelease returns the earliest release time among live tasks.
func (s *Scheduler) nextRelease() (time.Duration, bool) {
	var (
		earliest time.Duration
		found    bool
	)
	it := s.tree.Iterator()
	for it.Next() {
		t := it.Value().(*Task)
		if t.state != StateReady {
			continue
		}
		if !found || t.next < earliest {
			earliest = t.next
			found = true
		}
	}
	return earliest, found
}

// Run ticks until ctx is done or no live task remains. A stop request is
// honored only between slices. Stopping is not an error: the returned error
// joins the task faults seen during this run, or is nil.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.running {
		return ErrRunning
	}
	s.running = true
	defer func() { s.running = false }()

	first := len(s.faults)
	s.log.Info().Int("tasks", s.tree.Size()).Msg("scheduler started")

	for ctx.Err() == nil {
		if dispatched, _ := s.Tick(); dispatched {
			continue
		}

		next, ok := s.nextRelease()
		if !ok {
			s.log.Warn().Msg("no live tasks; scheduler exiting")
			break
		}
		if wait := next - s.clock.Now(); wait > 0 {
			if err := s.clock.Sleep(ctx, wait); err != nil {
				break
			}
		}
	}

	s.log.Info().
		Uint64("ticks", s.ticks).
		Uint64("idle", s.idle).
		Int("faults", len(s.faults)-first).
		Msg("scheduler stopped")

	errs := make([]error, 0, len(s.faults)-first)
	for _, f := range s.faults[first:] {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// taskKey orders tasks by descending priority, then by registration order.
type taskKey struct {
	priority int
	seq      uint64
}

func compareKeys(a, b any) int {
	ka, kb := a.(taskKey), b.(taskKey)
	switch {
	case ka.priority > kb.priority:
		return -1
	case ka.priority < kb.priority:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}
