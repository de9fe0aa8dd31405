package sched

import (
	"fmt"
	"time"
)

// Stepper performs one control iteration and returns. It must not loop
// internally or block; state it needs across slices lives in its own fields.
type Stepper interface {
	Step(now time.Duration) error
}

// StepFunc adapts a plain function to Stepper.
type StepFunc func(now time.Duration) error

func (f StepFunc) Step(now time.Duration) error { return f(now) }

// Config describes a task. Priority is "larger is more urgent".
type Config struct {
	Name      string        `yaml:"name"`
	Priority  int           `yaml:"priority"`
	Period    time.Duration `yaml:"period"`
	Profile   bool          `yaml:"profile"`
	Trace     bool          `yaml:"trace"`
	TraceSize int           `yaml:"trace_size"`
}

// Profile accumulates slice timing. It is informational only and never
// influences dispatch.
type Profile struct {
	Runs    uint64
	Total   time.Duration
	Min     time.Duration
	Max     time.Duration
	MaxLate time.Duration
}

func (p *Profile) record(slice, late time.Duration) {
	if p.Runs == 0 || slice < p.Min {
		p.Min = slice
	}
	if slice > p.Max {
		p.Max = slice
	}
	if late > p.MaxLate {
		p.MaxLate = late
	}
	p.Total += slice
	p.Runs++
}

func (p Profile) Avg() time.Duration {
	if p.Runs == 0 {
		return 0
	}
	return p.Total / time.Duration(p.Runs)
}

// Task is one periodic unit of work.
type Task struct {
	name     string
	priority int
	period   time.Duration
	next     time.Duration
	state    State
	stepper  Stepper
	seq      uint64

	runs    uint64
	profile bool
	prof    Profile
	trace   *Trace
}

func NewTask(cfg Config, s Stepper) (*Task, error) {
	if s == nil {
		return nil, ErrNilTask
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("task %s: %w (got %s)", cfg.Name, ErrInvalidPeriod, cfg.Period)
	}
	t := &Task{
		name:     cfg.Name,
		priority: cfg.Priority,
		period:   cfg.Period,
		state:    StateCreated,
		stepper:  s,
		profile:  cfg.Profile,
	}
	if cfg.Trace {
		t.trace = newTrace(cfg.Name, cfg.TraceSize)
	}
	return t, nil
}

func (t *Task) Name() string           { return t.name }
func (t *Task) Priority() int          { return t.priority }
func (t *Task) Period() time.Duration  { return t.period }
func (t *Task) NextRun() time.Duration { return t.next }
func (t *Task) State() State           { return t.state }
func (t *Task) Runs() uint64           { return t.runs }
func (t *Task) Profile() Profile       { return t.prof }
func (t *Task) Stepper() Stepper       { return t.stepper }
func (t *Task) Trace() *Trace          { return t.trace }

func (t *Task) ready(now time.Duration) bool {
	return t.state == StateReady && t.next <= now
}

// Kill terminates the task. It is never dispatched again.
func (t *Task) Kill(now time.Duration) {
	t.transition(now, StateDead)
}

func (t *Task) transition(now time.Duration, to State) {
	if t.state == to || t.state == StateDead {
		return
	}
	if t.trace != nil {
		t.trace.record(now, t.state, to)
	}
	t.state = to
}

// step runs one slice, converting a panic into an error.
func (t *Task) step(now time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return t.stepper.Step(now)
}

// Stats is a read-only snapshot of a task for reporting.
type Stats struct {
	Name     string
	Priority int
	Period   time.Duration
	State    State
	Runs     uint64
	Profile  Profile
	Profiled bool
}

func (t *Task) Stats() Stats {
	return Stats{
		Name:     t.name,
		Priority: t.priority,
		Period:   t.period,
		State:    t.state,
		Runs:     t.runs,
		Profile:  t.prof,
		Profiled: t.profile,
	}
}
