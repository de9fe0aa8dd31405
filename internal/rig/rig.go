package rig

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/motorctl/internal/config"
	"github.com/san-kum/motorctl/internal/control"
	"github.com/san-kum/motorctl/internal/metrics"
	"github.com/san-kum/motorctl/internal/sched"
)

const updateBuffer = 4

// Rig owns a scheduler and the tasks built from one configuration.
type Rig struct {
	cfg     *config.Config
	clock   sched.Clock
	sched   *sched.Scheduler
	motors  []*MotorTask
	tuner   *TunerTask
	updates chan *config.Config
	stop    context.CancelFunc
	log     zerolog.Logger
	done    io.Writer
}

type Option func(*Rig)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Rig) { r.log = l }
}

// WithDoneWriter sets where "done N" lines are written when motor N first
// settles. N is the motor's 1-based position in the configuration.
func WithDoneWriter(w io.Writer) Option {
	return func(r *Rig) { r.done = w }
}

// NewClock returns the clock named by a config clock kind.
func NewClock(kind string) (sched.Clock, error) {
	switch kind {
	case config.ClockSim, "":
		return sched.NewManualClock(), nil
	case config.ClockWall:
		return sched.NewWallClock(), nil
	default:
		return nil, fmt.Errorf("%w: unknown clock %q", config.ErrInvalid, kind)
	}
}

// Build validates cfg and registers every task it describes.
func Build(cfg *config.Config, clock sched.Clock, opts ...Option) (*Rig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Rig{
		cfg:   cfg,
		clock: clock,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sched = sched.New(clock, sched.WithLogger(r.log))

	lowest := math.MaxInt
	byName := make(map[string]*MotorTask, len(cfg.Motors))
	for i, mc := range cfg.Motors {
		m, err := newMotorTask(i+1, mc, cfg.Queue, clock.Now, r.done, r.log)
		if err != nil {
			return nil, fmt.Errorf("motor %s: %w", mc.Task.Name, err)
		}
		if m.task, err = r.register(mc.Task, m); err != nil {
			return nil, err
		}
		r.motors = append(r.motors, m)
		byName[m.name] = m
		lowest = min(lowest, mc.Task.Priority)
	}

	if cfg.Tuner.Enabled {
		r.updates = make(chan *config.Config, updateBuffer)
		r.tuner = &TunerTask{
			updates: r.updates,
			motors:  byName,
			log:     r.log.With().Str("task", "tuner").Logger(),
		}
		tc := sched.Config{Name: config.TunerTaskName, Priority: cfg.Tuner.Priority, Period: cfg.Tuner.Period}
		if _, err := r.register(tc, r.tuner); err != nil {
			return nil, err
		}
		lowest = min(lowest, cfg.Tuner.Priority)
	}

	if cfg.Duration > 0 {
		dc := sched.Config{Name: config.DeadlineTaskName, Priority: lowest - 1, Period: cfg.Duration}
		if _, err := r.register(dc, sched.StepFunc(r.expire)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Rig) register(tc sched.Config, s sched.Stepper) (*sched.Task, error) {
	t, err := sched.NewTask(tc, s)
	if err != nil {
		return nil, err
	}
	return t, r.sched.Register(t)
}

// expire ends the run once the configured duration of scheduler time has
// passed. It runs below every other task, so slices due at the same instant
// still execute.
func (r *Rig) expire(now time.Duration) error {
	r.log.Debug().Dur("at", now).Msg("duration elapsed")
	if r.stop != nil {
		r.stop()
	}
	return nil
}

// Run drives the scheduler until ctx ends, the configured duration elapses
// or every task has died. It returns the joined task faults.
func (r *Rig) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.stop = cancel
	defer func() { r.stop = nil }()
	return r.sched.Run(ctx)
}

// Apply queues a reloaded configuration for the tuner. It is safe to call
// from any goroutine and reports false if the tuner is disabled or busy.
func (r *Rig) Apply(cfg *config.Config) bool {
	if r.updates == nil {
		return false
	}
	select {
	case r.updates <- cfg:
		return true
	default:
		r.log.Warn().Msg("tuner backlog full; reload dropped")
		return false
	}
}

func (r *Rig) Config() *config.Config      { return r.cfg }
func (r *Rig) Clock() sched.Clock          { return r.clock }
func (r *Rig) Scheduler() *sched.Scheduler { return r.sched }
func (r *Rig) Motors() []*MotorTask        { return r.motors }
func (r *Rig) Tuner() *TunerTask           { return r.tuner }

func (r *Rig) Motor(name string) (*MotorTask, bool) {
	for _, m := range r.motors {
		if m.name == name {
			return m, true
		}
	}
	return nil, false
}

// Describe lists every queue and share the rig owns, one per line.
func (r *Rig) Describe() []string {
	var out []string
	for _, m := range r.motors {
		out = append(out, m.times.Describe(), m.values.Describe())
		for _, s := range m.Shares() {
			out = append(out, s.Describe())
		}
	}
	return out
}

// Evaluate runs a copy of cfg on a fresh simulated clock and returns the
// metrics of the named motor. It is safe to call concurrently.
func Evaluate(ctx context.Context, cfg *config.Config, motor string) (map[string]float64, error) {
	cfg = cfg.Clone()
	cfg.Clock = config.ClockSim
	cfg.Tuner.Enabled = false
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("%w: evaluation needs a positive duration", config.ErrInvalid)
	}

	r, err := Build(cfg, sched.NewManualClock())
	if err != nil {
		return nil, err
	}
	if err := r.Run(ctx); err != nil {
		return nil, err
	}
	for _, rep := range r.Reports() {
		if rep.Motor == motor {
			return rep.Metrics, rep.Err
		}
	}
	return nil, fmt.Errorf("rig: unknown motor %q", motor)
}

// Report is the drained data of one motor.
type Report struct {
	Index     int
	Motor     string
	Params    control.Params
	Period    time.Duration
	Policy    string
	Samples   []control.Sample
	Metrics   map[string]float64
	Dropped   uint64
	Lost      uint64
	Settled   bool
	SettledAt time.Duration
	Halted    bool
	// Err is control.ErrLengthMismatch when the queues disagreed.
	Err error
}

// Reports drains every motor's queues. Calling it twice returns empty
// sample sets the second time.
func (r *Rig) Reports() []Report {
	out := make([]Report, 0, len(r.motors))
	for i, m := range r.motors {
		rep := Report{
			Index:   m.index,
			Motor:   m.name,
			Params:  m.ctrl.Params(),
			Period:  r.cfg.Motors[i].Task.Period,
			Policy:  m.times.Policy().String(),
			Dropped: m.times.Dropped(),
			Lost:    m.lost,
			Halted:  m.halted,
		}
		rep.Settled, rep.SettledAt = m.Settled()
		rep.Samples, rep.Err = control.DrainReport(m.times, m.values)
		rep.Metrics = metrics.Evaluate(rep.Samples, metrics.Standard(rep.Params.Setpoint, m.band)...)
		out = append(out, rep)
	}
	return out
}

// SelectReport returns the report of the named motor, or the first report
// when motor is empty.
func SelectReport(reports []Report, motor string) (Report, bool) {
	for _, rep := range reports {
		if motor == "" || rep.Motor == motor {
			return rep, true
		}
	}
	return Report{}, false
}
