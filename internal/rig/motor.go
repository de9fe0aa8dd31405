package rig

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/san-kum/motorctl/internal/config"
	"github.com/san-kum/motorctl/internal/control"
	"github.com/san-kum/motorctl/internal/plant"
	"github.com/san-kum/motorctl/internal/sched"
	"github.com/san-kum/motorctl/internal/taskshare"
)

// MotorTask runs one controller pass per slice.
type MotorTask struct {
	index int
	name  string
	band  float64

	ctrl   *control.MotorController
	motor  *plant.DCMotor
	times  *taskshare.Queue[time.Duration]
	values *taskshare.Queue[float64]

	kp       *taskshare.Share[float64]
	ki       *taskshare.Share[float64]
	setpoint *taskshare.Share[float64]
	halt     *taskshare.Share[bool]

	task    *sched.Task
	halted  bool
	settled   bool
	settledAt time.Duration
	lost      uint64
	last      control.Update

	done    io.Writer
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newMotorTask(index int, mc config.MotorConfig, qc config.QueueConfig, now func() time.Duration,
	done io.Writer, log zerolog.Logger) (*MotorTask, error) {
	policy, err := taskshare.ParsePolicy(qc.Policy)
	if err != nil {
		return nil, err
	}

	name := mc.Task.Name
	motor := plant.NewDCMotor(mc.Plant, now)
	enc := motor.Encoder()
	enc.Zero()

	times := taskshare.NewQueue[time.Duration](name+".times", qc.Capacity, policy)
	values := taskshare.NewQueue[float64](name+".values", qc.Capacity, policy)

	m := &MotorTask{
		index:    index,
		name:     name,
		band:     mc.SettleBand,
		ctrl:     control.New(mc.Controller, motor.Driver(), enc, times, values, now()),
		motor:    motor,
		times:    times,
		values:   values,
		kp:       taskshare.NewShareWith(name+".kp", mc.Controller.Kp),
		ki:       taskshare.NewShareWith(name+".ki", mc.Controller.Ki),
		setpoint: taskshare.NewShareWith(name+".setpoint", mc.Controller.Setpoint),
		halt:     taskshare.NewShareWith(name+".halt", mc.Halt),
		done:     done,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		log:      log.With().Str("motor", name).Logger(),
	}
	return m, nil
}

func (m *MotorTask) Step(now time.Duration) error {
	if h, _ := m.halt.Get(); h {
		m.stop(now)
		return nil
	}
	m.applyShares()

	upd, err := m.ctrl.Run(now)
	m.last = upd
	if err != nil {
		return fmt.Errorf("motor %s: %w", m.name, err)
	}

	if upd.Lost != nil {
		m.lost++
		if m.limiter.Allow() {
			m.log.Warn().
				Err(upd.Lost).
				Uint64("lost", m.lost).
				Dur("at", now).
				Msg("data lost")
		}
	}

	if !m.settled && math.Abs(upd.Error) <= m.band {
		m.settled = true
		m.settledAt = now
		m.log.Info().Dur("at", now).Int("position", upd.Measured).Msg("settled")
		if m.done != nil {
			fmt.Fprintf(m.done, "done %d\n", m.index)
		}
	}
	return nil
}

// stop zeroes the drive and ends the task. Queued samples stay drainable.
func (m *MotorTask) stop(now time.Duration) {
	m.ctrl.Stop()
	m.halted = true
	m.log.Info().Dur("at", now).Msg("halted")
	if m.task != nil {
		m.task.Kill(now)
	}
}

func (m *MotorTask) applyShares() {
	if v, ok := m.kp.Get(); ok {
		m.ctrl.SetKp(v)
	}
	if v, ok := m.ki.Get(); ok {
		m.ctrl.SetKi(v)
	}
	if v, ok := m.setpoint.Get(); ok && v != m.ctrl.Setpoint() {
		m.ctrl.SetSetpoint(v)
		m.settled = false
	}
}

func (m *MotorTask) Index() int                             { return m.index }
func (m *MotorTask) Name() string                           { return m.name }
func (m *MotorTask) Controller() *control.MotorController   { return m.ctrl }
func (m *MotorTask) Motor() *plant.DCMotor                  { return m.motor }
func (m *MotorTask) Times() *taskshare.Queue[time.Duration] { return m.times }
func (m *MotorTask) Values() *taskshare.Queue[float64]      { return m.values }
func (m *MotorTask) Last() control.Update                   { return m.last }
func (m *MotorTask) Lost() uint64                           { return m.lost }
func (m *MotorTask) Settled() (bool, time.Duration)         { return m.settled, m.settledAt }
func (m *MotorTask) Halted() bool                           { return m.halted }

// Shares returns the kp, ki and setpoint shares in that order.
func (m *MotorTask) Shares() []*taskshare.Share[float64] {
	return []*taskshare.Share[float64]{m.kp, m.ki, m.setpoint}
}

// Halt requests that the motor stop at its next slice.
func (m *MotorTask) Halt() { m.halt.Put(true) }
