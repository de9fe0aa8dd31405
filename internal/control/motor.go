package control

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/motorctl/internal/taskshare"
)

const (
	OutputMin = -100.0
	OutputMax = 100.0
)

// PositionSource reads an encoder position in counts.
type PositionSource interface {
	Read() int
	Zero()
}

// DutyCycleSink drives a motor with a signed duty cycle in percent.
type DutyCycleSink interface {
	SetDutyCycle(percent float64)
}

// Params are the tunable values of a controller.
type Params struct {
	Kp       float64 `yaml:"kp"`
	Ki       float64 `yaml:"ki"`
	Setpoint float64 `yaml:"setpoint"`
}

// Update describes one controller invocation.
type Update struct {
	At        time.Duration
	Measured  int
	Error     float64
	Output    float64
	Saturated bool
	// Lost is non-nil when a sample could not be queued. It wraps
	// taskshare.ErrQueueFull and is informational, not a failure.
	Lost error
}

// MotorController is a PI position controller with output saturation.
type MotorController struct {
	kp       float64
	ki       float64
	setpoint float64

	integral   float64
	lastUpdate time.Duration
	output     float64
	measured   int

	sink   DutyCycleSink
	source PositionSource
	times  *taskshare.Queue[time.Duration]
	values *taskshare.Queue[float64]
}

// New binds a controller to its collaborators. start is the time integration
// begins from, normally the clock reading at construction.
func New(p Params, sink DutyCycleSink, source PositionSource,
	times *taskshare.Queue[time.Duration], values *taskshare.Queue[float64], start time.Duration) *MotorController {
	return &MotorController{
		kp:         p.Kp,
		ki:         p.Ki,
		setpoint:   p.Setpoint,
		lastUpdate: start,
		sink:       sink,
		source:     source,
		times:      times,
		values:     values,
	}
}

// Run performs one pass of the control law at time t.
func (c *MotorController) Run(t time.Duration) (Update, error) {
	measured := c.source.Read()
	e := float64(measured) - c.setpoint
	dt := (t - c.lastUpdate).Seconds()

	c.integral += dt * e
	raw := c.kp*e + c.ki*c.integral

	c.measured = measured
	c.lastUpdate = t

	if math.IsNaN(raw) {
		c.output = 0
		c.sink.SetDutyCycle(0)
		return Update{At: t, Measured: measured, Error: e}, fmt.Errorf("%w (kp=%g ki=%g integral=%g)",
			ErrNonFinite, c.kp, c.ki, c.integral)
	}

	out := Clamp(raw, OutputMin, OutputMax)
	c.output = out
	c.sink.SetDutyCycle(out)

	upd := Update{
		At:        t,
		Measured:  measured,
		Error:     e,
		Output:    out,
		Saturated: out != raw,
	}

	var lost []error
	if err := c.times.Put(t); err != nil {
		lost = append(lost, fmt.Errorf("%s: %w", c.times.Name(), err))
	}
	if err := c.values.Put(float64(measured)); err != nil {
		lost = append(lost, fmt.Errorf("%s: %w", c.values.Name(), err))
	}
	upd.Lost = errors.Join(lost...)

	return upd, nil
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

func (c *MotorController) SetSetpoint(v float64) { c.setpoint = v }
func (c *MotorController) SetKp(v float64)       { c.kp = v }
func (c *MotorController) SetKi(v float64)       { c.ki = v }

func (c *MotorController) Setpoint() float64 { return c.setpoint }
func (c *MotorController) Output() float64   { return c.output }
func (c *MotorController) Integral() float64 { return c.integral }
func (c *MotorController) Measured() int     { return c.measured }

func (c *MotorController) Params() Params {
	return Params{Kp: c.kp, Ki: c.ki, Setpoint: c.setpoint}
}

// Stop drives the motor to zero duty and clears the integral.
func (c *MotorController) Stop() {
	c.integral = 0
	c.output = 0
	c.sink.SetDutyCycle(0)
}

// Set returns p with the named parameter ("Kp", "Ki" or "Setpoint") replaced.
func (p Params) Set(name string, value float64) (Params, error) {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Setpoint":
		p.Setpoint = value
	default:
		return p, fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	return p, nil
}
