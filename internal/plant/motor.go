package plant

import (
	"math"
	"time"
)

const (
	DefaultMaxSpeed     = 20000.0 // counts/s at 100% duty
	DefaultTimeConstant = 0.08    // s
	DefaultMaxStep      = time.Millisecond
)

// MotorParams describe a simulated motor.
type MotorParams struct {
	MaxSpeed     float64       `yaml:"max_speed"`
	TimeConstant float64       `yaml:"time_constant"`
	Reversed     bool          `yaml:"reversed"`
	MaxStep      time.Duration `yaml:"max_step"`
	Integrator   string        `yaml:"integrator"`
}

func DefaultMotorParams() MotorParams {
	return MotorParams{
		MaxSpeed:     DefaultMaxSpeed,
		TimeConstant: DefaultTimeConstant,
		Reversed:     true,
		MaxStep:      DefaultMaxStep,
		Integrator:   IntegratorRK4,
	}
}

// DCMotor is a first-order motor: speed follows duty with a time constant
// and position integrates speed. State is [position, speed] in counts.
type DCMotor struct {
	params MotorParams
	now    func() time.Duration
	integ  Integrator

	x    State
	duty float64
	last time.Duration
}

// NewDCMotor creates a motor at rest whose simulated time follows now. An
// unknown integrator name falls back to RK4.
func NewDCMotor(p MotorParams, now func() time.Duration) *DCMotor {
	if p.MaxSpeed <= 0 {
		p.MaxSpeed = DefaultMaxSpeed
	}
	if p.TimeConstant <= 0 {
		p.TimeConstant = DefaultTimeConstant
	}
	if p.MaxStep <= 0 {
		p.MaxStep = DefaultMaxStep
	}
	integ, err := NewIntegrator(p.Integrator)
	if err != nil {
		integ = NewRK4()
	}
	return &DCMotor{
		params: p,
		now:    now,
		integ:  integ,
		x:      State{0, 0},
		last:   now(),
	}
}

func (m *DCMotor) StateDim() int { return 2 }

func (m *DCMotor) Derive(x State, u float64, t float64) State {
	dir := 1.0
	if m.params.Reversed {
		dir = -1.0
	}
	target := m.params.MaxSpeed * u / 100
	return State{dir * x[1], (target - x[1]) / m.params.TimeConstant}
}

// advance integrates up to the current clock reading in steps no longer
// than MaxStep.
func (m *DCMotor) advance() {
	now := m.now()
	for m.last < now {
		step := now - m.last
		if step > m.params.MaxStep {
			step = m.params.MaxStep
		}
		m.x = m.integ.Step(m, m.x, m.duty, m.last.Seconds(), step.Seconds())
		m.last += step
	}
}

// Position returns the true shaft position in counts.
func (m *DCMotor) Position() float64 {
	m.advance()
	return m.x[0]
}

func (m *DCMotor) Speed() float64 {
	m.advance()
	return m.x[1]
}

func (m *DCMotor) Duty() float64 { return m.duty }

func (m *DCMotor) setDuty(p float64) {
	m.advance()
	m.duty = math.Max(-100, math.Min(100, p))
}

// Encoder reads a motor's position relative to its last Zero.
type Encoder struct {
	motor  *DCMotor
	offset float64
}

func (m *DCMotor) Encoder() *Encoder { return &Encoder{motor: m} }

func (e *Encoder) Read() int {
	return int(math.Round(e.motor.Position() - e.offset))
}

func (e *Encoder) Zero() {
	e.offset = e.motor.Position()
}

// Driver applies a duty cycle to a motor. Values outside [-100, 100] are
// limited, as a PWM timer would.
type Driver struct {
	motor *DCMotor
}

func (m *DCMotor) Driver() *Driver { return &Driver{motor: m} }

func (d *Driver) SetDutyCycle(percent float64) {
	d.motor.setDuty(percent)
}
