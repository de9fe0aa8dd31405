package plant

import (
	"fmt"
	"math"
	"testing"
	"time"
)

type oscillator struct{}

func (oscillator) Derive(x State, u float64, t float64) State { return State{x[1], -x[0]} }
func (oscillator) StateDim() int                             { return 2 }

func TestRK4Accuracy(t *testing.T) {
	integ := NewRK4()
	x := State{1.0, 0.0}
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		x = integ.Step(oscillator{}, x, 0, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)
	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}
	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestEulerStep(t *testing.T) {
	x := Euler{}.Step(oscillator{}, State{1, 0}, 0, 0, 0.1)
	if x[0] != 1 || math.Abs(x[1]+0.1) > 1e-12 {
		t.Errorf("unexpected euler step %v", x)
	}
}

func TestMotorReachesSpeed(t *testing.T) {
	var now time.Duration
	m := NewDCMotor(MotorParams{MaxSpeed: 1000, TimeConstant: 0.05}, func() time.Duration { return now })
	m.Driver().SetDutyCycle(50)

	now = time.Second
	if got := m.Speed(); math.Abs(got-500) > 1 {
		t.Errorf("expected speed ~500 after 20 time constants, got %f", got)
	}
	if m.Position() <= 0 {
		t.Errorf("forward duty should move a non-reversed motor forward, got %f", m.Position())
	}
}

func TestMotorReversedEncoder(t *testing.T) {
	var now time.Duration
	m := NewDCMotor(DefaultMotorParams(), func() time.Duration { return now })
	enc := m.Encoder()
	m.Driver().SetDutyCycle(100)

	now = 200 * time.Millisecond
	if enc.Read() >= 0 {
		t.Errorf("reversed motor should count down under positive duty, got %d", enc.Read())
	}

	enc.Zero()
	if enc.Read() != 0 {
		t.Errorf("expected 0 after zero, got %d", enc.Read())
	}
}

func TestDriverLimitsDuty(t *testing.T) {
	m := NewDCMotor(DefaultMotorParams(), func() time.Duration { return 0 })
	m.Driver().SetDutyCycle(250)
	if m.Duty() != 100 {
		t.Errorf("expected duty limited to 100, got %f", m.Duty())
	}
	m.Driver().SetDutyCycle(-250)
	if m.Duty() != -100 {
		t.Errorf("expected duty limited to -100, got %f", m.Duty())
	}
}

func TestNewIntegrator(t *testing.T) {
	for name, want := range map[string]string{"": "*plant.RK4", "rk4": "*plant.RK4", "euler": "plant.Euler"} {
		integ, err := NewIntegrator(name)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if got := fmt.Sprintf("%T", integ); got != want {
			t.Errorf("%q: got %s, want %s", name, got, want)
		}
	}
	if _, err := NewIntegrator("verlet"); err == nil {
		t.Error("expected unknown integrator error")
	}
}

func TestMotorEulerTracksRK4(t *testing.T) {
	var now time.Duration
	clock := func() time.Duration { return now }
	p := MotorParams{MaxSpeed: 1000, TimeConstant: 0.05, MaxStep: 100 * time.Microsecond}
	rk := NewDCMotor(p, clock)
	p.Integrator = IntegratorEuler
	eu := NewDCMotor(p, clock)
	rk.Driver().SetDutyCycle(50)
	eu.Driver().SetDutyCycle(50)

	now = 500 * time.Millisecond
	if d := math.Abs(rk.Position() - eu.Position()); d > 1 {
		t.Errorf("euler drifted %f counts from rk4", d)
	}
}
