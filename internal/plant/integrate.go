package plant

import "fmt"

const (
	IntegratorRK4   = "rk4"
	IntegratorEuler = "euler"
)

type State []float64

// System is an ODE dx/dt = f(x, u, t).
type System interface {
	Derive(x State, u float64, t float64) State
	StateDim() int
}

type Integrator interface {
	Step(sys System, x State, u float64, t, dt float64) State
}

type RK4 struct {
	k1, k2, k3, k4 State
	scratch        State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(State, n)
		r.k2 = make(State, n)
		r.k3 = make(State, n)
		r.k4 = make(State, n)
		r.scratch = make(State, n)
	}
}

func (r *RK4) Step(sys System, x State, u float64, t, dt float64) State {
	n := len(x)
	r.ensureScratch(n)

	copy(r.k1, sys.Derive(x, u, t))

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	copy(r.k2, sys.Derive(r.scratch, u, t+dt*0.5))

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	copy(r.k3, sys.Derive(r.scratch, u, t+dt*0.5))

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	copy(r.k4, sys.Derive(r.scratch, u, t+dt))

	result := make(State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return result
}

type Euler struct{}

func (Euler) Step(sys System, x State, u float64, t, dt float64) State {
	dx := sys.Derive(x, u, t)
	result := make(State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}

// NewIntegrator returns the integrator with the given name. An empty name
// selects RK4.
func NewIntegrator(name string) (Integrator, error) {
	switch name {
	case IntegratorRK4, "":
		return NewRK4(), nil
	case IntegratorEuler:
		return Euler{}, nil
	default:
		return nil, fmt.Errorf("plant: unknown integrator %q (rk4, euler)", name)
	}
}
