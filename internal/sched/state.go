package sched

// State is a task's position in its lifecycle.
type State int

const (
	StateCreated State = iota
	StateReady
	StateRunning
	StateDead
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateDead:
		return "Dead"
	default:
		return "Unknown"
	}
}
