// Package plant simulates the motor hardware a controller drives.
//
// [DCMotor] is a first-order speed model integrated with a fixed-step RK4
// stepper. It exposes the two hardware capabilities the control loop needs:
// an [Encoder] (position source, in counts) and a [Driver] (duty-cycle sink).
// Both advance the simulation to the current clock reading whenever they are
// touched, so the plant evolves in step with the scheduler's notion of time.
package plant
