package control

import "errors"

var (
	// ErrLengthMismatch indicates the time and value queues held different
	// numbers of samples when drained.
	ErrLengthMismatch = errors.New("control: time and value queues diverged")

	// ErrNonFinite indicates the control law produced NaN.
	ErrNonFinite = errors.New("control: non-finite controller output")

	// ErrUnknownParam indicates Params.Set was given an unknown name.
	ErrUnknownParam = errors.New("control: unknown parameter")
)
