package sched

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidPeriod indicates a task period that is zero or negative.
	ErrInvalidPeriod = errors.New("sched: period must be positive")

	// ErrDuplicateTask indicates a task name was registered twice.
	ErrDuplicateTask = errors.New("sched: duplicate task name")

	// ErrRunning indicates an operation that is only valid before Run.
	ErrRunning = errors.New("sched: scheduler is running")

	// ErrNilTask indicates a nil task or a task without a stepper.
	ErrNilTask = errors.New("sched: nil task")

	// ErrPanic wraps a value recovered from a panicking slice.
	ErrPanic = errors.New("sched: task panicked")
)

// TaskFault is an unhandled error raised during a task slice.
type TaskFault struct {
	Task string
	At   time.Duration
	Err  error
}

func (f *TaskFault) Error() string {
	return fmt.Sprintf("task %s faulted at %s: %v", f.Task, f.At, f.Err)
}

func (f *TaskFault) Unwrap() error {
	return f.Err
}
