// Package sched implements a cooperative priority scheduler for periodic tasks.
//
// A [Scheduler] owns a fixed set of [Task] values registered during setup.
// Each call to [Scheduler.Tick] dispatches at most one task: the
// highest-priority task whose next release time has passed, with ties broken
// by registration order. The task runs exactly one slice (one call to its
// [Stepper]) and its release time advances by exactly one period, so the
// schedule never drifts.
//
// # Execution model
//
// Everything runs on the caller's goroutine. A slice is never preempted, so it
// is atomic with respect to every other task, and a stop request is only
// honored between slices. A slice must not block: a blocked slice stalls every
// other task.
//
// # Faults
//
// A Stepper that returns an error or panics produces a [TaskFault]. The task
// becomes Dead and the fault is reported to the caller; the remaining tasks
// keep running.
package sched
