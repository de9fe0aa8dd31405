// Package taskshare provides the two primitives tasks use to exchange data:
//
//   - [Share]: a single-slot cell for scalars such as gains and setpoints
//   - [Queue]: a bounded, non-blocking FIFO for sample streams
//
// # Concurrency
//
// Neither type locks. Both are safe only under the cooperative scheduling
// discipline of package sched, where exactly one task slice runs at a time and
// a slice is never interrupted by another task. Code running on other
// goroutines must hand data to a task (for example over a buffered channel the
// task drains without blocking) instead of touching a Share or Queue directly.
// If tasks ever run in parallel, both types must be guarded by a mutex.
package taskshare
