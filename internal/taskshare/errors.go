package taskshare

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull indicates a Put found the queue at capacity.
	ErrQueueFull = errors.New("taskshare: queue full")

	// ErrQueueOverwrote indicates a Put on an OverwriteOldest queue evicted the
	// oldest item. It matches ErrQueueFull with errors.Is.
	ErrQueueOverwrote = fmt.Errorf("%w: oldest item overwritten", ErrQueueFull)

	// ErrQueueEmpty indicates a Get found nothing buffered. Draining loops use
	// it as their exit condition.
	ErrQueueEmpty = errors.New("taskshare: queue empty")
)
