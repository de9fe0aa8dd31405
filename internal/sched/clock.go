package sched

import (
	"context"
	"time"
)

// Clock supplies scheduler time as an offset from an arbitrary epoch and
// lets an idle scheduler wait for the next release.
type Clock interface {
	Now() time.Duration
	Sleep(ctx context.Context, d time.Duration) error
}

// WallClock measures monotonic time since its creation.
type WallClock struct {
	start time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

func (c *WallClock) Now() time.Duration {
	return time.Since(c.start)
}

func (c *WallClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ManualClock only moves when told to. Sleep advances it instantly, which
// makes a whole session deterministic and as fast as the CPU allows.
type ManualClock struct {
	now time.Duration
}

func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) Now() time.Duration { return c.now }

func (c *ManualClock) Advance(d time.Duration) {
	if d > 0 {
		c.now += d
	}
}

func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}
