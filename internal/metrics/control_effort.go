package metrics

import (
	"math"

	"github.com/san-kum/motorctl/internal/control"
)

// MeanAbsError averages |setpoint - position| over samples, without
// weighting by time.
type MeanAbsError struct {
	name     string
	setpoint float64
	sum      float64
	samples  int
}

func NewMeanAbsError(setpoint float64) *MeanAbsError {
	return &MeanAbsError{
		name:     "mae",
		setpoint: setpoint,
	}
}

func (c *MeanAbsError) Name() string {
	return c.name
}

func (c *MeanAbsError) Observe(s control.Sample) {
	c.sum += math.Abs(c.setpoint - s.Value)
	c.samples++
}

func (c *MeanAbsError) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *MeanAbsError) Reset() {
	c.sum = 0
	c.samples = 0
}
