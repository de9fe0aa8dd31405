package metrics

import (
	"math"

	"github.com/san-kum/motorctl/internal/control"
)

// InBand is the fraction of samples whose position lies within band counts
// of the setpoint. An empty response counts as fully in band.
type InBand struct {
	name     string
	setpoint float64
	band     float64
	inside   int
	samples  int
}

func NewInBand(setpoint, band float64) *InBand {
	return &InBand{
		name:     "in_band",
		setpoint: setpoint,
		band:     band,
	}
}

func (s *InBand) Name() string {
	return s.name
}

func (s *InBand) Observe(smp control.Sample) {
	s.samples++
	if math.Abs(smp.Value-s.setpoint) <= s.band {
		s.inside++
	}
}

func (s *InBand) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return float64(s.inside) / float64(s.samples)
}

func (s *InBand) Reset() {
	s.inside = 0
	s.samples = 0
}
