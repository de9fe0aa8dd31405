package metrics

import (
	"math"
	"time"

	"github.com/san-kum/motorctl/internal/control"
)

// Metric summarizes a step response one sample at a time.
type Metric interface {
	Name() string
	Observe(s control.Sample)
	Value() float64
	Reset()
}

// Evaluate feeds samples through every metric and collects the results.
func Evaluate(samples []control.Sample, ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for _, s := range samples {
			m.Observe(s)
		}
		out[m.Name()] = m.Value()
	}
	return out
}

// Standard returns the metrics recorded for every saved session. band is
// the settle tolerance in counts.
func Standard(setpoint, band float64) []Metric {
	return []Metric{
		NewIAE(setpoint),
		NewOvershoot(setpoint),
		NewFinalError(setpoint),
		NewMeanAbsError(setpoint),
		NewInBand(setpoint, band),
	}
}

// HigherIsBetter reports whether a larger value of the named metric means
// a better response. Every other standard metric is an error measure.
func HigherIsBetter(name string) bool {
	return name == "in_band"
}

// IAE integrates the absolute tracking error over time (counts·s).
type IAE struct {
	setpoint float64
	sum      float64
	last     time.Duration
	lastErr  float64
	samples  int
}

func NewIAE(setpoint float64) *IAE { return &IAE{setpoint: setpoint} }

func (m *IAE) Name() string { return "iae" }

func (m *IAE) Observe(s control.Sample) {
	e := math.Abs(m.setpoint - s.Value)
	if m.samples > 0 {
		// trapezoid between consecutive samples
		m.sum += 0.5 * (e + m.lastErr) * (s.Offset - m.last).Seconds()
	}
	m.last = s.Offset
	m.lastErr = e
	m.samples++
}

func (m *IAE) Value() float64 { return m.sum }

func (m *IAE) Reset() {
	m.sum, m.last, m.lastErr, m.samples = 0, 0, 0, 0
}

// Overshoot is the largest excursion past the setpoint, in counts, measured
// in the direction of travel from the first sample.
type Overshoot struct {
	setpoint float64
	dir      float64
	max      float64
	samples  int
}

func NewOvershoot(setpoint float64) *Overshoot { return &Overshoot{setpoint: setpoint} }

func (m *Overshoot) Name() string { return "overshoot" }

func (m *Overshoot) Observe(s control.Sample) {
	if m.samples == 0 {
		m.dir = 1
		if s.Value > m.setpoint {
			m.dir = -1
		}
	}
	m.samples++
	if past := m.dir * (s.Value - m.setpoint); past > m.max {
		m.max = past
	}
}

func (m *Overshoot) Value() float64 { return m.max }

func (m *Overshoot) Reset() {
	m.dir, m.max, m.samples = 0, 0, 0
}

// FinalError is setpoint minus the last observed position.
type FinalError struct {
	setpoint float64
	last     float64
	seen     bool
}

func NewFinalError(setpoint float64) *FinalError { return &FinalError{setpoint: setpoint} }

func (m *FinalError) Name() string { return "final_error" }

func (m *FinalError) Observe(s control.Sample) {
	m.last = s.Value
	m.seen = true
}

func (m *FinalError) Value() float64 {
	if !m.seen {
		return 0
	}
	return m.setpoint - m.last
}

func (m *FinalError) Reset() {
	m.last, m.seen = 0, false
}
