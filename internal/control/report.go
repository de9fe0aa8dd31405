package control

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/san-kum/motorctl/internal/taskshare"
)

// Sample is one reported point, timed relative to the first sample.
type Sample struct {
	Offset time.Duration
	Value  float64
}

// DrainReport empties both queues in lockstep and returns the samples with
// timestamps shifted so the first is zero. If one queue runs dry before the
// other, the samples paired so far are returned with ErrLengthMismatch.
func DrainReport(times *taskshare.Queue[time.Duration], values *taskshare.Queue[float64]) ([]Sample, error) {
	out := make([]Sample, 0, times.Len())
	var first time.Duration

	for {
		t, errT := times.Get()
		v, errV := values.Get()

		tEmpty := errors.Is(errT, taskshare.ErrQueueEmpty)
		vEmpty := errors.Is(errV, taskshare.ErrQueueEmpty)
		if tEmpty && vEmpty {
			return out, nil
		}
		if tEmpty || vEmpty {
			// Drop whatever is left so the queues are empty either way.
			left := times.Len() + values.Len() + 1
			times.Clear()
			values.Clear()
			return out, fmt.Errorf("%w after %d samples (%d unpaired)", ErrLengthMismatch, len(out), left)
		}

		if len(out) == 0 {
			first = t
		}
		out = append(out, Sample{Offset: t - first, Value: v})
	}
}

// FormatSample renders a sample as "<milliseconds>,<value>", the line format
// of the diagnostic stream.
func FormatSample(s Sample) string {
	return strconv.FormatInt(s.Offset.Milliseconds(), 10) + "," + strconv.FormatFloat(s.Value, 'g', -1, 64)
}

// Series splits samples into parallel slices for plotting.
func Series(samples []Sample) (offsets []float64, values []float64) {
	offsets = make([]float64, len(samples))
	values = make([]float64, len(samples))
	for i, s := range samples {
		offsets[i] = float64(s.Offset) / float64(time.Millisecond)
		values[i] = s.Value
	}
	return offsets, values
}
