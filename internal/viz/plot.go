package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/motorctl/internal/control"
)

const (
	PlotHeight = 12
	PlotWidth  = 80
)

// PlotResponse draws a motor's position samples against its setpoint.
func PlotResponse(title string, samples []control.Sample, setpoint float64) string {
	if len(samples) == 0 {
		return Subtle.Render(title + ": no samples")
	}
	_, values := control.Series(samples)
	target := make([]float64, len(values))
	for i := range target {
		target[i] = setpoint
	}

	last := samples[len(samples)-1].Offset
	caption := fmt.Sprintf("%s: position vs time, 0..%s (%d samples)", title, fmtDur(last), len(samples))
	return asciigraph.PlotMany([][]float64{values, target},
		asciigraph.Height(PlotHeight),
		asciigraph.Width(PlotWidth),
		asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Red),
		asciigraph.Caption(caption),
	)
}
