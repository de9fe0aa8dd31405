package viz

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/motorctl/internal/control"
	"github.com/san-kum/motorctl/internal/sched"
)

func TestTaskTable(t *testing.T) {
	stats := []sched.Stats{
		{Name: "motor_2", Priority: 2, Period: 15 * time.Millisecond, State: sched.StateReady, Runs: 4,
			Profiled: true, Profile: sched.Profile{Runs: 4, Total: 40 * time.Microsecond, Max: 20 * time.Microsecond}},
		{Name: "motor_1", Priority: 1, Period: 10 * time.Millisecond, State: sched.StateDead, Runs: 6},
	}

	out := TaskTable(stats)
	for _, want := range []string{"TASK", "motor_2", "motor_1", "15ms", "Dead", "10µs"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "motor_2") > strings.Index(out, "motor_1") {
		t.Error("rows should keep dispatch order")
	}
}

func TestPlotResponse(t *testing.T) {
	samples := []control.Sample{
		{Offset: 0, Value: 0},
		{Offset: 10 * time.Millisecond, Value: 500},
		{Offset: 20 * time.Millisecond, Value: 1000},
	}
	out := PlotResponse("motor_1", samples, 1000)
	if !strings.Contains(out, "motor_1: position vs time") {
		t.Errorf("missing caption:\n%s", out)
	}

	if out := PlotResponse("motor_1", nil, 0); !strings.Contains(out, "no samples") {
		t.Errorf("unexpected empty plot %q", out)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 4); got != "────" {
		t.Errorf("unexpected empty sparkline %q", got)
	}
	out := Sparkline([]float64{0, 1, 2, 3}, 4)
	if !strings.Contains(out, "▁") || !strings.Contains(out, "█") {
		t.Errorf("sparkline missing extremes: %q", out)
	}
}

func TestMetrics(t *testing.T) {
	out := Metrics([]string{"iae", "missing", "overshoot"}, map[string]float64{"iae": 1.5, "overshoot": 2})
	if !strings.Contains(out, "1.50") || !strings.Contains(out, "2.00") || strings.Contains(out, "missing") {
		t.Errorf("unexpected metrics %q", out)
	}
}

func TestSeparator(t *testing.T) {
	if got := lipgloss.Width(Separator(40)); got != 40 {
		t.Errorf("expected width 40, got %d", got)
	}
	if Separator(-3) != Subtle.Render("") {
		t.Error("negative width should render empty")
	}
}
