package viz

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/san-kum/motorctl/internal/sched"
)

// TaskTable renders one row per task in dispatch order. Timing columns are
// blank for tasks that were not profiled.
func TaskTable(stats []sched.Stats) string {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		row := []string{
			s.Name,
			strconv.Itoa(s.Priority),
			fmtDur(s.Period),
			s.State.String(),
			strconv.FormatUint(s.Runs, 10),
		}
		if s.Profiled && s.Profile.Runs > 0 {
			row = append(row,
				fmtDur(s.Profile.Avg()),
				fmtDur(s.Profile.Max),
				fmtDur(s.Profile.MaxLate))
		} else {
			row = append(row, "-", "-", "-")
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Subtle).
		Headers("TASK", "PRI", "PERIOD", "STATE", "RUNS", "AVG", "MAX", "LATE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return HeaderStyle.Padding(0, 1)
			}
			if col == 3 && row >= 0 && row < len(stats) {
				return StateStyle(stats[row].State).Padding(0, 1)
			}
			return base
		})
	return t.Render()
}

// TraceTable lists a task's recorded transitions, oldest first.
func TraceTable(tr *sched.Trace) string {
	if tr == nil {
		return Subtle.Render("tracing disabled")
	}
	var b strings.Builder
	for _, e := range tr.Entries() {
		fmt.Fprintf(&b, "%10s  %-8s -> %s\n", fmtDur(e.At), e.From, e.To)
	}
	if n := tr.Lost(); n > 0 {
		b.WriteString(Subtle.Render(fmt.Sprintf("(%d older transitions discarded)", n)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Metrics renders label/value pairs in a fixed key order.
func Metrics(keys []string, values map[string]float64) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := values[k]
		if !ok {
			continue
		}
		parts = append(parts, MetricLabel.Render(k+" ")+MetricValue.Render(strconv.FormatFloat(v, 'f', 2, 64)))
	}
	return strings.Join(parts, "   ")
}

func fmtDur(d time.Duration) string {
	switch {
	case d == 0:
		return "0"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', -1, 64) + "ms"
	default:
		return d.String()
	}
}
