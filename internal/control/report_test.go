package control

import (
	"errors"
	"testing"
	"time"

	"github.com/san-kum/motorctl/internal/taskshare"
)

func TestDrainReport(t *testing.T) {
	times := taskshare.NewQueue[time.Duration]("time", 8, taskshare.DropNewest)
	values := taskshare.NewQueue[float64]("value", 8, taskshare.DropNewest)

	for i, at := range []time.Duration{10, 15, 20} {
		_ = times.Put(at * time.Millisecond)
		_ = values.Put(float64(i + 1))
	}

	samples, err := DrainReport(times, values)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	want := []Sample{{0, 1}, {5 * time.Millisecond, 2}, {10 * time.Millisecond, 3}}
	if len(samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(samples))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d = %+v, want %+v", i, samples[i], want[i])
		}
	}
	if times.Any() || values.Any() {
		t.Error("queues should be empty after drain")
	}
}

func TestDrainReportEmpty(t *testing.T) {
	times := taskshare.NewQueue[time.Duration]("time", 2, taskshare.DropNewest)
	values := taskshare.NewQueue[float64]("value", 2, taskshare.DropNewest)

	samples, err := DrainReport(times, values)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("expected no samples, got %d", len(samples))
	}
}

func TestDrainReportMismatch(t *testing.T) {
	times := taskshare.NewQueue[time.Duration]("time", 4, taskshare.DropNewest)
	values := taskshare.NewQueue[float64]("value", 4, taskshare.DropNewest)
	_ = times.Put(1 * time.Millisecond)
	_ = times.Put(2 * time.Millisecond)
	_ = times.Put(3 * time.Millisecond)
	_ = values.Put(1)

	samples, err := DrainReport(times, values)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	if len(samples) != 1 {
		t.Errorf("expected the paired sample back, got %d", len(samples))
	}
	if times.Any() || values.Any() {
		t.Error("queues should be empty after a failed drain")
	}
}

func TestFormatSample(t *testing.T) {
	tests := []struct {
		s    Sample
		want string
	}{
		{Sample{0, 1}, "0,1"},
		{Sample{1500 * time.Millisecond, -36000}, "1500,-36000"},
		{Sample{25 * time.Millisecond, 0.5}, "25,0.5"},
	}
	for _, tt := range tests {
		if got := FormatSample(tt.s); got != tt.want {
			t.Errorf("FormatSample(%+v) = %q, want %q", tt.s, got, tt.want)
		}
	}
}
