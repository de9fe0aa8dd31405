package config

import (
	"sort"
	"time"

	"github.com/san-kum/motorctl/internal/control"
	"github.com/san-kum/motorctl/internal/plant"
	"github.com/san-kum/motorctl/internal/sched"
	"github.com/san-kum/motorctl/internal/taskshare"
)

var Presets = map[string]func() *Config{
	// Two motors driven to opposite setpoints, each in its own task.
	"dual": func() *Config {
		cfg := DefaultConfig()
		m1 := DefaultMotor("motor_1", 1, 36000)
		m1.Task.Period = 10 * time.Millisecond
		m2 := DefaultMotor("motor_2", 2, -36000)
		m2.Task.Period = 15 * time.Millisecond
		cfg.Motors = []MotorConfig{m1, m2}
		return cfg
	},
	// Single PI step response, sampled fast into a 500-slot queue.
	"step": func() *Config {
		cfg := DefaultConfig()
		cfg.Duration = 2 * time.Second
		cfg.Queue.Capacity = 500
		cfg.Motors = []MotorConfig{{
			Task: sched.Config{
				Name:     "motor_1",
				Priority: 1,
				Period:   4 * time.Millisecond,
				Profile:  true,
			},
			Controller: control.Params{Kp: 0.9, Ki: 0.2, Setpoint: 15000},
			Plant:      plant.DefaultMotorParams(),
			SettleBand: DefaultSettleBand,
		}}
		return cfg
	},
	// A short buffer that keeps the newest samples instead of the oldest.
	"ring": func() *Config {
		cfg := DefaultConfig()
		cfg.Queue.Capacity = 200
		cfg.Queue.Policy = taskshare.OverwriteOldest.String()
		return cfg
	},
	// Tracing on, and the tuner task listening for gain reloads.
	"debug": func() *Config {
		cfg := DefaultConfig()
		cfg.Log.Level = "debug"
		cfg.Tuner.Enabled = true
		cfg.Motors[0].Task.Trace = true
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
