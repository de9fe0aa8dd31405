package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/motorctl/internal/control"
	"github.com/san-kum/motorctl/internal/plant"
	"github.com/san-kum/motorctl/internal/sched"
	"github.com/san-kum/motorctl/internal/taskshare"
)

const (
	DefaultDuration      = 10 * time.Second
	DefaultQueueCapacity = 2000
	DefaultPeriod        = 10 * time.Millisecond
	DefaultSettleBand    = 50.0
	DefaultTunerPeriod   = 100 * time.Millisecond

	ClockSim  = "sim"
	ClockWall = "wall"
)

var ErrInvalid = errors.New("config: invalid")

// Task names the rig registers for itself.
const (
	TunerTaskName    = "tuner"
	DeadlineTaskName = "deadline"
)

type Config struct {
	Clock    string        `yaml:"clock"`
	Duration time.Duration `yaml:"duration"`
	Queue    QueueConfig   `yaml:"queue"`
	Log      LogConfig     `yaml:"log"`
	Tuner    TunerConfig   `yaml:"tuner"`
	Motors   []MotorConfig `yaml:"motors"`
}

type QueueConfig struct {
	Capacity int    `yaml:"capacity"`
	Policy   string `yaml:"policy"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// TunerConfig controls the task that applies reloaded gains.
type TunerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Priority int           `yaml:"priority"`
	Period   time.Duration `yaml:"period"`
}

type MotorConfig struct {
	Task       sched.Config      `yaml:",inline"`
	Controller control.Params    `yaml:"controller"`
	Plant      plant.MotorParams `yaml:"plant"`
	// SettleBand is the |error| in counts under which the motor reports done.
	SettleBand float64 `yaml:"settle_band"`
	// Halt stops the motor and ends its task for good. A reload can set it
	// on a running rig.
	Halt bool `yaml:"halt"`
}

func DefaultMotor(name string, priority int, setpoint float64) MotorConfig {
	return MotorConfig{
		Task: sched.Config{
			Name:     name,
			Priority: priority,
			Period:   DefaultPeriod,
			Profile:  true,
		},
		Controller: control.Params{Kp: 0.2, Setpoint: setpoint},
		Plant:      plant.DefaultMotorParams(),
		SettleBand: DefaultSettleBand,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Clock:    ClockSim,
		Duration: DefaultDuration,
		Queue: QueueConfig{
			Capacity: DefaultQueueCapacity,
			Policy:   taskshare.DropNewest.String(),
		},
		Log: LogConfig{Level: "info"},
		Tuner: TunerConfig{
			Priority: 0,
			Period:   DefaultTunerPeriod,
		},
		Motors: []MotorConfig{
			DefaultMotor("motor_1", 1, 36000),
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Motors = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: yaml: %w", err)
	}
	if len(cfg.Motors) == 0 {
		cfg.Motors = DefaultConfig().Motors
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// fillDefaults supplies values a partial motor entry leaves out.
func (c *Config) fillDefaults() {
	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = DefaultQueueCapacity
	}
	if c.Tuner.Period == 0 {
		c.Tuner.Period = DefaultTunerPeriod
	}
	def := plant.DefaultMotorParams()
	for i := range c.Motors {
		m := &c.Motors[i]
		if m.Task.Period == 0 {
			m.Task.Period = DefaultPeriod
		}
		if m.SettleBand == 0 {
			m.SettleBand = DefaultSettleBand
		}
		if m.Plant == (plant.MotorParams{}) {
			m.Plant = def
		}
		if m.Plant.MaxSpeed == 0 {
			m.Plant.MaxSpeed = def.MaxSpeed
		}
		if m.Plant.TimeConstant == 0 {
			m.Plant.TimeConstant = def.TimeConstant
		}
		if m.Plant.Integrator == "" {
			m.Plant.Integrator = def.Integrator
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Clock != ClockSim && c.Clock != ClockWall {
		errs = append(errs, fmt.Errorf("clock: must be %q or %q, got %q", ClockSim, ClockWall, c.Clock))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration: must be >= 0"))
	}
	if c.Queue.Capacity < 1 {
		errs = append(errs, fmt.Errorf("queue.capacity: must be >= 1"))
	}
	if _, err := taskshare.ParsePolicy(c.Queue.Policy); err != nil {
		errs = append(errs, fmt.Errorf("queue.policy: %w", err))
	}
	if c.Tuner.Enabled && c.Tuner.Period <= 0 {
		errs = append(errs, fmt.Errorf("tuner.period: must be positive"))
	}
	if len(c.Motors) == 0 {
		errs = append(errs, fmt.Errorf("motors: at least one motor required"))
	}

	seen := make(map[string]bool, len(c.Motors))
	for i, m := range c.Motors {
		path := fmt.Sprintf("motors[%d]", i)
		if m.Task.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name: required", path))
		} else if seen[m.Task.Name] {
			errs = append(errs, fmt.Errorf("%s.name: duplicate %q", path, m.Task.Name))
		} else if m.Task.Name == TunerTaskName || m.Task.Name == DeadlineTaskName {
			errs = append(errs, fmt.Errorf("%s.name: %q is reserved", path, m.Task.Name))
		}
		seen[m.Task.Name] = true
		if m.Task.Period <= 0 {
			errs = append(errs, fmt.Errorf("%s.period: must be positive", path))
		}
		if _, err := plant.NewIntegrator(m.Plant.Integrator); err != nil {
			errs = append(errs, fmt.Errorf("%s.plant.integrator: %w", path, err))
		}
		if m.SettleBand < 0 {
			errs = append(errs, fmt.Errorf("%s.settle_band: must be >= 0", path))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Clone returns a copy that shares no motor entries with c.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Motors = append([]MotorConfig(nil), c.Motors...)
	return &cp
}

// Motor returns the motor entry with the given task name.
func (c *Config) Motor(name string) (*MotorConfig, bool) {
	for i := range c.Motors {
		if c.Motors[i].Task.Name == name {
			return &c.Motors[i], true
		}
	}
	return nil, false
}
