package rig

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/motorctl/internal/config"
)

// TunerTask copies reloaded controller parameters into the motors' shares.
// It never blocks: each slice applies whatever is already buffered.
type TunerTask struct {
	updates <-chan *config.Config
	motors  map[string]*MotorTask
	applied uint64
	log     zerolog.Logger
}

func (t *TunerTask) Step(now time.Duration) error {
	for {
		select {
		case cfg, ok := <-t.updates:
			if !ok {
				t.updates = nil
				return nil
			}
			t.apply(now, cfg)
		default:
			return nil
		}
	}
}

func (t *TunerTask) apply(now time.Duration, cfg *config.Config) {
	for _, mc := range cfg.Motors {
		m, ok := t.motors[mc.Task.Name]
		if !ok {
			t.log.Warn().Str("motor", mc.Task.Name).Msg("reload names unknown motor; ignored")
			continue
		}
		if mc.Halt {
			m.Halt()
			t.log.Info().Str("motor", m.name).Dur("at", now).Msg("halt requested")
			continue
		}
		m.kp.Put(mc.Controller.Kp)
		m.ki.Put(mc.Controller.Ki)
		m.setpoint.Put(mc.Controller.Setpoint)
		t.log.Info().
			Str("motor", m.name).
			Float64("kp", mc.Controller.Kp).
			Float64("ki", mc.Controller.Ki).
			Float64("setpoint", mc.Controller.Setpoint).
			Dur("at", now).
			Msg("gains applied")
	}
	t.applied++
}

// Applied counts configurations taken from the channel.
func (t *TunerTask) Applied() uint64 { return t.applied }
