// Package volume decides native volume and amplification for volume keys.
package volume

import (
	"math"

	"github.com/mgpai22/shadowplay/internal/logging"
	"github.com/mgpai22/shadowplay/internal/player"
)

const (
	DefaultStep             = 0.1
	DefaultMaxAmplification = 4.0
)

// Level is the effective output: native volume in [0, 1] times a gain
// multiplier in [1, max].
type Level struct {
	Volume     float64
	Multiplier float64
}

// Percent is the effective loudness, 100 being native full volume.
func (l Level) Percent() float64 {
	return math.Round(l.Volume * l.Multiplier * 100)
}

type Options struct {
	Step             float64
	MaxAmplification float64
}

// Mixer raises native volume to 1.0 before amplifying, and lowers
// amplification back to 1.0 before lowering native volume.
// The multiplier is read back from the amplifier on every step, so a level
// changed outside the mixer is picked up.
type Mixer struct {
	player player.Playback
	amp    player.Amplifier
	step   float64
	max    float64
	logger *logging.Logger
}

// NewMixer returns a mixer. A nil amplifier limits output to native volume.
func NewMixer(p player.Playback, amp player.Amplifier, opts Options, logger *logging.Logger) *Mixer {
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}
	if opts.MaxAmplification < 1 {
		opts.MaxAmplification = DefaultMaxAmplification
	}
	return &Mixer{
		player: p,
		amp:    amp,
		step:   opts.Step,
		max:    opts.MaxAmplification,
		logger: logging.OrNop(logger).Named("volume"),
	}
}

func (m *Mixer) multiplier() float64 {
	if m.amp == nil {
		return 1
	}
	return math.Max(m.amp.Amplification(), 1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (m *Mixer) Level() Level {
	if m.player == nil {
		return Level{Multiplier: m.multiplier()}
	}
	return Level{Volume: m.player.Volume(), Multiplier: m.multiplier()}
}

// Up raises native volume, or amplification once native volume is at 1.0.
func (m *Mixer) Up() (Level, error) {
	if m.player == nil {
		return m.Level(), nil
	}
	v, gain := m.player.Volume(), m.multiplier()
	switch {
	case v < 1:
		if err := m.player.SetVolume(round2(math.Min(v+m.step, 1))); err != nil {
			return m.Level(), err
		}
	case m.amp != nil && gain < m.max:
		if err := m.amplify(round2(math.Min(gain+m.step, m.max))); err != nil {
			return m.Level(), err
		}
	}
	return m.Level(), nil
}

// Down lowers amplification toward 1.0, then native volume toward 0.
func (m *Mixer) Down() (Level, error) {
	if m.player == nil {
		return m.Level(), nil
	}
	switch v, gain := m.player.Volume(), m.multiplier(); {
	case m.amp != nil && gain > 1:
		if err := m.amplify(round2(math.Max(gain-m.step, 1))); err != nil {
			return m.Level(), err
		}
	case v > 0:
		if err := m.player.SetVolume(round2(math.Max(v-m.step, 0))); err != nil {
			return m.Level(), err
		}
	}
	return m.Level(), nil
}

// Step calls Up for a positive dir and Down otherwise.
func (m *Mixer) Step(dir int) (Level, error) {
	if dir > 0 {
		return m.Up()
	}
	return m.Down()
}

func (m *Mixer) amplify(multiplier float64) error {
	if err := m.amp.Amplify(multiplier); err != nil {
		m.logger.Warnw("Amplifier rejected multiplier",
			"multiplier", multiplier,
			"error", err,
		)
		return err
	}
	return nil
}
