// Package player defines the playback surface the controller drives and an
// mpv adapter that implements it.
package player

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrClosed      = errors.New("player connection closed")
	ErrInvalidRate = errors.New("invalid playback rate")
)

// Playback is the media surface. Times are in seconds.
type Playback interface {
	CurrentTime() float64
	Seek(t float64) error
	// Duration returns 0 while the length is unknown.
	Duration() float64
	Paused() bool
	Play() error
	Pause() error
	PlaybackRate() float64
	SetPlaybackRate(rate float64) error
	// Volume is the native volume in [0, 1].
	Volume() float64
	SetVolume(v float64) error
	SetMuted(muted bool) error
}

// Amplifier boosts output past the native volume ceiling.
type Amplifier interface {
	// Amplify sets the gain multiplier, in [1, 4].
	Amplify(multiplier float64) error
	Amplification() float64
}

type EventKind int

const (
	TimeUpdate EventKind = iota
	Play
	Pause
	Seeking
	Seeked
	Ended
	DurationChange
)

func (k EventKind) String() string {
	switch k {
	case TimeUpdate:
		return "timeupdate"
	case Play:
		return "play"
	case Pause:
		return "pause"
	case Seeking:
		return "seeking"
	case Seeked:
		return "seeked"
	case Ended:
		return "ended"
	case DurationChange:
		return "durationchange"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is an observation reported by the media surface.
type Event struct {
	Kind     EventKind
	Position float64
}

// Rates are the supported playback rates, ascending.
var Rates = []float64{0.25, 0.5, 0.75, 1, 1.5, 2}

func ValidRate(rate float64) bool {
	for _, r := range Rates {
		if math.Abs(r-rate) < 1e-9 {
			return true
		}
	}
	return false
}

// StepRate moves from current to the neighbouring rate in direction dir
// (negative slower, positive faster), clamping at both ends. A current value
// outside Rates snaps to the nearest rate in that direction.
func StepRate(current float64, dir int) float64 {
	switch {
	case dir > 0:
		for _, r := range Rates {
			if r > current+1e-9 {
				return r
			}
		}
		return Rates[len(Rates)-1]
	case dir < 0:
		for i := len(Rates) - 1; i >= 0; i-- {
			if Rates[i] < current-1e-9 {
				return Rates[i]
			}
		}
		return Rates[0]
	default:
		return current
	}
}
