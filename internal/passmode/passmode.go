// Package passmode implements the gate that suspends automatic End-mark looping.
//
// The gate is Off, Pulsing until a deadline, or Sticky. Pulses come from soft
// navigation and expire on their own; Sticky is only entered and left by an
// explicit toggle.
package passmode

import (
	"sync"
	"time"

	"github.com/mgpai22/shadowplay/internal/clock"
	"github.com/mgpai22/shadowplay/internal/generation"
	"github.com/mgpai22/shadowplay/internal/logging"
	"github.com/mgpai22/shadowplay/internal/metrics"
)

// DefaultPulse is how long a soft navigation action suppresses looping.
const DefaultPulse = 2 * time.Second

type State int

const (
	Off State = iota
	Pulsing
	Sticky
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case Pulsing:
		return "pulsing"
	case Sticky:
		return "sticky"
	default:
		return "unknown"
	}
}

// Gate is the pass-mode state machine.
type Gate struct {
	clock  clock.Clock
	pulse  time.Duration
	logger *logging.Logger

	mu       sync.Mutex
	state    State
	deadline time.Time
	timer    clock.Timer
	gen      generation.Counter
	onChange func(State)
}

// New returns an Off gate. A non-positive pulse uses DefaultPulse.
func New(c clock.Clock, pulse time.Duration, logger *logging.Logger) *Gate {
	if c == nil {
		c = clock.Real{}
	}
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	return &Gate{clock: c, pulse: pulse, logger: logging.OrNop(logger).Named("passmode")}
}

// OnChange registers fn to be called after every state change.
func (g *Gate) OnChange(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// Toggle flips the manual pass mode: Off or Pulsing becomes Sticky, Sticky
// becomes Off. A pending pulse is cancelled either way.
func (g *Gate) Toggle() State {
	g.mu.Lock()
	g.cancelPulse()
	if g.state == Sticky {
		g.state = Off
	} else {
		g.state = Sticky
	}
	next := g.state
	notify := g.onChange
	g.mu.Unlock()

	g.changed(next, notify)
	return next
}

// Pulse suppresses looping for the pulse duration, re-arming any running
// pulse. It does nothing while Sticky.
func (g *Gate) Pulse() {
	g.mu.Lock()
	if g.state == Sticky {
		g.mu.Unlock()
		return
	}
	g.cancelPulse()
	prev := g.state
	g.state = Pulsing
	g.deadline = g.clock.Now().Add(g.pulse)
	tok := g.gen.Next()
	g.timer = g.clock.AfterFunc(g.pulse, func() { g.expire(tok) })
	notify := g.onChange
	g.mu.Unlock()

	if prev != Pulsing {
		g.changed(Pulsing, notify)
	}
}

func (g *Gate) expire(tok generation.Token) {
	g.mu.Lock()
	if !g.gen.Valid(tok) || g.state != Pulsing {
		g.mu.Unlock()
		return
	}
	g.state = Off
	g.deadline = time.Time{}
	g.timer = nil
	notify := g.onChange
	g.mu.Unlock()

	g.changed(Off, notify)
}

// Suppressed reports whether End-mark looping must be skipped.
func (g *Gate) Suppressed() bool {
	return g.State() != Off
}

// State returns the current state. A pulse whose deadline has passed reads
// as Off even if its timer has not run yet.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Pulsing && !g.clock.Now().Before(g.deadline) {
		return Off
	}
	return g.state
}

// Deadline is the expiry of the current pulse, or the zero time.
func (g *Gate) Deadline() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Pulsing {
		return time.Time{}
	}
	return g.deadline
}

// Stop releases the pulse timer and returns the gate to Off.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelPulse()
	g.state = Off
}

// callers hold mu
func (g *Gate) cancelPulse() {
	g.gen.Invalidate()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.deadline = time.Time{}
}

func (g *Gate) changed(s State, notify func(State)) {
	metrics.PassModeTransitionsTotal.WithLabelValues(s.String()).Inc()
	g.logger.Debugw("Pass mode changed", "state", s.String())
	if notify != nil {
		notify(s)
	}
}
