// Package loop implements the End-mark auto-loop state machine.
//
// While Idle, every position update is checked against the End marks. Reaching
// an End mark that has a Start before it pauses playback, rewinds to just after
// that Start and schedules a resume. The pending resume carries a generation
// token; genuine user play or seek activity invalidates it.
package loop

import (
	"math"
	"time"

	"github.com/mgpai22/shadowplay/internal/clock"
	"github.com/mgpai22/shadowplay/internal/generation"
	"github.com/mgpai22/shadowplay/internal/logging"
	"github.com/mgpai22/shadowplay/internal/marks"
	"github.com/mgpai22/shadowplay/internal/metrics"
	"github.com/mgpai22/shadowplay/internal/player"
)

type State int

const (
	Idle State = iota
	AutoPaused
)

func (s State) String() string {
	if s == AutoPaused {
		return "auto-paused"
	}
	return "idle"
}

// Config holds the timing constants of the loop.
type Config struct {
	// HitWindow is how far past an End mark a position still counts as a hit.
	HitWindow time.Duration
	// ReseekOffset is added to the Start mark when rewinding.
	ReseekOffset time.Duration
	ResumeDelay  time.Duration
	// SelfSeekWindow is how long after an auto-pause player events are
	// attributed to the controller itself.
	SelfSeekWindow time.Duration
	// GestureWindow is how recent a user gesture must be for a play or seek
	// to count as user-originated.
	GestureWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		HitWindow:      500 * time.Millisecond,
		ReseekOffset:   50 * time.Millisecond,
		ResumeDelay:    1000 * time.Millisecond,
		SelfSeekWindow: 300 * time.Millisecond,
		GestureWindow:  time.Second,
	}
}

// Marks is the view of the mark store the loop needs.
type Marks interface {
	Ends() []float64
	PrecedingStart(t float64) (float64, bool)
}

// Gate reports whether pass mode is suppressing loops.
type Gate interface {
	Suppressed() bool
}

// Cycle describes a pending auto-resume.
type Cycle struct {
	Token       generation.Token
	End         float64
	Target      float64
	ScheduledAt time.Time
}

// Controller is not safe for concurrent use; callers serialize every call,
// including timer callbacks (see clock.Posting).
type Controller struct {
	cfg    Config
	clock  clock.Clock
	player player.Playback
	marks  Marks
	gate   Gate
	logger *logging.Logger

	state   State
	gen     generation.Counter
	cycle   Cycle
	timer   clock.Timer
	handled float64
	hasHit  bool

	selfUntil   time.Time
	lastGesture time.Time

	onChange func(State)
}

func New(cfg Config, c clock.Clock, p player.Playback, m Marks, g Gate, logger *logging.Logger) *Controller {
	if c == nil {
		c = clock.Real{}
	}
	return &Controller{
		cfg:    cfg,
		clock:  c,
		player: p,
		marks:  m,
		gate:   g,
		logger: logging.OrNop(logger).Named("loop"),
	}
}

// OnChange registers fn to be called whenever the state changes.
func (c *Controller) OnChange(fn func(State)) { c.onChange = fn }

func (c *Controller) State() State { return c.state }

// Pending returns the current auto-resume cycle, if any.
func (c *Controller) Pending() (Cycle, bool) {
	if c.state != AutoPaused {
		return Cycle{}, false
	}
	return c.cycle, true
}

func (c *Controller) window() float64 { return c.cfg.HitWindow.Seconds() }

// hit returns the latest End mark whose window [end, end+HitWindow) contains pos.
func (c *Controller) hit(pos float64) (float64, bool) {
	var (
		found bool
		at    float64
	)
	for _, end := range c.marks.Ends() {
		if end > pos {
			break
		}
		if pos < end+c.window() {
			at, found = end, true
		}
	}
	return at, found
}

func (c *Controller) isHandled(end float64) bool {
	return c.hasHit && math.Abs(c.handled-end) < marks.Epsilon
}

// OnTimeUpdate processes a playback position sample.
func (c *Controller) OnTimeUpdate(pos float64) {
	if c.player == nil || c.marks == nil || c.state != Idle {
		return
	}

	end, inWindow := c.hit(pos)
	if c.gate != nil && c.gate.Suppressed() {
		if inWindow && !c.isHandled(end) {
			c.handled, c.hasHit = end, true
			c.logger.Debugw("End mark passed in pass mode", "end", end)
		} else if !inWindow {
			c.rearm(pos)
		}
		return
	}

	if inWindow && !c.isHandled(end) {
		if start, ok := c.marks.PrecedingStart(end); ok {
			c.trigger(end, start)
			return
		}
	}
	if !inWindow {
		c.rearm(pos)
	}
}

// rearm clears the handled End mark once pos has left its window.
func (c *Controller) rearm(pos float64) {
	if c.hasHit && math.Abs(pos-c.handled) >= c.window() {
		c.hasHit = false
	}
}

func (c *Controller) trigger(end, start float64) {
	now := c.clock.Now()
	target := start + c.cfg.ReseekOffset.Seconds()
	tok := c.gen.Next()

	c.state = AutoPaused
	c.handled, c.hasHit = end, true
	c.selfUntil = now.Add(c.cfg.SelfSeekWindow)
	c.cycle = Cycle{Token: tok, End: end, Target: target, ScheduledAt: now}

	if err := c.player.Pause(); err != nil {
		c.logger.Warnw("Auto loop pause failed", "error", err)
	}
	if err := c.player.Seek(target); err != nil {
		c.logger.Warnw("Auto loop seek failed", "target", target, "error", err)
	}
	c.timer = c.clock.AfterFunc(c.cfg.ResumeDelay, func() { c.resume(tok) })

	metrics.AutoLoopsTotal.Inc()
	c.logger.Debugw("Auto loop",
		"end", end,
		"start", start,
		"target", target,
		"token", uint64(tok),
	)
	c.notify()
}

func (c *Controller) resume(tok generation.Token) {
	if !c.gen.Valid(tok) || c.state != AutoPaused {
		metrics.StaleResumesTotal.Inc()
		c.logger.Debugw("Ignoring stale resume", "token", uint64(tok))
		return
	}
	c.state = Idle
	c.timer = nil
	c.gen.Invalidate()
	if c.player != nil {
		if err := c.player.Play(); err != nil {
			c.logger.Warnw("Auto resume failed", "error", err)
		}
	}
	c.notify()
}

// OnGesture records a pointer or key gesture from the user.
func (c *Controller) OnGesture() {
	c.lastGesture = c.clock.Now()
}

func (c *Controller) OnPlay()    { c.userActivity("play") }
func (c *Controller) OnSeeking() { c.userActivity("seeking") }
func (c *Controller) OnSeeked()  { c.userActivity("seeked") }

// userActivity cancels the pending resume when a player event is attributable
// to the user: it arrives after the self-seek window and within GestureWindow
// of a gesture made during the current cycle.
func (c *Controller) userActivity(trigger string) {
	if c.state != AutoPaused {
		return
	}
	now := c.clock.Now()
	if now.Before(c.selfUntil) {
		return
	}
	if c.lastGesture.Before(c.cycle.ScheduledAt) || now.Sub(c.lastGesture) > c.cfg.GestureWindow {
		return
	}
	c.cancel(trigger)
}

// Cancel drops any pending auto-resume without resuming playback. It is safe
// to call in any state and always leaves the controller Idle.
func (c *Controller) Cancel() bool {
	return c.cancel("command")
}

func (c *Controller) cancel(trigger string) bool {
	c.gen.Invalidate()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.state != AutoPaused {
		return false
	}
	c.state = Idle
	c.cycle = Cycle{}
	metrics.LoopCancellationsTotal.WithLabelValues(trigger).Inc()
	c.logger.Debugw("Auto resume cancelled", "trigger", trigger)
	c.notify()
	return true
}

// Reset cancels any cycle and forgets the handled End mark. Used when the
// loaded video or subtitle changes.
func (c *Controller) Reset() {
	c.cancel("reset")
	c.hasHit = false
	c.handled = 0
	c.selfUntil = time.Time{}
	c.lastGesture = time.Time{}
}

// SetPlayer swaps the playback surface, cancelling any cycle.
func (c *Controller) SetPlayer(p player.Playback) {
	c.Reset()
	c.player = p
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange(c.state)
	}
}
