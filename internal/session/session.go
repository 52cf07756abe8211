// Package session wires the controller components into one object that owns
// all playback-practice state.
//
// A Session is not safe for concurrent use. Runner serializes player events,
// key presses and timer callbacks onto a single goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mgpai22/shadowplay/internal/clock"
	"github.com/mgpai22/shadowplay/internal/command"
	"github.com/mgpai22/shadowplay/internal/cueindex"
	"github.com/mgpai22/shadowplay/internal/logging"
	"github.com/mgpai22/shadowplay/internal/loop"
	"github.com/mgpai22/shadowplay/internal/marks"
	"github.com/mgpai22/shadowplay/internal/passmode"
	"github.com/mgpai22/shadowplay/internal/player"
	"github.com/mgpai22/shadowplay/internal/storage"
	"github.com/mgpai22/shadowplay/internal/timecode"
	"github.com/mgpai22/shadowplay/internal/volume"
)

// DefaultRemoveWindow bounds how far ahead RemoveNextMark looks, in seconds.
const DefaultRemoveWindow = 60.0

type Options struct {
	Loop         loop.Config
	Pulse        time.Duration
	Command      command.Options
	Bindings     command.Bindings
	Volume       volume.Options
	RemoveWindow float64
}

func DefaultOptions() Options {
	return Options{
		Loop:         loop.DefaultConfig(),
		Pulse:        passmode.DefaultPulse,
		Command:      command.DefaultOptions(),
		Bindings:     command.DefaultBindings(),
		RemoveWindow: DefaultRemoveWindow,
	}
}

// Snapshot is a consistent view of the session for rendering.
type Snapshot struct {
	Key          marks.Key
	Position     float64
	Duration     float64
	Paused       bool
	Rate         float64
	Volume       volume.Level
	Pass         passmode.State
	PassDeadline time.Time
	Loop         loop.State
	LoopTarget   float64
	Starts       []float64
	Ends         []float64
	Preview      cueindex.Window
	TextFocus    bool
	Notice       string
}

type Session struct {
	ctx    context.Context
	opts   Options
	clock  clock.Clock
	logger *logging.Logger

	player player.Playback
	cues   *cueindex.Index
	marks  *marks.Store
	gate   *passmode.Gate
	loop   *loop.Controller
	router *command.Router
	mixer  *volume.Mixer

	pendingUnmute bool
	notice        string

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

var _ command.Target = (*Session)(nil)

// New builds a session around p. amp may be nil; kv may be nil for an
// in-memory mark store.
func New(p player.Playback, amp player.Amplifier, kv storage.KV, c clock.Clock, opts Options, logger *logging.Logger) *Session {
	if c == nil {
		c = clock.Real{}
	}
	logger = logging.OrNop(logger)
	if opts.RemoveWindow <= 0 {
		opts.RemoveWindow = DefaultRemoveWindow
	}

	s := &Session{
		ctx:    context.Background(),
		opts:   opts,
		clock:  c,
		logger: logger.Named("session"),
		player: p,
		marks:  marks.NewStore(kv, logger),
		gate:   passmode.New(c, opts.Pulse, logger),
		subs:   make(map[int]chan Snapshot),
	}
	s.loop = loop.New(opts.Loop, c, p, s.marks, s.gate, logger)
	s.router = command.NewRouter(opts.Bindings, s, opts.Command, logger)
	s.mixer = volume.NewMixer(p, amp, opts.Volume, logger)

	s.gate.OnChange(func(passmode.State) { s.publish() })
	s.loop.OnChange(func(loop.State) { s.publish() })
	return s
}

// Load switches to a new video and subtitle pair.
func (s *Session) Load(ctx context.Context, video, subtitle string, cues *cueindex.Index) {
	s.loop.Reset()
	s.cues = cues
	found := s.marks.Load(ctx, marks.Key{Video: video, Subtitle: subtitle})
	s.logger.Infow("Loaded media",
		"video", video,
		"subtitle", subtitle,
		"cues", cues.Len(),
		"marks_found", found,
	)
	s.publish()
}

// ReloadCues swaps the cue index without touching marks.
func (s *Session) ReloadCues(cues *cueindex.Index) {
	s.cues = cues
	s.Notify("subtitles reloaded (%d cues)", cues.Len())
}

func (s *Session) Marks() *marks.Store { return s.marks }

func (s *Session) Cues() *cueindex.Index { return s.cues }

// HandleEvent feeds a player observation to the loop controller.
func (s *Session) HandleEvent(ev player.Event) {
	switch ev.Kind {
	case player.TimeUpdate:
		s.loop.OnTimeUpdate(ev.Position)
	case player.Play:
		s.loop.OnPlay()
	case player.Seeking:
		s.loop.OnSeeking()
	case player.Seeked:
		s.loop.OnSeeked()
	}
	s.publish()
}

// HandleKey records the key press as a user gesture and dispatches it. It
// reports whether the key was consumed.
func (s *Session) HandleKey(key command.Key) bool {
	s.Gesture()
	handled := s.router.Dispatch(key)
	if handled {
		s.publish()
	}
	return handled
}

// Gesture records a user gesture. The first gesture after a muted autoplay
// restores sound.
func (s *Session) Gesture() {
	s.loop.OnGesture()
	if s.pendingUnmute && s.player != nil {
		s.pendingUnmute = false
		if err := s.player.SetMuted(false); err != nil {
			s.logger.Warnw("Failed to unmute after gesture", "error", err)
		}
	}
}

func (s *Session) SetTextFocus(focused bool) {
	s.router.SetTextFocus(focused)
	s.publish()
}

// EditMark parses text as a time and moves the kind mark at old there.
// Invalid or negative input discards the edit.
func (s *Session) EditMark(ctx context.Context, kind marks.Kind, old float64, text string) bool {
	t, err := timecode.Parse(text)
	if err != nil {
		s.logger.Debugw("Discarding mark edit", "input", text, "error", err)
		return false
	}
	ok, err := s.marks.Replace(ctx, kind, old, t)
	if err != nil {
		s.logger.Warnw("Mark edit not saved", "error", err)
	}
	if ok {
		s.Notify("%s mark %s → %s", kind, timecode.Format(old), timecode.Format(t))
	}
	return ok
}

// SetPlaybackRate applies one of player.Rates.
func (s *Session) SetPlaybackRate(rate float64) error {
	if s.player == nil {
		return nil
	}
	if err := s.player.SetPlaybackRate(rate); err != nil {
		return err
	}
	s.Notify("speed %gx", rate)
	return nil
}

// Autoplay starts playback. When the player refuses, it retries muted and
// restores sound on the next gesture.
func (s *Session) Autoplay() {
	if s.player == nil {
		return
	}
	err := s.player.Play()
	if err == nil {
		return
	}
	s.logger.Debugw("Autoplay rejected, retrying muted", "error", err)
	if mErr := s.player.SetMuted(true); mErr != nil {
		s.logger.Warnw("Failed to mute for autoplay", "error", mErr)
	}
	if err := s.player.Play(); err != nil {
		s.logger.Warnw("Autoplay failed, waiting for user", "error", err)
		_ = s.player.SetMuted(false)
		return
	}
	s.pendingUnmute = true
}

// Close releases timers.
func (s *Session) Close() {
	s.loop.Cancel()
	s.gate.Stop()
}

// Snapshot captures the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Key:          s.marks.Key(),
		Volume:       s.mixer.Level(),
		Pass:         s.gate.State(),
		PassDeadline: s.gate.Deadline(),
		Loop:         s.loop.State(),
		Starts:       s.marks.Starts(),
		Ends:         s.marks.Ends(),
		TextFocus:    s.router.TextFocus(),
		Notice:       s.notice,
		Rate:         1,
	}
	if c, ok := s.loop.Pending(); ok {
		snap.LoopTarget = c.Target
	}
	if s.player != nil {
		snap.Position = s.player.CurrentTime()
		snap.Duration = s.player.Duration()
		snap.Paused = s.player.Paused()
		snap.Rate = s.player.PlaybackRate()
	}
	snap.Preview = s.cues.Preview(snap.Position)
	return snap
}

// Subscribe returns a channel receiving the latest snapshot after every
// change. Slow readers only see the most recent one.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *Session) publish() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Notify sets the status notice shown to the user.
func (s *Session) Notify(format string, args ...interface{}) {
	s.notice = fmt.Sprintf(format, args...)
	s.publish()
}

// command.Target

func (s *Session) TogglePlay() error {
	if s.player == nil {
		return nil
	}
	s.loop.Cancel()
	if s.player.Paused() {
		return s.player.Play()
	}
	return s.player.Pause()
}

func (s *Session) JumpCue(dir int) error {
	if s.player == nil || s.cues.Len() == 0 {
		return nil
	}
	d := cueindex.Next
	if dir < 0 {
		d = cueindex.Previous
	}
	cue, ok := s.cues.Adjacent(s.player.CurrentTime(), d)
	if !ok {
		return nil
	}
	return s.seekBy(cue.Start)
}

func (s *Session) Skip(seconds float64) error {
	if s.player == nil {
		return nil
	}
	target := math.Max(s.player.CurrentTime()+seconds, 0)
	if d := s.player.Duration(); d > 0 {
		target = math.Min(target, d)
	}
	return s.seekBy(target)
}

// seekBy performs a soft navigation: it pulses pass mode, drops any pending
// auto-resume and seeks.
func (s *Session) seekBy(target float64) error {
	s.gate.Pulse()
	s.loop.Cancel()
	return s.player.Seek(target)
}

func (s *Session) ToggleStartMark() error { return s.toggleMark(marks.Start) }
func (s *Session) ToggleEndMark() error   { return s.toggleMark(marks.End) }

func (s *Session) toggleMark(kind marks.Kind) error {
	if s.player == nil {
		return nil
	}
	at := s.player.CurrentTime()
	added, err := s.marks.Toggle(s.ctx, kind, at)
	verb := "removed"
	if added {
		verb = "added"
	}
	s.Notify("%s mark %s %s", kind, verb, timecode.Format(marks.Round(at)))
	return err
}

func (s *Session) RemoveNextMark() error {
	if s.player == nil {
		return nil
	}
	kind, at, ok, err := s.marks.RemoveClosestFuture(s.ctx, s.player.CurrentTime(), s.opts.RemoveWindow)
	if ok {
		s.Notify("%s mark removed %s", kind, timecode.Format(at))
	}
	return err
}

func (s *Session) StepVolume(dir int) error {
	lvl, err := s.mixer.Step(dir)
	s.Notify("volume %.0f%%", lvl.Percent())
	return err
}

func (s *Session) TogglePass() error {
	state := s.gate.Toggle()
	s.Notify("pass mode %s", state)
	return nil
}

func (s *Session) StepSpeed(dir int) error {
	if s.player == nil {
		return nil
	}
	err := s.SetPlaybackRate(player.StepRate(s.player.PlaybackRate(), dir))
	if errors.Is(err, player.ErrInvalidRate) {
		s.logger.Debugw("Rejected playback rate", "error", err)
	}
	return err
}
