// Package command maps key presses to controller actions.
package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mgpai22/shadowplay/internal/logging"
	"github.com/mgpai22/shadowplay/internal/metrics"
)

// Action is a controller operation triggered by a key.
type Action int

const (
	TogglePlay Action = iota + 1
	PrevCue
	NextCue
	ToggleStart
	ToggleEnd
	SeekBackLong
	SeekForwardLong
	SeekBackShort
	SeekForwardShort
	VolumeUp
	VolumeDown
	TogglePass
	RemoveNextMark
	SpeedDown
	SpeedUp
)

var actionNames = map[Action]string{
	TogglePlay:       "toggle-play",
	PrevCue:          "prev-cue",
	NextCue:          "next-cue",
	ToggleStart:      "toggle-start",
	ToggleEnd:        "toggle-end",
	SeekBackLong:     "seek-back-long",
	SeekForwardLong:  "seek-forward-long",
	SeekBackShort:    "seek-back-short",
	SeekForwardShort: "seek-forward-short",
	VolumeUp:         "volume-up",
	VolumeDown:       "volume-down",
	TogglePass:       "toggle-pass",
	RemoveNextMark:   "remove-next-mark",
	SpeedDown:        "speed-down",
	SpeedUp:          "speed-up",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

func ParseAction(s string) (Action, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "_", "-")
	for a, n := range actionNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Actions lists every action in declaration order.
func Actions() []Action {
	out := make([]Action, 0, len(actionNames))
	for a := range actionNames {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Bindings maps keys to actions.
type Bindings map[Key]Action

// DefaultBindings returns the canonical key map.
func DefaultBindings() Bindings {
	return Bindings{
		Space:        TogglePlay,
		KeyK:         TogglePlay,
		KeyJ:         PrevCue,
		KeyL:         NextCue,
		KeyW:         ToggleStart,
		KeyE:         ToggleEnd,
		ArrowLeft:    SeekBackLong,
		ArrowRight:   SeekForwardLong,
		KeyU:         SeekBackShort,
		KeyO:         SeekForwardShort,
		ArrowUp:      VolumeUp,
		ArrowDown:    VolumeDown,
		KeyP:         TogglePass,
		KeyR:         RemoveNextMark,
		BracketLeft:  SpeedDown,
		BracketRight: SpeedUp,
	}
}

// Override rebinds actions from a name → keys map. Keys previously bound to
// an overridden action are released; a key given to a new action moves.
func (b Bindings) Override(overrides map[string][]string) error {
	for name, keys := range overrides {
		action, err := ParseAction(name)
		if err != nil {
			return err
		}
		parsed := make([]Key, 0, len(keys))
		for _, k := range keys {
			key, err := ParseKey(k)
			if err != nil {
				return fmt.Errorf("binding for %s: %w", action, err)
			}
			parsed = append(parsed, key)
		}
		for k, a := range b {
			if a == action {
				delete(b, k)
			}
		}
		for _, k := range parsed {
			b[k] = action
		}
	}
	return nil
}

// KeysFor returns the keys bound to action, sorted.
func (b Bindings) KeysFor(action Action) []Key {
	var keys []Key
	for k, a := range b {
		if a == action {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Target carries out actions.
type Target interface {
	TogglePlay() error
	// JumpCue moves to the start of the previous (dir < 0) or next cue.
	JumpCue(dir int) error
	ToggleStartMark() error
	ToggleEndMark() error
	// Skip seeks by a signed number of seconds.
	Skip(seconds float64) error
	StepVolume(dir int) error
	TogglePass() error
	RemoveNextMark() error
	StepSpeed(dir int) error
}

// Options configure skip distances in seconds.
type Options struct {
	LongSkip  float64
	ShortSkip float64
}

func DefaultOptions() Options {
	return Options{LongSkip: 10, ShortSkip: 0.5}
}

// Router dispatches keys to a Target. Keys pass through untouched while a
// text-entry field has focus.
type Router struct {
	bindings  Bindings
	target    Target
	opts      Options
	logger    *logging.Logger
	textFocus bool
}

func NewRouter(bindings Bindings, target Target, opts Options, logger *logging.Logger) *Router {
	if bindings == nil {
		bindings = DefaultBindings()
	}
	if opts.LongSkip <= 0 {
		opts.LongSkip = DefaultOptions().LongSkip
	}
	if opts.ShortSkip <= 0 {
		opts.ShortSkip = DefaultOptions().ShortSkip
	}
	return &Router{
		bindings: bindings,
		target:   target,
		opts:     opts,
		logger:   logging.OrNop(logger).Named("command"),
	}
}

// SetTextFocus gates dispatch while a text-entry element is focused.
func (r *Router) SetTextFocus(focused bool) { r.textFocus = focused }

func (r *Router) TextFocus() bool { return r.textFocus }

// Lookup returns the action bound to key.
func (r *Router) Lookup(key Key) (Action, bool) {
	a, ok := r.bindings[key]
	return a, ok
}

// Dispatch performs the action bound to key. It reports whether the key was
// consumed; unbound keys and keys typed into a focused text field are not.
func (r *Router) Dispatch(key Key) bool {
	if r.textFocus || r.target == nil {
		return false
	}
	action, ok := r.bindings[key]
	if !ok {
		return false
	}

	metrics.CommandsTotal.WithLabelValues(action.String()).Inc()
	if err := r.perform(action); err != nil {
		r.logger.Warnw("Command failed",
			"action", action.String(),
			"key", string(key),
			"error", err,
		)
	}
	return true
}

func (r *Router) perform(action Action) error {
	t := r.target
	switch action {
	case TogglePlay:
		return t.TogglePlay()
	case PrevCue:
		return t.JumpCue(-1)
	case NextCue:
		return t.JumpCue(1)
	case ToggleStart:
		return t.ToggleStartMark()
	case ToggleEnd:
		return t.ToggleEndMark()
	case SeekBackLong:
		return t.Skip(-r.opts.LongSkip)
	case SeekForwardLong:
		return t.Skip(r.opts.LongSkip)
	case SeekBackShort:
		return t.Skip(-r.opts.ShortSkip)
	case SeekForwardShort:
		return t.Skip(r.opts.ShortSkip)
	case VolumeUp:
		return t.StepVolume(1)
	case VolumeDown:
		return t.StepVolume(-1)
	case TogglePass:
		return t.TogglePass()
	case RemoveNextMark:
		return t.RemoveNextMark()
	case SpeedDown:
		return t.StepSpeed(-1)
	case SpeedUp:
		return t.StepSpeed(1)
	default:
		return fmt.Errorf("unhandled action %s", action)
	}
}
