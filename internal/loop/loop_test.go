package loop

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/mgpai22/shadowplay/internal/clock"
	"github.com/mgpai22/shadowplay/internal/marks"
	"github.com/mgpai22/shadowplay/internal/passmode"
	"github.com/mgpai22/shadowplay/internal/testsupport"
)

type harness struct {
	ctrl   *Controller
	clock  *clock.Manual
	player *testsupport.FakePlayer
	gate   *passmode.Gate
	marks  *marks.Store
}

func newHarness(t *testing.T, starts, ends []float64) *harness {
	t.Helper()
	ctx := context.Background()
	c := clock.NewManual(time.Unix(1000, 0))
	p := testsupport.NewFakePlayer(120)
	g := passmode.New(c, 2*time.Second, nil)
	m := marks.NewStore(nil, nil)
	m.Load(ctx, marks.Key{Video: "a.mp4"})
	for _, s := range starts {
		m.ToggleStart(ctx, s)
	}
	for _, e := range ends {
		m.ToggleEnd(ctx, e)
	}
	return &harness{
		ctrl:   New(DefaultConfig(), c, p, m, g, nil),
		clock:  c,
		player: p,
		gate:   g,
		marks:  m,
	}
}

// play feeds position samples as if playback moved through them.
func (h *harness) play(positions ...float64) {
	for _, pos := range positions {
		h.player.SetPosition(pos)
		h.ctrl.OnTimeUpdate(pos)
	}
}

func TestEndMarkPausesRewindsAndResumes(t *testing.T) {
	h := newHarness(t, []float64{10, 40}, []float64{35})

	h.play(34.8, 35.1)
	if h.ctrl.State() != AutoPaused {
		t.Fatalf("expected auto-paused, got %v", h.ctrl.State())
	}
	if got := h.player.Calls(); !reflect.DeepEqual(got, []string{"pause", "seek 10.050"}) {
		t.Errorf("unexpected calls %v", got)
	}
	cycle, ok := h.ctrl.Pending()
	if !ok || cycle.End != 35 || cycle.Target != 10.05 {
		t.Errorf("unexpected cycle %+v", cycle)
	}

	h.clock.Advance(999 * time.Millisecond)
	if !h.player.Paused() {
		t.Fatal("resumed before the delay elapsed")
	}
	h.clock.Advance(time.Millisecond)
	if h.player.Paused() {
		t.Fatal("expected playback to resume after the delay")
	}
	if h.ctrl.State() != Idle {
		t.Errorf("expected idle after resume, got %v", h.ctrl.State())
	}
}

func TestLoopRepeatsOnNextPass(t *testing.T) {
	h := newHarness(t, []float64{10}, []float64{35})
	h.play(35.1)
	h.clock.Advance(time.Second)
	h.play(10.1, 20, 34.9, 35.0)

	if got := h.player.Seeks(); !reflect.DeepEqual(got, []float64{10.05, 10.05}) {
		t.Errorf("expected two rewinds, got %v", got)
	}
}

func TestLingeringNearEndDoesNotRetrigger(t *testing.T) {
	h := newHarness(t, []float64{10}, []float64{35})
	h.play(35.1)
	h.ctrl.Cancel()
	h.play(35.2, 35.4)
	if got := h.player.Seeks(); len(got) != 1 {
		t.Errorf("expected a single rewind while lingering, got %v", got)
	}
}

func TestUserSeekAfterGestureCancelsResume(t *testing.T) {
	h := newHarness(t, []float64{10, 40}, []float64{35})
	h.play(35.1)

	h.clock.Advance(400 * time.Millisecond)
	h.ctrl.OnGesture()
	h.player.SetPosition(22)
	h.ctrl.OnSeeking()
	h.ctrl.OnSeeked()

	if h.ctrl.State() != Idle {
		t.Fatalf("expected idle after user seek, got %v", h.ctrl.State())
	}
	h.clock.Advance(5 * time.Second)
	if !h.player.Paused() {
		t.Error("cancelled resume still started playback")
	}
	if got := h.player.Seeks(); !reflect.DeepEqual(got, []float64{10.05}) {
		t.Errorf("rewind recurred: %v", got)
	}
	if h.player.CurrentTime() != 22 {
		t.Errorf("expected position to stay at user's seek, got %v", h.player.CurrentTime())
	}
}

func TestSelfInflictedEventsDoNotCancel(t *testing.T) {
	h := newHarness(t, []float64{10}, []float64{35})
	h.ctrl.OnGesture()
	h.play(35.1)

	h.clock.Advance(100 * time.Millisecond)
	h.ctrl.OnGesture()
	h.ctrl.OnSeeking()
	h.ctrl.OnSeeked()
	if h.ctrl.State() != AutoPaused {
		t.Fatal("events inside the self-seek window cancelled the cycle")
	}
	h.clock.Advance(900 * time.Millisecond)
	if h.player.Paused() {
		t.Error("expected resume")
	}
}

func TestEventsWithoutRecentGestureDoNotCancel(t *testing.T) {
	tests := []struct {
		name    string
		gesture func(h *harness)
	}{
		{"no gesture", func(h *harness) {}},
		{"gesture before the cycle", func(h *harness) {
			h.ctrl.OnGesture()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, []float64{10}, []float64{35})
			h.clock.Advance(100 * time.Millisecond)
			tt.gesture(h)
			h.clock.Advance(50 * time.Millisecond)
			h.play(35.1)
			h.clock.Advance(500 * time.Millisecond)
			h.ctrl.OnPlay()
			if h.ctrl.State() != AutoPaused {
				t.Errorf("expected cycle to survive, got %v", h.ctrl.State())
			}
		})
	}
}

func TestStaleGestureDoesNotCancel(t *testing.T) {
	h := newHarness(t, []float64{10}, []float64{35})
	h.play(35.1)
	h.clock.Advance(350 * time.Millisecond)
	h.ctrl.OnGesture()
	h.clock.Advance(1100 * time.Millisecond)
	// the resume already fired at 1s; a later play is ordinary playback
	h.ctrl.OnPlay()
	if h.ctrl.State() != Idle || h.player.Paused() {
		t.Error("expected normal resume")
	}
}

func TestStickyPassModeNeverLoops(t *testing.T) {
	h := newHarness(t, []float64{10}, []float64{35, 50, 65})
	h.gate.Toggle()

	h.play(34.9, 35.1, 40, 49.9, 50.2, 60, 65.0, 65.3, 70)
	if got := h.player.Calls(); len(got) != 0 {
		t.Errorf("expected no pause or seek in sticky pass mode, got %v", got)
	}
}

func TestPulseSwallowsCurrentWindow(t *testing.T) {
	h := newHarness(t, []float64{10}, []float64{35})
	h.gate.Pulse()
	h.play(35.1)
	h.clock.Advance(2 * time.Second)
	if h.gate.Suppressed() {
		t.Fatal("pulse should have expired")
	}
	h.play(35.3)
	if got := h.player.Calls(); len(got) != 0 {
		t.Errorf("expected the suppressed crossing to be swallowed, got %v", got)
	}

	h.play(36, 20, 35.05)
	if got := h.player.Seeks(); !reflect.DeepEqual(got, []float64{10.05}) {
		t.Errorf("expected a loop on the next crossing, got %v", got)
	}
}

func TestEndWithoutPrecedingStartIsIgnored(t *testing.T) {
	h := newHarness(t, []float64{40}, []float64{35})
	h.play(35.1)
	if h.ctrl.State() != Idle || len(h.player.Calls()) != 0 {
		t.Error("an End mark without a Start before it must not loop")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	h := newHarness(t, []float64{10}, []float64{35})
	if h.ctrl.Cancel() {
		t.Error("cancel while idle should report false")
	}
	h.play(35.1)
	if !h.ctrl.Cancel() {
		t.Error("cancel while auto-paused should report true")
	}
	if h.ctrl.Cancel() {
		t.Error("second cancel should report false")
	}
	if h.clock.Pending() != 0 {
		t.Errorf("expected resume timer to be stopped, got %d pending", h.clock.Pending())
	}
	if h.ctrl.State() != Idle {
		t.Error("cancel must leave the controller idle")
	}
}

func TestStaleResumeIsNoop(t *testing.T) {
	h := newHarness(t, []float64{10}, []float64{35})
	h.play(35.1)
	cycle, _ := h.ctrl.Pending()
	h.ctrl.Cancel()
	h.player.ResetCalls()

	h.ctrl.resume(cycle.Token)
	if len(h.player.Calls()) != 0 {
		t.Errorf("stale resume acted: %v", h.player.Calls())
	}
}

func TestResetForgetsHandledEnd(t *testing.T) {
	h := newHarness(t, []float64{10}, []float64{35})
	h.play(35.1)
	h.ctrl.Reset()
	h.play(35.2)
	if got := h.player.Seeks(); len(got) != 2 {
		t.Errorf("expected detection to re-arm after reset, got %v", got)
	}
}

func TestNilPlayerIsNoop(t *testing.T) {
	m := marks.NewStore(nil, nil)
	c := New(DefaultConfig(), clock.NewManual(time.Unix(0, 0)), nil, m, nil, nil)
	c.OnTimeUpdate(1)
	c.OnPlay()
	c.OnGesture()
	c.Cancel()
	if c.State() != Idle {
		t.Error("expected idle")
	}
}

func TestOnChangeNotifies(t *testing.T) {
	h := newHarness(t, []float64{10}, []float64{35})
	var states []State
	h.ctrl.OnChange(func(s State) { states = append(states, s) })
	h.play(35.1)
	h.clock.Advance(time.Second)
	if !reflect.DeepEqual(states, []State{AutoPaused, Idle}) {
		t.Errorf("unexpected transitions %v", states)
	}
}
