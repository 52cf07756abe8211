package session

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/mgpai22/shadowplay/internal/clock"
	"github.com/mgpai22/shadowplay/internal/command"
	"github.com/mgpai22/shadowplay/internal/cueindex"
	"github.com/mgpai22/shadowplay/internal/loop"
	"github.com/mgpai22/shadowplay/internal/marks"
	"github.com/mgpai22/shadowplay/internal/passmode"
	"github.com/mgpai22/shadowplay/internal/player"
	"github.com/mgpai22/shadowplay/internal/storage"
	"github.com/mgpai22/shadowplay/internal/testsupport"
)

func sampleCues() *cueindex.Index {
	return cueindex.New([]cueindex.Cue{
		{Start: 0, End: 2, Text: "a"},
		{Start: 5, End: 8, Text: "b"},
		{Start: 10, End: 12, Text: "c"},
		{Start: 20, End: 22, Text: "d"},
	})
}

type fixture struct {
	s      *Session
	player *testsupport.FakePlayer
	clock  *clock.Manual
	kv     *storage.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := testsupport.NewFakePlayer(120)
	c := clock.NewManual(time.Unix(1000, 0))
	kv := storage.NewMemory()
	s := New(p, p, kv, c, DefaultOptions(), nil)
	s.Load(context.Background(), "clip.mp4", "clip.en.srt", sampleCues())
	t.Cleanup(s.Close)
	return &fixture{s: s, player: p, clock: c, kv: kv}
}

func (f *fixture) at(pos float64) {
	f.player.SetPosition(pos)
	f.s.HandleEvent(player.Event{Kind: player.TimeUpdate, Position: pos})
}

func TestMarkKeysTogglePersistedMarks(t *testing.T) {
	f := newFixture(t)

	f.player.SetPosition(10)
	if !f.s.HandleKey(command.KeyW) {
		t.Fatal("expected W to be handled")
	}
	f.player.SetPosition(35)
	f.s.HandleKey(command.KeyE)

	if got := f.s.Marks().Starts(); !reflect.DeepEqual(got, []float64{10}) {
		t.Errorf("expected starts [10], got %v", got)
	}
	if got := f.s.Marks().Ends(); !reflect.DeepEqual(got, []float64{35}) {
		t.Errorf("expected ends [35], got %v", got)
	}

	raw, ok, err := f.kv.Get(context.Background(), marks.Key{Video: "clip.mp4", Subtitle: "clip.en.srt"}.String())
	if err != nil || !ok {
		t.Fatalf("expected persisted record, got ok=%v err=%v", ok, err)
	}
	rec, err := marks.DecodeRecord(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Starts) != 1 || len(rec.Ends) != 1 {
		t.Errorf("unexpected persisted record %+v", rec)
	}

	f.player.SetPosition(10.0002)
	f.s.HandleKey(command.KeyW)
	if n := len(f.s.Marks().Starts()); n != 0 {
		t.Errorf("expected toggle within epsilon to remove the start, got %d starts", n)
	}
}

func TestLoopThroughEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.Marks().ToggleStart(ctx, 10)
	f.s.Marks().ToggleEnd(ctx, 35)
	f.player.Play()
	f.player.ResetCalls()

	f.at(34.8)
	f.at(35.1)
	if got := f.s.Snapshot().Loop; got != loop.AutoPaused {
		t.Fatalf("expected auto-paused, got %v", got)
	}
	if !f.player.Paused() {
		t.Error("expected player to be paused")
	}
	if got := f.s.Snapshot().LoopTarget; math.Abs(got-10.05) > 1e-9 {
		t.Errorf("expected loop target 10.05, got %v", got)
	}

	f.clock.Advance(time.Second)
	if f.player.Paused() {
		t.Error("expected playback to resume")
	}
	want := []string{"pause", "seek 10.050", "play"}
	if got := f.player.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected calls %v, got %v", want, got)
	}
}

func TestSkipDuringAutoPauseCancelsResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.Marks().ToggleStart(ctx, 10)
	f.s.Marks().ToggleEnd(ctx, 35)
	f.player.Play()

	f.at(35.1)
	f.clock.Advance(200 * time.Millisecond)
	f.s.HandleKey(command.ArrowRight)

	if got := f.s.Snapshot().Loop; got != loop.Idle {
		t.Fatalf("expected idle after skip, got %v", got)
	}
	if got := f.player.CurrentTime(); math.Abs(got-20.05) > 1e-9 {
		t.Errorf("expected skip to 20.05, got %v", got)
	}
	f.player.ResetCalls()
	f.clock.Advance(2 * time.Second)
	if len(f.player.Calls()) != 0 {
		t.Errorf("expected no resume after cancel, got %v", f.player.Calls())
	}
	if !f.player.Paused() {
		t.Error("expected player to stay paused")
	}
}

func TestSkipClampsToMediaBounds(t *testing.T) {
	f := newFixture(t)

	f.player.SetPosition(5)
	f.s.HandleKey(command.ArrowLeft)
	if got := f.player.CurrentTime(); got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}

	f.player.SetPosition(115)
	f.s.HandleKey(command.ArrowRight)
	if got := f.player.CurrentTime(); got != 120 {
		t.Errorf("expected clamp to duration, got %v", got)
	}

	f.player.SetPosition(3)
	f.s.HandleKey(command.KeyO)
	if got := f.player.CurrentTime(); got != 3.5 {
		t.Errorf("expected short skip to 3.5, got %v", got)
	}
}

func TestJumpCuePulsesPassMode(t *testing.T) {
	f := newFixture(t)

	f.player.SetPosition(6)
	f.s.HandleKey(command.KeyL)
	if got := f.player.CurrentTime(); got != 10 {
		t.Errorf("expected jump to next cue at 10, got %v", got)
	}
	if got := f.s.Snapshot().Pass; got != passmode.Pulsing {
		t.Errorf("expected pulsing pass mode, got %v", got)
	}

	f.s.HandleKey(command.KeyJ)
	if got := f.player.CurrentTime(); got != 5 {
		t.Errorf("expected jump to previous cue at 5, got %v", got)
	}

	f.clock.Advance(2 * time.Second)
	if got := f.s.Snapshot().Pass; got != passmode.Off {
		t.Errorf("expected pass mode to expire, got %v", got)
	}
}

func TestJumpCueWithoutCuesDoesNothing(t *testing.T) {
	f := newFixture(t)
	f.s.ReloadCues(nil)
	f.player.SetPosition(6)
	f.s.HandleKey(command.KeyL)
	if len(f.player.Seeks()) != 0 {
		t.Errorf("expected no seek, got %v", f.player.Seeks())
	}
}

func TestPassModeSuppressesLoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.Marks().ToggleStart(ctx, 10)
	f.s.Marks().ToggleEnd(ctx, 35)
	f.player.Play()

	f.s.HandleKey(command.KeyP)
	if got := f.s.Snapshot().Pass; got != passmode.Sticky {
		t.Fatalf("expected sticky pass mode, got %v", got)
	}
	f.at(35.1)
	if got := f.s.Snapshot().Loop; got != loop.Idle {
		t.Errorf("expected no loop in pass mode, got %v", got)
	}
}

func TestTogglePlay(t *testing.T) {
	f := newFixture(t)
	f.s.HandleKey(command.Space)
	if f.player.Paused() {
		t.Error("expected space to start playback")
	}
	f.s.HandleKey(command.KeyK)
	if !f.player.Paused() {
		t.Error("expected k to pause playback")
	}
}

func TestTextFocusPassesKeysThrough(t *testing.T) {
	f := newFixture(t)
	f.s.SetTextFocus(true)
	f.player.SetPosition(10)
	if f.s.HandleKey(command.KeyW) {
		t.Error("expected key to pass through while text field is focused")
	}
	if n := len(f.s.Marks().Starts()); n != 0 {
		t.Errorf("expected no marks, got %d", n)
	}

	f.s.SetTextFocus(false)
	if !f.s.HandleKey(command.KeyW) {
		t.Error("expected key to be handled after focus is released")
	}
}

func TestEditMark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.Marks().ToggleStart(ctx, 10)

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"garbage", "abc", false},
		{"negative", "-00:00:01.000", false},
		{"valid", "00:00:12.500", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.s.EditMark(ctx, marks.Start, 10, tt.input); got != tt.ok {
				t.Errorf("EditMark(%q) = %v, want %v", tt.input, got, tt.ok)
			}
		})
	}
	if got := f.s.Marks().Starts(); !reflect.DeepEqual(got, []float64{12.5}) {
		t.Errorf("expected starts [12.5], got %v", got)
	}
}

func TestRemoveNextMark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.Marks().ToggleStart(ctx, 30)
	f.s.Marks().ToggleEnd(ctx, 20)
	f.s.Marks().ToggleEnd(ctx, 5)

	f.player.SetPosition(10)
	f.s.HandleKey(command.KeyR)
	if got := f.s.Marks().Ends(); !reflect.DeepEqual(got, []float64{5}) {
		t.Errorf("expected ends [5], got %v", got)
	}
	if got := f.s.Marks().Starts(); !reflect.DeepEqual(got, []float64{30}) {
		t.Errorf("expected starts [30], got %v", got)
	}
}

func TestSpeedAndVolumeKeys(t *testing.T) {
	f := newFixture(t)

	f.s.HandleKey(command.BracketRight)
	if got := f.player.PlaybackRate(); got != 1.5 {
		t.Errorf("expected rate 1.5, got %v", got)
	}
	f.s.HandleKey(command.BracketLeft)
	f.s.HandleKey(command.BracketLeft)
	if got := f.player.PlaybackRate(); got != 0.75 {
		t.Errorf("expected rate 0.75, got %v", got)
	}

	f.s.HandleKey(command.ArrowUp)
	if got := f.player.Amplification(); got != 1.1 {
		t.Errorf("expected amplification 1.1, got %v", got)
	}
	if got := f.s.Snapshot().Volume.Percent(); got != 110 {
		t.Errorf("expected 110%%, got %v", got)
	}
}

func TestAutoplayRetriesMuted(t *testing.T) {
	f := newFixture(t)
	f.player.PlayErrors = []error{errors.New("not allowed")}

	f.s.Autoplay()
	if f.player.Paused() {
		t.Fatal("expected muted retry to start playback")
	}
	if !f.player.Muted() {
		t.Fatal("expected player to be muted")
	}

	f.s.Gesture()
	if f.player.Muted() {
		t.Error("expected first gesture to unmute")
	}
}

func TestAutoplayGivesUp(t *testing.T) {
	f := newFixture(t)
	f.player.PlayErrors = []error{errors.New("no"), errors.New("still no")}

	f.s.Autoplay()
	if !f.player.Paused() {
		t.Error("expected player to stay paused")
	}
	if f.player.Muted() {
		t.Error("expected mute to be undone")
	}
}

func TestLoadSwitchesMarkSetAndCancelsLoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.s.Marks().ToggleStart(ctx, 10)
	f.s.Marks().ToggleEnd(ctx, 35)
	f.player.Play()
	f.at(35.1)

	f.s.Load(ctx, "other.mp4", "", nil)
	if got := f.s.Snapshot().Loop; got != loop.Idle {
		t.Errorf("expected load to cancel loop, got %v", got)
	}
	if n := len(f.s.Marks().Starts()); n != 0 {
		t.Errorf("expected empty marks for new video, got %d", n)
	}
	if got := f.s.Snapshot().Key.String(); got != "marks:other.mp4::none" {
		t.Errorf("unexpected key %q", got)
	}

	f.s.Load(ctx, "clip.mp4", "clip.en.srt", sampleCues())
	if got := f.s.Marks().Starts(); !reflect.DeepEqual(got, []float64{10}) {
		t.Errorf("expected marks to be restored, got %v", got)
	}
}

func TestSubscribeKeepsLatest(t *testing.T) {
	f := newFixture(t)
	ch, unsubscribe := f.s.Subscribe()

	for _, pos := range []float64{1, 2, 3} {
		f.player.SetPosition(pos)
		f.s.HandleKey(command.KeyW)
	}

	snap := <-ch
	if got := snap.Starts; !reflect.DeepEqual(got, []float64{1, 2, 3}) {
		t.Errorf("expected latest snapshot with 3 starts, got %v", got)
	}
	select {
	case extra := <-ch:
		t.Errorf("expected a single buffered snapshot, got another %+v", extra)
	default:
	}

	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed")
	}
	unsubscribe()
}

func TestSnapshotPreview(t *testing.T) {
	f := newFixture(t)
	f.player.SetPosition(11)
	snap := f.s.Snapshot()
	if snap.Preview.Current < 0 || snap.Preview.Cues[snap.Preview.Current].Text != "c" {
		t.Errorf("unexpected preview %+v", snap.Preview)
	}
	if snap.Duration != 120 {
		t.Errorf("expected duration 120, got %v", snap.Duration)
	}
}

func TestNilPlayerIsInert(t *testing.T) {
	s := New(nil, nil, nil, clock.NewManual(time.Unix(0, 0)), DefaultOptions(), nil)
	defer s.Close()
	s.Load(context.Background(), "clip.mp4", "", sampleCues())

	for _, k := range []command.Key{command.Space, command.KeyW, command.KeyL, command.ArrowRight, command.KeyR, command.BracketRight, command.ArrowUp} {
		s.HandleKey(k)
	}
	s.Autoplay()
	if err := s.SetPlaybackRate(2); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
