// Package testsupport holds fakes shared by package tests.
package testsupport

import (
	"fmt"
	"sync"

	"github.com/mgpai22/shadowplay/internal/player"
)

var (
	_ player.Playback  = (*FakePlayer)(nil)
	_ player.Amplifier = (*FakePlayer)(nil)
)

// FakePlayer records every call made against it.
type FakePlayer struct {
	mu sync.Mutex

	position      float64
	duration      float64
	paused        bool
	rate          float64
	volume        float64
	muted         bool
	amplification float64
	calls         []string
	seeks         []float64

	// PlayErrors are returned by successive Play calls before succeeding.
	PlayErrors []error
}

func NewFakePlayer(duration float64) *FakePlayer {
	return &FakePlayer{duration: duration, paused: true, rate: 1, volume: 1, amplification: 1}
}

func (f *FakePlayer) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *FakePlayer) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

// SetPosition moves the playhead without recording a call, as playback would.
func (f *FakePlayer) SetPosition(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = t
}

func (f *FakePlayer) Seek(t float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = t
	f.seeks = append(f.seeks, t)
	f.record("seek %.3f", t)
	return nil
}

func (f *FakePlayer) Duration() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *FakePlayer) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *FakePlayer) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.PlayErrors) > 0 {
		err := f.PlayErrors[0]
		f.PlayErrors = f.PlayErrors[1:]
		f.record("play failed")
		return err
	}
	f.paused = false
	f.record("play")
	return nil
}

func (f *FakePlayer) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	f.record("pause")
	return nil
}

func (f *FakePlayer) PlaybackRate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}

func (f *FakePlayer) SetPlaybackRate(rate float64) error {
	if !player.ValidRate(rate) {
		return player.ErrInvalidRate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = rate
	f.record("rate %.2f", rate)
	return nil
}

func (f *FakePlayer) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *FakePlayer) SetVolume(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
	f.record("volume %.2f", v)
	return nil
}

func (f *FakePlayer) SetMuted(muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = muted
	f.record("muted %t", muted)
	return nil
}

func (f *FakePlayer) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *FakePlayer) Amplify(multiplier float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.amplification = multiplier
	f.record("amplify %.2f", multiplier)
	return nil
}

func (f *FakePlayer) Amplification() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.amplification
}

// Calls returns the recorded calls in order.
func (f *FakePlayer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Seeks returns every Seek target in order.
func (f *FakePlayer) Seeks() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.seeks...)
}

func (f *FakePlayer) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.seeks = nil
}
