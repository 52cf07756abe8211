package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/time/rate"

	"github.com/mgpai22/shadowplay/internal/loop"
	"github.com/mgpai22/shadowplay/internal/passmode"
	"github.com/mgpai22/shadowplay/internal/session"
	"github.com/mgpai22/shadowplay/internal/timecode"
)

// DefaultRefresh caps status redraws per second.
const DefaultRefresh = 15

// StatusLine renders snap as one line no wider than width. A non-positive
// width disables truncation.
func StatusLine(snap session.Snapshot, width int) string {
	icon := "▶"
	if snap.Paused {
		icon = "⏸"
	}

	parts := []string{
		fmt.Sprintf("%s %s / %s", icon, timecode.Format(snap.Position), timecode.Format(snap.Duration)),
		fmt.Sprintf("%gx", snap.Rate),
		fmt.Sprintf("vol %.0f%%", snap.Volume.Percent()),
		fmt.Sprintf("S%d E%d", len(snap.Starts), len(snap.Ends)),
	}
	if snap.Pass != passmode.Off {
		parts = append(parts, text.FgYellow.Sprint("pass "+snap.Pass.String()))
	}
	if snap.Loop == loop.AutoPaused {
		parts = append(parts, text.FgCyan.Sprint("loop → "+timecode.Format(snap.LoopTarget)))
	}
	if snap.Notice != "" {
		parts = append(parts, snap.Notice)
	}
	if cue := currentCue(snap); cue != "" {
		parts = append(parts, text.Bold.Sprint(cue))
	}

	line := strings.Join(parts, "  ")
	if width > 0 {
		line = text.Trim(line, width)
	}
	return line
}

func currentCue(snap session.Snapshot) string {
	w := snap.Preview
	if w.Current < 0 || w.Current >= len(w.Cues) {
		return ""
	}
	t := w.Cues[w.Current].Text
	return strings.ReplaceAll(t, "\n", " / ")
}

// Renderer redraws the status line in place, dropping frames beyond the
// limiter's rate.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	limiter *rate.Limiter
	width   func() int
	prompt  string
	last    session.Snapshot
}

// NewRenderer draws to out at most perSecond times a second. width reports
// the current terminal width and may be nil.
func NewRenderer(out io.Writer, perSecond float64, width func() int) *Renderer {
	if perSecond <= 0 {
		perSecond = DefaultRefresh
	}
	if width == nil {
		width = func() int { return 0 }
	}
	return &Renderer{
		out:     out,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		width:   width,
	}
}

// Draw renders snap unless the limiter refuses. It reports whether it drew.
func (r *Renderer) Draw(snap session.Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = snap
	if !r.limiter.Allow() {
		return false
	}
	r.draw()
	return true
}

// Flush redraws the last snapshot regardless of rate.
func (r *Renderer) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw()
}

// SetPrompt shows text in place of the status line; empty restores it.
func (r *Renderer) SetPrompt(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompt = text
	r.draw()
}

// Clear erases the status line.
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, "\r\x1b[K")
}

// callers hold mu
func (r *Renderer) draw() {
	line := r.prompt
	if line == "" {
		line = StatusLine(r.last, r.width())
	}
	fmt.Fprint(r.out, "\r\x1b[K"+line)
}
