// Package cueindex is a read-only view over an ordered subtitle cue track.
//
// Cues are half-open intervals [Start, End) in seconds. Ingestion normalizes
// every source format into the single Cue shape; nothing past this boundary
// looks at format-specific fields.
package cueindex

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/mgpai22/shadowplay/internal/subtitle"
)

// Cue is one time-bounded subtitle unit.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Contains reports whether t falls inside [Start, End).
func (c Cue) Contains(t float64) bool {
	return c.Start <= t && t < c.End
}

// Direction selects the neighbour returned by Adjacent.
type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

var markupRegex = regexp.MustCompile(`<[^>]*>|\{\\[^}]*\}`)

// Index answers containment and adjacency queries over cues sorted by start.
// A nil *Index is valid and behaves as an empty track.
type Index struct {
	cues []Cue
}

// New builds an index from cues, dropping empty intervals and sorting by start.
func New(cues []Cue) *Index {
	out := make([]Cue, 0, len(cues))
	for _, c := range cues {
		if c.End <= c.Start {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := range out {
		out[i].Index = i
	}
	return &Index{cues: out}
}

// FromSubtitle converts a parsed subtitle file into an index.
func FromSubtitle(sub *subtitle.Subtitle) *Index {
	if sub == nil {
		return New(nil)
	}
	cues := make([]Cue, 0, len(sub.Entries))
	for _, e := range sub.Entries {
		start, end := e.Bounds()
		cues = append(cues, Cue{Start: start, End: end, Text: NormalizeText(e.Text)})
	}
	return New(cues)
}

// NormalizeText strips inline markup, NFC-normalizes and trims every line.
func NormalizeText(text string) string {
	text = markupRegex.ReplaceAllString(text, "")
	text = norm.NFC.String(text)
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.cues)
}

// Cues returns a copy of the track.
func (x *Index) Cues() []Cue {
	if x == nil {
		return nil
	}
	return append([]Cue(nil), x.cues...)
}

// Cue returns the cue at position i.
func (x *Index) Cue(i int) (Cue, bool) {
	if x == nil || i < 0 || i >= len(x.cues) {
		return Cue{}, false
	}
	return x.cues[i], true
}

// CueAt returns the cue whose interval contains t.
func (x *Index) CueAt(t float64) (Cue, bool) {
	i := x.indexAt(t)
	if i < 0 {
		return Cue{}, false
	}
	return x.cues[i], true
}

func (x *Index) indexAt(t float64) int {
	if x == nil {
		return -1
	}
	// first cue starting after t; the candidate is the one before it
	i := sort.Search(len(x.cues), func(i int) bool { return x.cues[i].Start > t })
	if i == 0 {
		return -1
	}
	if x.cues[i-1].Contains(t) {
		return i - 1
	}
	return -1
}

// IndexOf returns the position of cue in the track, or -1.
func (x *Index) IndexOf(cue Cue) int {
	if x == nil {
		return -1
	}
	i := sort.Search(len(x.cues), func(i int) bool { return x.cues[i].Start >= cue.Start })
	for ; i < len(x.cues) && x.cues[i].Start == cue.Start; i++ {
		if x.cues[i].End == cue.End && x.cues[i].Text == cue.Text {
			return i
		}
	}
	return -1
}

// Neighbors returns up to before cues preceding index, the cue itself, and up
// to after cues following it.
func (x *Index) Neighbors(index, before, after int) []Cue {
	if x == nil || index < 0 || index >= len(x.cues) {
		return nil
	}
	lo := max(index-before, 0)
	hi := min(index+after+1, len(x.cues))
	return append([]Cue(nil), x.cues[lo:hi]...)
}

// Window is the subtitle preview around a position.
type Window struct {
	Cues []Cue
	// Current is the offset of the containing cue within Cues, -1 when empty.
	Current int
}

// Preview returns 2 cues before, the containing cue, and 2 after. The window
// is empty when no cue contains t.
func (x *Index) Preview(t float64) Window {
	i := x.indexAt(t)
	if i < 0 {
		return Window{Current: -1}
	}
	cues := x.Neighbors(i, 2, 2)
	return Window{Cues: cues, Current: i - max(i-2, 0)}
}

// Adjacent returns the previous or next cue relative to the cue containing t,
// or relative to t itself when it falls in a gap.
func (x *Index) Adjacent(t float64, dir Direction) (Cue, bool) {
	if x.Len() == 0 {
		return Cue{}, false
	}
	if i := x.indexAt(t); i >= 0 {
		return x.Cue(i + int(dir))
	}

	switch dir {
	case Previous:
		i := sort.Search(len(x.cues), func(i int) bool { return x.cues[i].End > t })
		return x.Cue(i - 1)
	default:
		i := sort.Search(len(x.cues), func(i int) bool { return x.cues[i].Start > t })
		return x.Cue(i)
	}
}

// Overlapping returns the cues intersecting [start, end).
func (x *Index) Overlapping(start, end float64) []Cue {
	if x == nil || end <= start {
		return nil
	}
	var out []Cue
	for _, c := range x.cues {
		if c.Start >= end {
			break
		}
		if c.End > start {
			out = append(out, c)
		}
	}
	return out
}
