package cueindex

import (
	"testing"
	"time"

	"github.com/mgpai22/shadowplay/internal/subtitle"
)

func sampleIndex() *Index {
	return New([]Cue{
		{Start: 10, End: 12, Text: "c"},
		{Start: 0, End: 2, Text: "a"},
		{Start: 5, End: 8, Text: "b"},
		{Start: 12, End: 15, Text: "d"},
		{Start: 20, End: 22, Text: "e"},
		{Start: 30, End: 30, Text: "empty interval"},
	})
}

func TestNewSortsAndDropsEmptyIntervals(t *testing.T) {
	x := sampleIndex()
	if x.Len() != 5 {
		t.Fatalf("expected 5 cues, got %d", x.Len())
	}
	want := []string{"a", "b", "c", "d", "e"}
	for i, c := range x.Cues() {
		if c.Text != want[i] {
			t.Errorf("cue %d: expected %q, got %q", i, want[i], c.Text)
		}
		if c.Index != i {
			t.Errorf("cue %d: expected index %d, got %d", i, i, c.Index)
		}
	}
}

func TestCueAt(t *testing.T) {
	x := sampleIndex()
	tests := []struct {
		at   float64
		want string
		ok   bool
	}{
		{0, "a", true},
		{1.999, "a", true},
		{2, "", false},
		{4, "", false},
		{5, "b", true},
		{11.5, "c", true},
		{12, "d", true},
		{21.9, "e", true},
		{22, "", false},
		{-1, "", false},
	}
	for _, tt := range tests {
		got, ok := x.CueAt(tt.at)
		if ok != tt.ok || got.Text != tt.want {
			t.Errorf("CueAt(%v) = (%q, %v), want (%q, %v)", tt.at, got.Text, ok, tt.want, tt.ok)
		}
	}
}

func TestAdjacent(t *testing.T) {
	x := sampleIndex()
	tests := []struct {
		name string
		at   float64
		dir  Direction
		want string
		ok   bool
	}{
		{"next from inside", 6, Next, "c", true},
		{"previous from inside", 6, Previous, "a", true},
		{"previous from first", 1, Previous, "", false},
		{"next from last", 21, Next, "", false},
		{"next from gap", 3, Next, "b", true},
		{"previous from gap", 3, Previous, "a", true},
		{"previous at exact end", 8, Previous, "b", true},
		{"next before everything", -5, Next, "a", true},
		{"previous after everything", 100, Previous, "e", true},
		{"next back-to-back boundary", 12, Next, "e", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := x.Adjacent(tt.at, tt.dir)
			if ok != tt.ok || got.Text != tt.want {
				t.Errorf("Adjacent(%v, %d) = (%q, %v), want (%q, %v)", tt.at, tt.dir, got.Text, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPreviewWindow(t *testing.T) {
	x := sampleIndex()

	w := x.Preview(11)
	if len(w.Cues) != 5 || w.Current != 2 || w.Cues[w.Current].Text != "c" {
		t.Errorf("unexpected middle window: %+v", w)
	}

	w = x.Preview(0.5)
	if len(w.Cues) != 3 || w.Current != 0 {
		t.Errorf("expected clamped window at start, got %+v", w)
	}

	w = x.Preview(21)
	if len(w.Cues) != 3 || w.Current != 2 || w.Cues[2].Text != "e" {
		t.Errorf("expected clamped window at end, got %+v", w)
	}

	w = x.Preview(3)
	if len(w.Cues) != 0 || w.Current != -1 {
		t.Errorf("expected empty window in gap, got %+v", w)
	}
}

func TestIndexOfAndNeighbors(t *testing.T) {
	x := sampleIndex()
	c, _ := x.CueAt(12.5)
	if i := x.IndexOf(c); i != 3 {
		t.Errorf("expected index 3, got %d", i)
	}
	if i := x.IndexOf(Cue{Start: 99, End: 100}); i != -1 {
		t.Errorf("expected -1 for unknown cue, got %d", i)
	}
	if got := x.Neighbors(1, 5, 1); len(got) != 3 {
		t.Errorf("expected 3 neighbours, got %d", len(got))
	}
	if got := x.Neighbors(10, 1, 1); got != nil {
		t.Errorf("expected nil for out of range index, got %v", got)
	}
}

func TestNilIndexIsEmpty(t *testing.T) {
	var x *Index
	if x.Len() != 0 {
		t.Error("nil index should be empty")
	}
	if _, ok := x.CueAt(1); ok {
		t.Error("nil index should not contain cues")
	}
	if _, ok := x.Adjacent(1, Next); ok {
		t.Error("nil index should have no neighbours")
	}
	if w := x.Preview(1); w.Current != -1 {
		t.Error("nil index preview should be empty")
	}
}

func TestOverlapping(t *testing.T) {
	x := sampleIndex()
	got := x.Overlapping(6, 12.5)
	if len(got) != 3 {
		t.Fatalf("expected 3 overlapping cues, got %d", len(got))
	}
	if got[0].Text != "b" || got[2].Text != "d" {
		t.Errorf("unexpected overlap result: %+v", got)
	}
}

func TestFromSubtitleNormalizesText(t *testing.T) {
	sub := &subtitle.Subtitle{Entries: []subtitle.Entry{
		{StartTime: time.Second, EndTime: 2 * time.Second, Text: "  <i>Café</i>  \n\n {\\an8}second line "},
		{StartTime: 3 * time.Second, EndTime: 3 * time.Second, Text: "zero length"},
	}}

	x := FromSubtitle(sub)
	if x.Len() != 1 {
		t.Fatalf("expected 1 cue, got %d", x.Len())
	}
	c, _ := x.Cue(0)
	if c.Text != "Café\nsecond line" {
		t.Errorf("unexpected normalized text %q", c.Text)
	}
	if c.Start != 1 || c.End != 2 {
		t.Errorf("unexpected interval [%v, %v)", c.Start, c.End)
	}
}
