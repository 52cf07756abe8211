// Package subtitle reads and writes the subtitle files that supply cues.
package subtitle

import (
	"fmt"
	"strings"
	"time"
)

// single timed line of a subtitle track
type Entry struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// Bounds returns the entry interval in seconds.
func (e Entry) Bounds() (start, end float64) {
	return e.StartTime.Seconds(), e.EndTime.Seconds()
}

// complete subtitle track
type Subtitle struct {
	Entries  []Entry
	Language string
	Format   string
}

// Append adds an entry spanning [start, end) seconds, numbered after the
// existing entries.
func (s *Subtitle) Append(start, end float64, text string) {
	s.Entries = append(s.Entries, Entry{
		Index:     len(s.Entries) + 1,
		StartTime: seconds(start),
		EndTime:   seconds(end),
		Text:      text,
	})
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}

type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

// ParseFormat accepts the writable formats, srt and vtt.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatSRT, FormatVTT:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q: use srt or vtt", s)
	}
}

type Writer interface {
	Write(subtitle *Subtitle, path string) error
}
