package subtitle

import (
	"fmt"
	"path/filepath"
	"strings"
)

// parsed subtitle file, read-only
type File interface {
	Format() Format
	Subtitle() *Subtitle
}

func Open(path string) (File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".srt":
		return parseSRTFile(path)
	case ".vtt":
		return parseVTTFile(path)
	case ".ass", ".ssa":
		return parseASSFile(path)
	default:
		return nil, fmt.Errorf("unsupported subtitle format: %s", ext)
	}
}

// reports whether the path has a subtitle extension Open understands
func IsSubtitleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt", ".vtt", ".ass", ".ssa":
		return true
	default:
		return false
	}
}
