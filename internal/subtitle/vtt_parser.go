package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// hours are optional in WebVTT; cue settings may follow the end time
var vttTimingRegex = regexp.MustCompile(
	`(?:(\d+):)?(\d{2}):(\d{2})\.(\d{1,3})\s*-->\s*(?:(\d+):)?(\d{2}):(\d{2})\.(\d{1,3})`,
)

type VTTFile struct {
	entries []Entry
}

func parseVTTFile(path string) (*VTTFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open VTT file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var entries []Entry
	scanner := bufio.NewScanner(file)

	var currentEntry *Entry
	var textLines []string
	lineNum := 0
	headerParsed := false
	entryIndex := 0

	flush := func() {
		if currentEntry != nil && len(textLines) > 0 {
			currentEntry.Text = strings.Join(textLines, "\n")
			entries = append(entries, *currentEntry)
		}
		currentEntry = nil
		textLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		trimmed := strings.TrimSpace(line)

		if !headerParsed && strings.HasPrefix(trimmed, "WEBVTT") {
			headerParsed = true
			continue
		}

		if currentEntry == nil &&
			(strings.HasPrefix(trimmed, "NOTE") ||
				strings.HasPrefix(trimmed, "STYLE") ||
				strings.HasPrefix(trimmed, "REGION")) {
			for scanner.Scan() {
				lineNum++
				if strings.TrimSpace(scanner.Text()) == "" {
					break
				}
			}
			continue
		}

		if trimmed == "" {
			flush()
			continue
		}

		matches := vttTimingRegex.FindStringSubmatch(line)
		if len(matches) == 9 {
			flush()

			startTime, err := parseTimestamp(
				matches[1], matches[2], matches[3], matches[4],
			)
			if err != nil {
				return nil, fmt.Errorf(
					"invalid start timestamp at line %d: %w",
					lineNum,
					err,
				)
			}
			endTime, err := parseTimestamp(
				matches[5], matches[6], matches[7], matches[8],
			)
			if err != nil {
				return nil, fmt.Errorf(
					"invalid end timestamp at line %d: %w",
					lineNum,
					err,
				)
			}

			entryIndex++
			currentEntry = &Entry{
				Index:     entryIndex,
				StartTime: startTime,
				EndTime:   endTime,
			}
			continue
		}

		if currentEntry != nil {
			textLines = append(textLines, line)
		}
	}

	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading VTT file: %w", err)
	}

	return &VTTFile{entries: entries}, nil
}

func (f *VTTFile) Format() Format {
	return FormatVTT
}

func (f *VTTFile) Subtitle() *Subtitle {
	return &Subtitle{
		Entries: f.entries,
		Format:  string(FormatVTT),
	}
}
