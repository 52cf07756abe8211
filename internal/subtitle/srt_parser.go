package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var srtTimingRegex = regexp.MustCompile(
	`(\d+):(\d{2}):(\d{2})[,.](\d{1,3})\s*-->\s*(\d+):(\d{2}):(\d{2})[,.](\d{1,3})`,
)

type SRTFile struct {
	entries []Entry
}

func parseSRTFile(path string) (*SRTFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SRT file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)

	var currentEntry *Entry
	var textLines []string
	timed := false
	lineNum := 0

	flush := func() {
		if currentEntry != nil && timed && len(textLines) > 0 {
			currentEntry.Text = strings.Join(textLines, "\n")
			entries = append(entries, *currentEntry)
		}
		currentEntry = nil
		textLines = nil
		timed = false
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if currentEntry == nil {
			// the numeric counter is optional in files produced by some tools
			if index, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
				currentEntry = &Entry{Index: index}
				continue
			}
			currentEntry = &Entry{Index: len(entries) + 1}
		}

		if !timed {
			matches := srtTimingRegex.FindStringSubmatch(line)
			if len(matches) == 9 {
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
				currentEntry.StartTime = startTime
				currentEntry.EndTime = endTime
				timed = true
				continue
			}
		}

		if timed {
			textLines = append(textLines, line)
		}
	}

	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SRT file: %w", err)
	}

	return &SRTFile{entries: entries}, nil
}

func (f *SRTFile) Format() Format {
	return FormatSRT
}

func (f *SRTFile) Subtitle() *Subtitle {
	return &Subtitle{
		Entries: f.entries,
		Format:  string(FormatSRT),
	}
}
