package subtitle

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var assLeadingTagsRegex = regexp.MustCompile(`^(\{[^}]*\})+`)

// parsed Dialogue line
type ASSDialogue struct {
	Fields          []string
	Text            string
	TextWithoutTags string
}

// parsed ASS/SSA subtitle file; only the [Events] section is kept
type ASSFile struct {
	formatColumns []string
	textIndex     int
	startIndex    int
	endIndex      int
	dialogues     []ASSDialogue
}

func parseASSFile(path string) (*ASSFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ASS file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	assFile := &ASSFile{
		dialogues:  make([]ASSDialogue, 0),
		textIndex:  -1,
		startIndex: -1,
		endIndex:   -1,
	}

	scanner := bufio.NewScanner(file)
	inEventsSection := false
	lineNum := 0

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		trimmedLine := strings.TrimSpace(line)

		if strings.HasPrefix(trimmedLine, "[") &&
			strings.HasSuffix(trimmedLine, "]") {
			sectionName := strings.ToLower(
				strings.TrimSuffix(strings.TrimPrefix(trimmedLine, "["), "]"),
			)
			inEventsSection = sectionName == "events"
			continue
		}

		if !inEventsSection {
			continue
		}

		if strings.HasPrefix(trimmedLine, "Format:") {
			if err := assFile.parseFormatLine(trimmedLine); err != nil {
				return nil, err
			}
			continue
		}

		if strings.HasPrefix(trimmedLine, "Dialogue:") {
			dialogue, err := assFile.parseDialogueLine(trimmedLine)
			if err != nil {
				return nil, fmt.Errorf(
					"failed to parse Dialogue at line %d: %w",
					lineNum,
					err,
				)
			}
			assFile.dialogues = append(assFile.dialogues, dialogue)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASS file: %w", err)
	}

	if len(assFile.formatColumns) == 0 {
		return nil, fmt.Errorf(
			"ASS file missing Format line in [Events] section",
		)
	}

	return assFile, nil
}

func (f *ASSFile) parseFormatLine(line string) error {
	columns := strings.Split(strings.TrimPrefix(line, "Format:"), ",")
	for i, col := range columns {
		columns[i] = strings.TrimSpace(col)
		switch strings.ToLower(columns[i]) {
		case "text":
			f.textIndex = i
		case "start":
			f.startIndex = i
		case "end":
			f.endIndex = i
		}
	}
	if f.textIndex == -1 {
		return fmt.Errorf("ASS file missing Text column in Format line")
	}
	if f.startIndex == -1 || f.endIndex == -1 {
		return fmt.Errorf("ASS file missing Start/End columns in Format line")
	}
	f.formatColumns = columns
	return nil
}

func (f *ASSFile) parseDialogueLine(line string) (ASSDialogue, error) {
	numColumns := len(f.formatColumns)
	if numColumns == 0 {
		return ASSDialogue{}, fmt.Errorf("format columns not parsed yet")
	}

	content := strings.TrimSpace(strings.TrimPrefix(line, "Dialogue:"))

	// the Text column is last and may itself contain commas
	parts := strings.SplitN(content, ",", numColumns)
	if len(parts) < numColumns {
		return ASSDialogue{}, fmt.Errorf(
			"expected %d fields, got %d",
			numColumns,
			len(parts),
		)
	}

	text := parts[f.textIndex]
	leading := assLeadingTagsRegex.FindString(text)

	return ASSDialogue{
		Fields:          parts,
		Text:            text,
		TextWithoutTags: text[len(leading):],
	}, nil
}

func (f *ASSFile) Format() Format {
	return FormatASS
}

func (f *ASSFile) Subtitle() *Subtitle {
	entries := make([]Entry, len(f.dialogues))

	for i, d := range f.dialogues {
		text := strings.ReplaceAll(d.TextWithoutTags, "\\N", "\n")
		text = strings.ReplaceAll(text, "\\n", "\n")

		entries[i] = Entry{
			Index:     i + 1,
			StartTime: parseASSTimestamp(d.Fields[f.startIndex]),
			EndTime:   parseASSTimestamp(d.Fields[f.endIndex]),
			Text:      text,
		}
	}

	return &Subtitle{
		Entries: entries,
		Format:  string(FormatASS),
	}
}

// H:MM:SS.cc; malformed values collapse to zero
func parseASSTimestamp(ts string) time.Duration {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	if len(parts) != 3 {
		return 0
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second)).Round(10*time.Millisecond)
}
