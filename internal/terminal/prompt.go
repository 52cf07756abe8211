package terminal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mgpai22/shadowplay/internal/marks"
	"github.com/mgpai22/shadowplay/internal/timecode"
)

// PromptPrefix opens the mark edit prompt.
const PromptPrefix = ':'

// Prompt is a single-line editor used for mark edits.
type Prompt struct {
	active bool
	line   []rune
}

func (p *Prompt) Active() bool { return p.active }

func (p *Prompt) Open() {
	p.active = true
	p.line = p.line[:0]
}

// Text is the current line without the prompt prefix.
func (p *Prompt) Text() string { return string(p.line) }

// Feed applies in. It returns the submitted line and true on Enter; Escape
// and Interrupt close the prompt without submitting.
func (p *Prompt) Feed(in Input) (string, bool) {
	if !p.active {
		return "", false
	}
	switch in.Key {
	case Enter:
		p.active = false
		return strings.TrimSpace(string(p.line)), true
	case Escape, Interrupt:
		p.active = false
		p.line = p.line[:0]
	case Backspace:
		if len(p.line) == 0 {
			p.active = false
			break
		}
		p.line = p.line[:len(p.line)-1]
	default:
		if in.Rune != 0 {
			p.line = append(p.line, in.Rune)
		}
	}
	return "", false
}

// Edit is a parsed "start|end OLD NEW" prompt line.
type Edit struct {
	Kind marks.Kind
	From float64
	To   string
}

var errEditUsage = errors.New("usage: start|end OLD NEW")

// ParseEdit parses a prompt line. The new time is left as text so the caller
// applies the same validation as any other edit.
func ParseEdit(line string) (Edit, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Edit{}, errEditUsage
	}
	kind, err := marks.ParseKind(fields[0])
	if err != nil {
		return Edit{}, fmt.Errorf("%w: %v", errEditUsage, err)
	}
	from, err := timecode.Parse(fields[1])
	if err != nil {
		return Edit{}, fmt.Errorf("old time %q: %w", fields[1], err)
	}
	return Edit{Kind: kind, From: from, To: fields[2]}, nil
}
