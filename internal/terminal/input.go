package terminal

import (
	"unicode"
	"unicode/utf8"

	"github.com/mgpai22/shadowplay/internal/command"
)

// Control keys produced by the decoder in addition to command keys.
const (
	Enter     command.Key = "Enter"
	Escape    command.Key = "Escape"
	Backspace command.Key = "Backspace"
	Interrupt command.Key = "Interrupt"
)

const esc = 0x1b

// Input is one decoded key press. Rune is set for printable characters.
type Input struct {
	Key  command.Key
	Rune rune
}

// Decoder turns raw-mode terminal bytes into key presses. Escape sequences
// split across reads are held until complete.
type Decoder struct {
	buf []byte
}

// Feed appends p and returns every complete key press.
func (d *Decoder) Feed(p []byte) []Input {
	d.buf = append(d.buf, p...)
	var out []Input
	for len(d.buf) > 0 {
		in, n := decodeOne(d.buf)
		if n == 0 {
			break
		}
		d.buf = d.buf[n:]
		if in != (Input{}) {
			out = append(out, in)
		}
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return out
}

// decodeOne returns the input at the head of b and how many bytes it used.
// n is 0 when b holds an incomplete sequence.
func decodeOne(b []byte) (Input, int) {
	switch c := b[0]; {
	case c == esc:
		return decodeEscape(b)
	case c == 0x03:
		return Input{Key: Interrupt}, 1
	case c == '\r' || c == '\n':
		return Input{Key: Enter}, 1
	case c == 0x7f || c == 0x08:
		return Input{Key: Backspace}, 1
	case c < 0x20:
		return Input{}, 1
	}

	if !utf8.FullRune(b) {
		return Input{}, 0
	}
	r, size := utf8.DecodeRune(b)
	if r == utf8.RuneError || !unicode.IsPrint(r) {
		return Input{}, size
	}
	in := Input{Rune: r}
	if k, err := command.ParseKey(string(r)); err == nil {
		in.Key = k
	}
	return in, size
}

func decodeEscape(b []byte) (Input, int) {
	if len(b) == 1 {
		return Input{Key: Escape}, 1
	}
	switch b[1] {
	case '[', 'O':
	default:
		return Input{Key: Escape}, 1
	}
	if len(b) < 3 {
		return Input{}, 0
	}

	switch b[2] {
	case 'A':
		return Input{Key: command.ArrowUp}, 3
	case 'B':
		return Input{Key: command.ArrowDown}, 3
	case 'C':
		return Input{Key: command.ArrowRight}, 3
	case 'D':
		return Input{Key: command.ArrowLeft}, 3
	}

	// skip other CSI sequences up to their final byte
	for i := 2; i < len(b); i++ {
		if b[i] >= 0x40 && b[i] <= 0x7e {
			return Input{}, i + 1
		}
	}
	return Input{}, 0
}
