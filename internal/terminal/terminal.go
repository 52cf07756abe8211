// Package terminal provides raw-mode key input and an in-place status line
// for interactive play sessions.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrNotTerminal is returned by Open when stdin is not a terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// Terminal owns raw mode on an input file.
type Terminal struct {
	in    *os.File
	out   *os.File
	fd    int
	state *term.State
}

// Open switches in to raw mode. Call Restore before exiting.
func Open(in, out *os.File) (*Terminal, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("enter raw mode: %w", err)
	}
	return &Terminal{in: in, out: out, fd: fd, state: state}, nil
}

// Restore leaves raw mode. It is safe to call more than once.
func (t *Terminal) Restore() error {
	if t == nil || t.state == nil {
		return nil
	}
	state := t.state
	t.state = nil
	return term.Restore(t.fd, state)
}

// Width is the terminal width in columns, or 0 when unknown.
func (t *Terminal) Width() int {
	w, _, err := term.GetSize(int(t.out.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func (t *Terminal) Output() io.Writer { return t.out }

// ReadInputs decodes key presses from the terminal until ctx is done or
// reading fails. The final blocked read only returns on the next key press.
func (t *Terminal) ReadInputs(ctx context.Context, inputs chan<- Input) error {
	return ReadInputs(ctx, t.in, inputs)
}

// ReadInputs decodes key presses from r onto inputs.
func ReadInputs(ctx context.Context, r io.Reader, inputs chan<- Input) error {
	var dec Decoder
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for _, in := range dec.Feed(buf[:n]) {
			select {
			case inputs <- in:
			case <-ctx.Done():
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read terminal: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
