// Package generation implements generation tokens: a monotonic counter whose
// current value is the only one allowed to act. Any newer allocation or an
// explicit Invalidate makes every earlier token stale.
package generation

import "sync/atomic"

// Token identifies one generation. The zero Token is never valid.
type Token uint64

// Counter hands out tokens. The zero value is ready to use.
type Counter struct {
	current atomic.Uint64
}

// Next starts a new generation and returns its token.
func (c *Counter) Next() Token {
	return Token(c.current.Add(1))
}

// Invalidate makes every token handed out so far stale.
func (c *Counter) Invalidate() {
	c.current.Add(1)
}

// Valid reports whether tok is the latest token and has not been invalidated.
func (c *Counter) Valid(tok Token) bool {
	return tok != 0 && uint64(tok) == c.current.Load()
}

// Guard wraps f so it only runs while tok is still valid.
func (c *Counter) Guard(tok Token, f func()) func() {
	return func() {
		if c.Valid(tok) {
			f()
		}
	}
}
