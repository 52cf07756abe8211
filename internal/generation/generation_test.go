package generation

import "testing"

func TestTokens(t *testing.T) {
	var c Counter
	if c.Valid(0) {
		t.Error("zero token must never be valid")
	}

	a := c.Next()
	if !c.Valid(a) {
		t.Error("fresh token should be valid")
	}
	b := c.Next()
	if c.Valid(a) {
		t.Error("older token should be stale after Next")
	}
	if !c.Valid(b) {
		t.Error("latest token should be valid")
	}

	c.Invalidate()
	c.Invalidate()
	if c.Valid(b) {
		t.Error("token should be stale after Invalidate")
	}
}

func TestGuard(t *testing.T) {
	var c Counter
	calls := 0
	tok := c.Next()
	guarded := c.Guard(tok, func() { calls++ })

	guarded()
	c.Invalidate()
	guarded()

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
