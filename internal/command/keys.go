package command

import (
	"errors"
	"fmt"
	"strings"
)

// Key is a host key code.
type Key string

const (
	Space        Key = "Space"
	KeyK         Key = "KeyK"
	KeyJ         Key = "KeyJ"
	KeyL         Key = "KeyL"
	KeyW         Key = "KeyW"
	KeyE         Key = "KeyE"
	KeyU         Key = "KeyU"
	KeyO         Key = "KeyO"
	KeyP         Key = "KeyP"
	KeyR         Key = "KeyR"
	ArrowLeft    Key = "ArrowLeft"
	ArrowRight   Key = "ArrowRight"
	ArrowUp      Key = "ArrowUp"
	ArrowDown    Key = "ArrowDown"
	BracketLeft  Key = "BracketLeft"
	BracketRight Key = "BracketRight"
)

var keyAliases = map[string]Key{
	"space": Space,
	"left":  ArrowLeft,
	"right": ArrowRight,
	"up":    ArrowUp,
	"down":  ArrowDown,
	"[":     BracketLeft,
	"]":     BracketRight,
}

// ParseKey accepts key codes ("KeyK", "ArrowLeft"), single letters ("k")
// and a few aliases ("space", "left", "[").
func ParseKey(s string) (Key, error) {
	if s == " " {
		return Space, nil
	}
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("empty key")
	}
	if k, ok := keyAliases[strings.ToLower(t)]; ok {
		return k, nil
	}
	if len(t) == 1 {
		c := strings.ToUpper(t)[0]
		if c >= 'A' && c <= 'Z' {
			return Key("Key" + string(c)), nil
		}
		if c >= '0' && c <= '9' {
			return Key("Digit" + string(c)), nil
		}
	}
	switch {
	case strings.HasPrefix(t, "Key") && len(t) == 4,
		strings.HasPrefix(t, "Digit") && len(t) == 6,
		strings.HasPrefix(t, "Arrow"),
		t == string(Space), t == string(BracketLeft), t == string(BracketRight),
		t == "Escape", t == "Enter", t == "Semicolon":
		return Key(t), nil
	}
	return "", fmt.Errorf("unknown key %q", s)
}
