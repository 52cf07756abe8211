package marks

import (
	"fmt"
	"strings"
)

const (
	keyPrefix    = "marks:"
	keySeparator = "::"
	NoneSubtitle = "none"
)

// Kind tags a mark as the start or end of a segment.
type Kind int

const (
	Start Kind = iota
	End
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case End:
		return "end"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start", "s", "w":
		return Start, nil
	case "end", "e":
		return End, nil
	default:
		return 0, fmt.Errorf("unknown mark kind %q (expected start or end)", s)
	}
}

// Key identifies the mark set of a video and subtitle pair.
type Key struct {
	Video    string
	Subtitle string
}

// String is the storage key: "marks:<video>::<subtitle or none>".
func (k Key) String() string {
	sub := k.Subtitle
	if sub == "" {
		sub = NoneSubtitle
	}
	return keyPrefix + k.Video + keySeparator + sub
}

// Fallback is the key of the same video without a subtitle.
func (k Key) Fallback() Key {
	return Key{Video: k.Video}
}

func (k Key) HasSubtitle() bool {
	return k.Subtitle != "" && k.Subtitle != NoneSubtitle
}

// ParseKey reverses Key.String. The video part may itself contain "::", so
// the subtitle is taken from the last separator.
func ParseKey(s string) (Key, bool) {
	if !strings.HasPrefix(s, keyPrefix) {
		return Key{}, false
	}
	rest := strings.TrimPrefix(s, keyPrefix)
	i := strings.LastIndex(rest, keySeparator)
	if i < 0 {
		return Key{}, false
	}
	k := Key{Video: rest[:i], Subtitle: rest[i+len(keySeparator):]}
	if k.Subtitle == NoneSubtitle {
		k.Subtitle = ""
	}
	return k, true
}

// KeyPrefix is the common prefix of every mark storage key.
func KeyPrefix() string { return keyPrefix }
