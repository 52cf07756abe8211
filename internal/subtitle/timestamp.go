package subtitle

import (
	"strconv"
	"strings"
	"time"
)

// shared by the SRT and VTT scanners; fraction is right-padded to milliseconds
func parseTimestamp(
	hours, minutes, seconds, fraction string,
) (time.Duration, error) {
	h := 0
	if hours != "" {
		var err error
		if h, err = strconv.Atoi(hours); err != nil {
			return 0, err
		}
	}
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0, err
	}
	s, err := strconv.Atoi(seconds)
	if err != nil {
		return 0, err
	}
	if len(fraction) > 3 {
		fraction = fraction[:3]
	}
	ms := 0
	if fraction != "" {
		if ms, err = strconv.Atoi(fraction + strings.Repeat("0", 3-len(fraction))); err != nil {
			return 0, err
		}
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}
