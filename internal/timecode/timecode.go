package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalid  = errors.New("invalid time")
	ErrNegative = errors.New("negative time")
)

// formats seconds as HH:MM:SS.mmm
func Format(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	if math.IsInf(seconds, 1) {
		return "--:--:--.---"
	}

	// round once so the millisecond field never carries into 1000
	total := int64(math.Round(seconds * 1000))
	millis := total % 1000
	totalSeconds := total / 1000

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}

// parses HH:MM:SS.mmm, MM:SS.mmm or SS.mmm into seconds
func Parse(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrInvalid
	}
	if strings.HasPrefix(text, "-") {
		return 0, ErrNegative
	}

	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q has too many fields", ErrInvalid, text)
	}

	var hours, minutes int
	var err error
	switch len(parts) {
	case 3:
		if hours, err = parseWhole(parts[0]); err != nil {
			return 0, err
		}
		if minutes, err = parseWhole(parts[1]); err != nil {
			return 0, err
		}
	case 2:
		if minutes, err = parseWhole(parts[0]); err != nil {
			return 0, err
		}
	}

	seconds, err := parseSeconds(parts[len(parts)-1])
	if err != nil {
		return 0, err
	}

	total := float64(hours)*3600 + float64(minutes)*60 + seconds
	return math.Round(total*1000) / 1000, nil
}

func parseWhole(field string) (int, error) {
	if field == "" {
		return 0, fmt.Errorf("%w: empty field", ErrInvalid)
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, field)
	}
	if n < 0 {
		return 0, ErrNegative
	}
	return n, nil
}

func parseSeconds(field string) (float64, error) {
	whole, frac, hasFrac := strings.Cut(field, ".")
	if whole == "" && !hasFrac {
		return 0, fmt.Errorf("%w: empty seconds", ErrInvalid)
	}

	secs := 0
	if whole != "" {
		n, err := parseWhole(whole)
		if err != nil {
			return 0, err
		}
		secs = n
	}
	if !hasFrac || frac == "" {
		return float64(secs), nil
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalid, field)
		}
	}

	fraction, err := strconv.ParseFloat("0."+frac, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, field)
	}
	return float64(secs) + fraction, nil
}
