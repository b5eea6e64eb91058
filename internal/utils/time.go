package utils

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrBadTimecode = errors.New("bad timecode")

// MaxTimecode is the largest accepted timecode in seconds (about 68 years).
const MaxTimecode = math.MaxInt32

// ParseTimecode parses "ss", "mm:ss" or "hh:mm:ss" into seconds. Fields are
// weighted right to left by powers of 60; a single field's magnitude is not
// bounded, so "90:00" is 5400, but the total may not pass MaxTimecode.
func ParseTimecode(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadTimecode)
	}
	parts := strings.Split(s, ":")
	secs, mul := 0, 1
	for i := len(parts) - 1; i >= 0; i-- {
		v, err := strconv.Atoi(parts[i])
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadTimecode, s)
		}
		if v > 0 && (mul > MaxTimecode || v > (MaxTimecode-secs)/mul) {
			return 0, fmt.Errorf("%w: %q out of range", ErrBadTimecode, s)
		}
		secs += v * mul
		if mul <= MaxTimecode {
			mul *= 60
		}
	}
	return secs, nil
}

// FormatTimecode renders seconds as m:ss, or h:mm:ss from one hour up.
func FormatTimecode(secs int) string {
	if secs < 0 {
		secs = 0
	}
	h, m, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
