package timing

import (
	"fmt"

	"cronlease/pkg/cronerr"
)

// MsgTimeFormat is returned for every malformed "HH:MM" value.
const MsgTimeFormat = `a specific time must be in the format of "15:34" => H:i`

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c Clock) valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

// ParseClock parses a strict "HH:MM" value: five bytes, colon at index 2,
// hour 00-23, minute 00-59. No surrounding whitespace is accepted.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return Clock{}, cronerr.Validation(MsgTimeFormat)
	}
	h, okH := twoDigits(s[0], s[1])
	m, okM := twoDigits(s[3], s[4])
	if !okH || !okM {
		return Clock{}, cronerr.Validation(MsgTimeFormat)
	}
	c := Clock{Hour: h, Minute: m}
	if !c.valid() {
		return Clock{}, cronerr.Validation(MsgTimeFormat)
	}
	return c, nil
}

// MustClock is ParseClock for literals; it panics on malformed input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}
