package timing

import (
	"strings"
	"time"

	"cronlease/pkg/cronerr"
)

// SlotLayout formats a slot (a minute) for lease keys and logs.
const SlotLayout = "2006-01-02 15:04:00"

// Snapshot is "now" decomposed once per evaluation.
type Snapshot struct {
	At          time.Time // in the evaluation location
	Minute      int
	Hour        int
	DayOfMonth  int
	DaysInMonth int
}

// Take decomposes t in loc. A nil loc means UTC.
func Take(t time.Time, loc *time.Location) Snapshot {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return Snapshot{
		At:          lt,
		Minute:      lt.Minute(),
		Hour:        lt.Hour(),
		DayOfMonth:  lt.Day(),
		DaysInMonth: DaysIn(lt.Year(), lt.Month()),
	}
}

// Now takes a snapshot of the real wall clock.
func Now(loc *time.Location) Snapshot { return Take(time.Now(), loc) }

// Slot returns the minute the snapshot belongs to.
func (s Snapshot) Slot() time.Time {
	at := s.At
	return time.Date(at.Year(), at.Month(), at.Day(), at.Hour(), at.Minute(), 0, 0, at.Location())
}

// DaysIn returns the number of days of month in year (leap years included).
func DaysIn(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LoadLocation resolves an IANA zone name. Empty means UTC.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, &cronerr.Error{Kind: cronerr.KindConfiguration, Msg: "unknown timezone " + tz, Err: err}
	}
	return loc, nil
}
