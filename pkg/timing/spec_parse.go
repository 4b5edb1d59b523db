package timing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cronlease/pkg/cronerr"
)

// namedIntervals maps the builder's shorthand methods to their interval.
var namedIntervals = map[string]int{
	"everytwominutes":     2,
	"everythreeminutes":   3,
	"everyfiveminutes":    5,
	"everytenminutes":     10,
	"everyfifteenminutes": 15,
	"everythirtyminutes":  30,
}

var reCall = regexp.MustCompile(`^\s*([A-Za-z]+)\s*(?:\(\s*(.*?)\s*\))?\s*$`)

// Parse parses a schedule expression as written in config files.
//
// Supported forms (names are case-insensitive):
//   - everyMinute, everyTwoMinutes ... everyThirtyMinutes, everyNthMinute(7)
//   - hourly, hourlyAt(15)
//   - daily, dailyAt(13:00)
//   - monthly, monthlyOn(4, 15:00)
//   - lastDayOfMonth, lastDayOfMonth(15:30), lastDayOfMonthAt(15:30)
//   - lastDayOfMonthOffset, lastDayOfMonthOffset(2), lastDayOfMonthOffset(2, 15:30)
//
// Signature() output of every Schedule parses back to an equal Schedule.
// The returned schedule is validated.
func Parse(raw string) (Schedule, error) {
	m := reCall.FindStringSubmatch(raw)
	if m == nil {
		return nil, cronerr.Validation(fmt.Sprintf("invalid schedule %q (use e.g. 'everyFiveMinutes', 'hourlyAt(15)', 'dailyAt(13:00)')", raw))
	}
	name := strings.ToLower(m[1])
	args := splitArgs(m[2])

	var (
		s   Schedule
		err error
	)
	switch name {
	case "everyminute":
		err = wantArgs(raw, args, 0, 0)
		s = EveryMinute{}
	case "everynthminute", "everynminutes":
		if err = wantArgs(raw, args, 1, 1); err == nil {
			var n int
			n, err = intArg(args[0], MsgIntervalRange)
			s = EveryNthMinute{N: n}
		}
	case "hourly":
		err = wantArgs(raw, args, 0, 0)
		s = HourlyAt{Minute: 0}
	case "hourlyat":
		if err = wantArgs(raw, args, 1, 1); err == nil {
			var n int
			n, err = intArg(args[0], MsgMinuteRange)
			s = HourlyAt{Minute: n}
		}
	case "daily", "dailyat":
		if err = wantArgs(raw, args, 0, 1); err == nil {
			var c Clock
			c, err = clockArg(args, 0)
			s = DailyAt{Hour: c.Hour, Minute: c.Minute}
		}
	case "monthly":
		err = wantArgs(raw, args, 0, 0)
		s = MonthlyOn{Day: 1}
	case "monthlyon":
		if err = wantArgs(raw, args, 2, 2); err == nil {
			var (
				d int
				c Clock
			)
			if d, err = intArg(args[0], MsgDayRange); err == nil {
				err = MonthlyOn{Day: d}.Validate()
			}
			if err == nil {
				c, err = clockArg(args, 1)
			}
			s = MonthlyOn{Day: d, Hour: c.Hour, Minute: c.Minute}
		}
	case "lastdayofmonth", "lastdayofmonthat":
		if err = wantArgs(raw, args, 0, 1); err == nil {
			var c Clock
			c, err = clockArg(args, 0)
			s = LastDayOfMonthAt{Hour: c.Hour, Minute: c.Minute}
		}
	case "lastdayofmonthoffset", "lastdayofmonthoffsetat":
		if err = wantArgs(raw, args, 0, 2); err == nil {
			var (
				off int
				c   Clock
			)
			if len(args) > 0 {
				if off, err = intArg(args[0], MsgOffsetRange); err == nil {
					err = LastDayOfMonthOffsetAt{Offset: off}.Validate()
				}
			}
			if err == nil {
				c, err = clockArg(args, 1)
			}
			s = LastDayOfMonthOffsetAt{Offset: off, Hour: c.Hour, Minute: c.Minute}
		}
	default:
		n, ok := namedIntervals[name]
		if !ok {
			return nil, cronerr.Validation(fmt.Sprintf("unknown schedule %q", m[1]))
		}
		err = wantArgs(raw, args, 0, 0)
		s = EveryNthMinute{N: n}
	}
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func splitArgs(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func wantArgs(raw string, args []string, minN, maxN int) error {
	if len(args) < minN || len(args) > maxN {
		return cronerr.Validation(fmt.Sprintf("invalid schedule %q: expected %d to %d arguments, got %d", raw, minN, maxN, len(args)))
	}
	return nil
}

func intArg(v, rangeMsg string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, cronerr.Validation(rangeMsg)
	}
	return n, nil
}

// clockArg parses args[i] as HH:MM, defaulting to midnight when absent.
func clockArg(args []string, i int) (Clock, error) {
	if i >= len(args) {
		return Clock{}, nil
	}
	return ParseClock(args[i])
}
