package timing

import (
	"fmt"

	"cronlease/pkg/cronerr"
)

// Fixed user-facing messages for out-of-range parameters.
const (
	MsgMinuteRange   = "parameter must be an integer between 0 and 59."
	MsgDayRange      = "first parameter must be an integer between 1 and 31."
	MsgIntervalRange = "interval must be an integer between 1 and 59."
	MsgOffsetRange   = "offset must be an integer between 0 and 30."
)

// Schedule is one of the named recurrence predicates below. The set is
// closed: only types in this package implement it.
type Schedule interface {
	// Validate reports out-of-range parameters as validation errors.
	Validate() error
	// Match reports whether snap falls inside the window. It assumes the
	// schedule is valid; use Matches to validate first.
	Match(snap Snapshot) bool
	// Signature is a stable identity for the predicate and its parameters.
	// It is part of the lease key.
	Signature() string

	isSchedule()
}

// Matches validates s and then matches it against snap.
func Matches(s Schedule, snap Snapshot) (bool, error) {
	if s == nil {
		return false, cronerr.Configuration("no schedule set")
	}
	if err := s.Validate(); err != nil {
		return false, err
	}
	return s.Match(snap), nil
}

type EveryMinute struct{}

func (EveryMinute) Validate() error     { return nil }
func (EveryMinute) Match(Snapshot) bool { return true }
func (EveryMinute) Signature() string   { return "everyMinute" }
func (EveryMinute) isSchedule()         {}

// EveryNthMinute matches minutes divisible by N (0, N, 2N, ... within the hour).
type EveryNthMinute struct{ N int }

func (e EveryNthMinute) Validate() error {
	if e.N < 1 || e.N > 59 {
		return cronerr.Validation(MsgIntervalRange)
	}
	return nil
}

func (e EveryNthMinute) Match(snap Snapshot) bool {
	if e.N <= 0 {
		return false
	}
	return snap.Minute%e.N == 0
}

func (e EveryNthMinute) Signature() string { return fmt.Sprintf("everyNthMinute(%d)", e.N) }
func (EveryNthMinute) isSchedule()         {}

type HourlyAt struct{ Minute int }

func (h HourlyAt) Validate() error {
	if h.Minute < 0 || h.Minute > 59 {
		return cronerr.Validation(MsgMinuteRange)
	}
	return nil
}

func (h HourlyAt) Match(snap Snapshot) bool { return snap.Minute == h.Minute }
func (h HourlyAt) Signature() string        { return fmt.Sprintf("hourlyAt(%d)", h.Minute) }
func (HourlyAt) isSchedule()                {}

type DailyAt struct{ Hour, Minute int }

func (d DailyAt) Validate() error { return validClock(d.Hour, d.Minute) }

func (d DailyAt) Match(snap Snapshot) bool {
	return snap.Hour == d.Hour && snap.Minute == d.Minute
}

func (d DailyAt) Signature() string {
	return fmt.Sprintf("dailyAt(%s)", Clock{d.Hour, d.Minute})
}
func (DailyAt) isSchedule() {}

type MonthlyOn struct{ Day, Hour, Minute int }

func (m MonthlyOn) Validate() error {
	if m.Day < 1 || m.Day > 31 {
		return cronerr.Validation(MsgDayRange)
	}
	return validClock(m.Hour, m.Minute)
}

func (m MonthlyOn) Match(snap Snapshot) bool {
	return snap.DayOfMonth == m.Day && snap.Hour == m.Hour && snap.Minute == m.Minute
}

func (m MonthlyOn) Signature() string {
	return fmt.Sprintf("monthlyOn(%d, %s)", m.Day, Clock{m.Hour, m.Minute})
}
func (MonthlyOn) isSchedule() {}

type LastDayOfMonthAt struct{ Hour, Minute int }

func (l LastDayOfMonthAt) Validate() error { return validClock(l.Hour, l.Minute) }

func (l LastDayOfMonthAt) Match(snap Snapshot) bool {
	return snap.DayOfMonth == snap.DaysInMonth && snap.Hour == l.Hour && snap.Minute == l.Minute
}

func (l LastDayOfMonthAt) Signature() string {
	return fmt.Sprintf("lastDayOfMonthAt(%s)", Clock{l.Hour, l.Minute})
}
func (LastDayOfMonthAt) isSchedule() {}

// LastDayOfMonthOffsetAt matches Offset days before the last day of the
// month. Offset 0 behaves like LastDayOfMonthAt.
type LastDayOfMonthOffsetAt struct{ Offset, Hour, Minute int }

func (l LastDayOfMonthOffsetAt) Validate() error {
	if l.Offset < 0 || l.Offset > 30 {
		return cronerr.Validation(MsgOffsetRange)
	}
	return validClock(l.Hour, l.Minute)
}

func (l LastDayOfMonthOffsetAt) Match(snap Snapshot) bool {
	return snap.DayOfMonth == snap.DaysInMonth-l.Offset && snap.Hour == l.Hour && snap.Minute == l.Minute
}

func (l LastDayOfMonthOffsetAt) Signature() string {
	return fmt.Sprintf("lastDayOfMonthOffsetAt(%d, %s)", l.Offset, Clock{l.Hour, l.Minute})
}
func (LastDayOfMonthOffsetAt) isSchedule() {}

func validClock(hour, minute int) error {
	if !(Clock{Hour: hour, Minute: minute}).valid() {
		return cronerr.Validation(MsgTimeFormat)
	}
	return nil
}
