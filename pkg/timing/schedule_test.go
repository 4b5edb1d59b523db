package timing

import (
	"testing"

	"cronlease/pkg/cronerr"
)

func TestMatchTable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		sched Schedule
		at    string
		want  bool
	}{
		{name: "every minute", sched: EveryMinute{}, at: "2022-02-08 20:26:15", want: true},
		{name: "every five due", sched: EveryNthMinute{N: 5}, at: "2022-02-08 20:25:02", want: true},
		{name: "every five not due", sched: EveryNthMinute{N: 5}, at: "2022-02-08 20:26:15", want: false},
		{name: "every thirty at top", sched: EveryNthMinute{N: 30}, at: "2022-02-08 20:00:59", want: true},
		{name: "every seven wraps per hour", sched: EveryNthMinute{N: 7}, at: "2022-02-08 21:00:00", want: true},
		{name: "hourly", sched: HourlyAt{Minute: 0}, at: "2022-02-08 20:00:00", want: true},
		{name: "hourly not due", sched: HourlyAt{Minute: 0}, at: "2022-02-08 20:01:00", want: false},
		{name: "hourly at 15", sched: HourlyAt{Minute: 15}, at: "2022-02-08 03:15:40", want: true},
		{name: "daily at", sched: DailyAt{Hour: 13, Minute: 0}, at: "2022-02-08 13:00:13", want: true},
		{name: "daily wrong hour", sched: DailyAt{Hour: 13, Minute: 0}, at: "2022-02-08 14:00:13", want: false},
		{name: "monthly", sched: MonthlyOn{Day: 1}, at: "2022-07-01 00:00:00", want: true},
		{name: "monthly on", sched: MonthlyOn{Day: 4, Hour: 15}, at: "2022-02-04 15:00:30", want: true},
		{name: "monthly on wrong day", sched: MonthlyOn{Day: 4, Hour: 15}, at: "2022-02-05 15:00:30", want: false},
		{name: "monthly 31 in short month", sched: MonthlyOn{Day: 31}, at: "2022-04-30 00:00:00", want: false},
		{name: "last day non-leap", sched: LastDayOfMonthAt{Hour: 15, Minute: 30}, at: "2022-02-28 15:30:02", want: true},
		{name: "last day leap", sched: LastDayOfMonthAt{Hour: 15, Minute: 30}, at: "2020-02-29 15:30:02", want: true},
		{name: "not last day", sched: LastDayOfMonthAt{Hour: 15, Minute: 30}, at: "2022-02-27 15:30:02", want: false},
		{name: "leap year 28th is not last", sched: LastDayOfMonthAt{}, at: "2020-02-28 00:00:00", want: false},
		{name: "offset 2 december", sched: LastDayOfMonthOffsetAt{Offset: 2, Hour: 15, Minute: 30}, at: "2022-12-29 15:30:02", want: true},
		{name: "offset 0 april", sched: LastDayOfMonthOffsetAt{Offset: 0, Hour: 11}, at: "2022-04-30 11:00:02", want: true},
		{name: "offset 10 may", sched: LastDayOfMonthOffsetAt{Offset: 10, Hour: 11}, at: "2022-05-21 11:00:39", want: true},
		{name: "offset 2 february", sched: LastDayOfMonthOffsetAt{Offset: 2, Hour: 15, Minute: 30}, at: "2022-02-26 15:30:02", want: true},
		{name: "offset 2 leap february", sched: LastDayOfMonthOffsetAt{Offset: 2, Hour: 15, Minute: 30}, at: "2024-02-27 15:30:02", want: true},
		{name: "offset default", sched: LastDayOfMonthOffsetAt{}, at: "2022-12-31 00:00:02", want: true},
		{name: "offset 3 miss", sched: LastDayOfMonthOffsetAt{Offset: 3, Hour: 15, Minute: 30}, at: "2022-12-29 15:30:02", want: false},
		{name: "offset 3 leap miss", sched: LastDayOfMonthOffsetAt{Offset: 3, Hour: 15, Minute: 30}, at: "2024-02-27 15:30:02", want: false},
		{name: "offset default miss", sched: LastDayOfMonthOffsetAt{}, at: "2022-12-30 00:00:02", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			snap := Take(mustTime(t, tt.at, nil), nil)
			got, err := Matches(tt.sched, snap)
			if err != nil {
				t.Fatalf("Matches error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("%s at %s = %v, want %v", tt.sched.Signature(), tt.at, got, tt.want)
			}
		})
	}
}

func TestHourlyAtEveryMinute(t *testing.T) {
	t.Parallel()
	base := mustTime(t, "2022-02-08 10:00:00", nil)
	for m := 0; m <= 59; m++ {
		h := HourlyAt{Minute: m}
		for n := 0; n <= 59; n++ {
			snap := Take(base.Add(timeMinutes(n)), nil)
			got, err := Matches(h, snap)
			if err != nil {
				t.Fatalf("HourlyAt(%d) error: %v", m, err)
			}
			if got != (m == n) {
				t.Fatalf("HourlyAt(%d) at minute %d = %v", m, n, got)
			}
		}
	}
}

func TestMatchIsPure(t *testing.T) {
	t.Parallel()
	snap := Snapshot{Minute: 30, Hour: 15, DayOfMonth: 28, DaysInMonth: 28}
	schedules := []Schedule{
		EveryMinute{}, EveryNthMinute{N: 15}, HourlyAt{Minute: 30}, DailyAt{Hour: 15, Minute: 30},
		MonthlyOn{Day: 28, Hour: 15, Minute: 30}, LastDayOfMonthAt{Hour: 15, Minute: 30},
		LastDayOfMonthOffsetAt{Offset: 0, Hour: 15, Minute: 30},
	}
	for _, s := range schedules {
		first := s.Match(snap)
		for i := 0; i < 10; i++ {
			if s.Match(snap) != first {
				t.Fatalf("%s is not deterministic", s.Signature())
			}
		}
		if !first {
			t.Fatalf("%s should match %+v", s.Signature(), snap)
		}
	}
}

func TestValidationMessages(t *testing.T) {
	t.Parallel()
	tests := []struct {
		sched Schedule
		msg   string
	}{
		{HourlyAt{Minute: 60}, "parameter must be an integer between 0 and 59."},
		{HourlyAt{Minute: -1}, "parameter must be an integer between 0 and 59."},
		{MonthlyOn{Day: 0}, "first parameter must be an integer between 1 and 31."},
		{MonthlyOn{Day: 32}, "first parameter must be an integer between 1 and 31."},
		{EveryNthMinute{N: 0}, MsgIntervalRange},
		{EveryNthMinute{N: 60}, MsgIntervalRange},
		{DailyAt{Hour: 24}, MsgTimeFormat},
		{LastDayOfMonthAt{Minute: 61}, MsgTimeFormat},
		{LastDayOfMonthOffsetAt{Offset: -1}, MsgOffsetRange},
		{LastDayOfMonthOffsetAt{Offset: 31}, MsgOffsetRange},
	}
	snap := Snapshot{Minute: 0, Hour: 0, DayOfMonth: 1, DaysInMonth: 31}
	for _, tt := range tests {
		_, err := Matches(tt.sched, snap)
		if err == nil {
			t.Fatalf("%s: expected error", tt.sched.Signature())
		}
		if !cronerr.Is(err, cronerr.KindValidation) {
			t.Fatalf("%s: expected validation error, got %v", tt.sched.Signature(), err)
		}
		if err.Error() != tt.msg {
			t.Fatalf("%s: message = %q, want %q", tt.sched.Signature(), err.Error(), tt.msg)
		}
	}
}

func TestSignatures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		sched Schedule
		want  string
	}{
		{EveryMinute{}, "everyMinute"},
		{EveryNthMinute{N: 5}, "everyNthMinute(5)"},
		{HourlyAt{Minute: 5}, "hourlyAt(5)"},
		{DailyAt{Hour: 2, Minute: 30}, "dailyAt(02:30)"},
		{MonthlyOn{Day: 1}, "monthlyOn(1, 00:00)"},
		{LastDayOfMonthAt{Hour: 15, Minute: 30}, "lastDayOfMonthAt(15:30)"},
		{LastDayOfMonthOffsetAt{Offset: 2, Hour: 15, Minute: 30}, "lastDayOfMonthOffsetAt(2, 15:30)"},
	}
	for _, tt := range tests {
		if got := tt.sched.Signature(); got != tt.want {
			t.Fatalf("Signature = %q, want %q", got, tt.want)
		}
	}
}
