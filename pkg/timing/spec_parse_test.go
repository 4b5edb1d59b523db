package timing

import (
	"testing"
	"time"

	"cronlease/pkg/cronerr"
)

func timeMinutes(n int) time.Duration { return time.Duration(n) * time.Minute }

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want Schedule
	}{
		{"everyMinute", EveryMinute{}},
		{"everyTwoMinutes", EveryNthMinute{N: 2}},
		{"everyThreeMinutes", EveryNthMinute{N: 3}},
		{"everyFiveMinutes", EveryNthMinute{N: 5}},
		{"everyTenMinutes", EveryNthMinute{N: 10}},
		{"everyFifteenMinutes", EveryNthMinute{N: 15}},
		{"everyThirtyMinutes", EveryNthMinute{N: 30}},
		{"everyNthMinute(7)", EveryNthMinute{N: 7}},
		{"hourly", HourlyAt{}},
		{"hourlyAt(15)", HourlyAt{Minute: 15}},
		{"daily", DailyAt{}},
		{"dailyAt(13:00)", DailyAt{Hour: 13}},
		{"  dailyAt( 13:05 )  ", DailyAt{Hour: 13, Minute: 5}},
		{"monthly", MonthlyOn{Day: 1}},
		{"monthlyOn(4, 15:00)", MonthlyOn{Day: 4, Hour: 15}},
		{"lastDayOfMonth", LastDayOfMonthAt{}},
		{"lastDayOfMonth(15:30)", LastDayOfMonthAt{Hour: 15, Minute: 30}},
		{"lastDayOfMonthOffset", LastDayOfMonthOffsetAt{}},
		{"lastDayOfMonthOffset(2)", LastDayOfMonthOffsetAt{Offset: 2}},
		{"lastDayOfMonthOffset(2, 15:30)", LastDayOfMonthOffsetAt{Offset: 2, Hour: 15, Minute: 30}},
		{"HOURLYAT(5)", HourlyAt{Minute: 5}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseSignatureRoundTrip(t *testing.T) {
	t.Parallel()
	for _, s := range []Schedule{
		EveryMinute{}, EveryNthMinute{N: 12}, HourlyAt{Minute: 59}, DailyAt{Hour: 23, Minute: 1},
		MonthlyOn{Day: 31, Hour: 6, Minute: 45}, LastDayOfMonthAt{Hour: 9},
		LastDayOfMonthOffsetAt{Offset: 4, Hour: 18, Minute: 20},
	} {
		got, err := Parse(s.Signature())
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", s.Signature(), err)
		}
		if got != s {
			t.Fatalf("round trip %q = %#v, want %#v", s.Signature(), got, s)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw string
		msg string
	}{
		{"hourlyAt(60)", MsgMinuteRange},
		{"hourlyAt(x)", MsgMinuteRange},
		{"monthlyOn(0, 10:00)", MsgDayRange},
		{"monthlyOn(32, 10:00)", MsgDayRange},
		{"monthlyOn(0, 25:00)", MsgDayRange},
		{"lastDayOfMonthOffset(31, 25:00)", MsgOffsetRange},
		{"dailyAt(5:30)", MsgTimeFormat},
		{"lastDayOfMonthOffset(3, 15)", MsgTimeFormat},
		{"lastDayOfMonthOffset(3, 15.00)", MsgTimeFormat},
		{"everyNthMinute(0)", MsgIntervalRange},
	}
	for _, tt := range tests {
		_, err := Parse(tt.raw)
		if err == nil {
			t.Fatalf("Parse(%q): expected error", tt.raw)
		}
		if err.Error() != tt.msg {
			t.Fatalf("Parse(%q) message = %q, want %q", tt.raw, err.Error(), tt.msg)
		}
	}
	for _, raw := range []string{"", "weekly", "*/5 * * * *", "hourly(5)", "monthlyOn(1)", "dailyAt(01:00, 02:00)"} {
		_, err := Parse(raw)
		if err == nil {
			t.Fatalf("Parse(%q): expected error", raw)
		}
		if !cronerr.Is(err, cronerr.KindValidation) {
			t.Fatalf("Parse(%q): expected validation error, got %v", raw, err)
		}
	}
}
