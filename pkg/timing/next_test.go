package timing

import (
	"testing"
	"time"
)

func TestNext(t *testing.T) {
	t.Parallel()
	from := mustTime(t, "2022-02-08 20:25:02", nil)
	tests := []struct {
		sched Schedule
		want  string
	}{
		{EveryMinute{}, "2022-02-08 20:26:00"},
		{EveryNthMinute{N: 5}, "2022-02-08 20:30:00"},
		{HourlyAt{Minute: 0}, "2022-02-08 21:00:00"},
		{DailyAt{Hour: 2, Minute: 30}, "2022-02-09 02:30:00"},
		{MonthlyOn{Day: 1}, "2022-03-01 00:00:00"},
		{LastDayOfMonthAt{Hour: 15, Minute: 30}, "2022-02-28 15:30:00"},
		{MonthlyOn{Day: 31}, "2022-03-31 00:00:00"},
	}
	for _, tt := range tests {
		got, ok := Next(tt.sched, from, time.UTC, 0)
		if !ok {
			t.Fatalf("%s: no next slot", tt.sched.Signature())
		}
		if got.Format(SlotLayout) != tt.want {
			t.Fatalf("%s: Next = %s, want %s", tt.sched.Signature(), got.Format(SlotLayout), tt.want)
		}
	}
}

func TestNextRespectsLimit(t *testing.T) {
	t.Parallel()
	from := mustTime(t, "2022-02-08 20:25:02", nil)
	if _, ok := Next(DailyAt{Hour: 2}, from, time.UTC, 60); ok {
		t.Fatal("expected no match within 60 minutes")
	}
	if _, ok := Next(HourlyAt{Minute: 99}, from, time.UTC, 0); ok {
		t.Fatal("invalid schedule must not produce a slot")
	}
}

func TestNextN(t *testing.T) {
	t.Parallel()
	from := mustTime(t, "2022-02-08 20:25:02", nil)
	got := NextN(EveryNthMinute{N: 15}, from, time.UTC, 3)
	want := []string{"2022-02-08 20:30:00", "2022-02-08 20:45:00", "2022-02-08 21:00:00"}
	if len(got) != len(want) {
		t.Fatalf("NextN len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Format(SlotLayout) != want[i] {
			t.Fatalf("NextN[%d] = %s, want %s", i, got[i].Format(SlotLayout), want[i])
		}
	}
}
