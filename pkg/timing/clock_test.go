package timing

import (
	"testing"

	"cronlease/pkg/cronerr"
)

func TestParseClock(t *testing.T) {
	t.Parallel()
	c, err := ParseClock("15:30")
	if err != nil {
		t.Fatalf("ParseClock error: %v", err)
	}
	if c.Hour != 15 || c.Minute != 30 {
		t.Fatalf("unexpected clock: %+v", c)
	}
	if c.String() != "15:30" {
		t.Fatalf("String = %s", c.String())
	}
	if c, err := ParseClock("00:00"); err != nil || c != (Clock{}) {
		t.Fatalf("ParseClock(00:00) = %+v, %v", c, err)
	}
	if c, err := ParseClock("23:59"); err != nil || c != (Clock{23, 59}) {
		t.Fatalf("ParseClock(23:59) = %+v, %v", c, err)
	}
}

func TestParseClockRejects(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"5:30", "15:3", "12", "15.00", "15", "24:00", "12:60", " 1:30", "1a:30", "15:30 ", "-1:30", ""} {
		raw := raw
		t.Run(raw, func(t *testing.T) {
			t.Parallel()
			_, err := ParseClock(raw)
			if err == nil {
				t.Fatalf("expected error for %q", raw)
			}
			if !cronerr.Is(err, cronerr.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if err.Error() != `a specific time must be in the format of "15:34" => H:i` {
				t.Fatalf("unexpected message: %q", err.Error())
			}
		})
	}
}
