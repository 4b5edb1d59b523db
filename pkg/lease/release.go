package lease

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultAsyncBuffer is how long a task-keyed lease is held after the task
// finishes before it is deleted.
const DefaultAsyncBuffer = 30 * time.Second

type ReleaseMode int

const (
	// ReleaseRetain keeps the row; Ledger.Sweep removes it later.
	ReleaseRetain ReleaseMode = iota + 1
	// ReleaseImmediate deletes the row as soon as the task returns.
	ReleaseImmediate
	// ReleaseDelayed waits Delay, then deletes. The wait widens the window in
	// which a drifting worker's claim still sees the row as held.
	ReleaseDelayed
)

// ReleasePolicy tells the ledger what to do with a won lease after the task.
type ReleasePolicy struct {
	Mode  ReleaseMode
	Delay time.Duration
}

func Retain() ReleasePolicy    { return ReleasePolicy{Mode: ReleaseRetain} }
func Immediate() ReleasePolicy { return ReleasePolicy{Mode: ReleaseImmediate} }

// Delayed returns a policy that releases after d. d <= 0 is Immediate.
func Delayed(d time.Duration) ReleasePolicy {
	if d <= 0 {
		return Immediate()
	}
	return ReleasePolicy{Mode: ReleaseDelayed, Delay: d}
}

// DefaultRelease returns the release policy that fits a key policy:
// slot keys never collide with a later slot so rows are retained, task keys
// must be freed so the next slot can claim them.
func DefaultRelease(p KeyPolicy) ReleasePolicy {
	if p == KeyByTask {
		return Delayed(DefaultAsyncBuffer)
	}
	return Retain()
}

func (p ReleasePolicy) String() string {
	switch p.Mode {
	case ReleaseRetain:
		return "retain"
	case ReleaseImmediate:
		return "immediate"
	case ReleaseDelayed:
		return "after " + p.Delay.String()
	default:
		return "unset"
	}
}

// ParseRelease accepts "retain", "immediate" or a Go duration ("30s").
func ParseRelease(s string) (ReleasePolicy, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "retain", "keep":
		return Retain(), nil
	case "immediate", "0", "0s":
		return Immediate(), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return ReleasePolicy{}, fmt.Errorf("invalid release policy %q (use retain, immediate or a duration like 30s)", s)
	}
	return Delayed(d), nil
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoSleep skips release delays. Test configurations use it.
func NoSleep(context.Context, time.Duration) error { return nil }
