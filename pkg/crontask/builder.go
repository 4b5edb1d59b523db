package crontask

import (
	"context"
	"time"

	"cronlease/pkg/cronerr"
	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
	"cronlease/pkg/timing"
)

// Builder accumulates a Runner's configuration. Methods never fail on their
// own; the first misuse is recorded and returned by Build or Run.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	err error

	mode  Mode
	sched timing.Schedule
	task  Task

	tz     string
	loc    *time.Location
	now    func() time.Time
	store  lease.Store
	ledger *lease.Ledger
	worker string

	keys    lease.KeyPolicy
	release *lease.ReleasePolicy
	sleeper lease.Sleeper
	log     logx.Logger
}

func New() *Builder {
	return &Builder{keys: lease.KeyBySlot}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil && err != nil {
		b.err = err
	}
	return b
}

// ---- clock ----

// Timezone sets the IANA zone the schedule is evaluated in. Empty means UTC.
func (b *Builder) Timezone(tz string) *Builder {
	b.tz, b.loc = tz, nil
	return b
}

func (b *Builder) Location(loc *time.Location) *Builder {
	b.tz, b.loc = "", loc
	return b
}

// Now injects the clock used by Runner.Run.
func (b *Builder) Now(now func() time.Time) *Builder {
	b.now = now
	return b
}

// At pins Runner.Run to a fixed instant.
func (b *Builder) At(t time.Time) *Builder {
	return b.Now(func() time.Time { return t })
}

// ---- mode ----

func (b *Builder) Local() *Builder        { return b.setMode(Local) }
func (b *Builder) LoadBalanced() *Builder { return b.setMode(LoadBalanced) }

func (b *Builder) Mode(m Mode) *Builder { return b.setMode(m) }

func (b *Builder) setMode(m Mode) *Builder {
	if b.mode != modeUnset {
		return b.fail(cronerr.Configuration(MsgModeAlreadySet))
	}
	if m != Local && m != LoadBalanced {
		return b.fail(cronerr.Configuration(MsgNoMode))
	}
	b.mode = m
	return b
}

// ---- task and lease ----

func (b *Builder) Task(t Task) *Builder {
	b.task = t
	return b
}

// Store sets the shared lease store. A ledger is built around it.
func (b *Builder) Store(st lease.Store) *Builder {
	b.store = st
	return b
}

// Ledger shares an existing ledger, so several runners probe the table once.
func (b *Builder) Ledger(l *lease.Ledger) *Builder {
	b.ledger = l
	return b
}

// Worker names this process in the rows it claims.
func (b *Builder) Worker(id string) *Builder {
	b.worker = id
	return b
}

func (b *Builder) KeyBySlot() *Builder { b.keys = lease.KeyBySlot; return b }
func (b *Builder) KeyByTask() *Builder { b.keys = lease.KeyByTask; return b }

func (b *Builder) Keys(p lease.KeyPolicy) *Builder {
	b.keys = p
	return b
}

// ReleaseAfter holds a won lease for d after the task returns, then deletes it.
func (b *Builder) ReleaseAfter(d time.Duration) *Builder {
	return b.Release(lease.Delayed(d))
}

func (b *Builder) ReleaseImmediately() *Builder { return b.Release(lease.Immediate()) }

// RetainLease keeps the row after the task; a sweep removes it later.
func (b *Builder) RetainLease() *Builder { return b.Release(lease.Retain()) }

func (b *Builder) Release(p lease.ReleasePolicy) *Builder {
	b.release = &p
	return b
}

// Sleeper replaces the release delay; lease.NoSleep skips it.
func (b *Builder) Sleeper(s lease.Sleeper) *Builder {
	b.sleeper = s
	return b
}

func (b *Builder) Logger(log logx.Logger) *Builder {
	b.log = log
	return b
}

// ---- schedule ----

// Schedule attaches s. A second schedule is a configuration error.
func (b *Builder) Schedule(s timing.Schedule) *Builder {
	if b.sched != nil {
		return b.fail(cronerr.Configuration(MsgAlreadyScheduled))
	}
	if s == nil {
		return b.fail(cronerr.Configuration(MsgNoSchedule))
	}
	if err := s.Validate(); err != nil {
		return b.fail(err)
	}
	b.sched = s
	return b
}

// ScheduleExpr attaches a schedule written as in config files, e.g.
// "dailyAt(02:30)".
func (b *Builder) ScheduleExpr(expr string) *Builder {
	if b.sched != nil {
		return b.fail(cronerr.Configuration(MsgAlreadyScheduled))
	}
	s, err := timing.Parse(expr)
	if err != nil {
		return b.fail(err)
	}
	return b.Schedule(s)
}

func (b *Builder) EveryMinute() *Builder         { return b.Schedule(timing.EveryMinute{}) }
func (b *Builder) EveryTwoMinutes() *Builder     { return b.EveryNthMinute(2) }
func (b *Builder) EveryThreeMinutes() *Builder   { return b.EveryNthMinute(3) }
func (b *Builder) EveryFiveMinutes() *Builder    { return b.EveryNthMinute(5) }
func (b *Builder) EveryTenMinutes() *Builder     { return b.EveryNthMinute(10) }
func (b *Builder) EveryFifteenMinutes() *Builder { return b.EveryNthMinute(15) }
func (b *Builder) EveryThirtyMinutes() *Builder  { return b.EveryNthMinute(30) }

func (b *Builder) EveryNthMinute(n int) *Builder {
	return b.Schedule(timing.EveryNthMinute{N: n})
}

func (b *Builder) Hourly() *Builder { return b.HourlyAt(0) }

func (b *Builder) HourlyAt(minute int) *Builder {
	return b.Schedule(timing.HourlyAt{Minute: minute})
}

func (b *Builder) Daily() *Builder { return b.Schedule(timing.DailyAt{}) }

// DailyAt takes "HH:MM".
func (b *Builder) DailyAt(hhmm string) *Builder {
	return b.clockSchedule(hhmm, func(c timing.Clock) timing.Schedule {
		return timing.DailyAt{Hour: c.Hour, Minute: c.Minute}
	})
}

func (b *Builder) Monthly() *Builder { return b.Schedule(timing.MonthlyOn{Day: 1}) }

func (b *Builder) MonthlyOn(day int, hhmm string) *Builder {
	return b.clockSchedule(hhmm, func(c timing.Clock) timing.Schedule {
		return timing.MonthlyOn{Day: day, Hour: c.Hour, Minute: c.Minute}
	})
}

func (b *Builder) LastDayOfMonth(hhmm string) *Builder {
	return b.clockSchedule(hhmm, func(c timing.Clock) timing.Schedule {
		return timing.LastDayOfMonthAt{Hour: c.Hour, Minute: c.Minute}
	})
}

// LastDayOfMonthOffset matches offset days before the month's last day.
func (b *Builder) LastDayOfMonthOffset(offset int, hhmm string) *Builder {
	return b.clockSchedule(hhmm, func(c timing.Clock) timing.Schedule {
		return timing.LastDayOfMonthOffsetAt{Offset: offset, Hour: c.Hour, Minute: c.Minute}
	})
}

func (b *Builder) clockSchedule(hhmm string, mk func(timing.Clock) timing.Schedule) *Builder {
	if b.sched != nil {
		return b.fail(cronerr.Configuration(MsgAlreadyScheduled))
	}
	// Day and offset arguments are checked before the time.
	if err := mk(timing.Clock{}).Validate(); err != nil {
		return b.fail(err)
	}
	c, err := timing.ParseClock(hhmm)
	if err != nil {
		return b.fail(err)
	}
	return b.Schedule(mk(c))
}

// ---- build ----

// Build validates the configuration and returns a Runner.
func (b *Builder) Build() (*Runner, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.mode == modeUnset {
		return nil, cronerr.Configuration(MsgNoMode)
	}
	if b.sched == nil {
		return nil, cronerr.Configuration(MsgNoSchedule)
	}
	if b.task == nil {
		return nil, cronerr.Configuration(MsgNoTask)
	}

	log := b.log
	if log.IsZero() {
		log = logx.Nop()
	}

	r := &Runner{
		mode:   b.mode,
		sched:  b.sched,
		task:   b.task,
		worker: b.worker,
		keys:   b.keys,
		now:    b.now,
	}
	if r.now == nil {
		r.now = time.Now
	}

	if b.mode == LoadBalanced {
		if b.ledger == nil && b.store == nil {
			return nil, cronerr.Configuration(MsgNoStore)
		}
		if b.task.Name() == "" {
			return nil, cronerr.Configuration(MsgNoName)
		}
		r.ledger = b.ledger
		if r.ledger == nil {
			r.ledger = lease.NewLedger(b.store, lease.WithLogger(log), lease.WithSleeper(b.sleeper))
		}
		r.release = lease.DefaultRelease(b.keys)
		if b.release != nil {
			r.release = *b.release
		}
	}

	r.loc = b.loc
	if r.loc == nil {
		loc, err := timing.LoadLocation(b.tz)
		if err != nil {
			return nil, err
		}
		r.loc = loc
	}

	r.log = log.With(logx.String("task", b.task.Name()), logx.String("schedule", b.sched.Signature()), logx.String("mode", b.mode.String()))
	return r, nil
}

// Run builds the Runner and evaluates it once at the configured clock.
func (b *Builder) Run(ctx context.Context) (bool, error) {
	r, err := b.Build()
	if err != nil {
		return false, err
	}
	return r.Run(ctx)
}
