package lease

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"cronlease/pkg/cronerr"
	logx "cronlease/pkg/logx"
)

// releaseDeleteTimeout bounds the delete that ends a lease once the
// caller's context is gone.
const releaseDeleteTimeout = 10 * time.Second

// Ledger wraps a Store with the claim/release protocol.
//
// A Ledger is safe for concurrent use. The table probe runs before the
// first claim and is remembered once it succeeds.
type Ledger struct {
	store Store
	log   logx.Logger
	sleep Sleeper
	now   func() time.Time

	checked atomic.Bool
}

type Option func(*Ledger)

func WithLogger(log logx.Logger) Option { return func(l *Ledger) { l.log = log } }

// WithSleeper replaces the release delay implementation.
func WithSleeper(s Sleeper) Option {
	return func(l *Ledger) {
		if s != nil {
			l.sleep = s
		}
	}
}

// WithClock sets the clock used for sweep cutoffs.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, sleep: SleepContext, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.log.IsZero() {
		l.log = logx.Nop()
	}
	return l
}

func (l *Ledger) Store() Store { return l.store }

// Check probes the store for the lease table. A missing table is reported
// as a store error wrapping ErrTableMissing.
func (l *Ledger) Check(ctx context.Context) error {
	if l == nil || l.store == nil {
		return cronerr.Configuration("no lease store configured")
	}
	if l.checked.Load() {
		return nil
	}
	if err := l.store.Probe(ctx); err != nil {
		if errors.Is(err, ErrTableMissing) {
			return cronerr.Store("lease store not provisioned", err)
		}
		return cronerr.Store("probe lease store", err)
	}
	l.checked.Store(true)
	return nil
}

// TryClaim attempts to own rec.Key. AlreadyHeld is returned with a nil error.
func (l *Ledger) TryClaim(ctx context.Context, rec Record) (Outcome, error) {
	if rec.Key == "" {
		return 0, cronerr.Configuration("lease key is required")
	}
	if err := l.Check(ctx); err != nil {
		return 0, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now()
	}
	out, err := l.store.InsertUnique(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrTableMissing) {
			l.checked.Store(false)
			return 0, cronerr.Store("lease store not provisioned", err)
		}
		return 0, cronerr.Store("claim lease", err)
	}
	switch out {
	case Claimed:
		l.log.Debug("lease claimed", logx.String("task", rec.Task), logx.String("schedule", rec.Schedule), logx.String("key", rec.Key), logx.String("worker", rec.Worker))
	case AlreadyHeld:
		l.log.Debug("lease held by another worker", logx.String("task", rec.Task), logx.String("schedule", rec.Schedule), logx.String("key", rec.Key))
	default:
		return 0, cronerr.Store("claim lease", errors.New("store returned no outcome"))
	}
	return out, nil
}

// Release applies p to a lease won by TryClaim. With ReleaseDelayed the call
// blocks for the delay before deleting. An interrupted delay still deletes
// the row.
func (l *Ledger) Release(ctx context.Context, key string, p ReleasePolicy) error {
	switch p.Mode {
	case ReleaseRetain:
		return nil
	case ReleaseDelayed:
		l.log.Debug("holding lease before release", logx.String("key", key), logx.Duration("delay", p.Delay))
		if err := l.sleep(ctx, p.Delay); err != nil {
			l.log.Debug("release delay cut short", logx.String("key", key), logx.Err(err))
		}
	case ReleaseImmediate:
	default:
		return cronerr.Configuration("release policy not set")
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseDeleteTimeout)
	defer cancel()
	if err := l.store.Delete(dctx, key); err != nil {
		return cronerr.Store("release lease", err)
	}
	l.log.Debug("lease released", logx.String("key", key))
	return nil
}

// Sweep deletes rows older than olderThan. Retained slot leases are only
// ever removed here.
func (l *Ledger) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	if err := l.Check(ctx); err != nil {
		return 0, err
	}
	cutoff := l.now().Add(-olderThan)
	n, err := l.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return n, cronerr.Store("sweep leases", err)
	}
	if n > 0 {
		l.log.Info("expired leases swept", logx.Int64("removed", n), logx.Time("cutoff", cutoff))
	}
	return n, nil
}
