package crontask

import (
	"context"
	"fmt"
	"time"

	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
	"cronlease/pkg/timing"
)

// Runner is a validated, immutable task configuration. It is safe to
// evaluate from several goroutines; each evaluation is synchronous.
type Runner struct {
	mode    Mode
	sched   timing.Schedule
	task    Task
	loc     *time.Location
	now     func() time.Time
	ledger  *lease.Ledger
	worker  string
	keys    lease.KeyPolicy
	release lease.ReleasePolicy
	log     logx.Logger
}

// Result describes one evaluation.
type Result struct {
	Slot time.Time // evaluated minute in the runner's location
	Due  bool
	// Lease is the claim outcome in load-balanced mode, zero otherwise.
	Lease lease.Outcome
	Key   string
	Ran   bool
	OK    bool // task reported success
	Took  time.Duration
}

// Won reports whether the task ran and succeeded on this worker.
func (r Result) Won() bool { return r.Ran && r.OK }

func (r *Runner) Name() string                 { return r.task.Name() }
func (r *Runner) Mode() Mode                   { return r.mode }
func (r *Runner) Schedule() timing.Schedule    { return r.sched }
func (r *Runner) Location() *time.Location     { return r.loc }
func (r *Runner) Release() lease.ReleasePolicy { return r.release }

// Run evaluates at the runner's clock.
func (r *Runner) Run(ctx context.Context) (bool, error) {
	return r.RunAt(ctx, r.now())
}

// RunAt evaluates at the given instant.
func (r *Runner) RunAt(ctx context.Context, at time.Time) (bool, error) {
	res, err := r.Evaluate(ctx, at)
	return res.Won(), err
}

// Evaluate snapshots at, gates on the schedule and, when due, runs the task
// (behind a lease in load-balanced mode).
//
// Slots that are not due never touch the store. A release failure is
// returned together with the task's result.
func (r *Runner) Evaluate(ctx context.Context, at time.Time) (Result, error) {
	snap := timing.Take(at, r.loc)
	res := Result{Slot: snap.Slot()}
	if !r.sched.Match(snap) {
		r.log.Trace("not due", logx.Time("slot", res.Slot))
		return res, nil
	}
	res.Due = true

	if r.mode == Local {
		r.invoke(ctx, &res)
		return res, nil
	}

	sig := r.sched.Signature()
	res.Key = r.keys.Key(r.task.Name(), sig, res.Slot)
	out, err := r.ledger.TryClaim(ctx, lease.Record{
		Key:       res.Key,
		Task:      r.task.Name(),
		Schedule:  sig,
		CreatedAt: snap.At,
		Worker:    r.worker,
	})
	if err != nil {
		return res, err
	}
	res.Lease = out
	if out != lease.Claimed {
		r.log.Debug("slot claimed by another worker", logx.Time("slot", res.Slot))
		return res, nil
	}

	r.invoke(ctx, &res)

	if err := r.ledger.Release(ctx, res.Key, r.release); err != nil {
		r.log.Warn("lease release failed", logx.String("key", res.Key), logx.Err(err))
		return res, err
	}
	return res, nil
}

func (r *Runner) invoke(ctx context.Context, res *Result) {
	start := time.Now()
	res.Ran = true
	res.OK = r.call(ctx)
	res.Took = time.Since(start)
	if res.OK {
		r.log.Info("task finished", logx.Time("slot", res.Slot), logx.Duration("took", res.Took))
	} else {
		r.log.Warn("task reported failure", logx.Time("slot", res.Slot), logx.Duration("took", res.Took))
	}
}

// call runs the task, turning a panic into a failed run so the lease is
// still released.
func (r *Runner) call(ctx context.Context) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("task panicked", logx.String("panic", fmt.Sprint(rec)), logx.Stack(logx.StackTrace(3, 16)))
			ok = false
		}
	}()
	return r.task.Run(ctx)
}
