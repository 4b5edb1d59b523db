// Package crontask decides whether a scheduled task runs on this worker.
//
// A Runner takes one snapshot of the clock, checks it against a single
// schedule and, in load-balanced mode, races other workers for a lease in a
// shared store before invoking the task:
//
//	ok, err := crontask.New().
//		Timezone("Europe/Berlin").
//		Store(st).
//		LoadBalanced().
//		Task(crontask.Func("report", sendReport)).
//		DailyAt("02:30").
//		Run(ctx)
//
// ok is true only when the task ran here and reported success. Losing the
// race, or the slot not being due, is (false, nil).
package crontask
