package crontask

import "context"

// Task is the caller's unit of work. Run reports success.
type Task interface {
	Name() string
	Run(ctx context.Context) bool
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) bool
}

func (f funcTask) Name() string                 { return f.name }
func (f funcTask) Run(ctx context.Context) bool { return f.fn(ctx) }

// Func adapts fn to a Task called name.
func Func(name string, fn func(ctx context.Context) bool) Task {
	return funcTask{name: name, fn: fn}
}
