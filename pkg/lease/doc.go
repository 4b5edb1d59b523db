// Package lease arbitrates "exactly one worker per slot" through a shared
// store's uniqueness constraint.
//
// A claim is an insert of a Record whose Key is derived from the task and
// the slot. The first insert wins; every other worker's insert collides and
// is reported as AlreadyHeld, which is a normal outcome and never an error.
// Any other store failure is a *cronerr.Error of KindStore.
//
// Backends live in pkg/storage; MemoryStore here is enough for tests and for
// single-process use.
package lease
