package lease

import (
	"context"
	"errors"
	"time"
)

// DefaultTable is the table (or directory) lease rows live in.
const DefaultTable = "lbct_tasks"

// ErrTableMissing is wrapped by Store.Probe (and any other Store call) when
// the lease table has not been provisioned.
var ErrTableMissing = errors.New("lease table missing")

// Outcome of a claim attempt.
type Outcome int

const (
	Claimed Outcome = iota + 1
	AlreadyHeld
)

func (o Outcome) String() string {
	switch o {
	case Claimed:
		return "claimed"
	case AlreadyHeld:
		return "already_held"
	default:
		return "unknown"
	}
}

// Record is one persisted lease row.
type Record struct {
	Key       string    `json:"unique_hash"`
	Task      string    `json:"task"`
	Schedule  string    `json:"schedule"`
	CreatedAt time.Time `json:"date_created"`
	Worker    string    `json:"worker,omitempty"`
}

// Store is the capability a backend must provide.
//
// InsertUnique must be atomic per key: of N concurrent inserts with the same
// Key exactly one returns Claimed. Backends translate their own
// constraint-violation signal to AlreadyHeld; callers never see vendor codes.
type Store interface {
	// Probe verifies the lease table exists without modifying it.
	Probe(ctx context.Context) error
	InsertUnique(ctx context.Context, rec Record) (Outcome, error)
	// Delete removes the row with key. Deleting a missing row is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteBefore removes rows created before cutoff and returns how many.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
