package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures a lease store.
//
// Path is the sqlite database file or the file driver's base directory.
// DSN is the postgres connection string. Table defaults to lease.DefaultTable.
// With Provision set, Open creates the table if it does not exist; otherwise
// a missing table surfaces on the first claim.
type Config struct {
	Driver      string        `json:"driver"`
	Path        string        `json:"path"`
	DSN         string        `json:"dsn"`
	Table       string        `json:"table"`
	BusyTimeout time.Duration `json:"-"` // sqlite only; 0 means default
	Provision   bool          `json:"provision"`
}

// Provisioner is implemented by stores that can create their lease table.
type Provisioner interface {
	Provision(ctx context.Context) error
}
