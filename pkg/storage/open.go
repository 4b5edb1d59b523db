package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
)

const defaultBusyTimeout = 5000 // ms

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Open initializes the configured lease store.
func Open(cfg Config, log logx.Logger) (lease.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = lease.DefaultTable
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid lease table name %q", cfg.Table)
	}
	cfg.Table = table

	var (
		st  lease.Store
		err error
	)
	switch driver {
	case "memory":
		return lease.NewMemoryStore(), nil
	case "file":
		st, err = openFile(cfg, log)
	case "sqlite", "sqlite3":
		st, err = openSQLite(cfg, log)
	case "postgres", "postgresql", "pgx":
		st, err = openPostgres(cfg, log)
	case "":
		return nil, fmt.Errorf("storage driver is required")
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Provision {
		if err := Provision(context.Background(), st); err != nil {
			_ = st.Close()
			return nil, err
		}
		log.Info("lease table provisioned", logx.String("driver", driver), logx.String("table", table))
	}
	return st, nil
}

// Provision creates the lease table for stores that support it.
func Provision(ctx context.Context, st lease.Store) error {
	p, ok := st.(Provisioner)
	if !ok {
		return nil
	}
	if err := p.Provision(ctx); err != nil {
		return fmt.Errorf("provision lease table: %w", err)
	}
	return nil
}
