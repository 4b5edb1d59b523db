package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"cronlease/pkg/cronerr"
	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
)

func openTestStore(t *testing.T, driver string, provision bool) lease.Store {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{Driver: driver, Provision: provision}
	switch driver {
	case "sqlite":
		cfg.Path = filepath.Join(dir, "leases.db")
	case "file":
		cfg.Path = dir
	}
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open %s: %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func rec(key string, created time.Time) lease.Record {
	return lease.Record{Key: key, Task: "report", Schedule: "hourlyAt(0)", CreatedAt: created, Worker: "w1"}
}

func TestStoreContract(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"memory", "file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			st := openTestStore(t, driver, true)
			ctx := context.Background()
			now := time.Date(2022, 2, 8, 10, 0, 0, 0, time.UTC)

			if err := st.Probe(ctx); err != nil {
				t.Fatalf("probe: %v", err)
			}
			key := lease.SlotKey("report", "hourlyAt(0)", now)
			out, err := st.InsertUnique(ctx, rec(key, now))
			if err != nil || out != lease.Claimed {
				t.Fatalf("insert = %v, %v", out, err)
			}
			out, err = st.InsertUnique(ctx, rec(key, now))
			if err != nil || out != lease.AlreadyHeld {
				t.Fatalf("duplicate insert = %v, %v", out, err)
			}

			if err := st.Delete(ctx, key); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := st.Delete(ctx, key); err != nil {
				t.Fatalf("deleting a missing row: %v", err)
			}
			out, err = st.InsertUnique(ctx, rec(key, now))
			if err != nil || out != lease.Claimed {
				t.Fatalf("insert after delete = %v, %v", out, err)
			}

			oldKey := lease.SlotKey("report", "hourlyAt(0)", now.Add(-48*time.Hour))
			if _, err := st.InsertUnique(ctx, rec(oldKey, now.Add(-48*time.Hour))); err != nil {
				t.Fatal(err)
			}
			n, err := st.DeleteBefore(ctx, now.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("delete before: %v", err)
			}
			if n != 1 {
				t.Fatalf("deleted %d rows, want 1", n)
			}
			out, err = st.InsertUnique(ctx, rec(key, now))
			if err != nil || out != lease.AlreadyHeld {
				t.Fatalf("fresh row must survive the sweep: %v, %v", out, err)
			}
		})
	}
}

func TestStoreConcurrentClaims(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			st := openTestStore(t, driver, true)
			ctx := context.Background()
			key := lease.TaskKey("report")

			const workers = 16
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				claimed int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					r := rec(key, time.Now())
					r.Worker = fmt.Sprintf("w%d", i)
					out, err := st.InsertUnique(ctx, r)
					if err != nil {
						t.Errorf("insert: %v", err)
						return
					}
					if out == lease.Claimed {
						mu.Lock()
						claimed++
						mu.Unlock()
					}
				}(i)
			}
			wg.Wait()
			if claimed != 1 {
				t.Fatalf("claimed %d times, want exactly once", claimed)
			}
		})
	}
}

func TestMissingTable(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			st := openTestStore(t, driver, false)
			ctx := context.Background()
			if err := st.Probe(ctx); !errors.Is(err, lease.ErrTableMissing) {
				t.Fatalf("probe = %v, want ErrTableMissing", err)
			}

			l := lease.NewLedger(st)
			_, err := l.TryClaim(ctx, rec(lease.TaskKey("report"), time.Now()))
			if !cronerr.Is(err, cronerr.KindStore) || !errors.Is(err, lease.ErrTableMissing) {
				t.Fatalf("claim = %v, want store error wrapping ErrTableMissing", err)
			}

			if err := Provision(ctx, st); err != nil {
				t.Fatalf("provision: %v", err)
			}
			if err := Provision(ctx, st); err != nil {
				t.Fatalf("provision is idempotent: %v", err)
			}
			out, err := l.TryClaim(ctx, rec(lease.TaskKey("report"), time.Now()))
			if err != nil || out != lease.Claimed {
				t.Fatalf("claim after provision = %v, %v", out, err)
			}
		})
	}
}

func TestSQLiteKeepsLeasesAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "leases.db")
	ctx := context.Background()
	key := lease.TaskKey("report")

	st, err := Open(Config{Driver: "sqlite", Path: path, Provision: true}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if out, err := st.InsertUnique(ctx, rec(key, time.Now())); err != nil || out != lease.Claimed {
		t.Fatalf("insert = %v, %v", out, err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st, err = Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if out, err := st.InsertUnique(ctx, rec(key, time.Now())); err != nil || out != lease.AlreadyHeld {
		t.Fatalf("insert after reopen = %v, %v", out, err)
	}
}

func TestPostgresErrorMapping(t *testing.T) {
	t.Parallel()
	dup := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	missing := &pgconn.PgError{Code: "42P01", Message: `relation "lbct_tasks" does not exist`}
	other := &pgconn.PgError{Code: "53300", Message: "too many connections"}

	if !postgresDialect.isDuplicate(dup) {
		t.Fatal("23505 must map to a duplicate")
	}
	if postgresDialect.isDuplicate(other) || postgresDialect.isDuplicate(errors.New("23505")) {
		t.Fatal("only PgError 23505 is a duplicate")
	}
	if !postgresDialect.isMissingTable(missing) || postgresDialect.isMissingTable(dup) {
		t.Fatal("42P01 must map to a missing table")
	}

	s := newSQLStore(nil, postgresDialect, lease.DefaultTable, logx.Nop())
	if err := s.mapErr(missing); !errors.Is(err, lease.ErrTableMissing) {
		t.Fatalf("mapErr = %v", err)
	}
	if err := s.mapErr(other); errors.Is(err, lease.ErrTableMissing) {
		t.Fatal("unrelated errors must pass through")
	}
}

func TestSQLPlaceholders(t *testing.T) {
	t.Parallel()
	pg := newSQLStore(nil, postgresDialect, "leases", logx.Nop())
	q, _, err := pg.qb.Delete(pg.table).Where("unique_hash = ?", "k").ToSql()
	if err != nil {
		t.Fatal(err)
	}
	if q != "DELETE FROM leases WHERE unique_hash = $1" {
		t.Fatalf("postgres query %q", q)
	}
	lite := newSQLStore(nil, sqliteDialect, "leases", logx.Nop())
	q, _, _ = lite.qb.Delete(lite.table).Where("unique_hash = ?", "k").ToSql()
	if q != "DELETE FROM leases WHERE unique_hash = ?" {
		t.Fatalf("sqlite query %q", q)
	}
}

func TestSchema(t *testing.T) {
	t.Parallel()
	ddl, err := Schema("postgres", "jobs")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS jobs") || !strings.Contains(ddl, "TIMESTAMPTZ") {
		t.Fatalf("unexpected ddl:\n%s", ddl)
	}
	if _, err := Schema("sqlite", "bad name"); err == nil {
		t.Fatal("expected invalid table name error")
	}
	if _, err := Schema("file", ""); err == nil {
		t.Fatal("file driver has no SQL schema")
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()
	tests := []Config{
		{Driver: ""},
		{Driver: "mysql"},
		{Driver: "sqlite"},
		{Driver: "file"},
		{Driver: "postgres"},
		{Driver: "memory", Table: "drop table;"},
	}
	for _, cfg := range tests {
		if _, err := Open(cfg, logx.Nop()); err == nil {
			t.Fatalf("Open(%+v): expected error", cfg)
		}
	}
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	t.Parallel()
	st := openTestStore(t, "file", true)
	if _, err := st.InsertUnique(context.Background(), rec("../escape", time.Now())); err == nil {
		t.Fatal("expected invalid key error")
	}
}
