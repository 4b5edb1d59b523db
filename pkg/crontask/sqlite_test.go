package crontask_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cronlease/pkg/cronerr"
	"cronlease/pkg/crontask"
	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
	"cronlease/pkg/storage"
)

func TestHourlyAcrossWorkersSQLite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "leases.db")
	ctx := context.Background()

	var runs int
	task := crontask.Func("report", func(context.Context) bool { runs++; return true })

	// Each worker opens its own connection, like separate processes.
	open := func() lease.Store {
		st, err := storage.Open(storage.Config{Driver: "sqlite", Path: path, Provision: true}, logx.Nop())
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return st
	}
	stores := []lease.Store{open(), open(), open()}

	want := []bool{true, false, false}
	for i, sec := range []int{13, 16, 41} {
		at := time.Date(2022, 2, 8, 10, 0, sec, 0, time.UTC)
		ok, err := crontask.New().Store(stores[i]).LoadBalanced().Task(task).Hourly().At(at).Run(ctx)
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
		if ok != want[i] {
			t.Fatalf("worker %d at 10:00:%02d = %v, want %v", i, sec, ok, want[i])
		}
	}
	if runs != 1 {
		t.Fatalf("task ran %d times, want 1", runs)
	}
}

func TestMissingTableSQLite(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "empty.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	called := false
	task := crontask.Func("report", func(context.Context) bool { called = true; return true })
	ok, err := crontask.New().Store(st).LoadBalanced().Task(task).EveryMinute().
		At(time.Date(2022, 2, 8, 10, 0, 13, 0, time.UTC)).Run(context.Background())
	if ok || called {
		t.Fatalf("ok=%v called=%v", ok, called)
	}
	if !cronerr.Is(err, cronerr.KindStore) || !strings.Contains(err.Error(), lease.DefaultTable) {
		t.Fatalf("err = %v, want store error naming %s", err, lease.DefaultTable)
	}
}
