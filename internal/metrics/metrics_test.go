package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"cronlease/pkg/crontask"
	"cronlease/pkg/lease"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		res  crontask.Result
		err  error
		want string
	}{
		{crontask.Result{}, nil, ResultNotDue},
		{crontask.Result{Due: true, Lease: lease.AlreadyHeld}, nil, ResultLost},
		{crontask.Result{Due: true, Lease: lease.Claimed, Ran: true, OK: true}, nil, ResultOK},
		{crontask.Result{Due: true, Ran: true}, nil, ResultFailed},
		{crontask.Result{Due: true}, errors.New("store down"), ResultError},
		{crontask.Result{Due: true, Ran: true, OK: true}, errors.New("release"), ResultOK},
	}
	for _, tt := range tests {
		if got := Classify(tt.res, tt.err); got != tt.want {
			t.Fatalf("Classify(%+v, %v) = %s, want %s", tt.res, tt.err, got, tt.want)
		}
	}
}

func TestObserveEvaluation(t *testing.T) {
	t.Parallel()
	m := New()
	slot := time.Date(2022, 2, 8, 10, 0, 0, 0, time.UTC)
	m.ObserveEvaluation("report", crontask.Result{Slot: slot, Due: true, Lease: lease.Claimed, Ran: true, OK: true, Took: time.Second}, nil)
	m.ObserveEvaluation("report", crontask.Result{Slot: slot, Due: true, Lease: lease.AlreadyHeld}, nil)
	m.ObserveEvaluation("report", crontask.Result{Slot: slot, Due: true, Ran: true, OK: true}, errors.New("release failed"))

	if v := testutil.ToFloat64(m.evaluations.WithLabelValues("report", ResultOK)); v != 2 {
		t.Fatalf("ok evaluations = %v", v)
	}
	if v := testutil.ToFloat64(m.evaluations.WithLabelValues("report", ResultLost)); v != 1 {
		t.Fatalf("lost evaluations = %v", v)
	}
	if v := testutil.ToFloat64(m.storeErrors.WithLabelValues("release")); v != 1 {
		t.Fatalf("release errors = %v", v)
	}
	if v := testutil.ToFloat64(m.lastSuccess.WithLabelValues("report")); v != float64(slot.Unix()) {
		t.Fatalf("last success = %v", v)
	}

	m.ObserveSweep(3, nil)
	m.ObserveSweep(0, errors.New("x"))
	if v := testutil.ToFloat64(m.swept); v != 3 {
		t.Fatalf("swept = %v", v)
	}

	m.ObserveSkipped("report")
	if v := testutil.ToFloat64(m.evaluations.WithLabelValues("report", ResultSkipped)); v != 1 {
		t.Fatalf("skipped evaluations = %v", v)
	}
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObserveEvaluation("x", crontask.Result{}, nil)
	m.ObserveSweep(1, nil)
	m.ObserveSkipped("x")
	m.ObserveReload(nil)
	m.SetTasks(2)
}

func TestHandler(t *testing.T) {
	t.Parallel()
	m := New()
	m.SetTasks(4)
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "cronlease_tasks 4") {
		t.Fatalf("metrics body missing gauge:\n%s", body)
	}
}

func TestPprofRequiresToken(t *testing.T) {
	t.Parallel()
	m := New()
	m.EnablePprof("s3cret")
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "no token", path: "/debug/pprof/cmdline", want: 401},
		{name: "wrong token", path: "/debug/pprof/cmdline?token=nope", want: 401},
		{name: "query token", path: "/debug/pprof/cmdline?token=s3cret", want: 200},
		{name: "bearer", path: "/debug/pprof/cmdline", header: "Bearer s3cret", want: 200},
		{name: "metrics unauthenticated", path: "/metrics", want: 200},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", srv.URL+tt.path, nil)
		req.RequestURI = ""
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.want)
		}
	}
}

func TestCheckBind(t *testing.T) {
	t.Parallel()
	m := New()
	m.EnablePprof("")
	if err := m.checkBind("127.0.0.1:9464"); err != nil {
		t.Fatalf("loopback: %v", err)
	}
	if err := m.checkBind(":9464"); err == nil {
		t.Fatalf("all-interfaces bind without token accepted")
	}
	m.EnablePprof("tok")
	if err := m.checkBind("0.0.0.0:9464"); err != nil {
		t.Fatalf("token set: %v", err)
	}
}
