// Package metrics exposes the daemon's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cronlease/pkg/crontask"
	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
)

// Evaluation results.
const (
	ResultNotDue = "not_due"
	ResultLost   = "lost"
	ResultOK     = "ok"
	ResultFailed = "failed"
	ResultError  = "error"
	// ResultSkipped: the previous evaluation of the task was still running.
	ResultSkipped = "skipped"
)

// Metrics owns a private registry. A nil *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	evaluations   *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	lastSuccess   *prometheus.GaugeVec
	storeErrors   *prometheus.CounterVec
	swept         prometheus.Counter
	configReloads *prometheus.CounterVec
	tasks         prometheus.Gauge

	pprof      bool
	pprofToken string
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cronlease_evaluations_total",
			Help: "Task evaluations by result (not_due, lost, ok, failed, error, skipped).",
		}, []string{"task", "result"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cronlease_task_duration_seconds",
			Help:    "Wall time of task runs on this worker.",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"task"}),
		lastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cronlease_last_success_timestamp_seconds",
			Help: "Slot of the last successful run on this worker.",
		}, []string{"task"}),
		storeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cronlease_store_errors_total",
			Help: "Lease store failures by operation.",
		}, []string{"op"}),
		swept: f.NewCounter(prometheus.CounterOpts{
			Name: "cronlease_leases_swept_total",
			Help: "Retained lease rows deleted by the sweeper.",
		}),
		configReloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cronlease_config_reloads_total",
			Help: "Config reloads by outcome.",
		}, []string{"outcome"}),
		tasks: f.NewGauge(prometheus.GaugeOpts{
			Name: "cronlease_tasks",
			Help: "Configured tasks.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Classify maps an evaluation to its result label.
func Classify(res crontask.Result, err error) string {
	switch {
	case err != nil && !res.Ran:
		return ResultError
	case !res.Due:
		return ResultNotDue
	case res.Lease == lease.AlreadyHeld:
		return ResultLost
	case res.OK:
		return ResultOK
	default:
		return ResultFailed
	}
}

// ObserveEvaluation records one Runner.Evaluate call.
func (m *Metrics) ObserveEvaluation(task string, res crontask.Result, err error) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(task, Classify(res, err)).Inc()
	if res.Ran {
		m.runDuration.WithLabelValues(task).Observe(res.Took.Seconds())
		if res.OK {
			m.lastSuccess.WithLabelValues(task).Set(float64(res.Slot.Unix()))
		}
	}
	if err != nil {
		op := "claim"
		if res.Ran {
			op = "release"
		}
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

// ObserveSkipped records a slot skipped because the task was still busy.
func (m *Metrics) ObserveSkipped(task string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(task, ResultSkipped).Inc()
}

func (m *Metrics) ObserveSweep(n int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.storeErrors.WithLabelValues("sweep").Inc()
		return
	}
	m.swept.Add(float64(n))
}

func (m *Metrics) ObserveReload(err error) {
	if m == nil {
		return
	}
	outcome := "applied"
	if err != nil {
		outcome = "rejected"
	}
	m.configReloads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetTasks(n int) {
	if m == nil {
		return
	}
	m.tasks.Set(float64(n))
}

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg}))
		if m.pprof {
			m.mountPprof(mux)
		}
	}
	return mux
}

// Serve listens on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log logx.Logger) error {
	if err := m.checkBind(addr); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("metrics listening", logx.String("addr", addr), logx.Bool("pprof", m != nil && m.pprof))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}
