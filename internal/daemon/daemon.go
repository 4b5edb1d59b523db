package daemon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"cronlease/internal/config"
	"cronlease/internal/metrics"
	"cronlease/internal/runtime/supervisor"
	"cronlease/pkg/cronerr"
	"cronlease/pkg/crontask"
	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
	"cronlease/pkg/storage"
	"cronlease/pkg/timing"
)

const (
	tickSpec        = "* * * * *"
	shutdownTimeout = 15 * time.Second
)

// Options wires a Daemon. Config must already be loaded.
type Options struct {
	Config *config.ConfigManager
	// Logs, when set, receives logging changes on reload.
	Logs    *logx.Service
	Log     logx.Logger
	Metrics *metrics.Metrics
	// Store overrides the store opened from the storage section. The daemon
	// does not close a store it did not open.
	Store    lease.Store
	Notifier Notifier
	Now      func() time.Time
}

type Daemon struct {
	cfgm     *config.ConfigManager
	logs     *logx.Service
	log      logx.Logger
	metrics  *metrics.Metrics
	notifier Notifier
	now      func() time.Time

	worker    string
	store     lease.Store
	ownsStore bool
	ledger    *lease.Ledger

	tasks atomic.Pointer[taskSet]

	// busy holds the names of tasks with an evaluation in flight. It is
	// keyed by name so it survives task-set swaps.
	busyMu   sync.Mutex
	busy     map[string]struct{}
	inflight sync.WaitGroup

	// storeErrs throttles store-error logs; they are alert-level.
	storeErrs *rate.Limiter
}

// taskSet is swapped as a whole on reload.
type taskSet struct {
	loc     *time.Location
	lease   config.LeaseSettings
	runners []*crontask.Runner
}

func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Config.Get() == nil {
		return nil, cronerr.Configuration("config not loaded")
	}
	cfg := opts.Config.Get()

	d := &Daemon{
		cfgm:      opts.Config,
		logs:      opts.Logs,
		log:       opts.Log,
		metrics:   opts.Metrics,
		notifier:  opts.Notifier,
		now:       opts.Now,
		worker:    resolveWorker(cfg.Worker),
		store:     opts.Store,
		storeErrs: rate.NewLimiter(rate.Every(time.Minute), 3),
		busy:      make(map[string]struct{}),
	}
	if d.log.IsZero() {
		d.log = logx.Nop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.metrics == nil && cfg.Metrics.Enabled {
		d.metrics = metrics.New()
	}

	if d.store == nil && strings.TrimSpace(cfg.Storage.Driver) != "" {
		sc, err := cfg.StorageConfig()
		if err != nil {
			return nil, err
		}
		st, err := storage.Open(sc, d.log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		d.store, d.ownsStore = st, true
	}
	if d.store != nil {
		d.ledger = lease.NewLedger(d.store, lease.WithLogger(d.log.With(logx.String("comp", "lease"))))
	}

	ts, err := d.buildTaskSet(cfg)
	if err != nil {
		d.closeStore()
		return nil, err
	}
	d.tasks.Store(ts)
	d.metrics.SetTasks(len(ts.runners))
	return d, nil
}

func (d *Daemon) Worker() string { return d.worker }

func (d *Daemon) Metrics() *metrics.Metrics { return d.metrics }

// Tasks returns the names of the active task set.
func (d *Daemon) Tasks() []string {
	ts := d.tasks.Load()
	out := make([]string, 0, len(ts.runners))
	for _, r := range ts.runners {
		out = append(out, r.Name())
	}
	return out
}

func (d *Daemon) buildTaskSet(cfg *config.Config) (*taskSet, error) {
	loc, err := timing.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	ls, err := cfg.LeaseSettings()
	if err != nil {
		return nil, err
	}
	specs, err := cfg.TaskSpecs()
	if err != nil {
		return nil, err
	}
	if config.HasLoadBalanced(specs) && d.ledger == nil {
		return nil, cronerr.Configuration("loadBalanced tasks need a lease store (storage changes require a restart)")
	}

	ts := &taskSet{loc: loc, lease: ls, runners: make([]*crontask.Runner, 0, len(specs))}
	for _, spec := range specs {
		tlog := d.log.With(logx.String("comp", "task"))
		b := crontask.New().
			Location(loc).
			Mode(spec.Mode).
			Schedule(spec.Schedule).
			Task(commandTask{spec: spec, worker: d.worker, log: tlog.With(logx.String("task", spec.Name))}).
			Worker(d.worker).
			Keys(spec.Keys).
			Logger(tlog)
		if spec.Mode == crontask.LoadBalanced {
			b.Ledger(d.ledger)
		}
		if spec.Release != nil {
			b.Release(*spec.Release)
		}
		r, err := b.Build()
		if err != nil {
			return nil, err
		}
		ts.runners = append(ts.runners, r)
	}
	return ts, nil
}

// Tick starts one evaluation per task at the same instant and returns
// without waiting for them. A task whose previous evaluation is still
// running skips this slot; other tasks are unaffected. The returned channel
// is closed once every evaluation started by this tick has finished.
func (d *Daemon) Tick(ctx context.Context, at time.Time) <-chan struct{} {
	ts := d.tasks.Load()
	var wg sync.WaitGroup
	for _, r := range ts.runners {
		if !d.acquire(r.Name()) {
			d.metrics.ObserveSkipped(r.Name())
			d.log.Warn("previous run still in progress; slot skipped",
				logx.String("task", r.Name()), logx.Time("slot", timing.Take(at, ts.loc).Slot()))
			continue
		}
		wg.Add(1)
		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			defer wg.Done()
			defer d.release(r.Name())
			res, err := r.Evaluate(ctx, at)
			d.metrics.ObserveEvaluation(r.Name(), res, err)
			if err != nil {
				d.storeError("evaluation failed", err, logx.String("task", r.Name()), logx.Bool("ran", res.Ran))
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func (d *Daemon) acquire(name string) bool {
	d.busyMu.Lock()
	defer d.busyMu.Unlock()
	if _, ok := d.busy[name]; ok {
		return false
	}
	d.busy[name] = struct{}{}
	return true
}

func (d *Daemon) release(name string) {
	d.busyMu.Lock()
	delete(d.busy, name)
	d.busyMu.Unlock()
}

// waitInflight waits for running evaluations or ctx.
func (d *Daemon) waitInflight(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Daemon) storeError(msg string, err error, fields ...logx.Field) {
	fields = append(fields, logx.Err(err))
	if errors.Is(err, lease.ErrTableMissing) {
		fields = append(fields, logx.String("hint", "run `cronlease provision`"))
	}
	if d.storeErrs.Allow() {
		d.log.Error(msg, fields...)
		return
	}
	d.log.Debug(msg+" (throttled)", fields...)
}

// Sweep deletes lease rows older than the configured retention.
func (d *Daemon) Sweep(ctx context.Context) (int64, error) {
	if d.ledger == nil {
		return 0, nil
	}
	n, err := d.ledger.Sweep(ctx, d.tasks.Load().lease.RetainFor)
	d.metrics.ObserveSweep(n, err)
	if err != nil {
		d.storeError("lease sweep failed", err)
	}
	return n, err
}

func (d *Daemon) sweepLoop(ctx context.Context) error {
	for {
		t := time.NewTimer(d.tasks.Load().lease.SweepEvery)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		_, _ = d.Sweep(ctx)
	}
}

// validate is the config manager's reload gate.
func (d *Daemon) validate(ctx context.Context, cfg *config.Config) error {
	err := config.Validate(ctx, cfg)
	if err == nil {
		_, err = d.buildTaskSet(cfg)
	}
	if err != nil {
		d.metrics.ObserveReload(err)
	}
	return err
}

// Apply switches to cfg. The new task set takes effect on the next tick.
func (d *Daemon) Apply(cfg *config.Config) error {
	ts, err := d.buildTaskSet(cfg)
	if err != nil {
		d.metrics.ObserveReload(err)
		return err
	}
	d.tasks.Store(ts)
	if d.logs != nil {
		d.logs.Apply(cfg.LogConfig())
	}
	d.metrics.SetTasks(len(ts.runners))
	d.metrics.ObserveReload(nil)
	return nil
}

func (d *Daemon) applyLoop(ctx context.Context) error {
	sub := d.cfgm.Subscribe(4)
	defer d.cfgm.Unsubscribe(sub)

	last := d.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			change := config.SummarizeConfigChange(last, next)
			if change.Empty() {
				d.log.Debug("config reload received, but no effective changes detected")
				continue
			}
			if err := d.Apply(next); err != nil {
				d.log.Warn("config reload not applied", logx.Err(err))
				continue
			}
			last = next
			d.log.Info("config applied", change.Fields()...)
			if len(change.RestartRequired) > 0 {
				d.log.Warn("some changes take effect after restart", logx.String("sections", strings.Join(change.RestartRequired, ",")))
			}
		}
	}
}

// Run ticks every minute until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.cfgm.Get()
	ts := d.tasks.Load()
	sup := supervisor.New(ctx,
		supervisor.WithLogger(d.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	d.cfgm.SetValidator(d.validate)

	if d.ledger != nil {
		if err := d.ledger.Check(ctx); err != nil {
			d.storeError("lease store not ready", err)
		}
	}

	cl := cronLogger{log: d.log.With(logx.String("comp", "cron"))}
	c := cron.New(
		cron.WithLocation(ts.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	if _, err := c.AddFunc(tickSpec, func() { d.Tick(sup.Context(), d.now()) }); err != nil {
		_ = sup.Stop(context.Background())
		return err
	}
	c.Start()

	if cfg.Metrics.Enabled {
		addr := strings.TrimSpace(cfg.Metrics.Addr)
		if addr == "" {
			addr = config.DefaultMetricsAddr
		}
		if cfg.Metrics.Pprof {
			d.metrics.EnablePprof(cfg.Metrics.Token)
		}
		sup.Go("metrics", func(ctx context.Context) error {
			return d.metrics.Serve(ctx, addr, d.log.With(logx.String("comp", "metrics")))
		})
	}
	if d.ledger != nil {
		sup.Go("lease.sweep", d.sweepLoop)
	}
	sup.Go("config.apply", d.applyLoop)
	sup.GoRestart("config.watch", time.Second, 30*time.Second, d.cfgm.Watch)
	if iv := watchdogInterval(); iv > 0 && d.notifier != nil {
		sup.Go("systemd.watchdog", func(ctx context.Context) error { return d.watchdogLoop(ctx, iv) })
	}

	d.notify(sd.SdNotifyReady)
	d.log.Info("daemon started",
		logx.String("worker", d.worker),
		logx.Int("tasks", len(ts.runners)),
		logx.String("tz", ts.loc.String()),
	)

	<-sup.Context().Done()
	d.notify(sd.SdNotifyStopping)
	d.log.Info("daemon stopping")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	<-c.Stop().Done()
	if err := d.waitInflight(stopCtx); err != nil {
		d.log.Warn("evaluations still running at shutdown deadline", logx.Err(err))
	}
	err := sup.Stop(stopCtx)
	d.closeStore()
	return err
}

func (d *Daemon) closeStore() {
	if !d.ownsStore || d.store == nil {
		return
	}
	if err := d.store.Close(); err != nil {
		d.log.Warn("store close failed", logx.Err(err))
	}
}
