package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Service owns the live root logger and its sinks. Apply swaps them at
// runtime; every Logger derived from the Service follows.
type Service struct {
	mu  sync.Mutex
	cfg Config

	root atomic.Value // zerolog.Logger

	file    *os.File
	console io.Writer

	alerts *alertSink
}

// New creates the logging service, applies cfg and returns the root Logger.
// sender may be nil, in which case cfg.Alerts is ignored.
func New(cfg Config, sender AlertSender) (*Service, Logger) {
	setup()
	s := &Service{console: os.Stdout}
	if sender != nil {
		s.alerts = newAlertSink(sender)
	}
	s.root.Store(rootFor(consoleWriter(s.console), cfg.Level))
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	zl, ok := s.root.Load().(zerolog.Logger)
	if !ok {
		return zerolog.Nop()
	}
	return zl
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Close flushes queued alerts and closes the log file.
func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()

	if s.alerts != nil {
		s.alerts.stop()
	}
	if f != nil {
		return f.Close()
	}
	return nil
}

// Apply swaps logger outputs and levels. It is safe to call concurrently.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	writers := make([]io.Writer, 0, 3)
	if cfg.Console {
		writers = append(writers, consoleWriter(s.console))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = "./cronlease.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: failed opening log file %q: %v\n", path, err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if s.alerts != nil {
		s.alerts.configure(cfg.Alerts)
		if cfg.Alerts.Enabled {
			writers = append(writers, s.alerts)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(s.console))
	}

	s.root.Store(rootFor(zerolog.MultiLevelWriter(writers...), cfg.Level))
}

// ---- Alert sink ----

// AlertSender delivers one formatted log line to an operator channel.
type AlertSender interface {
	SendAlert(ctx context.Context, text string) error
}

// AlertFunc adapts a function to AlertSender.
type AlertFunc func(ctx context.Context, text string) error

func (f AlertFunc) SendAlert(ctx context.Context, text string) error { return f(ctx, text) }

const (
	alertQueueSize    = 256
	alertFlushTimeout = 3 * time.Second
)

type alertSink struct {
	sender AlertSender
	queue  chan string

	once   sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	limiter  *rate.Limiter
	minLevel zerolog.Level
}

func newAlertSink(sender AlertSender) *alertSink {
	return &alertSink{
		sender:   sender,
		queue:    make(chan string, alertQueueSize),
		limiter:  rate.NewLimiter(1, 1),
		minLevel: zerolog.WarnLevel,
	}
}

func (a *alertSink) configure(cfg AlertConfig) {
	rps := max(1, cfg.RatePerSec)
	a.mu.Lock()
	a.minLevel = ParseLevel(cfg.MinLevel, LevelWarn)
	a.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	a.mu.Unlock()

	if cfg.Enabled {
		a.once.Do(func() {
			ctx, cancel := context.WithCancel(context.Background())
			a.cancel = cancel
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.worker(ctx)
			}()
		})
	}
}

func (a *alertSink) stop() {
	if a.cancel != nil {
		a.cancel()
		a.wg.Wait()
	}
}

func (a *alertSink) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return
		case msg := <-a.queue:
			_ = a.sender.SendAlert(ctx, msg)
		}
	}
}

// drain sends what is still queued, bounded by alertFlushTimeout.
func (a *alertSink) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), alertFlushTimeout)
	defer cancel()
	for {
		select {
		case msg := <-a.queue:
			if err := a.sender.SendAlert(ctx, msg); err != nil && ctx.Err() != nil {
				return
			}
		default:
			return
		}
	}
}

func (a *alertSink) Write(p []byte) (int, error) {
	return a.WriteLevel(zerolog.InfoLevel, p)
}

func (a *alertSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	a.mu.Lock()
	lim := a.limiter
	minLevel := a.minLevel
	a.mu.Unlock()

	if level < minLevel || !lim.Allow() {
		return len(p), nil
	}
	msg := formatAlert(p)
	if msg == "" {
		return len(p), nil
	}
	// Never block logging on a slow sender.
	select {
	case a.queue <- msg:
	default:
	}
	return len(p), nil
}
