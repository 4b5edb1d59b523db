package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cronlease/pkg/crontask"
	"cronlease/pkg/lease"
	logx "cronlease/pkg/logx"
	"cronlease/pkg/storage"
	"cronlease/pkg/timing"
)

const (
	DefaultRetainFor   = 24 * time.Hour
	DefaultSweepEvery  = time.Hour
	DefaultMetricsAddr = "127.0.0.1:9464"
)

// LeaseSettings is the resolved lease section.
type LeaseSettings struct {
	Keys lease.KeyPolicy
	// Release is nil when the key policy's default applies.
	Release    *lease.ReleasePolicy
	RetainFor  time.Duration
	SweepEvery time.Duration
}

// TaskSpec is a validated task entry.
type TaskSpec struct {
	Name     string
	Schedule timing.Schedule
	Mode     crontask.Mode
	Command  []string
	Dir      string
	Env      []string
	Timeout  time.Duration // 0: no timeout
	Keys     lease.KeyPolicy
	Release  *lease.ReleasePolicy
}

// LogConfig maps the logging and alert sections onto logx.
func (c *Config) LogConfig() logx.Config {
	tg := c.Alerts.Telegram
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
		Alerts: logx.AlertConfig{
			Enabled:    tg.Enabled,
			MinLevel:   tg.MinLevel,
			RatePerSec: tg.RatePerSec,
		},
	}
}

func (c *Config) StorageConfig() (storage.Config, error) {
	busy, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		DSN:         c.Storage.DSN,
		Table:       c.Storage.Table,
		BusyTimeout: busy,
		Provision:   c.Storage.Provision,
	}, nil
}

func (c *Config) LeaseSettings() (LeaseSettings, error) {
	var (
		s   LeaseSettings
		err error
	)
	if s.Keys, err = lease.ParseKeyPolicy(c.Lease.Key); err != nil {
		return s, fmt.Errorf("lease.key: %w", err)
	}
	if s.Release, err = parseRelease("lease.release_after", c.Lease.ReleaseAfter); err != nil {
		return s, err
	}
	if s.RetainFor, err = ParsePositiveDuration("lease.retain_for", c.Lease.RetainFor, DefaultRetainFor); err != nil {
		return s, err
	}
	if s.SweepEvery, err = ParsePositiveDuration("lease.sweep_every", c.Lease.SweepEvery, DefaultSweepEvery); err != nil {
		return s, err
	}
	return s, nil
}

func parseRelease(path, raw string) (*lease.ReleasePolicy, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	p, err := lease.ParseRelease(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &p, nil
}

// TaskSpecs resolves every task entry. Lease fields fall back to the lease
// section.
func (c *Config) TaskSpecs() ([]TaskSpec, error) {
	ls, err := c.LeaseSettings()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(c.Tasks))
	out := make([]TaskSpec, 0, len(c.Tasks))
	for i, tc := range c.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			return nil, fmt.Errorf("%s.name: %s", path, crontask.MsgNoName)
		}
		path = fmt.Sprintf("tasks[%s]", name)
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%s: duplicate task name", path)
		}
		seen[name] = struct{}{}

		spec := TaskSpec{Name: name, Command: tc.Command, Dir: tc.Dir, Env: tc.Env, Keys: ls.Keys, Release: ls.Release}
		if spec.Schedule, err = timing.Parse(tc.Schedule); err != nil {
			return nil, fmt.Errorf("%s.schedule: %w", path, err)
		}
		if spec.Mode, err = crontask.ParseMode(tc.Mode); err != nil {
			return nil, fmt.Errorf("%s.mode: %w", path, err)
		}
		if len(tc.Command) == 0 || strings.TrimSpace(tc.Command[0]) == "" {
			return nil, fmt.Errorf("%s.command: required", path)
		}
		if spec.Timeout, err = ParseDurationField(path+".timeout", tc.Timeout); err != nil {
			return nil, err
		}
		if strings.TrimSpace(tc.Key) != "" {
			if spec.Keys, err = lease.ParseKeyPolicy(tc.Key); err != nil {
				return nil, fmt.Errorf("%s.key: %w", path, err)
			}
		}
		if r, err := parseRelease(path+".release_after", tc.ReleaseAfter); err != nil {
			return nil, err
		} else if r != nil {
			spec.Release = r
		}
		out = append(out, spec)
	}
	return out, nil
}

// HasLoadBalanced reports whether any task needs the lease store.
func HasLoadBalanced(specs []TaskSpec) bool {
	for _, s := range specs {
		if s.Mode == crontask.LoadBalanced {
			return true
		}
	}
	return false
}

// Validate checks everything the daemon resolves at startup. It is the
// validator installed for hot reloads.
func Validate(_ context.Context, c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if _, err := timing.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if !logx.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if _, err := c.StorageConfig(); err != nil {
		errs = append(errs, err)
	}
	specs, err := c.TaskSpecs()
	if err != nil {
		errs = append(errs, err)
	}
	if HasLoadBalanced(specs) && strings.TrimSpace(c.Storage.Driver) == "" {
		errs = append(errs, errors.New("storage.driver: required by loadBalanced tasks"))
	}
	if tg := c.Alerts.Telegram; tg.Enabled {
		if strings.TrimSpace(tg.Token) == "" {
			errs = append(errs, errors.New("alerts.telegram.token: required when enabled"))
		}
		if tg.ChatID == 0 {
			errs = append(errs, errors.New("alerts.telegram.chat_id: required when enabled"))
		}
	}
	return errors.Join(errs...)
}
