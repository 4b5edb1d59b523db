package config

// Config is the daemon configuration file (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	// Timezone every schedule is evaluated in. Empty means UTC.
	Timezone string `json:"timezone"`
	// Worker names this process in claimed lease rows.
	// Empty means "<hostname>-<random>".
	Worker string `json:"worker,omitempty"`

	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	Lease   LeaseConfig   `json:"lease"`
	Metrics MetricsConfig `json:"metrics"`
	Alerts  AlertsConfig  `json:"alerts"`
	Tasks   []TaskConfig  `json:"tasks"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the lease store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./cronlease.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"` // postgres (do not log)
	Table       string `json:"table,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	Provision   bool   `json:"provision,omitempty"`
}

// LeaseConfig holds the defaults for load-balanced tasks.
type LeaseConfig struct {
	// Key is "slot" (default) or "task".
	Key string `json:"key,omitempty"`
	// ReleaseAfter is "retain", "immediate" or a duration. Empty picks the
	// key policy's default.
	ReleaseAfter string `json:"release_after,omitempty"`
	// RetainFor is how old a row must be before the sweeper deletes it.
	RetainFor  string `json:"retain_for,omitempty"`
	SweepEvery string `json:"sweep_every,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9464"
	// Pprof mounts /debug/pprof/ on the same listener. A non-loopback Addr
	// then requires Token.
	Pprof bool   `json:"pprof,omitempty"`
	Token string `json:"token,omitempty"` // do not log
}

type AlertsConfig struct {
	Telegram TelegramAlerts `json:"telegram"`
}

// TelegramAlerts forwards warn+ log lines to a Telegram chat.
type TelegramAlerts struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"` // do not log
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// TaskConfig is one scheduled shell command.
type TaskConfig struct {
	Name     string   `json:"name"`
	Schedule string   `json:"schedule"` // e.g. "dailyAt(02:30)"
	Mode     string   `json:"mode"`     // local | loadBalanced
	Command  []string `json:"command"`
	Dir      string   `json:"dir,omitempty"`
	Env      []string `json:"env,omitempty"`
	Timeout  string   `json:"timeout,omitempty"`

	// Per-task overrides of the lease section.
	Key          string `json:"key,omitempty"`
	ReleaseAfter string `json:"release_after,omitempty"`
}
