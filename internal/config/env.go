package config

import (
	"strings"

	env "github.com/caarlos0/env/v11"
)

const EnvPrefix = "CRONLEASE_"

// EnvOverrides are settings that may come from the environment instead of
// the config file. Set values win over the file.
type EnvOverrides struct {
	Timezone      string `env:"TIMEZONE"`
	Worker        string `env:"WORKER"`
	LogLevel      string `env:"LOG_LEVEL"`
	StorageDriver string `env:"STORAGE_DRIVER"`
	StoragePath   string `env:"STORAGE_PATH"`
	StorageDSN    string `env:"STORAGE_DSN"`
	TelegramToken string `env:"TELEGRAM_TOKEN"`
}

// ReadEnv parses CRONLEASE_* variables from environ, or from the process
// environment when environ is nil.
func ReadEnv(environ map[string]string) (EnvOverrides, error) {
	var o EnvOverrides
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return EnvOverrides{}, err
	}
	return o, nil
}

// Apply copies the set overrides into cfg.
func (o EnvOverrides) Apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.Timezone, o.Timezone)
	set(&cfg.Worker, o.Worker)
	set(&cfg.Logging.Level, o.LogLevel)
	set(&cfg.Storage.Driver, o.StorageDriver)
	set(&cfg.Storage.Path, o.StoragePath)
	set(&cfg.Storage.DSN, o.StorageDSN)
	set(&cfg.Alerts.Telegram.Token, o.TelegramToken)
}
