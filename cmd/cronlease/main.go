package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"cronlease/internal/config"
	"cronlease/internal/daemon"
	"cronlease/internal/notify"
	logx "cronlease/pkg/logx"
	"cronlease/pkg/storage"
	"cronlease/pkg/timing"
)

const usage = `usage: cronlease <command> [flags]

commands:
  run        run the daemon
  check      validate a config and print each task's next slot
  provision  create the lease table
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return flag.ErrHelp
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet("cronlease "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "./cronlease.yaml", "path to config (yaml or json)")
	count := fs.Int("n", 1, "check: upcoming slots per task")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "run":
		return runDaemon(ctx, *cfgPath)
	case "check":
		return check(ctx, *cfgPath, *count, time.Now(), stdout)
	case "provision":
		return provision(ctx, *cfgPath, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func loadConfig(ctx context.Context, path string, log logx.Logger) (*config.ConfigManager, *config.Config, error) {
	m := config.NewConfigManager(path)
	m.SetLogger(log.With(logx.String("comp", "config")))
	m.SetValidator(config.Validate)
	cfg, err := m.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}
	return m, cfg, nil
}

func runDaemon(ctx context.Context, path string) error {
	m, cfg, err := loadConfig(ctx, path, logx.NewConsole("INFO"))
	if err != nil {
		return err
	}

	var sender logx.AlertSender
	if tg := cfg.Alerts.Telegram; tg.Enabled {
		t, err := notify.NewTelegram(notify.TelegramConfig{Token: tg.Token, ChatID: tg.ChatID, ThreadID: tg.ThreadID})
		if err != nil {
			return fmt.Errorf("alerts.telegram: %w", err)
		}
		sender = t
	}
	logs, log := logx.New(cfg.LogConfig(), sender)
	defer func() { _ = logs.Close() }()
	m.SetLogger(log.With(logx.String("comp", "config")))

	d, err := daemon.New(daemon.Options{
		Config:   m,
		Logs:     logs,
		Log:      log.With(logx.String("comp", "daemon")),
		Notifier: daemon.SystemdNotifier,
	})
	if err != nil {
		log.Error("daemon init failed", logx.Err(err))
		return err
	}
	if err := d.Run(ctx); err != nil {
		log.Error("daemon stopped with error", logx.Err(err))
		return err
	}
	return nil
}

func check(ctx context.Context, path string, n int, from time.Time, w io.Writer) error {
	_, cfg, err := loadConfig(ctx, path, logx.Nop())
	if err != nil {
		return err
	}
	loc, err := timing.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	specs, err := cfg.TaskSpecs()
	if err != nil {
		return err
	}
	if n < 1 {
		n = 1
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tMODE\tSCHEDULE\tNEXT")
	for _, s := range specs {
		next := "never"
		if slots := timing.NextN(s.Schedule, from, loc, n); len(slots) > 0 {
			next = ""
			for i, at := range slots {
				if i > 0 {
					next += ", "
				}
				next += at.Format(timing.SlotLayout)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Mode, s.Schedule.Signature(), next)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "config ok: %d task(s), timezone %s\n", len(specs), loc)
	return nil
}

func provision(ctx context.Context, path string, w io.Writer) error {
	log := logx.NewConsole("INFO")
	_, cfg, err := loadConfig(ctx, path, log)
	if err != nil {
		return err
	}
	sc, err := cfg.StorageConfig()
	if err != nil {
		return err
	}
	sc.Provision = false
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := storage.Provision(ctx, st); err != nil {
		return err
	}
	fmt.Fprintf(w, "lease table ready (driver %s)\n", sc.Driver)
	return nil
}
