package daemon

import (
	"context"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	logx "cronlease/pkg/logx"
)

// Notifier sends a systemd notify state. It reports false when no notify
// socket is configured.
type Notifier func(state string) (bool, error)

// SystemdNotifier talks to $NOTIFY_SOCKET.
func SystemdNotifier(state string) (bool, error) { return sd.SdNotify(false, state) }

func (d *Daemon) notify(state string) {
	if d.notifier == nil {
		return
	}
	sent, err := d.notifier(state)
	if err != nil {
		d.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		d.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// watchdogLoop pings systemd at half the configured WatchdogSec.
func (d *Daemon) watchdogLoop(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			d.notify(sd.SdNotifyWatchdog)
		}
	}
}

func watchdogInterval() time.Duration {
	iv, err := sd.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return iv
}
