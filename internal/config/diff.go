package config

import (
	"reflect"
	"sort"
	"strings"

	logx "cronlease/pkg/logx"
)

// ConfigChange summarizes a reload.
type ConfigChange struct {
	Sections []string // changed top-level sections, sorted
	Added    []string // task names
	Removed  []string
	Changed  []string
	// RestartRequired lists changed sections that only take effect on restart.
	RestartRequired []string
}

// Fields returns safe structured attrs for logging. Secrets (DSN, tokens)
// are never included.
func (c ConfigChange) Fields() []logx.Field {
	fields := []logx.Field{logx.String("sections", strings.Join(c.Sections, ","))}
	if len(c.Added) > 0 {
		fields = append(fields, logx.String("tasks_added", strings.Join(c.Added, ",")))
	}
	if len(c.Removed) > 0 {
		fields = append(fields, logx.String("tasks_removed", strings.Join(c.Removed, ",")))
	}
	if len(c.Changed) > 0 {
		fields = append(fields, logx.String("tasks_changed", strings.Join(c.Changed, ",")))
	}
	if len(c.RestartRequired) > 0 {
		fields = append(fields, logx.String("restart_required", strings.Join(c.RestartRequired, ",")))
	}
	return fields
}

func (c ConfigChange) Empty() bool { return len(c.Sections) == 0 }

// SummarizeConfigChange compares two configs section by section.
func SummarizeConfigChange(oldCfg, newCfg *Config) ConfigChange {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch ConfigChange
	mark := func(section string, changed, restart bool) {
		if !changed {
			return
		}
		ch.Sections = append(ch.Sections, section)
		if restart {
			ch.RestartRequired = append(ch.RestartRequired, section)
		}
	}

	mark("timezone", strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone), false)
	mark("worker", oldCfg.Worker != newCfg.Worker, true)
	mark("logging", oldCfg.Logging != newCfg.Logging, false)
	mark("storage", oldCfg.Storage != newCfg.Storage, true)
	mark("lease", oldCfg.Lease != newCfg.Lease, false)
	mark("metrics", oldCfg.Metrics != newCfg.Metrics, true)
	mark("alerts", oldCfg.Alerts != newCfg.Alerts, oldCfg.Alerts.Telegram.Token != newCfg.Alerts.Telegram.Token)

	ch.Added, ch.Removed, ch.Changed = diffTasks(oldCfg.Tasks, newCfg.Tasks)
	mark("tasks", len(ch.Added)+len(ch.Removed)+len(ch.Changed) > 0, false)

	sort.Strings(ch.Sections)
	return ch
}

func diffTasks(oldT, newT []TaskConfig) (added, removed, changed []string) {
	oldM := make(map[string]TaskConfig, len(oldT))
	for _, t := range oldT {
		oldM[t.Name] = t
	}
	newM := make(map[string]TaskConfig, len(newT))
	for _, t := range newT {
		newM[t.Name] = t
		o, ok := oldM[t.Name]
		switch {
		case !ok:
			added = append(added, t.Name)
		case !reflect.DeepEqual(o, t):
			changed = append(changed, t.Name)
		}
	}
	for name := range oldM {
		if _, ok := newM[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)
	return added, removed, changed
}
