package lease

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"cronlease/pkg/timing"
)

// KeyPolicy selects what a lease key is derived from.
type KeyPolicy int

const (
	// KeyBySlot derives the key from task, schedule signature and the slot
	// (minute). One execution per task, schedule and minute, across restarts.
	KeyBySlot KeyPolicy = iota
	// KeyByTask derives the key from the task name only. It prevents
	// concurrent runs of the same task while the row exists.
	KeyByTask
)

func (p KeyPolicy) String() string {
	switch p {
	case KeyBySlot:
		return "slot"
	case KeyByTask:
		return "task"
	default:
		return fmt.Sprintf("keypolicy(%d)", int(p))
	}
}

// ParseKeyPolicy accepts "slot" (default for empty) and "task".
func ParseKeyPolicy(s string) (KeyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "slot":
		return KeyBySlot, nil
	case "task", "name":
		return KeyByTask, nil
	default:
		return 0, fmt.Errorf("unknown lease key policy %q (use slot or task)", s)
	}
}

// Key derives the lease key under p.
func (p KeyPolicy) Key(task, signature string, slot time.Time) string {
	if p == KeyByTask {
		return TaskKey(task)
	}
	return SlotKey(task, signature, slot)
}

// SlotKey is md5(task + signature + "YYYY-MM-DD HH:MM:00") in hex.
func SlotKey(task, signature string, slot time.Time) string {
	return md5hex(task + signature + slot.Format(timing.SlotLayout))
}

// TaskKey is md5(task) in hex.
func TaskKey(task string) string { return md5hex(task) }

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
