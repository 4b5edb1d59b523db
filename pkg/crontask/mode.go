package crontask

import (
	"fmt"
	"strings"
)

// Mode selects how a due task is executed.
type Mode uint8

const (
	modeUnset Mode = iota
	// Local runs the task on every worker that evaluates it.
	Local
	// LoadBalanced runs the task on the one worker that claims the lease.
	LoadBalanced
)

func (m Mode) String() string {
	switch m {
	case Local:
		return "local"
	case LoadBalanced:
		return "loadBalanced"
	default:
		return "unset"
	}
}

// ParseMode accepts "local" and "loadBalanced" (also "load_balanced",
// "distributed"), case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return Local, nil
	case "loadbalanced", "load_balanced", "load-balanced", "distributed":
		return LoadBalanced, nil
	default:
		return modeUnset, fmt.Errorf("unknown mode %q (use local or loadBalanced)", s)
	}
}
