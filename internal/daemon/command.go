package daemon

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"cronlease/internal/config"
	logx "cronlease/pkg/logx"
)

const (
	outputTailMax  = 2048
	killWaitDelay  = 5 * time.Second
	envTaskName    = "CRONLEASE_TASK"
	envWorkerIdent = "CRONLEASE_WORKER"
)

// commandTask runs an external command. It succeeds iff the command exits
// 0 within its timeout.
type commandTask struct {
	spec   config.TaskSpec
	worker string
	log    logx.Logger
}

func (c commandTask) Name() string { return c.spec.Name }

func (c commandTask) Run(ctx context.Context) bool {
	if c.spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.spec.Command[0], c.spec.Command[1:]...)
	cmd.Dir = c.spec.Dir
	cmd.Env = append(os.Environ(), c.spec.Env...)
	cmd.Env = append(cmd.Env, envTaskName+"="+c.spec.Name, envWorkerIdent+"="+c.worker)
	cmd.WaitDelay = killWaitDelay

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	fields := []logx.Field{
		logx.String("cmd", c.spec.Command[0]),
		logx.Duration("took", time.Since(start)),
	}
	if tail := outputTail(out.Bytes()); tail != "" {
		fields = append(fields, logx.String("output", tail))
	}
	if err == nil {
		c.log.Debug("command exited 0", fields...)
		return true
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		c.log.Warn("command timed out", append(fields, logx.Duration("timeout", c.spec.Timeout))...)
	case errors.As(err, &exitErr):
		c.log.Warn("command failed", append(fields, logx.Int("exit_code", exitErr.ExitCode()))...)
	default:
		c.log.Warn("command could not run", append(fields, logx.Err(err))...)
	}
	return false
}

func outputTail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= outputTailMax {
		return s
	}
	cut := len(s) - outputTailMax
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "…" + s[cut:]
}
