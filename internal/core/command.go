package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// CommandWork builds a Work closure that runs a shell command and
// returns its combined output. A positive timeout arms a watchdog that
// sends SIGTERM and escalates to SIGKILL after a five second grace.
// This is what backs tasks registered over the HTTP and MCP surfaces.
func CommandWork(command string, timeout time.Duration, workingDir string) Work {
	return func(ctx context.Context) (any, error) {
		var buf bytes.Buffer
		out := &syncWriter{w: &buf}

		cmd := shellCommand(ctx, command)
		if workingDir != "" {
			cmd.Dir = workingDir
		}
		cmd.Stdout = out
		cmd.Stderr = out

		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start command: %w", err)
		}

		var timedOut atomic.Bool
		var watchdog *time.Timer
		if timeout > 0 {
			watchdog = time.AfterFunc(timeout, func() {
				timedOut.Store(true)
				sendTermination(cmd.Process)
				time.AfterFunc(5*time.Second, func() {
					if cmd.Process != nil {
						_ = cmd.Process.Kill()
					}
				})
			})
		}

		waitErr := cmd.Wait()
		if watchdog != nil {
			watchdog.Stop()
		}

		if timedOut.Load() {
			return nil, fmt.Errorf("command timed out after %s", timeout)
		}
		if waitErr != nil {
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				return nil, fmt.Errorf("command exited with code %d", exitErr.ExitCode())
			}
			return nil, fmt.Errorf("wait for command: %w", waitErr)
		}
		return buf.String(), nil
	}
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command) // #nosec G204
	}
	return exec.CommandContext(ctx, "/bin/sh", "-c", command) // #nosec G204
}

func sendTermination(process *os.Process) {
	if process == nil {
		return
	}
	if runtime.GOOS == "windows" {
		_ = process.Kill()
		return
	}
	_ = process.Signal(syscall.SIGTERM)
}

// syncWriter serializes writes from the command's stdout and stderr
// into one buffer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
