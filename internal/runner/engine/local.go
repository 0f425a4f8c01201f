package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"iobot/internal/runner/result"
	"iobot/internal/runner/spec"
)

// LocalEngine runs programs as plain OS processes. It enforces no limits.
type LocalEngine struct {
	stdout io.Writer
	stderr io.Writer
}

// Option configures a LocalEngine.
type Option func(*LocalEngine)

// WithPassthrough sets where uncaptured stdout and stderr go.
func WithPassthrough(stdout, stderr io.Writer) Option {
	return func(e *LocalEngine) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// NewLocalEngine creates an engine that inherits the parent's stdout and stderr.
func NewLocalEngine(opts ...Option) *LocalEngine {
	e := &LocalEngine{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts the process, feeds stdin, and waits for it to exit.
func (e *LocalEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if len(runSpec.Cmd) == 0 || runSpec.Cmd[0] == "" {
		return result.RunResult{ExitCode: -1}, fmt.Errorf("command is required")
	}

	// ctx only gates the start. A started process always runs to exit.
	if err := ctx.Err(); err != nil {
		return result.RunResult{ExitCode: -1}, fmt.Errorf("run %s not started: %w", runSpec.Cmd[0], err)
	}

	cmd := exec.Command(runSpec.Cmd[0], runSpec.Cmd[1:]...)
	cmd.Dir = runSpec.WorkDir
	if len(runSpec.Env) > 0 {
		cmd.Env = append(os.Environ(), runSpec.Env...)
	}
	// A non-file Stdin is copied by a goroutine, which also swallows EPIPE
	// from children that exit without reading their input.
	cmd.Stdin = runSpec.Stdin
	cmd.Stderr = e.stderr

	var stdout bytes.Buffer
	if runSpec.CaptureStdout {
		cmd.Stdout = &stdout
	} else {
		cmd.Stdout = e.stdout
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result.RunResult{ExitCode: exitErr.ExitCode(), Stdout: stdout.Bytes()}, nil
		}
		return result.RunResult{ExitCode: -1}, fmt.Errorf("run %s failed: %w", runSpec.Cmd[0], err)
	}
	return result.RunResult{ExitCode: 0, Stdout: stdout.Bytes()}, nil
}
