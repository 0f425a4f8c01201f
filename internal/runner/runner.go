// Package runner turns a program description into a ready to execute unit
// and runs it with piped stdin/stdout.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"iobot/internal/runner/compiler"
	"iobot/internal/runner/engine"
	"iobot/internal/runner/spec"
	appErr "iobot/pkg/errors"
	"iobot/pkg/utils/logger"

	"go.uber.org/zap"
)

// Runner is a resolved program: a command line, a working directory and
// optionally the compiled artifact it owns. It has no mutable state after
// Build, so one Runner may be used by many goroutines at once.
//
// A Runner is reference counted. Build returns it with one reference held by
// the caller; each extra user calls Retain and later Release. The artifact
// is deleted when the last reference is released.
type Runner struct {
	engine   engine.Engine
	workDir  string
	command  string
	args     []string
	artifact *compiler.Artifact
	label    string

	refs      atomic.Int64
	closeOnce sync.Once
	closeErr  error
	teardown  sync.Once
	tearErr   error
}

func newRunner(eng engine.Engine, workDir, command string, args []string, artifact *compiler.Artifact, label string) *Runner {
	r := &Runner{
		engine:   eng,
		workDir:  workDir,
		command:  command,
		args:     args,
		artifact: artifact,
		label:    label,
	}
	r.refs.Store(1)
	return r
}

// Command returns the resolved command followed by its fixed arguments.
func (r *Runner) Command() []string {
	out := make([]string, 0, len(r.args)+1)
	out = append(out, r.command)
	return append(out, r.args...)
}

// WorkDir returns the directory programs are started in.
func (r *Runner) WorkDir() string {
	return r.workDir
}

// ArtifactPath returns the owned artifact path, or "" when nothing was compiled.
func (r *Runner) ArtifactPath() string {
	if r.artifact == nil {
		return ""
	}
	return r.artifact.Path
}

// Label returns a short description of the program for logs.
func (r *Runner) Label() string {
	return r.label
}

// Retain adds a reference and returns r for chaining.
func (r *Runner) Retain() *Runner {
	r.refs.Add(1)
	return r
}

// Release drops a reference. Dropping the last one deletes the artifact.
func (r *Runner) Release() error {
	if r.refs.Add(-1) > 0 {
		return nil
	}
	r.teardown.Do(func() {
		if r.artifact == nil {
			return
		}
		if err := r.artifact.Remove(); err != nil {
			logger.Warn(context.Background(), "remove artifact failed", zap.String("artifact", r.artifact.Path), zap.Error(err))
			r.tearErr = err
		}
	})
	return r.tearErr
}

// Close releases the reference returned by Build. Calling it again is a no-op.
func (r *Runner) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.Release()
	})
	return r.closeErr
}

// Run starts the program with extra args appended, writes input to its
// stdin, closes it, and returns everything the program wrote to stdout.
// A non-zero exit or a failure to start yields a *RunError.
func (r *Runner) Run(ctx context.Context, input []byte, args ...string) ([]byte, error) {
	return r.run(ctx, bytes.NewReader(input), args)
}

// RunWithoutInput is Run with stdin left unredirected.
func (r *Runner) RunWithoutInput(ctx context.Context, args ...string) ([]byte, error) {
	return r.run(ctx, nil, args)
}

func (r *Runner) run(ctx context.Context, stdin *bytes.Reader, args []string) ([]byte, error) {
	cmd := append(r.Command(), args...)
	runSpec := spec.RunSpec{
		WorkDir:       r.workDir,
		Cmd:           cmd,
		CaptureStdout: true,
	}
	if stdin != nil {
		runSpec.Stdin = stdin
	}
	res, err := r.engine.Run(ctx, runSpec)
	if err != nil {
		return nil, &RunError{
			ExitCode: -1,
			Err:      appErr.Wrapf(err, appErr.ProgramSpawnFailed, "start %s failed", r.command),
		}
	}
	if !res.Success() {
		return nil, &RunError{
			ExitCode: res.ExitCode,
			Err: appErr.Newf(appErr.ProgramExitFailure, "%s exited with code %d", r.command, res.ExitCode).
				WithDetail("exit_code", res.ExitCode),
		}
	}
	return res.Stdout, nil
}

// RunError reports a program invocation that did not succeed.
type RunError struct {
	// ExitCode is -1 when no exit status is available: the process could
	// not be started, or it was terminated by a signal.
	ExitCode int
	Err      error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("program exited with code %d", e.ExitCode)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ExitStatus returns the exit code and whether one was available.
func (e *RunError) ExitStatus() (int, bool) {
	return e.ExitCode, e.ExitCode >= 0
}
