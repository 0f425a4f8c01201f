package engine

import (
	"context"

	"iobot/internal/runner/result"
	"iobot/internal/runner/spec"
)

// Engine executes a RunSpec as a child process.
// A returned error means the process could not be started or waited for;
// a started process always yields a RunResult, whatever its exit status.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
}
