// Package result defines raw process execution results.
package result

// RunResult captures raw process execution data.
type RunResult struct {
	// ExitCode is -1 when the process was terminated without an exit status.
	ExitCode int
	Stdout   []byte
}

// Success reports whether the process exited with status 0.
func (r RunResult) Success() bool {
	return r.ExitCode == 0
}
