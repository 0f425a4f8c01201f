// Package spec describes one process execution.
package spec

import "io"

// RunSpec is everything an Engine needs to start one process.
type RunSpec struct {
	// WorkDir is the current directory of the child process.
	WorkDir string
	// Cmd holds the command followed by its arguments.
	Cmd []string
	// Env is appended to the parent environment.
	Env []string
	// Stdin is fed to the child through a pipe. Nil leaves stdin unredirected
	// (the child reads from the null device).
	Stdin io.Reader
	// CaptureStdout collects stdout into RunResult.Stdout instead of
	// passing it through to the parent.
	CaptureStdout bool
}
