// Package compiler builds ephemeral program artifacts under a private scratch
// directory.
package compiler

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"iobot/internal/program"
	"iobot/internal/runner/engine"
	"iobot/internal/runner/spec"
	appErr "iobot/pkg/errors"
	"iobot/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBuildDir returns the process scoped scratch directory for artifacts.
func DefaultBuildDir() string {
	return filepath.Join(os.TempDir(), "iobot", "build")
}

// Compiler runs compile commands through an Engine.
type Compiler struct {
	engine   engine.Engine
	buildDir string
}

// New creates a compiler writing artifacts into buildDir (DefaultBuildDir when empty).
func New(eng engine.Engine, buildDir string) *Compiler {
	if buildDir == "" {
		buildDir = DefaultBuildDir()
	}
	return &Compiler{engine: eng, buildDir: buildDir}
}

// BuildDir returns the scratch directory.
func (c *Compiler) BuildDir() string {
	return c.buildDir
}

// Compile runs command with args in workDir. Every TargetPlaceholder in the
// command and args is replaced by the artifact path first. The artifact is
// not checked for existence: a compile command that never writes it fails
// later, when the artifact is executed.
func (c *Compiler) Compile(ctx context.Context, command string, args []string, workDir, ext string) (*Artifact, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		return nil, appErr.Newf(appErr.InvalidArtifactExtension, "invalid artifact extension %q: must be empty or start with '.'", ext)
	}

	buildDir, err := filepath.Abs(c.buildDir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CompileIOFailed, "resolve build dir failed")
	}
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.CompileIOFailed, "create build dir failed")
	}
	artifact := &Artifact{Path: filepath.Join(buildDir, uuid.NewString()+ext)}

	cmd := make([]string, 0, len(args)+1)
	cmd = append(cmd, SubstituteTarget(command, artifact.Path))
	cmd = append(cmd, SubstituteTargets(args, artifact.Path)...)

	logger.Info(ctx, "compiling program", zap.Strings("cmd", cmd), zap.String("work_dir", workDir))
	res, err := c.engine.Run(ctx, spec.RunSpec{WorkDir: workDir, Cmd: cmd})
	if err != nil {
		_ = artifact.Remove()
		return nil, appErr.Wrapf(err, appErr.CompileIOFailed, "start compiler %s failed", cmd[0])
	}
	if !res.Success() {
		_ = artifact.Remove()
		return nil, appErr.Newf(appErr.CompileUnsuccessful, "compiler %s exited with code %d", cmd[0], res.ExitCode).
			WithDetail("exit_code", res.ExitCode)
	}
	logger.Debug(ctx, "compiled program", zap.String("artifact", artifact.Path))
	return artifact, nil
}

// SubstituteTarget replaces every occurrence of the placeholder with target.
func SubstituteTarget(s, target string) string {
	return strings.ReplaceAll(s, program.TargetPlaceholder, target)
}

// SubstituteTargets applies SubstituteTarget to each element, returning a new slice.
func SubstituteTargets(args []string, target string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = SubstituteTarget(arg, target)
	}
	return out
}

// Artifact is the path of a freshly built executable.
type Artifact struct {
	Path string

	once sync.Once
	err  error
}

// Remove deletes the artifact file. Only the first call does any work; a
// missing file is not an error.
func (a *Artifact) Remove() error {
	a.once.Do(func() {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.err = appErr.Wrapf(err, appErr.FileWriteFailed, "remove artifact %s failed", a.Path)
		}
	})
	return a.err
}
