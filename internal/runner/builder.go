package runner

import (
	"context"

	"iobot/internal/program"
	"iobot/internal/runner/compiler"
	"iobot/internal/runner/engine"
	appErr "iobot/pkg/errors"
	"iobot/pkg/utils/contextkey"
)

// Toolchain names the fixed tools used for native and interpreted programs.
type Toolchain struct {
	NativeCompiler          string `yaml:"nativeCompiler"`
	NativeArtifactExtension string `yaml:"nativeArtifactExtension"`
	Interpreter             string `yaml:"interpreter"`
}

// DefaultToolchain returns g++ and python3.
func DefaultToolchain() Toolchain {
	return Toolchain{
		NativeCompiler:          "g++",
		NativeArtifactExtension: ".exe",
		Interpreter:             "python3",
	}
}

func (t Toolchain) withDefaults() Toolchain {
	def := DefaultToolchain()
	if t.NativeCompiler == "" {
		t.NativeCompiler = def.NativeCompiler
	}
	if t.NativeArtifactExtension == "" {
		t.NativeArtifactExtension = def.NativeArtifactExtension
	}
	if t.Interpreter == "" {
		t.Interpreter = def.Interpreter
	}
	return t
}

// Builder resolves program specs into Runners.
type Builder struct {
	engine    engine.Engine
	compiler  *compiler.Compiler
	toolchain Toolchain
}

// NewBuilder creates a builder. Empty toolchain fields fall back to DefaultToolchain.
func NewBuilder(eng engine.Engine, comp *compiler.Compiler, toolchain Toolchain) *Builder {
	return &Builder{engine: eng, compiler: comp, toolchain: toolchain.withDefaults()}
}

// Build compiles the program if its mode needs it and returns a Runner
// whose commands run in workDir. The caller owns the returned reference
// and must Close it.
func (b *Builder) Build(ctx context.Context, p program.Spec, workDir string) (*Runner, error) {
	label := program.Describe(p)
	ctx = contextkey.WithProgram(ctx, label)

	switch p := p.(type) {
	case program.NativeCompiled:
		args := make([]string, 0, len(p.CompilerArgs)+3)
		args = append(args, p.CompilerArgs...)
		args = append(args, p.SourcePath, "-o", program.TargetPlaceholder)
		artifact, err := b.compiler.Compile(ctx, b.toolchain.NativeCompiler, args, workDir, b.toolchain.NativeArtifactExtension)
		if err != nil {
			return nil, err
		}
		return newRunner(b.engine, workDir, artifact.Path, nil, artifact, label), nil

	case program.Interpreted:
		return newRunner(b.engine, workDir, b.toolchain.Interpreter, []string{p.ScriptPath}, nil, label), nil

	case program.RawCommand:
		args := append([]string(nil), p.Args...)
		return newRunner(b.engine, workDir, p.Command, args, nil, label), nil

	case program.GenericCompiled:
		artifact, err := b.compiler.Compile(ctx, p.CompileCommand, p.CompileArgs, workDir, p.ArtifactExtension)
		if err != nil {
			return nil, err
		}
		command := compiler.SubstituteTarget(p.RunCommand, artifact.Path)
		args := compiler.SubstituteTargets(p.RunArgs, artifact.Path)
		return newRunner(b.engine, workDir, command, args, artifact, label), nil

	default:
		return nil, appErr.Newf(appErr.UnknownMode, "unsupported program description %T", p)
	}
}
