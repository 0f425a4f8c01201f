// Package pipeline materializes test inputs and expected outputs by
// driving batches of program runs.
package pipeline

import (
	"context"
	"path/filepath"
	"strconv"

	"iobot/internal/batch"
	"iobot/internal/config"
	"iobot/internal/files"
	"iobot/internal/program"
	"iobot/internal/runner"
	appErr "iobot/pkg/errors"
	"iobot/pkg/utils/contextkey"
	"iobot/pkg/utils/logger"

	"go.uber.org/zap"
)

// Directory layout under a generated root.
const (
	InputDir  = "in"
	OutputDir = "out"
)

// DefaultGeneratorCount is the number of inputs a generator produces when
// neither the input nor the options set a count.
const DefaultGeneratorCount = 100

// Builder turns a program description into a Runner. *runner.Builder implements it.
type Builder interface {
	Build(ctx context.Context, p program.Spec, workDir string) (*runner.Runner, error)
}

// Options tune a Pipeline.
type Options struct {
	// Workers is the batch pool size; zero selects batch.DefaultWorkers.
	Workers int
	// GeneratorCount is used when a generator input sets no count.
	GeneratorCount int
	// Observer, when set, returns the progress observer for a named batch.
	Observer func(batchName string) batch.Observer
}

// Pipeline composes program building and batch execution.
type Pipeline struct {
	builder Builder
	opts    Options
}

// New creates a pipeline.
func New(builder Builder, opts Options) *Pipeline {
	if opts.GeneratorCount <= 0 {
		opts.GeneratorCount = DefaultGeneratorCount
	}
	return &Pipeline{builder: builder, opts: opts}
}

func (p *Pipeline) executor(name string) *batch.Executor {
	opts := []batch.Option{batch.WithWorkers(p.opts.Workers)}
	if p.opts.Observer != nil {
		if o := p.opts.Observer(name); o != nil {
			opts = append(opts, batch.WithObserver(o))
		}
	}
	return batch.New(name, opts...)
}

// build resolves and builds src with srcDir as the working directory.
func (p *Pipeline) build(ctx context.Context, src program.Source, srcDir string) (*runner.Runner, error) {
	spec, err := src.Resolve()
	if err != nil {
		return nil, err
	}
	return p.builder.Build(ctx, spec, srcDir)
}

// MaterializeInputs fills dstDir/in from input. Files are copied keeping
// their relative paths; a generator runs once per index with the index as
// its only argument and its stdout becomes <index>.in. The returned
// descriptor is relative to dstDir.
func (p *Pipeline) MaterializeInputs(ctx context.Context, input config.Input, srcDir, dstDir string) (files.Files, error) {
	inRoot := filepath.Join(dstDir, InputDir)
	switch {
	case input.Files != nil:
		copied, err := files.Copy(srcDir, *input.Files, files.Input, inRoot)
		if err != nil {
			return files.Files{}, err
		}
		logger.Info(ctx, "inputs copied", zap.Int("files", len(copied)), zap.String("dir", inRoot))
		return files.Files{Path: InputDir, Extensions: input.Files.Extensions}, nil

	case input.Generator != nil:
		count := input.Generator.Count
		if count <= 0 {
			count = p.opts.GeneratorCount
		}
		gen, err := p.build(ctx, input.Generator.Program.Source, srcDir)
		if err != nil {
			return files.Files{}, err
		}
		defer gen.Close()

		ctx = contextkey.WithProgram(ctx, gen.Label())
		_, err = p.executor("inputs").Generate(ctx, inRoot, files.Input.DefaultExtension(), count, func(ctx context.Context, index int) ([]byte, error) {
			r := gen.Retain()
			defer r.Release()
			return r.RunWithoutInput(ctx, strconv.Itoa(index))
		})
		if err != nil {
			return files.Files{}, err
		}
		return files.Files{Path: InputDir}, nil

	default:
		return files.Files{}, appErr.ValidationError("input", "has no source")
	}
}

// MaterializeOutputs runs model once per input file selected by inputs
// (relative to inputBase) and writes each stdout to dstDir/out under the
// input's relative path with the .out extension. The returned descriptor
// is relative to dstDir.
func (p *Pipeline) MaterializeOutputs(ctx context.Context, model program.Source, inputs files.Files, inputBase, srcDir, dstDir string) (files.Files, error) {
	inRoot := inputs.Root(inputBase)
	discovered, err := files.List(inputBase, inputs, files.Input)
	if err != nil {
		return files.Files{}, err
	}
	ext := files.Output.DefaultExtension()
	outRels, err := outputPaths(inRoot, discovered, ext)
	if err != nil {
		return files.Files{}, err
	}

	m, err := p.build(ctx, model, srcDir)
	if err != nil {
		return files.Files{}, err
	}
	defer m.Close()

	outRoot := filepath.Join(dstDir, OutputDir)
	ctx = contextkey.WithProgram(ctx, m.Label())
	err = p.executor("outputs").Execute(ctx, len(discovered), func(ctx context.Context, index int) error {
		r := m.Retain()
		defer r.Release()

		data, err := readFile(discovered[index])
		if err != nil {
			return err
		}
		out, err := r.Run(ctx, data)
		if err != nil {
			return err
		}
		return files.WriteFile(filepath.Join(outRoot, outRels[index]), out)
	})
	if err != nil {
		return files.Files{}, err
	}
	return files.Files{Path: OutputDir}, nil
}

// outputPaths maps every input to its output path relative to the output
// root. Two inputs that differ only in extension would write the same
// output, so that is rejected.
func outputPaths(inRoot string, inputs []string, ext string) ([]string, error) {
	rels := make([]string, len(inputs))
	seen := make(map[string]string, len(inputs))
	for i, in := range inputs {
		rel, err := files.Rel(inRoot, in)
		if err != nil {
			return nil, err
		}
		out := files.ReplaceExtension(rel, ext)
		if prev, ok := seen[out]; ok {
			return nil, appErr.Newf(appErr.ValidationFailed, "inputs %s and %s both produce %s", prev, rel, out).
				WithDetail("output", out)
		}
		seen[out] = rel
		rels[i] = out
	}
	return rels, nil
}
