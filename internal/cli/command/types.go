package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"iobot/internal/batch"
	"iobot/internal/cli/prompt"
	"iobot/internal/config"
	"iobot/internal/pipeline"
	"iobot/internal/runner"
	"iobot/internal/runner/compiler"
	"iobot/internal/runner/engine"
	"iobot/internal/storage"
	appErr "iobot/pkg/errors"
	"iobot/pkg/utils/logger"

	"go.uber.org/zap"
)

// Command is one subcommand.
type Command struct {
	Name    string
	Usage   string
	Summary string
	Run     func(ctx context.Context, env *Env, args []string) error
}

// Env carries what subcommands share.
type Env struct {
	Settings *config.Settings
	Stdout   io.Writer
	Stderr   io.Writer
	// WorkDir is where init writes iobot.yaml.
	WorkDir string
	// Prompter opens the interactive prompter. Nil selects the terminal.
	Prompter func() (*prompt.Prompter, error)
	// Engine runs programs. Nil selects a LocalEngine.
	Engine engine.Engine
	// OpenStorage opens the publish target. Nil selects storage.Open.
	OpenStorage func(ctx context.Context, cfg storage.Config) (storage.ObjectStorage, error)
}

// NewEnv returns an Env on the process stdio.
func NewEnv(settings *config.Settings) (*Env, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "get working directory failed")
	}
	return &Env{Settings: settings, Stdout: os.Stdout, Stderr: os.Stderr, WorkDir: wd}, nil
}

func (e *Env) prompter() (*prompt.Prompter, error) {
	if e.Prompter != nil {
		return e.Prompter()
	}
	return prompt.NewTerminal()
}

func (e *Env) openStorage(ctx context.Context) (storage.ObjectStorage, error) {
	if e.OpenStorage != nil {
		return e.OpenStorage(ctx, e.Settings.Storage)
	}
	return storage.Open(ctx, e.Settings.Storage)
}

// Pipeline builds a pipeline from the settings.
func (e *Env) Pipeline() *pipeline.Pipeline {
	eng := e.Engine
	if eng == nil {
		eng = engine.NewLocalEngine(engine.WithPassthrough(e.Stderr, e.Stderr))
	}
	builder := runner.NewBuilder(eng, compiler.New(eng, e.Settings.BuildDir), e.Settings.Toolchain)
	return pipeline.New(builder, pipeline.Options{
		Workers:        e.Settings.Worker.PoolSize,
		GeneratorCount: e.Settings.Generator.Count,
		Observer:       progressObserver,
	})
}

// progressObserver logs every tenth of a batch.
func progressObserver(name string) batch.Observer {
	return batch.ObserverFunc(func(done, total int) {
		step := max(total/10, 1)
		if done%step == 0 || done == total {
			logger.Info(context.Background(), "progress",
				zap.String("batch", name),
				zap.Int("done", done),
				zap.Int("total", total),
			)
		}
	})
}

func (e *Env) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(e.Stdout, format, args...)
}

func newFlagSet(name, usage string, env *Env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(env.Stderr, "usage: iobot %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, positional int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "invalid arguments")
	}
	if fs.NArg() != positional {
		fs.Usage()
		return nil, appErr.Newf(appErr.InvalidParams, "expected %d arguments, got %d", positional, fs.NArg())
	}
	return fs.Args(), nil
}
