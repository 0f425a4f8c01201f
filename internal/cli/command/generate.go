package command

import (
	"context"
	"path/filepath"

	"iobot/internal/config"
	"iobot/internal/files"
	appErr "iobot/pkg/errors"
)

func runGenerate(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("generate", "[-yes] <source> <generated>", env)
	yes := fs.Bool("yes", false, "remove existing contents of the generated directory without asking")
	pos, err := parseFlags(fs, args, 2)
	if err != nil {
		return err
	}
	src, gen := pos[0], pos[1]

	if err := files.EnsureDir(src, false); err != nil {
		return err
	}
	if err := files.EnsureDir(gen, true); err != nil {
		return err
	}
	if same, err := samePath(src, gen); err != nil {
		return err
	} else if same {
		return appErr.Newf(appErr.InvalidParams, "source and generated directories must differ")
	}

	// Validate before touching the generated directory.
	cfg, err := config.Load(src)
	if err != nil {
		return err
	}
	if err := cfg.Generable(); err != nil {
		return err
	}

	empty, err := files.IsEmptyDir(gen)
	if err != nil {
		return err
	}
	if !empty {
		if !*yes {
			ok, err := confirm(env, "Generated directory is not empty. Do you want to remove its contents?")
			if err != nil {
				return err
			}
			if !ok {
				env.printf("Aborted\n")
				return nil
			}
		}
		if err := files.ClearDir(gen); err != nil {
			return err
		}
	}

	data, err := env.Pipeline().Generate(ctx, src, gen)
	if err != nil {
		return err
	}
	env.printf("Finished generating\n%s", data)
	return nil
}

func confirm(env *Env, question string) (bool, error) {
	p, err := env.prompter()
	if err != nil {
		return false, err
	}
	defer p.Close()
	return p.Confirm(question, false)
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.InvalidParams, "resolve %s failed", a)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, appErr.Wrapf(err, appErr.InvalidParams, "resolve %s failed", b)
	}
	return absA == absB, nil
}
