package command

import (
	"context"
	"path/filepath"

	"iobot/internal/pack"
)

func runPack(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("pack", "[-o file] <generated>", env)
	out := fs.String("o", "", "output file (default <generated>"+pack.Extension+")")
	pos, err := parseFlags(fs, args, 1)
	if err != nil {
		return err
	}
	dir := pos[0]
	if *out == "" {
		*out = filepath.Clean(dir) + pack.Extension
	}

	res, err := pack.Build(ctx, dir, *out)
	if err != nil {
		return err
	}
	env.printf("%s  %s\n", res.SHA256, res.Path)
	return nil
}
