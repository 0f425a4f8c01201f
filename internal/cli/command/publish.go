package command

import (
	"context"
	"os"
	"path/filepath"

	"iobot/internal/pack"
	"iobot/internal/storage"
	appErr "iobot/pkg/errors"
)

func runPublish(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("publish", "[-key name] <pack>", env)
	key := fs.String("key", "", "object name under the storage prefix (default: pack file name)")
	pos, err := parseFlags(fs, args, 1)
	if err != nil {
		return err
	}
	packPath := pos[0]
	if *key == "" {
		*key = filepath.Base(packPath)
	}

	// Refuse to upload a pack that does not unpack cleanly.
	tmp, err := os.MkdirTemp("", "iobot-verify-")
	if err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "create temp dir failed")
	}
	defer os.RemoveAll(tmp)
	manifest, err := pack.Extract(packPath, tmp)
	if err != nil {
		return err
	}

	store, err := env.openStorage(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	objectKey := env.Settings.Storage.ObjectKey(*key)
	stat, err := storage.Publish(ctx, store, env.Settings.Storage.Bucket, objectKey, packPath)
	if err != nil {
		return err
	}
	env.printf("published %s (%d tests, %d bytes)\n", objectKey, len(manifest.Tests), stat.SizeBytes)
	return nil
}
