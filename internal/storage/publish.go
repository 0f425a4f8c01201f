package storage

import (
	"context"
	"os"

	appErr "iobot/pkg/errors"
	"iobot/pkg/utils/logger"

	"go.uber.org/zap"
)

// PackContentType is the media type of a data pack archive.
const PackContentType = "application/zstd"

// Publish uploads the file at packPath as bucket/objectKey and checks the
// stored size against the local one. A mismatching object is removed.
func Publish(ctx context.Context, store ObjectStorage, bucket, objectKey, packPath string) (ObjectStat, error) {
	if store == nil {
		return ObjectStat{}, appErr.New(appErr.StorageNotConfigured)
	}
	file, err := os.Open(packPath)
	if err != nil {
		return ObjectStat{}, appErr.Wrapf(err, appErr.FileReadFailed, "open pack %s failed", packPath)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return ObjectStat{}, appErr.Wrapf(err, appErr.FileReadFailed, "stat pack %s failed", packPath)
	}

	if err := store.PutObject(ctx, bucket, objectKey, file, info.Size(), PackContentType); err != nil {
		return ObjectStat{}, appErr.Wrapf(err, appErr.PublishFailed, "upload %s failed", objectKey)
	}
	stat, err := store.StatObject(ctx, bucket, objectKey)
	if err != nil {
		return ObjectStat{}, appErr.Wrapf(err, appErr.PublishFailed, "stat uploaded %s failed", objectKey)
	}
	if stat.SizeBytes != info.Size() {
		if rmErr := store.RemoveObject(ctx, bucket, objectKey); rmErr != nil {
			logger.Warn(ctx, "remove partial upload failed", zap.String("object_key", objectKey), zap.Error(rmErr))
		}
		return ObjectStat{}, appErr.Newf(appErr.PublishFailed, "uploaded size %d does not match local size %d", stat.SizeBytes, info.Size()).
			WithDetail("object_key", objectKey)
	}

	logger.Info(ctx, "pack published",
		zap.String("bucket", bucket),
		zap.String("object_key", objectKey),
		zap.Int64("size_bytes", stat.SizeBytes),
	)
	return stat, nil
}
