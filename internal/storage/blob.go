package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	appErr "iobot/pkg/errors"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// BlobConfig holds a gocloud bucket URL, e.g. file:///srv/packs or mem://.
type BlobConfig struct {
	URL string `yaml:"url"`
}

// BlobStorage implements ObjectStorage on a gocloud.dev/blob bucket. The
// URL names the bucket, so the bucket argument of each call becomes a key
// prefix.
type BlobStorage struct {
	bucket *blob.Bucket
}

// OpenBlobStorage opens the bucket named by cfg.URL.
func OpenBlobStorage(ctx context.Context, cfg BlobConfig) (*BlobStorage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("blob url is required")
	}
	bucket, err := blob.OpenBucket(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open blob bucket failed: %w", err)
	}
	return NewBlobStorage(bucket), nil
}

// NewBlobStorage wraps an open bucket. Close closes it.
func NewBlobStorage(bucket *blob.Bucket) *BlobStorage {
	return &BlobStorage{bucket: bucket}
}

func blobKey(bucket, objectKey string) string {
	if bucket == "" {
		return objectKey
	}
	return path.Join(bucket, objectKey)
}

func (s *BlobStorage) PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error {
	if reader == nil {
		return fmt.Errorf("reader is required")
	}
	if objectKey == "" {
		return fmt.Errorf("objectKey is required")
	}
	var opts *blob.WriterOptions
	if contentType != "" {
		opts = &blob.WriterOptions{ContentType: contentType}
	}
	w, err := s.bucket.NewWriter(ctx, blobKey(bucket, objectKey), opts)
	if err != nil {
		return fmt.Errorf("blob new writer failed: %w", err)
	}
	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		return fmt.Errorf("blob write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blob close writer failed: %w", err)
	}
	return nil
}

func (s *BlobStorage) GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, blobKey(bucket, objectKey), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, appErr.Wrapf(err, appErr.NotFound, "object %s not found", objectKey)
		}
		return nil, fmt.Errorf("blob get object failed: %w", err)
	}
	return r, nil
}

func (s *BlobStorage) StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error) {
	attrs, err := s.bucket.Attributes(ctx, blobKey(bucket, objectKey))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return ObjectStat{}, appErr.Wrapf(err, appErr.NotFound, "object %s not found", objectKey)
		}
		return ObjectStat{}, fmt.Errorf("blob stat object failed: %w", err)
	}
	return ObjectStat{
		SizeBytes:   attrs.Size,
		ETag:        attrs.ETag,
		ContentType: attrs.ContentType,
	}, nil
}

func (s *BlobStorage) RemoveObject(ctx context.Context, bucket, objectKey string) error {
	err := s.bucket.Delete(ctx, blobKey(bucket, objectKey))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("blob remove object failed: %w", err)
	}
	return nil
}

func (s *BlobStorage) Close() error {
	return s.bucket.Close()
}
