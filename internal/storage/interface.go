// Package storage uploads data packs to object storage.
package storage

import (
	"context"
	"io"
	"strings"

	appErr "iobot/pkg/errors"
)

// Storage drivers.
const (
	DriverMinIO = "minio"
	DriverBlob  = "blob"
)

const defaultPrefix = "packs/"

// ObjectStorage defines the object operations the publish flow needs.
// MinIO and gocloud blob buckets both implement it.
type ObjectStorage interface {
	// PutObject uploads sizeBytes bytes from reader. A negative size means unknown.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error

	// GetObject opens a reader for an object.
	// Caller must close the returned reader.
	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)

	// StatObject returns size and ETag for an object.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)

	// RemoveObject deletes an object. A missing object is not an error.
	RemoveObject(ctx context.Context, bucket, objectKey string) error

	Close() error
}

// ObjectStat contains object metadata used for validation.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}

// Config selects and configures a storage backend.
type Config struct {
	// Driver is "minio" or "blob". Empty disables publishing.
	Driver string      `yaml:"driver"`
	Bucket string      `yaml:"bucket"`
	Prefix string      `yaml:"prefix"`
	MinIO  MinIOConfig `yaml:"minio"`
	Blob   BlobConfig  `yaml:"blob"`
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Bucket == "" {
		cfg.Bucket = cfg.MinIO.Bucket
	}
}

// ObjectKey joins the configured prefix and name.
func (c Config) ObjectKey(name string) string {
	prefix := c.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + strings.TrimPrefix(name, "/")
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (ObjectStorage, error) {
	switch cfg.Driver {
	case "":
		return nil, appErr.New(appErr.StorageNotConfigured)
	case DriverMinIO:
		store, err := NewMinIOStorage(cfg.MinIO)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.ConfigInvalid, "open minio storage failed")
		}
		return store, nil
	case DriverBlob:
		store, err := OpenBlobStorage(ctx, cfg.Blob)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.ConfigInvalid, "open blob storage failed")
		}
		return store, nil
	default:
		return nil, appErr.Newf(appErr.InvalidValue, "unknown storage driver %q", cfg.Driver)
	}
}
