package storage

import (
	"context"
	"io"

	appErr "iobot/pkg/errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultMinIORegion = "us-east-1"

// MinIOConfig holds settings for an S3 compatible endpoint.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
	Bucket    string `yaml:"bucket"`
	// Region skips the bucket location lookup. Defaults to us-east-1.
	Region string `yaml:"region"`
}

// MinIOStorage publishes packs to MinIO or any S3 compatible service.
type MinIOStorage struct {
	client *minio.Client
}

// NewMinIOStorage checks cfg and creates a client. No request is sent.
func NewMinIOStorage(cfg MinIOConfig) (*MinIOStorage, error) {
	for _, field := range []struct{ name, value string }{
		{"minio.endpoint", cfg.Endpoint},
		{"minio.accessKey", cfg.AccessKey},
		{"minio.secretKey", cfg.SecretKey},
	} {
		if field.value == "" {
			return nil, appErr.ValidationError(field.name, "is required")
		}
	}
	region := cfg.Region
	if region == "" {
		region = defaultMinIORegion
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidValue, "invalid minio endpoint %q", cfg.Endpoint)
	}
	return &MinIOStorage{client: client}, nil
}

func (s *MinIOStorage) PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error {
	if reader == nil {
		return appErr.ValidationError("reader", "is required")
	}
	if objectKey == "" {
		return appErr.ValidationError("objectKey", "is required")
	}
	// Client.PutObject switches to multipart for large packs.
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, bucket, objectKey, reader, sizeBytes, opts); err != nil {
		return minioError(err, "put %s/%s failed", bucket, objectKey)
	}
	return nil
}

func (s *MinIOStorage) GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error) {
	// GetObject is lazy, so stat first to report a missing key here.
	if _, err := s.StatObject(ctx, bucket, objectKey); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, minioError(err, "get %s/%s failed", bucket, objectKey)
	}
	return obj, nil
}

func (s *MinIOStorage) StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error) {
	info, err := s.client.StatObject(ctx, bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return ObjectStat{}, minioError(err, "stat %s/%s failed", bucket, objectKey)
	}
	return ObjectStat{
		SizeBytes:   info.Size,
		ETag:        info.ETag,
		ContentType: info.ContentType,
	}, nil
}

// RemoveObject treats a missing key as removed.
func (s *MinIOStorage) RemoveObject(ctx context.Context, bucket, objectKey string) error {
	err := s.client.RemoveObject(ctx, bucket, objectKey, minio.RemoveObjectOptions{})
	if err == nil || isNoSuchKey(err) {
		return nil
	}
	return minioError(err, "remove %s/%s failed", bucket, objectKey)
}

func (s *MinIOStorage) Close() error {
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func minioError(err error, format string, args ...interface{}) error {
	if isNoSuchKey(err) {
		return appErr.Wrapf(err, appErr.NotFound, format, args...)
	}
	return appErr.Wrapf(err, appErr.PublishFailed, format, args...)
}
