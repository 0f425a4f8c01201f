package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appErr "iobot/pkg/errors"
)

func minioConfig(endpoint string) MinIOConfig {
	return MinIOConfig{Endpoint: endpoint, AccessKey: "access", SecretKey: "secret", Bucket: "problems"}
}

func TestNewMinIOStorageValidation(t *testing.T) {
	cases := []struct {
		name  string
		cfg   MinIOConfig
		field string
	}{
		{"endpoint", MinIOConfig{AccessKey: "a", SecretKey: "s"}, "minio.endpoint"},
		{"access key", MinIOConfig{Endpoint: "localhost:9000", SecretKey: "s"}, "minio.accessKey"},
		{"secret key", MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a"}, "minio.secretKey"},
	}
	for _, tc := range cases {
		_, err := NewMinIOStorage(tc.cfg)
		e := appErr.GetError(err)
		if e == nil || e.Code != appErr.ValidationFailed || e.Details["field"] != tc.field {
			t.Fatalf("%s: expected ValidationFailed on %s, got %v", tc.name, tc.field, err)
		}
	}

	if _, err := NewMinIOStorage(minioConfig("http://localhost:9000")); appErr.GetCode(err) != appErr.InvalidValue {
		t.Fatalf("expected InvalidValue for endpoint with scheme, got %v", err)
	}
}

func TestOpenSelectsMinIO(t *testing.T) {
	cfg := Config{Driver: DriverMinIO, MinIO: minioConfig("localhost:9000")}
	ApplyDefaults(&cfg)
	store, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*MinIOStorage); !ok {
		t.Fatalf("expected *MinIOStorage, got %T", store)
	}
	if cfg.Bucket != "problems" {
		t.Fatalf("bucket should fall back to minio.bucket, got %q", cfg.Bucket)
	}
}

func TestMinIOPutObjectValidation(t *testing.T) {
	store, err := NewMinIOStorage(minioConfig("localhost:9000"))
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	ctx := context.Background()
	if err := store.PutObject(ctx, "problems", "k", nil, 0, ""); appErr.GetCode(err) != appErr.ValidationFailed {
		t.Fatalf("expected ValidationFailed for nil reader, got %v", err)
	}
	if err := store.PutObject(ctx, "problems", "", strings.NewReader("x"), 1, ""); appErr.GetCode(err) != appErr.ValidationFailed {
		t.Fatalf("expected ValidationFailed for empty key, got %v", err)
	}
}

// s3Stub answers HEAD and DELETE for a single known object.
func s3Stub(t *testing.T) *httptest.Server {
	t.Helper()
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/problems/packs/present.tar.zst":
			w.Header().Set("Content-Length", "5")
			w.Header().Set("ETag", `"abc"`)
			w.Header().Set("Content-Type", PackContentType)
			w.Header().Set("Last-Modified", modified)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMinIOStatAndRemove(t *testing.T) {
	srv := s3Stub(t)
	store, err := NewMinIOStorage(minioConfig(strings.TrimPrefix(srv.URL, "http://")))
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	ctx := context.Background()

	stat, err := store.StatObject(ctx, "problems", "packs/present.tar.zst")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if stat.SizeBytes != 5 || stat.ETag != "abc" || stat.ContentType != PackContentType {
		t.Fatalf("unexpected stat: %+v", stat)
	}

	if _, err := store.StatObject(ctx, "problems", "packs/missing.tar.zst"); appErr.GetCode(err) != appErr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := store.GetObject(ctx, "problems", "packs/missing.tar.zst"); appErr.GetCode(err) != appErr.NotFound {
		t.Fatalf("expected NotFound from get, got %v", err)
	}
	if err := store.RemoveObject(ctx, "problems", "packs/missing.tar.zst"); err != nil {
		t.Fatalf("remove: %v", err)
	}
}
