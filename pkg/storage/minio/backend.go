// Package minio implements the storage backend for MinIO and other
// S3-compatible stores addressed by bare endpoint.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/3leaps/goferry/pkg/storage"
)

// Config configures a MinIO backend.
type Config struct {
	// Endpoint is host:port without a scheme, e.g. "localhost:9000".
	Endpoint string

	// AccessKey and SecretKey are the static credentials.
	AccessKey string
	SecretKey string

	// Region is the signing region. Defaults to us-east-1.
	Region string

	// UseSSL enables TLS to the endpoint.
	UseSSL bool

	// Bucket is the bucket name (required).
	Bucket string
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("minio config: endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("minio config: endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("minio config: bucket is required")
	}
	return nil
}

// Backend implements storage.Backend over a minio client.
type Backend struct {
	client *minio.Client
	bucket string
}

var _ storage.Backend = (*Backend)(nil)

// New creates a MinIO backend with the given configuration.
func New(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, &storage.BackendError{
			Op:      "New",
			Backend: storage.BackendMinio,
			Err:     err,
		}
	}
	return &Backend{client: client, bucket: cfg.Bucket}, nil
}

// GetObject returns the object body and size for the key.
func (b *Backend) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, &storage.BackendError{
			Op:      "GetObject",
			Backend: storage.BackendMinio,
			Key:     key,
			Err:     mapError(err),
		}
	}
	// GetObject is lazy; Stat forces the first request so missing keys
	// surface here rather than on first read.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, 0, &storage.BackendError{
			Op:      "GetObject",
			Backend: storage.BackendMinio,
			Key:     key,
			Err:     mapError(err),
		}
	}
	return obj, info.Size, nil
}

// Close releases backend resources. The minio client holds none.
func (b *Backend) Close() error { return nil }

func mapError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey":
		return storage.ErrNotFound
	case "AccessDenied":
		return storage.ErrAccessDenied
	}
	return err
}
