// Package storage resolves storage profiles and downloads stored build
// artifacts into workspace directories.
//
// A profile is a named bucket-plus-credentials context. Builds reference
// the profile their artifacts were uploaded under by ID; the engine
// resolves the ID through a Registry at copy time. Backends implement the
// Backend interface; the download engine in this package is shared.
package storage

import (
	"context"
	"io"
)

// Backend fetches object bytes for a profile.
//
// Implementations must be safe for concurrent use and should rely on SDK
// default credential chains rather than custom auth logic.
type Backend interface {
	// GetObject returns the object body and its size.
	// Returns ErrNotFound if the key does not exist.
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// Close releases any resources held by the backend.
	Close() error
}

// BackendType identifies a storage backend implementation.
type BackendType string

const (
	// BackendS3 is AWS S3 via the AWS SDK.
	BackendS3 BackendType = "s3"

	// BackendMinio is MinIO or other S3-compatible storage addressed by
	// bare endpoint.
	BackendMinio BackendType = "minio"

	// BackendFile is a local directory, used for tests and air-gapped
	// runs.
	BackendFile BackendType = "file"
)

// String returns the string representation of the backend type.
func (t BackendType) String() string {
	return string(t)
}
