// Package file implements the storage backend over a local directory.
//
// Keys are treated as relative paths under BaseDir. This backend exists
// for tests and for air-gapped deployments where the artifact store is a
// mounted filesystem.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/3leaps/goferry/pkg/storage"
)

// Config configures a file backend.
type Config struct {
	BaseDir string
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("file config: base dir is required")
	}
	return nil
}

// Backend implements storage.Backend over a local directory.
type Backend struct {
	baseDir string
}

var _ storage.Backend = (*Backend)(nil)

// New creates a file backend rooted at cfg.BaseDir.
func New(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backend{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// GetObject returns the file contents for the key.
func (b *Backend) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	_ = ctx
	full, err := b.resolve(key)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, &storage.BackendError{
				Op: "GetObject", Backend: storage.BackendFile, Key: key, Err: storage.ErrNotFound,
			}
		}
		return nil, 0, &storage.BackendError{
			Op: "GetObject", Backend: storage.BackendFile, Key: key, Err: err,
		}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, &storage.BackendError{
			Op: "GetObject", Backend: storage.BackendFile, Key: key, Err: err,
		}
	}
	return f, info.Size(), nil
}

// Close releases backend resources.
func (b *Backend) Close() error { return nil }

// resolve maps a key to a path under baseDir, refusing escapes.
func (b *Backend) resolve(key string) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(key, "/"))
	full := filepath.Join(b.baseDir, rel)
	if full != b.baseDir && !strings.HasPrefix(full, b.baseDir+string(filepath.Separator)) {
		return "", &storage.BackendError{
			Op: "GetObject", Backend: storage.BackendFile, Key: key,
			Err: fmt.Errorf("key escapes base dir"),
		}
	}
	return full, nil
}
