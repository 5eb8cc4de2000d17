package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for storage operations.
var (
	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrProfileNotFound indicates a manifest references a storage
	// profile the registry cannot resolve. This is a hard failure for
	// the copy unit that hit it.
	ErrProfileNotFound = errors.New("storage profile not found")
)

// BackendError wraps backend-specific errors with context.
type BackendError struct {
	// Op is the operation that failed (e.g., "GetObject").
	Op string

	// Backend is the backend type (e.g., "s3").
	Backend BackendType

	// Profile is the profile ID, if known.
	Profile string

	// Key is the object key, if applicable.
	Key string

	// Err is the underlying error.
	Err error
}

func (e *BackendError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: profile %s: %s: %v", e.Backend, e.Op, e.Profile, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: profile %s: %v", e.Backend, e.Op, e.Profile, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsProfileNotFound returns true if the error indicates an unresolvable
// storage profile.
func IsProfileNotFound(err error) bool {
	return errors.Is(err, ErrProfileNotFound)
}
