package storage

import (
	"fmt"
	"sync"
)

// Registry maps profile IDs to configured backends.
//
// The registry is safe for concurrent use; unrelated builds resolve
// profiles from the same registry.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Backend
}

// NewRegistry creates an empty profile registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]Backend)}
}

// Register binds a backend to a profile ID, replacing any previous
// binding.
func (r *Registry) Register(id string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[id] = b
}

// Resolve returns the backend for a profile ID. An unknown ID yields
// ErrProfileNotFound.
func (r *Registry) Resolve(id string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return b, nil
}

// Close closes every registered backend, returning the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, b := range r.profiles {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.profiles = make(map[string]Backend)
	return first
}
