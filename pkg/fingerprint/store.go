// Package fingerprint records durable provenance links between builds and
// the artifacts they produced or consumed.
//
// An entry is keyed by (artifact name, content digest) and accumulates the
// set of builds associated with that exact artifact version. Linking is
// additive and idempotent: associating the same build twice is a no-op,
// and existing associations are never removed.
package fingerprint

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/3leaps/goferry/pkg/host"
)

// Usage identifies one build associated with a fingerprint entry.
type Usage struct {
	JobName string `json:"job_name"`
	Number  int    `json:"number"`
}

// Entry is the persistent fingerprint record written to disk.
//
// The schema is designed for backward-compatible extension (additive
// fields).
type Entry struct {
	Name      string    `json:"name"`
	Digest    string    `json:"digest"`
	Usages    []Usage   `json:"usages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Has reports whether the build is already associated with the entry.
func (e *Entry) Has(jobName string, number int) bool {
	for _, u := range e.Usages {
		if u.JobName == jobName && u.Number == number {
			return true
		}
	}
	return false
}

// Store persists fingerprint entries under an on-disk directory.
//
// Directory layout:
//
//	<root>/<digest>/<encoded artifact name>.json
//
// The store is shared across concurrently running, unrelated builds;
// create-or-merge is serialized per (name, digest) key, and each entry is
// written atomically via temp file + rename.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{
		root:  strings.TrimSpace(root),
		locks: make(map[string]*sync.Mutex),
	}
}

// RootDir returns the store's root directory.
func (s *Store) RootDir() string {
	return s.root
}

// entryPath maps a key to its file. Artifact names may contain any
// character, so the name component is URL-safe base64.
func (s *Store) entryPath(name, digest string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(name))
	return filepath.Join(s.root, digest, encoded+".json")
}

func (s *Store) keyLock(name, digest string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := digest + "\x00" + name
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Associate obtains or creates the entry for (name, digest) and registers
// every given build as a user of it. The whole read-modify-write is
// serialized per key and committed atomically.
func (s *Store) Associate(name, digest string, builds ...*host.Build) (*Entry, error) {
	if strings.TrimSpace(s.root) == "" {
		return nil, fmt.Errorf("fingerprint store root dir is empty")
	}
	if name == "" || digest == "" {
		return nil, fmt.Errorf("fingerprint key requires name and digest")
	}

	l := s.keyLock(name, digest)
	l.Lock()
	defer l.Unlock()

	entry, err := s.load(name, digest)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if entry == nil {
		entry = &Entry{Name: name, Digest: digest, CreatedAt: now}
	}

	changed := false
	for _, b := range builds {
		if b == nil || entry.Has(b.JobName, b.Number) {
			continue
		}
		entry.Usages = append(entry.Usages, Usage{JobName: b.JobName, Number: b.Number})
		changed = true
	}
	if !changed && !entry.UpdatedAt.IsZero() {
		return entry, nil
	}
	entry.UpdatedAt = now

	if err := s.write(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Get returns the entry for (name, digest), or nil if none exists.
func (s *Store) Get(name, digest string) (*Entry, error) {
	l := s.keyLock(name, digest)
	l.Lock()
	defer l.Unlock()
	return s.load(name, digest)
}

func (s *Store) load(name, digest string) (*Entry, error) {
	data, err := os.ReadFile(s.entryPath(name, digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read fingerprint entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parse fingerprint entry: %w", err)
	}
	return &entry, nil
}

func (s *Store) write(entry *Entry) error {
	path := s.entryPath(entry.Name, entry.Digest)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create fingerprint dir: %w", err)
	}

	b, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fingerprint entry: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(dir, ".entry.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write fingerprint entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close fingerprint entry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("commit fingerprint entry: %w", err)
	}
	return nil
}
