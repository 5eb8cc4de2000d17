// Package match evaluates glob filters against artifact relative paths
// using doublestar semantics.
//
// Filters come from step configuration as comma-separated patterns, e.g.
// "**/*.jar, reports/**". An artifact matches when it matches at least one
// include pattern and no exclude pattern.
package match

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchAll is the default filter: every artifact matches.
const MatchAll = "**"

// Errors returned by Matcher operations.
var (
	// ErrInvalidPattern is returned when a pattern cannot be compiled.
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// PatternError wraps pattern-related errors with the offending pattern.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Matcher evaluates include/exclude patterns against artifact paths.
//
// A Matcher is safe for concurrent use after creation.
type Matcher struct {
	includes []string
	excludes []string
}

// New creates a Matcher from comma-separated include and exclude filter
// strings. A blank include filter means match-everything.
func New(includeFilter, excludeFilter string) (*Matcher, error) {
	includes := splitPatterns(includeFilter)
	if len(includes) == 0 {
		includes = []string{MatchAll}
	}
	excludes := splitPatterns(excludeFilter)

	for _, raw := range append(append([]string{}, includes...), excludes...) {
		if !doublestar.ValidatePattern(raw) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
	}

	return &Matcher{includes: includes, excludes: excludes}, nil
}

// Match reports whether the artifact path passes the filter.
//
// Paths are matched with forward-slash separators regardless of host OS;
// manifests always record slash-separated relative paths.
func (m *Matcher) Match(path string) bool {
	path = strings.TrimPrefix(normalizePath(path), "/")

	matched := false
	for _, p := range m.includes {
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, p := range m.excludes {
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			return false
		}
	}
	return true
}

// Includes returns the normalized include patterns.
func (m *Matcher) Includes() []string {
	return m.includes
}

// String returns a human-readable description of the filter.
func (m *Matcher) String() string {
	s := strings.Join(m.includes, ", ")
	if len(m.excludes) > 0 {
		s += " (excluding " + strings.Join(m.excludes, ", ") + ")"
	}
	return s
}

// splitPatterns breaks a comma-separated filter string into normalized,
// non-empty patterns.
func splitPatterns(filter string) []string {
	var out []string
	for _, part := range strings.Split(filter, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		out = append(out, normalizePath(p))
	}
	return out
}

// normalizePath converts Windows-style backslash separators to forward
// slashes so patterns written on either platform behave the same.
func normalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
