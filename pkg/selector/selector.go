// Package selector provides pluggable build-selection strategies.
//
// A Selector picks exactly one build from a job's history given the
// destination build's environment and an optional build filter. Selectors
// are read-only over host state and must be deterministic for a given
// snapshot.
package selector

import (
	"fmt"
	"strings"

	"github.com/3leaps/goferry/pkg/host"
)

// Filter restricts which builds a Selector may pick.
type Filter interface {
	// Accept reports whether the build satisfies the filter.
	Accept(b *host.Build) bool
}

// All is the match-everything filter used when no sub-filter is configured.
var All Filter = matchAll{}

type matchAll struct{}

func (matchAll) Accept(*host.Build) bool { return true }

// Selector chooses one build from a job's history, or nil when no build
// matches. Returning nil is not an error; the caller decides pass/fail.
type Selector interface {
	Select(job *host.Job, env host.EnvVars, filter Filter, dst *host.Build) *host.Build
}

// StatusSelector picks the most recent completed build by status. It is the
// default strategy.
type StatusSelector struct {
	// StableOnly restricts selection to successful builds; otherwise
	// unstable builds qualify too.
	StableOnly bool
}

// Select returns the newest completed build whose status qualifies and that
// the filter accepts.
func (s StatusSelector) Select(job *host.Job, _ host.EnvVars, filter Filter, _ *host.Build) *host.Build {
	if filter == nil {
		filter = All
	}
	for i := len(job.Builds) - 1; i >= 0; i-- {
		b := job.Builds[i]
		if !b.Status.Completed() {
			continue
		}
		if b.Status != host.StatusSuccess && (s.StableOnly || b.Status != host.StatusUnstable) {
			continue
		}
		if !filter.Accept(b) {
			continue
		}
		return b
	}
	return nil
}

// NumberSelector picks a specific build by number, regardless of status,
// as long as the build has completed.
type NumberSelector struct {
	Number int
}

func (s NumberSelector) Select(job *host.Job, _ host.EnvVars, filter Filter, _ *host.Build) *host.Build {
	if filter == nil {
		filter = All
	}
	b := job.Build(s.Number)
	if b == nil || !b.Status.Completed() || !filter.Accept(b) {
		return nil
	}
	return b
}

// ParamsFilter accepts builds whose parameter (or axis) values match a
// spec of the form "name=value" or "name=value,name2=value2". It backs the
// "Job/name=value" sub-filter syntax in project references.
type ParamsFilter struct {
	raw   string
	pairs [][2]string
}

// ParseParamsFilter parses a sub-filter spec. It fails on empty specs and
// on clauses without a name or '='.
func ParseParamsFilter(spec string) (*ParamsFilter, error) {
	pf := &ParamsFilter{raw: spec}
	for _, clause := range strings.Split(spec, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		name, value, ok := strings.Cut(clause, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter filter clause %q", clause)
		}
		pf.pairs = append(pf.pairs, [2]string{name, strings.TrimSpace(value)})
	}
	if len(pf.pairs) == 0 {
		return nil, fmt.Errorf("empty parameter filter %q", spec)
	}
	return pf, nil
}

// String returns the original spec.
func (f *ParamsFilter) String() string {
	return f.raw
}

// Valid reports whether every referenced name is a declared parameter or
// axis of the job. An invalid filter must fail resolution entirely rather
// than degrade to an unfiltered job.
func (f *ParamsFilter) Valid(job *host.Job) bool {
	for _, p := range f.pairs {
		if !job.HasParameter(p[0]) {
			return false
		}
	}
	return true
}

// Accept reports whether the build ran with all the required values.
func (f *ParamsFilter) Accept(b *host.Build) bool {
	for _, p := range f.pairs {
		if b.Params[p[0]] != p[1] {
			return false
		}
	}
	return true
}
