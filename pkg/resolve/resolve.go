// Package resolve turns project-name strings into concrete jobs plus an
// optional build sub-filter.
//
// A reference is usually a job's full name. A name of the form
// "Job/name=value" addresses a parameterized or matrix job with a build
// filter; the split happens at the FIRST '/'. Names may carry $VAR
// placeholders, in which case resolution is deferred to execution time
// after environment expansion.
package resolve

import (
	"strings"

	"github.com/3leaps/goferry/pkg/host"
	"github.com/3leaps/goferry/pkg/selector"
)

// Lookup is the host capability the resolver needs: exact full-name lookup
// in the job namespace.
type Lookup interface {
	LookupByFullName(name string) *host.Job
}

// HasPlaceholder reports whether the name contains a $VAR placeholder and
// therefore cannot be resolved until execution time.
func HasPlaceholder(name string) bool {
	return strings.Contains(name, "$")
}

// Resolve looks up a project reference.
//
// The full name is tried first. If that fails and the name contains a '/',
// the prefix before the first '/' is tried as a job and the suffix as a
// parameter filter; the filter must be well-formed and reference declared
// parameters or axes of that job, otherwise resolution fails entirely (no
// fallback to the bare prefix job).
//
// A nil job with the match-all filter means "not resolvable". Empty names
// resolve to nothing; that is "no job configured", not an error.
func Resolve(jobs Lookup, name string) (*host.Job, selector.Filter) {
	if strings.TrimSpace(name) == "" {
		return nil, selector.All
	}
	if job := jobs.LookupByFullName(name); job != nil {
		return job, selector.All
	}

	i := strings.Index(name, "/")
	if i <= 0 {
		return nil, selector.All
	}
	candidate := jobs.LookupByFullName(name[:i])
	if candidate == nil {
		return nil, selector.All
	}
	pf, err := selector.ParseParamsFilter(name[i+1:])
	if err != nil || !pf.Valid(candidate) {
		return nil, selector.All
	}
	return candidate, pf
}

// ResolveExpanded resolves an execution-time, environment-expanded name.
//
// When the expanded name differs from the configured raw name, the value
// came from a build parameter or environment variable. To keep parameters
// from reaching into jobs the configuring user could not see, such a
// reference only resolves against jobs readable by all authenticated
// users; anything else fails closed as "job not found".
func ResolveExpanded(jobs Lookup, configured, expanded string) (*host.Job, selector.Filter) {
	job, filter := Resolve(jobs, expanded)
	if job != nil && expanded != configured && !job.AuthenticatedRead {
		return nil, selector.All
	}
	return job, filter
}

// CheckConfigured validates a configured project name at configuration
// time and returns the value to store plus an optional warning.
//
// An unresolvable name without placeholders is cleared to the empty string
// rather than rejected, so a stale reference cannot break configuration
// editing; the miss resurfaces as a hard failure at execution time.
// Placeholder names are stored as-is since they can only be checked once
// the build environment exists.
func CheckConfigured(jobs Lookup, name string) (stored string, warning string) {
	if strings.TrimSpace(name) == "" {
		return name, ""
	}
	if HasPlaceholder(name) {
		return name, "project name is parameterized; it will be checked when the build runs"
	}
	job, _ := Resolve(jobs, name)
	if job == nil {
		return "", "no such project " + name
	}
	if len(job.Axes) > 0 {
		return name, "matrix project: artifacts are copied per axis combination into subdirectories"
	}
	return name, ""
}
