// Package host models the narrow slice of a CI system that the copy engine
// consumes: jobs, builds, artifact manifests, and build environments.
//
// The engine never owns this state. A real deployment adapts its job store
// onto these types; the CLI and tests load a snapshot from YAML.
package host

import (
	"fmt"
	"os"
	"sync"
)

// Status is the completion status of a build.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusUnstable Status = "unstable"
	StatusFailure  Status = "failure"
	StatusAborted  Status = "aborted"
	StatusRunning  Status = "running"
)

// Completed reports whether the build has finished executing.
func (s Status) Completed() bool {
	return s != StatusRunning && s != ""
}

// Kind discriminates how a build fans out into sub-builds.
type Kind string

const (
	// KindPlain is a single build with its own artifacts.
	KindPlain Kind = "plain"

	// KindModuleAggregate is a top-level build that triggered one
	// sub-build per module, each archiving its own artifacts.
	KindModuleAggregate Kind = "module-aggregate"

	// KindMatrix is a build that fans out into one run per axis
	// combination (e.g. jdk=6, jdk=7).
	KindMatrix Kind = "matrix"
)

// ArtifactEntry is one stored artifact as recorded by the object store at
// upload time. Digest is computed once by the store and never recomputed.
type ArtifactEntry struct {
	Path   string `json:"path" yaml:"path"`
	Digest string `json:"digest" yaml:"digest"`
	Size   int64  `json:"size,omitempty" yaml:"size,omitempty"`
}

// ArtifactManifest is the record attached to a build describing which
// artifacts were uploaded to which storage profile.
type ArtifactManifest struct {
	// ProfileID names the storage profile (bucket + credentials context)
	// the artifacts were uploaded under.
	ProfileID string `json:"profile" yaml:"profile"`

	// KeyPrefix is prepended to each entry path to form the object key.
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`

	Entries []ArtifactEntry `json:"entries" yaml:"entries"`
}

// ArtifactRecord is one artifact successfully copied into a destination
// workspace, carrying the digest recorded in the source manifest.
type ArtifactRecord struct {
	Name   string
	Digest string
}

// Build is one execution instance of a job.
type Build struct {
	JobName string `yaml:"job_name,omitempty"`
	Number  int    `yaml:"number"`
	Status  Status `yaml:"status"`

	// Params are the parameter values this build ran with.
	Params map[string]string `yaml:"params,omitempty"`

	Kind Kind `yaml:"kind,omitempty"`

	// Axis is the axis-combination discriminator ("jdk=6") when this
	// build is one run of a matrix build.
	Axis string `yaml:"axis,omitempty"`

	// Modules holds the last build of each module for a module-aggregate
	// build.
	Modules []*Build `yaml:"modules,omitempty"`

	// AxisRuns holds the per-combination runs of a matrix build.
	AxisRuns []*Build `yaml:"axis_runs,omitempty"`

	// Manifest is the stored-artifact record, nil if this build uploaded
	// nothing to the object store.
	Manifest *ArtifactManifest `yaml:"manifest,omitempty"`

	mu      sync.Mutex
	summary map[string]string
}

// DisplayName is the build's human identifier in console output.
func (b *Build) DisplayName() string {
	return fmt.Sprintf("%s #%d", b.JobName, b.Number)
}

// MergeSummary folds name→digest pairs into the build's fingerprint
// summary. The summary is created on first use and never replaced
// wholesale; earlier contributions from other steps are preserved.
func (b *Build) MergeSummary(pairs map[string]string) {
	if len(pairs) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.summary == nil {
		b.summary = make(map[string]string, len(pairs))
	}
	for name, digest := range pairs {
		b.summary[name] = digest
	}
}

// Summary returns a copy of the build's fingerprint summary.
func (b *Build) Summary() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.summary))
	for name, digest := range b.summary {
		out[name] = digest
	}
	return out
}

// Job is a named, configurable unit of repeatable build work.
type Job struct {
	FullName string `yaml:"full_name"`

	// Parameters are the declared build parameter names.
	Parameters []string `yaml:"parameters,omitempty"`

	// Axes maps axis names to their values for matrix jobs.
	Axes map[string][]string `yaml:"axes,omitempty"`

	// AuthenticatedRead is true when any authenticated user may read
	// this job. Parameter-expanded references are only honored against
	// jobs readable by all authenticated users.
	AuthenticatedRead bool `yaml:"authenticated_read,omitempty"`

	// Builds are ordered by ascending build number.
	Builds []*Build `yaml:"builds,omitempty"`
}

// HasParameter reports whether name is a declared build parameter or axis.
func (j *Job) HasParameter(name string) bool {
	for _, p := range j.Parameters {
		if p == name {
			return true
		}
	}
	_, ok := j.Axes[name]
	return ok
}

// Build returns the build with the given number, or nil.
func (j *Job) Build(number int) *Build {
	for _, b := range j.Builds {
		if b.Number == number {
			return b
		}
	}
	return nil
}

// Directory is an in-memory job namespace supporting exact full-name lookup.
type Directory struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewDirectory builds a directory from the given jobs.
func NewDirectory(jobs ...*Job) *Directory {
	d := &Directory{jobs: make(map[string]*Job, len(jobs))}
	for _, j := range jobs {
		d.jobs[j.FullName] = j
	}
	return d
}

// LookupByFullName returns the job with the exact full name, or nil.
func (d *Directory) LookupByFullName(name string) *Job {
	if name == "" {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.jobs[name]
}

// Jobs returns all jobs in the directory in unspecified order.
func (d *Directory) Jobs() []*Job {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Job, 0, len(d.jobs))
	for _, j := range d.jobs {
		out = append(out, j)
	}
	return out
}

// EnvVars is a snapshot of a build's environment.
type EnvVars map[string]string

// Expand substitutes $VAR and ${VAR} references against the snapshot.
// Unknown variables expand to the empty string, matching shell behavior.
func (e EnvVars) Expand(s string) string {
	if s == "" {
		return s
	}
	return os.Expand(s, func(name string) string {
		return e[name]
	})
}

// Override merges other into a copy of the snapshot, other winning on
// conflicts. Used to layer matrix axes and build parameters over the base
// environment.
func (e EnvVars) Override(other map[string]string) EnvVars {
	out := make(EnvVars, len(e)+len(other))
	for k, v := range e {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
