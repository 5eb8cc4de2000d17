// Package manifest provides loading and validation of goferry copy manifests.
//
// A copy manifest is a YAML or JSON file that configures one or more artifact
// copy steps and the storage profiles their source builds archive to.
//
// Manifests are validated against a JSON Schema to ensure correctness before
// execution. The schema enforces strict typing and disallows unknown
// properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	steps:
//	  - project: upstream-build
//	    filter: "**/*.jar"
//	    target: deps
//	    optional: true
//	profiles:
//	  main:
//	    backend: s3
//	    bucket: ci-artifacts
//	    region: us-east-1
package manifest

// CurrentVersion is the manifest schema version this build understands.
const CurrentVersion = "1.0"

// Manifest represents a validated copy manifest.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Steps are the copy steps to run, in order.
	Steps []StepConfig `json:"steps" yaml:"steps"`

	// Profiles maps profile IDs referenced by build manifests to storage
	// backend configurations.
	Profiles map[string]ProfileConfig `json:"profiles,omitempty" yaml:"profiles,omitempty"`
}

// StepConfig configures one artifact copy step.
type StepConfig struct {
	// Project references the source job, optionally with a "/name=value"
	// sub-filter and $VAR placeholders.
	Project string `json:"project" yaml:"project"`

	// Selector picks the source build (optional; defaults to the latest
	// successful-or-unstable build).
	Selector SelectorConfig `json:"selector,omitempty" yaml:"selector,omitempty"`

	// Filter is a comma-separated glob filter over artifact paths.
	// Blank copies everything.
	Filter string `json:"filter,omitempty" yaml:"filter,omitempty"`

	// Target is the directory under the workspace to copy into.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// Flatten discards intermediate path segments.
	Flatten bool `json:"flatten,omitempty" yaml:"flatten,omitempty"`

	// Optional makes absence of a source a warning instead of a failure.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// SelectorConfig configures the build selection strategy for a step.
//
// A zero value means the default strategy: the most recent build that
// finished successful or unstable.
type SelectorConfig struct {
	// BuildNumber pins the step to an exact build number (0 = unset).
	BuildNumber int `json:"build_number,omitempty" yaml:"build_number,omitempty"`

	// StableOnly restricts the default strategy to successful builds,
	// skipping unstable ones. Ignored when BuildNumber is set.
	StableOnly bool `json:"stable_only,omitempty" yaml:"stable_only,omitempty"`
}

// ProfileConfig configures one storage profile backend.
type ProfileConfig struct {
	// Backend is the storage backend type: "s3", "minio", or "file".
	Backend string `json:"backend" yaml:"backend"`

	// Bucket is the bucket name (s3, minio).
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Region is the AWS region (s3). Optional.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint is a custom endpoint URL (s3) or host:port (minio).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// PathStyle forces path-style addressing for S3-compatible stores.
	PathStyle bool `json:"path_style,omitempty" yaml:"path_style,omitempty"`

	// AccessKey and SecretKey are static credentials (minio).
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`

	// Insecure disables TLS (minio).
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`

	// BaseDir is the root directory (file).
	BaseDir string `json:"base_dir,omitempty" yaml:"base_dir,omitempty"`
}

// ApplyDefaults fills in default values for optional fields.
func (m *Manifest) ApplyDefaults() {
	if m.Version == "" {
		m.Version = CurrentVersion
	}
}
