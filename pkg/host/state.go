package host

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// State is a YAML-loadable snapshot of the host's job namespace.
//
// Snapshots exist so the CLI and tests can run the copy engine without a
// live CI system. A real deployment adapts its own job store instead.
type State struct {
	Jobs []*Job `yaml:"jobs"`
}

// LoadState reads and normalizes a host-state snapshot from a YAML file.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("host state file not found: %s", path)
		}
		return nil, fmt.Errorf("read host state: %w", err)
	}
	return LoadStateFromBytes(data)
}

// LoadStateFromBytes parses and normalizes a snapshot from raw YAML.
func LoadStateFromBytes(data []byte) (*State, error) {
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse host state: %w", err)
	}
	if err := st.normalize(); err != nil {
		return nil, err
	}
	return &st, nil
}

// Directory returns a lookup directory over the snapshot's jobs.
func (s *State) Directory() *Directory {
	return NewDirectory(s.Jobs...)
}

// normalize fills derived fields the YAML form omits: build job names,
// sub-build identity, and build kinds implied by structure.
func (s *State) normalize() error {
	for _, j := range s.Jobs {
		if j.FullName == "" {
			return fmt.Errorf("job with empty full_name in host state")
		}
		last := 0
		for _, b := range j.Builds {
			if b.Number <= last {
				return fmt.Errorf("job %s: builds must have ascending numbers", j.FullName)
			}
			last = b.Number
			if err := normalizeBuild(j.FullName, b); err != nil {
				return err
			}
		}
	}
	return nil
}

func normalizeBuild(jobName string, b *Build) error {
	if b.JobName == "" {
		b.JobName = jobName
	}
	switch {
	case b.Kind != "":
	case len(b.AxisRuns) > 0:
		b.Kind = KindMatrix
	case len(b.Modules) > 0:
		b.Kind = KindModuleAggregate
	default:
		b.Kind = KindPlain
	}
	for _, m := range b.Modules {
		// Modules carry their own job identity; there is nothing to
		// derive one from.
		if m.JobName == "" {
			return fmt.Errorf("job %s: module build without job_name", jobName)
		}
		if m.Number == 0 {
			m.Number = b.Number
		}
		if err := normalizeBuild(m.JobName, m); err != nil {
			return err
		}
	}
	for _, r := range b.AxisRuns {
		if r.JobName == "" {
			if r.Axis == "" {
				return fmt.Errorf("job %s: axis run without axis or job_name", jobName)
			}
			r.JobName = jobName + "/" + r.Axis
		}
		if r.Number == 0 {
			r.Number = b.Number
		}
		if err := normalizeBuild(r.JobName, r); err != nil {
			return err
		}
	}
	return nil
}
