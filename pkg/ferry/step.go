// Package ferry orchestrates build-artifact replication: resolving a
// project reference to a concrete job, selecting a source build,
// expanding composite builds into copy units, replicating each unit's
// stored artifacts into the destination workspace, and recording the
// fingerprint linkage between the two builds.
package ferry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/3leaps/goferry/pkg/buildenv"
	"github.com/3leaps/goferry/pkg/fanout"
	"github.com/3leaps/goferry/pkg/fingerprint"
	"github.com/3leaps/goferry/pkg/host"
	"github.com/3leaps/goferry/pkg/match"
	"github.com/3leaps/goferry/pkg/output"
	"github.com/3leaps/goferry/pkg/resolve"
	"github.com/3leaps/goferry/pkg/selector"
	"github.com/3leaps/goferry/pkg/storage"
)

// DefaultSelector is used when a step has no selector configured: the
// most recent successful-or-unstable build.
var DefaultSelector selector.Selector = selector.StatusSelector{}

// Deps are the host collaborators a step needs at execution time.
type Deps struct {
	// Jobs resolves project names in the host's job namespace.
	Jobs resolve.Lookup

	// Profiles resolves the storage profiles build manifests reference.
	Profiles *storage.Registry

	// Fingerprints is the durable provenance store.
	Fingerprints *fingerprint.Store

	// Env is the destination build's transient environment
	// contribution. Optional.
	Env *buildenv.Record

	// Output receives structured JSONL records. Optional; defaults to
	// output.Discard.
	Output output.Writer

	// RunID correlates structured output records. Optional.
	RunID string
}

func (d *Deps) output() output.Writer {
	if d.Output == nil {
		return output.Discard
	}
	return d.Output
}

// Step is one configured copy operation: which project to copy from, how
// to pick the build, which artifacts to take, and where to put them.
type Step struct {
	// ProjectName references the source job, optionally with a
	// "/name=value" sub-filter, optionally containing $VAR placeholders
	// expanded against the destination build's environment.
	ProjectName string

	// Selector picks the source build. Nil means DefaultSelector.
	Selector selector.Selector

	// Filter is a comma-separated glob filter over artifact paths.
	// Blank means everything.
	Filter string

	// Target is the directory under the workspace artifacts are copied
	// into. Blank means the workspace root. Env-expanded at execution.
	Target string

	// Flatten discards intermediate path segments; name collisions
	// overwrite last-wins.
	Flatten bool

	// Optional makes absence of a source (unresolvable project, no
	// matching build, nothing copied) a warning instead of a failure.
	// Transport failures are never optional.
	Optional bool
}

// Validate checks the step at configuration time and returns warnings.
//
// An unresolvable project name without placeholders is cleared rather
// than rejected; the miss is re-reported as a failure when the step runs.
func (s *Step) Validate(jobs resolve.Lookup) []string {
	var warnings []string
	stored, warning := resolve.CheckConfigured(jobs, s.ProjectName)
	s.ProjectName = stored
	if warning != "" {
		warnings = append(warnings, warning)
	}
	if _, err := match.New(s.Filter, ""); err != nil {
		warnings = append(warnings, fmt.Sprintf("invalid artifact filter: %v", err))
	}
	return warnings
}

// Perform executes the step for the destination build.
//
// The returned bool is the step result under the policy of the error
// taxonomy: absences (no project, no build, no workspace, nothing
// copied) fail unless the step is optional; transport failures always
// fail. The error is non-nil only for interruption, which aborts the
// step without the optional gate.
func (s *Step) Perform(ctx context.Context, deps Deps, dst *host.Build, env host.EnvVars, workspace string, console io.Writer) (bool, error) {
	start := time.Now()
	out := deps.output()

	// Matrix axes and build parameters override the base environment.
	env = env.Override(dst.Params)
	expandedProject := env.Expand(s.ProjectName)

	job, filter := resolve.ResolveExpanded(deps.Jobs, s.ProjectName, expandedProject)
	if job == nil {
		fmt.Fprintf(console, "Unable to find project for artifact copy: %s\n", expandedProject)
		_ = out.WriteError(ctx, &output.ErrorRecord{Code: output.ErrCodeResolve, Message: "project not found: " + expandedProject})
		return s.finish(ctx, out, expandedProject, 0, 0, 0, s.Optional, start), nil
	}

	sel := s.Selector
	if sel == nil {
		sel = DefaultSelector
	}
	src := sel.Select(job, env, filter, dst)
	if src == nil {
		fmt.Fprintf(console, "Unable to find a build for artifact copy from: %s\n", expandedProject)
		_ = out.WriteError(ctx, &output.ErrorRecord{Code: output.ErrCodeSelect, Message: "no matching build: " + expandedProject})
		return s.finish(ctx, out, expandedProject, 0, 0, 0, s.Optional, start), nil
	}

	if workspace == "" || !dirExists(workspace) {
		fmt.Fprintf(console, "Missing workspace for artifact copy into %s\n", dst.DisplayName())
		return s.finish(ctx, out, expandedProject, 0, 0, 0, s.Optional, start), nil
	}

	// Record which upstream build was actually used for later steps.
	if deps.Env != nil {
		deps.Env.Add(expandedProject, src.Number)
	}

	targetDir := workspace
	if s.Target != "" {
		targetDir = filepath.Join(workspace, filepath.FromSlash(env.Expand(s.Target)))
	}

	expandedFilter := env.Expand(s.Filter)
	matcher, err := match.New(expandedFilter, "")
	if err != nil {
		fmt.Fprintf(console, "Invalid artifact filter %q: %v\n", expandedFilter, err)
		return s.finish(ctx, out, expandedProject, 0, 0, 0, false, start), nil
	}

	units := fanout.Expand(src, targetDir)

	totalCopied := 0
	unitsSucceeded := 0
	transportFailed := false
	profileFailed := false
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		copied, err := s.performUnit(ctx, deps, unit, matcher, dst, console)
		totalCopied += copied
		switch {
		case err == nil:
			unitsSucceeded++
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return false, err
		case storage.IsProfileNotFound(err):
			// Hard failure for this unit only; siblings continue.
			fmt.Fprintf(console, "Cannot resolve storage profile for %s: %v\n", unit.Source.DisplayName(), err)
			_ = out.WriteError(ctx, &output.ErrorRecord{Code: output.ErrCodeProfile, Message: err.Error(), Source: unit.Source.DisplayName()})
			profileFailed = true
		default:
			// A transport fault after a build and manifest were found
			// is a real failure, never optional.
			fmt.Fprintf(console, "Failed to copy artifacts from %s with filter %q: %v\n", unit.Source.DisplayName(), expandedFilter, err)
			_ = out.WriteError(ctx, &output.ErrorRecord{Code: output.ErrCodeDownload, Message: err.Error(), Source: unit.Source.DisplayName()})
			transportFailed = true
		}
	}

	// Absences are optional-excused; hard failures are not. A profile
	// miss is a hard failure for its unit, so it can only be outweighed
	// by a sibling unit that actually copied something.
	success := totalCopied > 0 || s.Optional
	if transportFailed || (profileFailed && totalCopied == 0) {
		success = false
	}
	return s.finish(ctx, out, expandedProject, len(units), unitsSucceeded, totalCopied, success, start), nil
}

// performUnit replicates one copy unit and links fingerprints. The
// returned count includes artifacts copied before any failure.
func (s *Step) performUnit(ctx context.Context, deps Deps, unit fanout.CopyUnit, matcher *match.Matcher, dst *host.Build, console io.Writer) (int, error) {
	src := unit.Source
	out := deps.output()

	if src.Manifest == nil {
		fmt.Fprintf(console, "Build %s doesn't have any artifacts uploaded to storage\n", src.DisplayName())
		return 0, nil
	}

	backend, err := deps.Profiles.Resolve(src.Manifest.ProfileID)
	if err != nil {
		return 0, err
	}

	records, err := storage.Download(ctx, backend, src.Manifest, matcher, unit.TargetDir, s.Flatten)
	if err != nil {
		return len(records), err
	}

	if err := fingerprint.Link(deps.Fingerprints, records, src, dst); err != nil {
		return len(records), fmt.Errorf("record fingerprint link: %w", err)
	}

	for _, r := range records {
		_ = out.WriteCopy(ctx, &output.CopyRecord{
			Source: src.DisplayName(),
			Name:   r.Name,
			Digest: r.Digest,
			Target: unit.TargetDir,
		})
	}

	noun := "artifacts"
	if len(records) == 1 {
		noun = "artifact"
	}
	fmt.Fprintf(console, "Copied %d %s from %q build number %d stored in profile %s\n",
		len(records), noun, src.JobName, src.Number, src.Manifest.ProfileID)
	return len(records), nil
}

func (s *Step) finish(ctx context.Context, out output.Writer, project string, units, unitsOK, copied int, success bool, start time.Time) bool {
	_ = out.WriteSummary(ctx, &output.SummaryRecord{
		Project:         project,
		UnitsTotal:      units,
		UnitsSucceeded:  unitsOK,
		ArtifactsCopied: copied,
		Success:         success,
		DurationMS:      time.Since(start).Milliseconds(),
	})
	return success
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
