package ferry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/goferry/pkg/buildenv"
	"github.com/3leaps/goferry/pkg/fingerprint"
	"github.com/3leaps/goferry/pkg/host"
	"github.com/3leaps/goferry/pkg/selector"
	"github.com/3leaps/goferry/pkg/storage"
	"github.com/3leaps/goferry/pkg/storage/file"
)

// fixture wires a file-backed store, fingerprint store, and workspace for
// one step execution.
type fixture struct {
	deps      Deps
	dst       *host.Build
	workspace string
	console   bytes.Buffer
}

func newFixture(t *testing.T, jobs []*host.Job, objects map[string]string) *fixture {
	t.Helper()

	storeDir := t.TempDir()
	for key, content := range objects {
		full := filepath.Join(storeDir, filepath.FromSlash(key))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	backend, err := file.New(file.Config{BaseDir: storeDir})
	require.NoError(t, err)

	profiles := storage.NewRegistry()
	profiles.Register("main", backend)

	return &fixture{
		deps: Deps{
			Jobs:         host.NewDirectory(jobs...),
			Profiles:     profiles,
			Fingerprints: fingerprint.NewStore(t.TempDir()),
			Env:          buildenv.NewRecord(),
		},
		dst:       &host.Build{JobName: "downstream", Number: 7, Status: host.StatusRunning},
		workspace: t.TempDir(),
	}
}

func (f *fixture) perform(t *testing.T, step *Step) bool {
	t.Helper()
	ok, err := step.Perform(context.Background(), f.deps, f.dst, host.EnvVars{}, f.workspace, &f.console)
	require.NoError(t, err)
	return ok
}

func upstreamWithManifest() *host.Job {
	return &host.Job{
		FullName: "upstream",
		Builds: []*host.Build{
			{
				JobName: "upstream", Number: 42, Status: host.StatusSuccess,
				Manifest: &host.ArtifactManifest{
					ProfileID: "main",
					KeyPrefix: "jobs/upstream/42/",
					Entries: []host.ArtifactEntry{
						{Path: "build/x.zip", Digest: "d1"},
					},
				},
			},
		},
	}
}

func TestPerformEndToEnd(t *testing.T) {
	f := newFixture(t, []*host.Job{upstreamWithManifest()},
		map[string]string{"jobs/upstream/42/build/x.zip": "zip-bytes"})

	step := &Step{ProjectName: "upstream"}
	ok := f.perform(t, step)
	require.True(t, ok)

	// Artifact landed with its path preserved.
	data, err := os.ReadFile(filepath.Join(f.workspace, "build", "x.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))

	// Fingerprint association exists between the two builds.
	entry, err := f.deps.Fingerprints.Get("build/x.zip", "d1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Has("upstream", 42))
	assert.True(t, entry.Has("downstream", 7))

	// Both builds carry the summary pair.
	assert.Equal(t, "d1", f.dst.Summary()["build/x.zip"])

	// Environment records the selected build number.
	assert.Equal(t, "42", f.deps.Env.Values()["COPYARTIFACT_BUILD_NUMBER_UPSTREAM"])

	assert.Contains(t, f.console.String(), `Copied 1 artifact from "upstream" build number 42`)
}

func TestPerformFilterAndFlatten(t *testing.T) {
	job := &host.Job{
		FullName: "upstream",
		Builds: []*host.Build{
			{
				JobName: "upstream", Number: 5, Status: host.StatusSuccess,
				Manifest: &host.ArtifactManifest{
					ProfileID: "main",
					KeyPrefix: "jobs/upstream/5/",
					Entries: []host.ArtifactEntry{
						{Path: "out/app.jar", Digest: "d1"},
						{Path: "out/readme.txt", Digest: "d2"},
					},
				},
			},
		},
	}
	f := newFixture(t, []*host.Job{job}, map[string]string{
		"jobs/upstream/5/out/app.jar":    "jar",
		"jobs/upstream/5/out/readme.txt": "txt",
	})

	step := &Step{ProjectName: "upstream", Filter: "**/*.jar", Flatten: true}
	require.True(t, f.perform(t, step))

	// Flattened: no intermediate directories.
	_, err := os.Stat(filepath.Join(f.workspace, "app.jar"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(f.workspace, "out"))
	assert.True(t, os.IsNotExist(err))

	// Filtered-out entry has no fingerprint.
	entry, err := f.deps.Fingerprints.Get("out/readme.txt", "d2")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestPerformOptionalSemantics(t *testing.T) {
	// Source build exists but has no manifest.
	job := &host.Job{
		FullName: "upstream",
		Builds: []*host.Build{
			{JobName: "upstream", Number: 3, Status: host.StatusSuccess},
		},
	}

	t.Run("optional true yields success with zero copied", func(t *testing.T) {
		f := newFixture(t, []*host.Job{job}, nil)
		ok := f.perform(t, &Step{ProjectName: "upstream", Optional: true})
		assert.True(t, ok)
		assert.Contains(t, f.console.String(), "doesn't have any artifacts")
	})

	t.Run("optional false yields failure", func(t *testing.T) {
		f := newFixture(t, []*host.Job{job}, nil)
		ok := f.perform(t, &Step{ProjectName: "upstream", Optional: false})
		assert.False(t, ok)
	})
}

func TestPerformMissingProject(t *testing.T) {
	f := newFixture(t, nil, nil)

	assert.False(t, f.perform(t, &Step{ProjectName: "gone"}))
	assert.Contains(t, f.console.String(), "Unable to find project")

	f.console.Reset()
	assert.True(t, f.perform(t, &Step{ProjectName: "gone", Optional: true}))
}

func TestPerformNoMatchingBuild(t *testing.T) {
	job := &host.Job{
		FullName: "upstream",
		Builds: []*host.Build{
			{JobName: "upstream", Number: 1, Status: host.StatusFailure},
		},
	}
	f := newFixture(t, []*host.Job{job}, nil)

	assert.False(t, f.perform(t, &Step{ProjectName: "upstream"}))
	assert.Contains(t, f.console.String(), "Unable to find a build")
}

func TestPerformMissingWorkspace(t *testing.T) {
	f := newFixture(t, []*host.Job{upstreamWithManifest()},
		map[string]string{"jobs/upstream/42/build/x.zip": "zip"})
	f.workspace = filepath.Join(f.workspace, "does-not-exist")

	assert.False(t, f.perform(t, &Step{ProjectName: "upstream"}))
	assert.Contains(t, f.console.String(), "Missing workspace")

	f.console.Reset()
	assert.True(t, f.perform(t, &Step{ProjectName: "upstream", Optional: true}))
}

func TestPerformMatrixExpansion(t *testing.T) {
	matrix := &host.Build{
		JobName: "m", Number: 9, Status: host.StatusSuccess, Kind: host.KindMatrix,
		AxisRuns: []*host.Build{
			{
				JobName: "m/jdk=6", Number: 9, Axis: "jdk=6", Status: host.StatusSuccess,
				Manifest: &host.ArtifactManifest{
					ProfileID: "main", KeyPrefix: "jobs/m/9/jdk=6/",
					Entries: []host.ArtifactEntry{{Path: "app.jar", Digest: "d6"}},
				},
			},
			{
				JobName: "m/jdk=7", Number: 9, Axis: "jdk=7", Status: host.StatusSuccess,
				Manifest: &host.ArtifactManifest{
					ProfileID: "main", KeyPrefix: "jobs/m/9/jdk=7/",
					Entries: []host.ArtifactEntry{{Path: "app.jar", Digest: "d7"}},
				},
			},
		},
	}
	job := &host.Job{FullName: "m", Builds: []*host.Build{matrix}}
	f := newFixture(t, []*host.Job{job}, map[string]string{
		"jobs/m/9/jdk=6/app.jar": "jar6",
		"jobs/m/9/jdk=7/app.jar": "jar7",
	})

	require.True(t, f.perform(t, &Step{ProjectName: "m", Target: "deps"}))

	// Identical names from different axis combinations land in distinct
	// subdirectories.
	d6, err := os.ReadFile(filepath.Join(f.workspace, "deps", "jdk=6", "app.jar"))
	require.NoError(t, err)
	d7, err := os.ReadFile(filepath.Join(f.workspace, "deps", "jdk=7", "app.jar"))
	require.NoError(t, err)
	assert.Equal(t, "jar6", string(d6))
	assert.Equal(t, "jar7", string(d7))
}

func TestPerformModuleAggregatePartialSuccess(t *testing.T) {
	// Aggregate has no manifest; one module does. Logical OR across
	// units keeps the step green.
	agg := &host.Build{
		JobName: "mods", Number: 4, Status: host.StatusSuccess, Kind: host.KindModuleAggregate,
		Modules: []*host.Build{
			{JobName: "mods/core", Number: 4, Status: host.StatusSuccess},
			{
				JobName: "mods/web", Number: 4, Status: host.StatusSuccess,
				Manifest: &host.ArtifactManifest{
					ProfileID: "main", KeyPrefix: "jobs/mods/4/web/",
					Entries: []host.ArtifactEntry{{Path: "web.war", Digest: "dw"}},
				},
			},
		},
	}
	job := &host.Job{FullName: "mods", Builds: []*host.Build{agg}}
	f := newFixture(t, []*host.Job{job}, map[string]string{"jobs/mods/4/web/web.war": "war"})

	require.True(t, f.perform(t, &Step{ProjectName: "mods"}))

	// Module artifacts merge into the base directory, no sub-nesting.
	_, err := os.Stat(filepath.Join(f.workspace, "web.war"))
	require.NoError(t, err)
}

func TestPerformProfileFailureIsolation(t *testing.T) {
	// First axis run references an unknown profile; the sibling still
	// copies and the step succeeds by OR-aggregation.
	matrix := &host.Build{
		JobName: "m", Number: 2, Status: host.StatusSuccess, Kind: host.KindMatrix,
		AxisRuns: []*host.Build{
			{
				JobName: "m/jdk=6", Number: 2, Axis: "jdk=6", Status: host.StatusSuccess,
				Manifest: &host.ArtifactManifest{
					ProfileID: "archived", KeyPrefix: "x/",
					Entries: []host.ArtifactEntry{{Path: "a.jar", Digest: "da"}},
				},
			},
			{
				JobName: "m/jdk=7", Number: 2, Axis: "jdk=7", Status: host.StatusSuccess,
				Manifest: &host.ArtifactManifest{
					ProfileID: "main", KeyPrefix: "jobs/m/2/jdk=7/",
					Entries: []host.ArtifactEntry{{Path: "a.jar", Digest: "db"}},
				},
			},
		},
	}
	job := &host.Job{FullName: "m", Builds: []*host.Build{matrix}}
	f := newFixture(t, []*host.Job{job}, map[string]string{"jobs/m/2/jdk=7/a.jar": "jar"})

	require.True(t, f.perform(t, &Step{ProjectName: "m"}))
	assert.Contains(t, f.console.String(), "Cannot resolve storage profile")
}

func TestPerformProfileFailureNeverOptional(t *testing.T) {
	// The only unit references a profile the registry doesn't know.
	// That is a hard failure, not an absence, so optional does not
	// excuse it.
	job := &host.Job{
		FullName: "upstream",
		Builds: []*host.Build{
			{
				JobName: "upstream", Number: 1, Status: host.StatusSuccess,
				Manifest: &host.ArtifactManifest{
					ProfileID: "gone", KeyPrefix: "x/",
					Entries: []host.ArtifactEntry{{Path: "a.jar", Digest: "da"}},
				},
			},
		},
	}
	f := newFixture(t, []*host.Job{job}, nil)

	ok := f.perform(t, &Step{ProjectName: "upstream", Optional: true})
	assert.False(t, ok)
	assert.Contains(t, f.console.String(), "Cannot resolve storage profile")

	f.console.Reset()
	assert.False(t, f.perform(t, &Step{ProjectName: "upstream", Optional: false}))
}

func TestPerformDownloadFailureNeverOptional(t *testing.T) {
	// Manifest references an object missing from the store: a transport
	// fault, so the step fails even when optional.
	f := newFixture(t, []*host.Job{upstreamWithManifest()}, nil)

	ok := f.perform(t, &Step{ProjectName: "upstream", Optional: true})
	assert.False(t, ok)
	assert.Contains(t, f.console.String(), "Failed to copy artifacts")
}

func TestPerformParameterizedPermissionGate(t *testing.T) {
	restricted := upstreamWithManifest()
	restricted.AuthenticatedRead = false
	f := newFixture(t, []*host.Job{restricted},
		map[string]string{"jobs/upstream/42/build/x.zip": "zip"})
	f.dst.Params = map[string]string{"UPSTREAM": "upstream"}

	// Expanded name differs from the configured one and the job is not
	// readable by all authenticated users: fail closed.
	ok := f.perform(t, &Step{ProjectName: "$UPSTREAM"})
	assert.False(t, ok)
	assert.Contains(t, f.console.String(), "Unable to find project")

	// The same job referenced literally copies fine.
	f.console.Reset()
	assert.True(t, f.perform(t, &Step{ProjectName: "upstream"}))
}

func TestPerformSubFilterSelection(t *testing.T) {
	job := &host.Job{
		FullName:   "param-job",
		Parameters: []string{"TARGET"},
		Builds: []*host.Build{
			{
				JobName: "param-job", Number: 1, Status: host.StatusSuccess,
				Params: map[string]string{"TARGET": "arm"},
				Manifest: &host.ArtifactManifest{
					ProfileID: "main", KeyPrefix: "jobs/param-job/1/",
					Entries: []host.ArtifactEntry{{Path: "arm.bin", Digest: "d1"}},
				},
			},
			{
				JobName: "param-job", Number: 2, Status: host.StatusSuccess,
				Params: map[string]string{"TARGET": "x86"},
				Manifest: &host.ArtifactManifest{
					ProfileID: "main", KeyPrefix: "jobs/param-job/2/",
					Entries: []host.ArtifactEntry{{Path: "x86.bin", Digest: "d2"}},
				},
			},
		},
	}
	f := newFixture(t, []*host.Job{job}, map[string]string{
		"jobs/param-job/1/arm.bin": "arm",
		"jobs/param-job/2/x86.bin": "x86",
	})

	require.True(t, f.perform(t, &Step{ProjectName: "param-job/TARGET=arm"}))

	_, err := os.Stat(filepath.Join(f.workspace, "arm.bin"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(f.workspace, "x86.bin"))
	assert.True(t, os.IsNotExist(err))

	// Env key derives from the portion before the sub-filter.
	assert.Equal(t, "1", f.deps.Env.Values()["COPYARTIFACT_BUILD_NUMBER_PARAM_JOB"])
}

func TestPerformInterruption(t *testing.T) {
	f := newFixture(t, []*host.Job{upstreamWithManifest()},
		map[string]string{"jobs/upstream/42/build/x.zip": "zip"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Step{ProjectName: "upstream"}).Perform(ctx, f.deps, f.dst, host.EnvVars{}, f.workspace, &f.console)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPerformNumberSelector(t *testing.T) {
	job := upstreamWithManifest()
	job.Builds = append(job.Builds, &host.Build{JobName: "upstream", Number: 43, Status: host.StatusSuccess})
	f := newFixture(t, []*host.Job{job},
		map[string]string{"jobs/upstream/42/build/x.zip": "zip"})

	step := &Step{ProjectName: "upstream", Selector: selector.NumberSelector{Number: 42}}
	require.True(t, f.perform(t, step))
	assert.Equal(t, "42", f.deps.Env.Values()["COPYARTIFACT_BUILD_NUMBER_UPSTREAM"])
}

func TestValidate(t *testing.T) {
	jobs := host.NewDirectory(&host.Job{FullName: "app"})

	t.Run("good step has no warnings", func(t *testing.T) {
		s := &Step{ProjectName: "app", Filter: "**/*.jar"}
		assert.Empty(t, s.Validate(jobs))
		assert.Equal(t, "app", s.ProjectName)
	})

	t.Run("unresolvable name cleared", func(t *testing.T) {
		s := &Step{ProjectName: "gone"}
		warnings := s.Validate(jobs)
		require.Len(t, warnings, 1)
		assert.Empty(t, s.ProjectName)
	})

	t.Run("parameterized name kept", func(t *testing.T) {
		s := &Step{ProjectName: "$UP"}
		warnings := s.Validate(jobs)
		require.Len(t, warnings, 1)
		assert.Equal(t, "$UP", s.ProjectName)
	})

	t.Run("bad filter warned", func(t *testing.T) {
		s := &Step{ProjectName: "app", Filter: "[bad"}
		warnings := s.Validate(jobs)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "filter")
	})
}
