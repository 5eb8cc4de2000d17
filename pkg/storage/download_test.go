package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/goferry/pkg/host"
	"github.com/3leaps/goferry/pkg/match"
	"github.com/3leaps/goferry/pkg/storage"
	"github.com/3leaps/goferry/pkg/storage/file"
)

// seedStore writes objects under dir and returns a file backend over it.
func seedStore(t *testing.T, objects map[string]string) storage.Backend {
	t.Helper()
	dir := t.TempDir()
	for key, content := range objects {
		full := filepath.Join(dir, filepath.FromSlash(key))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	b, err := file.New(file.Config{BaseDir: dir})
	require.NoError(t, err)
	return b
}

func mustMatcher(t *testing.T, filter string) *match.Matcher {
	t.Helper()
	m, err := match.New(filter, "")
	require.NoError(t, err)
	return m
}

func TestDownload(t *testing.T) {
	ctx := context.Background()

	backend := seedStore(t, map[string]string{
		"jobs/app/42/out/app.jar":    "jar-bytes",
		"jobs/app/42/out/readme.txt": "docs",
	})
	manifest := &host.ArtifactManifest{
		ProfileID: "main",
		KeyPrefix: "jobs/app/42/",
		Entries: []host.ArtifactEntry{
			{Path: "out/app.jar", Digest: "d1"},
			{Path: "out/readme.txt", Digest: "d2"},
		},
	}

	t.Run("match all preserves paths", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "ws", "deps")

		records, err := storage.Download(ctx, backend, manifest, mustMatcher(t, ""), target, false)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, host.ArtifactRecord{Name: "out/app.jar", Digest: "d1"}, records[0])
		assert.Equal(t, host.ArtifactRecord{Name: "out/readme.txt", Digest: "d2"}, records[1])

		data, err := os.ReadFile(filepath.Join(target, "out", "app.jar"))
		require.NoError(t, err)
		assert.Equal(t, "jar-bytes", string(data))
	})

	t.Run("glob filter narrows entries", func(t *testing.T) {
		target := t.TempDir()

		records, err := storage.Download(ctx, backend, manifest, mustMatcher(t, "**/*.jar"), target, false)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "out/app.jar", records[0].Name)

		_, err = os.Stat(filepath.Join(target, "out", "readme.txt"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("flatten drops intermediate directories", func(t *testing.T) {
		target := t.TempDir()

		records, err := storage.Download(ctx, backend, manifest, mustMatcher(t, "**/*.jar"), target, true)
		require.NoError(t, err)
		require.Len(t, records, 1)

		_, err = os.Stat(filepath.Join(target, "app.jar"))
		require.NoError(t, err)
	})

	t.Run("missing object is a hard failure", func(t *testing.T) {
		broken := &host.ArtifactManifest{
			ProfileID: "main",
			KeyPrefix: "jobs/app/42/",
			Entries:   []host.ArtifactEntry{{Path: "out/gone.jar", Digest: "d9"}},
		}
		_, err := storage.Download(ctx, backend, broken, mustMatcher(t, ""), t.TempDir(), false)
		require.Error(t, err)
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("escaping entry path rejected", func(t *testing.T) {
		for _, evilPath := range []string{"../outside.txt", "..", "a/../../outside.txt"} {
			evil := &host.ArtifactManifest{
				Entries: []host.ArtifactEntry{{Path: evilPath, Digest: "d9"}},
			}
			_, err := storage.Download(ctx, backend, evil, mustMatcher(t, ""), t.TempDir(), false)
			require.Error(t, err, "path %q", evilPath)
			assert.Contains(t, err.Error(), "escapes")
		}
	})
}

func TestRegistry(t *testing.T) {
	backend := seedStore(t, nil)

	reg := storage.NewRegistry()
	reg.Register("main", backend)

	got, err := reg.Resolve("main")
	require.NoError(t, err)
	assert.Equal(t, backend, got)

	_, err = reg.Resolve("other")
	require.Error(t, err)
	assert.True(t, storage.IsProfileNotFound(err))

	require.NoError(t, reg.Close())
}
