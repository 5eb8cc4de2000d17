package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/3leaps/goferry/pkg/host"
	"github.com/3leaps/goferry/pkg/match"
)

// Download fetches every manifest entry matching the filter into targetDir
// and returns one ArtifactRecord per downloaded entry, in manifest order.
//
// The target directory is created with parents if absent. When flatten is
// set, intermediate path segments are discarded and name collisions
// overwrite last-wins. Digests come from the manifest; they were computed
// by the store at upload time and are never recomputed here.
//
// A transport or filesystem failure aborts the download and is returned
// with the records copied so far.
func Download(ctx context.Context, b Backend, m *host.ArtifactManifest, matcher *match.Matcher, targetDir string, flatten bool) ([]host.ArtifactRecord, error) {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("create target dir %s: %w", targetDir, err)
	}

	var records []host.ArtifactRecord
	for _, entry := range m.Entries {
		if !matcher.Match(entry.Path) {
			continue
		}
		dest, err := destPath(targetDir, entry.Path, flatten)
		if err != nil {
			return records, err
		}
		if err := fetchOne(ctx, b, m.KeyPrefix+entry.Path, dest); err != nil {
			return records, err
		}
		records = append(records, host.ArtifactRecord{Name: entry.Path, Digest: entry.Digest})
	}
	return records, nil
}

// destPath maps a manifest entry path to its destination file. Manifest
// paths are relative; anything that would escape the target directory is
// rejected.
func destPath(targetDir, entryPath string, flatten bool) (string, error) {
	clean := path.Clean(strings.ReplaceAll(entryPath, `\`, "/"))
	if clean == "" || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", fmt.Errorf("manifest entry path escapes target dir: %q", entryPath)
	}
	if flatten {
		return filepath.Join(targetDir, path.Base(clean)), nil
	}
	return filepath.Join(targetDir, filepath.FromSlash(clean)), nil
}

func fetchOne(ctx context.Context, b Backend, key, dest string) error {
	body, _, err := b.GetObject(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create artifact file %s: %w", dest, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("write artifact %s: %w", dest, err)
	}
	return f.Close()
}
