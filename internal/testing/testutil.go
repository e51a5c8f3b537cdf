// Package testing provides shared test helpers for ctfpack.
//
// The helpers build fixture trees with controlled modification times so
// archive determinism and aggregate-mtime behavior can be asserted
// exactly. The package works with github.com/stretchr/testify.
package testing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// FixedTime is a fixed timestamp for deterministic tests. Fixture files
// are stamped with it unless a test overrides the mtime explicitly.
var FixedTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// WriteTree creates the given relative-path-to-content files under root,
// creating parent directories as needed. Every file and created directory
// is stamped with FixedTime.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		require.NoError(t, os.Chtimes(path, FixedTime, FixedTime))
	}
	// Directory mtimes change as children are created; restamp them last.
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return os.Chtimes(path, FixedTime, FixedTime)
		}
		return nil
	})
	require.NoError(t, err)
}

// TouchAt sets the modification time of path.
func TouchAt(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// WriteChallengeConfig writes a challenge.yml with the given document into
// dir and returns its path.
func WriteChallengeConfig(t *testing.T, dir string, doc string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "challenge.yml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}
