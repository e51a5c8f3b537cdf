package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/ctfpack/ctfpack/internal/testing"
)

func buildTestTree(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	testutil.WriteTree(t, base, map[string]string{
		"flag.txt":          "flag{test}",
		"skip.log":          "noise",
		"src/main.c":        "int main() { return 0; }",
		"src/lib/util.c":    "void util() {}",
		"src/lib/debug.log": "more noise",
	})
	return base
}

func readArchive(t *testing.T, data []byte) *zip.Reader {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return r
}

func entryNames(r *zip.Reader) []string {
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func entryContent(t *testing.T, r *zip.Reader, name string) string {
	t.Helper()
	for _, f := range r.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(data)
		}
	}
	t.Fatalf("entry %q not found in archive", name)
	return ""
}

func TestBuildDeterminism(t *testing.T) {
	base := buildTestTree(t)

	first, firstMTime, err := Build(base, []string{"flag.txt", "src"}, nil, nil)
	require.NoError(t, err)
	second, secondMTime, err := Build(base, []string{"flag.txt", "src"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second, "two builds over an unchanged tree must be byte-identical")
	assert.True(t, firstMTime.Equal(secondMTime))
}

func TestBuildEntryOrderAndDedup(t *testing.T) {
	base := buildTestTree(t)

	// flag.txt appears in two globs but must be written once, first.
	data, _, err := Build(base, []string{"flag.txt", "flag.txt", "src"}, nil, nil)
	require.NoError(t, err)

	r := readArchive(t, data)
	assert.Equal(t, []string{
		"flag.txt",
		"src/",
		"src/lib/",
		"src/lib/debug.log",
		"src/lib/util.c",
		"src/main.c",
	}, entryNames(r))
	assert.Equal(t, "flag{test}", entryContent(t, r, "flag.txt"))
}

func TestBuildNormalizedMetadata(t *testing.T) {
	base := buildTestTree(t)

	data, _, err := Build(base, []string{"src"}, nil, nil)
	require.NoError(t, err)

	r := readArchive(t, data)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			assert.Equal(t, fs.ModeDir|0o775, f.Mode(), "dir %s", f.Name)
			assert.Equal(t, zip.Store, f.Method, "dir %s", f.Name)
		} else {
			assert.Equal(t, fs.FileMode(0o644), f.Mode(), "file %s", f.Name)
			assert.Equal(t, zip.Deflate, f.Method, "file %s", f.Name)
		}
	}
}

func TestBuildExclusion(t *testing.T) {
	base := buildTestTree(t)
	m, err := CompileMatcher([]string{"*.log"})
	require.NoError(t, err)

	data, _, err := Build(base, []string{"flag.txt", "skip.log", "src"}, m, nil)
	require.NoError(t, err)

	r := readArchive(t, data)
	names := entryNames(r)
	assert.Contains(t, names, "flag.txt")
	assert.Contains(t, names, "src/lib/util.c")
	assert.NotContains(t, names, "skip.log")
	assert.NotContains(t, names, "src/lib/debug.log")
}

func TestBuildExclusionPrunesSubtree(t *testing.T) {
	base := buildTestTree(t)
	m, err := CompileMatcher([]string{"lib"})
	require.NoError(t, err)

	data, _, err := Build(base, []string{"src"}, m, nil)
	require.NoError(t, err)

	r := readArchive(t, data)
	assert.Equal(t, []string{"src/", "src/main.c"}, entryNames(r))
}

func TestBuildAggregateMTime(t *testing.T) {
	t.Run("max over included files", func(t *testing.T) {
		base := buildTestTree(t)
		newer := testutil.FixedTime.Add(3 * time.Hour)
		testutil.TouchAt(t, filepath.Join(base, "src", "lib", "util.c"), newer)

		_, mtime, err := Build(base, []string{"src"}, nil, nil)
		require.NoError(t, err)
		assert.True(t, mtime.Equal(newer), "got %v want %v", mtime, newer)
	})

	t.Run("directories do not contribute", func(t *testing.T) {
		base := buildTestTree(t)
		testutil.TouchAt(t, filepath.Join(base, "src"), testutil.FixedTime.Add(24*time.Hour))

		_, mtime, err := Build(base, []string{"src"}, nil, nil)
		require.NoError(t, err)
		assert.True(t, mtime.Equal(testutil.FixedTime))
	})

	t.Run("epoch zero without files", func(t *testing.T) {
		base := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(base, "empty"), 0o755))

		data, mtime, err := Build(base, []string{"empty"}, nil, nil)
		require.NoError(t, err)
		assert.True(t, mtime.Equal(EpochZero))
		assert.Equal(t, []string{"empty/"}, entryNames(readArchive(t, data)))
	})

	t.Run("synthetic entries do not contribute", func(t *testing.T) {
		base := buildTestTree(t)
		content := "synthetic"
		data, mtime, err := Build(base, []string{"flag.txt"}, nil, []Additional{
			{Str: &content, Path: "extra.txt"},
		})
		require.NoError(t, err)
		assert.True(t, mtime.Equal(testutil.FixedTime))
		assert.Equal(t, "synthetic", entryContent(t, readArchive(t, data), "extra.txt"))
	})
}

func TestBuildAdditionalEntries(t *testing.T) {
	base := buildTestTree(t)

	t.Run("str and base64 append in order after files", func(t *testing.T) {
		text := "hello text"
		encoded := "aGVsbG8gYmFzZTY0" // "hello base64"
		data, _, err := Build(base, []string{"flag.txt"}, nil, []Additional{
			{Str: &text, Path: "readme.txt"},
			{Base64: &encoded, Path: "blob.bin"},
		})
		require.NoError(t, err)

		r := readArchive(t, data)
		assert.Equal(t, []string{"flag.txt", "readme.txt", "blob.bin"}, entryNames(r))
		assert.Equal(t, "hello text", entryContent(t, r, "readme.txt"))
		assert.Equal(t, "hello base64", entryContent(t, r, "blob.bin"))
	})

	t.Run("missing str and base64", func(t *testing.T) {
		_, _, err := Build(base, []string{"flag.txt"}, nil, []Additional{{Path: "broken"}})
		assert.ErrorIs(t, err, ErrBadEntry)
	})

	t.Run("invalid base64", func(t *testing.T) {
		bad := "!!! not base64 !!!"
		_, _, err := Build(base, []string{"flag.txt"}, nil, []Additional{{Base64: &bad, Path: "broken"}})
		assert.ErrorIs(t, err, ErrBadEntry)
	})

	t.Run("missing path", func(t *testing.T) {
		text := "x"
		_, _, err := Build(base, []string{"flag.txt"}, nil, []Additional{{Str: &text}})
		assert.ErrorIs(t, err, ErrBadEntry)
	})
}

func TestBuildErrors(t *testing.T) {
	base := buildTestTree(t)

	t.Run("glob matching nothing is fatal", func(t *testing.T) {
		_, _, err := Build(base, []string{"does-not-exist*"}, nil, nil)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("invalid glob", func(t *testing.T) {
		_, _, err := Build(base, []string{"["}, nil, nil)
		assert.ErrorIs(t, err, ErrBadPattern)
	})
}

func TestBuildRecursiveGlob(t *testing.T) {
	base := buildTestTree(t)

	data, _, err := Build(base, []string{"src/**/*.c"}, nil, nil)
	require.NoError(t, err)

	names := entryNames(readArchive(t, data))
	assert.Contains(t, names, "src/main.c")
	assert.Contains(t, names, "src/lib/util.c")
	assert.NotContains(t, names, "src/lib/debug.log")
}
