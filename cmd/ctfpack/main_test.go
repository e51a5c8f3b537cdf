package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGlobal(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, args, err := parseGlobal([]string{"pack"})
		require.NoError(t, err)
		assert.Equal(t, ".", opts.projectDir)
		assert.False(t, opts.jsonOutput)
		assert.Equal(t, []string{"pack"}, args)
	})

	t.Run("flags before command", func(t *testing.T) {
		opts, args, err := parseGlobal([]string{"--project", "/ctf", "--json", "pack", "web"})
		require.NoError(t, err)
		assert.Equal(t, "/ctf", opts.projectDir)
		assert.True(t, opts.jsonOutput)
		assert.Equal(t, []string{"pack", "web"}, args)
	})

	t.Run("version", func(t *testing.T) {
		opts, _, err := parseGlobal([]string{"--version"})
		require.NoError(t, err)
		assert.True(t, opts.showVersion)
	})
}

func TestIsHelpToken(t *testing.T) {
	assert.True(t, isHelpToken("help"))
	assert.True(t, isHelpToken("-h"))
	assert.True(t, isHelpToken("--help"))
	assert.False(t, isHelpToken("pack"))
}

func TestDispatchUnknownCommand(t *testing.T) {
	err := dispatch(context.Background(), []string{"frobnicate"}, commonFlags{})
	assert.Error(t, err)
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ctfpack.yaml"), []byte(""), 0o644))
	chalDir := filepath.Join(root, "pwn", "intro")
	require.NoError(t, os.MkdirAll(chalDir, 0o755))
	doc := "id: intro\nprovide:\n  - flag.txt\n"
	require.NoError(t, os.WriteFile(filepath.Join(chalDir, "challenge.yml"), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(chalDir, "flag.txt"), []byte("flag{cli}"), 0o644))
	return root
}

func TestRunPack(t *testing.T) {
	t.Run("commits discovered challenges", func(t *testing.T) {
		root := writeProject(t)
		base := commonFlags{projectDir: root, jsonOutput: true}

		err := runPack(context.Background(), nil, base)
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(root, ".ctfpack", "assets", "intro", "flag.txt"))
		require.NoError(t, err)
		assert.Equal(t, "flag{cli}", string(data))
	})

	t.Run("dry run commits nothing", func(t *testing.T) {
		root := writeProject(t)
		base := commonFlags{projectDir: root, jsonOutput: true}

		err := runPack(context.Background(), []string{"--dry-run"}, base)
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(root, ".ctfpack", "assets", "intro", "flag.txt"))
		assert.Error(t, err)
	})

	t.Run("missing project config", func(t *testing.T) {
		err := runPack(context.Background(), nil, commonFlags{projectDir: t.TempDir(), jsonOutput: true})
		assert.Error(t, err)
	})
}

func TestRunDescribe(t *testing.T) {
	root := writeProject(t)
	doc := "id: web\ndescription: \"Go to {{.url}}\"\nexpose:\n  web:\n    - http: web.example.com\n"
	webDir := filepath.Join(root, "web")
	require.NoError(t, os.MkdirAll(webDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "challenge.yml"), []byte(doc), 0o644))

	err := runDescribe(context.Background(), []string{webDir}, commonFlags{projectDir: root, jsonOutput: true})
	require.NoError(t, err)

	t.Run("requires exactly one dir", func(t *testing.T) {
		err := runDescribe(context.Background(), nil, commonFlags{projectDir: root})
		assert.Error(t, err)
	})
}
