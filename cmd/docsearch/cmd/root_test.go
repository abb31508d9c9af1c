package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
	"github.com/pankamp3004/Documents-Search-Project/pkg/version"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"search", "serve", "mcp", "load", "config", "logs", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	out, err := run(t, "--version")

	require.NoError(t, err)
	assert.Equal(t, "docsearch version "+version.Version+"\n", out)
}

func TestRootCmd_InvalidConfigFails(t *testing.T) {
	// Given: a project file with an invalid knob
	isolateEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docsearch.yaml"),
		[]byte("search:\n  rrf_constant: 0\n"), 0o644))

	// When: running a command that needs configuration
	_, err := run(t, "config", "show", "--dir", dir)

	// Then: it fails with a configuration error
	require.Error(t, err)
	assert.Equal(t, dserrors.KindConfig, dserrors.KindOf(err))
}

func TestRootCmd_VersionIgnoresBrokenConfig(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docsearch.yaml"), []byte("unknown_key: 1\n"), 0o644))

	out, err := run(t, "version", "--short", "--dir", dir)

	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))
}

func TestRootCmd_WritesLogFile(t *testing.T) {
	dir := localProject(t, "bleve")

	_, err := run(t, "config", "show", "--dir", dir)

	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "logs", "docsearch.log"))
}

// ============================================================================
// version
// ============================================================================

func TestVersionCmd_DefaultOutput(t *testing.T) {
	out, err := run(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "docsearch")
	assert.Contains(t, out, version.Version)
	assert.Contains(t, out, "commit")
}

func TestVersionCmd_JSONOutput(t *testing.T) {
	out, err := run(t, "version", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"version": "`+version.Version+`"`)
	assert.Contains(t, out, `"go_version"`)
}
