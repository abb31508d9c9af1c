package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pankamp3004/Documents-Search-Project/internal/store"
)

// deploymentEnv lists non-prefixed variables read by config.Load.
var deploymentEnv = []string{"ELASTIC_URL", "ELASTIC_USERNAME", "ELASTIC_PASSWORD", "INDEX_NAME", "OPENAI_API_KEY"}

// isolateEnv hides the user config and every configuration variable.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	names := append([]string(nil), deploymentEnv...)
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "DOCSEARCH_") {
			names = append(names, name)
		}
	}
	for _, name := range names {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

// localProject writes a docsearch.yaml using embedded backends and the
// static embedder, and returns its directory.
func localProject(t *testing.T, lexicalBackend string) string {
	t.Helper()
	isolateEnv(t)

	dir := t.TempDir()
	yaml := `version: 1
embeddings:
  provider: static
  dimensions: 32
  cache_size: 0
store:
  lexical_backend: ` + lexicalBackend + `
  vector_backend: hnsw
  data_dir: ` + filepath.Join(dir, "data") + `
logging:
  level: debug
  file: ` + filepath.Join(dir, "logs", "docsearch.log") + `
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docsearch.yaml"), []byte(yaml), 0o644))
	return dir
}

// writeChunks writes chunk records as JSONL and returns the file path.
func writeChunks(t *testing.T, dir string, chunks ...store.Chunk) string {
	t.Helper()
	var lines []string
	for _, c := range chunks {
		data, err := json.Marshal(c)
		require.NoError(t, err)
		lines = append(lines, string(data))
	}
	path := filepath.Join(dir, "chunks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func sampleChunks() []store.Chunk {
	return []store.Chunk{
		{ChunkID: "a-0", DocID: "a", Title: "Rank Fusion", DocumentType: "paper",
			ChunkText: "reciprocal rank fusion merges keyword and vector rankings"},
		{ChunkID: "b-0", DocID: "b", Title: "Cooking Pasta", DocumentType: "blog",
			ChunkText: "boil water and add salt before the pasta"},
		{ChunkID: "c-0", DocID: "c", Title: "Vector Databases", DocumentType: "book",
			ChunkText: "approximate nearest neighbour search over embeddings"},
	}
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, opts := newRootCmd()
	t.Cleanup(opts.closeLogging)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}
