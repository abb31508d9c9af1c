package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankamp3004/Documents-Search-Project/internal/search"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("🔍", "Checking index...")

	// Then: output contains icon and message
	assert.Equal(t, "🔍 Checking index...\n", buf.String())
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Status("", "detail")

	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_Icons(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		icon  string
		text  string
	}{
		{"success", func(w *Writer) { w.Successf("Loaded %d chunks", 3) }, "✅", "Loaded 3 chunks"},
		{"warning", func(w *Writer) { w.Warningf("%d skipped", 2) }, "⚠️", "2 skipped"},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "boom") }, "❌", "failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}

			tt.write(New(buf))

			assert.Contains(t, buf.String(), tt.icon)
			assert.Contains(t, buf.String(), tt.text)
		})
	}
}

func TestNew_NoColorForNonTerminal(t *testing.T) {
	assert.False(t, New(&bytes.Buffer{}).UseColor())

	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.False(t, New(f).UseColor())
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).JSON([]search.SearchResult{{Title: "A", RRFScore: 0.03}}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "A", decoded[0]["title"])
	assert.NotContains(t, decoded[0], "chunk_id")
}

// ============================================================================
// Results
// ============================================================================

func TestWriter_Results_Empty(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Results("nothing", nil)

	assert.Contains(t, buf.String(), `No results found for "nothing"`)
}

func TestWriter_Results_RendersRankedList(t *testing.T) {
	// Given: two results, one with a snippet and URL
	results := []search.SearchResult{
		{RRFScore: 0.0328, Title: "Rank Fusion", DocID: "d1", ChunkIndex: 2, DocumentType: "paper",
			Snippet: "RRF merges rankings", ChunkText: "full text", ChunkURL: "https://example.com/d1#2"},
		{RRFScore: 0.0161, Title: "Vectors", DocID: "d2", DocumentType: "blog",
			ChunkText: "line one\n\nline two\nline three\nline four"},
	}
	buf := &bytes.Buffer{}

	// When: rendering without colour
	NewPlain(buf).Results("fusion", results)

	// Then: ranks, scores, metadata, and previews appear in order
	out := buf.String()
	assert.Contains(t, out, `Found 2 results for "fusion"`)
	assert.Contains(t, out, "1. Rank Fusion (rrf: 0.0328)")
	assert.Contains(t, out, "2. Vectors (rrf: 0.0161)")
	assert.Contains(t, out, "paper | d1 #2")
	assert.Contains(t, out, "https://example.com/d1#2")
	assert.Contains(t, out, "RRF merges rankings")
	assert.NotContains(t, out, "full text")
	assert.Contains(t, out, "line three")
	assert.NotContains(t, out, "line four")
	assert.Less(t, strings.Index(out, "Rank Fusion"), strings.Index(out, "Vectors"))
	assert.NotContains(t, out, "\033[")
}

func TestWriter_Results_Colour(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &Writer{out: buf, useColor: true}

	w.Results("q", []search.SearchResult{{Title: "A", RRFScore: 0.02}})

	assert.Contains(t, buf.String(), colorBold+"A"+colorReset)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, preview("a\n\n  b  \nc", 2))
	assert.Nil(t, preview("\n\n", 3))
}
