package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
	"github.com/pankamp3004/Documents-Search-Project/internal/search"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results []search.SearchResult
	err     error
	last    search.SearchRequest
}

func (f *fakeSearcher) Search(_ context.Context, req search.SearchRequest) ([]search.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	return f.results, f.err
}

func sampleResults() []search.SearchResult {
	return []search.SearchResult{
		{RRFScore: 0.0328, Title: "Fusion", DocID: "d1", ChunkIndex: 0, DocumentType: "paper", ChunkText: "rank fusion"},
		{RRFScore: 0.0161, Title: "Vectors", DocID: "d2", ChunkIndex: 3, DocumentType: "blog", ChunkText: "embeddings"},
	}
}

func newTestServer(t *testing.T, s Searcher) *Server {
	t.Helper()
	srv, err := NewServer(s, 0)
	require.NoError(t, err)
	return srv
}

// ============================================================================
// Construction
// ============================================================================

func TestNewServer_RequiresSearcher(t *testing.T) {
	_, err := NewServer(nil, 10)
	require.Error(t, err)
}

func TestNewServer_DefaultTopN(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})

	assert.Equal(t, search.DefaultTopN, srv.defaultTopN)
	assert.NotNil(t, srv.MCPServer())
}

func TestListTools(t *testing.T) {
	tools := newTestServer(t, &fakeSearcher{}).ListTools()

	require.Len(t, tools, 1)
	assert.Equal(t, ToolSearch, tools[0].Name)
	assert.Contains(t, tools[0].Description, "Reciprocal Rank Fusion")
}

// ============================================================================
// CallTool
// ============================================================================

func TestCallTool_Search(t *testing.T) {
	// Given: a searcher with two results
	fake := &fakeSearcher{results: sampleResults()}
	srv := newTestServer(t, fake)

	// When: calling search with every argument
	out, err := srv.CallTool(context.Background(), ToolSearch, map[string]any{
		"query":         "rank fusion",
		"top_n":         float64(5),
		"document_type": "paper",
	})

	// Then: the request is forwarded and results keep their order
	require.NoError(t, err)
	assert.Equal(t, search.SearchRequest{Query: "rank fusion", TopN: 5, DocumentType: "paper"}, fake.last)
	output, ok := out.(SearchOutput)
	require.True(t, ok)
	require.Len(t, output.Results, 2)
	assert.Equal(t, "Fusion", output.Results[0].Title)
}

func TestCallTool_DefaultsTopN(t *testing.T) {
	fake := &fakeSearcher{}
	srv := newTestServer(t, fake)

	_, err := srv.CallTool(context.Background(), ToolSearch, map[string]any{"query": "x"})

	require.NoError(t, err)
	assert.Equal(t, search.DefaultTopN, fake.last.TopN)
}

func TestCallTool_EmptyResultsNotNil(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})

	out, err := srv.CallTool(context.Background(), ToolSearch, map[string]any{"query": "x"})

	require.NoError(t, err)
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, string(data))
}

func TestCallTool_NegativeTopNReachesValidation(t *testing.T) {
	fake := &fakeSearcher{err: dserrors.ValidationError(dserrors.ErrCodeInvalidTopN, "top_n must be a positive integer, got -1")}
	srv := newTestServer(t, fake)

	_, err := srv.CallTool(context.Background(), ToolSearch, map[string]any{"query": "x", "top_n": float64(-1)})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	assert.Equal(t, -1, fake.last.TopN)
}

func TestCallTool_BadArgumentType(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})

	_, err := srv.CallTool(context.Background(), ToolSearch, map[string]any{"query": 42})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestCallTool_SearchError(t *testing.T) {
	fake := &fakeSearcher{err: dserrors.EmbeddingError("embedder down", errors.New("refused"))}
	srv := newTestServer(t, fake)

	_, err := srv.CallTool(context.Background(), ToolSearch, map[string]any{"query": "x"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeEmbeddingFailed, mcpErr.Code)
}

func TestCallTool_UnknownTool(t *testing.T) {
	srv := newTestServer(t, &fakeSearcher{})

	_, err := srv.CallTool(context.Background(), "index_status", nil)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

// ============================================================================
// Protocol
// ============================================================================

func TestServe_UnknownTransport(t *testing.T) {
	err := newTestServer(t, &fakeSearcher{}).Serve(context.Background(), "sse")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestSearchTool_OverInMemoryTransport(t *testing.T) {
	// Given: a client session connected to the server in memory
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := newTestServer(t, &fakeSearcher{results: sampleResults()})
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer func() { _ = serverSession.Close() }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	// When: listing tools and calling search
	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      ToolSearch,
		Arguments: map[string]any{"query": "rank fusion"},
	})

	// Then: the search tool is listed and returns results as JSON text
	require.NoError(t, err)
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, ToolSearch, tools.Tools[0].Name)

	assert.False(t, result.IsError)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	var output SearchOutput
	require.NoError(t, json.Unmarshal([]byte(text.Text), &output))
	require.Len(t, output.Results, 2)
	assert.Equal(t, "d1", output.Results[0].DocID)
}
