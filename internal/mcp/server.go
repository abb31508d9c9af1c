package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pankamp3004/Documents-Search-Project/internal/search"
	"github.com/pankamp3004/Documents-Search-Project/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "docsearch"

// Searcher runs one hybrid search.
type Searcher interface {
	Search(ctx context.Context, req search.SearchRequest) ([]search.SearchResult, error)
}

// Server bridges MCP clients with the hybrid search engine.
type Server struct {
	mcp         *mcp.Server
	searcher    Searcher
	defaultTopN int
	logger      *slog.Logger
}

// NewServer creates an MCP server exposing the search tool.
// defaultTopN applies when a call omits top_n.
func NewServer(searcher Searcher, defaultTopN int) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if defaultTopN <= 0 {
		defaultTopN = search.DefaultTopN
	}

	s := &Server{
		searcher:    searcher,
		defaultTopN: defaultTopN,
		logger:      slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version.Version}, nil)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSearch,
		Description: searchDescription,
	}, s.mcpSearchHandler)
	s.logger.Debug("Registered tool", slog.String("name", ToolSearch))

	return s, nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{{Name: ToolSearch, Description: searchDescription}}
}

// CallTool invokes a tool by name with JSON-like arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearch:
		input, err := decodeArgs(args)
		if err != nil {
			return nil, err
		}
		return s.search(ctx, input)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	output, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, output, nil
}

func (s *Server) search(ctx context.Context, input SearchInput) (SearchOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	topN := input.TopN
	if topN == 0 {
		topN = s.defaultTopN
	}

	results, err := s.searcher.Search(ctx, search.SearchRequest{
		Query:        input.Query,
		TopN:         topN,
		DocumentType: input.DocumentType,
	})
	duration := time.Since(start)
	if err != nil {
		s.logger.Warn("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return SearchOutput{}, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	if results == nil {
		results = []search.SearchResult{}
	}
	return SearchOutput{Results: results}, nil
}

// Serve runs the server on the named transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// decodeArgs converts loosely typed arguments into SearchInput.
func decodeArgs(args map[string]any) (SearchInput, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return SearchInput{}, NewInvalidParamsError("arguments must be a JSON object")
	}
	var input SearchInput
	if err := json.Unmarshal(data, &input); err != nil {
		return SearchInput{}, NewInvalidParamsError("invalid arguments: " + err.Error())
	}
	return input, nil
}

// generateRequestID creates a short id for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
