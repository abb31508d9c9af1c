package mcp

import (
	"github.com/pankamp3004/Documents-Search-Project/internal/search"
)

// ToolSearch is the name of the hybrid search tool.
const ToolSearch = "search"

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema:"the search text"`
	TopN         int    `json:"top_n,omitempty" jsonschema:"maximum number of results, default 10"`
	DocumentType string `json:"document_type,omitempty" jsonschema:"restrict results to one document type: book, blog, paper, or All"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []search.SearchResult `json:"results" jsonschema:"results ordered by descending rrf_score"`
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

const searchDescription = "Hybrid document search. Runs a keyword query and a semantic vector query " +
	"over the indexed chunks and merges both rankings with Reciprocal Rank Fusion. " +
	"Results below the relevance threshold are dropped, so an empty list means nothing matched well enough."
