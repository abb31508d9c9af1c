// Package search implements hybrid retrieval: a lexical and a vector branch
// are queried concurrently, their ranked hits are merged with Reciprocal Rank
// Fusion (RRF), and the fused list is thresholded and capped into results.
//
// RRF score for a chunk: Σ 1/(K + rank_i) over the lists it appears in,
// with 1-based ranks. Scores are rank-based, so BM25 and cosine scales are
// never compared directly.
package search

import (
	"fmt"
	"time"

	"github.com/pankamp3004/Documents-Search-Project/internal/store"
)

// Defaults for the ranking knobs. Each one changes result quality and is
// overridable through Config.
const (
	// DefaultTopN is the result cap when a request does not set one.
	DefaultTopN = 10

	// DefaultRRFConstant is the RRF damping constant K.
	DefaultRRFConstant = 60

	// DefaultMinScore is the precision floor applied to fused scores.
	// 0.0155 admits single-signal hits down to rank 4 at K=60.
	DefaultMinScore = 0.0155

	// DefaultLexicalPoolSize is the lexical candidate pool size.
	DefaultLexicalPoolSize = 50

	// DefaultVectorK is the number of vector hits requested.
	DefaultVectorK = 50

	// DefaultNumCandidates is the approximate kNN search breadth.
	DefaultNumCandidates = 200

	// DefaultRetrievalTimeout bounds each retrieval branch.
	DefaultRetrievalTimeout = 30 * time.Second
)

// Config holds the engine's ranking and retrieval policy.
type Config struct {
	RRFConstant      int
	MinScore         float64
	LexicalPoolSize  int
	VectorK          int
	NumCandidates    int
	RetrievalTimeout time.Duration

	// RequireBothSignals keeps only chunks found by both branches.
	RequireBothSignals bool

	// TolerateBranchFailure lets a failed branch degrade to an empty list
	// when the other branch succeeds. Embedding failures are never tolerated.
	TolerateBranchFailure bool

	// DocumentTypes are the accepted document_type filter values.
	DocumentTypes []store.DocumentType
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RRFConstant:      DefaultRRFConstant,
		MinScore:         DefaultMinScore,
		LexicalPoolSize:  DefaultLexicalPoolSize,
		VectorK:          DefaultVectorK,
		NumCandidates:    DefaultNumCandidates,
		RetrievalTimeout: DefaultRetrievalTimeout,
		DocumentTypes:    append([]store.DocumentType(nil), store.DefaultDocumentTypes...),
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	switch {
	case c.RRFConstant <= 0:
		return fmt.Errorf("rrf_constant must be positive, got %d", c.RRFConstant)
	case c.MinScore < 0:
		return fmt.Errorf("min_rrf_score must be >= 0, got %g", c.MinScore)
	case c.LexicalPoolSize <= 0:
		return fmt.Errorf("lexical_pool_size must be positive, got %d", c.LexicalPoolSize)
	case c.VectorK <= 0:
		return fmt.Errorf("vector_k must be positive, got %d", c.VectorK)
	case c.NumCandidates < c.VectorK:
		return fmt.Errorf("num_candidates (%d) must be >= vector_k (%d)", c.NumCandidates, c.VectorK)
	case c.RetrievalTimeout <= 0:
		return fmt.Errorf("retrieval_timeout must be positive, got %s", c.RetrievalTimeout)
	case len(c.DocumentTypes) == 0:
		return fmt.Errorf("document_types must not be empty")
	}
	return nil
}

// SearchRequest is a single hybrid search query.
type SearchRequest struct {
	Query string `json:"query"`
	TopN  int    `json:"top_n"`

	// DocumentType filters both branches. Empty or "All" means no filter.
	DocumentType string `json:"document_type,omitempty"`
}

// SearchResult is one ranked result.
type SearchResult struct {
	RRFScore     float64 `json:"rrf_score"`
	ChunkText    string  `json:"chunk_text"`
	Snippet      string  `json:"snippet"`
	ChunkURL     string  `json:"chunk_url"`
	Title        string  `json:"title"`
	DocID        string  `json:"doc_id"`
	ChunkIndex   int     `json:"chunk_index"`
	DocumentType string  `json:"document_type"`

	ChunkID string `json:"-"`
}

// RetrievalHit is one entry of a single retriever's ranked list.
type RetrievalHit struct {
	ChunkID string
	Rank    int     // 1-based position in the retriever's list
	Score   float64 // native backend score, informational only
	Chunk   store.Chunk
}

func newSearchResult(fs FusedScore, c store.Chunk) SearchResult {
	return SearchResult{
		RRFScore:     fs.Score,
		ChunkText:    c.ChunkText,
		Snippet:      c.Snippet,
		ChunkURL:     c.ChunkURL,
		Title:        c.Title,
		DocID:        c.DocID,
		ChunkIndex:   c.ChunkIndex,
		DocumentType: string(c.DocumentType),
		ChunkID:      fs.ChunkID,
	}
}
