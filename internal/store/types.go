// Package store defines the chunk schema shared by every index backend and the
// typed lexical and vector query interfaces the hybrid engine consumes.
//
// Backends include an Elasticsearch REST client (the deployed external store)
// and embedded bleve, SQLite FTS5 and HNSW indexes for local use and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EmbeddingDimensions is the dimensionality of chunk embeddings.
const EmbeddingDimensions = 384

// DocumentType is the exact-match category of a source document.
type DocumentType string

const (
	DocumentTypeBook  DocumentType = "book"
	DocumentTypeBlog  DocumentType = "blog"
	DocumentTypePaper DocumentType = "paper"
)

// DefaultDocumentTypes lists the recognized document types.
var DefaultDocumentTypes = []DocumentType{DocumentTypeBook, DocumentTypeBlog, DocumentTypePaper}

// LookupDocumentType matches name case-insensitively against allowed and
// returns the canonical value.
func LookupDocumentType(name string, allowed []DocumentType) (DocumentType, bool) {
	name = strings.TrimSpace(name)
	for _, t := range allowed {
		if strings.EqualFold(name, string(t)) {
			return t, true
		}
	}
	return "", false
}

// Chunk is one indexed segment of a source document.
// Chunks are immutable once indexed.
type Chunk struct {
	ChunkID      string       `json:"chunk_id"`
	DocID        string       `json:"doc_id"`
	Title        string       `json:"title"`
	DocumentType DocumentType `json:"document_type"`
	ChunkIndex   int          `json:"chunk_index"`
	ChunkText    string       `json:"chunk_text"`
	Snippet      string       `json:"snippet,omitempty"`
	ChunkURL     string       `json:"chunk_url,omitempty"`
	Embedding    []float32    `json:"embedding,omitempty"`
	NumTokens    int          `json:"num_tokens,omitempty"`
	CreatedAt    time.Time    `json:"created_at,omitzero"`
}

// WithoutEmbedding returns a copy of c with the embedding dropped.
// Hits carry stored fields only.
func (c Chunk) WithoutEmbedding() Chunk {
	c.Embedding = nil
	return c
}

// Validate checks a chunk before it is written to a local backend.
// A zero dims skips the embedding length check.
func (c Chunk) Validate(dims int) error {
	if strings.TrimSpace(c.ChunkID) == "" {
		return fmt.Errorf("chunk_id is required")
	}
	if strings.TrimSpace(c.ChunkText) == "" {
		return fmt.Errorf("chunk %s: chunk_text is required", c.ChunkID)
	}
	if c.ChunkIndex < 0 {
		return fmt.Errorf("chunk %s: chunk_index must be >= 0", c.ChunkID)
	}
	if dims > 0 && len(c.Embedding) != 0 && len(c.Embedding) != dims {
		return fmt.Errorf("chunk %s: %w", c.ChunkID, ErrDimensionMismatch{Expected: dims, Got: len(c.Embedding)})
	}
	return nil
}

// Hit is one ranked result from a single backend query.
// Score is the backend's native relevance score and is not comparable
// across backends.
type Hit struct {
	Chunk Chunk
	Score float64
}

// LexicalQuery is a conjunctive term-match query.
type LexicalQuery struct {
	// Text must match with all terms present.
	Text string

	// Size bounds the candidate pool.
	Size int

	// DocumentType restricts eligible chunks when non-empty.
	DocumentType DocumentType
}

// Validate checks the query before it reaches a backend.
func (q LexicalQuery) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("lexical query text is empty")
	}
	if q.Size <= 0 {
		return fmt.Errorf("lexical query size must be positive, got %d", q.Size)
	}
	return nil
}

// VectorQuery is an approximate k-nearest-neighbour query under cosine similarity.
type VectorQuery struct {
	// Vector is the query embedding.
	Vector []float32

	// K bounds the number of hits returned.
	K int

	// NumCandidates is the search breadth; must be >= K.
	NumCandidates int

	// DocumentType restricts eligible chunks when non-empty.
	DocumentType DocumentType
}

// Validate checks the query before it reaches a backend.
func (q VectorQuery) Validate() error {
	if len(q.Vector) == 0 {
		return fmt.Errorf("vector query has no vector")
	}
	if q.K <= 0 {
		return fmt.Errorf("vector query k must be positive, got %d", q.K)
	}
	if q.NumCandidates < q.K {
		return fmt.Errorf("num_candidates (%d) must be >= k (%d)", q.NumCandidates, q.K)
	}
	return nil
}

// LexicalSearcher executes lexical queries.
// Hits are ordered by descending native score.
type LexicalSearcher interface {
	SearchLexical(ctx context.Context, q LexicalQuery) ([]Hit, error)
}

// VectorSearcher executes vector queries.
// Hits are ordered by descending cosine similarity.
type VectorSearcher interface {
	SearchVector(ctx context.Context, q VectorQuery) ([]Hit, error)

	// Dimensions returns the configured embedding dimension.
	Dimensions() int
}

// ChunkWriter bulk-writes chunks into a local backend.
type ChunkWriter interface {
	IndexChunks(ctx context.Context, chunks []Chunk) error
	Count(ctx context.Context) (int, error)
}

// ErrDimensionMismatch is returned when a vector has the wrong dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("store is closed")
