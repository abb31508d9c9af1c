// Package embed provides the query embedders used by the search engine.
//
// Every embedder produces vectors of a fixed dimensionality that must match
// the vectors stored in the index. Failures are reported as embedding errors
// from internal/errors; callers never fall back to lexical-only search.
package embed

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
)

// Common embedding constants
const (
	// DefaultDimensions matches the all-MiniLM-L6-v2 vectors stored in the index.
	DefaultDimensions = 384

	// MaxBatchSize is the maximum allowed batch size (prevents memory exhaustion)
	MaxBatchSize = 256

	// DefaultBatchSize is the default batch size for embedding requests
	DefaultBatchSize = 32

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 30 * time.Second
)

// Embedder generates vector embeddings for text
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Available checks if the embedder is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// normalizeText collapses runs of whitespace. An empty result cannot be encoded.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// errEmptyText is returned for input that is empty after normalization.
func errEmptyText() error {
	return dserrors.New(dserrors.ErrCodeEmbeddingEmptyText, "text is empty after normalization", nil).
		WithSuggestion("Provide a non-blank query")
}

// errClosed is returned by embedders used after Close.
func errClosed(model string) error {
	return dserrors.New(dserrors.ErrCodeEmbedderUnavailable, "embedder is closed", nil).
		WithDetail("model", model)
}

// checkDimensions rejects vectors whose length differs from the configured dimension.
func checkDimensions(vec []float32, want int, model string) error {
	if len(vec) != want {
		return dserrors.New(dserrors.ErrCodeEmbeddingFailed, "embedding has unexpected dimension", nil).
			WithDetail("model", model).
			WithDetail("expected", strconv.Itoa(want)).
			WithDetail("got", strconv.Itoa(len(vec)))
	}
	return nil
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v // Return as-is if zero vector
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
