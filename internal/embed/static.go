package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// StaticModelName identifies vectors produced by StaticEmbedder.
const StaticModelName = "static-hash"

// StaticEmbedder generates embeddings using a hash-based approach.
// Works without external dependencies (no network, no model download).
// Provides deterministic, fast embeddings with reduced semantic quality,
// which makes it the embedder for tests and offline fixture loading.
type StaticEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

// stopWords contains common English function words to filter out.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "on": true, "for": true,
	"is": true, "are": true, "was": true, "be": true, "by": true,
	"with": true, "as": true, "at": true, "it": true, "this": true,
	"that": true, "from": true,
}

// Weights for vector generation
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// NewStaticEmbedder creates a static embedder producing vectors of the given
// dimension. Zero or negative dims selects DefaultDimensions.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed generates embedding for a single text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errClosed(StaticModelName)
	}

	tokens := filterStopWords(tokenize(text))
	ngrams := extractNgrams(normalizeForNgrams(text), ngramSize)
	if len(tokens) == 0 && len(ngrams) == 0 {
		return nil, errEmptyText()
	}

	return normalizeVector(e.generateVector(tokens, ngrams)), nil
}

// generateVector accumulates weighted hash buckets for tokens and n-grams.
func (e *StaticEmbedder) generateVector(tokens, ngrams []string) []float32 {
	vector := make([]float32, e.dims)
	for _, token := range tokens {
		vector[hashToIndex(token, e.dims)] += tokenWeight
	}
	for _, ngram := range ngrams {
		vector[hashToIndex(ngram, e.dims)] += ngramWeight
	}
	return vector
}

// tokenize splits text into lowercase letter/digit runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// filterStopWords removes English stop words. Text made only of stop words
// keeps its tokens so it still embeds.
func filterStopWords(tokens []string) []string {
	filtered := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !stopWords[t] {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return tokens
	}
	return filtered
}

// normalizeForNgrams keeps lowercase letters and digits only.
func normalizeForNgrams(text string) []rune {
	var result []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result = append(result, r)
		}
	}
	return result
}

// extractNgrams extracts n-rune sliding windows.
func extractNgrams(runes []rune, n int) []string {
	if len(runes) < n {
		return []string{}
	}

	ngrams := make([]string, 0, len(runes)-n+1)
	for i := 0; i <= len(runes)-n; i++ {
		ngrams = append(ngrams, string(runes[i:i+n]))
	}
	return ngrams
}

// hashToIndex uses FNV-64 to map a string to an index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = emb
	}

	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return StaticModelName
}

// Available checks if the embedder is ready (always true until closed).
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
