package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache configuration constants.
const (
	// DefaultEmbeddingCacheSize is the default number of embeddings to cache.
	// At 384 dimensions * 4 bytes * 1000 entries this is about 1.5MB.
	DefaultEmbeddingCacheSize = 1000
)

// CachedEmbedder wraps an Embedder with LRU caching to avoid redundant
// embedding computations. Repeated queries skip the model round trip.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder creates a cached embedder wrapping the given embedder.
// Cache size determines the number of unique query embeddings to keep in memory.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{
		inner: inner,
		cache: cache,
	}
}

// cacheKey hashes model and normalized text so whitespace variants share an entry.
func cacheKey(model, text string) string {
	combined := normalizeText(text) + "\x00" + model
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Embed returns cached embedding if available, otherwise computes and caches.
// Errors are never cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.inner.ModelName(), text)

	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts, caching each result.
// Individual texts are checked/cached separately for maximum cache reuse.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	model := c.inner.ModelName()
	results := make([][]float32, len(texts))
	uncachedIndices := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.Get(cacheKey(model, text)); ok {
			results[i] = vec
		} else {
			uncachedIndices = append(uncachedIndices, i)
			uncachedTexts = append(uncachedTexts, text)
		}
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	newEmbeddings, err := c.inner.EmbedBatch(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range uncachedIndices {
		results[idx] = newEmbeddings[j]
		c.cache.Add(cacheKey(model, texts[idx]), newEmbeddings[j])
	}

	return results, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the model identifier (passthrough to inner).
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Available checks if the embedder is ready (passthrough to inner).
func (c *CachedEmbedder) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close releases resources and closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

// Inner returns the underlying embedder.
func (c *CachedEmbedder) Inner() Embedder {
	return c.inner
}
