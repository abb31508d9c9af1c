package embed

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "docsearch:embed:" // docsearch:embed:{sha256(model, text)}

	// DefaultRedisCacheTTL bounds how long a shared query vector is kept.
	DefaultRedisCacheTTL = 24 * time.Hour
)

// RedisCachedEmbedder shares query vectors between API replicas through Redis.
// Redis failures are logged and bypassed; they never fail a request.
type RedisCachedEmbedder struct {
	inner  Embedder
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCachedEmbedder wraps inner with a Redis-backed cache.
func NewRedisCachedEmbedder(inner Embedder, client *redis.Client, ttl time.Duration) *RedisCachedEmbedder {
	if ttl <= 0 {
		ttl = DefaultRedisCacheTTL
	}
	return &RedisCachedEmbedder{inner: inner, client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL into a client and checks connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (c *RedisCachedEmbedder) key(text string) string {
	return redisKeyPrefix + cacheKey(c.inner.ModelName(), text)
}

// Embed returns the shared cached vector if present, otherwise computes and stores it.
func (c *RedisCachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	if vec, ok := c.get(ctx, key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.set(ctx, key, vec)
	return vec, nil
}

// EmbedBatch looks up all keys with one MGET and embeds only the misses.
func (c *RedisCachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.key(text)
	}

	results := make([][]float32, len(texts))
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Warn("redis_cache_mget_failed", slog.String("error", err.Error()))
		values = nil
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			if vec, err := decodeVector([]byte(s), c.inner.Dimensions()); err == nil {
				results[i] = vec
			}
		}
	}

	var missIdx []int
	var missTexts []string
	for i, vec := range results {
		if vec == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	embeddings, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	pipe := c.client.Pipeline()
	for j, idx := range missIdx {
		results[idx] = embeddings[j]
		pipe.Set(ctx, keys[idx], encodeVector(embeddings[j]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("redis_cache_store_failed", slog.String("error", err.Error()))
	}

	return results, nil
}

func (c *RedisCachedEmbedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("redis_cache_get_failed", slog.String("error", err.Error()))
		return nil, false
	}

	vec, err := decodeVector(data, c.inner.Dimensions())
	if err != nil {
		slog.Warn("redis_cache_corrupt_entry", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	return vec, true
}

func (c *RedisCachedEmbedder) set(ctx context.Context, key string, vec []float32) {
	if err := c.client.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		slog.Warn("redis_cache_set_failed", slog.String("error", err.Error()))
	}
}

// encodeVector stores components as little-endian float32.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte, dims int) ([]float32, error) {
	if len(data) != 4*dims {
		return nil, fmt.Errorf("cached vector has %d bytes, want %d", len(data), 4*dims)
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (c *RedisCachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the model identifier (passthrough to inner).
func (c *RedisCachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Available checks if the embedder is ready (passthrough to inner).
func (c *RedisCachedEmbedder) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close closes the inner embedder and the Redis client.
func (c *RedisCachedEmbedder) Close() error {
	return errors.Join(c.inner.Close(), c.client.Close())
}
