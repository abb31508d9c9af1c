package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderStatic uses hash-based embeddings (offline development and tests)
	ProviderStatic ProviderType = "static"

	// ProviderOllama uses Ollama's /api/embed endpoint
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses the OpenAI embeddings API or a compatible server
	ProviderOpenAI ProviderType = "openai"
)

// ParseProvider maps a provider name to a ProviderType, case-insensitively.
func ParseProvider(name string) (ProviderType, error) {
	switch p := ProviderType(strings.ToLower(strings.TrimSpace(name))); p {
	case ProviderStatic, ProviderOllama, ProviderOpenAI:
		return p, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q (want static, ollama or openai)", name)
	}
}

// Options selects and configures an embedder.
type Options struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Host       string // Ollama host or OpenAI base URL
	APIKey     string
	Timeout    time.Duration

	// CacheSize enables the in-process LRU when positive.
	CacheSize int

	// RedisURL enables the shared Redis cache when set.
	RedisURL string
	RedisTTL time.Duration
}

// NewEmbedder creates an embedder for the selected provider and wraps it with
// the configured caches. A provider that cannot be reached is an error; there
// is no silent fallback to another provider.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	var embedder Embedder

	switch opts.Provider {
	case ProviderStatic, "":
		embedder = NewStaticEmbedder(opts.Dimensions)

	case ProviderOllama:
		cfg := DefaultOllamaConfig()
		if opts.Host != "" {
			cfg.Host = opts.Host
		}
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.Dimensions > 0 {
			cfg.Dimensions = opts.Dimensions
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		e, err := NewOllamaEmbedder(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Pull the model: ollama pull %s", err, cfg.Model)
		}
		embedder = e

	case ProviderOpenAI:
		cfg := DefaultOpenAIConfig()
		cfg.APIKey = opts.APIKey
		cfg.BaseURL = opts.Host
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.Dimensions > 0 {
			cfg.Dimensions = opts.Dimensions
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		e, err := NewOpenAIEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		embedder = e

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}

	if opts.RedisURL != "" {
		client, err := NewRedisClient(ctx, opts.RedisURL)
		if err != nil {
			_ = embedder.Close()
			return nil, err
		}
		embedder = NewRedisCachedEmbedder(embedder, client, opts.RedisTTL)
	}

	if opts.CacheSize > 0 {
		embedder = NewCachedEmbedder(embedder, opts.CacheSize)
	}

	slog.Debug("embedder_created",
		slog.String("provider", string(opts.Provider)),
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()),
		slog.Bool("lru_cache", opts.CacheSize > 0),
		slog.Bool("redis_cache", opts.RedisURL != ""))

	return embedder, nil
}
