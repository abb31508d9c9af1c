package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
)

// DefaultOpenAIModel supports the dimensions parameter, so it can emit 384-dimension vectors.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	// APIKey authenticates requests (OPENAI_API_KEY).
	APIKey string

	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string

	// Model is the embedding model (default: text-embedding-3-small)
	Model string

	// Dimensions is requested from the API and checked on every vector (default: 384)
	Dimensions int

	// BatchSize for batch embedding requests (default: 32)
	BatchSize int

	// Timeout for a single API request (default: 30s)
	Timeout time.Duration

	// Retry applies to transient failures only. The SDK's own retries are disabled.
	Retry dserrors.RetryConfig
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:      DefaultOpenAIModel,
		Dimensions: DefaultDimensions,
		BatchSize:  DefaultBatchSize,
		Timeout:    DefaultTimeout,
		Retry:      dserrors.DefaultRetryConfig(),
	}
}

// OpenAIEmbedder generates embeddings through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client  openai.Client
	config  OpenAIConfig
	breaker *dserrors.CircuitBreaker

	mu     sync.RWMutex
	closed bool
}

// NewOpenAIEmbedder creates an OpenAI embedder. An API key is required.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, dserrors.ConfigError("openai embedder requires an API key", nil).
			WithSuggestion("Set OPENAI_API_KEY or embeddings.api_key")
	}

	defaults := DefaultOpenAIConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaults.Dimensions
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEmbedder{
		client:  openai.NewClient(opts...),
		config:  cfg,
		breaker: dserrors.NewCircuitBreaker("openai"),
	}, nil
}

// Embed generates embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.isClosed() {
		return nil, errClosed(e.config.Model)
	}

	normalized := normalizeText(text)
	if normalized == "" {
		return nil, errEmptyText()
	}

	embeddings, err := e.doEmbed(ctx, []string{normalized})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.isClosed() {
		return nil, errClosed(e.config.Model)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	normalized := make([]string, len(texts))
	for i, text := range texts {
		normalized[i] = normalizeText(text)
		if normalized[i] == "" {
			return nil, fmt.Errorf("text %d: %w", i, errEmptyText())
		}
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(normalized); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(normalized))
		embeddings, err := e.doEmbed(ctx, normalized[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}
		results = append(results, embeddings...)
	}
	return results, nil
}

func (e *OpenAIEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := dserrors.RetryWithResult(ctx, e.config.Retry, func() ([][]float32, error) {
		return dserrors.Execute(e.breaker, func() ([][]float32, error) {
			return e.request(ctx, texts)
		})
	})
	if errors.Is(err, dserrors.ErrCircuitOpen) {
		return nil, dserrors.New(dserrors.ErrCodeEmbedderUnavailable, "openai circuit is open", err)
	}
	return embeddings, err
}

// request issues one embeddings call and converts the response to float32.
func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(e.config.Model),
		Dimensions:     openai.Int(int64(e.config.Dimensions)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, e.mapError(ctx, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, dserrors.New(dserrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts)), nil)
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(out) {
			return nil, dserrors.New(dserrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("openai returned embedding index %d out of range", idx), nil)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		if err := checkDimensions(vec, e.config.Dimensions, e.config.Model); err != nil {
			return nil, err
		}
		out[idx] = normalizeVector(vec)
	}
	return out, nil
}

func (e *OpenAIEmbedder) mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code := dserrors.ErrCodeEmbeddingFailed
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			code = dserrors.ErrCodeEmbedderUnavailable
		}
		return dserrors.New(code, fmt.Sprintf("openai returned %d", apiErr.StatusCode), err).
			WithDetail("status", strconv.Itoa(apiErr.StatusCode))
	}
	return dserrors.New(dserrors.ErrCodeEmbedderUnavailable, "failed to reach OpenAI", err)
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.config.Model
}

// Available reports whether the embedder can accept requests.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	return !e.isClosed() && e.breaker.State() != dserrors.StateOpen
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *OpenAIEmbedder) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}
