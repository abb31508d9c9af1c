package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
)

// Ollama API constants
const (
	// DefaultOllamaHost is the default Ollama API endpoint
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel produces the same 384-dimension vectors as the indexed chunks.
	DefaultOllamaModel = "all-minilm"

	// OllamaConnectTimeout for initial health check
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize for connection pool
	OllamaPoolSize = 4
)

// OllamaConfig configures the Ollama embedder
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434)
	Host string

	// Model is the embedding model to use (default: all-minilm)
	Model string

	// Dimensions is the expected vector length (default: 384)
	Dimensions int

	// BatchSize for batch embedding requests (default: 32)
	BatchSize int

	// Timeout for a single API request (default: 30s)
	Timeout time.Duration

	// PoolSize for HTTP connection pool (default: 4)
	PoolSize int

	// Retry applies to transient failures only.
	Retry dserrors.RetryConfig

	// SkipHealthCheck skips initial Ollama availability check (for testing)
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns sensible defaults
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:       DefaultOllamaHost,
		Model:      DefaultOllamaModel,
		Dimensions: DefaultDimensions,
		BatchSize:  DefaultBatchSize,
		Timeout:    DefaultTimeout,
		PoolSize:   OllamaPoolSize,
		Retry:      dserrors.DefaultRetryConfig(),
	}
}

// ollamaEmbedRequest is the body of POST /api/embed.
type ollamaEmbedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

// ollamaEmbedResponse is the response of POST /api/embed.
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// ollamaTagsResponse is the response of GET /api/tags.
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport // Store for connection cleanup
	config    OllamaConfig
	breaker   *dserrors.CircuitBreaker

	mu     sync.RWMutex
	closed bool
}

// NewOllamaEmbedder creates a new Ollama embedder. Unless SkipHealthCheck is
// set, the configured model must be present on the server.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	defaults := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
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
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaults.PoolSize
	}

	// Per-request timeouts come from the context, not the client.
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		IdleConnTimeout:     90 * time.Second,
	}

	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		breaker:   dserrors.NewCircuitBreaker("ollama"),
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, OllamaConnectTimeout)
		defer cancel()

		if err := e.checkModel(checkCtx); err != nil {
			transport.CloseIdleConnections()
			return nil, err
		}
	}

	return e, nil
}

// listModels gets available models from Ollama
func (e *OllamaEmbedder) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, dserrors.New(dserrors.ErrCodeEmbedderUnavailable, "failed to connect to Ollama", err).
			WithSuggestion("Start Ollama with: ollama serve")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, dserrors.New(dserrors.ErrCodeEmbedderUnavailable,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// checkModel verifies that the configured model is pulled, matching with or
// without the tag suffix.
func (e *OllamaEmbedder) checkModel(ctx context.Context) error {
	models, err := e.listModels(ctx)
	if err != nil {
		return err
	}

	want := strings.ToLower(e.config.Model)
	for _, name := range models {
		name = strings.ToLower(name)
		base, _, _ := strings.Cut(name, ":")
		if name == want || base == want {
			return nil
		}
	}

	return dserrors.New(dserrors.ErrCodeEmbedderUnavailable, "embedding model not available", nil).
		WithDetail("model", e.config.Model).
		WithSuggestion("Pull the model with: ollama pull " + e.config.Model)
}

// Embed generates embedding for a single text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
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

// EmbedBatch generates embeddings for multiple texts using Ollama's batch API
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+e.config.BatchSize, len(normalized))
		embeddings, err := e.doEmbed(ctx, normalized[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch at %d: %w", start, err)
		}
		results = append(results, embeddings...)
	}

	return results, nil
}

// doEmbed performs one batch request through the circuit breaker with retry.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := dserrors.RetryWithResult(ctx, e.config.Retry, func() ([][]float32, error) {
		return dserrors.Execute(e.breaker, func() ([][]float32, error) {
			return e.post(ctx, texts)
		})
	})
	if errors.Is(err, dserrors.ErrCircuitOpen) {
		return nil, dserrors.New(dserrors.ErrCodeEmbedderUnavailable, "ollama circuit is open", err)
	}
	return embeddings, err
}

// post sends a single /api/embed request.
func (e *OllamaEmbedder) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Input: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, dserrors.New(dserrors.ErrCodeEmbedderUnavailable, "ollama request timed out", err).
				WithDetail("timeout", e.config.Timeout.String())
		}
		return nil, dserrors.New(dserrors.ErrCodeEmbedderUnavailable, "failed to reach Ollama", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		code := dserrors.ErrCodeEmbeddingFailed
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			code = dserrors.ErrCodeEmbedderUnavailable
		}
		return nil, dserrors.New(code,
			fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil).
			WithDetail("status", strconv.Itoa(resp.StatusCode))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, dserrors.New(dserrors.ErrCodeEmbeddingFailed, "failed to decode Ollama response", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, dserrors.New(dserrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("ollama returned %d embeddings for %d texts", len(result.Embeddings), len(texts)), nil)
	}

	for i, vec := range result.Embeddings {
		if err := checkDimensions(vec, e.config.Dimensions, e.config.Model); err != nil {
			return nil, err
		}
		result.Embeddings[i] = normalizeVector(vec)
	}

	slog.Debug("ollama_embed",
		slog.String("model", e.config.Model),
		slog.Int("texts", len(texts)),
		slog.Duration("duration", time.Since(start)))

	return result.Embeddings, nil
}

// Dimensions returns the embedding dimension
func (e *OllamaEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// ModelName returns the model identifier
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Available checks if Ollama is reachable
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if e.isClosed() {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, OllamaConnectTimeout)
	defer cancel()
	_, err := e.listModels(checkCtx)
	return err == nil
}

// Close releases resources
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}

func (e *OllamaEmbedder) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}
