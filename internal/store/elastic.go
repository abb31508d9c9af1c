package store

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
)

const (
	// DefaultElasticURL is the local single-node cluster address.
	DefaultElasticURL = "https://localhost:9200"

	// DefaultElasticIndex is the chunk index name.
	DefaultElasticIndex = "documents_index"

	// DefaultElasticUsername is the built-in superuser.
	DefaultElasticUsername = "elastic"

	elasticPoolSize = 16
)

// ElasticConfig configures the Elasticsearch client.
type ElasticConfig struct {
	URL                string
	Index              string
	Username           string
	Password           string
	InsecureSkipVerify bool

	// Timeout is sent to the cluster as the search timeout.
	// The caller's context bounds the HTTP round trip.
	Timeout time.Duration

	// Dimensions is the dense_vector dimension of the embedding field.
	Dimensions int

	Retry dserrors.RetryConfig
}

// ElasticClient queries a chunk index over the Elasticsearch REST API.
// It serves both the lexical and the vector branch against the same index.
type ElasticClient struct {
	client  *http.Client
	cfg     ElasticConfig
	baseURL string
	breaker *dserrors.CircuitBreaker
}

var (
	_ LexicalSearcher = (*ElasticClient)(nil)
	_ VectorSearcher  = (*ElasticClient)(nil)
)

// NewElasticClient creates a client. No request is made until the first search.
func NewElasticClient(cfg ElasticConfig) (*ElasticClient, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultElasticURL
	}
	if cfg.Index == "" {
		cfg.Index = DefaultElasticIndex
	}
	if cfg.Username == "" {
		cfg.Username = DefaultElasticUsername
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = EmbeddingDimensions
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid elasticsearch url %q", cfg.URL)
	}

	transport := &http.Transport{
		MaxIdleConns:        elasticPoolSize,
		MaxIdleConnsPerHost: elasticPoolSize,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // local self-signed cluster
	}

	return &ElasticClient{
		// No client timeout: per-call contexts bound every request.
		client:  &http.Client{Transport: transport},
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		breaker: dserrors.NewCircuitBreaker("elasticsearch"),
	}, nil
}

// Dimensions returns the configured embedding dimension.
func (c *ElasticClient) Dimensions() int {
	return c.cfg.Dimensions
}

// esSearchBody is the typed _search request body.
type esSearchBody struct {
	Size    int            `json:"size"`
	Query   *esQuery       `json:"query,omitempty"`
	KNN     *esKNN         `json:"knn,omitempty"`
	Source  esSourceFilter `json:"_source"`
	Timeout string         `json:"timeout,omitempty"`
	Sort    []esSortClause `json:"sort,omitempty"`
}

type esQuery struct {
	Bool esBool `json:"bool"`
}

type esBool struct {
	Must   []esMatchClause `json:"must"`
	Filter []esTermClause  `json:"filter"`
}

type esMatchClause struct {
	Match map[string]esMatch `json:"match"`
}

type esMatch struct {
	Query    string `json:"query"`
	Operator string `json:"operator"`
}

type esTermClause struct {
	Term map[string]string `json:"term"`
}

type esKNN struct {
	Field         string         `json:"field"`
	QueryVector   []float32      `json:"query_vector"`
	K             int            `json:"k"`
	NumCandidates int            `json:"num_candidates"`
	Filter        []esTermClause `json:"filter"`
}

type esSourceFilter struct {
	Excludes []string `json:"excludes"`
}

type esSortClause map[string]string

type esSearchResponse struct {
	TimedOut bool `json:"timed_out"`
	Hits     struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

func documentTypeFilter(t DocumentType) []esTermClause {
	if t == "" {
		return []esTermClause{}
	}
	return []esTermClause{{Term: map[string]string{"document_type": string(t)}}}
}

func (c *ElasticClient) sourceFilter() esSourceFilter {
	return esSourceFilter{Excludes: []string{"embedding"}}
}

// SearchLexical runs a bool query: conjunctive match on chunk_text plus
// a document_type term filter.
func (c *ElasticClient) SearchLexical(ctx context.Context, q LexicalQuery) ([]Hit, error) {
	if err := q.Validate(); err != nil {
		return nil, dserrors.New(dserrors.ErrCodeMalformedQuery, err.Error(), err)
	}

	body := esSearchBody{
		Size: q.Size,
		Query: &esQuery{Bool: esBool{
			Must: []esMatchClause{{Match: map[string]esMatch{
				"chunk_text": {Query: q.Text, Operator: "and"},
			}}},
			Filter: documentTypeFilter(q.DocumentType),
		}},
		Source:  c.sourceFilter(),
		Timeout: formatESDuration(c.cfg.Timeout),
		Sort:    []esSortClause{{"_score": "desc"}, {"chunk_id": "asc"}},
	}
	return c.search(ctx, body)
}

// SearchVector runs an approximate kNN search on the embedding field with
// the same document_type filter.
func (c *ElasticClient) SearchVector(ctx context.Context, q VectorQuery) ([]Hit, error) {
	if len(q.Vector) != c.cfg.Dimensions {
		return nil, ErrDimensionMismatch{Expected: c.cfg.Dimensions, Got: len(q.Vector)}
	}
	if err := q.Validate(); err != nil {
		return nil, dserrors.New(dserrors.ErrCodeMalformedQuery, err.Error(), err)
	}

	body := esSearchBody{
		Size: q.K,
		KNN: &esKNN{
			Field:         "embedding",
			QueryVector:   q.Vector,
			K:             q.K,
			NumCandidates: q.NumCandidates,
			Filter:        documentTypeFilter(q.DocumentType),
		},
		Source:  c.sourceFilter(),
		Timeout: formatESDuration(c.cfg.Timeout),
	}
	return c.search(ctx, body)
}

func (c *ElasticClient) search(ctx context.Context, body esSearchBody) ([]Hit, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}

	return dserrors.RetryWithResult(ctx, c.cfg.Retry, func() ([]Hit, error) {
		hits, err := dserrors.Execute(c.breaker, func() ([]Hit, error) {
			return c.doSearch(ctx, payload)
		})
		if errors.Is(err, dserrors.ErrCircuitOpen) {
			return nil, dserrors.New(dserrors.ErrCodeBackendUnavailable, "elasticsearch circuit open", err)
		}
		return hits, err
	})
}

func (c *ElasticClient) doSearch(ctx context.Context, payload []byte) ([]Hit, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(c.cfg.Index) + "/_search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, dserrors.New(dserrors.ErrCodeRetrievalTimeout, "elasticsearch request timed out", err)
		}
		return nil, dserrors.New(dserrors.ErrCodeBackendUnavailable, "elasticsearch unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dserrors.New(dserrors.ErrCodeBackendUnavailable, "read elasticsearch response", err)
	}

	slog.Debug("elasticsearch_search",
		slog.String("index", c.cfg.Index),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, data)
	}

	var parsed esSearchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, dserrors.New(dserrors.ErrCodeRetrievalFailed, "decode elasticsearch response", err)
	}
	if parsed.TimedOut {
		return nil, dserrors.New(dserrors.ErrCodeRetrievalTimeout, "elasticsearch search timed out", nil)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		var chunk Chunk
		if len(h.Source) > 0 {
			if err := json.Unmarshal(h.Source, &chunk); err != nil {
				return nil, dserrors.New(dserrors.ErrCodeRetrievalFailed,
					fmt.Sprintf("decode _source of %s", h.ID), err)
			}
		}
		if chunk.ChunkID == "" {
			chunk.ChunkID = h.ID
		}
		chunk.Embedding = nil
		hits = append(hits, Hit{Chunk: chunk, Score: h.Score})
	}
	return hits, nil
}

// maxReasonBytes bounds the backend error reason carried into messages.
const maxReasonBytes = 512

// truncateReason cuts s to at most n bytes without splitting a rune.
func truncateReason(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func statusError(status int, body []byte) error {
	var parsed esErrorResponse
	reason := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Reason != "" {
		reason = parsed.Error.Type + ": " + parsed.Error.Reason
	}
	reason = truncateReason(reason, maxReasonBytes)
	msg := fmt.Sprintf("elasticsearch returned %d: %s", status, reason)

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return dserrors.New(dserrors.ErrCodeBackendUnavailable, msg, nil).
			WithDetail("status", fmt.Sprint(status))
	case status == http.StatusBadRequest:
		return dserrors.New(dserrors.ErrCodeMalformedQuery, msg, nil).
			WithDetail("status", fmt.Sprint(status))
	default:
		return dserrors.New(dserrors.ErrCodeRetrievalFailed, msg, nil).
			WithDetail("status", fmt.Sprint(status))
	}
}

// formatESDuration renders d in Elasticsearch time units ("30s", "1500ms").
func formatESDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", d/time.Second)
	}
	return fmt.Sprintf("%dms", d/time.Millisecond)
}

// Close releases idle connections.
func (c *ElasticClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
