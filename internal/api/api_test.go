package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
	"github.com/pankamp3004/Documents-Search-Project/internal/search"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSearcher struct {
	mu      sync.Mutex
	results []search.SearchResult
	err     error
	last    search.SearchRequest
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, req search.SearchRequest) ([]search.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	return f.results, f.err
}

func newTestRouter(t *testing.T, s Searcher) *gin.Engine {
	t.Helper()
	r, err := NewRouter(s, RouterConfig{ServiceName: "test-search", CORSOrigins: []string{"http://localhost:8501"}})
	require.NoError(t, err)
	return r
}

func get(r http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

// ============================================================================
// Router
// ============================================================================

func TestNewRouter_RequiresSearcher(t *testing.T) {
	_, err := NewRouter(nil, RouterConfig{})
	require.ErrorIs(t, err, search.ErrNilDependency)
}

func TestNewRouter_RejectsBadOrigin(t *testing.T) {
	_, err := NewRouter(&fakeSearcher{}, RouterConfig{CORSOrigins: []string{"localhost:8501"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "localhost:8501")
}

func TestNewRouter_WildcardOrigin(t *testing.T) {
	r, err := NewRouter(&fakeSearcher{}, RouterConfig{CORSOrigins: []string{"*"}})
	require.NoError(t, err)

	rr := get(r, "/", "Origin", "http://ui.example.org")

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

// ============================================================================
// Health
// ============================================================================

func TestHealth(t *testing.T) {
	rr := get(newTestRouter(t, &fakeSearcher{}), "/")

	require.Equal(t, http.StatusOK, rr.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, HealthResponse{Status: "ok", Service: "test-search"}, body)
}

// ============================================================================
// Search
// ============================================================================

func TestSearch_ReturnsResults(t *testing.T) {
	// Given: a searcher with two results
	fake := &fakeSearcher{results: []search.SearchResult{
		{RRFScore: 0.032, Title: "A", DocID: "d1", DocumentType: "book"},
		{RRFScore: 0.016, Title: "B", DocID: "d2", DocumentType: "blog"},
	}}

	// When: searching with every parameter
	rr := get(newTestRouter(t, fake), "/search?query=vector+search&top_n=5&document_type=book")

	// Then: the request is forwarded and the array is returned in order
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, search.SearchRequest{Query: "vector search", TopN: 5, DocumentType: "book"}, fake.last)

	var results []search.SearchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Title)
	assert.InDelta(t, 0.032, results[0].RRFScore, 1e-9)
}

func TestSearch_DefaultTopN(t *testing.T) {
	fake := &fakeSearcher{}

	rr := get(newTestRouter(t, fake), "/search?query=rrf")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, search.DefaultTopN, fake.last.TopN)
}

func TestSearch_EmptyResultIsArray(t *testing.T) {
	fake := &fakeSearcher{results: []search.SearchResult{}}

	rr := get(newTestRouter(t, fake), "/search?query=nothing")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestSearch_InvalidTopN(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not a number", "ten"},
		{"float", "2.5"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSearcher{}

			rr := get(newTestRouter(t, fake), "/search?query=x&top_n="+tt.value)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			detail := decodeError(t, rr)
			assert.Equal(t, dserrors.ErrCodeInvalidTopN, detail.Code)
			assert.Equal(t, string(dserrors.KindValidation), detail.Kind)
			assert.Zero(t, fake.calls)
		})
	}
}

func TestSearch_NonPositiveTopNReachesEngineValidation(t *testing.T) {
	fake := &fakeSearcher{err: dserrors.ValidationError(dserrors.ErrCodeInvalidTopN, "top_n must be a positive integer, got 0")}

	rr := get(newTestRouter(t, fake), "/search?query=x&top_n=0")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, fake.last.TopN)
}

func TestSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", dserrors.ValidationError(dserrors.ErrCodeQueryEmpty, "query must not be empty"),
			http.StatusBadRequest, dserrors.ErrCodeQueryEmpty},
		{"embedding", dserrors.EmbeddingError("embedder down", errors.New("refused")),
			http.StatusBadGateway, dserrors.ErrCodeEmbeddingFailed},
		{"timeout", dserrors.RetrievalError(dserrors.ErrCodeRetrievalTimeout, dserrors.BranchLexical, "timed out", nil),
			http.StatusGatewayTimeout, dserrors.ErrCodeRetrievalTimeout},
		{"backend", dserrors.RetrievalError(dserrors.ErrCodeBackendUnavailable, dserrors.BranchVector, "unavailable", nil),
			http.StatusServiceUnavailable, dserrors.ErrCodeBackendUnavailable},
		{"internal", dserrors.InternalError("boom", nil),
			http.StatusInternalServerError, dserrors.ErrCodeInternal},
		{"untyped", errors.New("secret detail"),
			http.StatusInternalServerError, dserrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(newTestRouter(t, &fakeSearcher{err: tt.err}), "/search?query=x")

			assert.Equal(t, tt.status, rr.Code)
			detail := decodeError(t, rr)
			assert.Equal(t, tt.code, detail.Code)
			assert.NotContains(t, detail.Message, "secret")
		})
	}
}

func TestSearch_BranchInMessage(t *testing.T) {
	err := dserrors.RetrievalError(dserrors.ErrCodeRetrievalFailed, dserrors.BranchVector, "knn failed", nil)

	rr := get(newTestRouter(t, &fakeSearcher{err: err}), "/search?query=x")

	assert.Equal(t, "vector retrieval: knn failed", decodeError(t, rr).Message)
}

// ============================================================================
// Middleware
// ============================================================================

func TestRequestID_Generated(t *testing.T) {
	rr := get(newTestRouter(t, &fakeSearcher{}), "/")

	assert.Len(t, rr.Header().Get(HeaderRequestID), 36)
}

func TestRequestID_Echoed(t *testing.T) {
	rr := get(newTestRouter(t, &fakeSearcher{}), "/", HeaderRequestID, "req-123")

	assert.Equal(t, "req-123", rr.Header().Get(HeaderRequestID))
}

func TestProcessTimeHeader(t *testing.T) {
	tests := []string{"/", "/search?query=x", "/search?query=x&top_n=bad", "/missing"}

	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			rr := get(newTestRouter(t, &fakeSearcher{}), target)

			value := rr.Header().Get(HeaderProcessTime)
			require.NotEmpty(t, value)
			_, err := strconv.ParseFloat(value, 64)
			require.NoError(t, err)
			assert.Regexp(t, `^\d+\.\d{2}$`, value)
		})
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	r := newTestRouter(t, &fakeSearcher{})

	rr := get(r, "/", "Origin", "http://localhost:8501")

	assert.Equal(t, "http://localhost:8501", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_OtherOriginForbidden(t *testing.T) {
	r := newTestRouter(t, &fakeSearcher{})

	rr := get(r, "/", "Origin", "http://evil.example")

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

// ============================================================================
// Server
// ============================================================================

func TestServer_ServesUntilCancelled(t *testing.T) {
	// Given: a server on an ephemeral port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(ln.Addr().String(), newTestRouter(t, &fakeSearcher{}), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	// When: requesting health, then cancelling
	resp, err := http.Get(fmt.Sprintf("http://%s/", ln.Addr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	// Then: Serve returns cleanly
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	srv := NewServer(ln.Addr().String(), http.NotFoundHandler(), 0)
	err = srv.ListenAndServe(context.Background())

	require.Error(t, err)
}
