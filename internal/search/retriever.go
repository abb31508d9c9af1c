package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
	"github.com/pankamp3004/Documents-Search-Project/internal/store"
)

// LexicalRetriever runs conjunctive term-match queries with a bounded timeout.
type LexicalRetriever struct {
	searcher store.LexicalSearcher
	timeout  time.Duration
}

// NewLexicalRetriever wraps a lexical backend. A non-positive timeout selects
// DefaultRetrievalTimeout.
func NewLexicalRetriever(searcher store.LexicalSearcher, timeout time.Duration) *LexicalRetriever {
	if timeout <= 0 {
		timeout = DefaultRetrievalTimeout
	}
	return &LexicalRetriever{searcher: searcher, timeout: timeout}
}

// Search returns up to limit hits matching every query term, best first.
// A non-empty docType restricts hits to that type.
func (r *LexicalRetriever) Search(ctx context.Context, query string, limit int, docType store.DocumentType) ([]RetrievalHit, error) {
	q := store.LexicalQuery{Text: query, Size: limit, DocumentType: docType}
	if err := q.Validate(); err != nil {
		return nil, dserrors.RetrievalError(dserrors.ErrCodeMalformedQuery, dserrors.BranchLexical, err.Error(), err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	hits, err := r.searcher.SearchLexical(callCtx, q)
	if err != nil {
		return nil, retrievalError(ctx, dserrors.BranchLexical, r.timeout, err)
	}

	out := toRetrievalHits(dserrors.BranchLexical, hits, limit, docType)
	slog.Debug("lexical_retrieval",
		slog.Int("hits", len(out)),
		slog.String("document_type", string(docType)),
		slog.Duration("duration", time.Since(start)))
	return out, nil
}

// VectorRetriever runs approximate kNN queries with a bounded timeout.
type VectorRetriever struct {
	searcher store.VectorSearcher
	timeout  time.Duration
}

// NewVectorRetriever wraps a vector backend. A non-positive timeout selects
// DefaultRetrievalTimeout.
func NewVectorRetriever(searcher store.VectorSearcher, timeout time.Duration) *VectorRetriever {
	if timeout <= 0 {
		timeout = DefaultRetrievalTimeout
	}
	return &VectorRetriever{searcher: searcher, timeout: timeout}
}

// Search returns up to limit hits by descending cosine similarity.
// numCandidates must be >= limit. A vector whose length differs from the
// index dimension fails before any backend call.
func (r *VectorRetriever) Search(ctx context.Context, vector []float32, limit, numCandidates int, docType store.DocumentType) ([]RetrievalHit, error) {
	if dims := r.searcher.Dimensions(); len(vector) != dims {
		mismatch := store.ErrDimensionMismatch{Expected: dims, Got: len(vector)}
		return nil, dserrors.RetrievalError(dserrors.ErrCodeDimensionMismatch, dserrors.BranchVector, mismatch.Error(), mismatch).
			WithSuggestion("The embedder and the index use different models; reindex or switch embedder")
	}

	q := store.VectorQuery{Vector: vector, K: limit, NumCandidates: numCandidates, DocumentType: docType}
	if err := q.Validate(); err != nil {
		return nil, dserrors.RetrievalError(dserrors.ErrCodeMalformedQuery, dserrors.BranchVector, err.Error(), err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	hits, err := r.searcher.SearchVector(callCtx, q)
	if err != nil {
		return nil, retrievalError(ctx, dserrors.BranchVector, r.timeout, err)
	}

	out := toRetrievalHits(dserrors.BranchVector, hits, limit, docType)
	slog.Debug("vector_retrieval",
		slog.Int("hits", len(out)),
		slog.Int("num_candidates", numCandidates),
		slog.String("document_type", string(docType)),
		slog.Duration("duration", time.Since(start)))
	return out, nil
}

// toRetrievalHits assigns 1-based ranks in backend order. Hits violating the
// filter or past limit are dropped.
func toRetrievalHits(branch string, hits []store.Hit, limit int, docType store.DocumentType) []RetrievalHit {
	out := make([]RetrievalHit, 0, min(len(hits), limit))
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		if docType != "" && h.Chunk.DocumentType != docType {
			slog.Warn("retrieval_filter_violation",
				slog.String("branch", branch),
				slog.String("chunk_id", h.Chunk.ChunkID),
				slog.String("want", string(docType)),
				slog.String("got", string(h.Chunk.DocumentType)))
			continue
		}
		out = append(out, RetrievalHit{
			ChunkID: h.Chunk.ChunkID,
			Rank:    len(out) + 1,
			Score:   h.Score,
			Chunk:   h.Chunk,
		})
	}
	return out
}

// retrievalError classifies a backend failure for branch. Parent cancellation
// wins over the branch's own timeout.
func retrievalError(parent context.Context, branch string, timeout time.Duration, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentContextError(branch, parentErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return dserrors.RetrievalError(dserrors.ErrCodeRetrievalTimeout, branch, "retrieval timed out", err).
			WithDetail("timeout", timeout.String())
	}

	var mismatch store.ErrDimensionMismatch
	if errors.As(err, &mismatch) {
		return dserrors.RetrievalError(dserrors.ErrCodeDimensionMismatch, branch, mismatch.Error(), err)
	}

	if ae, ok := dserrors.As(err); ok && ae.Kind == dserrors.KindRetrieval {
		return dserrors.RetrievalError(ae.Code, branch, ae.Message, err)
	}

	return dserrors.RetrievalError(dserrors.ErrCodeRetrievalFailed, branch, err.Error(), err)
}

// parentContextError maps the caller's context ending: an expired deadline is
// a timeout, anything else a cancellation.
func parentContextError(branch string, ctxErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return dserrors.RetrievalError(dserrors.ErrCodeRetrievalTimeout, branch, "request deadline exceeded", ctxErr)
	}
	return dserrors.RetrievalError(dserrors.ErrCodeRetrievalCancelled, branch, "retrieval cancelled", ctxErr)
}
