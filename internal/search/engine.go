package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
	"github.com/pankamp3004/Documents-Search-Project/internal/store"
)

// QueryEmbedder converts query text into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine implements hybrid search over a lexical and a vector backend.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	embedder  QueryEmbedder
	lexical   *LexicalRetriever
	vector    *VectorRetriever
	fusion    *RRFFusion
	assembler Assembler
	config    Config
}

// NewEngine creates a hybrid search engine with the given dependencies.
// Returns an error if any dependency is nil or cfg is invalid.
func NewEngine(
	embedder QueryEmbedder,
	lexical store.LexicalSearcher,
	vector store.VectorSearcher,
	cfg Config,
) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical searcher is required", ErrNilDependency)
	}
	if vector == nil {
		return nil, fmt.Errorf("%w: vector searcher is required", ErrNilDependency)
	}
	if err := cfg.Validate(); err != nil {
		return nil, dserrors.ConfigError("invalid search configuration: "+err.Error(), err)
	}

	return &Engine{
		embedder: embedder,
		lexical:  NewLexicalRetriever(lexical, cfg.RetrievalTimeout),
		vector:   NewVectorRetriever(vector, cfg.RetrievalTimeout),
		fusion:   NewRRFFusion(cfg.RRFConstant),
		assembler: Assembler{
			MinScore:           cfg.MinScore,
			RequireBothSignals: cfg.RequireBothSignals,
		},
		config: cfg,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Search executes one hybrid query. The lexical branch starts immediately;
// the vector branch embeds the query, then searches. Fusion runs after both
// branches have finished. An empty result slice is not an error.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	start := time.Now()

	vr, err := validateRequest(req, e.config.DocumentTypes)
	if err != nil {
		return nil, err
	}

	lexHits, vecHits, err := e.retrieve(ctx, vr)
	if err != nil {
		slog.Warn("search_failed",
			append([]any{slog.String("query", vr.query)}, attrsToAny(dserrors.LogAttrs(err))...)...)
		return nil, err
	}

	fused := e.fusion.Fuse(lexHits, vecHits)
	results := e.assembler.Assemble(fused, BuildLookup(lexHits, vecHits), vr.topN)

	slog.Debug("hybrid_search",
		slog.String("query", vr.query),
		slog.String("document_type", string(vr.documentType)),
		slog.Int("top_n", vr.topN),
		slog.Int("lexical_hits", len(lexHits)),
		slog.Int("vector_hits", len(vecHits)),
		slog.Int("fused", len(fused)),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}

// retrieve runs both branches concurrently. Without tolerance the first
// branch error cancels the other and is returned.
func (e *Engine) retrieve(ctx context.Context, vr validatedRequest) (lexHits, vecHits []RetrievalHit, err error) {
	g, gctx := errgroup.WithContext(ctx)
	var lexErr, vecErr error

	g.Go(func() error {
		hits, err := e.lexical.Search(gctx, vr.query, e.config.LexicalPoolSize, vr.documentType)
		if err != nil {
			if e.tolerates(ctx, err) {
				lexErr = err
				return nil
			}
			return err
		}
		lexHits = hits
		return nil
	})

	g.Go(func() error {
		vector, err := e.embedder.Embed(gctx, vr.query)
		if err != nil {
			return dserrors.EmbeddingError("failed to embed query", err)
		}

		hits, err := e.vector.Search(gctx, vector, e.config.VectorK, e.config.NumCandidates, vr.documentType)
		if err != nil {
			if e.tolerates(ctx, err) {
				vecErr = err
				return nil
			}
			return err
		}
		vecHits = hits
		return nil
	})

	err = g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, parentContextError("", ctxErr)
	}
	if err != nil {
		return nil, nil, err
	}

	switch {
	case lexErr != nil && vecErr != nil:
		return nil, nil, bothBranchesFailed(lexErr, vecErr)
	case lexErr != nil:
		slog.Warn("lexical_branch_degraded", attrsToAny(dserrors.LogAttrs(lexErr))...)
	case vecErr != nil:
		slog.Warn("vector_branch_degraded", attrsToAny(dserrors.LogAttrs(vecErr))...)
	}

	return lexHits, vecHits, nil
}

// tolerates reports whether a branch error may degrade to an empty list.
// Fatal errors and cancellation are never tolerated, nor is any error once
// the caller's context is done.
func (e *Engine) tolerates(ctx context.Context, err error) bool {
	if !e.config.TolerateBranchFailure || ctx.Err() != nil {
		return false
	}
	return !dserrors.IsFatal(err) && dserrors.GetCode(err) != dserrors.ErrCodeRetrievalCancelled
}

// bothBranchesFailed keeps a shared code (for example both timed out),
// otherwise reports a generic retrieval failure.
func bothBranchesFailed(lexErr, vecErr error) error {
	code := dserrors.GetCode(lexErr)
	if code != dserrors.GetCode(vecErr) {
		code = dserrors.ErrCodeRetrievalFailed
	}
	return dserrors.RetrievalError(code, "", "both retrieval branches failed", errors.Join(lexErr, vecErr))
}

func attrsToAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
