package search

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pankamp3004/Documents-Search-Project/internal/store"
)

const testDims = 4

// chunkOf builds a stored chunk with a predictable record.
func chunkOf(id string, docType store.DocumentType) store.Chunk {
	return store.Chunk{
		ChunkID:      id,
		DocID:        "doc-" + id,
		Title:        "Title " + id,
		DocumentType: docType,
		ChunkIndex:   0,
		ChunkText:    "text of " + id,
		Snippet:      "snippet of " + id,
		ChunkURL:     "https://cdn.example.com/" + id,
	}
}

// hitsOf builds ranked store hits of type blog, best first.
func hitsOf(ids ...string) []store.Hit {
	hits := make([]store.Hit, len(ids))
	for i, id := range ids {
		hits[i] = store.Hit{Chunk: chunkOf(id, store.DocumentTypeBlog), Score: float64(len(ids) - i)}
	}
	return hits
}

// retrievalHitsOf builds a ranked retrieval list.
func retrievalHitsOf(ids ...string) []RetrievalHit {
	hits := make([]RetrievalHit, len(ids))
	for i, id := range ids {
		hits[i] = RetrievalHit{ChunkID: id, Rank: i + 1, Chunk: chunkOf(id, store.DocumentTypeBlog)}
	}
	return hits
}

func resultIDs(results []SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	return ids
}

// fakeLexical is a LexicalSearcher returning canned hits.
type fakeLexical struct {
	hits  []store.Hit
	err   error
	delay time.Duration
	calls atomic.Int64

	mu    sync.Mutex
	query store.LexicalQuery
}

func (f *fakeLexical) SearchLexical(ctx context.Context, q store.LexicalQuery) ([]store.Hit, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.query = q
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeLexical) lastQuery() store.LexicalQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query
}

// fakeVector is a VectorSearcher returning canned hits.
type fakeVector struct {
	hits  []store.Hit
	err   error
	delay time.Duration
	dims  int
	calls atomic.Int64

	mu    sync.Mutex
	query store.VectorQuery
}

func (f *fakeVector) SearchVector(ctx context.Context, q store.VectorQuery) ([]store.Hit, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.query = q
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeVector) Dimensions() int {
	if f.dims == 0 {
		return testDims
	}
	return f.dims
}

func (f *fakeVector) lastQuery() store.VectorQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query
}

// fakeEmbedder returns a fixed vector, or err.
type fakeEmbedder struct {
	vector []float32
	err    error
	delay  time.Duration
	calls  atomic.Int64
}

func (f *fakeEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.vector != nil {
		return f.vector, nil
	}
	return make([]float32, testDims), nil
}

// countingLookup records how many records the assembler resolved.
type countingLookup struct {
	inner   RecordLookup
	lookups int
}

func (c *countingLookup) Lookup(id string) (store.Chunk, bool) {
	c.lookups++
	return c.inner.Lookup(id)
}
