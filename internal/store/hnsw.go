package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWConfig configures the embedded vector backend.
type HNSWConfig struct {
	// Dimensions is the embedding dimensionality (default: 384).
	Dimensions int `json:"dimensions"`

	// M is the maximum number of neighbours per node (default: 16).
	M int `json:"m"`

	// EfSearch is the graph's search queue size (default: 100).
	EfSearch int `json:"ef_search"`
}

// DefaultHNSWConfig returns defaults for 384-dimensional chunk embeddings.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{
		Dimensions: EmbeddingDimensions,
		M:          16,
		EfSearch:   100,
	}
}

// HNSWIndex is an embedded cosine ANN backend on coder/hnsw.
// The graph has no native filtering: a query fetches NumCandidates
// neighbours, drops those of another document type, and keeps K.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config HNSWConfig
	path   string

	idMap   map[string]uint64
	chunks  map[uint64]Chunk
	nextKey uint64

	dirty  bool
	closed bool
}

var (
	_ VectorSearcher = (*HNSWIndex)(nil)
	_ ChunkWriter    = (*HNSWIndex)(nil)
)

// hnswMetadata is the gob-encoded sidecar holding ids and stored fields.
type hnswMetadata struct {
	IDMap   map[string]uint64
	Chunks  map[uint64]Chunk
	NextKey uint64
	Config  HNSWConfig
}

// NewHNSWIndex creates a vector index, loading path if it exists.
// If path is empty, the index is memory-only.
func NewHNSWIndex(path string, cfg HNSWConfig) (*HNSWIndex, error) {
	defaults := DefaultHNSWConfig()
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaults.Dimensions
	}
	if cfg.M <= 0 {
		cfg.M = defaults.M
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = defaults.EfSearch
	}

	s := &HNSWIndex{
		graph:  newGraph(cfg),
		config: cfg,
		path:   path,
		idMap:  make(map[string]uint64),
		chunks: make(map[uint64]Chunk),
	}

	if path == "" {
		return s, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	if err := s.load(path); err != nil {
		return nil, err
	}
	if s.config.Dimensions != cfg.Dimensions {
		return nil, fmt.Errorf("vector index at %s: %w", path,
			ErrDimensionMismatch{Expected: cfg.Dimensions, Got: s.config.Dimensions})
	}
	return s, nil
}

func newGraph(cfg HNSWConfig) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25
	return graph
}

// Dimensions returns the configured embedding dimension.
func (s *HNSWIndex) Dimensions() int {
	return s.config.Dimensions
}

// IndexChunks adds or replaces chunks. Every chunk must carry an embedding.
func (s *HNSWIndex) IndexChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	for _, c := range chunks {
		if len(c.Embedding) != s.config.Dimensions {
			return fmt.Errorf("chunk %s: %w", c.ChunkID,
				ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(c.Embedding)})
		}
	}

	for _, c := range chunks {
		// Replaced nodes stay orphaned in the graph; deleting from
		// coder/hnsw breaks small graphs.
		if old, exists := s.idMap[c.ChunkID]; exists {
			delete(s.chunks, old)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(c.Embedding))
		copy(vec, c.Embedding)
		normalizeInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[c.ChunkID] = key
		s.chunks[key] = c.WithoutEmbedding()
	}
	s.dirty = true
	return nil
}

// SearchVector returns the nearest chunks by cosine similarity, best first.
// Equal similarities are ordered by chunk id.
func (s *HNSWIndex) SearchVector(ctx context.Context, q VectorQuery) ([]Hit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if len(q.Vector) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(q.Vector)}
	}
	if s.graph.Len() == 0 {
		return []Hit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := make([]float32, len(q.Vector))
	copy(query, q.Vector)
	normalizeInPlace(query)

	nodes := s.graph.Search(query, q.NumCandidates)

	hits := make([]Hit, 0, len(nodes))
	for _, node := range nodes {
		c, ok := s.chunks[node.Key]
		if !ok {
			continue
		}
		if q.DocumentType != "" && c.DocumentType != q.DocumentType {
			continue
		}
		similarity := 1 - float64(hnsw.CosineDistance(query, node.Value))
		hits = append(hits, Hit{Chunk: c, Score: similarity})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ChunkID < hits[j].Chunk.ChunkID
	})
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

// Count returns the number of live chunks.
func (s *HNSWIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	return len(s.idMap), nil
}

// Save persists the graph and its metadata sidecar atomically.
func (s *HNSWIndex) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.saveLocked()
}

func (s *HNSWIndex) saveLocked() error {
	if s.path == "" || !s.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	if err := s.saveMetadata(s.path + ".meta"); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	s.dirty = false
	return nil
}

func (s *HNSWIndex) saveMetadata(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := hnswMetadata{
		IDMap:   s.idMap,
		Chunks:  s.chunks,
		NextKey: s.nextKey,
		Config:  s.config,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp file during cleanup", slog.String("error", closeErr.Error()))
		}
		_ = os.Remove(tmp)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *HNSWIndex) load(path string) error {
	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("open hnsw metadata: %w", err)
	}
	defer func() { _ = metaFile.Close() }()

	var meta hnswMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode hnsw metadata: %w", err)
	}

	graphFile, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open hnsw graph: %w", err)
	}
	defer func() { _ = graphFile.Close() }()

	graph := newGraph(meta.Config)
	// Import requires an io.ByteReader
	if err := graph.Import(bufio.NewReader(graphFile)); err != nil {
		return fmt.Errorf("import hnsw graph: %w", err)
	}

	s.graph = graph
	s.config = meta.Config
	s.idMap = meta.IDMap
	s.chunks = meta.Chunks
	s.nextKey = meta.NextKey
	if s.idMap == nil {
		s.idMap = make(map[string]uint64)
	}
	if s.chunks == nil {
		s.chunks = make(map[uint64]Chunk)
	}
	return nil
}

// Close saves pending changes and releases the graph.
func (s *HNSWIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	err := s.saveLocked()
	s.closed = true
	s.graph = nil
	return err
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
