package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	bleveFieldText   = "chunk_text"
	bleveFieldType   = "document_type"
	bleveFieldSource = "source"
)

// BleveIndex is an embedded lexical backend built on bleve.
// chunk_text uses the standard analyzer, document_type is a keyword field,
// and the chunk's stored fields live in a non-indexed source field.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var (
	_ LexicalSearcher = (*BleveIndex)(nil)
	_ ChunkWriter     = (*BleveIndex)(nil)
)

// NewBleveIndex opens or creates a bleve index at path.
// If path is empty, creates an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	indexMapping := newChunkMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, mkErr)
		}
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open bleve index: %w", err)
	}

	return &BleveIndex{index: idx, path: path}, nil
}

func newChunkMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false
	text.IncludeInAll = false

	keyword := bleve.NewKeywordFieldMapping()
	keyword.Store = false
	keyword.IncludeInAll = false

	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.Store = true
	source.IncludeInAll = false
	source.IncludeTermVectors = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(bleveFieldText, text)
	doc.AddFieldMappingsAt(bleveFieldType, keyword)
	doc.AddFieldMappingsAt(bleveFieldSource, source)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// IndexChunks adds or replaces chunks in one batch.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		source, err := json.Marshal(c.WithoutEmbedding())
		if err != nil {
			return fmt.Errorf("failed to encode chunk %s: %w", c.ChunkID, err)
		}
		doc := map[string]interface{}{
			bleveFieldText:   c.ChunkText,
			bleveFieldType:   string(c.DocumentType),
			bleveFieldSource: string(source),
		}
		if err := batch.Index(c.ChunkID, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ChunkID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// SearchLexical returns chunks containing every query term, best first.
// Equal scores are ordered by chunk id.
func (b *BleveIndex) SearchLexical(ctx context.Context, q LexicalQuery) ([]Hit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	match := bleve.NewMatchQuery(q.Text)
	match.SetField(bleveFieldText)
	match.SetOperator(query.MatchQueryOperatorAnd)

	var root query.Query = match
	if q.DocumentType != "" {
		term := bleve.NewTermQuery(string(q.DocumentType))
		term.SetField(bleveFieldType)
		root = bleve.NewConjunctionQuery(match, term)
	}

	req := bleve.NewSearchRequestOptions(root, q.Size, 0, false)
	req.Fields = []string{bleveFieldSource}
	req.SortBy([]string{"-_score", "_id"})

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		raw, _ := h.Fields[bleveFieldSource].(string)
		var c Chunk
		if err := json.NewDecoder(strings.NewReader(raw)).Decode(&c); err != nil {
			return nil, fmt.Errorf("failed to decode stored fields for %s: %w", h.ID, err)
		}
		if c.ChunkID == "" {
			c.ChunkID = h.ID
		}
		hits = append(hits, Hit{Chunk: c, Score: h.Score})
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (b *BleveIndex) Count(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrClosed
	}

	n, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("bleve doc count: %w", err)
	}
	return int(n), nil
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
