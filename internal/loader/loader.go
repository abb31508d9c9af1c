// Package loader bulk-loads chunk records from JSONL into the local
// lexical and vector stores.
package loader

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/pankamp3004/Documents-Search-Project/internal/embed"
	"github.com/pankamp3004/Documents-Search-Project/internal/store"
)

const (
	// DefaultBatchSize is the number of chunks written per store call.
	DefaultBatchSize = 100

	// DefaultWorkers is the number of concurrent embedding calls.
	DefaultWorkers = 4

	// maxRecordSize bounds one JSONL line.
	maxRecordSize = 16 * 1024 * 1024
)

// BatchEmbedder computes embeddings for chunks that arrive without one.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures a Loader.
type Options struct {
	// BatchSize is the number of chunks per write (default: 100).
	BatchSize int

	// EmbedBatchSize is the number of texts per EmbedBatch call (default: 32).
	EmbedBatchSize int

	// Workers bounds concurrent EmbedBatch calls (default: 4).
	Workers int

	// DocumentTypes lists accepted document types (default: book, blog, paper).
	DocumentTypes []store.DocumentType

	// Dimensions is the required embedding length. Zero disables the check.
	Dimensions int

	// Strict aborts the load on the first invalid record instead of skipping it.
	Strict bool
}

// Stats summarizes a load.
type Stats struct {
	Records  int           `json:"records"`
	Loaded   int           `json:"loaded"`
	Embedded int           `json:"embedded"`
	Skipped  int           `json:"skipped"`
	Batches  int           `json:"batches"`
	Duration time.Duration `json:"duration"`
}

// saver is implemented by stores that persist explicitly.
type saver interface {
	Save() error
}

// Loader writes every batch to each store in order. A failed write stops the load.
type Loader struct {
	embedder BatchEmbedder
	writers  []store.ChunkWriter
	pool     *ants.Pool
	opts     Options
}

// New creates a Loader. embedder may be nil when every record carries
// its embedding.
func New(embedder BatchEmbedder, writers []store.ChunkWriter, opts Options) (*Loader, error) {
	if len(writers) == 0 {
		return nil, errors.New("loader: at least one store is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = embed.DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if len(opts.DocumentTypes) == 0 {
		opts.DocumentTypes = store.DefaultDocumentTypes
	}

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("loader: create worker pool: %w", err)
	}

	return &Loader{
		embedder: embedder,
		writers:  writers,
		pool:     pool,
		opts:     opts,
	}, nil
}

// Close releases the worker pool.
func (l *Loader) Close() {
	l.pool.Release()
}

// LoadFile loads the JSONL file at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return l.Load(ctx, f)
}

// Load reads one Chunk JSON object per line from r. Blank lines are ignored.
func (l *Loader) Load(ctx context.Context, r io.Reader) (Stats, error) {
	start := time.Now()
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRecordSize)

	batch := make([]store.Chunk, 0, l.opts.BatchSize)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		stats.Records++

		chunk, err := l.parse(text)
		if err != nil {
			if l.opts.Strict {
				return stats, fmt.Errorf("line %d: %w", line, err)
			}
			slog.Warn("record_skipped", slog.Int("line", line), slog.String("error", err.Error()))
			stats.Skipped++
			continue
		}

		batch = append(batch, chunk)
		if len(batch) == l.opts.BatchSize {
			if err := l.flush(ctx, batch, &stats); err != nil {
				return stats, fmt.Errorf("batch ending at line %d: %w", line, err)
			}
			batch = make([]store.Chunk, 0, l.opts.BatchSize)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read records: %w", err)
	}
	if len(batch) > 0 {
		if err := l.flush(ctx, batch, &stats); err != nil {
			return stats, fmt.Errorf("batch ending at line %d: %w", line, err)
		}
	}

	for _, w := range l.writers {
		if s, ok := w.(saver); ok {
			if err := s.Save(); err != nil {
				return stats, fmt.Errorf("save store: %w", err)
			}
		}
	}

	stats.Duration = time.Since(start)
	slog.Info("load_completed",
		slog.Int("records", stats.Records),
		slog.Int("loaded", stats.Loaded),
		slog.Int("embedded", stats.Embedded),
		slog.Int("skipped", stats.Skipped),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// parse decodes and validates one record, canonicalizing its document type.
func (l *Loader) parse(text string) (store.Chunk, error) {
	var chunk store.Chunk
	if err := json.Unmarshal([]byte(text), &chunk); err != nil {
		return store.Chunk{}, fmt.Errorf("malformed record: %w", err)
	}

	docType, ok := store.LookupDocumentType(string(chunk.DocumentType), l.opts.DocumentTypes)
	if !ok {
		return store.Chunk{}, fmt.Errorf("chunk %s: unknown document_type %q", chunk.ChunkID, chunk.DocumentType)
	}
	chunk.DocumentType = docType

	if err := chunk.Validate(l.opts.Dimensions); err != nil {
		return store.Chunk{}, err
	}
	return chunk, nil
}

func (l *Loader) flush(ctx context.Context, batch []store.Chunk, stats *Stats) error {
	embedded, err := l.embedMissing(ctx, batch)
	if err != nil {
		return err
	}

	for _, w := range l.writers {
		if err := w.IndexChunks(ctx, batch); err != nil {
			return fmt.Errorf("write chunks: %w", err)
		}
	}

	stats.Embedded += embedded
	stats.Loaded += len(batch)
	stats.Batches++
	slog.Debug("batch_written", slog.Int("chunks", len(batch)), slog.Int("embedded", embedded))
	return nil
}

// embedMissing fills in absent embeddings in place, one pool task per
// EmbedBatchSize group. It returns the number of chunks embedded.
func (l *Loader) embedMissing(ctx context.Context, batch []store.Chunk) (int, error) {
	var missing []int
	for i := range batch {
		if len(batch[i].Embedding) == 0 {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if l.embedder == nil {
		return 0, fmt.Errorf("chunk %s has no embedding and no embedder is configured", batch[missing[0]].ChunkID)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for start := 0; start < len(missing); start += l.opts.EmbedBatchSize {
		group := missing[start:min(start+l.opts.EmbedBatchSize, len(missing))]

		wg.Add(1)
		submitErr := l.pool.Submit(func() {
			defer wg.Done()
			if err := l.embedGroup(ctx, batch, group); err != nil {
				fail(err)
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit embedding task: %w", submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}
	return len(missing), nil
}

func (l *Loader) embedGroup(ctx context.Context, batch []store.Chunk, group []int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	texts := make([]string, len(group))
	for i, idx := range group {
		texts[i] = batch[idx].ChunkText
	}

	vectors, err := l.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(group) {
		return fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vectors), len(group))
	}

	for i, idx := range group {
		if l.opts.Dimensions > 0 && len(vectors[i]) != l.opts.Dimensions {
			return fmt.Errorf("chunk %s: %w", batch[idx].ChunkID,
				store.ErrDimensionMismatch{Expected: l.opts.Dimensions, Got: len(vectors[i])})
		}
		// Groups are disjoint, so each index is written by one task.
		batch[idx].Embedding = vectors[i]
	}
	return nil
}
