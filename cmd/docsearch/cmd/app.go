package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pankamp3004/Documents-Search-Project/internal/config"
	"github.com/pankamp3004/Documents-Search-Project/internal/embed"
	"github.com/pankamp3004/Documents-Search-Project/internal/search"
	"github.com/pankamp3004/Documents-Search-Project/internal/store"
)

// Local index locations under store.data_dir.
const (
	bleveDirName   = "lexical.bleve"
	sqliteFileName = "lexical.db"
	hnswFileName   = "vectors.hnsw"
)

// backends holds the opened stores and releases them together.
type backends struct {
	lexical store.LexicalSearcher
	vector  store.VectorSearcher

	// writers are the local stores a load can write to.
	writers []store.ChunkWriter

	closers []io.Closer
}

// Close closes every opened store.
func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openBackends opens the configured lexical and vector stores. Elasticsearch
// is shared when it serves both branches.
func openBackends(cfg *config.Config) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	var es *store.ElasticClient
	elastic := func() (*store.ElasticClient, error) {
		if es != nil {
			return es, nil
		}
		client, err := store.NewElasticClient(cfg.ElasticConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		es = client
		b.closers = append(b.closers, client)
		return client, nil
	}

	dataDir := cfg.Store.DataDir

	switch strings.ToLower(cfg.Store.LexicalBackend) {
	case config.BackendElasticsearch:
		client, err := elastic()
		if err != nil {
			return nil, err
		}
		b.lexical = client
	case config.BackendBleve:
		idx, err := store.NewBleveIndex(filepath.Join(dataDir, bleveDirName))
		if err != nil {
			return nil, fmt.Errorf("failed to open bleve index: %w", err)
		}
		b.closers = append(b.closers, idx)
		b.lexical = idx
		b.writers = append(b.writers, idx)
	case config.BackendSQLite:
		idx, err := store.NewSQLiteIndex(filepath.Join(dataDir, sqliteFileName))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite index: %w", err)
		}
		b.closers = append(b.closers, idx)
		b.lexical = idx
		b.writers = append(b.writers, idx)
	default:
		return nil, fmt.Errorf("unknown lexical backend %q", cfg.Store.LexicalBackend)
	}

	switch strings.ToLower(cfg.Store.VectorBackend) {
	case config.BackendElasticsearch:
		client, err := elastic()
		if err != nil {
			return nil, err
		}
		b.vector = client
	case config.BackendHNSW:
		idx, err := store.NewHNSWIndex(filepath.Join(dataDir, hnswFileName), cfg.HNSWConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to open hnsw index: %w", err)
		}
		b.closers = append(b.closers, idx)
		b.vector = idx
		b.writers = append(b.writers, idx)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Store.VectorBackend)
	}

	slog.Debug("backends_opened",
		slog.String("lexical", cfg.Store.LexicalBackend),
		slog.String("vector", cfg.Store.VectorBackend),
		slog.String("data_dir", dataDir))
	return b, nil
}

// searchApp is a ready hybrid search engine with its resources.
type searchApp struct {
	engine   *search.Engine
	embedder embed.Embedder
	backends *backends
}

// newSearchApp builds the engine from configuration.
func newSearchApp(ctx context.Context, cfg *config.Config) (*searchApp, error) {
	b, err := openBackends(cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := embed.NewEmbedder(ctx, cfg.EmbedOptions())
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	engine, err := search.NewEngine(embedder, b.lexical, b.vector, cfg.SearchEngineConfig())
	if err != nil {
		_ = embedder.Close()
		_ = b.Close()
		return nil, err
	}

	return &searchApp{engine: engine, embedder: embedder, backends: b}, nil
}

// Close releases the embedder and stores.
func (a *searchApp) Close() error {
	return errors.Join(a.embedder.Close(), a.backends.Close())
}

// lazyEmbedder creates the configured embedder on first use, so loads whose
// records all carry embeddings never contact the provider.
type lazyEmbedder struct {
	open func() (embed.Embedder, error)

	once     sync.Once
	embedder embed.Embedder
	err      error
}

func (l *lazyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	l.once.Do(func() {
		l.embedder, l.err = l.open()
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.embedder.EmbedBatch(ctx, texts)
}

// Close closes the embedder if it was created.
func (l *lazyEmbedder) Close() error {
	if l.embedder == nil {
		return nil
	}
	return l.embedder.Close()
}
