package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pankamp3004/Documents-Search-Project/internal/embed"
	"github.com/pankamp3004/Documents-Search-Project/internal/loader"
	"github.com/pankamp3004/Documents-Search-Project/internal/output"
	"github.com/pankamp3004/Documents-Search-Project/internal/store"
)

// loadOptions holds CLI flags for load.
type loadOptions struct {
	batchSize int
	workers   int
	strict    bool
}

func newLoadCmd(root *rootOptions) *cobra.Command {
	var opts loadOptions

	cmd := &cobra.Command{
		Use:   "load <file.jsonl>",
		Short: "Load chunk records into the local stores",
		Long: `Load pre-chunked records, one JSON object per line, into the local
lexical and vector stores under store.data_dir.

Records without an embedding are embedded with the configured provider.
Invalid records are skipped unless --strict is set. Elasticsearch is
never written to.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), cmd, root, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.batchSize, "batch-size", loader.DefaultBatchSize, "Chunks per store write")
	cmd.Flags().IntVar(&opts.workers, "workers", loader.DefaultWorkers, "Concurrent embedding requests")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Stop at the first invalid record")

	return cmd
}

func runLoad(ctx context.Context, cmd *cobra.Command, root *rootOptions, path string, opts loadOptions) (err error) {
	cfg := root.cfg
	out := output.New(cmd.OutOrStdout())

	if !cfg.UsesLocalStore() {
		return errors.New("both backends are elasticsearch; set store.lexical_backend or store.vector_backend to a local backend")
	}

	lock := loader.NewDirLock(cfg.Store.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another load is running on %s (lock: %s)", cfg.Store.DataDir, lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	b, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := b.Close(); err == nil {
			err = closeErr
		}
	}()

	embedder := &lazyEmbedder{open: func() (embed.Embedder, error) {
		return embed.NewEmbedder(ctx, cfg.EmbedOptions())
	}}
	defer func() { _ = embedder.Close() }()

	types := cfg.SearchEngineConfig().DocumentTypes
	l, err := loader.New(embedder, b.writers, loader.Options{
		BatchSize:     opts.batchSize,
		Workers:       opts.workers,
		DocumentTypes: types,
		Dimensions:    cfg.Embeddings.Dimensions,
		Strict:        opts.strict,
	})
	if err != nil {
		return err
	}
	defer l.Close()

	stats, err := l.LoadFile(ctx, path)
	if err != nil {
		return err
	}

	if len(b.writers) == 1 {
		out.Warning("Only one backend is local; the elasticsearch side was not written")
	}
	out.Successf("Loaded %d chunks in %d batches (%s)", stats.Loaded, stats.Batches, stats.Duration.Round(time.Millisecond))
	if stats.Embedded > 0 {
		out.Statusf("", "%d chunks embedded with %s", stats.Embedded, cfg.Embeddings.Provider)
	}
	if stats.Skipped > 0 {
		out.Warningf("%d invalid records skipped (see log)", stats.Skipped)
	}
	for _, w := range b.writers {
		if n, err := w.Count(ctx); err == nil {
			out.Statusf("", "%s: %d chunks", storeName(w), n)
		}
	}
	return nil
}

func storeName(w store.ChunkWriter) string {
	switch w.(type) {
	case *store.BleveIndex:
		return "bleve"
	case *store.SQLiteIndex:
		return "sqlite"
	case *store.HNSWIndex:
		return "hnsw"
	default:
		return fmt.Sprintf("%T", w)
	}
}
