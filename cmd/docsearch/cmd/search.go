package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pankamp3004/Documents-Search-Project/internal/output"
	"github.com/pankamp3004/Documents-Search-Project/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topN         int
	documentType string
	format       string // "text", "json"
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid search",
		Long: `Run one hybrid search and print the ranked results.

The query is sent to the lexical backend and, as an embedding, to the
vector backend. Both rankings are merged with Reciprocal Rank Fusion and
results below the score threshold are dropped.

Examples:
  docsearch search "reciprocal rank fusion"
  docsearch search "vector databases" -t paper -n 5
  docsearch search "transformers" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, root, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topN, "top-n", "n", 0, "Maximum number of results (default: search.default_top_n)")
	cmd.Flags().StringVarP(&opts.documentType, "type", "t", "", "Filter by document type: book, blog, paper, or All")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, root *rootOptions, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q: use text or json", opts.format)
	}

	topN := opts.topN
	if !cmd.Flags().Changed("top-n") {
		topN = root.cfg.Search.DefaultTopN
	}

	app, err := newSearchApp(ctx, root.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	results, err := app.engine.Search(ctx, search.SearchRequest{
		Query:        query,
		TopN:         topN,
		DocumentType: opts.documentType,
	})
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.String("query", query), slog.Int("results", len(results)))

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.JSON(results)
	}
	out.Results(query, results)
	return nil
}
