package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pankamp3004/Documents-Search-Project/internal/logging"
)

type logsOptions struct {
	follow    bool
	lines     int
	level     string
	filter    string
	requestID string
	noColor   bool
	logFile   string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View docsearch logs",
		Long: `Show the last lines of the docsearch log file, optionally following new entries.

Examples:
  docsearch logs                       # last 50 lines
  docsearch logs -f                    # follow
  docsearch logs --level warn          # warnings and errors
  docsearch logs --request-id 5f0c...  # one HTTP request`,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only lines matching this regex")
	cmd.Flags().StringVar(&opts.requestID, "request-id", "", "Only entries with this request_id")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	if opts.level != "" && !logging.ValidLevel(opts.level) {
		return fmt.Errorf("invalid level %q: use debug, info, warn, or error", opts.level)
	}

	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:     opts.level,
		Pattern:   pattern,
		RequestID: opts.requestID,
		NoColor:   opts.noColor,
	}, cmd.OutOrStdout())

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Following %s... (Ctrl+C to stop)\n", path)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch := make(chan logging.LogEntry)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, path, ch)
	}()

	for {
		select {
		case entry := <-ch:
			viewer.Print([]logging.LogEntry{entry})
		case err := <-errCh:
			return err
		}
	}
}
