// Package cmd provides the CLI commands for docsearch.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pankamp3004/Documents-Search-Project/internal/config"
	dserrors "github.com/pankamp3004/Documents-Search-Project/internal/errors"
	"github.com/pankamp3004/Documents-Search-Project/internal/logging"
	"github.com/pankamp3004/Documents-Search-Project/pkg/version"
)

// Command annotations read by the root pre-run hook.
const (
	// annotationNoConfig skips configuration loading and logging setup.
	annotationNoConfig = "docsearch/no-config"
	// annotationStdio leaves logging to the command; stdout is a protocol channel.
	annotationStdio = "docsearch/stdio"
	// annotationStderrLogs mirrors log records to stderr.
	annotationStderrLogs = "docsearch/stderr-logs"
)

// rootOptions carries global flags and the loaded configuration to subcommands.
type rootOptions struct {
	dir   string
	debug bool

	cfg            *config.Config
	loggingCleanup func()
}

// NewRootCmd creates the root command for the docsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Hybrid keyword and semantic document search",
		Long: `docsearch answers free-text queries over pre-chunked documents by running
a keyword query and a vector query in parallel and merging both rankings
with Reciprocal Rank Fusion.

Configuration is read from ~/.config/docsearch/config.yaml, docsearch.yaml
in the working directory, .env, and DOCSEARCH_* environment variables.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.preRun,
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			opts.closeLogging()
			return nil
		},
	}
	cmd.SetVersionTemplate("docsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.dir, "dir", ".", "Directory holding docsearch.yaml and .env")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging (also mirrored to stderr)")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMCPCmd(opts))
	cmd.AddCommand(newLoadCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd, opts
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	cmd, opts := newRootCmd()
	// Post-run hooks are skipped when a command fails.
	defer opts.closeLogging()

	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, dserrors.FormatForCLI(err))
	}
	return err
}

// preRun loads configuration and installs the default logger.
func (o *rootOptions) preRun(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationNoConfig] == "true" {
		return nil
	}

	cfg, err := config.Load(o.dir)
	if err != nil {
		return err
	}
	o.cfg = cfg

	if cmd.Annotations[annotationStdio] == "true" {
		return nil
	}

	logCfg := cfg.LoggingConfig(o.debug)
	logCfg.WriteToStderr = o.debug || cmd.Annotations[annotationStderrLogs] == "true"
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("command_started",
		slog.String("command", cmd.Name()),
		slog.String("version", version.Version))
	return nil
}

func (o *rootOptions) closeLogging() {
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}
