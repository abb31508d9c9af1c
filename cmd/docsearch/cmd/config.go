package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pankamp3004/Documents-Search-Project/internal/config"
	"github.com/pankamp3004/Documents-Search-Project/internal/output"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration",
		Long: `Inspect the effective configuration or create the user configuration file.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/docsearch/config.yaml)
  3. Project config (docsearch.yaml in --dir)
  4. .env in --dir
  5. Environment variables (DOCSEARCH_*, ELASTIC_*, INDEX_NAME, OPENAI_API_KEY)`,
		Example: `  docsearch config show
  docsearch config show --json
  docsearch config init
  docsearch config path`,
	}

	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg.Redacted()
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file with defaults",
		Long: `Create ~/.config/docsearch/config.yaml (or $XDG_CONFIG_HOME/docsearch/config.yaml)
holding the built-in defaults. An existing file is kept unless --force is
set, in which case it is backed up first.`,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.GetUserConfigPath()

	if _, err := os.Stat(path); err == nil && !force {
		out.Warningf("Configuration already exists: %s", path)
		out.Status("", "Use --force to overwrite (a backup is kept)")
		return nil
	}

	written, backup, err := config.WriteUserConfig(config.NewConfig())
	if err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	if backup != "" {
		out.Statusf("", "Backed up previous configuration to %s", backup)
	}
	out.Successf("Created %s", written)
	return nil
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the user configuration file path",
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
