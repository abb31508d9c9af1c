package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pankamp3004/Documents-Search-Project/pkg/version"
)

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	var jsonOutput bool
	var shortOutput bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Long:        `Print version information including git commit, build date, and Go version.`,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if shortOutput {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(version.GetInfo())
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Output only the version number")

	return cmd
}
