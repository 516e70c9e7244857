package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand prints the CLI version.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "lattice version %s (built %s)\n", Version, BuildTime)
			return err
		},
	}
}
