// Package cmd implements the lattice CLI commands.
package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/go-drift/lattice/pkg/config"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	// Dir is the project directory holding lattice.yaml.
	Dir    string
	Format string
}

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lattice",
		Short: "lattice - reactive view-tree core",
		Long: `lattice drives a retained view tree: styles cascade from sheets,
layout is solved per layout root and redraws are emitted once per tick.

The CLI validates project configuration and style sheets, and runs
scenes headlessly to print what a renderer or screen reader would see.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Dir, "dir", "C", "", "project directory (default: nearest go.mod, else the working directory)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewVersionCommand())
	return cmd
}

// resolve loads the project configuration for opts.Dir.
func (o *RootOptions) resolve() (*config.Resolved, error) {
	dir := o.Dir
	if dir == "" {
		if root, err := config.FindProjectRoot(); err == nil {
			dir = root
		} else {
			dir = "."
		}
	}
	return config.Resolve(dir)
}
