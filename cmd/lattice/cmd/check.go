package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/go-drift/lattice/pkg/scene"
)

// CheckResult is the machine-readable output of check.
type CheckResult struct {
	App      string   `json:"app"`
	Module   string   `json:"module,omitempty"`
	Sheets   []string `json:"sheets"`
	Version  string   `json:"version,omitempty"`
	Rules    int      `json:"rules"`
	Scenes   []string `json:"scenes,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewCheckCommand validates configuration, sheets and scene files.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check [scene.yaml...]",
		Short: "Validate lattice.yaml, style sheets and scenes",
		Long: `Resolve lattice.yaml, parse every configured style sheet and any scene
files given as arguments. Declarations skipped by the cascade are listed
as warnings; with --strict they fail the check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runCheck(rootOpts, args)
			if err != nil {
				return err
			}
			if err := writeCheck(cmd.OutOrStdout(), rootOpts.Format, res); err != nil {
				return err
			}
			if strict && len(res.Warnings) > 0 {
				return fmt.Errorf("%d warning(s)", len(res.Warnings))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
	return cmd
}

func runCheck(opts *RootOptions, scenes []string) (*CheckResult, error) {
	r, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	sheet, err := r.LoadSheet()
	if err != nil {
		return nil, err
	}
	res := &CheckResult{
		App:     r.AppName,
		Module:  r.ModulePath,
		Sheets:  r.Style.Sheets,
		Version: sheet.Version,
		Rules:   sheet.Len(),
	}
	for _, w := range sheet.Warnings() {
		res.Warnings = append(res.Warnings, w.Error())
	}
	for _, path := range scenes {
		s, err := scene.LoadFile(path)
		if err != nil {
			return nil, err
		}
		res.Scenes = append(res.Scenes, fmt.Sprintf("%s (%d top-level views)", path, len(s.Views)))
	}
	return res, nil
}

func writeCheck(w io.Writer, format string, res *CheckResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "app:     %s\n", res.App)
	if res.Module != "" {
		fmt.Fprintf(w, "module:  %s\n", res.Module)
	}
	fmt.Fprintf(w, "sheets:  %d (%d rules)\n", len(res.Sheets), res.Rules)
	for _, s := range res.Sheets {
		fmt.Fprintf(w, "  %s\n", s)
	}
	if res.Version != "" {
		fmt.Fprintf(w, "version: %s\n", res.Version)
	}
	for _, s := range res.Scenes {
		fmt.Fprintf(w, "scene:   %s\n", s)
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	_, err := fmt.Fprintln(w, "ok")
	return err
}
