package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-drift/lattice/pkg/accessibility"
	"github.com/go-drift/lattice/pkg/config"
	"github.com/go-drift/lattice/pkg/engine"
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/layout"
	"github.com/go-drift/lattice/pkg/scene"
)

// InspectOptions holds flags for inspect.
type InspectOptions struct {
	Ticks  int
	Frame  bool
	Width  float64
	Height float64
	Scale  float64
}

// NewInspectCommand loads a scene, ticks it and prints the result.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect <scene.yaml>",
		Short: "Run a scene headlessly and print its tree",
		Long: `Build a scene with the project's style sheets, run the requested number
of ticks and print the accessibility tree, or the paint frame with --frame.
Text is measured with the built-in bitmap face.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rootOpts.resolve()
			if err != nil {
				return err
			}
			return runInspect(cmd.OutOrStdout(), cmd.ErrOrStderr(), r, args[0], rootOpts.Format, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Ticks, "ticks", "n", 1, "ticks to run before printing")
	cmd.Flags().BoolVar(&opts.Frame, "frame", false, "print the last paint frame instead of the accessibility tree")
	cmd.Flags().Float64Var(&opts.Width, "width", 0, "window width (default from lattice.yaml)")
	cmd.Flags().Float64Var(&opts.Height, "height", 0, "window height (default from lattice.yaml)")
	cmd.Flags().Float64Var(&opts.Scale, "scale", 0, "scale factor (default from lattice.yaml)")
	return cmd
}

func runInspect(out, logs io.Writer, r *config.Resolved, path, format string, opts *InspectOptions) error {
	s, err := scene.LoadFile(path)
	if err != nil {
		return err
	}
	eopts, err := r.EngineOptions(logs)
	if err != nil {
		return err
	}
	if opts.Width > 0 {
		eopts.Viewport.Width = opts.Width
	}
	if opts.Height > 0 {
		eopts.Viewport.Height = opts.Height
	}
	if opts.Scale > 0 {
		eopts.Scale = opts.Scale
	}
	eopts.Measurer = layout.NewFaceMeasurer(nil)
	var frame *engine.PaintFrame
	eopts.Renderer = engine.RendererFunc(func(f *engine.PaintFrame) { frame = f })

	e := engine.New(eopts)
	if _, err := s.Build(e, entity.Null); err != nil {
		return err
	}
	for range max(opts.Ticks, 1) {
		if _, err := e.Tick(); err != nil {
			return err
		}
	}

	if opts.Frame {
		if frame == nil {
			return fmt.Errorf("no frame painted")
		}
		return writeFrame(out, format, e, frame)
	}
	snap, ok := e.Accessibility().Last()
	if !ok {
		return fmt.Errorf("no accessibility snapshot exported")
	}
	return writeTree(out, format, snap)
}

func writeTree(w io.Writer, format string, snap accessibility.Snapshot) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	depth := make(map[string]int, len(snap.Nodes))
	for _, n := range snap.Nodes {
		d := 0
		if n.Parent != "" {
			d = depth[n.Parent] + 1
		}
		depth[n.ID] = d
		fmt.Fprintf(w, "%s%s", strings.Repeat("  ", d), n.Role)
		if n.Label != "" {
			fmt.Fprintf(w, " %q", n.Label)
		}
		fmt.Fprintf(w, " %s", formatRect(n.Bounds))
		if n.States != "" {
			fmt.Fprintf(w, " [%s]", n.States)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// FrameLine is one paint command in inspect's JSON output.
type FrameLine struct {
	Node    string        `json:"node"`
	Z       float64       `json:"z"`
	Bounds  graphics.Rect `json:"bounds"`
	Clip    graphics.Rect `json:"clip"`
	Content string        `json:"content,omitempty"`
}

func writeFrame(w io.Writer, format string, e *engine.Engine, frame *engine.PaintFrame) error {
	lines := make([]FrameLine, 0, len(frame.Commands))
	for _, c := range frame.Commands {
		lines = append(lines, FrameLine{
			Node:    describe(e, c.Entity),
			Z:       c.Z,
			Bounds:  frame.DeviceBounds(c),
			Clip:    c.Clip.Scale(frame.Scale),
			Content: c.Content,
		})
	}
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(lines)
	}
	fmt.Fprintf(w, "tick %d, scale %g, %d commands\n", frame.Tick, frame.Scale, len(lines))
	for _, l := range lines {
		fmt.Fprintf(w, "z=%-3g %-24s %s", l.Z, l.Node, formatRect(l.Bounds))
		if l.Content != "" {
			fmt.Fprintf(w, " %q", l.Content)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// describe renders type#id.class for v.
func describe(e *engine.Engine, v entity.Entity) string {
	name, err := e.Styles().Describe(v)
	if err != nil {
		return v.String()
	}
	return name
}

func formatRect(r graphics.Rect) string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.Left, r.Top, r.Width(), r.Height())
}
