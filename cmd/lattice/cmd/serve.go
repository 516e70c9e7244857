package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/go-drift/lattice/pkg/engine"
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/layout"
	"github.com/go-drift/lattice/pkg/scene"
)

// NewServeCommand runs a scene headlessly with the debug server attached.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string
	var hotReload bool
	cmd := &cobra.Command{
		Use:   "serve <scene.yaml>",
		Short: "Run a scene headlessly and serve debug endpoints",
		Long: `Run a scene in the frame loop until interrupted. The debug server exposes
/health, /frames (recent tick samples), /tree (the accessibility tree) and
/metrics (Prometheus). Style sheets are reloaded on change with --watch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rootOpts.resolve()
			if err != nil {
				return err
			}
			s, err := scene.LoadFile(args[0])
			if err != nil {
				return err
			}
			opts, err := r.EngineOptions(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr != "" {
				opts.DebugAddr = addr
			}
			if opts.DebugAddr == "" {
				opts.DebugAddr = "127.0.0.1:9464"
			}
			opts.HotReload = opts.HotReload || hotReload
			opts.Measurer = layout.NewFaceMeasurer(nil)
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			opts.Registerer = reg

			e := engine.New(opts)
			if _, err := s.Build(e, entity.Null); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := e.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "debug server address (default from lattice.yaml, else 127.0.0.1:9464)")
	cmd.Flags().BoolVar(&hotReload, "watch", false, "reload style sheets when they change")
	return cmd
}
