package engine

import (
	"context"
	stderrors "errors"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/go-drift/lattice/pkg/style"
)

const defaultFrameRate = 60

var errClosed = stderrors.New("engine closed")

// Run drives ticks until ctx is done or a close request goes through. Ticks
// are paced by a token bucket at Options.FrameRate; when a tick leaves no
// work behind, Run sleeps until Dispatch, PostInput or RequestFrame wakes
// it. With HotReload set, the sheet files are watched alongside. Run
// returns nil after a close and ctx.Err() after cancellation.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if e.opts.HotReload && len(e.opts.SheetPaths) > 0 {
		w := style.NewWatcher("app", e.opts.SheetPaths, e.ReloadSheet)
		w.Logger = e.logger
		g.Go(func() error { return w.Run(gctx) })
	}
	if e.opts.DebugAddr != "" {
		srv := NewDebugServer(e)
		g.Go(func() error { return srv.ListenAndServe(gctx, e.opts.DebugAddr) })
	}
	g.Go(func() error { return e.loop(gctx) })

	err := g.Wait()
	switch {
	case stderrors.Is(err, errClosed):
		return nil
	case err != nil:
		return err
	default:
		return ctx.Err()
	}
}

func (e *Engine) loop(ctx context.Context) error {
	fps := e.opts.FrameRate
	if fps <= 0 {
		fps = defaultFrameRate
	}
	limiter := rate.NewLimiter(rate.Limit(fps), 1)
	e.logger.Debug("frame loop started", "fps", fps)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		res, err := e.Tick()
		if err != nil {
			return err
		}
		if e.Closed() {
			e.logger.Info("window closed", "tick", res.Tick)
			return errClosed
		}
		if res.NeedsFrame {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-e.wake:
		}
	}
}
