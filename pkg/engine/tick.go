package engine

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
)

// ErrReentrantTick is returned by Tick when called while a tick runs.
var ErrReentrantTick = stderrors.New("engine: tick called from inside a tick")

// Phase is a scheduler phase.
type Phase uint32

const (
	PhaseIdle Phase = iota
	PhaseDrainMutations
	PhaseApplyBindings
	PhaseRestyle
	PhaseRelayout
	PhaseEmitRedraw
)

var phaseNames = [...]string{"idle", "drain", "bindings", "restyle", "relayout", "redraw"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// TickResult tells the windowing layer what the tick produced.
type TickResult struct {
	// Tick is the tick number, starting at 1.
	Tick uint64
	// NeedsRedraw is set when a paint frame was emitted.
	NeedsRedraw bool
	// NeedsRelayout is set when a layout solve failed and will be retried.
	NeedsRelayout bool
	// NeedsFrame is set when work is already waiting for the next tick.
	NeedsFrame bool
}

// Tick runs one frame: DrainMutations, ApplyBindings, Restyle, Relayout,
// EmitRedraw, then Idle. A phase with no dirty input is skipped. Tick must
// be called from one goroutine; a call from inside a tick returns
// ErrReentrantTick.
func (e *Engine) Tick() (TickResult, error) {
	if !e.ticking.CompareAndSwap(false, true) {
		return TickResult{}, ErrReentrantTick
	}
	defer e.ticking.Store(false)

	start := time.Now()
	e.tick++
	res := TickResult{Tick: e.tick}
	sample := FrameSample{ID: ulid.Make().String(), Tick: e.tick, Timestamp: start.UnixMilli()}

	ctx, span := e.tracer.Start(context.Background(), "engine.Tick",
		trace.WithAttributes(attribute.Int64("lattice.tick", int64(e.tick))))
	defer span.End()

	sample.Counts.Mutations = e.runPhase(ctx, PhaseDrainMutations, &sample.Phases.DrainMs, e.drainMutations)

	if e.bindings.Pending() {
		e.runPhase(ctx, PhaseApplyBindings, &sample.Phases.BindingsMs, func() int {
			st := e.bindings.Flush()
			sample.Counts.Delivered = st.Delivered
			e.metrics.Deliveries.WithLabelValues("delivered").Add(float64(st.Delivered))
			e.metrics.Deliveries.WithLabelValues("unchanged").Add(float64(st.Unchanged))
			e.metrics.Deliveries.WithLabelValues("dropped").Add(float64(st.Dropped))
			return st.Delivered
		})
	}

	if e.entities.HasDirty(entity.DirtyStyle) {
		sample.Counts.Restyled = e.runPhase(ctx, PhaseRestyle, &sample.Phases.RestyleMs, func() int {
			dirty := e.entities.TakeDirty(entity.DirtyStyle)
			e.metrics.Dirty.WithLabelValues("style").Add(float64(len(dirty)))
			return len(e.styles.Resolve(dirty))
		})
	}

	if e.entities.HasDirty(entity.DirtyLayout) {
		sample.Counts.Relaid = e.runPhase(ctx, PhaseRelayout, &sample.Phases.RelayoutMs, func() int {
			dirty := e.entities.TakeDirty(entity.DirtyLayout)
			e.metrics.Dirty.WithLabelValues("layout").Add(float64(len(dirty)))
			r := e.layout.Relayout(dirty)
			sample.Counts.Failed = len(r.Failed)
			if len(r.Failed) > 0 {
				res.NeedsRelayout = true
				e.metrics.SolveFailures.Add(float64(len(r.Failed)))
				e.logger.Warn("layout solve failed", "tick", e.tick, "roots", len(r.Failed))
			}
			return len(r.Roots)
		})
	}

	e.mu.Lock()
	full := e.fullPaint
	e.fullPaint = false
	e.mu.Unlock()
	if full || e.entities.HasDirty(entity.DirtyRedraw) {
		sample.Counts.Redrawn = e.runPhase(ctx, PhaseEmitRedraw, &sample.Phases.RedrawMs, func() int {
			dirty := e.entities.TakeDirty(entity.DirtyRedraw)
			e.metrics.Dirty.WithLabelValues("redraw").Add(float64(len(dirty)))
			frame := e.buildFrame(dirty, full)
			e.lastFrame = frame
			if e.renderer != nil {
				e.renderer.Paint(frame)
			}
			e.a11y.Flush(e.tick, e.entities, e.styles, e.layout)
			return len(dirty)
		})
		res.NeedsRedraw = true
	}

	e.phase.Store(uint32(PhaseIdle))
	e.bindings.EndTick()
	if e.idle != nil {
		e.runIdle()
	}

	res.NeedsFrame = e.needsFrame()
	elapsed := time.Since(start)
	sample.FrameMs = durationToMillis(elapsed)
	sample.Counts.Entities = e.entities.Len()
	e.trace.Add(sample, elapsed)
	e.metrics.TickDuration.Observe(elapsed.Seconds())
	e.metrics.Ticks.Inc()
	e.metrics.Entities.Set(float64(sample.Counts.Entities))

	span.SetAttributes(
		attribute.Bool("lattice.redraw", res.NeedsRedraw),
		attribute.Bool("lattice.relayout_pending", res.NeedsRelayout),
	)
	if sample.Busy() {
		e.logger.Debug("tick",
			"tick", e.tick,
			"id", sample.ID,
			"ms", sample.FrameMs,
			"mutations", sample.Counts.Mutations,
			"delivered", sample.Counts.Delivered,
			"restyled", sample.Counts.Restyled,
			"relaid", sample.Counts.Relaid,
			"redrawn", sample.Counts.Redrawn,
		)
	}
	return res, nil
}

// runPhase runs fn as phase p inside a span and records its duration.
func (e *Engine) runPhase(ctx context.Context, p Phase, ms *float64, fn func() int) int {
	e.phase.Store(uint32(p))
	_, span := e.tracer.Start(ctx, "engine."+p.String())
	start := time.Now()
	n := fn()
	elapsed := time.Since(start)
	*ms = durationToMillis(elapsed)
	e.metrics.PhaseDuration.WithLabelValues(p.String()).Observe(elapsed.Seconds())
	span.SetAttributes(attribute.Int("lattice.count", n))
	span.End()
	return n
}

// drainMutations runs the closures queued before the tick started, in
// order, then advances style transitions. Closures queued while draining
// wait for the next tick.
func (e *Engine) drainMutations() int {
	e.mu.Lock()
	batch := e.mutations
	e.mutations = nil
	e.mu.Unlock()
	for _, fn := range batch {
		runMutation(fn)
	}
	e.requested.Store(false)
	if e.styles.Animating() {
		e.styles.Advance()
	}
	return len(batch)
}

func runMutation(fn func()) {
	defer errors.Recover("engine.Dispatch")
	fn()
}

func (e *Engine) runIdle() {
	defer errors.Recover("engine.Idle")
	e.idle()
}

func (e *Engine) needsFrame() bool {
	e.mu.Lock()
	queued := len(e.mutations) > 0 || e.fullPaint
	e.mu.Unlock()
	return queued ||
		e.requested.Load() ||
		e.bindings.Pending() ||
		e.styles.Animating() ||
		e.entities.HasDirty(entity.DirtyAll)
}
