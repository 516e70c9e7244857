// Package engine ties the stores together and runs the frame scheduler.
//
// An Engine owns one entity tree and the style, layout, binding and event
// layers over it. Everything runs on the goroutine that calls Tick (or Run).
// Other goroutines talk to the engine only through Dispatch, PostInput,
// RequestFrame and ReloadSheet, which append to a mutex-guarded queue that
// the next tick drains before any other work.
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-drift/lattice/pkg/accessibility"
	"github.com/go-drift/lattice/pkg/binding"
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
	"github.com/go-drift/lattice/pkg/event"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/layout"
	"github.com/go-drift/lattice/pkg/style"
)

const tracerName = "github.com/go-drift/lattice/pkg/engine"

// DefaultViewport is the logical window size used when none is given.
var DefaultViewport = graphics.Size{Width: 800, Height: 600}

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Sheet is the initial style sheet.
	Sheet *style.Sheet
	// SheetPaths are watched for changes by Run when HotReload is set.
	SheetPaths []string
	HotReload  bool

	// LayoutEngine replaces the default flex engine.
	LayoutEngine layout.Engine
	// Measurer sizes text content; nil leaves text unmeasured.
	Measurer layout.Measurer

	Renderer Renderer
	Exporter accessibility.Exporter

	// Viewport is the logical window size.
	Viewport graphics.Size
	// Scale is the user scale factor applied at the paint boundary.
	Scale float64

	// FrameRate caps ticks per second in Run. Zero means 60.
	FrameRate float64
	// TraceSamples and TraceThreshold size the frame trace ring.
	TraceSamples   int
	TraceThreshold time.Duration

	Logger *slog.Logger
	// Registerer receives the engine's Prometheus collectors. Nil keeps
	// them unregistered.
	Registerer prometheus.Registerer
	// TracerProvider defaults to the global OpenTelemetry provider.
	TracerProvider trace.TracerProvider
	// DebugAddr starts the debug HTTP server in Run when set.
	DebugAddr string
}

// Engine is the facade over one view tree.
type Engine struct {
	opts Options

	entities *entity.Store
	styles   *style.Store
	layout   *layout.Bridge
	bindings *binding.Registry
	events   *event.Dispatcher
	a11y     *accessibility.Service
	renderer Renderer

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	trace   *FrameTraceBuffer

	// Cross-goroutine state.
	mu        sync.Mutex
	mutations []func()
	fullPaint bool
	wake      chan struct{}
	requested atomic.Bool
	closed    atomic.Bool

	// Scheduler goroutine state.
	ticking   atomic.Bool
	phase     atomic.Uint32
	tick      uint64
	scale     float64
	idle      func()
	lastFrame *PaintFrame
}

// New creates an engine with an empty root entity.
func New(opts Options) *Engine {
	if opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		opts.Viewport = DefaultViewport
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	es := entity.NewStore()
	root, _ := es.CreateRoot()
	st := style.NewStore(es, opts.Sheet)
	_ = st.SetType(root, "window")
	br := layout.NewBridge(es, st, opts.LayoutEngine)
	br.SetViewport(opts.Viewport)
	if opts.Measurer != nil {
		br.SetMeasurer(opts.Measurer)
	}

	e := &Engine{
		opts:     opts,
		entities: es,
		styles:   st,
		layout:   br,
		bindings: binding.NewRegistry(es),
		events:   event.NewDispatcher(es, st, br),
		a11y:     accessibility.NewService(opts.Exporter),
		renderer: opts.Renderer,
		logger:   opts.Logger,
		metrics:  NewMetrics(opts.Registerer),
		tracer:   tp.Tracer(tracerName),
		trace:    NewFrameTraceBuffer(opts.TraceSamples, opts.TraceThreshold),
		wake:     make(chan struct{}, 1),
		scale:    opts.Scale,
	}
	e.a11y.SetDeviceScale(opts.Scale)
	return e
}

// Entities returns the entity store.
func (e *Engine) Entities() *entity.Store { return e.entities }

// Styles returns the style store.
func (e *Engine) Styles() *style.Store { return e.styles }

// Layout returns the layout bridge.
func (e *Engine) Layout() *layout.Bridge { return e.layout }

// Bindings returns the binding registry.
func (e *Engine) Bindings() *binding.Registry { return e.bindings }

// Events returns the event dispatcher.
func (e *Engine) Events() *event.Dispatcher { return e.events }

// Accessibility returns the accessibility service.
func (e *Engine) Accessibility() *accessibility.Service { return e.a11y }

// FrameTrace returns the frame trace ring.
func (e *Engine) FrameTrace() *FrameTraceBuffer { return e.trace }

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Root returns the root entity.
func (e *Engine) Root() entity.Entity { return e.entities.Root() }

// Phase returns the phase the scheduler is in.
func (e *Engine) Phase() Phase { return Phase(e.phase.Load()) }

// ScaleFactor returns the user scale factor.
func (e *Engine) ScaleFactor() float64 { return e.scale }

// LastFrame returns the most recent paint frame, or nil.
func (e *Engine) LastFrame() *PaintFrame { return e.lastFrame }

// SetIdle installs a hook that runs at the end of every tick. Panics in it
// are recovered and reported.
func (e *Engine) SetIdle(fn func()) { e.idle = fn }

// Dispatch queues fn to run on the scheduler goroutine at the start of the
// next tick. It is safe to call from any goroutine.
func (e *Engine) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.mutations = append(e.mutations, fn)
	e.mu.Unlock()
	e.notify()
}

// PostInput queues a window or input event. Coordinates are logical. Resize,
// ScaleChanged and CloseRequested also update the engine's window state.
func (e *Engine) PostInput(ev event.Event) {
	e.Dispatch(func() { e.handleInput(&ev) })
}

// Resize queues a new logical window size.
func (e *Engine) Resize(size graphics.Size) {
	e.PostInput(event.Event{Kind: event.Resize, Size: size})
}

// SetScaleFactor queues a new user scale factor. The layout is unaffected;
// the next tick repaints everything at the new scale.
func (e *Engine) SetScaleFactor(scale float64) {
	e.PostInput(event.Event{Kind: event.ScaleChanged, Scale: scale})
}

// RequestClose queues a close request. Handlers on the root can veto it by
// stopping propagation.
func (e *Engine) RequestClose() {
	e.PostInput(event.Event{Kind: event.CloseRequested})
}

// Closed reports whether a close request went through.
func (e *Engine) Closed() bool { return e.closed.Load() }

// ReloadSheet queues a sheet swap. Safe from any goroutine.
func (e *Engine) ReloadSheet(sheet *style.Sheet) {
	e.Dispatch(func() {
		e.styles.Reload(sheet)
		e.logger.Debug("style sheet swapped", "rules", e.styles.Sheet().Len())
	})
}

// RequestRedraw asks the next tick to repaint the whole tree.
func (e *Engine) RequestRedraw() {
	e.mu.Lock()
	e.fullPaint = true
	e.mu.Unlock()
	e.notify()
}

// RequestFrame asks for another tick even if nothing is dirty.
func (e *Engine) RequestFrame() {
	e.requested.Store(true)
	e.notify()
}

func (e *Engine) notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) handleInput(ev *event.Event) {
	switch ev.Kind {
	case event.Resize:
		e.layout.SetViewport(ev.Size)
	case event.ScaleChanged:
		if ev.Scale > 0 && ev.Scale != e.scale {
			e.scale = ev.Scale
			e.a11y.SetDeviceScale(ev.Scale)
			e.mu.Lock()
			e.fullPaint = true
			e.mu.Unlock()
		}
	}
	if err := e.events.Handle(ev); err != nil {
		errors.Report(&errors.LatticeError{Op: "engine.PostInput", Kind: errors.KindLifecycle, Err: err})
	}
	if ev.Kind == event.CloseRequested && !ev.Stopped() {
		e.closed.Store(true)
		e.notify()
	}
}
