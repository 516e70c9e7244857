package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/go-drift/lattice/pkg/binding"
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
	"github.com/go-drift/lattice/pkg/event"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/layout"
	"github.com/go-drift/lattice/pkg/style"
)

type errorLog struct {
	errs   []*errors.LatticeError
	panics []*errors.PanicError
}

func (l *errorLog) HandleError(err *errors.LatticeError) { l.errs = append(l.errs, err) }
func (l *errorLog) HandleWarning(*errors.CascadeWarning) {}
func (l *errorLog) HandlePanic(err *errors.PanicError) { l.panics = append(l.panics, err) }

func recordErrors(t *testing.T) *errorLog {
	t.Helper()
	l := &errorLog{}
	errors.SetHandler(l)
	t.Cleanup(func() { errors.SetHandler(nil) })
	return l
}

type frames struct{ got []*PaintFrame }

func (f *frames) Paint(frame *PaintFrame) { f.got = append(f.got, frame) }

func (f *frames) last(t *testing.T) *PaintFrame {
	t.Helper()
	require.NotEmpty(t, f.got)
	return f.got[len(f.got)-1]
}

func newEngine(t *testing.T, css string) (*Engine, *frames) {
	t.Helper()
	sheet := style.EmptySheet()
	if css != "" {
		var err error
		sheet, err = style.ParseCSS("test", css)
		require.NoError(t, err)
	}
	r := &frames{}
	return New(Options{Sheet: sheet, Renderer: r}), r
}

func tick(t *testing.T, e *Engine) TickResult {
	t.Helper()
	res, err := e.Tick()
	require.NoError(t, err)
	return res
}

func TestClassRuleSizesView(t *testing.T) {
	e, _ := newEngine(t, `.btn { width: 100 }`)
	btn, err := e.View(entity.Null, "view", "btn")
	require.NoError(t, err)

	res := tick(t, e)
	assert.True(t, res.NeedsRedraw)
	r, ok := e.Layout().Bounds(btn)
	require.True(t, ok)
	assert.Equal(t, 100.0, r.Width())
}

func TestBoundTextRedrawsOnce(t *testing.T) {
	e, r := newEngine(t, `label { height: 20 }`)
	label, err := e.Label(entity.Null, "")
	require.NoError(t, err)
	src := NewSource(e, "A")
	b, err := BindText(e, label, src)
	require.NoError(t, err)
	tick(t, e)

	src.Set("B")
	assert.Equal(t, binding.PendingNotify, b.State())
	tick(t, e)

	c, err := e.Styles().Computed(label)
	require.NoError(t, err)
	assert.Equal(t, "B", c.Text(style.Content))
	assert.Equal(t, binding.Idle, b.State())

	frame := r.last(t)
	n := 0
	for _, d := range frame.Dirty {
		if d == label {
			n++
		}
	}
	assert.Equal(t, 1, n)
	cmd, ok := frame.Find(label)
	require.True(t, ok)
	assert.Equal(t, "B", cmd.Content)
}

func TestTopMostViewReceivesPointer(t *testing.T) {
	e, _ := newEngine(t, `
		#a, #b { position: absolute; left: 10; top: 10; width: 50; height: 50 }
	`)
	a, _ := e.View(entity.Null, "view")
	b, _ := e.View(entity.Null, "view")
	require.NoError(t, e.Styles().SetID(a, "a"))
	require.NoError(t, e.Styles().SetID(b, "b"))
	var log []string
	require.NoError(t, e.On(a, func(*event.Context, *event.Event) { log = append(log, "a") }, event.PointerDown))
	require.NoError(t, e.On(b, func(_ *event.Context, ev *event.Event) {
		log = append(log, "b")
		ev.StopPropagation()
	}, event.PointerDown))
	require.NoError(t, e.On(e.Root(), func(*event.Context, *event.Event) { log = append(log, "root") }, event.PointerDown))
	tick(t, e)

	e.PostInput(event.Event{Kind: event.PointerDown, Position: graphics.Offset{X: 20, Y: 20}})
	tick(t, e)
	assert.Equal(t, []string{"b"}, log)
}

func TestRemovalInsideBindingSkipsLayout(t *testing.T) {
	errs := recordErrors(t)
	var solved []entity.Entity
	flex := layout.NewFlexEngine()
	e := New(Options{LayoutEngine: layout.EngineFunc(func(n *layout.Node, bounds graphics.Rect) (layout.Geometry, error) {
		var walk func(*layout.Node)
		walk = func(n *layout.Node) {
			solved = append(solved, n.Entity)
			for _, c := range n.Children {
				walk(c)
			}
		}
		walk(n)
		return flex.Solve(n, bounds)
	})})
	panel, _ := e.View(entity.Null, "view")
	doomed, _ := e.View(panel, "view")
	watcher, _ := e.View(entity.Null, "view")
	tick(t, e)

	require.NoError(t, e.Styles().SetProperty(doomed, style.Width, style.Px(40)))
	require.NoError(t, e.Entities().MarkDirty(doomed, entity.DirtyLayout))
	require.NotZero(t, e.Entities().DirtyOf(doomed)&entity.DirtyLayout)
	src := NewSource(e, 0)
	_, err := Bind(e, watcher, src, nil, func(entity.Entity, int) binding.Effect {
		require.NoError(t, e.Remove(doomed))
		return binding.Redraw
	})
	require.NoError(t, err)
	src.Set(1)

	solved = nil
	res := tick(t, e)
	assert.False(t, res.NeedsRelayout)
	assert.False(t, e.Entities().Alive(doomed))
	assert.Contains(t, solved, panel, "the parent is re-solved")
	assert.NotContains(t, solved, doomed)
	_, err = e.Layout().Rect(doomed)
	assert.True(t, errors.IsStale(err))
	assert.Empty(t, errs.errs, "no LayoutSolveError")
	assert.Empty(t, errs.panics)
}

func TestQuietTickDoesNothing(t *testing.T) {
	e, r := newEngine(t, "")
	_, _ = e.Label(entity.Null, "hello")
	first := tick(t, e)
	assert.True(t, first.NeedsRedraw)
	assert.False(t, first.NeedsFrame)
	painted := len(r.got)

	second := tick(t, e)
	assert.False(t, second.NeedsRedraw)
	assert.False(t, second.NeedsFrame)
	assert.Len(t, r.got, painted)
	assert.Equal(t, PhaseIdle, e.Phase())
}

func TestReentrantTickFails(t *testing.T) {
	e, _ := newEngine(t, "")
	var inner error
	e.SetIdle(func() { _, inner = e.Tick() })
	tick(t, e)
	assert.ErrorIs(t, inner, ErrReentrantTick)
}

func TestMutationsRunInOrder(t *testing.T) {
	e, _ := newEngine(t, "")
	var log []int
	for i := range 3 {
		e.Dispatch(func() { log = append(log, i) })
	}
	e.Dispatch(func() { e.Dispatch(func() { log = append(log, 99) }) })
	res := tick(t, e)
	assert.Equal(t, []int{0, 1, 2}, log)
	assert.True(t, res.NeedsFrame, "a closure queued while draining waits")
	tick(t, e)
	assert.Equal(t, []int{0, 1, 2, 99}, log)
}

func TestPanickingMutationIsContained(t *testing.T) {
	errs := recordErrors(t)
	e, _ := newEngine(t, "")
	ran := false
	e.Dispatch(func() { panic("boom") })
	e.Dispatch(func() { ran = true })
	tick(t, e)
	assert.True(t, ran)
	require.Len(t, errs.panics, 1)
	assert.Equal(t, "engine.Dispatch", errs.panics[0].Op)
}

func TestBindingWriteDuringFlushNeedsFrame(t *testing.T) {
	e, _ := newEngine(t, "")
	v, _ := e.View(entity.Null, "view")
	a := NewSource(e, 0)
	b := NewSource(e, 0)
	_, err := binding.BindComparable(e.Bindings(), v, a, func(_ entity.Entity, n int) binding.Effect {
		b.Set(n * 10)
		return binding.None
	})
	require.NoError(t, err)
	tick(t, e)
	a.Set(1)
	res := tick(t, e)
	assert.True(t, res.NeedsFrame)
}

func TestResizeRelayoutsAndScaleRepaints(t *testing.T) {
	e, r := newEngine(t, "")
	tick(t, e)
	e.Resize(graphics.Size{Width: 300, Height: 200})
	tick(t, e)
	root, ok := e.Layout().Bounds(e.Root())
	require.True(t, ok)
	assert.Equal(t, graphics.RectFromLTWH(0, 0, 300, 200), root)

	e.SetScaleFactor(2)
	res := tick(t, e)
	assert.True(t, res.NeedsRedraw)
	frame := r.last(t)
	assert.True(t, frame.Full)
	assert.Equal(t, 2.0, frame.Scale)
	cmd, ok := frame.Find(e.Root())
	require.True(t, ok)
	assert.Equal(t, graphics.RectFromLTWH(0, 0, 600, 400), frame.DeviceBounds(cmd))
}

func TestRequestRedrawRepaintsEverything(t *testing.T) {
	e, r := newEngine(t, `label { height: 20 }`)
	_, _ = e.Label(entity.Null, "x")
	tick(t, e)
	e.RequestRedraw()
	res := tick(t, e)
	assert.True(t, res.NeedsRedraw)
	frame := r.last(t)
	assert.True(t, frame.Full)
	assert.Empty(t, frame.Dirty)
	assert.Len(t, frame.Commands, 2)
}

func TestPaintOrderFollowsZIndex(t *testing.T) {
	e, r := newEngine(t, `
		view { position: absolute; width: 10; height: 10 }
		.top { z-index: 5 }
	`)
	a, _ := e.View(entity.Null, "view", "top")
	b, _ := e.View(entity.Null, "view")
	hidden, _ := e.View(entity.Null, "view")
	require.NoError(t, e.Entities().SetFlags(hidden, entity.Hidden, true))
	tick(t, e)

	frame := r.last(t)
	var order []entity.Entity
	for _, c := range frame.Commands {
		order = append(order, c.Entity)
	}
	assert.Equal(t, []entity.Entity{e.Root(), b, a}, order)
}

func TestCloseCanBeVetoed(t *testing.T) {
	e, _ := newEngine(t, "")
	veto := true
	require.NoError(t, e.On(e.Root(), func(_ *event.Context, ev *event.Event) {
		if veto {
			ev.StopPropagation()
		}
	}, event.CloseRequested))

	e.RequestClose()
	tick(t, e)
	assert.False(t, e.Closed())

	veto = false
	e.RequestClose()
	tick(t, e)
	assert.True(t, e.Closed())
}

func TestRunStopsOnClose(t *testing.T) {
	e, _ := newEngine(t, "")
	e.opts.FrameRate = 1000
	ticks := 0
	e.SetIdle(func() {
		ticks++
		if ticks == 3 {
			e.RequestClose()
		}
		e.RequestFrame()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Run(ctx))
	assert.True(t, e.Closed())
	assert.GreaterOrEqual(t, ticks, 4)
}

func TestRunReturnsOnCancel(t *testing.T) {
	e, _ := newEngine(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	e.SetIdle(cancel)
	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetricsAndTrace(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := New(Options{Registerer: reg, TraceSamples: 4})
	_, _ = e.Label(entity.Null, "x")
	for range 6 {
		tick(t, e)
	}

	var m dto.Metric
	require.NoError(t, e.Metrics().Ticks.Write(&m))
	assert.Equal(t, 6.0, m.GetCounter().GetValue())

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "lattice_tick_duration_seconds")
	assert.Contains(t, names, "lattice_dirty_entities_total")

	timeline := e.FrameTrace().Snapshot()
	require.Len(t, timeline.Samples, 4)
	assert.Equal(t, uint64(3), timeline.Samples[0].Tick)
	assert.Equal(t, uint64(6), timeline.Samples[3].Tick)
	assert.Len(t, timeline.Samples[3].ID, 26)
	assert.False(t, timeline.Samples[3].Busy())
}

func TestTickSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	e := New(Options{TracerProvider: tp})
	_, _ = e.Label(entity.Null, "x")
	tick(t, e)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		"engine.drain",
		"engine.restyle",
		"engine.relayout",
		"engine.redraw",
		"engine.Tick",
	}, names)
}

func TestAccessibilityExportFollowsPaint(t *testing.T) {
	e, _ := newEngine(t, "")
	btn, err := e.Button(entity.Null, "OK", nil)
	require.NoError(t, err)
	tick(t, e)

	snap, ok := e.Accessibility().Last()
	require.True(t, ok)
	n, ok := snap.Find(btn)
	require.True(t, ok)
	assert.Equal(t, "OK", n.Label)
}

func TestButtonClick(t *testing.T) {
	e, _ := newEngine(t, `button { height: 20 }`)
	clicks := 0
	btn, err := e.Button(entity.Null, "go", func() { clicks++ })
	require.NoError(t, err)
	tick(t, e)

	p := graphics.Offset{X: 5, Y: 5}
	e.PostInput(event.Event{Kind: event.PointerDown, Position: p})
	e.PostInput(event.Event{Kind: event.PointerUp, Position: p})
	tick(t, e)
	assert.Equal(t, 1, clicks)
	assert.True(t, e.Entities().HasFlag(btn, entity.Focused))
}
