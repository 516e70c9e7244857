package event

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

type rects map[entity.Entity]graphics.Rect

func (r rects) Bounds(e entity.Entity) (graphics.Rect, bool) {
	b, ok := r[e]
	return b, ok
}

type fixture struct {
	es     *entity.Store
	styles *style.Store
	geom   rects
	d      *Dispatcher
	root   entity.Entity
	log    []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	es := entity.NewStore()
	root, err := es.CreateRoot()
	require.NoError(t, err)
	f := &fixture{es: es, styles: style.NewStore(es, style.EmptySheet()), geom: rects{}, root: root}
	f.geom[root] = graphics.RectFromLTWH(0, 0, 400, 400)
	f.d = NewDispatcher(es, f.styles, f.geom)
	return f
}

func (f *fixture) child(t *testing.T, parent entity.Entity, r graphics.Rect) entity.Entity {
	t.Helper()
	e, err := f.es.Create(parent)
	require.NoError(t, err)
	f.geom[e] = r
	return e
}

// record registers a listener on e that logs name and the phase.
func (f *fixture) record(t *testing.T, e entity.Entity, name string, capture bool, stop bool) {
	t.Helper()
	l := &Listener{Capture: capture, Func: func(_ *Context, ev *Event) {
		f.log = append(f.log, fmt.Sprintf("%s:%s:%s", name, ev.Phase(), ev.Kind))
		if stop {
			ev.StopPropagation()
		}
	}}
	require.NoError(t, f.d.AddHandler(e, l))
}

func (f *fixture) settle() {
	f.styles.Resolve(f.es.TakeDirty(entity.DirtyStyle))
	f.es.TakeDirty(entity.DirtyAll)
}

func TestDispatchPhases(t *testing.T) {
	f := newFixture(t)
	mid := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 100, 100))
	leaf := f.child(t, mid, graphics.RectFromLTWH(0, 0, 50, 50))
	f.record(t, f.root, "root", true, false)
	f.record(t, f.root, "root", false, false)
	f.record(t, mid, "mid", true, false)
	f.record(t, mid, "mid", false, false)
	f.record(t, leaf, "leaf", false, false)

	ev := &Event{Kind: PointerDown}
	require.NoError(t, f.d.Dispatch(ev, leaf))
	assert.Equal(t, []string{
		"root:capture:pointer-down",
		"mid:capture:pointer-down",
		"leaf:target:pointer-down",
		"mid:bubble:pointer-down",
		"root:bubble:pointer-down",
	}, f.log)
	assert.Equal(t, leaf, ev.Target())
	assert.Equal(t, PhaseNone, ev.Phase())
}

func TestRemoveHandlerKeepsOthers(t *testing.T) {
	f := newFixture(t)
	leaf := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 50, 50))
	var got []string
	first := On(func(*Context, *Event) { got = append(got, "first") }, Click)
	second := On(func(*Context, *Event) { got = append(got, "second") }, Click)
	require.NoError(t, f.d.AddHandler(leaf, first))
	require.NoError(t, f.d.AddHandler(leaf, second))

	require.NoError(t, f.d.RemoveHandler(leaf, first))
	require.NoError(t, f.d.Dispatch(&Event{Kind: Click}, leaf))
	assert.Equal(t, []string{"second"}, got)

	require.NoError(t, f.d.RemoveHandler(leaf, first), "removing twice is harmless")
	require.NoError(t, f.d.RemoveHandler(leaf, second))
	require.NoError(t, f.d.Dispatch(&Event{Kind: Click}, leaf))
	assert.Equal(t, []string{"second"}, got)
}

func TestCaptureStopStillRunsTarget(t *testing.T) {
	f := newFixture(t)
	mid := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 100, 100))
	leaf := f.child(t, mid, graphics.RectFromLTWH(0, 0, 50, 50))
	f.record(t, f.root, "root", true, true)
	f.record(t, mid, "mid", true, false)
	f.record(t, leaf, "leaf", false, false)
	f.record(t, f.root, "root", false, false)

	require.NoError(t, f.d.Dispatch(&Event{Kind: KeyDown}, leaf))
	assert.Equal(t, []string{
		"root:capture:key-down",
		"leaf:target:key-down",
		"root:bubble:key-down",
	}, f.log)
}

func TestTopMostTargetStopsBubbling(t *testing.T) {
	f := newFixture(t)
	under := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 100, 100))
	over := f.child(t, f.root, graphics.RectFromLTWH(50, 50, 100, 100))
	f.record(t, under, "under", false, false)
	f.record(t, over, "over", false, true)
	f.record(t, f.root, "root", false, false)

	p := graphics.Offset{X: 60, Y: 60}
	assert.Equal(t, over, f.d.HitTest(p))
	require.NoError(t, f.d.Dispatch(&Event{Kind: PointerDown, Position: p}, f.d.HitTest(p)))
	assert.Equal(t, []string{"over:target:pointer-down"}, f.log)
}

func TestHitTestRules(t *testing.T) {
	f := newFixture(t)
	a := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 100, 100))
	b := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 100, 100))
	p := graphics.Offset{X: 10, Y: 10}
	assert.Equal(t, b, f.d.HitTest(p), "later sibling paints last")

	require.NoError(t, f.styles.SetProperty(a, style.ZIndex, style.Number(1)))
	f.settle()
	assert.Equal(t, a, f.d.HitTest(p), "higher z-index wins")

	require.NoError(t, f.es.SetFlags(a, entity.Disabled, true))
	assert.Equal(t, b, f.d.HitTest(p))
	require.NoError(t, f.es.SetFlags(b, entity.Hidden, true))
	assert.Equal(t, f.root, f.d.HitTest(p))

	assert.Equal(t, entity.Null, f.d.HitTest(graphics.Offset{X: 500, Y: 500}))
}

func TestHitTestRespectsClipping(t *testing.T) {
	f := newFixture(t)
	box := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 100, 100))
	spill := f.child(t, box, graphics.RectFromLTWH(50, 50, 200, 200))
	p := graphics.Offset{X: 150, Y: 150}
	assert.Equal(t, f.root, f.d.HitTest(p), "overflow: hidden clips the child")

	require.NoError(t, f.styles.SetProperty(box, style.Overflow, style.Keyword("visible")))
	f.settle()
	assert.Equal(t, spill, f.d.HitTest(p))
}

func TestDisabledIsInherited(t *testing.T) {
	f := newFixture(t)
	box := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 100, 100))
	f.child(t, box, graphics.RectFromLTWH(0, 0, 50, 50))
	require.NoError(t, f.es.SetFlags(box, entity.Disabled, true))
	assert.Equal(t, f.root, f.d.HitTest(graphics.Offset{X: 10, Y: 10}))
}

func TestHoverEnterAndLeave(t *testing.T) {
	f := newFixture(t)
	a := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 100, 100))
	b := f.child(t, f.root, graphics.RectFromLTWH(200, 0, 100, 100))
	for name, e := range map[string]entity.Entity{"root": f.root, "a": a, "b": b} {
		f.record(t, e, name, false, false)
	}

	require.NoError(t, f.d.Handle(&Event{Kind: PointerMove, Position: graphics.Offset{X: 10, Y: 10}}))
	assert.Equal(t, []string{
		"root:target:pointer-enter",
		"a:target:pointer-enter",
		"a:target:pointer-move",
		"root:bubble:pointer-move",
	}, f.log)
	assert.True(t, f.es.HasFlag(a, entity.Hovered))
	assert.True(t, f.es.HasFlag(f.root, entity.Hovered))
	assert.Equal(t, a, f.d.Hovered())

	f.log = nil
	require.NoError(t, f.d.Handle(&Event{Kind: PointerMove, Position: graphics.Offset{X: 210, Y: 10}}))
	assert.Equal(t, []string{
		"a:target:pointer-leave",
		"b:target:pointer-enter",
		"b:target:pointer-move",
		"root:bubble:pointer-move",
	}, f.log)
	assert.False(t, f.es.HasFlag(a, entity.Hovered))

	f.log = nil
	require.NoError(t, f.d.Handle(&Event{Kind: PointerLeave}))
	assert.Equal(t, []string{"b:target:pointer-leave", "root:target:pointer-leave"}, f.log)
	assert.Equal(t, entity.Null, f.d.Hovered())
}

func TestPressClickAndFocus(t *testing.T) {
	f := newFixture(t)
	button := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 100, 40))
	label := f.child(t, button, graphics.RectFromLTWH(10, 10, 50, 20))
	require.NoError(t, f.es.SetFlags(button, entity.Focusable, true))
	var clicks int
	require.NoError(t, f.d.AddHandler(button, On(func(*Context, *Event) { clicks++ }, Click)))
	f.record(t, button, "button", false, false)

	p := graphics.Offset{X: 20, Y: 20}
	require.NoError(t, f.d.Handle(&Event{Kind: PointerDown, Position: p}))
	assert.True(t, f.es.HasFlag(label, entity.Active))
	assert.Equal(t, button, f.d.Focus().Focused(), "click focuses the nearest focusable ancestor")
	assert.True(t, f.es.HasFlag(button, entity.Focused))

	require.NoError(t, f.d.Handle(&Event{Kind: PointerUp, Position: p}))
	assert.False(t, f.es.HasFlag(label, entity.Active))
	assert.Equal(t, 1, clicks)
	assert.Contains(t, f.log, "button:target:focus-in")
	assert.Contains(t, f.log, "button:bubble:click")

	// Release elsewhere: no click.
	require.NoError(t, f.d.Handle(&Event{Kind: PointerDown, Position: p}))
	require.NoError(t, f.d.Handle(&Event{Kind: PointerUp, Position: graphics.Offset{X: 300, Y: 300}}))
	assert.Equal(t, 1, clicks)
}

func TestTabMovesFocusUnlessStopped(t *testing.T) {
	f := newFixture(t)
	var fields []entity.Entity
	for i := range 3 {
		e := f.child(t, f.root, graphics.RectFromLTWH(0, float64(i)*30, 100, 20))
		require.NoError(t, f.es.SetFlags(e, entity.Focusable, true))
		fields = append(fields, e)
	}
	tab := func(mods Modifiers) {
		require.NoError(t, f.d.Handle(&Event{Kind: KeyDown, Key: KeyTab, Modifiers: mods}))
	}

	tab(0)
	assert.Equal(t, fields[0], f.d.Focus().Focused())
	tab(0)
	assert.Equal(t, fields[1], f.d.Focus().Focused())
	tab(ModShift)
	assert.Equal(t, fields[0], f.d.Focus().Focused())

	f.record(t, fields[0], "field", false, true)
	tab(0)
	assert.Equal(t, fields[0], f.d.Focus().Focused(), "stopped Tab keeps focus")
	assert.Equal(t, []string{"field:target:key-down"}, f.log)

	f.d.DirectionalFocus = true
	require.NoError(t, f.d.Handle(&Event{Kind: KeyDown, Key: KeyArrowDown}))
	assert.Equal(t, fields[0], f.d.Focus().Focused(), "the field stops every key")
	require.NoError(t, f.d.RemoveHandlers(fields[0]))
	require.NoError(t, f.d.Handle(&Event{Kind: KeyDown, Key: KeyArrowDown}))
	assert.Equal(t, fields[1], f.d.Focus().Focused())
}

func TestDispatchFromHandlerIsQueued(t *testing.T) {
	f := newFixture(t)
	a := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 10, 10))
	require.NoError(t, f.d.AddHandler(a, On(func(ctx *Context, ev *Event) {
		f.log = append(f.log, "a:start")
		require.NoError(t, ctx.Dispatcher().Dispatch(&Event{Kind: TextInput, Text: "x"}, f.root))
		f.log = append(f.log, "a:end")
	}, KeyDown)))
	f.record(t, f.root, "root", false, false)

	require.NoError(t, f.d.Dispatch(&Event{Kind: KeyDown}, a))
	assert.Equal(t, []string{"a:start", "a:end", "root:bubble:key-down", "root:target:text-input"}, f.log)
}

func TestRemovalDuringDispatch(t *testing.T) {
	f := newFixture(t)
	mid := f.child(t, f.root, graphics.RectFromLTWH(0, 0, 100, 100))
	leaf := f.child(t, mid, graphics.RectFromLTWH(0, 0, 50, 50))
	require.NoError(t, f.d.AddHandler(leaf, On(func(*Context, *Event) {
		_, err := f.es.Remove(mid)
		require.NoError(t, err)
	})))
	f.record(t, mid, "mid", false, false)
	f.record(t, f.root, "root", false, false)

	require.NoError(t, f.d.Dispatch(&Event{Kind: Click}, leaf))
	assert.Equal(t, []string{"root:bubble:click"}, f.log)

	err := f.d.Dispatch(&Event{Kind: Click}, leaf)
	assert.True(t, errors.IsStale(err))
	assert.True(t, errors.IsStale(f.d.AddHandler(leaf, On(func(*Context, *Event) {}))))
	assert.True(t, errors.IsStale(f.d.RemoveHandler(leaf, nil)))
	assert.True(t, errors.IsStale(f.d.RemoveHandlers(mid)))
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	var panics []*errors.PanicError
	errors.SetHandler(panicSink(func(p *errors.PanicError) { panics = append(panics, p) }))
	t.Cleanup(func() { errors.SetHandler(nil) })

	f := newFixture(t)
	require.NoError(t, f.d.AddHandler(f.root, On(func(*Context, *Event) { panic("handler") })))
	f.record(t, f.root, "root", false, false)
	require.NoError(t, f.d.Dispatch(&Event{Kind: Click}, f.root))
	assert.Equal(t, []string{"root:target:click"}, f.log)
	require.Len(t, panics, 1)
}

type panicSink func(*errors.PanicError)

func (p panicSink) HandleError(*errors.LatticeError) {}
func (p panicSink) HandleWarning(*errors.CascadeWarning) {}
func (p panicSink) HandlePanic(e *errors.PanicError) { p(e) }
