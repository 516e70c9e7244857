package testing

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/lattice/pkg/animation"
	"github.com/go-drift/lattice/pkg/engine"
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/event"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

const form = `
views:
  - type: column
    id: form
    style:
      width: 200
    children:
      - type: label
        id: title
        classes: [heading]
        text: Sign in
        style:
          height: 20
      - type: button
        id: ok
        text: OK
        focusable: true
        style:
          height: 30
          background-color: "#3366ff"
      - type: button
        id: cancel
        text: Cancel
        focusable: true
        style:
          height: 30
`

func TestFakeClock(t *testing.T) {
	clk := NewFakeClock()
	start := clk.Now()
	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, clk.Now().Sub(start))

	target := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clk.Set(target)
	assert.True(t, clk.Now().Equal(target))
}

func TestTesterInstallsClock(t *testing.T) {
	var tester *Tester
	t.Run("inner", func(t *testing.T) {
		tester = New(t, engine.Options{})
		assert.Equal(t, tester.Clock().Now(), animation.Now())
	})
	assert.NotEqual(t, tester.Clock().Now(), animation.Now())
}

func TestPumpRecordsFramesAndSnapshots(t *testing.T) {
	tester := New(t, engine.Options{})
	tester.LoadScene(form)

	res := tester.Pump()
	assert.True(t, res.NeedsRedraw)
	require.Len(t, tester.Frames(), 1)
	require.NotEmpty(t, tester.Snapshots())
	assert.Equal(t, graphics.Size{Width: DefaultTestWidth, Height: DefaultTestHeight}, tester.LastFrame().Viewport)

	assert.False(t, tester.Pump().NeedsRedraw)
	assert.Len(t, tester.Frames(), 1)

	tester.ResetFrames()
	assert.Nil(t, tester.LastFrame())
}

func TestFinders(t *testing.T) {
	tester := New(t, engine.Options{})
	tester.LoadScene(form)
	tester.Pump()

	assert.Equal(t, 2, tester.Find(ByType("button")).Count())
	assert.Equal(t, tester.Find(ByID("ok")).First(), tester.Find(ByText("OK")).First())
	assert.True(t, tester.Find(ByClass("heading")).Exists())
	assert.False(t, tester.Find(ByClass("heading", "missing")).Exists())
	assert.Equal(t, 2, tester.Find(BySelector("column > button")).Count())
	assert.False(t, tester.Find(BySelector("((")).Exists())
	assert.Equal(t, 2, tester.Find(ByFlag(entity.Focusable)).Count())
	assert.Equal(t, 3, tester.Find(Descendant(ByID("form"), ByPredicate("any", func(*engine.Engine, entity.Entity) bool { return true }))).Count())

	_, err := tester.Find(ByType("button")).Single()
	assert.ErrorContains(t, err, "found 2 entities")
	_, err = tester.Find(ByID("nope")).Single()
	assert.ErrorContains(t, err, `ByID("nope")`)
	assert.True(t, tester.Find(ByID("nope")).FirstOrNull().IsNull())
	assert.Panics(t, func() { tester.Find(ByID("nope")).First() })
	assert.Panics(t, func() { tester.Find(ByID("ok")).At(3) })

	assert.Equal(t, 30.0, tester.Bounds(ByID("ok")).Bottom-tester.Bounds(ByID("ok")).Top)
}

func TestTapClicksAndFocuses(t *testing.T) {
	tester := New(t, engine.Options{})
	built := tester.LoadScene(form)
	tester.Pump()

	var clicks []string
	for _, id := range []string{"ok", "cancel"} {
		require.NoError(t, tester.Engine().On(built.MustLookup(id), func(*event.Context, *event.Event) {
			clicks = append(clicks, id)
		}, event.Click))
	}

	require.NoError(t, tester.Tap(ByID("cancel")))
	tester.Pump()
	assert.Equal(t, []string{"cancel"}, clicks)
	assert.True(t, tester.Engine().Entities().HasFlag(built.MustLookup("cancel"), entity.Focused))

	tester.PressKey(event.KeyTab, event.ModShift)
	tester.Pump()
	assert.True(t, tester.Engine().Entities().HasFlag(built.MustLookup("ok"), entity.Focused))

	err := tester.Tap(ByID("missing"))
	assert.ErrorContains(t, err, "Tap: finder matched no entities")
}

func TestHoverAndLeave(t *testing.T) {
	tester := New(t, engine.Options{})
	built := tester.LoadScene(form)
	tester.Pump()
	ok := built.MustLookup("ok")

	require.NoError(t, tester.Hover(ByID("ok")))
	tester.Pump()
	assert.True(t, tester.Engine().Entities().HasFlag(ok, entity.Hovered))

	tester.SendPointerLeave()
	tester.Pump()
	assert.False(t, tester.Engine().Entities().HasFlag(ok, entity.Hovered))
}

func TestEnterTextReachesFocused(t *testing.T) {
	tester := New(t, engine.Options{})
	built := tester.LoadScene(form)
	tester.Pump()
	ok := built.MustLookup("ok")

	var got string
	require.NoError(t, tester.Engine().On(ok, func(_ *event.Context, ev *event.Event) { got += ev.Text }, event.TextInput))
	require.NoError(t, tester.Tap(ByID("ok")))
	tester.EnterText("hi")
	tester.Pump()
	assert.Equal(t, "hi", got)
}

func TestPumpAndSettleFinishesTransition(t *testing.T) {
	tester := New(t, engine.Options{})
	built := tester.LoadScene(form)
	tester.Pump()
	panel := built.MustLookup("form")

	require.NoError(t, tester.Engine().Styles().Animate(panel, style.Opacity, style.Number(1), style.Number(0), 100*time.Millisecond, animation.Linear))
	require.NoError(t, tester.PumpAndSettle(time.Second))
	assert.False(t, tester.Engine().Styles().Animating())
	assert.GreaterOrEqual(t, len(tester.Frames()), 3)

	require.NoError(t, tester.Engine().Styles().Animate(panel, style.Opacity, style.Number(1), style.Number(0), time.Hour, animation.Linear))
	assert.ErrorIs(t, tester.PumpAndSettle(50*time.Millisecond), ErrSettleTimeout)
}

type fakeT struct {
	fatals, errors []string
}

func (f *fakeT) Helper()      {}
func (f *fakeT) Name() string { return "TestFake" }
func (f *fakeT) Fatalf(format string, args ...any) {
	f.fatals = append(f.fatals, fmt.Sprintf(format, args...))
}
func (f *fakeT) Errorf(format string, args ...any) {
	f.errors = append(f.errors, fmt.Sprintf(format, args...))
}

func TestSnapshotMatchesFile(t *testing.T) {
	tester := New(t, engine.Options{})
	built := tester.LoadScene(form)
	tester.Pump()

	snap := tester.CaptureSnapshot()
	require.Len(t, snap.Commands, 5)
	assert.Equal(t, "window", snap.Commands[0].Node)
	assert.Equal(t, "label#title.heading", snap.Commands[2].Node)
	assert.Equal(t, "Sign in", snap.Commands[2].Content)
	assert.Contains(t, snap.Commands[3].Props, "background-color")

	path := filepath.Join(t.TempDir(), "golden", "form.snapshot.json")
	ft := &fakeT{}
	snap.MatchesFile(ft, path)
	require.Len(t, ft.fatals, 1)
	assert.Contains(t, ft.fatals[0], UpdateSnapshotsEnv+"=1")

	require.NoError(t, snap.UpdateFile(path))
	ft = &fakeT{}
	snap.MatchesFile(ft, path)
	assert.Empty(t, ft.fatals)
	assert.Empty(t, ft.errors)

	require.NoError(t, tester.Engine().Styles().SetProperty(built.MustLookup("title"), style.Content, style.Text("Welcome")))
	tester.Pump()
	tester.CaptureSnapshot().MatchesFile(ft, path)
	require.Len(t, ft.errors, 1)
	assert.Contains(t, ft.errors[0], `+      "content": "Welcome"`)
	assert.Contains(t, ft.errors[0], `-      "content": "Sign in"`)
}

func TestSnapshotUpdateEnv(t *testing.T) {
	tester := New(t, engine.Options{})
	tester.LoadScene(form)
	tester.Pump()

	t.Setenv(UpdateSnapshotsEnv, "1")
	path := filepath.Join(t.TempDir(), "new.snapshot.json")
	ft := &fakeT{}
	tester.CaptureSnapshot().MatchesFile(ft, path)
	assert.Empty(t, ft.fatals)

	loaded, err := loadSnapshot(path)
	require.NoError(t, err)
	assert.Empty(t, tester.CaptureSnapshot().Diff(loaded))
}
