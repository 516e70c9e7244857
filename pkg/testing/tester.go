package testing

import (
	"errors"
	"testing"
	"time"

	"github.com/go-drift/lattice/pkg/accessibility"
	"github.com/go-drift/lattice/pkg/animation"
	"github.com/go-drift/lattice/pkg/engine"
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/scene"
)

const (
	// DefaultTestWidth is the default logical width of the test window.
	DefaultTestWidth = 800
	// DefaultTestHeight is the default logical height of the test window.
	DefaultTestHeight = 600
	// FrameInterval is how far PumpAndSettle advances the clock per tick.
	FrameInterval = 16 * time.Millisecond
)

// ErrSettleTimeout is returned when PumpAndSettle exceeds its timeout.
var ErrSettleTimeout = errors.New("PumpAndSettle timed out: engine did not settle")

// Tester runs an engine without a window. Renderer and Exporter in the
// options are wrapped so every frame and snapshot is also recorded here.
type Tester struct {
	t         testing.TB
	engine    *engine.Engine
	clock     *FakeClock
	prevClock animation.Clock
	frames    []*engine.PaintFrame
	snapshots []accessibility.Snapshot
	last      engine.TickResult
}

// New creates a tester and registers cleanup with t. The animation clock
// is replaced by a FakeClock until the test ends.
func New(t testing.TB, opts engine.Options) *Tester {
	t.Helper()
	tester := &Tester{t: t, clock: NewFakeClock()}
	if opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		opts.Viewport = graphics.Size{Width: DefaultTestWidth, Height: DefaultTestHeight}
	}
	renderer := opts.Renderer
	opts.Renderer = engine.RendererFunc(func(frame *engine.PaintFrame) {
		tester.frames = append(tester.frames, frame)
		if renderer != nil {
			renderer.Paint(frame)
		}
	})
	exporter := opts.Exporter
	opts.Exporter = accessibility.ExporterFunc(func(s accessibility.Snapshot) {
		tester.snapshots = append(tester.snapshots, s)
		if exporter != nil {
			exporter.Export(s)
		}
	})
	tester.prevClock = animation.SetClock(tester.clock)
	tester.engine = engine.New(opts)
	t.Cleanup(tester.Cleanup)
	return tester
}

// Cleanup restores the animation clock. New registers it with the test.
func (t *Tester) Cleanup() {
	if t.prevClock != nil {
		animation.SetClock(t.prevClock)
		t.prevClock = nil
	}
}

// Engine returns the engine under test.
func (t *Tester) Engine() *engine.Engine {
	return t.engine
}

// Clock returns the fake clock driving transitions.
func (t *Tester) Clock() *FakeClock {
	return t.clock
}

// Root returns the window entity.
func (t *Tester) Root() entity.Entity {
	return t.engine.Root()
}

// SetSize resizes the logical window. The change applies on the next Pump.
func (t *Tester) SetSize(size graphics.Size) {
	t.engine.Resize(size)
}

// SetScale changes the user scale factor. The change applies on the next
// Pump.
func (t *Tester) SetScale(scale float64) {
	t.engine.SetScaleFactor(scale)
}

// LoadScene builds a YAML scene under the root and fails the test on error.
func (t *Tester) LoadScene(src string) *scene.Built {
	t.t.Helper()
	s, err := scene.Parse(t.t.Name(), []byte(src))
	if err != nil {
		t.t.Fatalf("parse scene: %v", err)
	}
	built, err := s.Build(t.engine, entity.Null)
	if err != nil {
		t.t.Fatalf("build scene: %v", err)
	}
	return built
}

// Pump runs one tick and fails the test if it errors.
func (t *Tester) Pump() engine.TickResult {
	t.t.Helper()
	res, err := t.engine.Tick()
	if err != nil {
		t.t.Fatalf("tick: %v", err)
	}
	t.last = res
	return res
}

// PumpAndSettle ticks until the engine needs no further frame, advancing
// the clock by FrameInterval between ticks. It returns ErrSettleTimeout if
// the engine is still busy after timeout of fake time.
func (t *Tester) PumpAndSettle(timeout time.Duration) error {
	t.t.Helper()
	var elapsed time.Duration
	for elapsed <= timeout {
		if res := t.Pump(); !res.NeedsFrame {
			return nil
		}
		t.clock.Advance(FrameInterval)
		elapsed += FrameInterval
	}
	return ErrSettleTimeout
}

// LastResult returns the result of the most recent Pump.
func (t *Tester) LastResult() engine.TickResult {
	return t.last
}

// Frames returns every frame painted so far, oldest first.
func (t *Tester) Frames() []*engine.PaintFrame {
	return t.frames
}

// LastFrame returns the most recent painted frame, or nil.
func (t *Tester) LastFrame() *engine.PaintFrame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

// ResetFrames forgets recorded frames and snapshots.
func (t *Tester) ResetFrames() {
	t.frames = nil
	t.snapshots = nil
}

// Snapshots returns every exported accessibility snapshot, oldest first.
func (t *Tester) Snapshots() []accessibility.Snapshot {
	return t.snapshots
}

// Find evaluates a finder against the current tree.
func (t *Tester) Find(finder Finder) FinderResult {
	return FinderResult{entities: finder.Evaluate(t.engine), finder: finder}
}

// Bounds returns the laid-out bounds of the first match, failing the test
// when there is none.
func (t *Tester) Bounds(finder Finder) graphics.Rect {
	t.t.Helper()
	e, err := t.Find(finder).Single()
	if err != nil {
		t.t.Fatalf("%v", err)
	}
	r, err := t.engine.Layout().Rect(e)
	if err != nil {
		t.t.Fatalf("%s: %v", finder.Description(), err)
	}
	return r
}
