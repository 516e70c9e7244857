package engine

import (
	"cmp"
	"slices"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

// Renderer consumes paint frames. Paint runs on the scheduler goroutine;
// the frame is not reused after Paint returns, so it may be retained.
type Renderer interface {
	Paint(frame *PaintFrame)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(frame *PaintFrame)

// Paint implements Renderer.
func (f RendererFunc) Paint(frame *PaintFrame) { f(frame) }

// PaintCommand draws one entity. Bounds and Clip are logical; multiply by
// PaintFrame.Scale for device pixels.
type PaintCommand struct {
	Entity  entity.Entity
	Bounds  graphics.Rect
	Clip    graphics.Rect
	Style   *style.Computed
	Z       float64
	Order   int
	Content string
}

// PaintFrame is the display list of one tick, back to front.
type PaintFrame struct {
	Tick     uint64
	Full     bool
	Scale    float64
	Viewport graphics.Size
	// Dirty lists the entities whose appearance changed, in pre-order.
	Dirty []entity.Entity
	// Damage is the union of the dirty entities' bounds, or the viewport
	// when Full is set.
	Damage   graphics.Rect
	Commands []PaintCommand
}

// DeviceBounds returns c's bounds scaled for the frame.
func (f *PaintFrame) DeviceBounds(c PaintCommand) graphics.Rect {
	return c.Bounds.Scale(f.Scale)
}

// Find returns the command drawing e.
func (f *PaintFrame) Find(e entity.Entity) (PaintCommand, bool) {
	for _, c := range f.Commands {
		if c.Entity == e {
			return c, true
		}
	}
	return PaintCommand{}, false
}

// buildFrame walks the tree and emits a command for every visible entity
// with geometry. display: none and the Hidden flag drop a subtree;
// visibility: hidden drops only the entity itself. Commands are ordered by
// z-index, then tree pre-order.
func (e *Engine) buildFrame(dirty []entity.Entity, full bool) *PaintFrame {
	vp := e.layout.Viewport()
	frame := &PaintFrame{
		Tick:     e.tick,
		Full:     full,
		Scale:    e.scale,
		Viewport: vp,
		Dirty:    dirty,
	}
	viewport := graphics.RectFromLTWH(0, 0, vp.Width, vp.Height)
	if full {
		frame.Damage = viewport
	}

	root := e.entities.Root()
	if root.IsNull() {
		return frame
	}
	order := 0
	var visit func(en entity.Entity, clip graphics.Rect)
	visit = func(en entity.Entity, clip graphics.Rect) {
		flags, _ := e.entities.Flags(en)
		if flags&entity.Hidden != 0 {
			return
		}
		r, ok := e.layout.Bounds(en)
		if !ok {
			return
		}
		c, _ := e.styles.Computed(en)
		if c.Keyword(style.Display) == "none" {
			return
		}
		if c.Visible() && !clip.Intersect(r).IsEmpty() {
			frame.Commands = append(frame.Commands, PaintCommand{
				Entity:  en,
				Bounds:  r,
				Clip:    clip,
				Style:   c,
				Z:       c.Number(style.ZIndex),
				Order:   order,
				Content: c.Text(style.Content),
			})
		}
		order++
		next := clip
		if c.Keyword(style.Overflow) != "visible" {
			next = clip.Intersect(r)
		}
		kids, _ := e.entities.Children(en)
		for _, k := range kids {
			visit(k, next)
		}
	}
	visit(root, viewport)

	slices.SortStableFunc(frame.Commands, func(a, b PaintCommand) int {
		if a.Z != b.Z {
			return cmp.Compare(a.Z, b.Z)
		}
		return a.Order - b.Order
	})

	if !full {
		for _, d := range dirty {
			if r, ok := e.layout.Bounds(d); ok {
				if frame.Damage.IsEmpty() {
					frame.Damage = r
				} else {
					frame.Damage = frame.Damage.Union(r)
				}
			}
		}
	}
	return frame
}
