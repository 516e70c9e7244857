package layout

import (
	"fmt"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

// Result summarizes one Relayout pass.
type Result struct {
	// Roots are the layout roots that were solved successfully.
	Roots []entity.Entity
	// Changed lists entities whose rectangle moved, resized, appeared or
	// disappeared, in pre-order. Each was marked redraw-dirty.
	Changed []entity.Entity
	// Failed lists layout roots whose solve failed. They keep their last
	// good geometry and stay layout-dirty for a retry next tick.
	Failed []entity.Entity
}

// Bridge owns the layout nodes and solved geometry of an entity tree. It
// belongs to the scheduler goroutine, and its Engine is never called from
// anywhere else.
type Bridge struct {
	entities *entity.Store
	styles   *style.Store
	engine   Engine
	measurer Measurer

	nodes    map[entity.Entity]*Node
	geometry map[entity.Entity]graphics.Rect
	viewport graphics.Size
	queue    *rootQueue
}

// NewBridge creates a bridge. A nil engine selects FlexEngine.
func NewBridge(entities *entity.Store, styles *style.Store, engine Engine) *Bridge {
	if engine == nil {
		engine = NewFlexEngine()
	}
	b := &Bridge{
		entities: entities,
		styles:   styles,
		engine:   engine,
		measurer: NewFaceMeasurer(nil),
		nodes:    make(map[entity.Entity]*Node),
		geometry: make(map[entity.Entity]graphics.Rect),
		queue:    newRootQueue(entities),
	}
	entities.OnRemove(func(removed []entity.Entity) {
		for _, e := range removed {
			delete(b.nodes, e)
			delete(b.geometry, e)
		}
	})
	return b
}

// SetMeasurer replaces the text measurer.
func (b *Bridge) SetMeasurer(m Measurer) {
	if m == nil {
		m = NewFaceMeasurer(nil)
	}
	b.measurer = m
}

// SetViewport sets the logical size the tree root is solved into. A change
// marks the root layout-dirty.
func (b *Bridge) SetViewport(size graphics.Size) {
	if size == b.viewport {
		return
	}
	b.viewport = size
	if root := b.entities.Root(); !root.IsNull() {
		_ = b.entities.MarkDirty(root, entity.DirtyLayout)
	}
}

// Viewport returns the current viewport size.
func (b *Bridge) Viewport() graphics.Size {
	return b.viewport
}

// Sync rebuilds the layout node of every live entity in dirty from its
// computed style.
func (b *Bridge) Sync(dirty []entity.Entity) {
	for _, e := range dirty {
		if b.entities.Alive(e) {
			b.sync(e)
		}
	}
}

func (b *Bridge) sync(e entity.Entity) *Node {
	c, err := b.styles.Computed(e)
	if err != nil {
		return nil
	}
	n := b.nodes[e]
	if n == nil {
		n = &Node{Entity: e}
		b.nodes[e] = n
	}
	n.Box = BoxFromStyle(c)
	n.Measure = nil
	if text := c.Text(style.Content); text != "" {
		size := c.Length(style.FontSize).Resolve(16, 16)
		family := c.Text(style.FontFamily)
		m := b.measurer
		n.Measure = func(maxWidth float64) graphics.Size {
			return m.Measure(text, size, family, maxWidth)
		}
	}
	return n
}

func (b *Bridge) node(e entity.Entity) *Node {
	if n := b.nodes[e]; n != nil {
		return n
	}
	return b.sync(e)
}

// IsLayoutRoot reports whether e bounds a re-solve: the tree root, or an
// entity with a fixed width and height.
func (b *Bridge) IsLayoutRoot(e entity.Entity) bool {
	if !b.entities.Alive(e) {
		return false
	}
	if e == b.entities.Root() {
		return true
	}
	n := b.node(e)
	return n != nil && !n.Box.Hidden && n.Box.FixedSize()
}

// LayoutRootOf returns the layout root whose solve covers a change inside
// e's subtree that leaves e's own box alone: the nearest proper ancestor
// that is a layout root and already has geometry, or the tree root.
func (b *Bridge) LayoutRootOf(e entity.Entity) entity.Entity {
	root := b.entities.Root()
	if e == root {
		return root
	}
	p, err := b.entities.Parent(e)
	for err == nil && !p.IsNull() && p != root {
		if _, solved := b.geometry[p]; solved && b.IsLayoutRoot(p) {
			return p
		}
		p, err = b.entities.Parent(p)
	}
	return root
}

// Relayout syncs the dirty entities, schedules their layout roots and
// solves each distinct root once. A solved layout root whose own box did
// not change is its own root, so inserting into or removing from a fixed
// size container re-solves only that container.
func (b *Bridge) Relayout(dirty []entity.Entity) Result {
	for _, e := range dirty {
		if !b.entities.Alive(e) {
			continue
		}
		var old *Box
		if n := b.nodes[e]; n != nil {
			box := n.Box
			old = &box
		}
		b.sync(e)
		b.queue.schedule(b.rootFor(e, old))
	}
	if !b.queue.pending() {
		return Result{}
	}
	var res Result
	for _, root := range b.queue.flush() {
		changed, err := b.solve(root)
		if err != nil {
			res.Failed = append(res.Failed, root)
			continue
		}
		res.Roots = append(res.Roots, root)
		res.Changed = append(res.Changed, changed...)
	}
	b.entities.SortPreOrder(res.Changed)
	return res
}

// rootFor picks the root to schedule for a dirty e whose box before this
// pass was old, or nil when e had no node.
func (b *Bridge) rootFor(e entity.Entity, old *Box) entity.Entity {
	if old != nil && e != b.entities.Root() {
		if _, solved := b.geometry[e]; solved && *old == b.nodes[e].Box && b.IsLayoutRoot(e) {
			return e
		}
	}
	return b.LayoutRootOf(e)
}

// Solve re-solves the subtree of root immediately.
func (b *Bridge) Solve(root entity.Entity) error {
	if !b.entities.Alive(root) {
		return &errors.StaleEntityError{Op: "layout.Bridge.Solve", Entity: root.String()}
	}
	_, err := b.solve(root)
	return err
}

func (b *Bridge) solve(root entity.Entity) (changed []entity.Entity, err error) {
	bounds := graphics.RectFromLTWH(0, 0, b.viewport.Width, b.viewport.Height)
	if root != b.entities.Root() {
		r, ok := b.geometry[root]
		if !ok {
			return b.solve(b.entities.Root())
		}
		bounds = r
	}

	tree := b.build(root)
	geom, err := b.callEngine(tree, bounds)
	if err != nil {
		errors.Report(&errors.LatticeError{
			Op:     "layout.Bridge.Solve",
			Kind:   errors.KindLayout,
			Entity: root.String(),
			Err:    &errors.LayoutSolveError{Root: root.String(), Err: err},
		})
		_ = b.entities.MarkDirty(root, entity.DirtyLayout)
		return nil, err
	}

	_ = b.entities.Walk(root, func(e entity.Entity) bool {
		r, ok := geom[e]
		old, had := b.geometry[e]
		switch {
		case ok && (!had || !old.Equal(r)):
			b.geometry[e] = r
		case !ok && had:
			delete(b.geometry, e)
		default:
			return true
		}
		_ = b.entities.MarkDirty(e, entity.DirtyRedraw)
		changed = append(changed, e)
		return true
	})
	return changed, nil
}

// callEngine shields the bridge from engine panics.
func (b *Bridge) callEngine(tree *Node, bounds graphics.Rect) (g Geometry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("layout engine panic: %v", r)
		}
	}()
	return b.engine.Solve(tree, bounds)
}

// build assembles the node tree under e, leaving out display: none subtrees.
func (b *Bridge) build(e entity.Entity) *Node {
	n := b.node(e)
	n.Children = n.Children[:0]
	kids, _ := b.entities.Children(e)
	for _, c := range kids {
		cn := b.node(c)
		if cn == nil || cn.Box.Hidden {
			continue
		}
		n.Children = append(n.Children, b.build(c))
	}
	return n
}

// Bounds returns the last solved rectangle of e. It is the lookup used by
// hit testing and painting while walking live entities; callers holding a
// handle from elsewhere should use Rect.
func (b *Bridge) Bounds(e entity.Entity) (graphics.Rect, bool) {
	if !b.entities.Alive(e) {
		return graphics.Rect{}, false
	}
	r, ok := b.geometry[e]
	return r, ok
}

// Rect returns the last solved rectangle of e. A removed entity fails with
// a StaleEntityError; a live one without geometry yet, or inside a
// display: none subtree, fails with ErrNotSolved.
func (b *Bridge) Rect(e entity.Entity) (graphics.Rect, error) {
	if !b.entities.Alive(e) {
		return graphics.Rect{}, &errors.StaleEntityError{Op: "layout.Bridge.Rect", Entity: e.String()}
	}
	r, ok := b.geometry[e]
	if !ok {
		return graphics.Rect{}, fmt.Errorf("layout.Bridge.Rect %s: %w", e, ErrNotSolved)
	}
	return r, nil
}

// Node returns the cached layout node of e, if any.
func (b *Bridge) Node(e entity.Entity) *Node {
	return b.nodes[e]
}
