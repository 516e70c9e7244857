package event

import (
	"math"
	"slices"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/focus"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

// HitTest returns the top-most entity containing p, or entity.Null.
// Candidates are visited in paint order: higher z-index paints later, and
// equal z-index paints in tree pre-order. The last painted candidate wins.
// Hidden and disabled entities and their subtrees are skipped, as are
// points outside a clipping ancestor.
func (d *Dispatcher) HitTest(p graphics.Offset) entity.Entity {
	root := d.entities.Root()
	if root.IsNull() || d.geometry == nil {
		return entity.Null
	}
	best := entity.Null
	bestZ := math.Inf(-1)

	var visit func(e entity.Entity, clip *graphics.Rect)
	visit = func(e entity.Entity, clip *graphics.Rect) {
		flags, _ := d.entities.Flags(e)
		if flags&(entity.Hidden|entity.Disabled) != 0 {
			return
		}
		r, ok := d.geometry.Bounds(e)
		if !ok {
			return
		}
		c, _ := d.styles.Computed(e)
		inClip := clip == nil || clip.Contains(p)
		if inClip && c.Visible() && r.Contains(p) {
			if z := c.Number(style.ZIndex); z >= bestZ {
				best, bestZ = e, z
			}
		}
		next := clip
		if c.Keyword(style.Overflow) != "visible" {
			nr := r
			if clip != nil {
				nr = clip.Intersect(r)
			}
			next = &nr
		}
		kids, _ := d.entities.Children(e)
		for _, k := range kids {
			visit(k, next)
		}
	}
	visit(root, nil)
	return best
}

// Handle routes a raw input event: pointer events go to the hit-tested
// entity with hover, press and click bookkeeping; keyboard and text go to
// the focused entity, or the root when nothing is focused; window events
// go to the root.
func (d *Dispatcher) Handle(ev *Event) error {
	switch ev.Kind {
	case PointerMove:
		target := d.HitTest(ev.Position)
		d.updateHover(target)
		return d.dispatchTo(ev, target)
	case PointerLeave:
		d.updateHover(entity.Null)
		return nil
	case PointerDown:
		target := d.HitTest(ev.Position)
		d.updateHover(target)
		if target.IsNull() {
			return nil
		}
		d.release()
		d.pressed = target
		_ = d.entities.SetFlags(target, entity.Active, true)
		d.focusFrom(target)
		return d.Dispatch(ev, target)
	case PointerUp:
		target := d.HitTest(ev.Position)
		pressed := d.release()
		if err := d.dispatchTo(ev, target); err != nil {
			return err
		}
		if d.entities.Alive(pressed) && (target == pressed || d.entities.IsAncestor(pressed, target)) {
			click := ev.Clone()
			click.Kind = Click
			return d.Dispatch(click, pressed)
		}
		return nil
	case Scroll:
		return d.dispatchTo(ev, d.HitTest(ev.Position))
	case KeyDown, KeyUp, TextInput:
		target := d.focus.Focused()
		if target.IsNull() {
			target = d.entities.Root()
		}
		if err := d.dispatchTo(ev, target); err != nil {
			return err
		}
		if ev.Kind == KeyDown && !ev.Stopped() {
			d.keyDefault(ev)
		}
		return nil
	default:
		return d.dispatchTo(ev, d.entities.Root())
	}
}

func (d *Dispatcher) dispatchTo(ev *Event, target entity.Entity) error {
	if target.IsNull() {
		return nil
	}
	return d.Dispatch(ev, target)
}

// release clears the pressed entity and returns it.
func (d *Dispatcher) release() entity.Entity {
	pressed := d.pressed
	d.pressed = entity.Null
	if d.entities.Alive(pressed) {
		_ = d.entities.SetFlags(pressed, entity.Active, false)
	}
	return pressed
}

// focusFrom focuses the nearest focusable entity at or above e.
func (d *Dispatcher) focusFrom(e entity.Entity) {
	for p := e; !p.IsNull(); p, _ = d.entities.Parent(p) {
		if d.focus.CanFocus(p) {
			_, _ = d.focus.Focus(p)
			return
		}
	}
}

func (d *Dispatcher) keyDefault(ev *Event) {
	switch ev.Key {
	case KeyTab:
		if ev.Modifiers&ModShift != 0 {
			d.focus.Move(-1)
		} else {
			d.focus.Move(1)
		}
	case KeyArrowUp, KeyArrowDown, KeyArrowLeft, KeyArrowRight:
		if d.DirectionalFocus {
			d.focus.MoveInDirection(arrowDirection(ev.Key))
		}
	}
}

func arrowDirection(key string) focus.Direction {
	switch key {
	case KeyArrowUp:
		return focus.Up
	case KeyArrowDown:
		return focus.Down
	case KeyArrowLeft:
		return focus.Left
	default:
		return focus.Right
	}
}

// Hovered returns the hovered entity, or entity.Null.
func (d *Dispatcher) Hovered() entity.Entity {
	for _, e := range d.hovered {
		if d.entities.Alive(e) {
			return e
		}
	}
	return entity.Null
}

// updateHover moves the hover chain to target and its ancestors. Entities
// leaving the chain get PointerLeave innermost first; entities joining it
// get PointerEnter outermost first.
func (d *Dispatcher) updateHover(target entity.Entity) {
	var chain []entity.Entity
	if d.entities.Alive(target) {
		anc, _ := d.entities.Ancestors(target)
		chain = append([]entity.Entity{target}, anc...)
	}
	old := d.hovered
	d.hovered = chain

	for _, e := range old {
		if !d.entities.Alive(e) || slices.Contains(chain, e) {
			continue
		}
		_ = d.entities.SetFlags(e, entity.Hovered, false)
		d.notify(e, &Event{Kind: PointerLeave})
	}
	for i := len(chain) - 1; i >= 0; i-- {
		e := chain[i]
		if slices.Contains(old, e) {
			continue
		}
		_ = d.entities.SetFlags(e, entity.Hovered, true)
		d.notify(e, &Event{Kind: PointerEnter})
	}
}
