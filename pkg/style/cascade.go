package style

import (
	"cmp"
	"container/heap"
	"maps"
	"slices"
	"time"

	"github.com/go-drift/lattice/pkg/animation"
	"github.com/go-drift/lattice/pkg/entity"
)

// Change records what a resolve pass changed on one entity.
type Change struct {
	Entity entity.Entity
	// Properties lists the properties whose displayed value changed, in
	// name order. It is empty on an entity's first resolve.
	Properties []*Property
	Affects    Affects
	// First is set on the entity's first resolve.
	First bool
}

// preorderQueue pops entities in tree pre-order so parents resolve before
// the children that inherit from them.
type preorderQueue struct {
	entities *entity.Store
	items    []entity.Entity
}

func (q *preorderQueue) Len() int { return len(q.items) }
func (q *preorderQueue) Less(i, j int) bool {
	return q.entities.OrderOf(q.items[i]) < q.entities.OrderOf(q.items[j])
}
func (q *preorderQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *preorderQueue) Push(x any)    { q.items = append(q.items, x.(entity.Entity)) }
func (q *preorderQueue) Pop() any {
	n := len(q.items)
	e := q.items[n-1]
	q.items = q.items[:n-1]
	return e
}

// Resolve recomputes the style of every entity in dirty, parents first.
// When an entity's inherited values change its children are resolved in the
// same pass, as are children that take a changed property through the
// inherit keyword. Changed layout properties mark the entity layout-dirty, changed
// paint properties redraw-dirty. Stale handles are skipped.
func (s *Store) Resolve(dirty []entity.Entity) []Change {
	sheet := s.sheet.Load()
	now := animation.Now()
	q := &preorderQueue{entities: s.entities}
	queued := make(map[entity.Entity]bool, len(dirty))
	for _, e := range dirty {
		if s.entities.Alive(e) && !queued[e] {
			queued[e] = true
			q.items = append(q.items, e)
		}
	}
	heap.Init(q)

	var changes []Change
	for q.Len() > 0 {
		e := heap.Pop(q).(entity.Entity)
		s.entities.ClearDirty(e, entity.DirtyStyle)
		ch, inheritedChanged := s.resolveOne(sheet, e, now)
		if ch == nil {
			continue
		}
		changes = append(changes, *ch)
		var bits entity.Dirty
		if ch.Affects&AffectsLayout != 0 {
			bits |= entity.DirtyLayout
		}
		if ch.Affects&AffectsPaint != 0 {
			bits |= entity.DirtyRedraw
		}
		_ = s.entities.MarkDirty(e, bits)
		kids, _ := s.entities.Children(e)
		for _, c := range kids {
			if queued[c] || !(inheritedChanged || s.inheritsAny(c, ch.Properties)) {
				continue
			}
			queued[c] = true
			heap.Push(q, c)
		}
	}
	return changes
}

// inheritsAny reports whether e takes any of props from its parent through
// an explicit inherit declaration.
func (s *Store) inheritsAny(e entity.Entity, props []*Property) bool {
	el := s.elems[e]
	if el == nil {
		return false
	}
	for _, p := range props {
		if el.inherits[p] {
			return true
		}
	}
	return false
}

type candidate struct {
	decl  *Declaration
	spec  Specificity
	order int
}

func (s *Store) resolveOne(sheet *Sheet, e entity.Entity, now time.Time) (*Change, bool) {
	el := s.elems[e]
	if el == nil {
		el = &element{}
		s.elems[e] = el
	}

	var cands []candidate
	for _, r := range sheet.candidates(&el.identity) {
		if !r.Selector.matches(s, e) {
			continue
		}
		for i := range r.Declarations {
			cands = append(cands, candidate{decl: &r.Declarations[i], spec: r.Selector.spec, order: r.Order})
		}
	}
	// Ascending by (importance, specificity, order): the last entry for a
	// property wins.
	slices.SortStableFunc(cands, func(a, b candidate) int {
		if a.decl.Important != b.decl.Important {
			if a.decl.Important {
				return 1
			}
			return -1
		}
		if c := cmp.Compare(a.spec, b.spec); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})
	winners := make(map[*Property]*Declaration, len(cands))
	for _, c := range cands {
		winners[c.decl.Property] = c.decl
	}

	var parent *Computed
	if p := s.parentOf(e); !p.IsNull() {
		if pel := s.elems[p]; pel != nil {
			parent = pel.computed
		}
	}

	props := Properties()
	base := make(map[*Property]Value, len(props))
	inherits := make(map[*Property]bool)
	for _, p := range props {
		d := winners[p]
		inline, hasInline := el.inline[p]
		var v Value
		switch {
		case hasInline && (d == nil || !d.Important):
			v = inline
		case d != nil && d.Inherit:
			v = parent.Get(p)
			inherits[p] = true
		case d != nil && d.Initial:
			v = p.Default
		case d != nil:
			v = d.Value
		case p.Inherited && parent != nil:
			v = parent.Get(p)
		default:
			v = p.Default
		}
		base[p] = v
	}

	s.startTransitions(el, base, now)

	values := maps.Clone(base)
	for p, a := range el.anims {
		t, done := animation.Progress(a.start, now, a.delay, a.duration, a.curve)
		if done {
			delete(el.anims, p)
			continue
		}
		to := base[p]
		if a.explicit {
			to = a.to
		}
		values[p] = p.Interpolate(a.from, to, t)
	}
	if len(el.anims) > 0 {
		s.animating[e] = struct{}{}
	} else {
		delete(s.animating, e)
	}
	el.base = base
	el.inherits = inherits

	if el.computed == nil {
		el.computed = &Computed{values: values}
		return &Change{Entity: e, Affects: AffectsLayout | AffectsPaint, First: true}, false
	}

	var ch *Change
	inheritedChanged := false
	for _, p := range props {
		if Equal(el.computed.Get(p), values[p]) {
			continue
		}
		if ch == nil {
			ch = &Change{Entity: e}
		}
		ch.Properties = append(ch.Properties, p)
		ch.Affects |= p.Affects
		if p.Inherited {
			inheritedChanged = true
		}
	}
	if ch != nil {
		el.computed = &Computed{values: values}
	}
	return ch, inheritedChanged
}

// startTransitions begins a transition for every animatable property whose
// cascade value moved and that the entity's transition list covers. A
// change without a covering transition cancels a running one.
func (s *Store) startTransitions(el *element, base map[*Property]Value, now time.Time) {
	if el.base == nil {
		return
	}
	ts, _ := base[TransitionProp].(Transitions)
	for p, v := range base {
		if Equal(el.base[p], v) || !p.Animatable() {
			continue
		}
		t, ok := ts.For(p.Name)
		if !ok || t.Duration <= 0 {
			if a := el.anims[p]; a != nil && !a.explicit {
				delete(el.anims, p)
			}
			continue
		}
		if el.anims == nil {
			el.anims = make(map[*Property]*anim)
		}
		el.anims[p] = &anim{
			from:     el.computed.Get(p),
			to:       v,
			start:    now,
			delay:    t.Delay,
			duration: t.Duration,
			curve:    t.Curve,
		}
	}
}
