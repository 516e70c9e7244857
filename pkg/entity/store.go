package entity

import (
	"iter"
	"math"
	"slices"

	"github.com/go-drift/lattice/pkg/errors"
)

type record struct {
	gen      uint32
	alive    bool
	parent   Entity
	children []Entity
	flags    Flags
	dirty    Dirty
	depth    int
	order    int
}

// Store is the entity arena and tree. It is not safe for concurrent use:
// the frame scheduler's goroutine owns it.
type Store struct {
	records []record
	free    []uint32
	retired int // slots whose generations are used up; never reissued
	root    Entity

	orderValid bool
	pending    []Entity // entities with at least one dirty bit, deduped via record.dirty

	removeHooks []func(removed []Entity)
	flagHooks   []func(e Entity, old, new Flags)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// OnRemove registers a hook that runs inside Remove, after the subtree has
// been destroyed, with every removed handle in pre-order. Caches keyed by
// entity release their entries here so nothing outlives its entity.
func (s *Store) OnRemove(hook func(removed []Entity)) {
	s.removeHooks = append(s.removeHooks, hook)
}

// OnFlagsChanged registers a hook that runs after an entity's flags change.
func (s *Store) OnFlagsChanged(hook func(e Entity, old, new Flags)) {
	s.flagHooks = append(s.flagHooks, hook)
}

func (s *Store) rec(e Entity) *record {
	if e.gen == 0 || int(e.index) >= len(s.records) {
		return nil
	}
	r := &s.records[e.index]
	if !r.alive || r.gen != e.gen {
		return nil
	}
	return r
}

func stale(op string, e Entity) error {
	return &errors.StaleEntityError{Op: op, Entity: e.String()}
}

// Alive reports whether e refers to a live entity.
func (s *Store) Alive(e Entity) bool {
	return s.rec(e) != nil
}

// Root returns the root entity, or Null when the tree is empty.
func (s *Store) Root() Entity {
	if !s.Alive(s.root) {
		return Null
	}
	return s.root
}

// Len returns the number of live entities.
func (s *Store) Len() int {
	return len(s.records) - len(s.free) - s.retired
}

func (s *Store) alloc() Entity {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		r := &s.records[idx]
		*r = record{gen: r.gen, alive: true}
		return Entity{index: idx, gen: r.gen}
	}
	s.records = append(s.records, record{gen: 1, alive: true})
	return Entity{index: uint32(len(s.records) - 1), gen: 1}
}

// CreateRoot creates the root entity. A tree has exactly one root.
func (s *Store) CreateRoot() (Entity, error) {
	if s.Alive(s.root) {
		return Null, errors.ErrRootExists
	}
	e := s.alloc()
	s.root = e
	s.orderValid = false
	s.markDirty(e, DirtyAll)
	return e, nil
}

// Create appends a new entity to parent's children.
func (s *Store) Create(parent Entity) (Entity, error) {
	p := s.rec(parent)
	if p == nil {
		return Null, stale("entity.Store.Create", parent)
	}
	depth := p.depth + 1
	e := s.alloc()
	// alloc may grow the slice; look the parent up again.
	p = &s.records[parent.index]
	p.children = append(p.children, e)
	r := &s.records[e.index]
	r.parent = parent
	r.depth = depth
	s.orderValid = false
	s.markDirty(e, DirtyAll)
	s.markDirty(parent, DirtyLayout|DirtyRedraw)
	return e, nil
}

// Remove detaches e from its parent and destroys its whole subtree. The
// returned slice lists every destroyed handle in pre-order. Removal hooks
// run before Remove returns.
func (s *Store) Remove(e Entity) ([]Entity, error) {
	r := s.rec(e)
	if r == nil {
		return nil, stale("entity.Store.Remove", e)
	}
	removed := s.collect(e, nil)

	if parent := r.parent; !parent.IsNull() {
		if p := s.rec(parent); p != nil {
			p.children = slices.DeleteFunc(p.children, func(c Entity) bool { return c == e })
			s.markDirty(parent, DirtyLayout|DirtyRedraw)
		}
	}
	if e == s.root {
		s.root = Null
	}

	for _, dead := range removed {
		dr := &s.records[dead.index]
		dr.alive = false
		dr.children = nil
		dr.parent = Null
		dr.dirty = 0
		dr.flags = 0
		if dr.gen == math.MaxUint32 {
			s.retired++
			continue
		}
		dr.gen++
		s.free = append(s.free, dead.index)
	}
	s.orderValid = false

	for _, hook := range s.removeHooks {
		hook(removed)
	}
	return removed, nil
}

func (s *Store) collect(e Entity, out []Entity) []Entity {
	out = append(out, e)
	for _, c := range s.records[e.index].children {
		out = s.collect(c, out)
	}
	return out
}

// Parent returns e's parent, or Null for the root.
func (s *Store) Parent(e Entity) (Entity, error) {
	r := s.rec(e)
	if r == nil {
		return Null, stale("entity.Store.Parent", e)
	}
	return r.parent, nil
}

// Children returns a copy of e's children in insertion order.
func (s *Store) Children(e Entity) ([]Entity, error) {
	r := s.rec(e)
	if r == nil {
		return nil, stale("entity.Store.Children", e)
	}
	return slices.Clone(r.children), nil
}

// EachChild returns a lazy sequence over e's children. The sequence can be
// ranged over any number of times; each pass reads the current child list,
// and yields nothing once e has been destroyed.
func (s *Store) EachChild(e Entity) (iter.Seq[Entity], error) {
	if s.rec(e) == nil {
		return nil, stale("entity.Store.EachChild", e)
	}
	return func(yield func(Entity) bool) {
		r := s.rec(e)
		if r == nil {
			return
		}
		for _, c := range r.children {
			if !yield(c) {
				return
			}
		}
	}, nil
}

// Depth returns the distance from the root (root is 0).
func (s *Store) Depth(e Entity) (int, error) {
	r := s.rec(e)
	if r == nil {
		return 0, stale("entity.Store.Depth", e)
	}
	return r.depth, nil
}

// Ancestors returns e's ancestors, nearest first.
func (s *Store) Ancestors(e Entity) ([]Entity, error) {
	r := s.rec(e)
	if r == nil {
		return nil, stale("entity.Store.Ancestors", e)
	}
	var out []Entity
	for p := r.parent; !p.IsNull(); p = s.records[p.index].parent {
		out = append(out, p)
	}
	return out, nil
}

// IsAncestor reports whether a is a proper ancestor of e.
func (s *Store) IsAncestor(a, e Entity) bool {
	r := s.rec(e)
	if r == nil || s.rec(a) == nil {
		return false
	}
	for p := r.parent; !p.IsNull(); p = s.records[p.index].parent {
		if p == a {
			return true
		}
	}
	return false
}

// Walk visits the subtree rooted at e in pre-order. Returning false from
// visit skips that entity's descendants.
func (s *Store) Walk(e Entity, visit func(Entity) bool) error {
	if s.rec(e) == nil {
		return stale("entity.Store.Walk", e)
	}
	s.walk(e, visit)
	return nil
}

func (s *Store) walk(e Entity, visit func(Entity) bool) {
	if !visit(e) {
		return
	}
	for _, c := range s.records[e.index].children {
		s.walk(c, visit)
	}
}

// PreOrder returns the subtree rooted at e in pre-order.
func (s *Store) PreOrder(e Entity) ([]Entity, error) {
	if s.rec(e) == nil {
		return nil, stale("entity.Store.PreOrder", e)
	}
	return s.collect(e, nil), nil
}

// OrderOf returns e's position in a pre-order walk of the whole tree. The
// numbering is rebuilt lazily after structural changes. Stale handles order
// last.
func (s *Store) OrderOf(e Entity) int {
	r := s.rec(e)
	if r == nil {
		return int(^uint(0) >> 1)
	}
	if !s.orderValid {
		s.renumber()
	}
	return r.order
}

func (s *Store) renumber() {
	n := 0
	if root := s.Root(); !root.IsNull() {
		s.walk(root, func(e Entity) bool {
			s.records[e.index].order = n
			n++
			return true
		})
	}
	s.orderValid = true
}

// SortPreOrder sorts entities into tree pre-order in place.
func (s *Store) SortPreOrder(es []Entity) {
	if !s.orderValid {
		s.renumber()
	}
	slices.SortStableFunc(es, func(a, b Entity) int {
		return s.OrderOf(a) - s.OrderOf(b)
	})
}

// Reparent moves e (and its subtree) under parent at index. A negative or
// out-of-range index appends. Moving an entity below itself fails with
// errors.ErrCycle and leaves the tree untouched.
func (s *Store) Reparent(e, parent Entity, index int) error {
	r := s.rec(e)
	if r == nil {
		return stale("entity.Store.Reparent", e)
	}
	np := s.rec(parent)
	if np == nil {
		return stale("entity.Store.Reparent", parent)
	}
	if e == s.root || e == parent || s.IsAncestor(e, parent) {
		return errors.ErrCycle
	}

	old := r.parent
	if op := s.rec(old); op != nil {
		op.children = slices.DeleteFunc(op.children, func(c Entity) bool { return c == e })
		s.markDirty(old, DirtyLayout|DirtyRedraw)
	}
	np = &s.records[parent.index]
	if index < 0 || index > len(np.children) {
		index = len(np.children)
	}
	np.children = slices.Insert(np.children, index, e)
	r.parent = parent

	base := np.depth + 1
	s.walk(e, func(d Entity) bool {
		rec := &s.records[d.index]
		if d == e {
			rec.depth = base
		} else {
			rec.depth = s.records[rec.parent.index].depth + 1
		}
		// Ancestor chain changed, so descendant selectors may match differently.
		s.markDirty(d, DirtyStyle|DirtyRedraw)
		return true
	})
	s.markDirty(e, DirtyLayout)
	s.markDirty(parent, DirtyLayout|DirtyRedraw)
	s.orderValid = false
	return nil
}

// Reorder moves e to index among its siblings.
func (s *Store) Reorder(e Entity, index int) error {
	r := s.rec(e)
	if r == nil {
		return stale("entity.Store.Reorder", e)
	}
	if r.parent.IsNull() {
		return nil
	}
	p := &s.records[r.parent.index]
	p.children = slices.DeleteFunc(p.children, func(c Entity) bool { return c == e })
	if index < 0 || index > len(p.children) {
		index = len(p.children)
	}
	p.children = slices.Insert(p.children, index, e)
	s.markDirty(r.parent, DirtyLayout|DirtyRedraw)
	s.orderValid = false
	return nil
}

// Flags returns e's flags.
func (s *Store) Flags(e Entity) (Flags, error) {
	r := s.rec(e)
	if r == nil {
		return 0, stale("entity.Store.Flags", e)
	}
	return r.flags, nil
}

// HasFlag reports whether e is live and has every bit in f set.
func (s *Store) HasFlag(e Entity, f Flags) bool {
	r := s.rec(e)
	return r != nil && r.flags&f == f
}

// SetFlags turns the bits in f on or off and notifies flag hooks when the
// value actually changed.
func (s *Store) SetFlags(e Entity, f Flags, on bool) error {
	r := s.rec(e)
	if r == nil {
		return stale("entity.Store.SetFlags", e)
	}
	old := r.flags
	if on {
		r.flags |= f
	} else {
		r.flags &^= f
	}
	if r.flags == old {
		return nil
	}
	updated := r.flags
	if (old^updated)&Hidden != 0 {
		s.markDirty(e, DirtyLayout|DirtyRedraw)
	}
	for _, hook := range s.flagHooks {
		hook(e, old, updated)
	}
	return nil
}
