// Package binding links observable application values to entities.
//
// A Source holds a value. Bind subscribes an entity to it with an equality
// check and an apply callback. Writes only record the new value; the
// scheduler calls Flush once per tick, which delivers the latest value of
// every written source to each of its live bindings, parents before
// children, at most once. Writes made by callbacks during a flush are
// delivered by the next one.
//
// Bindings die with their entity: the registry listens for removals on the
// entity store and prunes them in the same call.
package binding

import (
	"slices"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
)

// Registry tracks sources, bindings and pending deliveries for one entity
// tree. It is owned by the scheduler goroutine.
type Registry struct {
	entities *entity.Store
	byEntity map[entity.Entity][]*Binding

	sources []source
	queued  []*Binding
	applied []*Binding

	flushing bool
}

// Stats summarizes one Flush.
type Stats struct {
	// Sources is the number of written sources drained.
	Sources int
	// Delivered counts callbacks that ran and applied a value.
	Delivered int
	// Unchanged counts deliveries suppressed by the equality check.
	Unchanged int
	// Dropped counts deliveries whose binding or entity died first.
	Dropped int
	// Dirtied lists the entities marked dirty by effects, in pre-order.
	Dirtied []entity.Entity
}

// NewRegistry creates a registry bound to entities.
func NewRegistry(entities *entity.Store) *Registry {
	r := &Registry{
		entities: entities,
		byEntity: make(map[entity.Entity][]*Binding),
	}
	entities.OnRemove(r.pruneRemoved)
	return r
}

func (r *Registry) pruneRemoved(removed []entity.Entity) {
	for _, e := range removed {
		for _, b := range slices.Clone(r.byEntity[e]) {
			r.destroy(b)
		}
		delete(r.byEntity, e)
	}
}

func (r *Registry) destroy(b *Binding) {
	if b == nil || b.dead {
		return
	}
	b.dead = true
	b.state = Idle
	b.src.detach(b)
	list := slices.DeleteFunc(r.byEntity[b.entity], func(x *Binding) bool { return x == b })
	if len(list) == 0 {
		delete(r.byEntity, b.entity)
	} else {
		r.byEntity[b.entity] = list
	}
}

func (r *Registry) queueSource(s source) {
	r.sources = append(r.sources, s)
}

func (r *Registry) queueBinding(b *Binding) {
	b.state = PendingNotify
	r.queued = append(r.queued, b)
}

// Pending reports whether a Flush has anything to deliver.
func (r *Registry) Pending() bool {
	return len(r.sources) > 0 || len(r.queued) > 0
}

// Bindings returns the live bindings of e.
func (r *Registry) Bindings(e entity.Entity) []*Binding {
	return slices.Clone(r.byEntity[e])
}

// Len returns the number of live bindings.
func (r *Registry) Len() int {
	n := 0
	for _, list := range r.byEntity {
		n += len(list)
	}
	return n
}

type delivery struct {
	b   *Binding
	run func() (Effect, bool)
}

// Flush delivers every pending notification. Deliveries run in tree
// pre-order of the bound entities; each binding runs at most once. A
// nested call from inside a callback returns immediately.
func (r *Registry) Flush() Stats {
	var st Stats
	if r.flushing {
		return st
	}
	r.flushing = true
	defer func() { r.flushing = false }()

	sources, queued := r.sources, r.queued
	r.sources, r.queued = nil, nil

	var jobs []delivery
	seen := make(map[*Binding]bool)
	add := func(b *Binding) {
		if b.dead || seen[b] {
			return
		}
		seen[b] = true
		b.state = PendingNotify
		jobs = append(jobs, delivery{b: b, run: b.prepare(b.force)})
		b.force = false
	}
	for _, s := range sources {
		if !s.dirty() {
			continue
		}
		s.clearDirty()
		st.Sources++
		for _, b := range s.bindings() {
			add(b)
		}
	}
	for _, b := range queued {
		add(b)
	}

	slices.SortStableFunc(jobs, func(a, b delivery) int {
		return r.entities.OrderOf(a.b.entity) - r.entities.OrderOf(b.b.entity)
	})

	for _, j := range jobs {
		b := j.b
		if b.dead || !r.entities.Alive(b.entity) {
			b.state = Idle
			st.Dropped++
			continue
		}
		eff, applied := deliver(j.run)
		if !applied {
			b.state = Idle
			st.Unchanged++
			continue
		}
		b.state = Applied
		r.applied = append(r.applied, b)
		st.Delivered++
		if eff != None && r.mark(b.entity, eff) {
			st.Dirtied = append(st.Dirtied, b.entity)
		}
	}
	r.entities.SortPreOrder(st.Dirtied)
	st.Dirtied = slices.Compact(st.Dirtied)
	return st
}

// deliver runs one callback. A panic is reported and counts as unchanged.
func deliver(run func() (Effect, bool)) (eff Effect, applied bool) {
	defer errors.RecoverWithCallback("binding.Registry.Flush", func(any) {
		eff, applied = None, false
	})
	return run()
}

// mark applies an effect; it reports false when the entity died inside the
// callback.
func (r *Registry) mark(e entity.Entity, eff Effect) bool {
	var bits entity.Dirty
	if eff&Restyle != 0 {
		bits |= entity.DirtyStyle
	}
	if eff&Relayout != 0 {
		bits |= entity.DirtyLayout
	}
	if eff&Redraw != 0 {
		bits |= entity.DirtyRedraw
	}
	if eff&Rebuild != 0 {
		bits |= entity.DirtyAll
	}
	return r.entities.MarkDirty(e, bits) == nil
}

// EndTick returns Applied bindings to Idle.
func (r *Registry) EndTick() {
	for _, b := range r.applied {
		if b.state == Applied {
			b.state = Idle
		}
	}
	r.applied = r.applied[:0]
}
