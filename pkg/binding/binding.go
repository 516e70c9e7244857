package binding

import (
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
)

// Effect tells the registry what applying a value changed on the bound
// entity. Effects combine with |.
type Effect uint8

const (
	// Restyle marks the entity style-dirty.
	Restyle Effect = 1 << iota
	// Relayout marks the entity layout-dirty.
	Relayout
	// Redraw marks the entity redraw-dirty.
	Redraw
	// Rebuild is used by callbacks that changed the entity's children. It
	// marks every dirty bit.
	Rebuild

	// None applies the value without touching the entity.
	None Effect = 0
)

// State is the per-tick delivery state of a binding.
type State uint8

const (
	// Idle bindings have nothing to deliver.
	Idle State = iota
	// PendingNotify bindings are queued for the current flush.
	PendingNotify
	// Applied bindings ran their callback this tick and dirtied their
	// entity. EndTick returns them to Idle.
	Applied
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingNotify:
		return "pending"
	case Applied:
		return "applied"
	default:
		return "unknown"
	}
}

// source is the untyped side of a Source seen by the registry.
type source interface {
	detach(b *Binding)
	dirty() bool
	bindings() []*Binding
	clearDirty()
}

// Binding subscribes one entity to one source. It is created by Bind and
// destroyed with its entity, its source, or Close.
type Binding struct {
	reg    *Registry
	entity entity.Entity
	src    source
	state  State
	dead   bool
	force  bool

	// prepare snapshots the source value and returns the delivery for it.
	// The delivery reports false when the equality check suppressed it.
	prepare func(force bool) func() (Effect, bool)
}

// Entity returns the bound entity.
func (b *Binding) Entity() entity.Entity {
	return b.entity
}

// State returns the delivery state.
func (b *Binding) State() State {
	return b.state
}

// Alive reports whether the binding can still receive values.
func (b *Binding) Alive() bool {
	return !b.dead
}

// Refresh queues a redelivery of the current source value on the next
// flush, bypassing the equality check. It is a no-op on a dead binding.
func (b *Binding) Refresh() {
	if b.dead {
		return
	}
	b.force = true
	b.reg.queueBinding(b)
}

// Close destroys the binding. Closing twice is a no-op.
func (b *Binding) Close() {
	b.reg.destroy(b)
}

// Bind subscribes e to src. apply runs on the scheduler goroutine with the
// latest value whenever src changed since the last delivery and eq reports
// the value differs from the one last applied. A nil eq delivers every
// notification. The first delivery happens on the next flush.
//
// Binding to a closed source yields a dead binding that never fires.
func Bind[T any](r *Registry, e entity.Entity, src *Source[T], eq func(a, b T) bool, apply func(e entity.Entity, v T) Effect) (*Binding, error) {
	if !r.entities.Alive(e) {
		return nil, &errors.StaleEntityError{Op: "binding.Bind", Entity: e.String()}
	}
	b := &Binding{reg: r, entity: e, src: src}
	if src.closed {
		b.dead = true
		return b, nil
	}

	var last T
	delivered := false
	b.prepare = func(force bool) func() (Effect, bool) {
		v := src.value
		return func() (Effect, bool) {
			if !force && delivered && eq != nil && eq(last, v) {
				return None, false
			}
			last, delivered = v, true
			return apply(e, v), true
		}
	}

	src.subs = append(src.subs, b)
	r.byEntity[e] = append(r.byEntity[e], b)
	r.queueBinding(b)
	return b, nil
}

// BindComparable is Bind with == as the equality check.
func BindComparable[T comparable](r *Registry, e entity.Entity, src *Source[T], apply func(e entity.Entity, v T) Effect) (*Binding, error) {
	return Bind(r, e, src, func(a, b T) bool { return a == b }, apply)
}
