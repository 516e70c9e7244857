package event

import (
	"slices"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
	"github.com/go-drift/lattice/pkg/focus"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

// Geometry supplies solved entity rectangles, usually a layout.Bridge.
type Geometry interface {
	Bounds(e entity.Entity) (graphics.Rect, bool)
}

type pending struct {
	ev     *Event
	target entity.Entity
	direct bool // target phase only
}

// Dispatcher routes events to entity handlers.
type Dispatcher struct {
	entities *entity.Store
	styles   *style.Store
	geometry Geometry
	focus    *focus.Manager

	handlers map[entity.Entity][]Handler
	hovered  []entity.Entity // nearest first
	pressed  entity.Entity

	dispatching bool
	queue       []pending

	// DirectionalFocus lets arrow keys move focus by geometry when the
	// focused entity does not stop them.
	DirectionalFocus bool
}

// NewDispatcher creates a dispatcher. Hit testing reads geometry and the
// computed z-index, overflow and visibility from styles.
func NewDispatcher(entities *entity.Store, styles *style.Store, geometry Geometry) *Dispatcher {
	d := &Dispatcher{
		entities: entities,
		styles:   styles,
		geometry: geometry,
		focus:    focus.NewManager(entities, geometry),
		handlers: make(map[entity.Entity][]Handler),
	}
	d.focus.OnChange = d.focusChanged
	entities.OnRemove(func(removed []entity.Entity) {
		for _, e := range removed {
			delete(d.handlers, e)
		}
	})
	return d
}

// Focus returns the focus manager.
func (d *Dispatcher) Focus() *focus.Manager {
	return d.focus
}

// AddHandler registers h on e. Handlers run in registration order.
func (d *Dispatcher) AddHandler(e entity.Entity, h Handler) error {
	if !d.entities.Alive(e) {
		return &errors.StaleEntityError{Op: "event.Dispatcher.AddHandler", Entity: e.String()}
	}
	d.handlers[e] = append(d.handlers[e], h)
	return nil
}

// RemoveHandler unregisters h from e. Other handlers of e keep their
// order.
func (d *Dispatcher) RemoveHandler(e entity.Entity, h Handler) error {
	if !d.entities.Alive(e) {
		return &errors.StaleEntityError{Op: "event.Dispatcher.RemoveHandler", Entity: e.String()}
	}
	list := slices.DeleteFunc(d.handlers[e], func(x Handler) bool { return x == h })
	if len(list) == 0 {
		delete(d.handlers, e)
		return nil
	}
	d.handlers[e] = list
	return nil
}

// RemoveHandlers drops every handler of e.
func (d *Dispatcher) RemoveHandlers(e entity.Entity) error {
	if !d.entities.Alive(e) {
		return &errors.StaleEntityError{Op: "event.Dispatcher.RemoveHandlers", Entity: e.String()}
	}
	delete(d.handlers, e)
	return nil
}

// Dispatch delivers ev to target through the capture, target and bubble
// phases. Called from inside a handler, it queues the event behind the
// current dispatch and returns.
func (d *Dispatcher) Dispatch(ev *Event, target entity.Entity) error {
	if !d.entities.Alive(target) {
		return &errors.StaleEntityError{Op: "event.Dispatcher.Dispatch", Entity: target.String()}
	}
	d.enqueue(pending{ev: ev, target: target})
	return nil
}

// enqueue runs p, or queues it behind the dispatch in progress.
func (d *Dispatcher) enqueue(p pending) {
	d.queue = append(d.queue, p)
	if d.dispatching {
		return
	}
	d.dispatching = true
	defer func() { d.dispatching = false }()
	for len(d.queue) > 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		if !d.entities.Alive(next.target) {
			continue
		}
		if next.direct {
			d.deliverDirect(next.ev, next.target)
		} else {
			d.route(next.ev, next.target)
		}
	}
}

func (d *Dispatcher) route(ev *Event, target entity.Entity) {
	ev.target = target
	ev.stopped = false
	path, _ := d.entities.Ancestors(target) // nearest first

	ev.phase = PhaseCapture
	for i := len(path) - 1; i >= 0 && !ev.stopped; i-- {
		d.invoke(path[i], ev, func(h Handler) bool { return capturing(h) })
	}
	// A capture stop ends capture only.
	ev.stopped = false

	ev.phase = PhaseTarget
	d.invoke(target, ev, nil)

	ev.phase = PhaseBubble
	for _, p := range path {
		if ev.stopped {
			break
		}
		d.invoke(p, ev, func(h Handler) bool { return !capturing(h) })
	}
	ev.phase = PhaseNone
	ev.current = entity.Null
}

// invoke runs the handlers of e that accept ev and pass filter. Entities
// removed by an earlier handler are skipped.
func (d *Dispatcher) invoke(e entity.Entity, ev *Event, filter func(Handler) bool) {
	if !d.entities.Alive(e) {
		return
	}
	list := d.handlers[e]
	if len(list) == 0 {
		return
	}
	ev.current = e
	ctx := &Context{d: d, Entity: e}
	for _, h := range slices.Clone(list) {
		if !h.Handles(ev.Kind) || (filter != nil && !filter(h)) {
			continue
		}
		call(h, ctx, ev)
		if !d.entities.Alive(e) {
			return
		}
	}
}

func call(h Handler, ctx *Context, ev *Event) {
	defer errors.Recover("event.Dispatcher.Dispatch")
	h.HandleEvent(ctx, ev)
}

// notify delivers a non-propagating event to e alone.
func (d *Dispatcher) notify(e entity.Entity, ev *Event) {
	d.enqueue(pending{ev: ev, target: e, direct: true})
}

func (d *Dispatcher) deliverDirect(ev *Event, e entity.Entity) {
	ev.target = e
	ev.phase = PhaseTarget
	d.invoke(e, ev, nil)
	ev.phase = PhaseNone
}

func (d *Dispatcher) focusChanged(old, updated entity.Entity) {
	if d.entities.Alive(old) {
		d.notify(old, &Event{Kind: FocusOut})
	}
	if d.entities.Alive(updated) {
		d.notify(updated, &Event{Kind: FocusIn})
	}
}
