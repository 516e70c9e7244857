package event

import (
	"slices"

	"github.com/go-drift/lattice/pkg/entity"
)

// Handler is the event capability an entity registers.
type Handler interface {
	// Handles reports whether the handler wants events of kind k.
	Handles(k Kind) bool
	// HandleEvent receives one event.
	HandleEvent(ctx *Context, ev *Event)
}

// Capturer is implemented by handlers that run during the capture phase
// instead of the bubble phase. Both kinds run at the target.
type Capturer interface {
	Capturing() bool
}

// Listener is a function Handler.
type Listener struct {
	// Kinds filters the events delivered. Empty means all.
	Kinds []Kind
	// Capture moves the listener from the bubble to the capture phase.
	Capture bool
	Func    func(ctx *Context, ev *Event)
}

// On returns a bubbling listener for kinds.
func On(fn func(ctx *Context, ev *Event), kinds ...Kind) *Listener {
	return &Listener{Kinds: kinds, Func: fn}
}

// OnCapture returns a capturing listener for kinds.
func OnCapture(fn func(ctx *Context, ev *Event), kinds ...Kind) *Listener {
	return &Listener{Kinds: kinds, Capture: true, Func: fn}
}

// Handles implements Handler.
func (l *Listener) Handles(k Kind) bool {
	return len(l.Kinds) == 0 || slices.Contains(l.Kinds, k)
}

// HandleEvent implements Handler.
func (l *Listener) HandleEvent(ctx *Context, ev *Event) {
	if l.Func != nil {
		l.Func(ctx, ev)
	}
}

// Capturing implements Capturer.
func (l *Listener) Capturing() bool {
	return l.Capture
}

func capturing(h Handler) bool {
	c, ok := h.(Capturer)
	return ok && c.Capturing()
}

// Context is handed to handlers.
type Context struct {
	d *Dispatcher
	// Entity is the entity whose handler is running.
	Entity entity.Entity
}

// Dispatcher returns the dispatcher delivering the event.
func (c *Context) Dispatcher() *Dispatcher {
	return c.d
}

// Entities returns the entity store.
func (c *Context) Entities() *entity.Store {
	return c.d.entities
}

// Focus moves keyboard focus to e.
func (c *Context) Focus(e entity.Entity) bool {
	ok, _ := c.d.focus.Focus(e)
	return ok
}
