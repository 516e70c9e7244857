package engine

import (
	"github.com/go-drift/lattice/pkg/binding"
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/event"
	"github.com/go-drift/lattice/pkg/style"
)

// View creates an entity of selector type typ under parent, with classes.
// A null parent means the root.
func (e *Engine) View(parent entity.Entity, typ string, classes ...string) (entity.Entity, error) {
	if parent.IsNull() {
		parent = e.entities.Root()
	}
	v, err := e.entities.Create(parent)
	if err != nil {
		return entity.Null, err
	}
	if typ != "" {
		if err := e.styles.SetType(v, typ); err != nil {
			return entity.Null, err
		}
	}
	if len(classes) > 0 {
		if err := e.styles.AddClass(v, classes...); err != nil {
			return entity.Null, err
		}
	}
	return v, nil
}

// Label creates a "label" entity showing text.
func (e *Engine) Label(parent entity.Entity, text string, classes ...string) (entity.Entity, error) {
	l, err := e.View(parent, "label", classes...)
	if err != nil {
		return entity.Null, err
	}
	if err := e.styles.SetProperty(l, style.Content, style.Text(text)); err != nil {
		return entity.Null, err
	}
	return l, nil
}

// Button creates a focusable "button" entity showing text and calls
// onClick on every click.
func (e *Engine) Button(parent entity.Entity, text string, onClick func(), classes ...string) (entity.Entity, error) {
	b, err := e.View(parent, "button", classes...)
	if err != nil {
		return entity.Null, err
	}
	if err := e.styles.SetProperty(b, style.Content, style.Text(text)); err != nil {
		return entity.Null, err
	}
	if err := e.entities.SetFlags(b, entity.Focusable, true); err != nil {
		return entity.Null, err
	}
	if onClick != nil {
		if err := e.events.AddHandler(b, event.On(func(*event.Context, *event.Event) { onClick() }, event.Click)); err != nil {
			return entity.Null, err
		}
	}
	return b, nil
}

// Remove destroys v and its subtree. Styles, geometry, handlers and
// bindings of the removed entities are released before it returns, and the
// parent is marked for relayout and redraw.
func (e *Engine) Remove(v entity.Entity) error {
	_, err := e.entities.Remove(v)
	return err
}

// On registers a bubbling listener on v.
func (e *Engine) On(v entity.Entity, fn func(ctx *event.Context, ev *event.Event), kinds ...event.Kind) error {
	return e.events.AddHandler(v, event.On(fn, kinds...))
}

// NewSource creates a source in e's binding registry.
func NewSource[T any](e *Engine, initial T) *binding.Source[T] {
	return binding.NewSource(e.bindings, initial)
}

// Bind subscribes v to src. See binding.Bind.
func Bind[T any](e *Engine, v entity.Entity, src *binding.Source[T], eq func(a, b T) bool, apply func(v entity.Entity, value T) binding.Effect) (*binding.Binding, error) {
	return binding.Bind(e.bindings, v, src, eq, apply)
}

// BindText shows the source's value as v's text content.
func BindText(e *Engine, v entity.Entity, src *binding.Source[string]) (*binding.Binding, error) {
	return binding.BindComparable(e.bindings, v, src, func(v entity.Entity, text string) binding.Effect {
		if err := e.styles.SetProperty(v, style.Content, style.Text(text)); err != nil {
			return binding.None
		}
		return binding.Restyle
	})
}

// BindClass toggles class on v to follow the source.
func BindClass(e *Engine, v entity.Entity, class string, src *binding.Source[bool]) (*binding.Binding, error) {
	return binding.BindComparable(e.bindings, v, src, func(v entity.Entity, on bool) binding.Effect {
		var err error
		if on {
			err = e.styles.AddClass(v, class)
		} else {
			err = e.styles.RemoveClass(v, class)
		}
		if err != nil {
			return binding.None
		}
		return binding.Restyle
	})
}
