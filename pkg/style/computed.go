package style

import (
	"github.com/go-drift/lattice/pkg/graphics"
)

// Computed is the resolved style of one entity: the cascade winner of every
// property, inherited values filled in, running transitions applied. A
// Computed is never modified after the resolve pass that produced it, so the
// paint and accessibility layers may keep references.
type Computed struct {
	values map[*Property]Value
}

// Get returns the value of p, or its default when unset or c is nil.
func (c *Computed) Get(p *Property) Value {
	if c != nil {
		if v, ok := c.values[p]; ok && v != nil {
			return v
		}
	}
	return p.Default
}

// Length returns p as a Length, or Auto when p holds another type.
func (c *Computed) Length(p *Property) Length {
	if l, ok := c.Get(p).(Length); ok {
		return l
	}
	return Auto
}

// Number returns p as a float.
func (c *Computed) Number(p *Property) float64 {
	if n, ok := c.Get(p).(Number); ok {
		return float64(n)
	}
	return 0
}

// Color returns p as a color.
func (c *Computed) Color(p *Property) graphics.Color {
	if col, ok := c.Get(p).(Color); ok {
		return graphics.Color(col)
	}
	return graphics.ColorTransparent
}

// Keyword returns p as a keyword string.
func (c *Computed) Keyword(p *Property) string {
	if k, ok := c.Get(p).(Keyword); ok {
		return string(k)
	}
	return ""
}

// Text returns p as a string.
func (c *Computed) Text(p *Property) string {
	if t, ok := c.Get(p).(Text); ok {
		return string(t)
	}
	return ""
}

// Visible reports whether the entity takes part in paint and hit testing.
func (c *Computed) Visible() bool {
	return c.Keyword(Display) != "none" && c.Keyword(Visibility) != "hidden"
}

// Each calls fn for every property in name order until fn returns false.
func (c *Computed) Each(fn func(p *Property, v Value) bool) {
	for _, p := range Properties() {
		if !fn(p, c.Get(p)) {
			return
		}
	}
}
