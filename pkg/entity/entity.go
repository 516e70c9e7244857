// Package entity owns the view tree: generation-tagged entity handles, the
// parent/child structure, per-entity flags and dirty bits.
//
// Entities are plain values. A handle stays comparable and hashable after
// its entity is destroyed, but every Store operation rejects it with a
// StaleEntityError because the slot's generation has moved on.
package entity

import (
	"fmt"
	"strings"
	"sync"
)

// Entity is an opaque handle to one node in the view tree.
type Entity struct {
	index uint32
	gen   uint32
}

// Null is the zero Entity. It never refers to a live node.
var Null Entity

// IsNull reports whether e is the zero handle.
func (e Entity) IsNull() bool {
	return e.gen == 0
}

// Index returns the arena slot of the handle.
func (e Entity) Index() int {
	return int(e.index)
}

// Generation returns the slot generation the handle was issued with.
func (e Entity) Generation() uint32 {
	return e.gen
}

func (e Entity) String() string {
	if e.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%dv%d", e.index, e.gen)
}

// Flags holds the boolean state of an entity that selectors can observe as
// pseudo-classes.
type Flags uint32

const (
	// Hidden removes the entity from hit testing and painting.
	Hidden Flags = 1 << iota
	// Disabled blocks input for the entity and its descendants.
	Disabled
	// Focused marks the entity holding keyboard focus.
	Focused
	// Hovered marks the entity under the pointer and its ancestors.
	Hovered
	// Active marks the entity while a pointer button is held on it.
	Active
	// Checked marks toggled entities.
	Checked
	// Focusable lets the entity receive focus from clicks and Tab traversal.
	Focusable

	firstCustom = 16
)

var builtinFlagNames = map[Flags]string{
	Hidden:    "hidden",
	Disabled:  "disabled",
	Focused:   "focus",
	Hovered:   "hover",
	Active:    "active",
	Checked:   "checked",
	Focusable: "focusable",
}

var (
	customMu    sync.Mutex
	customFlags = map[string]Flags{}
	customNames = map[Flags]string{}
)

// CustomFlag returns the flag bit registered for a custom pseudo-class name,
// allocating one on first use. It returns 0 once all 16 custom bits are taken.
func CustomFlag(name string) Flags {
	name = strings.ToLower(name)
	customMu.Lock()
	defer customMu.Unlock()
	if f, ok := customFlags[name]; ok {
		return f
	}
	n := len(customFlags)
	if firstCustom+n >= 32 {
		return 0
	}
	f := Flags(1) << (firstCustom + n)
	customFlags[name] = f
	customNames[f] = name
	return f
}

// FlagByName resolves a pseudo-class name to its flag: built-in names first,
// then registered custom names.
func FlagByName(name string) (Flags, bool) {
	name = strings.ToLower(name)
	for f, n := range builtinFlagNames {
		if n == name {
			return f, true
		}
	}
	customMu.Lock()
	defer customMu.Unlock()
	f, ok := customFlags[name]
	return f, ok
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for bit := Flags(1); bit != 0; bit <<= 1 {
		if f&bit == 0 {
			continue
		}
		if n, ok := builtinFlagNames[bit]; ok {
			names = append(names, n)
			continue
		}
		customMu.Lock()
		n, ok := customNames[bit]
		customMu.Unlock()
		if ok {
			names = append(names, n)
		} else {
			names = append(names, fmt.Sprintf("bit%d", bitIndex(bit)))
		}
	}
	return strings.Join(names, "|")
}

func bitIndex(f Flags) int {
	i := 0
	for f > 1 {
		f >>= 1
		i++
	}
	return i
}

// Dirty is the per-entity invalidation bit vector.
type Dirty uint8

const (
	// DirtyStyle requests a cascade pass for the entity.
	DirtyStyle Dirty = 1 << iota
	// DirtyLayout requests a layout node rebuild and re-solve.
	DirtyLayout
	// DirtyRedraw requests a paint command for the entity.
	DirtyRedraw

	// DirtyAll combines every bit.
	DirtyAll = DirtyStyle | DirtyLayout | DirtyRedraw
)

func (d Dirty) String() string {
	var parts []string
	if d&DirtyStyle != 0 {
		parts = append(parts, "style")
	}
	if d&DirtyLayout != 0 {
		parts = append(parts, "layout")
	}
	if d&DirtyRedraw != 0 {
		parts = append(parts, "redraw")
	}
	if len(parts) == 0 {
		return "clean"
	}
	return strings.Join(parts, "|")
}
