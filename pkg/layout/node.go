// Package layout projects the entity tree and computed styles into a box
// model, asks a layout Engine to solve it, and caches the resulting
// rectangles per entity.
//
// All geometry is in logical units. Conversion to device pixels happens at
// the paint boundary.
package layout

import (
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

// Axis is the main axis of a flex container.
type Axis uint8

const (
	Column Axis = iota
	Row
)

// Align positions children on the cross axis.
type Align uint8

const (
	AlignStretch Align = iota
	AlignStart
	AlignCenter
	AlignEnd
)

// Justify distributes free space on the main axis.
type Justify uint8

const (
	JustifyStart Justify = iota
	JustifyCenter
	JustifyEnd
	JustifySpaceBetween
)

// Edges holds per-side lengths.
type Edges struct {
	Top, Right, Bottom, Left style.Length
}

func (e Edges) resolve(refWidth float64) (top, right, bottom, left float64) {
	// Percent padding and margin resolve against the parent width on every
	// side, as in CSS.
	return e.Top.Resolve(refWidth, 0), e.Right.Resolve(refWidth, 0),
		e.Bottom.Resolve(refWidth, 0), e.Left.Resolve(refWidth, 0)
}

// Box is the layout-relevant projection of a computed style.
type Box struct {
	Hidden   bool // display: none
	Absolute bool
	Axis     Axis
	Align    Align
	Justify  Justify
	Clip     bool // overflow: hidden

	Width, Height       style.Length
	MinWidth, MinHeight style.Length
	MaxWidth, MaxHeight style.Length
	Left, Top           style.Length

	Padding  Edges
	Margin   Edges
	Gap      style.Length
	FlexGrow float64
}

// FixedSize reports whether the box's size is independent of its children
// and parent: both width and height are absolute lengths.
func (b Box) FixedSize() bool {
	return b.Width.Unit == style.UnitPx && b.Height.Unit == style.UnitPx
}

// BoxFromStyle projects a computed style into a Box.
func BoxFromStyle(c *style.Computed) Box {
	b := Box{
		Hidden:    c.Keyword(style.Display) == "none",
		Absolute:  c.Keyword(style.Position) == "absolute",
		Clip:      c.Keyword(style.Overflow) != "visible",
		Width:     c.Length(style.Width),
		Height:    c.Length(style.Height),
		MinWidth:  c.Length(style.MinWidth),
		MinHeight: c.Length(style.MinHeight),
		MaxWidth:  c.Length(style.MaxWidth),
		MaxHeight: c.Length(style.MaxHeight),
		Left:      c.Length(style.Left),
		Top:       c.Length(style.Top),
		Padding: Edges{
			Top: c.Length(style.PaddingTop), Right: c.Length(style.PaddingRight),
			Bottom: c.Length(style.PaddingBottom), Left: c.Length(style.PaddingLeft),
		},
		Margin: Edges{
			Top: c.Length(style.MarginTop), Right: c.Length(style.MarginRight),
			Bottom: c.Length(style.MarginBottom), Left: c.Length(style.MarginLeft),
		},
		Gap:      c.Length(style.Gap),
		FlexGrow: c.Number(style.FlexGrow),
	}
	if c.Keyword(style.Direction) == "row" {
		b.Axis = Row
	}
	switch c.Keyword(style.AlignItems) {
	case "start":
		b.Align = AlignStart
	case "center":
		b.Align = AlignCenter
	case "end":
		b.Align = AlignEnd
	}
	switch c.Keyword(style.JustifyContent) {
	case "center":
		b.Justify = JustifyCenter
	case "end":
		b.Justify = JustifyEnd
	case "space-between":
		b.Justify = JustifySpaceBetween
	}
	return b
}

// MeasureFunc reports the intrinsic content size of a leaf given the width
// available to it. A non-positive maxWidth means unbounded.
type MeasureFunc func(maxWidth float64) graphics.Size

// Node is one box handed to the Engine. Children mirror the entity tree,
// minus display: none subtrees.
type Node struct {
	Entity   entity.Entity
	Box      Box
	Measure  MeasureFunc
	Children []*Node
}

// Geometry maps entities to their solved rectangles in root coordinates.
type Geometry map[entity.Entity]graphics.Rect

// Engine solves a box tree. The root is placed exactly at bounds; every
// descendant receives a rectangle. Engines must not retain the tree.
type Engine interface {
	Solve(root *Node, bounds graphics.Rect) (Geometry, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(root *Node, bounds graphics.Rect) (Geometry, error)

// Solve calls f.
func (f EngineFunc) Solve(root *Node, bounds graphics.Rect) (Geometry, error) {
	return f(root, bounds)
}
