package layout

import (
	stderrors "errors"
	"fmt"
	"math"

	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

// ErrUnsatisfiable is wrapped by FlexEngine errors for contradictory
// constraints.
var ErrUnsatisfiable = stderrors.New("layout constraints cannot be satisfied")

// ErrNotSolved is wrapped by Bridge.Rect for a live entity that has no
// geometry.
var ErrNotSolved = stderrors.New("entity has no solved geometry")

// FlexEngine is the default Engine: single-line flexbox with px, percent,
// auto and stretch sizes, min/max clamping, padding, margins, gap,
// flex-grow, absolute positioning and overflow clamping.
type FlexEngine struct{}

// NewFlexEngine returns the default engine.
func NewFlexEngine() *FlexEngine {
	return &FlexEngine{}
}

// Solve places root at bounds and lays out its subtree.
func (f *FlexEngine) Solve(root *Node, bounds graphics.Rect) (Geometry, error) {
	if !finite(bounds.Left, bounds.Top, bounds.Right, bounds.Bottom) {
		return nil, fmt.Errorf("%w: non-finite bounds %v", ErrUnsatisfiable, bounds)
	}
	if err := validate(root); err != nil {
		return nil, err
	}
	g := make(Geometry)
	f.place(root, bounds, g)
	return g, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func validate(n *Node) error {
	b := n.Box
	if b.MinWidth.Unit == style.UnitPx && b.MaxWidth.Unit == style.UnitPx && b.MinWidth.Value > b.MaxWidth.Value {
		return fmt.Errorf("%w: %v min-width %v exceeds max-width %v", ErrUnsatisfiable, n.Entity, b.MinWidth, b.MaxWidth)
	}
	if b.MinHeight.Unit == style.UnitPx && b.MaxHeight.Unit == style.UnitPx && b.MinHeight.Value > b.MaxHeight.Value {
		return fmt.Errorf("%w: %v min-height %v exceeds max-height %v", ErrUnsatisfiable, n.Entity, b.MinHeight, b.MaxHeight)
	}
	for _, c := range n.Children {
		if err := validate(c); err != nil {
			return err
		}
	}
	return nil
}

func (f *FlexEngine) place(n *Node, rect graphics.Rect, g Geometry) {
	g[n.Entity] = rect
	pt, pr, pb, pl := n.Box.Padding.resolve(rect.Width())
	content := graphics.Rect{
		Left:   rect.Left + pl,
		Top:    rect.Top + pt,
		Right:  math.Max(rect.Left+pl, rect.Right-pr),
		Bottom: math.Max(rect.Top+pt, rect.Bottom-pb),
	}

	var flow, abs []*Node
	for _, c := range n.Children {
		switch {
		case c.Box.Hidden:
		case c.Box.Absolute:
			abs = append(abs, c)
		default:
			flow = append(flow, c)
		}
	}
	f.flow(n, rect, content, flow, g)

	for _, c := range abs {
		r := absoluteRect(c, content)
		if n.Box.Clip {
			r = rect.Clamp(r)
		}
		f.place(c, r, g)
	}
}

type flexItem struct {
	node         *Node
	main, cross  float64
	mStart, mEnd float64
	cStart, cEnd float64
	grow         float64
	maxMain      style.Length
}

func (f *FlexEngine) flow(n *Node, rect, content graphics.Rect, children []*Node, g Geometry) {
	if len(children) == 0 {
		return
	}
	row := n.Box.Axis == Row
	mainSize, crossSize := content.Height(), content.Width()
	if row {
		mainSize, crossSize = crossSize, mainSize
	}
	gap := n.Box.Gap.Resolve(mainSize, 0)

	items := make([]flexItem, len(children))
	used := gap * float64(len(children)-1)
	totalGrow := 0.0
	for i, c := range children {
		b := c.Box
		mt, mr, mb, ml := b.Margin.resolve(content.Width())
		it := flexItem{node: c, grow: b.FlexGrow}
		mainLen, crossLen := b.Height, b.Width
		minMain, maxMain, minCross, maxCross := b.MinHeight, b.MaxHeight, b.MinWidth, b.MaxWidth
		it.mStart, it.mEnd, it.cStart, it.cEnd = mt, mb, ml, mr
		if row {
			mainLen, crossLen = b.Width, b.Height
			minMain, maxMain, minCross, maxCross = b.MinWidth, b.MaxWidth, b.MinHeight, b.MaxHeight
			it.mStart, it.mEnd, it.cStart, it.cEnd = ml, mr, mt, mb
		}
		if mainLen.Unit == style.UnitStretch {
			it.grow = math.Max(it.grow, mainLen.Value)
		}
		it.maxMain = maxMain

		stretchCross := crossLen.Unit == style.UnitStretch ||
			crossLen.IsAuto() && n.Box.Align == AlignStretch
		fixedCross := func() (float64, bool) {
			switch {
			case crossLen.Unit == style.UnitPx || crossLen.Unit == style.UnitPercent:
				return crossLen.Resolve(crossSize, 0), true
			case stretchCross:
				return math.Max(0, crossSize-it.cStart-it.cEnd), true
			}
			return 0, false
		}

		if row {
			// Width first, then height may depend on it through measurement.
			it.main = mainFor(mainLen, mainSize, func() float64 {
				return intrinsic(c, mainSize-it.mStart-it.mEnd).Width
			})
			it.main = clampLen(it.main, minMain, maxMain, mainSize)
			if v, ok := fixedCross(); ok {
				it.cross = v
			} else {
				it.cross = intrinsic(c, it.main).Height
			}
		} else {
			if v, ok := fixedCross(); ok {
				it.cross = v
			} else {
				it.cross = intrinsic(c, crossSize-it.cStart-it.cEnd).Width
			}
			it.cross = clampLen(it.cross, minCross, maxCross, crossSize)
			it.main = mainFor(mainLen, mainSize, func() float64 {
				return intrinsic(c, it.cross).Height
			})
			it.main = clampLen(it.main, minMain, maxMain, mainSize)
		}
		if row {
			it.cross = clampLen(it.cross, minCross, maxCross, crossSize)
		}

		used += it.main + it.mStart + it.mEnd
		totalGrow += it.grow
		items[i] = it
	}

	free := mainSize - used
	if free > 0 && totalGrow > 0 {
		for i := range items {
			if items[i].grow > 0 {
				items[i].main = clampLen(items[i].main+free*items[i].grow/totalGrow, style.Auto, items[i].maxMain, mainSize)
			}
		}
		free = 0
	}

	pos, spacing := 0.0, gap
	if free > 0 {
		switch n.Box.Justify {
		case JustifyCenter:
			pos = free / 2
		case JustifyEnd:
			pos = free
		case JustifySpaceBetween:
			if len(items) > 1 {
				spacing += free / float64(len(items)-1)
			}
		}
	}

	for _, it := range items {
		mainStart := pos + it.mStart
		crossStart := it.cStart
		switch n.Box.Align {
		case AlignCenter:
			crossStart = it.cStart + (crossSize-it.cross-it.cStart-it.cEnd)/2
		case AlignEnd:
			crossStart = crossSize - it.cross - it.cEnd
		}
		var r graphics.Rect
		if row {
			r = graphics.RectFromLTWH(content.Left+mainStart, content.Top+crossStart, it.main, it.cross)
		} else {
			r = graphics.RectFromLTWH(content.Left+crossStart, content.Top+mainStart, it.cross, it.main)
		}
		if n.Box.Clip {
			r = rect.Clamp(r)
		}
		f.place(it.node, r, g)
		pos = mainStart + it.main + it.mEnd + spacing
	}
}

// mainFor returns the base main size of a flex item.
func mainFor(l style.Length, ref float64, auto func() float64) float64 {
	switch l.Unit {
	case style.UnitPx, style.UnitPercent:
		return l.Resolve(ref, 0)
	case style.UnitStretch:
		return 0
	default:
		return auto()
	}
}

func clampLen(v float64, lo, hi style.Length, ref float64) float64 {
	if lo.Unit == style.UnitPx || lo.Unit == style.UnitPercent {
		v = math.Max(v, lo.Resolve(ref, 0))
	}
	if hi.Unit == style.UnitPx || hi.Unit == style.UnitPercent {
		v = math.Min(v, hi.Resolve(ref, math.Inf(1)))
	}
	return math.Max(v, 0)
}

// intrinsic returns the border-box size a node wants when availW is the
// width on offer.
func intrinsic(n *Node, availW float64) graphics.Size {
	b := n.Box
	pt, pr, pb, pl := b.Padding.resolve(availW)
	w := -1.0
	if b.Width.Unit == style.UnitPx || b.Width.Unit == style.UnitPercent {
		w = b.Width.Resolve(availW, 0)
	}
	inner := availW - pl - pr
	if w >= 0 {
		inner = w - pl - pr
	}

	var content graphics.Size
	if n.Measure != nil {
		content = n.Measure(inner)
	} else {
		gap := b.Gap.Resolve(0, 0)
		count := 0
		for _, c := range n.Children {
			if c.Box.Hidden || c.Box.Absolute {
				continue
			}
			mt, mr, mb, ml := c.Box.Margin.resolve(inner)
			cs := intrinsic(c, inner-ml-mr)
			ow, oh := cs.Width+ml+mr, cs.Height+mt+mb
			if b.Axis == Row {
				content.Width += ow
				content.Height = math.Max(content.Height, oh)
			} else {
				content.Height += oh
				content.Width = math.Max(content.Width, ow)
			}
			count++
		}
		if count > 1 {
			if b.Axis == Row {
				content.Width += gap * float64(count-1)
			} else {
				content.Height += gap * float64(count-1)
			}
		}
	}

	if w < 0 {
		w = content.Width + pl + pr
	}
	h := content.Height + pt + pb
	if b.Height.Unit == style.UnitPx {
		h = b.Height.Value
	}
	return graphics.Size{
		Width:  clampLen(w, b.MinWidth, b.MaxWidth, availW),
		Height: clampLen(h, b.MinHeight, b.MaxHeight, 0),
	}
}

func absoluteRect(c *Node, content graphics.Rect) graphics.Rect {
	b := c.Box
	left := b.Left.Resolve(content.Width(), 0)
	top := b.Top.Resolve(content.Height(), 0)
	size := intrinsic(c, content.Width()-left)
	w, h := size.Width, size.Height
	switch b.Width.Unit {
	case style.UnitStretch:
		w = math.Max(0, content.Width()-left)
	case style.UnitPercent:
		w = b.Width.Resolve(content.Width(), w)
	}
	switch b.Height.Unit {
	case style.UnitStretch:
		h = math.Max(0, content.Height()-top)
	case style.UnitPercent:
		h = b.Height.Resolve(content.Height(), h)
	}
	return graphics.RectFromLTWH(content.Left+left, content.Top+top, w, h)
}
