package style

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-drift/lattice/pkg/animation"
	"github.com/go-drift/lattice/pkg/graphics"
)

// Affects says which later phases a property change invalidates.
type Affects uint8

const (
	// AffectsLayout marks the entity layout-dirty when the value changes.
	AffectsLayout Affects = 1 << iota
	// AffectsPaint marks the entity redraw-dirty when the value changes.
	AffectsPaint
)

// Property describes one style property.
type Property struct {
	Name      string
	Inherited bool
	Affects   Affects
	Default   Value

	parse func(raw string) (Value, error)
	lerp  func(a, b Value, t float64) Value
}

// Parse converts declaration text to a typed value.
func (p *Property) Parse(raw string) (Value, error) {
	v, err := p.parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	return v, nil
}

// Animatable reports whether transitions interpolate this property.
func (p *Property) Animatable() bool {
	return p.lerp != nil
}

// Interpolate blends from a to b. Non-animatable properties switch at the
// midpoint.
func (p *Property) Interpolate(a, b Value, t float64) Value {
	if a == nil || b == nil {
		return b
	}
	return animation.Tween[Value]{Begin: a, End: b, Lerp: p.lerp}.At(t)
}

func (p *Property) String() string { return p.Name }

var (
	registryMu sync.RWMutex
	registry   = map[string]*Property{}
	sorted     []*Property
)

func define(p *Property) *Property {
	registry[p.Name] = p
	return p
}

// Register adds a custom property. Registering a taken name fails.
func Register(name string, inherited bool, affects Affects, def Value, parse func(string) (Value, error)) (*Property, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		return nil, fmt.Errorf("style property %q already registered", name)
	}
	p := &Property{Name: name, Inherited: inherited, Affects: affects, Default: def, parse: parse}
	switch def.(type) {
	case Length:
		p.lerp = lerpLength
	case Number:
		p.lerp = lerpNumber
	case Color:
		p.lerp = lerpColor
	}
	registry[name] = p
	sorted = nil
	return p, nil
}

// Lookup finds a property by name.
func Lookup(name string) (*Property, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[strings.ToLower(name)]
	return p, ok
}

// Properties returns every registered property sorted by name. The slice is
// shared and must not be modified.
func Properties() []*Property {
	registryMu.RLock()
	out := sorted
	registryMu.RUnlock()
	if out != nil {
		return out
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if sorted == nil {
		sorted = make([]*Property, 0, len(registry))
		for _, p := range registry {
			sorted = append(sorted, p)
		}
		slices.SortFunc(sorted, func(a, b *Property) int { return strings.Compare(a.Name, b.Name) })
	}
	return sorted
}

func lengthProp(name string, def Length, affects Affects) *Property {
	return define(&Property{Name: name, Affects: affects, Default: def, parse: parseLength, lerp: lerpLength})
}

func numberProp(name string, def float64, inherited bool, affects Affects) *Property {
	return define(&Property{Name: name, Inherited: inherited, Affects: affects, Default: Number(def), parse: parseNumber, lerp: lerpNumber})
}

func colorProp(name string, def graphics.Color, inherited bool) *Property {
	return define(&Property{Name: name, Inherited: inherited, Affects: AffectsPaint, Default: Color(def), parse: parseColor, lerp: lerpColor})
}

func keywordProp(name string, inherited bool, affects Affects, allowed ...string) *Property {
	return define(&Property{Name: name, Inherited: inherited, Affects: affects, Default: Keyword(allowed[0]), parse: keywords(allowed...)})
}

const both = AffectsLayout | AffectsPaint

// Layout properties.
var (
	Display        = keywordProp("display", false, both, "flex", "none")
	Position       = keywordProp("position", false, AffectsLayout, "relative", "absolute")
	Direction      = keywordProp("flex-direction", false, AffectsLayout, "column", "row")
	AlignItems     = keywordProp("align-items", false, AffectsLayout, "stretch", "start", "center", "end")
	JustifyContent = keywordProp("justify-content", false, AffectsLayout, "start", "center", "end", "space-between")
	Overflow       = keywordProp("overflow", false, both, "hidden", "visible")

	Width     = lengthProp("width", Auto, AffectsLayout)
	Height    = lengthProp("height", Auto, AffectsLayout)
	MinWidth  = lengthProp("min-width", Auto, AffectsLayout)
	MinHeight = lengthProp("min-height", Auto, AffectsLayout)
	MaxWidth  = lengthProp("max-width", Auto, AffectsLayout)
	MaxHeight = lengthProp("max-height", Auto, AffectsLayout)
	Left      = lengthProp("left", Auto, AffectsLayout)
	Top       = lengthProp("top", Auto, AffectsLayout)

	PaddingTop    = lengthProp("padding-top", Px(0), AffectsLayout)
	PaddingRight  = lengthProp("padding-right", Px(0), AffectsLayout)
	PaddingBottom = lengthProp("padding-bottom", Px(0), AffectsLayout)
	PaddingLeft   = lengthProp("padding-left", Px(0), AffectsLayout)
	MarginTop     = lengthProp("margin-top", Px(0), AffectsLayout)
	MarginRight   = lengthProp("margin-right", Px(0), AffectsLayout)
	MarginBottom  = lengthProp("margin-bottom", Px(0), AffectsLayout)
	MarginLeft    = lengthProp("margin-left", Px(0), AffectsLayout)
	Gap           = lengthProp("gap", Px(0), AffectsLayout)
	FlexGrow      = numberProp("flex-grow", 0, false, AffectsLayout)
)

// Text properties. Both feed measurement, so they affect layout.
var (
	FontSize   = define(&Property{Name: "font-size", Inherited: true, Affects: both, Default: Px(16), parse: parseLength, lerp: lerpLength})
	FontFamily = define(&Property{Name: "font-family", Inherited: true, Affects: both, Default: Text("sans-serif"), parse: parseText})
	Content    = define(&Property{Name: "content", Affects: both, Default: Text(""), parse: parseText})
)

// Paint properties.
var (
	BackgroundColor = colorProp("background-color", graphics.ColorTransparent, false)
	ForegroundColor = colorProp("color", graphics.ColorBlack, true)
	BorderColor     = colorProp("border-color", graphics.ColorTransparent, false)
	BorderWidth     = define(&Property{Name: "border-width", Affects: AffectsPaint, Default: Px(0), parse: parseLength, lerp: lerpLength})
	BorderRadius    = define(&Property{Name: "border-radius", Affects: AffectsPaint, Default: Px(0), parse: parseLength, lerp: lerpLength})
	Opacity         = numberProp("opacity", 1, false, AffectsPaint)
	Visibility      = keywordProp("visibility", true, AffectsPaint, "visible", "hidden")
	ZIndex          = numberProp("z-index", 0, true, AffectsPaint)
	Cursor          = keywordProp("cursor", true, 0, "default", "pointer", "text", "move", "not-allowed")
)

// TransitionProp holds the transition list of an entity.
var TransitionProp = define(&Property{Name: "transition", Default: Transitions(nil), parse: parseTransitions})

// shorthands expand box shorthands into their longhand properties.
var shorthands = map[string][4]*Property{
	"padding": {PaddingTop, PaddingRight, PaddingBottom, PaddingLeft},
	"margin":  {MarginTop, MarginRight, MarginBottom, MarginLeft},
}

// aliases map accepted alternative spellings to property names.
var aliases = map[string]string{
	"direction":  "flex-direction",
	"background": "background-color",
	"text":       "content",
}

// expand resolves a declared name and raw value to one or more
// property/raw pairs. Box shorthands follow the CSS 1-4 value pattern.
func expand(name, raw string) ([]*Property, []string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	if sides, ok := shorthands[name]; ok {
		f := strings.Fields(raw)
		var vals [4]string
		switch len(f) {
		case 1:
			vals = [4]string{f[0], f[0], f[0], f[0]}
		case 2:
			vals = [4]string{f[0], f[1], f[0], f[1]}
		case 3:
			vals = [4]string{f[0], f[1], f[2], f[1]}
		case 4:
			vals = [4]string{f[0], f[1], f[2], f[3]}
		default:
			return nil, nil, fmt.Errorf("%s takes 1 to 4 values", name)
		}
		return sides[:], vals[:], nil
	}
	p, ok := Lookup(name)
	if !ok {
		return nil, nil, errUnknownProperty
	}
	return []*Property{p}, []string{raw}, nil
}
