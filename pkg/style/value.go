package style

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-drift/lattice/pkg/animation"
	"github.com/go-drift/lattice/pkg/graphics"
)

// Value is a typed property value. The concrete types are Length, Number,
// Color, Keyword, Text and Transitions.
type Value interface {
	String() string
	isValue()
}

// Unit identifies how a Length is measured.
type Unit uint8

const (
	// UnitAuto lets the layout engine pick the size.
	UnitAuto Unit = iota
	// UnitPx is an absolute size in logical pixels.
	UnitPx
	// UnitPercent is relative to the parent's content box.
	UnitPercent
	// UnitStretch fills the remaining space of the parent's main axis.
	UnitStretch
)

// Length is a dimension with a unit.
type Length struct {
	Value float64
	Unit  Unit
}

// Px returns a length in logical pixels.
func Px(v float64) Length { return Length{Value: v, Unit: UnitPx} }

// Percent returns a length relative to the parent.
func Percent(v float64) Length { return Length{Value: v, Unit: UnitPercent} }

// Auto is the automatic length.
var Auto = Length{Unit: UnitAuto}

// Stretch returns a length that takes a share of the free space.
func Stretch(weight float64) Length { return Length{Value: weight, Unit: UnitStretch} }

// IsAuto reports whether the length is automatic.
func (l Length) IsAuto() bool { return l.Unit == UnitAuto }

// Resolve converts the length against a reference size. Auto and stretch
// resolve to fallback.
func (l Length) Resolve(reference, fallback float64) float64 {
	switch l.Unit {
	case UnitPx:
		return l.Value
	case UnitPercent:
		return reference * l.Value / 100
	default:
		return fallback
	}
}

func (l Length) String() string {
	switch l.Unit {
	case UnitPx:
		return formatFloat(l.Value) + "px"
	case UnitPercent:
		return formatFloat(l.Value) + "%"
	case UnitStretch:
		if l.Value == 1 {
			return "stretch"
		}
		return formatFloat(l.Value) + "s"
	default:
		return "auto"
	}
}

func (Length) isValue() {}

// Number is a unitless scalar.
type Number float64

func (n Number) String() string { return formatFloat(float64(n)) }
func (Number) isValue()         {}

// Color is a paint color.
type Color graphics.Color

func (c Color) String() string { return graphics.Color(c).String() }
func (Color) isValue()         {}

// Keyword is one of a property's enumerated identifiers.
type Keyword string

func (k Keyword) String() string { return string(k) }
func (Keyword) isValue()         {}

// Text is a free-form string.
type Text string

func (t Text) String() string { return strconv.Quote(string(t)) }
func (Text) isValue()         {}

// Transition describes how changes of one property animate.
type Transition struct {
	// Property is the property name, or "all".
	Property string
	Duration time.Duration
	Delay    time.Duration
	// Timing is the source text of the timing function.
	Timing string
	Curve  animation.Curve
}

// Transitions is the value of the transition property.
type Transitions []Transition

// For returns the transition covering the named property. A specific entry
// wins over "all".
func (ts Transitions) For(name string) (Transition, bool) {
	var all *Transition
	for i := range ts {
		switch ts[i].Property {
		case name:
			return ts[i], true
		case "all":
			if all == nil {
				all = &ts[i]
			}
		}
	}
	if all != nil {
		return *all, true
	}
	return Transition{}, false
}

func (ts Transitions) String() string {
	if len(ts) == 0 {
		return "none"
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		s := fmt.Sprintf("%s %s %s", t.Property, formatDuration(t.Duration), t.Timing)
		if t.Delay > 0 {
			s += " " + formatDuration(t.Delay)
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func (Transitions) isValue() {}

// Equal compares two values. Nil values are equal only to each other.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	at, aok := a.(Transitions)
	bt, bok := b.(Transitions)
	if aok || bok {
		if !aok || !bok {
			return false
		}
		return slices.EqualFunc(at, bt, func(x, y Transition) bool {
			return x.Property == y.Property && x.Duration == y.Duration &&
				x.Delay == y.Delay && x.Timing == y.Timing
		})
	}
	return a == b
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDuration(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", d/time.Second)
	}
	return fmt.Sprintf("%dms", d/time.Millisecond)
}

func parseLength(raw string) (Value, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "auto":
		return Auto, nil
	case "stretch":
		return Stretch(1), nil
	}
	unit := UnitPx
	switch {
	case strings.HasSuffix(s, "px"):
		s = strings.TrimSuffix(s, "px")
	case strings.HasSuffix(s, "%"):
		s = strings.TrimSuffix(s, "%")
		unit = UnitPercent
	case strings.HasSuffix(s, "s"):
		s = strings.TrimSuffix(s, "s")
		unit = UnitStretch
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid length %q", raw)
	}
	if unit == UnitStretch && v <= 0 {
		return nil, fmt.Errorf("stretch weight must be positive: %q", raw)
	}
	return Length{Value: v, Unit: unit}, nil
}

func parseNumber(raw string) (Value, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", raw)
	}
	return Number(v), nil
}

func parseColor(raw string) (Value, error) {
	c, err := graphics.ParseColor(raw)
	if err != nil {
		return nil, err
	}
	return Color(c), nil
}

func parseText(raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		if s[0] == '"' {
			if unq, err := strconv.Unquote(s); err == nil {
				return Text(unq), nil
			}
		}
		return Text(s[1 : len(s)-1]), nil
	}
	return Text(s), nil
}

func keywords(allowed ...string) func(string) (Value, error) {
	return func(raw string) (Value, error) {
		s := strings.ToLower(strings.TrimSpace(raw))
		if slices.Contains(allowed, s) {
			return Keyword(s), nil
		}
		return nil, fmt.Errorf("%q is not one of %s", raw, strings.Join(allowed, ", "))
	}
}

// parseTransitions reads "prop duration [timing] [delay], ...".
func parseTransitions(raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	if strings.EqualFold(s, "none") || s == "" {
		return Transitions(nil), nil
	}
	var out Transitions
	for _, item := range splitTopLevel(s, ',') {
		fields := splitTopLevel(strings.TrimSpace(item), ' ')
		if len(fields) < 2 {
			return nil, fmt.Errorf("transition %q needs a property and a duration", item)
		}
		t := Transition{Property: strings.ToLower(fields[0]), Timing: "ease", Curve: animation.Ease}
		if t.Property != "all" {
			if _, ok := Lookup(t.Property); !ok {
				return nil, fmt.Errorf("transition names unknown property %q", fields[0])
			}
		}
		d, err := time.ParseDuration(fields[1])
		if err != nil {
			return nil, fmt.Errorf("transition duration %q: %w", fields[1], err)
		}
		t.Duration = d
		for _, f := range fields[2:] {
			if delay, err := time.ParseDuration(f); err == nil {
				t.Delay = delay
				continue
			}
			curve, err := animation.ParseCurve(f)
			if err != nil {
				return nil, err
			}
			t.Timing = strings.ToLower(f)
			t.Curve = curve
		}
		out = append(out, t)
	}
	return out, nil
}

// splitTopLevel splits on sep outside of parentheses, dropping empty parts.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				if p := strings.TrimSpace(s[start:i]); p != "" {
					parts = append(parts, p)
				}
				start = i + 1
			}
		}
	}
	if p := strings.TrimSpace(s[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

func lerpLength(a, b Value, t float64) Value {
	la, lb := a.(Length), b.(Length)
	if la.Unit != lb.Unit || la.Unit == UnitAuto {
		return animation.Step(a, b, t)
	}
	return Length{Value: animation.Lerp(la.Value, lb.Value, t), Unit: la.Unit}
}

func lerpNumber(a, b Value, t float64) Value {
	na, nb := a.(Number), b.(Number)
	return Number(animation.Lerp(float64(na), float64(nb), t))
}

func lerpColor(a, b Value, t float64) Value {
	return Color(graphics.LerpColor(graphics.Color(a.(Color)), graphics.Color(b.(Color)), t))
}
