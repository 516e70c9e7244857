// Package animation provides the timing functions and clock used by style
// transitions and programmatic animations.
package animation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Curve transforms linear progress t in [0, 1] into eased progress.
type Curve func(t float64) float64

// Linear returns linear progress (no easing).
func Linear(t float64) float64 {
	return t
}

// Ease is a standard cubic bezier curve for general-purpose easing.
// Equivalent to CSS ease.
var Ease = CubicBezier(0.25, 0.1, 0.25, 1.0)

// EaseIn starts slowly and accelerates.
// Equivalent to CSS ease-in.
var EaseIn = CubicBezier(0.42, 0.0, 1.0, 1.0)

// EaseOut starts quickly and decelerates.
// Equivalent to CSS ease-out.
var EaseOut = CubicBezier(0.0, 0.0, 0.58, 1.0)

// EaseInOut starts and ends slowly with acceleration in the middle.
// Equivalent to CSS ease-in-out.
var EaseInOut = CubicBezier(0.42, 0.0, 0.58, 1.0)

// CubicBezier returns a cubic-bezier easing function matching CSS cubic-bezier().
// The parameters define the two control points (x1,y1) and (x2,y2) of the curve.
// The curve starts at (0,0) and ends at (1,1).
func CubicBezier(x1, y1, x2, y2 float64) Curve {
	return func(t float64) float64 {
		if t <= 0 {
			return 0
		}
		if t >= 1 {
			return 1
		}

		u := t
		// Newton-Raphson converges quickly for most values.
		for range 8 {
			x := sampleCurve(x1, x2, u) - t
			if math.Abs(x) < 1e-7 {
				return sampleCurve(y1, y2, clampUnit(u))
			}
			dx := sampleCurveDerivative(x1, x2, u)
			if math.Abs(dx) < 1e-7 {
				break
			}
			u -= x / dx
		}

		// Fallback to bisection to guarantee a stable solution in [0,1].
		lo, hi := 0.0, 1.0
		u = clampUnit(u)
		for range 12 {
			x := sampleCurve(x1, x2, u) - t
			if math.Abs(x) < 1e-7 {
				break
			}
			if x > 0 {
				hi = u
			} else {
				lo = u
			}
			u = (lo + hi) * 0.5
		}

		return sampleCurve(y1, y2, u)
	}
}

// Steps returns a jump-end step function with n intervals, as CSS steps(n).
func Steps(n int) Curve {
	if n < 1 {
		n = 1
	}
	return func(t float64) float64 {
		if t >= 1 {
			return 1
		}
		return math.Floor(clampUnit(t)*float64(n)) / float64(n)
	}
}

func sampleCurve(a, b, t float64) float64 {
	inv := 1 - t
	return 3*inv*inv*t*a + 3*inv*t*t*b + t*t*t
}

func sampleCurveDerivative(a, b, t float64) float64 {
	inv := 1 - t
	return 3*inv*inv*a + 6*inv*t*(b-a) + 3*t*t*(1-b)
}

func clampUnit(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// ParseCurve resolves a CSS timing function keyword, cubic-bezier() or steps().
func ParseCurve(s string) (Curve, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "linear":
		return Linear, nil
	case "ease", "":
		return Ease, nil
	case "ease-in":
		return EaseIn, nil
	case "ease-out":
		return EaseOut, nil
	case "ease-in-out":
		return EaseInOut, nil
	}
	if args, ok := funcArgs(s, "cubic-bezier"); ok {
		if len(args) != 4 {
			return nil, fmt.Errorf("cubic-bezier needs 4 arguments, got %d", len(args))
		}
		var p [4]float64
		for i, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return nil, fmt.Errorf("cubic-bezier argument %q: %w", a, err)
			}
			p[i] = v
		}
		if p[0] < 0 || p[0] > 1 || p[2] < 0 || p[2] > 1 {
			return nil, fmt.Errorf("cubic-bezier x values must lie in [0,1]")
		}
		return CubicBezier(p[0], p[1], p[2], p[3]), nil
	}
	if args, ok := funcArgs(s, "steps"); ok && len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("steps argument %q must be a positive integer", args[0])
		}
		return Steps(n), nil
	}
	return nil, fmt.Errorf("unknown timing function %q", s)
}

func funcArgs(s, name string) ([]string, bool) {
	if !strings.HasPrefix(s, name+"(") || !strings.HasSuffix(s, ")") {
		return nil, false
	}
	inner := s[len(name)+1 : len(s)-1]
	parts := strings.Split(inner, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, true
}

// Progress returns the eased progress of an animation that started at start,
// waits delay, then runs for duration. Done reports whether it has finished.
func Progress(start, now time.Time, delay, duration time.Duration, curve Curve) (value float64, done bool) {
	elapsed := now.Sub(start) - delay
	if elapsed < 0 {
		return 0, false
	}
	if duration <= 0 || elapsed >= duration {
		return 1, true
	}
	t := float64(elapsed) / float64(duration)
	if curve == nil {
		curve = Linear
	}
	return curve(t), false
}
