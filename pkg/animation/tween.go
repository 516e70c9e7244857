package animation

// Tween interpolates between Begin and End. A nil Lerp switches from Begin
// to End at the midpoint.
type Tween[T any] struct {
	Begin T
	End   T
	Lerp  func(a, b T, t float64) T
}

// At returns the value at progress t, where 0 is Begin and 1 is End.
func (tw Tween[T]) At(t float64) T {
	if tw.Lerp == nil {
		return Step(tw.Begin, tw.End, t)
	}
	return tw.Lerp(tw.Begin, tw.End, t)
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Step returns a before the midpoint and b from it on.
func Step[T any](a, b T, t float64) T {
	if t < 0.5 {
		return a
	}
	return b
}
