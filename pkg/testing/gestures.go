package testing

import (
	"fmt"

	"github.com/go-drift/lattice/pkg/event"
	"github.com/go-drift/lattice/pkg/graphics"
)

// Input is queued on the engine like real window input; call Pump to
// deliver it.

// center returns the middle of the first match's bounds.
func (t *Tester) center(op string, finder Finder) (graphics.Offset, error) {
	result := t.Find(finder)
	if !result.Exists() {
		return graphics.Offset{}, fmt.Errorf("%s: finder matched no entities: %s", op, finder.Description())
	}
	r, err := t.engine.Layout().Rect(result.First())
	if err != nil {
		return graphics.Offset{}, fmt.Errorf("%s: %s: %w", op, finder.Description(), err)
	}
	return graphics.Offset{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}, nil
}

// Tap presses and releases the primary button at the center of the first
// entity matched by finder.
func (t *Tester) Tap(finder Finder) error {
	pos, err := t.center("Tap", finder)
	if err != nil {
		return err
	}
	t.TapAt(pos)
	return nil
}

// TapAt presses and releases the primary button at pos.
func (t *Tester) TapAt(pos graphics.Offset) {
	t.SendPointerDown(pos)
	t.SendPointerUp(pos)
}

// Hover moves the pointer to the center of the first match.
func (t *Tester) Hover(finder Finder) error {
	pos, err := t.center("Hover", finder)
	if err != nil {
		return err
	}
	t.SendPointerMove(pos)
	return nil
}

// DragFrom presses at start, moves by delta in steps and releases.
func (t *Tester) DragFrom(start, delta graphics.Offset, steps int) {
	if steps < 1 {
		steps = 1
	}
	t.SendPointerDown(start)
	end := start
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		end = graphics.Offset{X: start.X + delta.X*frac, Y: start.Y + delta.Y*frac}
		t.SendPointerMove(end)
	}
	t.SendPointerUp(end)
}

// ScrollAt sends a wheel delta at pos.
func (t *Tester) ScrollAt(pos, delta graphics.Offset) {
	t.engine.PostInput(event.Event{Kind: event.Scroll, Position: pos, Delta: delta, Time: t.clock.Now()})
}

// SendPointerDown presses the primary button at pos.
func (t *Tester) SendPointerDown(pos graphics.Offset) {
	t.sendPointer(event.PointerDown, pos)
}

// SendPointerMove moves the pointer to pos.
func (t *Tester) SendPointerMove(pos graphics.Offset) {
	t.sendPointer(event.PointerMove, pos)
}

// SendPointerUp releases the primary button at pos.
func (t *Tester) SendPointerUp(pos graphics.Offset) {
	t.sendPointer(event.PointerUp, pos)
}

// SendPointerLeave reports that the pointer left the window.
func (t *Tester) SendPointerLeave() {
	t.engine.PostInput(event.Event{Kind: event.PointerLeave, Time: t.clock.Now()})
}

func (t *Tester) sendPointer(kind event.Kind, pos graphics.Offset) {
	t.engine.PostInput(event.Event{Kind: kind, Position: pos, Button: event.ButtonPrimary, Time: t.clock.Now()})
}

// PressKey sends a key down and key up for key.
func (t *Tester) PressKey(key string, mods event.Modifiers) {
	t.engine.PostInput(event.Event{Kind: event.KeyDown, Key: key, Modifiers: mods, Time: t.clock.Now()})
	t.engine.PostInput(event.Event{Kind: event.KeyUp, Key: key, Modifiers: mods, Time: t.clock.Now()})
}

// EnterText sends composed text to the focused entity.
func (t *Tester) EnterText(text string) {
	t.engine.PostInput(event.Event{Kind: event.TextInput, Text: text, Time: t.clock.Now()})
}
