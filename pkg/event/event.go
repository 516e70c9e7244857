// Package event routes input through the entity tree.
//
// Dispatch delivers an event in three phases: capture from the root down to
// the target's parent, the target itself, then bubble from the parent back
// up to the root. Stopping propagation during capture ends the capture
// phase only; stopping it at the target or while bubbling ends the walk.
//
// Handlers run on the scheduler goroutine. A dispatch requested from inside
// a handler is queued and runs after the current one completes, so
// dispatch never recurses.
package event

import (
	"time"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/graphics"
)

// Kind identifies an event type.
type Kind uint8

const (
	// PointerDown is a button press.
	PointerDown Kind = iota + 1
	// PointerUp is a button release.
	PointerUp
	// PointerMove is pointer motion.
	PointerMove
	// PointerEnter is sent to an entity when the pointer moves onto it.
	// It does not propagate.
	PointerEnter
	// PointerLeave is sent to an entity when the pointer leaves it. It does
	// not propagate. Sent with no target it means the pointer left the
	// window.
	PointerLeave
	// Click follows a press and release on the same entity.
	Click
	// Scroll carries a wheel or trackpad delta.
	Scroll
	// KeyDown is a key press, routed to the focused entity.
	KeyDown
	// KeyUp is a key release.
	KeyUp
	// TextInput carries composed text.
	TextInput
	// FocusIn is sent to an entity that gained focus.
	FocusIn
	// FocusOut is sent to an entity that lost focus.
	FocusOut
	// Resize reports a new logical window size.
	Resize
	// ScaleChanged reports a new scale factor.
	ScaleChanged
	// CloseRequested reports that the window wants to close.
	CloseRequested
)

var kindNames = map[Kind]string{
	PointerDown:    "pointer-down",
	PointerUp:      "pointer-up",
	PointerMove:    "pointer-move",
	PointerEnter:   "pointer-enter",
	PointerLeave:   "pointer-leave",
	Click:          "click",
	Scroll:         "scroll",
	KeyDown:        "key-down",
	KeyUp:          "key-up",
	TextInput:      "text-input",
	FocusIn:        "focus-in",
	FocusOut:       "focus-out",
	Resize:         "resize",
	ScaleChanged:   "scale-changed",
	CloseRequested: "close-requested",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// IsPointer reports whether events of kind k are routed by hit testing.
func (k Kind) IsPointer() bool {
	switch k {
	case PointerDown, PointerUp, PointerMove, Scroll:
		return true
	}
	return false
}

// Phase is the dispatch phase an event is in.
type Phase uint8

const (
	// PhaseNone is the phase outside of dispatch.
	PhaseNone Phase = iota
	// PhaseCapture walks from the root towards the target.
	PhaseCapture
	// PhaseTarget runs the target's own handlers.
	PhaseTarget
	// PhaseBubble walks from the target's parent back to the root.
	PhaseBubble
)

func (p Phase) String() string {
	switch p {
	case PhaseCapture:
		return "capture"
	case PhaseTarget:
		return "target"
	case PhaseBubble:
		return "bubble"
	default:
		return "none"
	}
}

// Button identifies a pointer button.
type Button uint8

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// Modifiers is the set of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// Named keys used by the dispatcher's default actions.
const (
	KeyTab        = "Tab"
	KeyEnter      = "Enter"
	KeyEscape     = "Escape"
	KeyArrowUp    = "ArrowUp"
	KeyArrowDown  = "ArrowDown"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
)

// Event is one input occurrence. The payload fields are set by the
// producer; the dispatcher owns the routing state.
type Event struct {
	Kind      Kind
	Position  graphics.Offset // logical units
	Delta     graphics.Offset // Scroll
	Button    Button
	Key       string
	Text      string
	Modifiers Modifiers
	Size      graphics.Size // Resize
	Scale     float64       // ScaleChanged
	Time      time.Time

	phase   Phase
	target  entity.Entity
	current entity.Entity
	stopped bool
}

// Phase returns the current dispatch phase.
func (e *Event) Phase() Phase { return e.phase }

// Target returns the entity the event is aimed at.
func (e *Event) Target() entity.Entity { return e.target }

// CurrentTarget returns the entity whose handlers are running.
func (e *Event) CurrentTarget() entity.Entity { return e.current }

// StopPropagation ends the current phase. See the package documentation.
func (e *Event) StopPropagation() { e.stopped = true }

// Stopped reports whether propagation was stopped at the target or during
// bubbling.
func (e *Event) Stopped() bool { return e.stopped }

// Clone returns a copy of the payload without routing state.
func (e *Event) Clone() *Event {
	c := *e
	c.phase, c.target, c.current, c.stopped = PhaseNone, entity.Null, entity.Null, false
	return &c
}
