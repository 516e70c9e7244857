// Package focus tracks keyboard focus over an entity tree.
//
// An entity can take focus when it carries entity.Focusable and neither it
// nor an ancestor is hidden or disabled. Linear traversal follows tree
// pre-order and wraps; directional traversal picks the nearest candidate
// by layout bounds and falls back to linear order.
package focus

import (
	"math"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
	"github.com/go-drift/lattice/pkg/graphics"
)

// Direction is a directional traversal direction.
type Direction int

const (
	// Up moves focus upward.
	Up Direction = iota
	// Down moves focus downward.
	Down
	// Left moves focus leftward.
	Left
	// Right moves focus rightward.
	Right
)

// Bounds supplies the solved rectangle of an entity.
type Bounds interface {
	Bounds(e entity.Entity) (graphics.Rect, bool)
}

// Manager owns the focused entity of one tree.
type Manager struct {
	entities *entity.Store
	bounds   Bounds
	focused  entity.Entity

	// OnChange runs after focus moves. Either side may be entity.Null.
	OnChange func(old, new entity.Entity)
}

// NewManager creates a focus manager. bounds may be nil, in which case
// directional traversal is linear.
func NewManager(entities *entity.Store, bounds Bounds) *Manager {
	m := &Manager{entities: entities, bounds: bounds}
	entities.OnRemove(func(removed []entity.Entity) {
		for _, e := range removed {
			if e == m.focused {
				m.focused = entity.Null
				return
			}
		}
	})
	return m
}

// Focused returns the focused entity, or entity.Null.
func (m *Manager) Focused() entity.Entity {
	if !m.entities.Alive(m.focused) {
		return entity.Null
	}
	return m.focused
}

// CanFocus reports whether e may take focus.
func (m *Manager) CanFocus(e entity.Entity) bool {
	if !m.entities.HasFlag(e, entity.Focusable) {
		return false
	}
	for p := e; !p.IsNull(); {
		if m.blocked(p) {
			return false
		}
		var err error
		if p, err = m.entities.Parent(p); err != nil {
			return false
		}
	}
	return true
}

func (m *Manager) blocked(e entity.Entity) bool {
	f, _ := m.entities.Flags(e)
	return f&(entity.Hidden|entity.Disabled) != 0
}

// Focus moves focus to e. It reports false when e cannot take focus.
func (m *Manager) Focus(e entity.Entity) (bool, error) {
	if !m.entities.Alive(e) {
		return false, &errors.StaleEntityError{Op: "focus.Manager.Focus", Entity: e.String()}
	}
	if !m.CanFocus(e) {
		return false, nil
	}
	m.set(e)
	return true, nil
}

// Blur clears focus.
func (m *Manager) Blur() {
	m.set(entity.Null)
}

func (m *Manager) set(e entity.Entity) {
	old := m.Focused()
	if old == e {
		return
	}
	if !old.IsNull() {
		_ = m.entities.SetFlags(old, entity.Focused, false)
	}
	m.focused = e
	if !e.IsNull() {
		_ = m.entities.SetFlags(e, entity.Focused, true)
	}
	if m.OnChange != nil {
		m.OnChange(old, e)
	}
}

// Candidates returns the focusable entities in pre-order.
func (m *Manager) Candidates() []entity.Entity {
	var out []entity.Entity
	root := m.entities.Root()
	if root.IsNull() {
		return nil
	}
	_ = m.entities.Walk(root, func(e entity.Entity) bool {
		if m.blocked(e) {
			return false
		}
		if m.entities.HasFlag(e, entity.Focusable) {
			out = append(out, e)
		}
		return true
	})
	return out
}

// Move moves focus delta steps through the candidates, wrapping at the
// ends. With nothing focused, +1 focuses the first candidate and -1 the
// last.
func (m *Manager) Move(delta int) bool {
	candidates := m.Candidates()
	count := len(candidates)
	if count == 0 || delta == 0 {
		return false
	}
	current := -1
	focused := m.Focused()
	for i, c := range candidates {
		if c == focused {
			current = i
			break
		}
	}
	if current < 0 && delta < 0 {
		current = 0
	}
	next := candidates[wrapIndex(current+delta, count)]
	if next == focused {
		return false
	}
	m.set(next)
	return true
}

// MoveInDirection moves focus to the best candidate in dir, scored by
// center distance with a penalty for cross-axis misalignment. Without
// geometry, or with no candidate in that direction, it falls back to
// linear traversal.
func (m *Manager) MoveInDirection(dir Direction) bool {
	focused := m.Focused()
	if focused.IsNull() || m.bounds == nil {
		return m.Move(linearDelta(dir))
	}
	from, ok := m.bounds.Bounds(focused)
	if !ok || from.IsEmpty() {
		return m.Move(linearDelta(dir))
	}

	var best entity.Entity
	bestScore := math.MaxFloat64
	for _, c := range m.Candidates() {
		if c == focused {
			continue
		}
		r, ok := m.bounds.Bounds(c)
		if !ok || r.IsEmpty() || !inDirection(from, r, dir) {
			continue
		}
		if score := directionalScore(from, r, dir); score < bestScore {
			bestScore = score
			best = c
		}
	}
	if best.IsNull() {
		return m.Move(linearDelta(dir))
	}
	m.set(best)
	return true
}

func linearDelta(dir Direction) int {
	if dir == Up || dir == Left {
		return -1
	}
	return 1
}

func center(r graphics.Rect) (x, y float64) {
	return (r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2
}

func inDirection(source, target graphics.Rect, dir Direction) bool {
	sx, sy := center(source)
	tx, ty := center(target)
	switch dir {
	case Up:
		return ty < sy
	case Down:
		return ty > sy
	case Left:
		return tx < sx
	case Right:
		return tx > sx
	}
	return false
}

// directionalScore is lower for closer, better aligned targets.
func directionalScore(source, target graphics.Rect, dir Direction) float64 {
	sx, sy := center(source)
	tx, ty := center(target)
	primary, cross := math.Abs(ty-sy), math.Abs(tx-sx)
	if dir == Left || dir == Right {
		primary, cross = cross, primary
	}
	return primary + cross*2
}

func wrapIndex(index, count int) int {
	index %= count
	if index < 0 {
		index += count
	}
	return index
}
