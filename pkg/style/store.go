// Package style holds the style sheets, the per-entity style identity and
// inline overrides, and the cascade that turns them into Computed styles.
package style

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-drift/lattice/pkg/animation"
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
)

// Scope selects how far MarkDirty reaches.
type Scope uint8

const (
	// ScopeSelf marks only the entity.
	ScopeSelf Scope = iota
	// ScopeSubtree marks the entity and every descendant.
	ScopeSubtree
)

type element struct {
	identity
	inline   map[*Property]Value
	base     map[*Property]Value
	inherits map[*Property]bool
	computed *Computed
	anims    map[*Property]*anim
}

type anim struct {
	from, to Value
	start    time.Time
	delay    time.Duration
	duration time.Duration
	curve    animation.Curve
	// explicit animations run to their own target instead of following
	// the cascade.
	explicit bool
}

// Store is the style side of the entity tree. Like entity.Store it belongs
// to the scheduler goroutine; only Sheet may be read from elsewhere.
type Store struct {
	entities  *entity.Store
	sheet     atomic.Pointer[Sheet]
	elems     map[entity.Entity]*element
	animating map[entity.Entity]struct{}
}

// NewStore creates a style store over entities. A nil sheet means no rules.
func NewStore(entities *entity.Store, sheet *Sheet) *Store {
	s := &Store{
		entities:  entities,
		elems:     make(map[entity.Entity]*element),
		animating: make(map[entity.Entity]struct{}),
	}
	if sheet == nil {
		sheet = EmptySheet()
	}
	s.sheet.Store(sheet)
	reportWarnings(sheet)

	entities.OnRemove(func(removed []entity.Entity) {
		for _, e := range removed {
			delete(s.elems, e)
			delete(s.animating, e)
		}
	})
	entities.OnFlagsChanged(s.flagsChanged)
	return s
}

func reportWarnings(sheet *Sheet) {
	for _, w := range sheet.Warnings() {
		errors.ReportWarning(w)
	}
}

// Sheet returns the active sheet. Safe from any goroutine.
func (s *Store) Sheet() *Sheet {
	return s.sheet.Load()
}

// Reload swaps the whole sheet and marks every entity for restyle.
func (s *Store) Reload(sheet *Sheet) {
	if sheet == nil {
		sheet = EmptySheet()
	}
	s.sheet.Store(sheet)
	reportWarnings(sheet)
	if root := s.entities.Root(); !root.IsNull() {
		_ = s.MarkDirty(root, ScopeSubtree)
	}
}

func (s *Store) element(op string, e entity.Entity) (*element, error) {
	if !s.entities.Alive(e) {
		return nil, &errors.StaleEntityError{Op: op, Entity: e.String()}
	}
	el := s.elems[e]
	if el == nil {
		el = &element{}
		s.elems[e] = el
	}
	return el, nil
}

// MarkDirty marks e, or e and its subtree, style-dirty.
func (s *Store) MarkDirty(e entity.Entity, scope Scope) error {
	if scope == ScopeSelf {
		return s.entities.MarkDirty(e, entity.DirtyStyle)
	}
	return s.entities.Walk(e, func(d entity.Entity) bool {
		_ = s.entities.MarkDirty(d, entity.DirtyStyle)
		return true
	})
}

// flagsChanged restyles after a pseudo-class flip. Only flags the sheet
// actually uses count; a flag used in an ancestor compound restyles the
// subtree.
func (s *Store) flagsChanged(e entity.Entity, old, updated entity.Flags) {
	changed := old ^ updated
	sheet := s.sheet.Load()
	switch {
	case changed&sheet.ancestorFlags != 0:
		_ = s.MarkDirty(e, ScopeSubtree)
	case changed&sheet.subjectFlags != 0:
		_ = s.MarkDirty(e, ScopeSelf)
	}
}

// SetType sets the element type matched by type selectors.
func (s *Store) SetType(e entity.Entity, typ string) error {
	el, err := s.element("style.Store.SetType", e)
	if err != nil {
		return err
	}
	typ = strings.ToLower(typ)
	if el.typ == typ {
		return nil
	}
	el.typ = typ
	return s.MarkDirty(e, ScopeSubtree)
}

// SetID sets the element id matched by #id selectors.
func (s *Store) SetID(e entity.Entity, id string) error {
	el, err := s.element("style.Store.SetID", e)
	if err != nil {
		return err
	}
	if el.id == id {
		return nil
	}
	el.id = id
	return s.MarkDirty(e, ScopeSubtree)
}

// AddClass adds class names to e.
func (s *Store) AddClass(e entity.Entity, classes ...string) error {
	el, err := s.element("style.Store.AddClass", e)
	if err != nil {
		return err
	}
	for _, c := range classes {
		if c == "" || el.hasClass(c) {
			continue
		}
		el.classes = append(el.classes, c)
		s.classChanged(e, c)
	}
	return nil
}

// RemoveClass removes class names from e.
func (s *Store) RemoveClass(e entity.Entity, classes ...string) error {
	el, err := s.element("style.Store.RemoveClass", e)
	if err != nil {
		return err
	}
	for _, c := range classes {
		if i := slices.Index(el.classes, c); i >= 0 {
			el.classes = slices.Delete(el.classes, i, i+1)
			s.classChanged(e, c)
		}
	}
	return nil
}

// ToggleClass flips a class and reports whether it is now present.
func (s *Store) ToggleClass(e entity.Entity, class string) (bool, error) {
	el, err := s.element("style.Store.ToggleClass", e)
	if err != nil {
		return false, err
	}
	if el.hasClass(class) {
		return false, s.RemoveClass(e, class)
	}
	return true, s.AddClass(e, class)
}

func (s *Store) classChanged(e entity.Entity, class string) {
	if s.sheet.Load().ancestorClasses[class] {
		_ = s.MarkDirty(e, ScopeSubtree)
		return
	}
	_ = s.MarkDirty(e, ScopeSelf)
}

// lookup returns e's element without creating one. A live entity that was
// never styled yields nil.
func (s *Store) lookup(op string, e entity.Entity) (*element, error) {
	if !s.entities.Alive(e) {
		return nil, &errors.StaleEntityError{Op: op, Entity: e.String()}
	}
	return s.elems[e], nil
}

// Type returns e's element type.
func (s *Store) Type(e entity.Entity) (string, error) {
	el, err := s.lookup("style.Store.Type", e)
	if el == nil {
		return "", err
	}
	return el.typ, nil
}

// ID returns e's element id.
func (s *Store) ID(e entity.Entity) (string, error) {
	el, err := s.lookup("style.Store.ID", e)
	if el == nil {
		return "", err
	}
	return el.id, nil
}

// Classes returns a copy of e's classes.
func (s *Store) Classes(e entity.Entity) ([]string, error) {
	el, err := s.lookup("style.Store.Classes", e)
	if el == nil {
		return nil, err
	}
	return slices.Clone(el.classes), nil
}

// HasClass reports whether e carries class.
func (s *Store) HasClass(e entity.Entity, class string) (bool, error) {
	el, err := s.lookup("style.Store.HasClass", e)
	if el == nil {
		return false, err
	}
	return el.hasClass(class), nil
}

// Describe renders e's identity as type#id.class1.class2.
func (s *Store) Describe(e entity.Entity) (string, error) {
	el, err := s.lookup("style.Store.Describe", e)
	if el == nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(el.typ)
	if el.id != "" {
		b.WriteString("#" + el.id)
	}
	for _, c := range el.classes {
		b.WriteString("." + c)
	}
	return b.String(), nil
}

// SetProperty sets an inline value on e. Inline values beat normal rules;
// only !important rules override them. Setting an equal value is a no-op.
func (s *Store) SetProperty(e entity.Entity, p *Property, v Value) error {
	el, err := s.element("style.Store.SetProperty", e)
	if err != nil {
		return err
	}
	if old, ok := el.inline[p]; ok && Equal(old, v) {
		return nil
	}
	if el.inline == nil {
		el.inline = make(map[*Property]Value)
	}
	el.inline[p] = v
	return s.entities.MarkDirty(e, entity.DirtyStyle)
}

// SetPropertyString parses raw for the named property and sets it inline.
func (s *Store) SetPropertyString(e entity.Entity, name, raw string) error {
	props, raws, err := expand(name, raw)
	if err != nil {
		return &errors.LatticeError{Op: "style.Store.SetPropertyString", Kind: errors.KindStyle, Entity: e.String(), Err: fmt.Errorf("%s: %w", name, err)}
	}
	for i, p := range props {
		v, err := p.Parse(raws[i])
		if err != nil {
			return &errors.LatticeError{Op: "style.Store.SetPropertyString", Kind: errors.KindStyle, Entity: e.String(), Err: err}
		}
		if err := s.SetProperty(e, p, v); err != nil {
			return err
		}
	}
	return nil
}

// ClearProperty removes an inline value.
func (s *Store) ClearProperty(e entity.Entity, p *Property) error {
	el, err := s.element("style.Store.ClearProperty", e)
	if err != nil {
		return err
	}
	if _, ok := el.inline[p]; !ok {
		return nil
	}
	delete(el.inline, p)
	return s.entities.MarkDirty(e, entity.DirtyStyle)
}

// Inline returns the inline value of p on e.
func (s *Store) Inline(e entity.Entity, p *Property) (Value, bool, error) {
	el, err := s.lookup("style.Store.Inline", e)
	if el == nil {
		return nil, false, err
	}
	v, ok := el.inline[p]
	return v, ok, nil
}

// Computed returns the last resolved style of e. An entity that has not been
// resolved yet reports defaults.
func (s *Store) Computed(e entity.Entity) (*Computed, error) {
	if !s.entities.Alive(e) {
		return nil, &errors.StaleEntityError{Op: "style.Store.Computed", Entity: e.String()}
	}
	if el := s.elems[e]; el != nil && el.computed != nil {
		return el.computed, nil
	}
	return &Computed{}, nil
}

// Animate runs p from from to to over d. A nil from starts at the currently
// displayed value. When the animation ends the cascade value applies again.
func (s *Store) Animate(e entity.Entity, p *Property, from, to Value, d time.Duration, curve animation.Curve) error {
	el, err := s.element("style.Store.Animate", e)
	if err != nil {
		return err
	}
	if from == nil {
		from = el.computed.Get(p)
	}
	if curve == nil {
		curve = animation.Linear
	}
	if el.anims == nil {
		el.anims = make(map[*Property]*anim)
	}
	el.anims[p] = &anim{from: from, to: to, start: animation.Now(), duration: d, curve: curve, explicit: true}
	s.animating[e] = struct{}{}
	return s.entities.MarkDirty(e, entity.DirtyStyle)
}

// Animating reports whether any transition or animation is running.
func (s *Store) Animating() bool {
	return len(s.animating) > 0
}

// Advance marks every animating entity style-dirty so the next Resolve
// samples its transitions, and returns how many there were.
func (s *Store) Advance() int {
	for e := range s.animating {
		_ = s.entities.MarkDirty(e, entity.DirtyStyle)
	}
	return len(s.animating)
}

func (s *Store) identityOf(e entity.Entity) *identity {
	if el := s.elems[e]; el != nil {
		return &el.identity
	}
	return nil
}

func (s *Store) flagsOf(e entity.Entity) entity.Flags {
	f, _ := s.entities.Flags(e)
	return f
}

func (s *Store) parentOf(e entity.Entity) entity.Entity {
	p, _ := s.entities.Parent(e)
	return p
}

// Matches reports whether any selector in the group text matches e.
func (s *Store) Matches(e entity.Entity, selectors string) (bool, error) {
	sels, err := ParseSelectors(selectors)
	if err != nil {
		return false, err
	}
	if !s.entities.Alive(e) {
		return false, &errors.StaleEntityError{Op: "style.Store.Matches", Entity: e.String()}
	}
	for i := range sels {
		if sels[i].matches(s, e) {
			return true, nil
		}
	}
	return false, nil
}
