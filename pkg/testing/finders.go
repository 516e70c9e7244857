package testing

import (
	"fmt"
	"slices"

	"github.com/go-drift/lattice/pkg/engine"
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/style"
)

// Finder locates entities in an engine's tree.
type Finder interface {
	// Evaluate returns all matching entities in tree pre-order.
	Evaluate(e *engine.Engine) []entity.Entity
	// Description names the finder in failure messages.
	Description() string
}

// FinderResult wraps finder matches with convenient accessors.
type FinderResult struct {
	entities []entity.Entity
	finder   Finder
}

func (r FinderResult) describe() string {
	if r.finder == nil {
		return "unknown"
	}
	return r.finder.Description()
}

// First returns the first match. Panics if there are none.
func (r FinderResult) First() entity.Entity {
	if len(r.entities) == 0 {
		panic(fmt.Sprintf("finder found no entities: %s", r.describe()))
	}
	return r.entities[0]
}

// FirstOrNull returns the first match, or entity.Null.
func (r FinderResult) FirstOrNull() entity.Entity {
	if len(r.entities) == 0 {
		return entity.Null
	}
	return r.entities[0]
}

// At returns the match at index. Panics if out of range.
func (r FinderResult) At(index int) entity.Entity {
	if index < 0 || index >= len(r.entities) {
		panic(fmt.Sprintf("finder index %d out of range (found %d): %s", index, len(r.entities), r.describe()))
	}
	return r.entities[index]
}

// Single returns the only match, or an error when there are zero or many.
func (r FinderResult) Single() (entity.Entity, error) {
	switch len(r.entities) {
	case 1:
		return r.entities[0], nil
	case 0:
		return entity.Null, fmt.Errorf("finder found no entities: %s", r.describe())
	default:
		return entity.Null, fmt.Errorf("finder found %d entities, want 1: %s", len(r.entities), r.describe())
	}
}

// All returns all matches in tree pre-order.
func (r FinderResult) All() []entity.Entity {
	return r.entities
}

// Count returns the number of matches.
func (r FinderResult) Count() int {
	return len(r.entities)
}

// Exists reports whether anything matched.
func (r FinderResult) Exists() bool {
	return len(r.entities) > 0
}

type predicateFinder struct {
	match func(e *engine.Engine, v entity.Entity) bool
	desc  string
}

func (f *predicateFinder) Evaluate(e *engine.Engine) []entity.Entity {
	var out []entity.Entity
	_ = e.Entities().Walk(e.Root(), func(v entity.Entity) bool {
		if f.match(e, v) {
			out = append(out, v)
		}
		return true
	})
	return out
}

func (f *predicateFinder) Description() string {
	return f.desc
}

// ByPredicate matches entities for which match returns true.
func ByPredicate(desc string, match func(e *engine.Engine, v entity.Entity) bool) Finder {
	return &predicateFinder{match: match, desc: desc}
}

// ByID matches the entity with the given #id.
func ByID(id string) Finder {
	return ByPredicate(fmt.Sprintf("ByID(%q)", id), func(e *engine.Engine, v entity.Entity) bool {
		got, err := e.Styles().ID(v)
		return err == nil && got == id
	})
}

// ByType matches entities of the given selector type.
func ByType(typ string) Finder {
	return ByPredicate(fmt.Sprintf("ByType(%q)", typ), func(e *engine.Engine, v entity.Entity) bool {
		got, err := e.Styles().Type(v)
		return err == nil && got == typ
	})
}

// ByClass matches entities carrying every given class.
func ByClass(classes ...string) Finder {
	return ByPredicate(fmt.Sprintf("ByClass(%q)", classes), func(e *engine.Engine, v entity.Entity) bool {
		return !slices.ContainsFunc(classes, func(c string) bool {
			has, err := e.Styles().HasClass(v, c)
			return err != nil || !has
		})
	})
}

// ByText matches entities whose inline content equals text.
func ByText(text string) Finder {
	return ByPredicate(fmt.Sprintf("ByText(%q)", text), func(e *engine.Engine, v entity.Entity) bool {
		c, ok, err := e.Styles().Inline(v, style.Content)
		return err == nil && ok && style.Equal(c, style.Text(text))
	})
}

// BySelector matches entities a selector group matches. An invalid
// selector matches nothing.
func BySelector(selectors string) Finder {
	return ByPredicate(fmt.Sprintf("BySelector(%q)", selectors), func(e *engine.Engine, v entity.Entity) bool {
		ok, err := e.Styles().Matches(v, selectors)
		return err == nil && ok
	})
}

// ByFlag matches entities with every bit of f set.
func ByFlag(f entity.Flags) Finder {
	return ByPredicate(fmt.Sprintf("ByFlag(%v)", f), func(e *engine.Engine, v entity.Entity) bool {
		return e.Entities().HasFlag(v, f)
	})
}

type descendantFinder struct {
	of, matching Finder
}

func (f *descendantFinder) Evaluate(e *engine.Engine) []entity.Entity {
	ancestors := f.of.Evaluate(e)
	return slices.DeleteFunc(f.matching.Evaluate(e), func(v entity.Entity) bool {
		return !slices.ContainsFunc(ancestors, func(a entity.Entity) bool {
			return a != v && e.Entities().IsAncestor(a, v)
		})
	})
}

func (f *descendantFinder) Description() string {
	return fmt.Sprintf("Descendant(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Descendant matches entities found by matching that lie below an entity
// found by of.
func Descendant(of, matching Finder) Finder {
	return &descendantFinder{of: of, matching: matching}
}
