package style

import (
	"fmt"
	"strings"

	"github.com/go-drift/lattice/pkg/entity"
)

// Specificity packs id, class and type counts as ids<<16 | classes<<8 | types.
// Pseudo-classes count as classes.
type Specificity uint32

func newSpecificity(ids, classes, types int) Specificity {
	c := func(n int) Specificity { return Specificity(min(n, 0xFF)) }
	return c(ids)<<16 | c(classes)<<8 | c(types)
}

func (s Specificity) String() string {
	return fmt.Sprintf("(%d,%d,%d)", s>>16, (s>>8)&0xFF, s&0xFF)
}

type combinator uint8

const (
	descendant combinator = iota
	child
)

// compound is a run of simple selectors with no combinator, e.g. button.primary:hover.
type compound struct {
	typ     string
	id      string
	classes []string
	flags   entity.Flags
}

// Selector is one complex selector. Parts are stored subject last.
type Selector struct {
	text  string
	parts []compound
	// combs[i] joins parts[i] and parts[i+1].
	combs []combinator
	spec  Specificity
}

func (s Selector) String() string { return s.text }

// Specificity returns the selector weight.
func (s Selector) Specificity() Specificity { return s.spec }

func (s Selector) subject() compound { return s.parts[len(s.parts)-1] }

// ParseSelectors parses a comma separated selector group.
func ParseSelectors(text string) ([]Selector, error) {
	var out []Selector
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty selector in %q", text)
		}
		sel, err := parseSelector(part)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

func parseSelector(text string) (Selector, error) {
	sel := Selector{text: text}
	tokens := strings.Fields(strings.ReplaceAll(text, ">", " > "))
	pending := descendant
	var ids, classes, types int
	for i, tok := range tokens {
		if tok == ">" {
			if i == 0 || i == len(tokens)-1 || tokens[i-1] == ">" {
				return Selector{}, fmt.Errorf("dangling combinator in %q", text)
			}
			pending = child
			continue
		}
		c, err := parseCompound(tok)
		if err != nil {
			return Selector{}, fmt.Errorf("selector %q: %w", text, err)
		}
		if len(sel.parts) > 0 {
			sel.combs = append(sel.combs, pending)
		}
		pending = descendant
		sel.parts = append(sel.parts, c)
		if c.id != "" {
			ids++
		}
		classes += len(c.classes) + popcount(c.flags)
		if c.typ != "" {
			types++
		}
	}
	if len(sel.parts) == 0 {
		return Selector{}, fmt.Errorf("empty selector")
	}
	sel.spec = newSpecificity(ids, classes, types)
	return sel, nil
}

func parseCompound(tok string) (compound, error) {
	var c compound
	i := 0
	ident := func() string {
		start := i
		for i < len(tok) && isIdentByte(tok[i]) {
			i++
		}
		return tok[start:i]
	}
	switch {
	case tok[0] == '*':
		i = 1
	case isIdentByte(tok[0]):
		c.typ = strings.ToLower(ident())
	}
	for i < len(tok) {
		kind := tok[i]
		i++
		name := ident()
		if name == "" {
			return compound{}, fmt.Errorf("expected a name after %q", kind)
		}
		switch kind {
		case '#':
			if c.id != "" {
				return compound{}, fmt.Errorf("two ids in %q", tok)
			}
			c.id = name
		case '.':
			c.classes = append(c.classes, name)
		case ':':
			f, ok := entity.FlagByName(name)
			if !ok {
				f = entity.CustomFlag(name)
				if f == 0 {
					return compound{}, fmt.Errorf("no room for pseudo-class %q", name)
				}
			}
			c.flags |= f
		default:
			return compound{}, fmt.Errorf("unexpected %q", kind)
		}
	}
	return c, nil
}

func isIdentByte(b byte) bool {
	return b == '-' || b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func popcount(f entity.Flags) int {
	n := 0
	for ; f != 0; f &= f - 1 {
		n++
	}
	return n
}

// identity is what selectors observe about an entity besides its flags.
type identity struct {
	typ     string
	id      string
	classes []string
}

func (id *identity) hasClass(c string) bool {
	for _, have := range id.classes {
		if have == c {
			return true
		}
	}
	return false
}

// matchSource answers selector questions about the tree.
type matchSource interface {
	identityOf(e entity.Entity) *identity
	flagsOf(e entity.Entity) entity.Flags
	parentOf(e entity.Entity) entity.Entity
}

func (c *compound) matches(src matchSource, e entity.Entity) bool {
	id := src.identityOf(e)
	if c.typ != "" && (id == nil || id.typ != c.typ) {
		return false
	}
	if c.id != "" && (id == nil || id.id != c.id) {
		return false
	}
	for _, cl := range c.classes {
		if id == nil || !id.hasClass(cl) {
			return false
		}
	}
	return src.flagsOf(e)&c.flags == c.flags
}

func (s *Selector) matches(src matchSource, e entity.Entity) bool {
	return s.matchFrom(src, e, len(s.parts)-1)
}

// matchFrom checks parts[i] against e and the parts before it against e's
// ancestors, backtracking through descendant combinators.
func (s *Selector) matchFrom(src matchSource, e entity.Entity, i int) bool {
	if !s.parts[i].matches(src, e) {
		return false
	}
	if i == 0 {
		return true
	}
	p := src.parentOf(e)
	if s.combs[i-1] == child {
		return !p.IsNull() && s.matchFrom(src, p, i-1)
	}
	for ; !p.IsNull(); p = src.parentOf(p) {
		if s.matchFrom(src, p, i-1) {
			return true
		}
	}
	return false
}
