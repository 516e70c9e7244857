package style

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
)

// SupportedMajor is the sheet format major version this package reads.
const SupportedMajor = "v1"

var errUnknownProperty = stderrors.New("unknown property")

// Declaration is one property assignment of a rule.
type Declaration struct {
	Property  *Property
	Value     Value
	Important bool
	// Inherit takes the parent's value regardless of the property's
	// inheritance; Initial takes the default.
	Inherit bool
	Initial bool
}

// Rule is a selector with its declarations. Order is the position of the
// rule in the merged sheet and breaks specificity ties: later wins.
type Rule struct {
	Selector     Selector
	Declarations []Declaration
	Order        int
	Source       string
}

// Sheet is an immutable, parsed rule set.
type Sheet struct {
	Name    string
	Version string

	rules     []*Rule
	byID      map[string][]*Rule
	byClass   map[string][]*Rule
	byType    map[string][]*Rule
	universal []*Rule

	// Flags and classes used by non-subject compounds. Flipping one of these
	// on an entity can change how its descendants match.
	ancestorFlags   entity.Flags
	ancestorClasses map[string]bool
	subjectFlags    entity.Flags

	warnings []*errors.CascadeWarning
}

// Rules returns the rules in declaration order.
func (s *Sheet) Rules() []*Rule { return s.rules }

// Warnings returns the declarations skipped while parsing.
func (s *Sheet) Warnings() []*errors.CascadeWarning { return s.warnings }

// Len returns the number of rules.
func (s *Sheet) Len() int { return len(s.rules) }

// EmptySheet returns a sheet without rules.
func EmptySheet() *Sheet {
	return newSheetBuilder("empty").build()
}

type sheetBuilder struct {
	sheet *Sheet
}

func newSheetBuilder(name string) *sheetBuilder {
	return &sheetBuilder{sheet: &Sheet{Name: name}}
}

func (b *sheetBuilder) warn(source, selector, prop, value, reason string) {
	b.sheet.warnings = append(b.sheet.warnings, &errors.CascadeWarning{
		Sheet: source, Selector: selector, Property: prop, Value: value, Reason: reason,
	})
}

// addRule parses selector text and raw declarations. Bad selectors drop the
// rule with a warning; bad declarations drop only themselves.
func (b *sheetBuilder) addRule(source, selectorText string, decls [][2]string, important []bool) {
	sels, err := ParseSelectors(selectorText)
	if err != nil {
		b.warn(source, selectorText, "", "", err.Error())
		return
	}
	var parsed []Declaration
	for i, kv := range decls {
		name, raw := kv[0], strings.TrimSpace(kv[1])
		imp := important != nil && important[i]
		if strings.HasSuffix(raw, "!important") {
			raw = strings.TrimSpace(strings.TrimSuffix(raw, "!important"))
			imp = true
		}
		props, raws, err := expand(name, raw)
		if err != nil {
			reason := err.Error()
			if stderrors.Is(err, errUnknownProperty) {
				reason = "unknown property"
			}
			b.warn(source, selectorText, name, raw, reason)
			continue
		}
		for j, p := range props {
			d := Declaration{Property: p, Important: imp}
			switch strings.ToLower(raws[j]) {
			case "inherit":
				d.Inherit = true
			case "initial":
				d.Initial = true
			default:
				v, err := p.Parse(raws[j])
				if err != nil {
					b.warn(source, selectorText, p.Name, raws[j], err.Error())
					continue
				}
				d.Value = v
			}
			parsed = append(parsed, d)
		}
	}
	order := len(b.sheet.rules)
	for _, sel := range sels {
		b.sheet.rules = append(b.sheet.rules, &Rule{Selector: sel, Declarations: parsed, Order: order, Source: source})
	}
}

func (b *sheetBuilder) setVersion(source, v string) error {
	v = strings.Trim(strings.TrimSpace(v), `"'`)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return &errors.LatticeError{Op: "style.Parse", Kind: errors.KindStyle, Err: fmt.Errorf("%s: invalid sheet version %q", source, v)}
	}
	if semver.Major(v) != SupportedMajor {
		return &errors.LatticeError{Op: "style.Parse", Kind: errors.KindStyle, Err: fmt.Errorf("%s: sheet version %s is not %s.x", source, v, SupportedMajor)}
	}
	if b.sheet.Version == "" || semver.Compare(v, b.sheet.Version) > 0 {
		b.sheet.Version = v
	}
	return nil
}

func (b *sheetBuilder) build() *Sheet {
	s := b.sheet
	s.byID = map[string][]*Rule{}
	s.byClass = map[string][]*Rule{}
	s.byType = map[string][]*Rule{}
	s.ancestorClasses = map[string]bool{}
	for _, r := range s.rules {
		sub := r.Selector.subject()
		switch {
		case sub.id != "":
			s.byID[sub.id] = append(s.byID[sub.id], r)
		case len(sub.classes) > 0:
			s.byClass[sub.classes[0]] = append(s.byClass[sub.classes[0]], r)
		case sub.typ != "":
			s.byType[sub.typ] = append(s.byType[sub.typ], r)
		default:
			s.universal = append(s.universal, r)
		}
		s.subjectFlags |= sub.flags
		for _, c := range r.Selector.parts[:len(r.Selector.parts)-1] {
			s.ancestorFlags |= c.flags
			for _, cl := range c.classes {
				s.ancestorClasses[cl] = true
			}
		}
	}
	return s
}

// candidates returns the rules whose subject could match an element with
// this identity, in declaration order.
func (s *Sheet) candidates(id *identity) []*Rule {
	out := slices.Clone(s.universal)
	if id != nil {
		if id.id != "" {
			out = append(out, s.byID[id.id]...)
		}
		for _, c := range id.classes {
			out = append(out, s.byClass[c]...)
		}
		if id.typ != "" {
			out = append(out, s.byType[id.typ]...)
		}
	}
	return out
}

// ParseCSS parses a CSS style sheet. Declarations the cascade cannot use are
// kept as warnings; only syntax errors and bad @version rules fail.
func ParseCSS(name, src string) (*Sheet, error) {
	b := newSheetBuilder(name)
	if err := b.addCSS(name, src); err != nil {
		return nil, err
	}
	return b.build(), nil
}

func (b *sheetBuilder) addCSS(source, src string) error {
	ss, err := parser.Parse(src)
	if err != nil {
		return &errors.LatticeError{Op: "style.ParseCSS", Kind: errors.KindStyle, Err: fmt.Errorf("%s: %w", source, err)}
	}
	return b.addCSSRules(source, ss.Rules)
}

func (b *sheetBuilder) addCSSRules(source string, rules []*css.Rule) error {
	for _, r := range rules {
		if r.Kind == css.AtRule {
			switch strings.TrimPrefix(strings.ToLower(r.Name), "@") {
			case "version":
				if err := b.setVersion(source, r.Prelude); err != nil {
					return err
				}
			default:
				b.warn(source, r.Name, "", r.Prelude, "unsupported at-rule")
			}
			continue
		}
		decls := make([][2]string, len(r.Declarations))
		important := make([]bool, len(r.Declarations))
		for i, d := range r.Declarations {
			decls[i] = [2]string{d.Property, d.Value}
			important[i] = d.Important
		}
		b.addRule(source, strings.Join(r.Selectors, ", "), decls, important)
	}
	return nil
}

// yamlSheet is the YAML form of a sheet:
//
//	version: 1.0.0
//	rules:
//	  - selector: .btn
//	    style:
//	      width: 100
type yamlSheet struct {
	Version string     `yaml:"version"`
	Rules   []yamlRule `yaml:"rules"`
}

type yamlRule struct {
	Selector string    `yaml:"selector"`
	Style    yaml.Node `yaml:"style"`
}

// ParseYAML parses a YAML style sheet.
func ParseYAML(name string, src []byte) (*Sheet, error) {
	b := newSheetBuilder(name)
	if err := b.addYAML(name, src); err != nil {
		return nil, err
	}
	return b.build(), nil
}

func (b *sheetBuilder) addYAML(source string, src []byte) error {
	var doc yamlSheet
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return &errors.LatticeError{Op: "style.ParseYAML", Kind: errors.KindStyle, Err: fmt.Errorf("%s: %w", source, err)}
	}
	if doc.Version != "" {
		if err := b.setVersion(source, doc.Version); err != nil {
			return err
		}
	}
	for _, r := range doc.Rules {
		if r.Style.Kind != yaml.MappingNode && r.Style.Kind != 0 {
			b.warn(source, r.Selector, "", "", "style must be a mapping")
			continue
		}
		// Walk the node so declaration order survives.
		var decls [][2]string
		for i := 0; i+1 < len(r.Style.Content); i += 2 {
			decls = append(decls, [2]string{r.Style.Content[i].Value, r.Style.Content[i+1].Value})
		}
		b.addRule(source, r.Selector, decls, nil)
	}
	return nil
}

// LoadFiles reads and merges sheets in order; later files win ties. The
// format is chosen by extension: .yaml/.yml, anything else is CSS.
func LoadFiles(name string, paths ...string) (*Sheet, error) {
	b := newSheetBuilder(name)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &errors.LatticeError{Op: "style.LoadFiles", Kind: errors.KindConfig, Err: err}
		}
		source := filepath.Base(path)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = b.addYAML(source, data)
		default:
			err = b.addCSS(source, string(data))
		}
		if err != nil {
			return nil, err
		}
	}
	return b.build(), nil
}
