// Package scene builds view trees from YAML descriptions.
//
// A scene file lists views under the window root:
//
//	name: inbox
//	views:
//	  - type: column
//	    id: main
//	    classes: [panel]
//	    style:
//	      width: 320
//	    children:
//	      - type: label
//	        text: Hello
//	      - type: button
//	        text: Send
//	        focusable: true
//
// Style entries are inline declarations parsed with the same property
// parsers as style sheets.
package scene

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/go-drift/lattice/pkg/engine"
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/errors"
	"github.com/go-drift/lattice/pkg/style"
)

// Scene is a parsed scene file.
type Scene struct {
	Name  string `yaml:"name"`
	Views []View `yaml:"views"`

	source string
}

// View describes one entity and its subtree.
type View struct {
	Type      string            `yaml:"type"`
	ID        string            `yaml:"id,omitempty"`
	Classes   []string          `yaml:"classes,omitempty"`
	Text      string            `yaml:"text,omitempty"`
	Style     map[string]string `yaml:"style,omitempty"`
	Focusable bool              `yaml:"focusable,omitempty"`
	Disabled  bool              `yaml:"disabled,omitempty"`
	Hidden    bool              `yaml:"hidden,omitempty"`
	Children  []View            `yaml:"children,omitempty"`

	line int
}

// UnmarshalYAML records the source line of each view for error messages.
func (v *View) UnmarshalYAML(node *yaml.Node) error {
	type plain View
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*v = View(p)
	v.line = node.Line
	return nil
}

// Parse decodes a scene. source names the input in errors. Unknown
// top-level keys are rejected and view ids must be unique.
func Parse(source string, data []byte) (*Scene, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	s := &Scene{source: source}
	if err := dec.Decode(s); err != nil {
		return nil, sceneError("scene.Parse", fmt.Errorf("%s: %w", source, err))
	}
	seen := make(map[string]int)
	var check func(views []View) error
	check = func(views []View) error {
		for _, v := range views {
			if v.ID != "" {
				if prev, ok := seen[v.ID]; ok {
					return fmt.Errorf("%s:%d: duplicate id %q (first at line %d)", source, v.line, v.ID, prev)
				}
				seen[v.ID] = v.line
			}
			if err := check(v.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(s.Views); err != nil {
		return nil, sceneError("scene.Parse", err)
	}
	return s, nil
}

// LoadFile reads and parses a scene file.
func LoadFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sceneError("scene.LoadFile", err)
	}
	return Parse(path, data)
}

// Built maps scene ids to the entities created for them.
type Built struct {
	Roots []entity.Entity
	ids   map[string]entity.Entity
}

// Lookup returns the entity created for id.
func (b *Built) Lookup(id string) (entity.Entity, bool) {
	e, ok := b.ids[id]
	return e, ok
}

// MustLookup is Lookup that panics on unknown ids.
func (b *Built) MustLookup(id string) entity.Entity {
	e, ok := b.ids[id]
	if !ok {
		panic(fmt.Sprintf("scene: no view with id %q", id))
	}
	return e
}

// Build creates the scene's views under parent (the root when null). On
// error the views created so far are removed again.
func (s *Scene) Build(e *engine.Engine, parent entity.Entity) (*Built, error) {
	b := &Built{ids: make(map[string]entity.Entity)}
	for _, v := range s.Views {
		root, err := s.build(e, parent, v, b)
		if !root.IsNull() {
			b.Roots = append(b.Roots, root)
		}
		if err != nil {
			for _, r := range b.Roots {
				_ = e.Remove(r)
			}
			return nil, err
		}
	}
	return b, nil
}

func (s *Scene) build(e *engine.Engine, parent entity.Entity, v View, b *Built) (entity.Entity, error) {
	fail := func(err error) error {
		return sceneError("scene.Build", fmt.Errorf("%s:%d: %w", s.source, v.line, err))
	}
	ent, err := e.View(parent, v.Type, v.Classes...)
	if err != nil {
		return entity.Null, fail(err)
	}
	styles := e.Styles()
	if v.ID != "" {
		if err := styles.SetID(ent, v.ID); err != nil {
			return ent, fail(err)
		}
		b.ids[v.ID] = ent
	}
	if v.Text != "" {
		if err := styles.SetProperty(ent, style.Content, style.Text(v.Text)); err != nil {
			return ent, fail(err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(v.Style)) {
		if err := styles.SetPropertyString(ent, name, v.Style[name]); err != nil {
			return ent, fail(err)
		}
	}
	for flag, on := range map[entity.Flags]bool{
		entity.Focusable: v.Focusable,
		entity.Disabled:  v.Disabled,
		entity.Hidden:    v.Hidden,
	} {
		if !on {
			continue
		}
		if err := e.Entities().SetFlags(ent, flag, true); err != nil {
			return ent, fail(err)
		}
	}
	for _, c := range v.Children {
		if _, err := s.build(e, ent, c, b); err != nil {
			return ent, err
		}
	}
	return ent, nil
}

func sceneError(op string, err error) *errors.LatticeError {
	return &errors.LatticeError{Op: op, Kind: errors.KindConfig, Err: err}
}
