// Package accessibility builds read-only snapshots of the entity tree for
// screen reader bridges. A snapshot is produced at the end of a tick and
// handed to an Exporter; the exporter never touches the live tree.
package accessibility

import (
	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

// Role is the semantic role reported for a node.
type Role string

const (
	RoleWindow    Role = "window"
	RoleGroup     Role = "group"
	RoleButton    Role = "button"
	RoleText      Role = "text"
	RoleCheckbox  Role = "checkbox"
	RoleTextField Role = "textfield"
	RoleImage     Role = "image"
)

// rolesByType maps selector type names to roles.
var rolesByType = map[string]Role{
	"button":    RoleButton,
	"label":     RoleText,
	"text":      RoleText,
	"checkbox":  RoleCheckbox,
	"input":     RoleTextField,
	"textfield": RoleTextField,
	"image":     RoleImage,
	"img":       RoleImage,
}

// Node describes one visible entity.
type Node struct {
	Entity entity.Entity `json:"-"`
	ID     string        `json:"id"`
	Parent string        `json:"parent,omitempty"`
	Role   Role          `json:"role"`
	Label  string        `json:"label,omitempty"`
	Bounds graphics.Rect `json:"bounds"`
	Flags  entity.Flags  `json:"-"`
	States string        `json:"states,omitempty"`
}

// Snapshot is the accessible tree in pre-order.
type Snapshot struct {
	Tick  uint64 `json:"tick"`
	Nodes []Node `json:"nodes"`
}

// Find returns the node for e.
func (s Snapshot) Find(e entity.Entity) (Node, bool) {
	for _, n := range s.Nodes {
		if n.Entity == e {
			return n, true
		}
	}
	return Node{}, false
}

// Focused returns the focused node, if any.
func (s Snapshot) Focused() (Node, bool) {
	for _, n := range s.Nodes {
		if n.Flags&entity.Focused != 0 {
			return n, true
		}
	}
	return Node{}, false
}

// Exporter receives snapshots. Export runs on the scheduler goroutine and
// must not block.
type Exporter interface {
	Export(Snapshot)
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func(Snapshot)

// Export implements Exporter.
func (f ExporterFunc) Export(s Snapshot) { f(s) }

// Geometry supplies solved bounds.
type Geometry interface {
	Bounds(e entity.Entity) (graphics.Rect, bool)
}

// Build walks the tree from the root. Hidden entities and entities whose
// computed style is invisible are skipped with their subtrees, as are
// entities without geometry. Bounds are multiplied by scale.
func Build(entities *entity.Store, styles *style.Store, geometry Geometry, scale float64) Snapshot {
	var snap Snapshot
	root := entities.Root()
	if root.IsNull() {
		return snap
	}
	if scale <= 0 {
		scale = 1
	}
	_ = entities.Walk(root, func(e entity.Entity) bool {
		flags, _ := entities.Flags(e)
		if flags&entity.Hidden != 0 {
			return false
		}
		c, _ := styles.Computed(e)
		if !c.Visible() {
			return false
		}
		r, ok := geometry.Bounds(e)
		if !ok {
			return false
		}
		n := Node{
			Entity: e,
			ID:     e.String(),
			Role:   roleOf(styles, e, e == root),
			Label:  c.Text(style.Content),
			Bounds: r.Scale(scale),
			Flags:  flags,
		}
		if flags != 0 {
			n.States = flags.String()
		}
		if p, _ := entities.Parent(e); !p.IsNull() {
			n.Parent = p.String()
		}
		snap.Nodes = append(snap.Nodes, n)
		return true
	})
	return snap
}

func roleOf(styles *style.Store, e entity.Entity, isRoot bool) Role {
	if isRoot {
		return RoleWindow
	}
	typ, err := styles.Type(e)
	if err != nil {
		return RoleGroup
	}
	if r, ok := rolesByType[typ]; ok {
		return r
	}
	return RoleGroup
}
