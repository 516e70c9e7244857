package layout

import (
	"slices"

	"github.com/go-drift/lattice/pkg/entity"
)

// rootQueue collects the layout roots that need a solve this pass.
//
// Scheduling works with layout roots: when an entity is layout-dirty, the
// bridge walks up to the nearest root and schedules it here. Roots are
// solved parent first, and a root nested inside another scheduled root is
// dropped because the outer solve already covers it.
type rootQueue struct {
	entities *entity.Store
	roots    []entity.Entity
	set      map[entity.Entity]bool
}

func newRootQueue(entities *entity.Store) *rootQueue {
	return &rootQueue{entities: entities, set: make(map[entity.Entity]bool)}
}

// schedule adds a root. Duplicates are ignored.
func (q *rootQueue) schedule(root entity.Entity) {
	if q.set[root] {
		return
	}
	q.set[root] = true
	q.roots = append(q.roots, root)
}

// flush returns the scheduled roots in depth order (parents first) with
// covered roots removed, and resets the queue.
func (q *rootQueue) flush() []entity.Entity {
	roots := q.roots
	q.roots = nil
	set := q.set
	q.set = make(map[entity.Entity]bool)

	slices.SortStableFunc(roots, func(a, b entity.Entity) int {
		da, _ := q.entities.Depth(a)
		db, _ := q.entities.Depth(b)
		if da != db {
			return da - db
		}
		return q.entities.OrderOf(a) - q.entities.OrderOf(b)
	})

	out := roots[:0]
	for _, r := range roots {
		if !q.entities.Alive(r) {
			continue
		}
		covered := false
		anc, _ := q.entities.Ancestors(r)
		for _, a := range anc {
			if set[a] {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, r)
		}
	}
	return out
}

// pending reports whether any root is scheduled.
func (q *rootQueue) pending() bool {
	return len(q.roots) > 0
}
