package accessibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/lattice/pkg/entity"
	"github.com/go-drift/lattice/pkg/graphics"
	"github.com/go-drift/lattice/pkg/style"
)

type rects map[entity.Entity]graphics.Rect

func (r rects) Bounds(e entity.Entity) (graphics.Rect, bool) {
	b, ok := r[e]
	return b, ok
}

func TestBuildSkipsHiddenSubtrees(t *testing.T) {
	es := entity.NewStore()
	root, err := es.CreateRoot()
	require.NoError(t, err)
	st := style.NewStore(es, style.EmptySheet())
	button, _ := es.Create(root)
	hidden, _ := es.Create(root)
	inner, _ := es.Create(hidden)
	geom := rects{
		root:   graphics.RectFromLTWH(0, 0, 100, 100),
		button: graphics.RectFromLTWH(10, 10, 40, 20),
		hidden: graphics.RectFromLTWH(0, 50, 10, 10),
		inner:  graphics.RectFromLTWH(0, 50, 5, 5),
	}
	require.NoError(t, st.SetType(button, "button"))
	require.NoError(t, st.SetProperty(button, style.Content, style.Text("OK")))
	require.NoError(t, es.SetFlags(hidden, entity.Hidden, true))
	require.NoError(t, es.SetFlags(button, entity.Focusable|entity.Focused, true))
	st.Resolve(es.TakeDirty(entity.DirtyStyle))

	snap := Build(es, st, geom, 2)
	require.Len(t, snap.Nodes, 2)
	assert.Equal(t, RoleWindow, snap.Nodes[0].Role)

	n, ok := snap.Find(button)
	require.True(t, ok)
	assert.Equal(t, RoleButton, n.Role)
	assert.Equal(t, "OK", n.Label)
	assert.Equal(t, graphics.RectFromLTWH(20, 20, 80, 40), n.Bounds)
	assert.Equal(t, root.String(), n.Parent)

	f, ok := snap.Focused()
	require.True(t, ok)
	assert.Equal(t, button, f.Entity)

	_, ok = snap.Find(inner)
	assert.False(t, ok)
}

func TestServiceExportsOnlyChanges(t *testing.T) {
	es := entity.NewStore()
	root, _ := es.CreateRoot()
	st := style.NewStore(es, style.EmptySheet())
	geom := rects{root: graphics.RectFromLTWH(0, 0, 10, 10)}

	var got []Snapshot
	svc := NewService(ExporterFunc(func(s Snapshot) { got = append(got, s) }))
	assert.True(t, svc.Flush(1, es, st, geom))
	assert.False(t, svc.Flush(2, es, st, geom))

	geom[root] = graphics.RectFromLTWH(0, 0, 20, 10)
	assert.True(t, svc.Flush(3, es, st, geom))
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[1].Tick)

	last, ok := svc.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(3), last.Tick)

	svc.SetEnabled(false)
	assert.False(t, svc.Flush(4, es, st, geom))
	svc.SetEnabled(true)
	assert.True(t, svc.Flush(5, es, st, geom), "re-enabling exports again")
	assert.Equal(t, uint64(3), svc.Exported())
}
