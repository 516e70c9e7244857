package entity

import (
	"math"
	"testing"

	"github.com/go-drift/lattice/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T) (*Store, Entity, Entity, Entity, Entity) {
	t.Helper()
	s := NewStore()
	root, err := s.CreateRoot()
	require.NoError(t, err)
	a, err := s.Create(root)
	require.NoError(t, err)
	b, err := s.Create(root)
	require.NoError(t, err)
	a1, err := s.Create(a)
	require.NoError(t, err)
	return s, root, a, b, a1
}

func TestCreateAndTraverse(t *testing.T) {
	s, root, a, b, a1 := buildTree(t)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, root, s.Root())

	kids, err := s.Children(root)
	require.NoError(t, err)
	assert.Equal(t, []Entity{a, b}, kids)

	order, err := s.PreOrder(root)
	require.NoError(t, err)
	assert.Equal(t, []Entity{root, a, a1, b}, order)

	d, err := s.Depth(a1)
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	anc, err := s.Ancestors(a1)
	require.NoError(t, err)
	assert.Equal(t, []Entity{a, root}, anc)

	assert.Less(t, s.OrderOf(a1), s.OrderOf(b))
	assert.True(t, s.IsAncestor(root, a1))
	assert.False(t, s.IsAncestor(b, a1))

	seq, err := s.EachChild(root)
	require.NoError(t, err)
	var seen []Entity
	for c := range seq {
		seen = append(seen, c)
	}
	assert.Equal(t, kids, seen)
}

func TestSecondRootRejected(t *testing.T) {
	s := NewStore()
	_, err := s.CreateRoot()
	require.NoError(t, err)
	_, err = s.CreateRoot()
	assert.ErrorIs(t, err, errors.ErrRootExists)
}

func TestRemoveMakesHandlesStale(t *testing.T) {
	s, root, a, b, a1 := buildTree(t)

	var hooked []Entity
	s.OnRemove(func(removed []Entity) { hooked = append(hooked, removed...) })

	removed, err := s.Remove(a)
	require.NoError(t, err)
	assert.Equal(t, []Entity{a, a1}, removed)
	assert.Equal(t, removed, hooked)

	for _, e := range removed {
		assert.False(t, s.Alive(e))
		_, err := s.Children(e)
		assert.True(t, errors.IsStale(err), "children of %v", e)
		_, err = s.Create(e)
		assert.True(t, errors.IsStale(err))
		assert.True(t, errors.IsStale(s.MarkDirty(e, DirtyStyle)))
		assert.True(t, errors.IsStale(s.SetFlags(e, Hovered, true)))
		_, err = s.Remove(e)
		assert.True(t, errors.IsStale(err))
	}

	kids, err := s.Children(root)
	require.NoError(t, err)
	assert.Equal(t, []Entity{b}, kids)
	assert.Equal(t, 2, s.Len())
}

func TestSlotReuseBumpsGeneration(t *testing.T) {
	s, root, a, _, _ := buildTree(t)
	_, err := s.Remove(a)
	require.NoError(t, err)

	fresh, err := s.Create(root)
	require.NoError(t, err)
	assert.True(t, s.Alive(fresh))
	assert.False(t, s.Alive(a))
	assert.NotEqual(t, a, fresh)
}

func TestExhaustedSlotIsRetired(t *testing.T) {
	s, root, a, _, _ := buildTree(t)
	_, err := s.Remove(a)
	require.NoError(t, err)
	// Fast-forward the next slot to be reused to its last generation.
	idx := s.free[len(s.free)-1]
	s.records[idx].gen = math.MaxUint32
	last, err := s.Create(root)
	require.NoError(t, err)
	require.Equal(t, idx, last.index)
	require.Equal(t, uint32(math.MaxUint32), last.Generation())
	before := s.Len()

	_, err = s.Remove(last)
	require.NoError(t, err)
	assert.Equal(t, before-1, s.Len())
	assert.False(t, s.Alive(last))

	for range 3 {
		e, err := s.Create(root)
		require.NoError(t, err)
		assert.NotEqual(t, idx, e.index, "a retired slot is never reissued")
	}
	assert.Equal(t, before+2, s.Len())
	assert.False(t, s.Alive(Entity{index: idx, gen: 1}))
}

func TestRemoveRootEmptiesTree(t *testing.T) {
	s, root, _, _, _ := buildTree(t)
	removed, err := s.Remove(root)
	require.NoError(t, err)
	assert.Len(t, removed, 4)
	assert.True(t, s.Root().IsNull())
	assert.Equal(t, 0, s.Len())

	_, err = s.CreateRoot()
	assert.NoError(t, err)
}

func TestReparent(t *testing.T) {
	s, root, a, b, a1 := buildTree(t)

	require.NoError(t, s.Reparent(a1, b, -1))
	parent, err := s.Parent(a1)
	require.NoError(t, err)
	assert.Equal(t, b, parent)
	d, _ := s.Depth(a1)
	assert.Equal(t, 2, d)

	order, _ := s.PreOrder(root)
	assert.Equal(t, []Entity{root, a, b, a1}, order)

	assert.ErrorIs(t, s.Reparent(b, a1, 0), errors.ErrCycle)
	assert.ErrorIs(t, s.Reparent(root, a, 0), errors.ErrCycle)

	require.NoError(t, s.Reorder(b, 0))
	kids, _ := s.Children(root)
	assert.Equal(t, []Entity{b, a}, kids)
}

func TestFlagsAndHooks(t *testing.T) {
	s, _, a, _, _ := buildTree(t)

	var calls int
	s.OnFlagsChanged(func(e Entity, old, new Flags) {
		calls++
		assert.Equal(t, a, e)
	})

	require.NoError(t, s.SetFlags(a, Hovered|Active, true))
	assert.True(t, s.HasFlag(a, Hovered))
	assert.True(t, s.HasFlag(a, Hovered|Active))
	require.NoError(t, s.SetFlags(a, Hovered, true))
	require.NoError(t, s.SetFlags(a, Active, false))
	assert.Equal(t, 2, calls)

	f, err := s.Flags(a)
	require.NoError(t, err)
	assert.Equal(t, Hovered, f)
	assert.Equal(t, "hover", f.String())
}

func TestFlagByName(t *testing.T) {
	f, ok := FlagByName("HOVER")
	assert.True(t, ok)
	assert.Equal(t, Hovered, f)

	sel := CustomFlag("selected")
	require.NotZero(t, sel)
	assert.Equal(t, sel, CustomFlag("selected"))
	got, ok := FlagByName("selected")
	assert.True(t, ok)
	assert.Equal(t, sel, got)

	_, ok = FlagByName("nonsense")
	assert.False(t, ok)
}

func TestTakeDirtyOrdersAndClears(t *testing.T) {
	s, root, a, b, a1 := buildTree(t)
	s.TakeDirty(DirtyAll)
	assert.False(t, s.HasDirty(DirtyAll))

	require.NoError(t, s.MarkDirty(b, DirtyStyle))
	require.NoError(t, s.MarkDirty(a1, DirtyStyle|DirtyRedraw))
	require.NoError(t, s.MarkDirty(root, DirtyStyle))
	require.NoError(t, s.MarkDirty(a1, DirtyStyle))

	assert.Equal(t, []Entity{root, a1, b}, s.Dirtied(DirtyStyle))
	got := s.TakeDirty(DirtyStyle)
	assert.Equal(t, []Entity{root, a1, b}, got)
	assert.False(t, s.HasDirty(DirtyStyle))
	assert.True(t, s.HasDirty(DirtyRedraw))
	assert.Equal(t, DirtyRedraw, s.DirtyOf(a1))
	assert.Equal(t, Dirty(0), s.DirtyOf(a))

	_, err := s.Remove(a)
	require.NoError(t, err)
	assert.Equal(t, []Entity{root}, s.TakeDirty(DirtyRedraw))
}

func TestDirtyString(t *testing.T) {
	assert.Equal(t, "clean", Dirty(0).String())
	assert.Equal(t, "style|redraw", (DirtyStyle | DirtyRedraw).String())
}
