package entity

// MarkDirty sets bits on e. Marking is idempotent within a frame.
func (s *Store) MarkDirty(e Entity, bits Dirty) error {
	if s.rec(e) == nil {
		return stale("entity.Store.MarkDirty", e)
	}
	s.markDirty(e, bits)
	return nil
}

func (s *Store) markDirty(e Entity, bits Dirty) {
	r := s.rec(e)
	if r == nil || bits == 0 {
		return
	}
	if r.dirty == 0 {
		s.pending = append(s.pending, e)
	}
	r.dirty |= bits
}

// DirtyOf returns e's dirty bits. Stale handles report clean.
func (s *Store) DirtyOf(e Entity) Dirty {
	if r := s.rec(e); r != nil {
		return r.dirty
	}
	return 0
}

// ClearDirty clears bits on e.
func (s *Store) ClearDirty(e Entity, bits Dirty) {
	if r := s.rec(e); r != nil {
		r.dirty &^= bits
	}
}

// HasDirty reports whether any live entity has a bit of mask set.
func (s *Store) HasDirty(mask Dirty) bool {
	for _, e := range s.pending {
		if r := s.rec(e); r != nil && r.dirty&mask != 0 {
			return true
		}
	}
	return false
}

// Dirtied returns live entities with a bit of mask set, in pre-order,
// without clearing anything.
func (s *Store) Dirtied(mask Dirty) []Entity {
	var out []Entity
	seen := make(map[Entity]struct{})
	for _, e := range s.pending {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		if r := s.rec(e); r != nil && r.dirty&mask != 0 {
			out = append(out, e)
		}
	}
	s.SortPreOrder(out)
	return out
}

// TakeDirty returns live entities with a bit of mask set, in pre-order, and
// clears those bits. Entities left with other bits stay pending.
func (s *Store) TakeDirty(mask Dirty) []Entity {
	var out []Entity
	seen := make(map[Entity]struct{})
	kept := s.pending[:0]
	for _, e := range s.pending {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		r := s.rec(e)
		if r == nil || r.dirty == 0 {
			continue
		}
		if r.dirty&mask != 0 {
			out = append(out, e)
			r.dirty &^= mask
		}
		if r.dirty != 0 {
			kept = append(kept, e)
		}
	}
	clear(s.pending[len(kept):])
	s.pending = kept
	s.SortPreOrder(out)
	return out
}
