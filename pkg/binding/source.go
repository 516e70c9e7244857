package binding

import "slices"

// Source is an observable application value. Writes are coalesced per
// tick: however many times Set runs before the next flush, every live
// binding sees only the latest value, once.
//
// Source is not thread-safe. Writes from other goroutines must be marshaled
// onto the scheduler goroutine (see engine.Engine.Dispatch).
type Source[T any] struct {
	reg     *Registry
	value   T
	subs    []*Binding
	pending bool
	closed  bool
}

// NewSource creates a source holding initial.
func NewSource[T any](r *Registry, initial T) *Source[T] {
	return &Source[T]{reg: r, value: initial}
}

// Get returns the latest value written.
func (s *Source[T]) Get() T {
	return s.value
}

// Set stores v and schedules delivery to every binding on the next flush.
// Set on a closed source is a no-op.
func (s *Source[T]) Set(v T) {
	if s.closed {
		return
	}
	s.value = v
	for _, b := range s.subs {
		b.state = PendingNotify
	}
	if !s.pending {
		s.pending = true
		s.reg.queueSource(s)
	}
}

// Update applies transform to the current value and sets the result.
func (s *Source[T]) Update(transform func(T) T) {
	if s.closed {
		return
	}
	s.Set(transform(s.value))
}

// Bindings returns the number of live bindings.
func (s *Source[T]) Bindings() int {
	return len(s.subs)
}

// Close destroys every binding on the source and drops pending delivery.
func (s *Source[T]) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.pending = false
	for _, b := range slices.Clone(s.subs) {
		s.reg.destroy(b)
	}
	s.subs = nil
}

// Closed reports whether Close was called.
func (s *Source[T]) Closed() bool {
	return s.closed
}

func (s *Source[T]) detach(b *Binding) {
	s.subs = slices.DeleteFunc(s.subs, func(x *Binding) bool { return x == b })
}

func (s *Source[T]) dirty() bool          { return s.pending }
func (s *Source[T]) clearDirty()          { s.pending = false }
func (s *Source[T]) bindings() []*Binding { return s.subs }
