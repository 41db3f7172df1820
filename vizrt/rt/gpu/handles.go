package gpu

import "fmt"

// Handle names a resource owned by a Device. Handles carry a generation so
// a stale handle to a destroyed and reused slot is rejected. The zero Handle
// is never a valid resource; as a render target it means the screen.
type Handle struct {
	index uint32 // slot+1
	gen   uint32
}

func (h Handle) IsZero() bool { return h == Handle{} }

func (h Handle) String() string {
	if h.IsZero() {
		return "Handle(screen)"
	}
	return fmt.Sprintf("Handle(%d@%d)", h.index-1, h.gen)
}

type arenaSlot[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Arena stores values addressed by generation-checked handles. Freed slots
// are reused with a bumped generation.
type Arena[T any] struct {
	slots []arenaSlot[T]
	free  []uint32
	live  int
}

func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, arenaSlot[T]{})
	}
	s := &a.slots[idx]
	s.gen++
	s.value = v
	s.live = true
	a.live++
	return Handle{index: idx + 1, gen: s.gen}
}

func (a *Arena[T]) slot(h Handle) *arenaSlot[T] {
	if h.index == 0 || int(h.index) > len(a.slots) {
		return nil
	}
	s := &a.slots[h.index-1]
	if !s.live || s.gen != h.gen {
		return nil
	}
	return s
}

func (a *Arena[T]) Get(h Handle) (T, bool) {
	if s := a.slot(h); s != nil {
		return s.value, true
	}
	var zero T
	return zero, false
}

// Ptr returns a pointer into the arena, valid until the next Insert.
func (a *Arena[T]) Ptr(h Handle) (*T, bool) {
	if s := a.slot(h); s != nil {
		return &s.value, true
	}
	return nil, false
}

func (a *Arena[T]) Contains(h Handle) bool { return a.slot(h) != nil }

func (a *Arena[T]) Remove(h Handle) (T, bool) {
	s := a.slot(h)
	if s == nil {
		var zero T
		return zero, false
	}
	v := s.value
	var zero T
	s.value = zero
	s.live = false
	a.free = append(a.free, h.index-1)
	a.live--
	return v, true
}

// Len is the number of live entries.
func (a *Arena[T]) Len() int { return a.live }

func (a *Arena[T]) Each(fn func(Handle, *T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.live {
			fn(Handle{index: uint32(i) + 1, gen: s.gen}, &s.value)
		}
	}
}
