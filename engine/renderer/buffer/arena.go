package buffer

import (
	"fmt"
	"sync"
)

type slot[T any] struct {
	value      T
	desc       Descriptor
	generation uint32
	live       bool
}

// Arena owns backend buffer objects and hands out generation-checked Handles for them.
// Released slots are recycled; their generation is bumped so outstanding handles go stale.
type Arena[T any] struct {
	mu    *sync.Mutex
	slots []slot[T]
	free  []uint32
}

// NewArena creates an empty Arena.
//
// Returns:
//   - *Arena[T]: the new arena
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{
		mu: &sync.Mutex{},
	}
}

// Insert stores value and returns a fresh Handle for it.
//
// Parameters:
//   - value: the backend buffer object
//   - desc: the descriptor the buffer was created from
//
// Returns:
//   - Handle: the handle identifying value
func (a *Arena[T]) Insert(value T, desc Descriptor) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.free); n > 0 {
		index := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[index]
		s.value = value
		s.desc = desc
		s.live = true
		return Handle{index: index, generation: s.generation}
	}

	a.slots = append(a.slots, slot[T]{value: value, desc: desc, generation: 1, live: true})
	return Handle{index: uint32(len(a.slots) - 1), generation: 1}
}

// Get resolves a Handle.
//
// Parameters:
//   - h: the handle to resolve
//
// Returns:
//   - T: the stored buffer object
//   - Descriptor: the descriptor it was created from
//   - error: ErrInvalidHandle or ErrStaleHandle when h does not resolve
func (a *Arena[T]) Get(h Handle) (T, Descriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.lookup(h)
	if err != nil {
		var zero T
		return zero, Descriptor{}, err
	}
	return s.value, s.desc, nil
}

// Remove releases the slot behind h and returns the stored object so the caller can
// free the backend resource.
//
// Parameters:
//   - h: the handle to release
//
// Returns:
//   - T: the object that was stored
//   - error: ErrInvalidHandle or ErrStaleHandle when h does not resolve
func (a *Arena[T]) Remove(h Handle) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	s, err := a.lookup(h)
	if err != nil {
		return zero, err
	}
	value := s.value
	s.value = zero
	s.live = false
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	a.free = append(a.free, h.index)
	return value, nil
}

// Len returns the number of live handles.
func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots) - len(a.free)
}

// Drain removes every live entry and returns the stored objects.
//
// Returns:
//   - []T: the objects that were live
func (a *Arena[T]) Drain() []T {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	out := make([]T, 0, len(a.slots)-len(a.free))
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		out = append(out, s.value)
		s.value = zero
		s.live = false
		s.generation++
		if s.generation == 0 {
			s.generation = 1
		}
		a.free = append(a.free, uint32(i))
	}
	return out
}

func (a *Arena[T]) lookup(h Handle) (*slot[T], error) {
	if h.IsZero() || int(h.index) >= len(a.slots) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	s := &a.slots[h.index]
	if !s.live || s.generation != h.generation {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return s, nil
}
