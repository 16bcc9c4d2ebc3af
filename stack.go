package srvcore

import (
	"github.com/llxisdsh/srvcore/internal/opt"
)

// Stack is a lock-free LIFO safe for any number of concurrent pushers and
// poppers.
//
// Nodes come from a per-stack arena and are recycled through a lock-free
// free list, so steady-state Push and TryPop do not allocate. Both lists use
// version-tagged heads, which defeats the ABA problem caused by recycling.
// A popped value is cleared from its node before the node is recycled, so
// the stack holds no reference to values it has handed out.
//
// The zero value is an empty stack ready to use.
type Stack[T any] struct {
	_     noCopy
	top   taggedHead
	_     opt.Pad_
	free  taggedHead
	_     opt.Pad_
	arena nodeArena[T]
}

// NewStack creates an empty Stack.
func NewStack[T any]() *Stack[T] {
	return &Stack[T]{}
}

// Push puts v on top of the stack. It never blocks.
func (s *Stack[T]) Push(v T) {
	idx := unlink(&s.free, &s.arena)
	if idx == 0 {
		idx = s.arena.grow()
	}
	// The node is private until link publishes it.
	s.arena.at(idx).value = v
	link(&s.top, &s.arena, idx)
}

// TryPop removes and returns the top element. ok is false if the stack
// was empty.
func (s *Stack[T]) TryPop() (v T, ok bool) {
	idx := unlink(&s.top, &s.arena)
	if idx == 0 {
		return v, false
	}
	n := s.arena.at(idx)
	v = n.value
	var zero T
	n.value = zero
	link(&s.free, &s.arena, idx)
	return v, true
}

// Empty reports whether the stack had no elements at the moment of the call.
func (s *Stack[T]) Empty() bool {
	return s.top.empty()
}

// Nodes reports how many nodes the stack has allocated so far. Nodes are
// recycled, so this tracks peak occupancy rather than total pushes.
func (s *Stack[T]) Nodes() int {
	return int(s.arena.allocated())
}
