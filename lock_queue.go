package srvcore

// LockQueue is an unbounded FIFO queue guarded by a single lock, for call
// sites where contention is low and lock-free machinery is not worth it.
//
// Elements live in a power-of-two ring that doubles when full; popped slots
// are cleared so the queue does not retain values it handed out.
//
// The zero value is an empty queue ready to use.
type LockQueue[T any] struct {
	_    noCopy
	mu   TicketLock
	ring []T
	head int
	n    int
}

const lockQueueMinCap = 16

// NewLockQueue creates an empty LockQueue with room for capacity elements
// before its first resize.
func NewLockQueue[T any](capacity int) *LockQueue[T] {
	q := &LockQueue[T]{}
	if capacity > 0 {
		q.ring = make([]T, nextPowOf2(capacity))
	}
	return q
}

// Push appends v.
func (q *LockQueue[T]) Push(v T) {
	q.mu.Lock()
	if q.n == len(q.ring) {
		q.grow()
	}
	q.ring[(q.head+q.n)&(len(q.ring)-1)] = v
	q.n++
	q.mu.Unlock()
}

// TryPop removes and returns the front element. ok is false if the queue
// was empty.
func (q *LockQueue[T]) TryPop() (v T, ok bool) {
	q.mu.Lock()
	if q.n == 0 {
		q.mu.Unlock()
		return v, false
	}
	var zero T
	v = q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) & (len(q.ring) - 1)
	q.n--
	q.mu.Unlock()
	return v, true
}

// PopAll removes every element and returns them in FIFO order.
func (q *LockQueue[T]) PopAll() []T {
	q.mu.Lock()
	out := make([]T, q.n)
	for i := range out {
		out[i] = q.ring[(q.head+i)&(len(q.ring)-1)]
	}
	q.reset()
	q.mu.Unlock()
	return out
}

// Clear drops every element.
func (q *LockQueue[T]) Clear() {
	q.mu.Lock()
	q.reset()
	q.mu.Unlock()
}

// Len returns the number of queued elements.
func (q *LockQueue[T]) Len() int {
	q.mu.Lock()
	n := q.n
	q.mu.Unlock()
	return n
}

// grow doubles the ring, unwrapping it so the front is at index 0.
// Must be called with mu held.
func (q *LockQueue[T]) grow() {
	size := max(len(q.ring)*2, lockQueueMinCap)
	ring := make([]T, size)
	if q.n > 0 {
		k := copy(ring, q.ring[q.head:])
		copy(ring[k:], q.ring[:q.head])
	}
	q.ring = ring
	q.head = 0
}

// reset must be called with mu held.
func (q *LockQueue[T]) reset() {
	clear(q.ring)
	q.head = 0
	q.n = 0
}

// nextPowOf2 calculates the smallest power of 2 that is greater than or equal
// to n.
//
//go:nosplit
func nextPowOf2(n int) int {
	if n <= 0 {
		return 1
	}
	v := n - 1
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	if intSize == 64 {
		v |= v >> 32
	}
	return v + 1
}

const intSize = 32 << (^uint(0) >> 63) // 32 or 64
