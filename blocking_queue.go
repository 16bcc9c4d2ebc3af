package srvcore

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/llxisdsh/srvcore/internal/opt"
)

// BlockingQueue is an unbounded FIFO queue with a blocking consumer side.
//
// Push and TryPop are lock-free (Michael-Scott linked queue). PopBlocking
// parks the consumer until an element arrives or its context is cancelled.
// The context is the cancellation token; WakeAll forces every parked
// consumer to re-check its context, which is how shutdown reaches consumers
// even when no further elements are pushed.
//
// Elements pushed by one goroutine are popped in push order, and everything
// written before a Push is visible to the goroutine that pops the element.
//
// The zero value is an empty queue ready to use.
type BlockingQueue[T any] struct {
	_    noCopy
	head atomic.Pointer[queueNode[T]]
	_    opt.Pad_
	tail atomic.Pointer[queueNode[T]]
	_    opt.Pad_

	// parked counts consumers in the waiter list; Push skips the list lock
	// when it is zero.
	parked atomic.Int32
	mu     TicketLock
	// first and last are protected by mu.
	first *popWaiter
	last  *popWaiter
}

type queueNode[T any] struct {
	next  atomic.Pointer[queueNode[T]]
	value T
}

// popWaiter is one parked PopBlocking call. ready is closed when a
// producer or WakeAll removes it from the list.
type popWaiter struct {
	ready chan struct{}
	// next and listed are protected by BlockingQueue.mu.
	next   *popWaiter
	listed bool
}

// NewBlockingQueue creates an empty BlockingQueue.
func NewBlockingQueue[T any]() *BlockingQueue[T] {
	q := &BlockingQueue[T]{}
	q.init()
	return q
}

// init installs the sentinel node on first use.
func (q *BlockingQueue[T]) init() {
	if q.tail.Load() != nil {
		return
	}
	if q.head.Load() == nil {
		n := &queueNode[T]{}
		if q.head.CompareAndSwap(nil, n) {
			q.tail.Store(n)
			return
		}
	}
	for q.tail.Load() == nil {
		runtime.Gosched()
	}
}

// Push appends v and wakes one parked consumer. It never blocks.
func (q *BlockingQueue[T]) Push(v T) {
	q.init()
	n := &queueNode[T]{value: v}
	var spin uint32
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// Swing the tail; a failure means another goroutine helped.
				q.tail.CompareAndSwap(tail, n)
				break
			}
		} else {
			// Tail is lagging behind; help it forward.
			q.tail.CompareAndSwap(tail, next)
		}
		spinYield(spin)
		spin++
	}

	if q.parked.Load() > 0 {
		q.wakeOne()
	}
}

// TryPop removes and returns the front element. ok is false if the queue
// was empty. The queue keeps a reference to the returned value until the
// next successful pop.
func (q *BlockingQueue[T]) TryPop() (v T, ok bool) {
	q.init()
	var spin uint32
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if next == nil {
			return v, false
		}
		if head == tail {
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		// next becomes the new sentinel. Its value is read before the CAS
		// and left in place: losers of the race may still be reading it.
		v = next.value
		if q.head.CompareAndSwap(head, next) {
			return v, true
		}
		spinYield(spin)
		spin++
	}
}

// Empty reports whether the queue had no elements at the moment of the call.
func (q *BlockingQueue[T]) Empty() bool {
	q.init()
	return q.head.Load().next.Load() == nil
}

// PopBlocking removes and returns the front element, waiting for one if the
// queue is empty. It returns ok == false, consuming nothing, once ctx is
// done and the queue is empty. An element whose Push completed before the
// cancellation is returned even if ctx is already done. As with TryPop,
// the queue keeps a reference to the returned value until the next pop.
func (q *BlockingQueue[T]) PopBlocking(ctx context.Context) (v T, ok bool) {
	for {
		if v, ok = q.TryPop(); ok {
			return v, true
		}
		if ctx.Err() != nil {
			return v, false
		}

		w := &popWaiter{ready: make(chan struct{})}
		q.park(w)

		// Re-check both conditions after registering, so a Push or a
		// cancellation that raced with park is not missed.
		if v, ok = q.TryPop(); ok {
			q.leave(w)
			return v, true
		}
		if ctx.Err() != nil {
			q.leave(w)
			return v, false
		}

		select {
		case <-w.ready:
			// Woken by Push or WakeAll; loop to re-check.
		case <-ctx.Done():
			// A Push that completed before the cancellation still wins.
			v, ok = q.TryPop()
			q.leave(w)
			return v, ok
		}
	}
}

// WakeAll wakes every consumer currently parked in PopBlocking. Each one
// re-checks the queue and its context.
func (q *BlockingQueue[T]) WakeAll() {
	q.mu.Lock()
	w := q.first
	q.first, q.last = nil, nil
	for w != nil {
		next := w.next
		w.next = nil
		w.listed = false
		q.parked.Add(-1)
		close(w.ready)
		w = next
	}
	q.mu.Unlock()
}

// Parked reports how many consumers are parked in PopBlocking.
func (q *BlockingQueue[T]) Parked() int {
	return int(q.parked.Load())
}

func (q *BlockingQueue[T]) park(w *popWaiter) {
	q.mu.Lock()
	w.listed = true
	if q.last == nil {
		q.first = w
	} else {
		q.last.next = w
	}
	q.last = w
	q.parked.Add(1)
	q.mu.Unlock()
}

// wakeOne releases the longest-parked consumer, if any.
func (q *BlockingQueue[T]) wakeOne() {
	q.mu.Lock()
	w := q.first
	if w != nil {
		q.first = w.next
		if q.first == nil {
			q.last = nil
		}
		w.next = nil
		w.listed = false
		q.parked.Add(-1)
		close(w.ready)
	}
	q.mu.Unlock()
}

// leave removes w from the list if it is still there. If a producer had
// already woken w, its consumer is returning without acting on that wake-up,
// so it is passed on while the queue still holds elements.
func (q *BlockingQueue[T]) leave(w *popWaiter) {
	q.mu.Lock()
	if !w.listed {
		q.mu.Unlock()
		if !q.Empty() {
			q.wakeOne()
		}
		return
	}
	var prev *popWaiter
	for cur := q.first; cur != nil; prev, cur = cur, cur.next {
		if cur != w {
			continue
		}
		if prev == nil {
			q.first = cur.next
		} else {
			prev.next = cur.next
		}
		if q.last == cur {
			q.last = prev
		}
		break
	}
	w.next = nil
	w.listed = false
	q.parked.Add(-1)
	q.mu.Unlock()
}
