package srvcore

import (
	"sync/atomic"
	"time"
)

// waitList parks goroutines until a 32-bit word changes. It is the
// futex-style wait/notify used by Lock.
//
// A waiter publishes (or joins) the current generation channel and only then
// re-reads the word. A waker stores the word first and then retires the
// channel. With sequentially consistent atomics, either the waker sees the
// channel and closes it, or the waiter sees the new word and does not park,
// so a wake-up is never lost.
//
// Wake-ups may be spurious; callers re-check their condition.
type waitList struct {
	ch atomic.Pointer[chan struct{}]
}

// wait blocks while word still holds old, until wakeAll is called or the
// deadline passes. It reports false only when the deadline has passed.
func (w *waitList) wait(word *atomic.Uint32, old uint32, deadline time.Time) bool {
	p := w.ch.Load()
	if p == nil {
		c := make(chan struct{})
		if w.ch.CompareAndSwap(nil, &c) {
			p = &c
		} else if p = w.ch.Load(); p == nil {
			// Installed and retired by others in between: a wake happened.
			return true
		}
	}
	if word.Load() != old {
		return true
	}

	d := time.Until(deadline)
	if d <= 0 {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-*p:
		return true
	case <-t.C:
		return false
	}
}

// wakeAll releases every goroutine parked in wait.
func (w *waitList) wakeAll() {
	if w.ch.Load() == nil {
		return
	}
	if p := w.ch.Swap(nil); p != nil {
		close(*p)
	}
}
