package srvcore

import (
	"sync/atomic"
)

// TicketLock is a fair, FIFO (First-In-First-Out) spin-lock.
//
// It guards the short critical sections inside this package: the parked
// consumer list of BlockingQueue, the ring of LockQueue, and the worker
// bookkeeping of ThreadManager. Unlike sync.Mutex, which allows "barging",
// goroutines acquire the lock in the exact order they called Lock().
//
// Implementation:
// It uses the classic "ticket" algorithm.
//   - Lock(): Takes a ticket number. Spins/Sleeps until `serving` == `my_ticket`.
//   - Unlock(): Increments `serving`, allowing the next ticket holder to proceed.
//
// Under high contention with long critical sections it can suffer from
// lock convoys, so it is only used where the section touches a few fields.
type TicketLock struct {
	_       noCopy
	next    atomic.Uint32
	serving atomic.Uint32
}

// Lock acquires the lock. Blocks until the lock is available.
func (m *TicketLock) Lock() {
	my := m.next.Add(1) - 1
	var spins int
	for {
		if m.serving.Load() == my {
			return
		}
		delay(&spins)
	}
}

// TryLock acquires the lock only if no one holds or waits for it.
func (m *TicketLock) TryLock() bool {
	s := m.serving.Load()
	return m.next.CompareAndSwap(s, s+1)
}

// Unlock releases the lock.
func (m *TicketLock) Unlock() {
	m.serving.Add(1)
}
