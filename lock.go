package srvcore

import (
	"sync/atomic"
	"time"
)

// Lock is a reentrant reader-writer lock built on a single 32-bit word.
//
// State word:
//
//	bits  0..15: shared reader count
//	bits 16..31: Identity of the writer, NoIdentity when unowned
//
// The writer may re-acquire the write lock and may take nested read locks;
// no other goroutine can acquire either mode while it holds the lock.
// Acquisition spins on CAS for a bounded number of attempts and then parks
// until the word changes. An acquisition that takes longer than the
// configured timeout is treated as a deadlock and raises FaultLockTimeout.
//
// Misuse (unlocking while nested reads are held, unlocking more often
// than locking, saturating the reader count) is fatal.
//
// Identities: a goroutine is issued one on its first WriteLock or
// TryWriteLock and keeps it for good. Read locks never issue one, so
// short-lived readers do not use up the identity space. Every distinct
// writer goroutine does, so long-running servers should write from a
// bounded set of long-lived workers. Registry.Forget releases the slot but
// not the number.
//
// Cost: every call looks up the calling goroutine by parsing
// runtime.Stack, which takes on the order of a microsecond. The guards
// returned by Write and Read look the identity up once for the acquire and
// the release.
//
// Policy: neither mode has priority. A writer can only claim the lock from
// the fully empty word, and readers back off while any writer is set.
//
// The zero value is ready to use with the compile-time policy and the
// default registry.
type Lock struct {
	_     noCopy
	state atomic.Uint32

	// writeCount is the write recursion depth. Only the goroutine whose
	// identity is in the writer field reads or writes it.
	writeCount uint32

	waiters waitList
	cfg     LockConfig
}

const (
	readCountMask    = 0x0000FFFF
	writeThreadMask  = 0xFFFF0000
	writeThreadShift = 16
	emptyFlag        = 0
)

// NewLock creates a Lock with the given options.
//
// Usage:
//
//	l := NewLock(WithAcquireTimeout(time.Second), WithSpinCount(256))
func NewLock(options ...func(*LockConfig)) *Lock {
	l := &Lock{}
	for _, o := range options {
		o(&l.cfg)
	}
	return l
}

// owner returns the writer field of s.
//
//go:nosplit
func owner(s uint32) Identity {
	return Identity((s & writeThreadMask) >> writeThreadShift)
}

// WriteLock acquires the lock exclusively. It is reentrant: each call must
// be matched by a WriteUnlock. A goroutine without an identity is issued one.
func (l *Lock) WriteLock() {
	l.writeLock(l.cfg.identities().Current())
}

func (l *Lock) writeLock(tid Identity) {
	if owner(l.state.Load()) == tid {
		l.writeCount++
		return
	}

	deadline := time.Now().Add(l.cfg.timeout())
	desired := (uint32(tid) << writeThreadShift) & writeThreadMask
	spins := l.cfg.spins()
	for {
		for spin := uint32(0); spin < spins; spin++ {
			if l.state.CompareAndSwap(emptyFlag, desired) {
				l.writeCount++
				return
			}
			spinYield(spin)
		}

		if !time.Now().Before(deadline) {
			fatal(FaultLockTimeout, tid)
		}

		// Wait until the value changes.
		if observed := l.state.Load(); observed != emptyFlag {
			l.waiters.wait(&l.state, observed, deadline)
		}
	}
}

// TryWriteLock makes a single attempt to acquire the lock exclusively.
// It succeeds reentrantly for the current writer.
func (l *Lock) TryWriteLock() bool {
	tid := l.cfg.identities().Current()
	if owner(l.state.Load()) == tid {
		l.writeCount++
		return true
	}
	desired := (uint32(tid) << writeThreadShift) & writeThreadMask
	if l.state.CompareAndSwap(emptyFlag, desired) {
		l.writeCount++
		return true
	}
	return false
}

// WriteUnlock releases one level of the write lock. The lock is handed back
// once the outermost WriteLock is released. All nested read locks must be
// released first.
func (l *Lock) WriteUnlock() {
	tid, _ := l.cfg.identities().lookup()
	l.writeUnlock(tid)
}

func (l *Lock) writeUnlock(tid Identity) {
	s := l.state.Load()
	// A goroutine without an identity can never be the writer.
	if tid == NoIdentity || owner(s) != tid {
		fatal(FaultMultipleUnlock, tid)
	}
	// Nested reads must unwind before the writer does.
	if s&readCountMask != 0 {
		fatal(FaultInvalidUnlockOrder, tid)
	}

	l.writeCount--
	if l.writeCount == 0 {
		l.state.Store(emptyFlag)
		l.waiters.wakeAll()
	}
}

// ReadLock acquires the lock shared. The current writer may take nested
// read locks without contention. Readers are never issued an identity.
func (l *Lock) ReadLock() {
	tid, _ := l.cfg.identities().lookup()
	l.readLock(tid)
}

// readLock takes tid == NoIdentity for a goroutine that cannot be the writer.
func (l *Lock) readLock(tid Identity) {
	s := l.state.Load()
	if tid != NoIdentity && owner(s) == tid {
		// Only the writer touches the reader bits while it holds the lock.
		if s&readCountMask == readCountMask {
			fatal(FaultReadCountOverflow, tid)
		}
		l.state.Add(1)
		return
	}

	deadline := time.Now().Add(l.cfg.timeout())
	spins := l.cfg.spins()
	for {
		for spin := uint32(0); spin < spins; spin++ {
			expected := l.state.Load()
			if expected&writeThreadMask != 0 {
				break
			}
			if expected&readCountMask == readCountMask {
				fatal(FaultReadCountOverflow, tid)
			}
			if l.state.CompareAndSwap(expected, expected+1) {
				return
			}
			spinYield(spin)
		}

		if !time.Now().Before(deadline) {
			fatal(FaultLockTimeout, tid)
		}

		// Wait until the writer releases.
		if observed := l.state.Load(); observed&writeThreadMask != 0 {
			l.waiters.wait(&l.state, observed, deadline)
		}
	}
}

// TryReadLock makes a single attempt to acquire the lock shared.
func (l *Lock) TryReadLock() bool {
	tid, _ := l.cfg.identities().lookup()
	s := l.state.Load()
	if tid != NoIdentity && owner(s) == tid {
		if s&readCountMask == readCountMask {
			fatal(FaultReadCountOverflow, tid)
		}
		l.state.Add(1)
		return true
	}
	if s&writeThreadMask != 0 || s&readCountMask == readCountMask {
		return false
	}
	return l.state.CompareAndSwap(s, s+1)
}

// ReadUnlock releases one read lock.
func (l *Lock) ReadUnlock() {
	prev := l.state.Add(^uint32(0)) + 1
	if prev&readCountMask == 0 {
		tid, _ := l.cfg.identities().lookup()
		fatal(FaultMultipleUnlock, tid)
	}
	if prev&readCountMask == 1 {
		l.waiters.wakeAll()
	}
}

// IsWriteHeld reports whether any goroutine holds the write lock.
func (l *Lock) IsWriteHeld() bool {
	return l.state.Load()&writeThreadMask != 0
}

// Writer returns the identity of the current writer, or NoIdentity.
func (l *Lock) Writer() Identity {
	return owner(l.state.Load())
}

// Readers returns the number of read locks currently held.
func (l *Lock) Readers() uint16 {
	return uint16(l.state.Load() & readCountMask)
}
