package srvcore

// WriteGuard holds one level of a Lock's write lock until Release.
//
// Usage:
//
//	g := l.Write()
//	defer g.Release()
//
// A guard must be released by the goroutine that acquired it.
type WriteGuard struct {
	l  *Lock
	id Identity
}

// Write acquires l exclusively and returns a guard that releases it.
func (l *Lock) Write() WriteGuard {
	id := l.cfg.identities().Current()
	l.writeLock(id)
	return WriteGuard{l: l, id: id}
}

// Release releases the write lock. Releasing a guard twice, or the zero
// guard, is a no-op.
func (g *WriteGuard) Release() {
	if g.l == nil {
		return
	}
	l := g.l
	g.l = nil
	l.writeUnlock(g.id)
}

// ReadGuard holds one of a Lock's read locks until Release.
type ReadGuard struct {
	l *Lock
}

// Read acquires l shared and returns a guard that releases it.
func (l *Lock) Read() ReadGuard {
	id, _ := l.cfg.identities().lookup()
	l.readLock(id)
	return ReadGuard{l: l}
}

// Release releases the read lock. Releasing a guard twice is a no-op.
func (g *ReadGuard) Release() {
	if g.l == nil {
		return
	}
	l := g.l
	g.l = nil
	l.ReadUnlock()
}

// WithWriteLock runs fn while holding l exclusively. The lock is released
// however fn returns, including by panic.
func WithWriteLock(l *Lock, fn func()) {
	g := l.Write()
	defer g.Release()
	fn()
}

// WithReadLock runs fn while holding l shared.
func WithReadLock(l *Lock, fn func()) {
	g := l.Read()
	defer g.Release()
	fn()
}

// LockSet is a fixed group of independent locks addressed by index, for
// objects that protect several fields separately.
//
// Usage:
//
//	type Room struct {
//		locks   srvcore.LockSet
//		players []Player // locks.Write(0)
//		items   []Item   // locks.Write(1)
//	}
//
//	r.locks = srvcore.NewLockSet(2)
type LockSet []Lock

// NewLockSet creates n locks sharing the given options.
func NewLockSet(n int, options ...func(*LockConfig)) LockSet {
	s := make(LockSet, n)
	for i := range s {
		for _, o := range options {
			o(&s[i].cfg)
		}
	}
	return s
}

// Write acquires lock idx exclusively.
func (s LockSet) Write(idx int) WriteGuard {
	return s[idx].Write()
}

// Read acquires lock idx shared.
func (s LockSet) Read(idx int) ReadGuard {
	return s[idx].Read()
}

// At returns lock idx.
func (s LockSet) At(idx int) *Lock {
	return &s[idx]
}
