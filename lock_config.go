package srvcore

import (
	"time"

	"github.com/llxisdsh/srvcore/internal/opt"
)

// ============================================================================
// Configuration
// ============================================================================

const (
	// DefaultAcquireTimeout is the compile-time acquisition timeout. Build
	// with -tags=srvcore_debug_lock to shorten it.
	DefaultAcquireTimeout = opt.AcquireTimeout_
	// DefaultSpinCount is the compile-time CAS spin budget.
	DefaultSpinCount = opt.SpinCount_
)

// LockConfig defines configurable options for Lock initialization.
// Unset fields fall back to the compile-time policy.
type LockConfig struct {
	// spinCount is the number of CAS attempts made before the acquiring
	// goroutine parks on the lock word.
	spinCount uint32

	// acquireTimeout bounds the total time spent in a single WriteLock or
	// ReadLock call. Exceeding it is a FaultLockTimeout.
	acquireTimeout time.Duration

	// registry issues the identities the lock compares against its writer
	// field. Nil means the default registry.
	registry *Registry
}

// WithSpinCount sets the number of CAS attempts before parking.
// Values below one are ignored.
func WithSpinCount(n int) func(*LockConfig) {
	return func(c *LockConfig) {
		if n > 0 {
			c.spinCount = uint32(n)
		}
	}
}

// WithAcquireTimeout sets the deadlock-detection timeout.
// Non-positive values are ignored.
func WithAcquireTimeout(d time.Duration) func(*LockConfig) {
	return func(c *LockConfig) {
		if d > 0 {
			c.acquireTimeout = d
		}
	}
}

// WithRegistry makes the lock use identities from r. Every goroutine using
// the lock must take its identity from the same registry, typically by being
// launched through a ThreadManager built on r.
func WithRegistry(r *Registry) func(*LockConfig) {
	return func(c *LockConfig) {
		c.registry = r
	}
}

func (c *LockConfig) spins() uint32 {
	if c.spinCount == 0 {
		return DefaultSpinCount
	}
	return c.spinCount
}

func (c *LockConfig) timeout() time.Duration {
	if c.acquireTimeout == 0 {
		return DefaultAcquireTimeout
	}
	return c.acquireTimeout
}

func (c *LockConfig) identities() *Registry {
	if c.registry == nil {
		return &defaultRegistry
	}
	return c.registry
}
