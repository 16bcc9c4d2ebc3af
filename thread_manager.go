package srvcore

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/llxisdsh/srvcore/internal/logging"
)

// ManagerConfig defines configurable options for ThreadManager.
type ManagerConfig struct {
	// lockOSThread pins each worker goroutine to its own OS thread for the
	// worker's whole lifetime.
	lockOSThread bool

	// base is the parent of the workers' stop context.
	base context.Context
}

// WithLockOSThread pins every worker to an OS thread, giving each worker a
// dedicated thread as in a classic thread-per-worker server.
func WithLockOSThread() func(*ManagerConfig) {
	return func(c *ManagerConfig) {
		c.lockOSThread = true
	}
}

// WithBaseContext roots the workers' stop context at ctx, so cancelling ctx
// stops the workers as Stop does.
func WithBaseContext(ctx context.Context) func(*ManagerConfig) {
	return func(c *ManagerConfig) {
		if ctx != nil {
			c.base = ctx
		}
	}
}

// ThreadManager launches worker goroutines, gives each one a fresh Identity
// for its lifetime, and joins them at teardown.
//
// Workers receive a context that is cancelled by Stop, by Close, by the
// base context, or when any worker returns an error. Cancellation is
// cooperative: workers must watch the context.
//
// Usage:
//
//	tm := srvcore.NewThreadManager(nil)
//	defer tm.Close()
//	for range 4 {
//		tm.Launch(func(ctx context.Context) error {
//			for ctx.Err() == nil {
//				job, ok := jobs.PopBlocking(ctx)
//				...
//			}
//			return nil
//		})
//	}
type ThreadManager struct {
	_   noCopy
	ids *Registry
	cfg ManagerConfig

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	// mu guards launched and closed, not the callbacks.
	mu       TicketLock
	launched int
	closed   bool

	joinOnce sync.Once
	joinErr  error
}

// NewThreadManager creates a manager issuing identities from ids, or from
// the default registry if ids is nil. The calling goroutine is given an
// identity as well.
func NewThreadManager(ids *Registry, options ...func(*ManagerConfig)) *ThreadManager {
	if ids == nil {
		ids = &defaultRegistry
	}
	tm := &ThreadManager{ids: ids, cfg: ManagerConfig{base: context.Background()}}
	for _, o := range options {
		o(&tm.cfg)
	}
	ctx, cancel := context.WithCancel(tm.cfg.base)
	tm.group, tm.ctx = errgroup.WithContext(ctx)
	tm.cancel = cancel

	ids.Current()
	return tm
}

// Registry returns the registry the manager issues identities from.
func (tm *ThreadManager) Registry() *Registry {
	return tm.ids
}

// Launch starts fn on a new worker. The worker obtains a fresh identity
// before fn runs and releases its identity slot after fn returns. Launch
// returns ErrManagerClosed once Join has been called.
func (tm *ThreadManager) Launch(fn func(ctx context.Context) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.closed {
		return ErrManagerClosed
	}
	tm.launched++
	tm.group.Go(func() error {
		if tm.cfg.lockOSThread {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
		}
		id := tm.ids.bind()
		defer tm.ids.unbind()

		logging.DebugLog.Printf("worker %d started", id)
		err := fn(tm.ctx)
		if err != nil {
			logging.WarningLog.Printf("worker %d exited: %v", id, err)
		} else {
			logging.DebugLog.Printf("worker %d exited", id)
		}
		return err
	})
	return nil
}

// Launched reports how many workers have been started.
func (tm *ThreadManager) Launched() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.launched
}

// Stop asks every worker to return by cancelling their context. It does not
// wait; call Join for that.
func (tm *ThreadManager) Stop() {
	tm.cancel()
}

// Join waits for every launched worker to return and returns the first
// error any of them returned. No workers can be launched afterwards. Join
// is idempotent: later calls return the same error without waiting again.
func (tm *ThreadManager) Join() error {
	tm.mu.Lock()
	tm.closed = true
	tm.mu.Unlock()

	tm.joinOnce.Do(func() {
		tm.joinErr = tm.group.Wait()
		tm.cancel()
	})
	return tm.joinErr
}

// Close stops and joins every worker. It is meant for the owner's teardown
// path and is safe to call more than once.
func (tm *ThreadManager) Close() error {
	tm.Stop()
	return tm.Join()
}
