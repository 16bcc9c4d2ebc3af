package srvcore

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"

	"github.com/llxisdsh/srvcore/internal/logging"
)

// FaultKind names a violated invariant. Every fault is unrecoverable: the
// state of the primitive that raised it can no longer be trusted.
type FaultKind uint8

const (
	// FaultLockTimeout means a lock could not be acquired within the
	// acquisition timeout. It is treated as a deadlock.
	FaultLockTimeout FaultKind = iota + 1
	// FaultInvalidUnlockOrder means the write lock was released while
	// nested read locks were still held.
	FaultInvalidUnlockOrder
	// FaultMultipleUnlock means a lock was released more often than it was
	// acquired, or released by a goroutine that does not hold it.
	FaultMultipleUnlock
	// FaultReadCountOverflow means the 16-bit reader count saturated.
	FaultReadCountOverflow
	// FaultIdentityExhausted means more identities were requested than fit
	// the lock word's writer field.
	FaultIdentityExhausted
	// FaultStackExhausted means a Stack ran out of node indices.
	FaultStackExhausted
)

func (k FaultKind) String() string {
	switch k {
	case FaultLockTimeout:
		return "LOCK_TIMEOUT"
	case FaultInvalidUnlockOrder:
		return "INVALID_UNLOCK_ORDER"
	case FaultMultipleUnlock:
		return "MULTIPLE_UNLOCK"
	case FaultReadCountOverflow:
		return "READ_COUNT_OVERFLOW"
	case FaultIdentityExhausted:
		return "IDENTITY_EXHAUSTED"
	case FaultStackExhausted:
		return "STACK_EXHAUSTED"
	default:
		return fmt.Sprintf("FaultKind(%d)", uint8(k))
	}
}

// Fault describes an unrecoverable invariant violation.
type Fault struct {
	Kind FaultKind
	// Identity is the identity of the faulting goroutine, or NoIdentity
	// when none was bound.
	Identity Identity
	// Stack is the faulting goroutine's stack trace.
	Stack []byte
}

func (f *Fault) Error() string {
	return fmt.Sprintf("srvcore: fatal %s (identity %d)", f.Kind, f.Identity)
}

// FaultHandler receives every fault. It must not return; if it does, the
// faulting goroutine is terminated with runtime.Goexit.
type FaultHandler func(*Fault)

var faultHandler atomic.Pointer[FaultHandler]

// SetFaultHandler installs h and returns the handler it replaced.
// A nil h restores the default handler, which panics with the *Fault.
func SetFaultHandler(h FaultHandler) FaultHandler {
	var prev *FaultHandler
	if h == nil {
		prev = faultHandler.Swap(nil)
	} else {
		prev = faultHandler.Swap(&h)
	}
	if prev == nil {
		return PanicOnFault
	}
	return *prev
}

// PanicOnFault is the default FaultHandler.
func PanicOnFault(f *Fault) {
	panic(f)
}

// fatal reports kind and never returns.
func fatal(kind FaultKind, id Identity) {
	f := &Fault{Kind: kind, Identity: id, Stack: debug.Stack()}
	_ = logging.ErrorLog.Output(2, f.Error())

	h := PanicOnFault
	if p := faultHandler.Load(); p != nil {
		h = *p
	}
	h(f)
	runtime.Goexit()
}
