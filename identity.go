package srvcore

import (
	"runtime"
	"sync/atomic"

	"github.com/llxisdsh/pb"
)

// Identity is a small integer naming a logical worker for the lifetime of
// the process. Identities are handed out once and never reused, so a Lock
// can never mistake a new goroutine for a finished writer.
type Identity uint32

const (
	// NoIdentity is never issued. A Lock word with this writer means "no writer".
	NoIdentity Identity = 0
	// MaxIdentity is the largest identity that fits the writer field of
	// the Lock word.
	MaxIdentity Identity = writeThreadMask >> writeThreadShift
)

// Registry issues identities and keeps the per-goroutine identity slot.
//
// Go has no thread-local storage, so the slot is a concurrent map keyed by
// goroutine id. Goroutine ids are not reused by the runtime, so a stale
// entry can never be observed by a different goroutine.
//
// A zero Registry is ready to use. It must outlive every goroutine that
// obtained an identity from it; the package default lives for the process.
type Registry struct {
	_      noCopy
	issued atomic.Uint32
	slots  pb.MapOf[int64, Identity]
}

var defaultRegistry Registry

// DefaultRegistry returns the process-wide registry used by Current and by
// locks and thread managers that were not given one.
func DefaultRegistry() *Registry {
	return &defaultRegistry
}

// Current returns the calling goroutine's identity from the default registry.
func Current() Identity {
	return defaultRegistry.Current()
}

// Current returns the calling goroutine's identity, issuing one on first use.
func (r *Registry) Current() Identity {
	gid := goroutineID()
	if id, ok := r.slots.Load(gid); ok {
		return id
	}
	// Only this goroutine writes its own slot, so load-then-store is safe.
	id := r.issue()
	r.slots.Store(gid, id)
	return id
}

// lookup returns the calling goroutine's identity without issuing one.
func (r *Registry) lookup() (Identity, bool) {
	return r.slots.Load(goroutineID())
}

// Issued reports how many identities have been handed out.
func (r *Registry) Issued() uint32 {
	return r.issued.Load()
}

// Forget drops the calling goroutine's slot. Goroutines that obtained an
// identity lazily may call it before exiting to release the slot; the
// identity itself is never handed out again.
func (r *Registry) Forget() {
	r.slots.Delete(goroutineID())
}

// bind installs a fresh identity for the calling goroutine, replacing any
// identity it already had.
func (r *Registry) bind() Identity {
	id := r.issue()
	r.slots.Store(goroutineID(), id)
	return id
}

func (r *Registry) unbind() {
	r.Forget()
}

func (r *Registry) issue() Identity {
	id := Identity(r.issued.Add(1))
	if id == NoIdentity || id > MaxIdentity {
		fatal(FaultIdentityExhausted, NoIdentity)
	}
	return id
}

// goroutineID extracts the current goroutine id by parsing the first line
// of runtime.Stack output: "goroutine 123 [running]:".
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID returns the id from a "goroutine 123 [...]" header, or 0 if buf
// does not start with one.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	var gid int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}
