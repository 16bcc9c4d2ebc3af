package srvcore

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/llxisdsh/srvcore/internal/logging"
	"github.com/llxisdsh/srvcore/internal/opt"
)

// faultLog collects fault reports written by fatal while a test runs.
type faultLog struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *faultLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *faultLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

// catchFaults installs a fault handler that records every fault. The
// faulting goroutine is then ended by runtime.Goexit inside fatal, so faults
// must be triggered from goroutines other than the test's own.
func catchFaults(t *testing.T) (<-chan *Fault, *faultLog) {
	t.Helper()
	ch := make(chan *Fault, 16)
	out := &faultLog{}
	logging.SetOutput(out)
	prev := SetFaultHandler(func(f *Fault) { ch <- f })
	t.Cleanup(func() {
		SetFaultHandler(prev)
		logging.SetOutput(os.Stderr)
	})
	return ch, out
}

func waitFault(t *testing.T, ch <-chan *Fault, within time.Duration) *Fault {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(within):
		t.Fatalf("no fault within %v", within)
		return nil
	}
}

// goDone runs fn on a new goroutine and returns a channel closed when the
// goroutine ends, whether fn returns or the goroutine is ended by a fault.
func goDone(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}, within time.Duration, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(within):
		t.Fatalf("%s did not finish within %v", what, within)
	}
}

// loops scales a stress loop count down under the race detector.
func loops(n int) int {
	if opt.Race_ {
		return max(n/10, 1)
	}
	return n
}
