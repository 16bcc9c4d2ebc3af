//go:build srvcore_debug_lock

package opt

import "time"

// AcquireTimeout_ is shortened under srvcore_debug_lock so that deadlocks
// surface quickly while debugging.
// Use: go build -tags=srvcore_debug_lock
const AcquireTimeout_ = 1 * time.Second

// SpinCount_ is lowered so contended acquisitions park almost at once.
const SpinCount_ = 64
