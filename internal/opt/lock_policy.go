//go:build !srvcore_debug_lock

package opt

import "time"

// AcquireTimeout_ is how long a lock acquisition may take before it is
// treated as a deadlock and the process crashes.
const AcquireTimeout_ = 10 * time.Second

// SpinCount_ is the number of CAS attempts made before the acquiring
// goroutine parks on the lock word.
const SpinCount_ = 5000
