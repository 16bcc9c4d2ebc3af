package srvcore

import "errors"

// ErrManagerClosed is returned by ThreadManager.Launch once Join or Close
// has been called.
var ErrManagerClosed = errors.New("srvcore: thread manager is closed")
