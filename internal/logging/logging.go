// Package logging holds the loggers shared by srvcore components.
//
// The loggers write to stderr until SetOutput redirects them. Debug output
// is discarded unless SRVCORE_DEBUG is set to "1" or "true".
package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

const flags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile

var (
	InfoLog    = log.New(os.Stderr, "INFO: ", flags)
	WarningLog = log.New(os.Stderr, "WARNING: ", flags)
	ErrorLog   = log.New(os.Stderr, "ERROR: ", flags)
	DebugLog   = log.New(io.Discard, "DEBUG: ", flags)
)

var (
	mu           sync.Mutex
	output       io.Writer = os.Stderr
	debugEnabled           = os.Getenv("SRVCORE_DEBUG") == "true" || os.Getenv("SRVCORE_DEBUG") == "1"
)

func init() {
	apply()
}

// SetOutput redirects every logger to w. Debug output stays discarded
// unless debug logging is enabled.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	apply()
}

// EnableDebug turns debug logging on or off.
func EnableDebug(on bool) {
	mu.Lock()
	defer mu.Unlock()
	debugEnabled = on
	apply()
}

// IsDebugEnabled returns true if debug logging is enabled.
func IsDebugEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return debugEnabled
}

// apply must be called with mu held. log.Logger.SetOutput is safe to call
// while other goroutines are logging.
func apply() {
	InfoLog.SetOutput(output)
	WarningLog.SetOutput(output)
	ErrorLog.SetOutput(output)
	if debugEnabled {
		DebugLog.SetOutput(output)
	} else {
		DebugLog.SetOutput(io.Discard)
	}
}
