//go:build race

package opt

// Race_ reports whether the binary was built with -race.
// Stress tests scale their loops down under the race detector.
const Race_ = true
