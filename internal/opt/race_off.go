//go:build !race

package opt

// Race_ reports whether the binary was built with -race.
const Race_ = false
