//go:build !(amd64 || 386 || arm || mips || mipsle || wasm) && !srvcore_disable_padding

package opt

// Pad_ separates hot atomic fields (stack heads, queue head and tail)
// onto distinct cache lines.
//
// Padding is automatically enabled for architectures that are NOT:
// - amd64 (x86_64): Hardware optimizations often make padding less critical
// - 32-bit architectures (386, arm, mips, mipsle, wasm): Smaller cache lines/memory constraints
//
// Enabled for: arm64, s390x, ppc64, ppc64le, riscv64, loong64, mips64, mips64le, etc.
type Pad_ [CacheLineSize_]byte
