//go:build (amd64 || 386 || arm || mips || mipsle || wasm) && srvcore_enable_padding && !srvcore_disable_padding

package opt

// Pad_ separates hot atomic fields onto distinct cache lines.
// Padding is force-enabled via the srvcore_enable_padding build tag.
// Use: go build -tags=srvcore_enable_padding
type Pad_ [CacheLineSize_]byte
