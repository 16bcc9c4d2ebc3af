//go:build ((amd64 || 386 || arm || mips || mipsle || wasm) && !srvcore_enable_padding) || srvcore_disable_padding

package opt

// Pad_ is zero-sized when padding is disabled, either by default for
// amd64 and 32-bit architectures or via the srvcore_disable_padding tag.
type Pad_ struct{}
