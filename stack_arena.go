package srvcore

import (
	"math/bits"
	"sync/atomic"
)

// Stack nodes are addressed by 32-bit index instead of pointer, so list
// heads can carry a version tag next to the index in one 64-bit word
// (the same trick the runtime's lfstack plays with pointer bits).
//
// Indices are 1-based; 0 is the nil link. Node storage is a segmented
// array: segment k holds arenaBase<<k nodes, so the segment table stays
// small while still covering the whole index space, and a node never moves
// once allocated.
const (
	arenaBaseShift = 6
	arenaBase      = 1 << arenaBaseShift
	arenaSegments  = 33 - arenaBaseShift
)

type stackNode[T any] struct {
	// next is read by poppers that may lose the race for this node, so it
	// is always accessed atomically.
	next  atomic.Uint32
	value T
}

type nodeArena[T any] struct {
	used     atomic.Uint32
	segments [arenaSegments]atomic.Pointer[[]stackNode[T]]
}

// locate maps a 1-based index to its segment and offset.
//
//go:nosplit
func locate(idx uint32) (seg, off int) {
	p := uint64(idx-1) + arenaBase
	seg = bits.Len64(p) - 1 - arenaBaseShift
	off = int(p - uint64(arenaBase)<<seg)
	return seg, off
}

// grow reserves a never-used node index and makes sure its segment exists.
func (a *nodeArena[T]) grow() uint32 {
	idx := a.used.Add(1)
	if idx == 0 {
		// Wrapped: every 32-bit index is in use.
		fatal(FaultStackExhausted, NoIdentity)
	}
	seg, _ := locate(idx)
	if a.segments[seg].Load() == nil {
		s := make([]stackNode[T], arenaBase<<seg)
		// Losers drop their copy; the winner's segment is shared.
		a.segments[seg].CompareAndSwap(nil, &s)
	}
	return idx
}

// at returns node idx. The segment must already exist, which holds for any
// index obtained from grow or read from a list head.
//
//go:nosplit
func (a *nodeArena[T]) at(idx uint32) *stackNode[T] {
	seg, off := locate(idx)
	return &(*a.segments[seg].Load())[off]
}

// allocated reports how many distinct nodes were ever allocated.
func (a *nodeArena[T]) allocated() uint32 {
	return a.used.Load()
}

// taggedHead is a Treiber list head: version in the high 32 bits, node
// index in the low 32 bits. Every successful update bumps the version, so a
// head popped and pushed back between a reader's load and its CAS no longer
// compares equal.
type taggedHead struct {
	word atomic.Uint64
}

//go:nosplit
func packHead(idx, version uint32) uint64 {
	return uint64(version)<<32 | uint64(idx)
}

// link pushes node idx in front of the list.
func link[T any](h *taggedHead, a *nodeArena[T], idx uint32) {
	n := a.at(idx)
	var spin uint32
	for {
		old := h.word.Load()
		n.next.Store(uint32(old))
		if h.word.CompareAndSwap(old, packHead(idx, uint32(old>>32)+1)) {
			return
		}
		spinYield(spin)
		spin++
	}
}

// unlink detaches the front node and returns its index, or 0 when the list
// is empty.
func unlink[T any](h *taggedHead, a *nodeArena[T]) uint32 {
	var spin uint32
	for {
		old := h.word.Load()
		idx := uint32(old)
		if idx == 0 {
			return 0
		}
		// The node may be popped and recycled by others before the CAS.
		// The stale next is harmless: the version makes the CAS fail.
		next := a.at(idx).next.Load()
		if h.word.CompareAndSwap(old, packHead(next, uint32(old>>32)+1)) {
			return idx
		}
		spinYield(spin)
		spin++
	}
}

//go:nosplit
func (h *taggedHead) empty() bool {
	return uint32(h.word.Load()) == 0
}
