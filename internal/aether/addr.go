// Package aether implements the distributed-shared-memory layer: the
// 64-bit address codec, the per-node page cache with an intrusive LRU,
// the owner-side directory, and the MESI-like coherence engine that
// moves pages between nodes over authenticated frames.  The same
// protocol runs in-process over the simulated fabric in transport.go;
// every security and replay check still executes there.
//
// © 2025 seraph authors. MIT License.

package aether

import "github.com/seraphos/substrate/internal/absent"

const (
	// AddrBase is the first aether address; bits 63..46 of every aether
	// address equal this range selector.
	AddrBase uint64 = 0x0000_4000_0000_0000

	// AddrEnd is the last aether address: the full 14-bit node space,
	// 4 GiB each.
	AddrEnd uint64 = AddrBase | (nodeMask << nodeShift) | offsetMask

	nodeShift       = 32
	nodeMask uint64 = 0x3FFF // 14 bits, 45..32

	offsetMask uint64 = 0xFFFF_FFFF // bits 31..0

	// PageSize is the coherence granule.
	PageSize = 4096
)

// IsRemote reports whether addr lies in the aether range.
func IsRemote(addr uint64) bool {
	return addr >= AddrBase && addr <= AddrEnd
}

// MakeAddr builds an aether address from a node id and byte offset.
// Node ids outside 14 bits are unencodable and yield the sentinel.
func MakeAddr(node uint16, offset uint32) uint64 {
	if uint64(node) > nodeMask {
		return absent.U64
	}
	return AddrBase | uint64(node)<<nodeShift | uint64(offset)
}

// AddrNode extracts the owning node id.
func AddrNode(addr uint64) uint16 {
	return uint16(addr >> nodeShift & nodeMask)
}

// AddrOffset extracts the per-node byte offset.
func AddrOffset(addr uint64) uint32 {
	return uint32(addr & offsetMask)
}

// PageAlign rounds a per-node offset down to its page.
func PageAlign(offset uint32) uint32 {
	return offset &^ (PageSize - 1)
}
