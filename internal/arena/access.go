// access.go couples typed capability access to the arena epoch: every
// read or write first passes CheckCapability, so a token issued before
// a Reset dies here even though its window bytes still exist.
//
// © 2025 seraph authors. MIT License.

package arena

import (
	"github.com/seraphos/substrate/internal/absent"
	"github.com/seraphos/substrate/internal/capability"
)

// Read8 reads a byte through c after validating it against the arena.
func (a *Arena) Read8(c capability.Capability, off uint64) uint8 {
	if !a.CheckCapability(c) {
		return absent.U8
	}
	return c.ReadU8(off)
}

// Read16 reads a little-endian u16 through c.
func (a *Arena) Read16(c capability.Capability, off uint64) uint16 {
	if !a.CheckCapability(c) {
		return absent.U16
	}
	return c.ReadU16(off)
}

// Read32 reads a little-endian u32 through c.
func (a *Arena) Read32(c capability.Capability, off uint64) uint32 {
	if !a.CheckCapability(c) {
		return absent.U32
	}
	return c.ReadU32(off)
}

// Read64 reads a little-endian u64 through c.
func (a *Arena) Read64(c capability.Capability, off uint64) uint64 {
	if !a.CheckCapability(c) {
		return absent.U64
	}
	return c.ReadU64(off)
}

// Write8 writes a byte through c after validating it against the arena.
func (a *Arena) Write8(c capability.Capability, off uint64, v uint8) absent.VBit {
	if !a.CheckCapability(c) {
		return absent.VFalse
	}
	return c.WriteU8(off, v)
}

// Write16 writes a little-endian u16 through c.
func (a *Arena) Write16(c capability.Capability, off uint64, v uint16) absent.VBit {
	if !a.CheckCapability(c) {
		return absent.VFalse
	}
	return c.WriteU16(off, v)
}

// Write32 writes a little-endian u32 through c.
func (a *Arena) Write32(c capability.Capability, off uint64, v uint32) absent.VBit {
	if !a.CheckCapability(c) {
		return absent.VFalse
	}
	return c.WriteU32(off, v)
}

// Write64 writes a little-endian u64 through c.
func (a *Arena) Write64(c capability.Capability, off uint64, v uint64) absent.VBit {
	if !a.CheckCapability(c) {
		return absent.VFalse
	}
	return c.WriteU64(off, v)
}
