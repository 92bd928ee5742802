// Package capability implements the substrate's unforgeable access tokens.  A
// Capability is a 256-bit record {base, length, generation, perms, seal
// type, reserved} whose window and permission set can only shrink as it
// is passed around:
//
//   • Derive needs the DERIVE permission and produces a sub-window with a
//     subset of the parent's permissions;
//   • Shrink narrows the window without the DERIVE check and preserves
//     permissions (sealed tokens may be shrunk);
//   • Restrict clears permission bits and can never add any;
//   • Seal/Unseal move the token in and out of an opaque, typed state in
//     which every typed access is absent.
//
// Typed reads and writes go through raw byte views of the target memory
// (the same discipline the arena layer uses for its allocations); all
// multi-byte accesses are little-endian and alignment-tolerant.
//
// Creation is reserved for trusted substrate code (the arena issues
// capabilities over its own memory); there is no user-level forgery path.
//
// © 2025 seraph authors. MIT License.

package capability

import (
	"encoding/binary"
	"unsafe"

	"github.com/seraphos/substrate/internal/absent"
)

// Perm is the capability permission bitmask.
type Perm uint8

const (
	PermRead   Perm = 1 << 0
	PermWrite  Perm = 1 << 1
	PermExec   Perm = 1 << 2
	PermDerive Perm = 1 << 3
	PermSeal   Perm = 1 << 4
	PermUnseal Perm = 1 << 5
	PermGlobal Perm = 1 << 6
	PermLocal  Perm = 1 << 7

	// PermRW is the common read/write pairing.
	PermRW = PermRead | PermWrite
)

// Has reports whether every bit of want is present.
func (p Perm) Has(want Perm) bool { return p&want == want }

// Capability is the full 256-bit token.
type Capability struct {
	Base       uint64 // host address of the window start
	Length     uint64 // byte extent
	Generation uint32 // arena epoch at creation
	SealType   uint32 // 0 = unsealed
	Perms      Perm
	_          [7]byte // reserved
}

// Absent returns the canonical absent capability.
func Absent() Capability {
	return Capability{
		Base:       absent.U64,
		Length:     absent.U64,
		Generation: absent.U32,
	}
}

// New assembles a token after validating that no defining field carries
// its sentinel.  Callers are trusted substrate code.
func New(base, length uint64, generation uint32, perms Perm) Capability {
	if absent.IsU64(base) || absent.IsU64(length) || absent.IsU32(generation) {
		return Absent()
	}
	return Capability{
		Base:       base,
		Length:     length,
		Generation: generation,
		Perms:      perms,
	}
}

// IsAbsent reports whether any defining field is a sentinel.
func (c Capability) IsAbsent() bool {
	return absent.IsU64(c.Base) || absent.IsU64(c.Length) || absent.IsU32(c.Generation)
}

// IsSealed reports whether the token carries a nonzero seal tag.
func (c Capability) IsSealed() bool { return c.SealType != 0 }

// Derive produces a sub-capability.  Requires DERIVE on the parent, an
// in-window range and a permission subset; the child inherits the
// parent's generation and is unsealed.
func (c Capability) Derive(offset, length uint64, perms Perm) Capability {
	if c.IsAbsent() || !c.Perms.Has(PermDerive) {
		return Absent()
	}
	if offset > c.Length || length > c.Length-offset {
		return Absent()
	}
	if perms&^c.Perms != 0 {
		return Absent()
	}
	return Capability{
		Base:       c.Base + offset,
		Length:     length,
		Generation: c.Generation,
		Perms:      perms,
	}
}

// Shrink narrows the window like Derive but skips the DERIVE-permission
// check, keeps the permission set and preserves any seal.
func (c Capability) Shrink(offset, length uint64) Capability {
	if c.IsAbsent() {
		return Absent()
	}
	if offset > c.Length || length > c.Length-offset {
		return Absent()
	}
	out := c
	out.Base = c.Base + offset
	out.Length = length
	return out
}

// Restrict clears permission bits; bits not in keep are dropped.
func (c Capability) Restrict(keep Perm) Capability {
	if c.IsAbsent() {
		return Absent()
	}
	out := c
	out.Perms &= keep
	return out
}

// Seal stamps a nonzero type tag onto the token and consumes the SEAL
// permission.  A zero tag or a missing permission yields absent.
func (c Capability) Seal(tag uint32) Capability {
	if c.IsAbsent() || !c.Perms.Has(PermSeal) || tag == 0 || absent.IsU32(tag) {
		return Absent()
	}
	out := c
	out.SealType = tag
	out.Perms &^= PermSeal
	return out
}

// Unseal clears the seal when the expected tag matches, consuming the
// UNSEAL permission.  A mismatched tag yields absent.
func (c Capability) Unseal(expect uint32) Capability {
	if c.IsAbsent() || !c.Perms.Has(PermUnseal) || c.SealType == 0 || c.SealType != expect {
		return Absent()
	}
	out := c
	out.SealType = 0
	out.Perms &^= PermUnseal
	return out
}

/* -------------------------------------------------------------------------
   Typed access
   ------------------------------------------------------------------------- */

// view returns the n-byte window at offset, or nil when the access is
// not permitted: absent or sealed token, missing permission, or a range
// escaping the window.
func (c Capability) view(offset, n uint64, need Perm) []byte {
	if c.IsAbsent() || c.IsSealed() || !c.Perms.Has(need) {
		return nil
	}
	if offset > c.Length || n > c.Length-offset {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(c.Base+offset))), n)
}

// ReadU8 returns the byte at offset, or absent.
func (c Capability) ReadU8(offset uint64) uint8 {
	b := c.view(offset, 1, PermRead)
	if b == nil {
		return absent.U8
	}
	return b[0]
}

// ReadU16 reads a little-endian u16; alignment is not required.
func (c Capability) ReadU16(offset uint64) uint16 {
	b := c.view(offset, 2, PermRead)
	if b == nil {
		return absent.U16
	}
	return binary.LittleEndian.Uint16(b)
}

// ReadU32 reads a little-endian u32.
func (c Capability) ReadU32(offset uint64) uint32 {
	b := c.view(offset, 4, PermRead)
	if b == nil {
		return absent.U32
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadU64 reads a little-endian u64.
func (c Capability) ReadU64(offset uint64) uint64 {
	b := c.view(offset, 8, PermRead)
	if b == nil {
		return absent.U64
	}
	return binary.LittleEndian.Uint64(b)
}

// WriteU8 stores v at offset.  Absent value arguments are rejected.
func (c Capability) WriteU8(offset uint64, v uint8) absent.VBit {
	if absent.IsU8(v) {
		return absent.VFalse
	}
	b := c.view(offset, 1, PermWrite)
	if b == nil {
		return absent.VFalse
	}
	b[0] = v
	return absent.VTrue
}

// WriteU16 stores a little-endian u16.
func (c Capability) WriteU16(offset uint64, v uint16) absent.VBit {
	if absent.IsU16(v) {
		return absent.VFalse
	}
	b := c.view(offset, 2, PermWrite)
	if b == nil {
		return absent.VFalse
	}
	binary.LittleEndian.PutUint16(b, v)
	return absent.VTrue
}

// WriteU32 stores a little-endian u32.
func (c Capability) WriteU32(offset uint64, v uint32) absent.VBit {
	if absent.IsU32(v) {
		return absent.VFalse
	}
	b := c.view(offset, 4, PermWrite)
	if b == nil {
		return absent.VFalse
	}
	binary.LittleEndian.PutUint32(b, v)
	return absent.VTrue
}

// WriteU64 stores a little-endian u64.
func (c Capability) WriteU64(offset uint64, v uint64) absent.VBit {
	if absent.IsU64(v) {
		return absent.VFalse
	}
	b := c.view(offset, 8, PermWrite)
	if b == nil {
		return absent.VFalse
	}
	binary.LittleEndian.PutUint64(b, v)
	return absent.VTrue
}

// Copy moves n bytes between capability windows.  Requires WRITE on dst
// and READ on src, neither sealed; overlapping windows behave like a
// bytewise move.
func Copy(dst Capability, dstOff uint64, src Capability, srcOff, n uint64) absent.VBit {
	db := dst.view(dstOff, n, PermWrite)
	sb := src.view(srcOff, n, PermRead)
	if db == nil || sb == nil {
		return absent.VFalse
	}
	copy(db, sb) // copy() handles overlap like memmove
	return absent.VTrue
}
