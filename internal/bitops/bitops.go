// Package bitops provides the substrate's range-safe bit manipulation
// surface for u32/u64 (plus arithmetic shifts for the signed analogues)
// and a packed bit-array over 64-bit words.
//
// Contracts
// ---------
//   • single-bit ops (get/set/clear/toggle/test): out-of-range position
//     → absent;
//   • extract/insert: zero length or start+len beyond the width → absent;
//   • shl/shr: count ≥ width → absent;  rol/ror: count taken mod width,
//     never absent on the count;
//   • counting ops (popcount/clz/ctz/ffs/fls): absent input → the
//     distinguished absent-count byte (0xFF);
//   • bswap/bitrev/is_pow2/next_pow2: absence-preserving.
//
// The primitive counts come from math/bits; everything above them is the
// substrate's own range discipline.
//
// © 2025 seraph authors. MIT License.

package bitops

import (
	"math/bits"

	"github.com/seraphos/substrate/internal/absent"
)

/* -------------------------------------------------------------------------
   Single-bit operations, u64
   ------------------------------------------------------------------------- */

// GetU64 returns the selected bit as 0 or 1; absent on a bad position.
func GetU64(x uint64, pos uint32) uint64 {
	if absent.IsU64(x) || pos >= 64 {
		return absent.U64
	}
	return (x >> pos) & 1
}

// SetU64 returns x with the selected bit set.
func SetU64(x uint64, pos uint32) uint64 {
	if absent.IsU64(x) || pos >= 64 {
		return absent.U64
	}
	return x | (1 << pos)
}

// ClearU64 returns x with the selected bit cleared.
func ClearU64(x uint64, pos uint32) uint64 {
	if absent.IsU64(x) || pos >= 64 {
		return absent.U64
	}
	return x &^ (1 << pos)
}

// ToggleU64 returns x with the selected bit flipped.
func ToggleU64(x uint64, pos uint32) uint64 {
	if absent.IsU64(x) || pos >= 64 {
		return absent.U64
	}
	return x ^ (1 << pos)
}

// TestU64 reports the selected bit as a VBit; absent on a bad position.
func TestU64(x uint64, pos uint32) absent.VBit {
	if absent.IsU64(x) || pos >= 64 {
		return absent.VAbsent
	}
	return absent.VBitFromBool((x>>pos)&1 == 1)
}

/* -------------------------------------------------------------------------
   Field extract / insert
   ------------------------------------------------------------------------- */

// ExtractU64 pulls len bits starting at start.  Zero length or a field
// running past the width is absent.
func ExtractU64(x uint64, start, length uint32) uint64 {
	if absent.IsU64(x) || length == 0 || start+length > 64 {
		return absent.U64
	}
	if length == 64 {
		return x
	}
	return (x >> start) & ((1 << length) - 1)
}

// InsertU64 merges the low len bits of val into x at start.
func InsertU64(x, val uint64, start, length uint32) uint64 {
	if absent.IsU64(x) || absent.IsU64(val) || length == 0 || start+length > 64 {
		return absent.U64
	}
	var mask uint64
	if length == 64 {
		mask = ^uint64(0)
	} else {
		mask = ((1 << length) - 1) << start
	}
	return (x &^ mask) | ((val << start) & mask)
}

// ExtractU32 is the 32-bit analogue of ExtractU64.
func ExtractU32(x uint32, start, length uint32) uint32 {
	if absent.IsU32(x) || length == 0 || start+length > 32 {
		return absent.U32
	}
	if length == 32 {
		return x
	}
	return (x >> start) & ((1 << length) - 1)
}

// InsertU32 is the 32-bit analogue of InsertU64.
func InsertU32(x, val uint32, start, length uint32) uint32 {
	if absent.IsU32(x) || absent.IsU32(val) || length == 0 || start+length > 32 {
		return absent.U32
	}
	var mask uint32
	if length == 32 {
		mask = ^uint32(0)
	} else {
		mask = ((1 << length) - 1) << start
	}
	return (x &^ mask) | ((val << start) & mask)
}

/* -------------------------------------------------------------------------
   Shifts & rotates
   ------------------------------------------------------------------------- */

// ShlU64 shifts left; a count of the full width or more is absent.
func ShlU64(x uint64, n uint32) uint64 {
	if absent.IsU64(x) || n >= 64 {
		return absent.U64
	}
	return x << n
}

// ShrU64 shifts right with the same count rule.
func ShrU64(x uint64, n uint32) uint64 {
	if absent.IsU64(x) || n >= 64 {
		return absent.U64
	}
	return x >> n
}

// ShlU32 and ShrU32 are the 32-bit analogues.
func ShlU32(x uint32, n uint32) uint32 {
	if absent.IsU32(x) || n >= 32 {
		return absent.U32
	}
	return x << n
}

func ShrU32(x uint32, n uint32) uint32 {
	if absent.IsU32(x) || n >= 32 {
		return absent.U32
	}
	return x >> n
}

// SarI64 is the arithmetic right shift for the signed analogue.
func SarI64(x int64, n uint32) int64 {
	if absent.IsI64(x) || n >= 64 {
		return absent.I64
	}
	return x >> n
}

// SarI32 is the 32-bit arithmetic right shift.
func SarI32(x int32, n uint32) int32 {
	if absent.IsI32(x) || n >= 32 {
		return absent.I32
	}
	return x >> n
}

// RolU64 rotates left; the count wraps modulo the width and is never
// absent on its own.
func RolU64(x uint64, n uint32) uint64 {
	if absent.IsU64(x) {
		return absent.U64
	}
	return bits.RotateLeft64(x, int(n%64))
}

// RorU64 rotates right.
func RorU64(x uint64, n uint32) uint64 {
	if absent.IsU64(x) {
		return absent.U64
	}
	return bits.RotateLeft64(x, -int(n%64))
}

func RolU32(x uint32, n uint32) uint32 {
	if absent.IsU32(x) {
		return absent.U32
	}
	return bits.RotateLeft32(x, int(n%32))
}

func RorU32(x uint32, n uint32) uint32 {
	if absent.IsU32(x) {
		return absent.U32
	}
	return bits.RotateLeft32(x, -int(n%32))
}

/* -------------------------------------------------------------------------
   Counting
   ------------------------------------------------------------------------- */

// PopcountU64 counts set bits; absent input yields the absent-count byte.
func PopcountU64(x uint64) uint8 {
	if absent.IsU64(x) {
		return absent.CountAbsent
	}
	return uint8(bits.OnesCount64(x))
}

func PopcountU32(x uint32) uint8 {
	if absent.IsU32(x) {
		return absent.CountAbsent
	}
	return uint8(bits.OnesCount32(x))
}

// ClzU64 counts leading zeros.
func ClzU64(x uint64) uint8 {
	if absent.IsU64(x) {
		return absent.CountAbsent
	}
	return uint8(bits.LeadingZeros64(x))
}

// CtzU64 counts trailing zeros.
func CtzU64(x uint64) uint8 {
	if absent.IsU64(x) {
		return absent.CountAbsent
	}
	return uint8(bits.TrailingZeros64(x))
}

// FfsU64 finds the first (lowest) set bit, 1-based; zero input returns 0.
func FfsU64(x uint64) uint8 {
	if absent.IsU64(x) {
		return absent.CountAbsent
	}
	if x == 0 {
		return 0
	}
	return uint8(bits.TrailingZeros64(x)) + 1
}

// FlsU64 finds the last (highest) set bit, 1-based; zero input returns 0.
func FlsU64(x uint64) uint8 {
	if absent.IsU64(x) {
		return absent.CountAbsent
	}
	return uint8(64 - bits.LeadingZeros64(x))
}

/* -------------------------------------------------------------------------
   Byte / bit reversal, power-of-two helpers
   ------------------------------------------------------------------------- */

// BswapU64 reverses byte order, preserving absence (which is all ones and
// maps to itself anyway; the check keeps the contract explicit).
func BswapU64(x uint64) uint64 {
	if absent.IsU64(x) {
		return absent.U64
	}
	return bits.ReverseBytes64(x)
}

func BswapU32(x uint32) uint32 {
	if absent.IsU32(x) {
		return absent.U32
	}
	return bits.ReverseBytes32(x)
}

// BitrevU64 reverses bit order.
func BitrevU64(x uint64) uint64 {
	if absent.IsU64(x) {
		return absent.U64
	}
	return bits.Reverse64(x)
}

func BitrevU32(x uint32) uint32 {
	if absent.IsU32(x) {
		return absent.U32
	}
	return bits.Reverse32(x)
}

// IsPow2U64 is false for zero, absent for absent, true iff one bit set.
func IsPow2U64(x uint64) absent.VBit {
	if absent.IsU64(x) {
		return absent.VAbsent
	}
	return absent.VBitFromBool(x != 0 && x&(x-1) == 0)
}

// NextPow2U64 rounds up to a power of two.  Results needing the top bit
// of the width collide with the reserved sentinel range and are absent.
func NextPow2U64(x uint64) uint64 {
	if absent.IsU64(x) {
		return absent.U64
	}
	if x <= 1 {
		return 1
	}
	lz := bits.LeadingZeros64(x - 1)
	if lz <= 1 {
		return absent.U64
	}
	return 1 << (64 - lz)
}

// NextPow2U32 is the 32-bit analogue.
func NextPow2U32(x uint32) uint32 {
	if absent.IsU32(x) {
		return absent.U32
	}
	if x <= 1 {
		return 1
	}
	lz := bits.LeadingZeros32(x - 1)
	if lz <= 1 {
		return absent.U32
	}
	return 1 << (32 - lz)
}

/* -------------------------------------------------------------------------
   Portable pdep / pext
   ------------------------------------------------------------------------- */

// PdepU64 deposits the low bits of src into the positions selected by
// mask, lowest set bit first.  Portable per-lowest-bit loop; the BMI2
// instruction computes the identical result where available.
func PdepU64(src, mask uint64) uint64 {
	if absent.IsU64(src) || absent.IsU64(mask) {
		return absent.U64
	}
	var out uint64
	bit := uint64(1)
	for m := mask; m != 0; m &= m - 1 {
		low := m & -m
		if src&bit != 0 {
			out |= low
		}
		bit <<= 1
	}
	return out
}

// PextU64 extracts the bits of src selected by mask into a packed low
// field, lowest set bit first.
func PextU64(src, mask uint64) uint64 {
	if absent.IsU64(src) || absent.IsU64(mask) {
		return absent.U64
	}
	var out uint64
	bit := uint64(1)
	for m := mask; m != 0; m &= m - 1 {
		low := m & -m
		if src&low != 0 {
			out |= bit
		}
		bit <<= 1
	}
	return out
}
