// Package absent defines the substrate-wide "no value" sentinels and the
// branchless machinery built on top of them: per-width absence masks, a
// two-operand mask combinator and a mask-driven select.  Every other layer
// (entropic arithmetic, bit ops, arenas, capabilities, clocks) expresses
// its failure results through these sentinels instead of error returns.
//
// Encoding
// --------
// For an unsigned width the sentinel is the all-ones maximum; for a signed
// width it is the minimum representable value.  Saturation limits sit one
// short of the sentinel so a saturated result never collides with absence:
//   • unsigned: SatMax = sentinel − 1
//   • signed:   SatMin = sentinel + 1, SatMax = the ordinary maximum
//
// Concurrency
// -----------
// Everything here is pure functions over values; there is no state and no
// locking.
//
// © 2025 seraph authors. MIT License.

package absent

import (
	"math"

	"golang.org/x/exp/constraints"
)

/* -------------------------------------------------------------------------
   Sentinels & saturation limits
   ------------------------------------------------------------------------- */

const (
	U8  uint8  = math.MaxUint8
	U16 uint16 = math.MaxUint16
	U32 uint32 = math.MaxUint32
	U64 uint64 = math.MaxUint64

	I8  int8  = math.MinInt8
	I16 int16 = math.MinInt16
	I32 int32 = math.MinInt32
	I64 int64 = math.MinInt64

	SatMaxU8  uint8  = U8 - 1
	SatMaxU16 uint16 = U16 - 1
	SatMaxU32 uint32 = U32 - 1
	SatMaxU64 uint64 = U64 - 1

	SatMinI8  int8  = I8 + 1
	SatMinI16 int16 = I16 + 1
	SatMinI32 int32 = I32 + 1
	SatMinI64 int64 = I64 + 1

	SatMaxI8  int8  = math.MaxInt8
	SatMaxI16 int16 = math.MaxInt16
	SatMaxI32 int32 = math.MaxInt32
	SatMaxI64 int64 = math.MaxInt64

	// CountAbsent is returned by counting bit operations (popcount, clz,
	// ctz, ffs, fls) when their input is absent.
	CountAbsent uint8 = 0xFF
)

/* -------------------------------------------------------------------------
   Generic sentinel access
   ------------------------------------------------------------------------- */

// Unsigned returns the absence sentinel for any unsigned width: all ones.
func Unsigned[T constraints.Unsigned]() T { return ^T(0) }

// Signed returns the absence sentinel for any signed width: the minimum.
func Signed[T constraints.Signed]() T {
	var zero T
	bits := uint(8 * sizeOf(zero))
	return T(-1) << (bits - 1)
}

// SatMax returns the largest non-absent unsigned value.
func SatMax[T constraints.Unsigned]() T { return Unsigned[T]() - 1 }

// SatMinSigned returns the most negative non-absent signed value.
func SatMinSigned[T constraints.Signed]() T { return Signed[T]() + 1 }

// SatMaxSigned returns the largest signed value (the positive saturation
// limit; it does not collide with the sentinel, which is the minimum).
func SatMaxSigned[T constraints.Signed]() T { return ^Signed[T]() }

// IsU reports whether an unsigned value is the absence sentinel.
func IsU[T constraints.Unsigned](x T) bool { return x == Unsigned[T]() }

// IsI reports whether a signed value is the absence sentinel.
func IsI[T constraints.Signed](x T) bool { return x == Signed[T]() }

func sizeOf[T constraints.Integer](x T) uintptr {
	switch any(x).(type) {
	case uint8, int8:
		return 1
	case uint16, int16:
		return 2
	case uint32, int32:
		return 4
	default:
		return 8
	}
}

/* -------------------------------------------------------------------------
   Masks & select
   ------------------------------------------------------------------------- */

// Mask returns all ones when x is absent, zero otherwise.  The result is
// suitable for the Select combinator below.
func Mask[T constraints.Unsigned](x T) T {
	if IsU(x) {
		return ^T(0)
	}
	return 0
}

// Mask2 is the binary combinator: absent if either operand is absent.
func Mask2[T constraints.Unsigned](a, b T) T { return Mask(a) | Mask(b) }

// MaskSigned mirrors Mask for signed widths; the mask itself is the
// unsigned all-ones pattern reinterpreted in T.
func MaskSigned[T constraints.Signed](x T) T {
	if IsI(x) {
		return ^T(0)
	}
	return 0
}

// Mask2Signed is the signed binary combinator.
func Mask2Signed[T constraints.Signed](a, b T) T {
	return MaskSigned(a) | MaskSigned(b)
}

// Select picks ifAbsent where the mask is set and ifValid elsewhere:
//
//	(ifAbsent & mask) | (ifValid &^ mask)
//
// With a mask produced by Mask/Mask2 the mask is all ones or all zeros, so
// the whole value comes from one side.
func Select[T constraints.Unsigned](ifAbsent, ifValid, mask T) T {
	return (ifAbsent & mask) | (ifValid &^ mask)
}

// SelectSigned is Select over a signed width.
func SelectSigned[T constraints.Signed](ifAbsent, ifValid, mask T) T {
	return (ifAbsent & mask) | (ifValid &^ mask)
}

/* -------------------------------------------------------------------------
   Per-width conveniences (the surface most call sites use)
   ------------------------------------------------------------------------- */

func IsU8(x uint8) bool   { return x == U8 }
func IsU16(x uint16) bool { return x == U16 }
func IsU32(x uint32) bool { return x == U32 }
func IsU64(x uint64) bool { return x == U64 }

func IsI8(x int8) bool   { return x == I8 }
func IsI16(x int16) bool { return x == I16 }
func IsI32(x int32) bool { return x == I32 }
func IsI64(x int64) bool { return x == I64 }

func MaskU64(x uint64) uint64 { return Mask(x) }
func MaskU32(x uint32) uint32 { return Mask(x) }

func SelectU64(ifAbsent, ifValid, mask uint64) uint64 {
	return Select(ifAbsent, ifValid, mask)
}
