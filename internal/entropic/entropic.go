// Package entropic implements the substrate's integer arithmetic.  Every
// operation takes an overflow Mode and propagates the absence sentinels
// from package absent:
//
//   • any absent operand → absent result, except that the signed minimum
//     given to NegI/AbsI, or as the dividend of MIN / −1 and MIN % −1,
//     takes the distinguished-overflow result documented on those
//     functions;
//   • division or modulo by zero → absent in every mode;
//   • overflow → absent (VOID), modular wrap (WRAP), or the saturation
//     limit nearest the true result (SATURATE).
//
// A raw result that lands exactly on the reserved sentinel pattern is
// treated as overflow in VOID and SATURATE modes; WRAP returns the raw
// two's-complement bits unconditionally.
//
// The package is written as a generic core over x/exp/constraints with
// per-width exported wrappers in widths.go; call sites that know their
// width statically pay nothing for the genericity.
//
// © 2025 seraph authors. MIT License.

package entropic

import (
	"math/bits"

	"golang.org/x/exp/constraints"

	"github.com/seraphos/substrate/internal/absent"
)

// Mode selects what happens to a result that cannot be represented.
type Mode uint8

const (
	Void Mode = iota // overflow poisons the result
	Wrap             // modular arithmetic
	Saturate         // clamp to the nearest saturation limit
)

// String renders the mode for logs and test names.
func (m Mode) String() string {
	switch m {
	case Void:
		return "void"
	case Wrap:
		return "wrap"
	case Saturate:
		return "saturate"
	default:
		return "mode?"
	}
}

/* -------------------------------------------------------------------------
   Unsigned core
   ------------------------------------------------------------------------- */

// resolveU maps a raw unsigned result plus overflow direction onto the
// mode-specific value.  neg means the true result underflowed below zero.
func resolveU[T constraints.Unsigned](raw T, over, neg bool, m Mode) T {
	if !over && raw != absent.Unsigned[T]() {
		return raw
	}
	switch m {
	case Wrap:
		return raw
	case Saturate:
		if neg {
			return 0
		}
		return absent.SatMax[T]()
	default:
		return absent.Unsigned[T]()
	}
}

// AddU adds two unsigned values under the given mode.
func AddU[T constraints.Unsigned](a, b T, m Mode) T {
	if absent.IsU(a) || absent.IsU(b) {
		return absent.Unsigned[T]()
	}
	s := a + b
	return resolveU(s, s < a, false, m)
}

// SubU subtracts b from a; underflow saturates to zero.
func SubU[T constraints.Unsigned](a, b T, m Mode) T {
	if absent.IsU(a) || absent.IsU(b) {
		return absent.Unsigned[T]()
	}
	d := a - b
	return resolveU(d, b > a, true, m)
}

// MulU multiplies two unsigned values under the given mode.
func MulU[T constraints.Unsigned](a, b T, m Mode) T {
	if absent.IsU(a) || absent.IsU(b) {
		return absent.Unsigned[T]()
	}
	raw, over := mulOverU(a, b)
	return resolveU(raw, over, false, m)
}

func mulOverU[T constraints.Unsigned](a, b T) (T, bool) {
	switch av := any(a).(type) {
	case uint64:
		hi, lo := bits.Mul64(av, uint64(any(b).(uint64)))
		return T(lo), hi != 0
	case uint:
		hi, lo := bits.Mul64(uint64(av), uint64(any(b).(uint)))
		return T(lo), hi != 0
	default:
		// Narrow widths fit a 64-bit product exactly.
		wide := uint64(a) * uint64(b)
		return T(wide), wide > uint64(absent.Unsigned[T]())
	}
}

// DivU divides a by b; a zero divisor is absent in every mode.  Unsigned
// division cannot otherwise overflow.
func DivU[T constraints.Unsigned](a, b T, m Mode) T {
	if absent.IsU(a) || absent.IsU(b) || b == 0 {
		return absent.Unsigned[T]()
	}
	return a / b
}

// ModU is the unsigned remainder with the same zero-divisor rule.
func ModU[T constraints.Unsigned](a, b T, m Mode) T {
	if absent.IsU(a) || absent.IsU(b) || b == 0 {
		return absent.Unsigned[T]()
	}
	return a % b
}

/* -------------------------------------------------------------------------
   Signed core
   ------------------------------------------------------------------------- */

// resolveI maps a raw signed result plus an overflow direction onto the
// mode-specific value.  pos selects the positive saturation limit.
func resolveI[T constraints.Signed](raw T, over, pos bool, m Mode) T {
	if !over && raw != absent.Signed[T]() {
		return raw
	}
	switch m {
	case Wrap:
		return raw
	case Saturate:
		if pos {
			return absent.SatMaxSigned[T]()
		}
		return absent.SatMinSigned[T]()
	default:
		return absent.Signed[T]()
	}
}

// AddI adds two signed values under the given mode.
func AddI[T constraints.Signed](a, b T, m Mode) T {
	if absent.IsI(a) || absent.IsI(b) {
		return absent.Signed[T]()
	}
	s := a + b
	over := (b > 0 && s < a) || (b < 0 && s > a)
	return resolveI(s, over, b > 0, m)
}

// SubI subtracts b from a under the given mode.
func SubI[T constraints.Signed](a, b T, m Mode) T {
	if absent.IsI(a) || absent.IsI(b) {
		return absent.Signed[T]()
	}
	d := a - b
	over := (b < 0 && d < a) || (b > 0 && d > a)
	return resolveI(d, over, b < 0, m)
}

// MulI multiplies two signed values under the given mode.  The saturation
// direction follows the operand signs: (+,+) and (−,−) clamp positive,
// mixed signs clamp negative.
func MulI[T constraints.Signed](a, b T, m Mode) T {
	if absent.IsI(a) || absent.IsI(b) {
		return absent.Signed[T]()
	}
	raw := a * b
	over := false
	if a != 0 {
		over = raw/a != b
	}
	min := absent.Signed[T]()
	if (a == -1 && b == min) || (b == -1 && a == min) {
		over = true
	}
	pos := (a > 0) == (b > 0)
	return resolveI(raw, over, pos, m)
}

// DivI divides a by b.  A zero divisor is absent in every mode; MIN / −1
// is the distinguished overflow, handled exactly like negating MIN.
func DivI[T constraints.Signed](a, b T, m Mode) T {
	min := absent.Signed[T]()
	if a == min && b == -1 {
		return resolveI(min, true, true, m)
	}
	if absent.IsI(a) || absent.IsI(b) || b == 0 {
		return absent.Signed[T]()
	}
	return resolveI(a/b, false, (a < 0) == (b < 0), m)
}

// ModI is the signed remainder.  MIN % −1 follows the distinguished
// overflow with a zero raw result.
func ModI[T constraints.Signed](a, b T, m Mode) T {
	min := absent.Signed[T]()
	if a == min && b == -1 {
		return resolveI(0, true, true, m)
	}
	if absent.IsI(a) || absent.IsI(b) || b == 0 {
		return absent.Signed[T]()
	}
	return resolveI(a%b, false, a >= 0, m)
}

// NegI negates a.  Negating MIN is absent (VOID), the positive saturation
// limit (SATURATE) or MIN itself (WRAP, defined).
func NegI[T constraints.Signed](a T, m Mode) T {
	min := absent.Signed[T]()
	if a == min {
		return resolveI(min, true, true, m)
	}
	return -a
}

// AbsI returns the magnitude of a with the same MIN handling as NegI.
func AbsI[T constraints.Signed](a T, m Mode) T {
	if a >= 0 {
		return a
	}
	return NegI(a, m)
}

/* -------------------------------------------------------------------------
   Checked variants
   ------------------------------------------------------------------------- */

// CheckedAddU returns the raw modular sum and an overflow flag.  The flag
// is also set when either operand is absent.
func CheckedAddU[T constraints.Unsigned](a, b T) (T, bool) {
	if absent.IsU(a) || absent.IsU(b) {
		return absent.Unsigned[T](), true
	}
	s := a + b
	return s, s < a
}

// CheckedSubU returns the raw modular difference and an underflow flag.
func CheckedSubU[T constraints.Unsigned](a, b T) (T, bool) {
	if absent.IsU(a) || absent.IsU(b) {
		return absent.Unsigned[T](), true
	}
	return a - b, b > a
}

// CheckedMulU returns the raw modular product and an overflow flag.
func CheckedMulU[T constraints.Unsigned](a, b T) (T, bool) {
	if absent.IsU(a) || absent.IsU(b) {
		return absent.Unsigned[T](), true
	}
	return mulOverU(a, b)
}

// CheckedAddI returns the raw wrapped sum and an overflow flag.
func CheckedAddI[T constraints.Signed](a, b T) (T, bool) {
	if absent.IsI(a) || absent.IsI(b) {
		return absent.Signed[T](), true
	}
	s := a + b
	return s, (b > 0 && s < a) || (b < 0 && s > a)
}

// CheckedSubI returns the raw wrapped difference and an overflow flag.
func CheckedSubI[T constraints.Signed](a, b T) (T, bool) {
	if absent.IsI(a) || absent.IsI(b) {
		return absent.Signed[T](), true
	}
	d := a - b
	return d, (b < 0 && d < a) || (b > 0 && d > a)
}

// CheckedMulI returns the raw wrapped product and an overflow flag.
func CheckedMulI[T constraints.Signed](a, b T) (T, bool) {
	if absent.IsI(a) || absent.IsI(b) {
		return absent.Signed[T](), true
	}
	raw := a * b
	over := a != 0 && raw/a != b
	min := absent.Signed[T]()
	if (a == -1 && b == min) || (b == -1 && a == min) {
		over = true
	}
	return raw, over
}

/* -------------------------------------------------------------------------
   Exponentiation
   ------------------------------------------------------------------------- */

// PowU raises base to exp by repeated squaring.  Overflow at any step
// triggers the mode behaviour; once saturated the result stays pinned.
func PowU[T constraints.Unsigned](base, exp T, m Mode) T {
	if absent.IsU(base) || absent.IsU(exp) {
		return absent.Unsigned[T]()
	}
	result := T(1)
	acc := base
	for exp > 0 {
		if exp&1 == 1 {
			result = MulU(result, acc, m)
			if absent.IsU(result) {
				return result
			}
		}
		exp >>= 1
		if exp > 0 {
			acc = MulU(acc, acc, m)
			if absent.IsU(acc) {
				return acc
			}
		}
	}
	return result
}

// PowI raises a signed base to an unsigned exponent by repeated squaring.
func PowI[T constraints.Signed](base T, exp uint32, m Mode) T {
	if absent.IsI(base) || absent.IsU32(exp) {
		return absent.Signed[T]()
	}
	result := T(1)
	acc := base
	for exp > 0 {
		if exp&1 == 1 {
			result = MulI(result, acc, m)
			if absent.IsI(result) {
				return result
			}
		}
		exp >>= 1
		if exp > 0 {
			acc = MulI(acc, acc, m)
			if absent.IsI(acc) {
				return acc
			}
		}
	}
	return result
}
