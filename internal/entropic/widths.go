// widths.go pins the generic cores to the concrete widths the substrate
// exposes.  Call sites with a statically known width use these; the
// generic forms remain available for width-polymorphic code.
//
// © 2025 seraph authors. MIT License.

package entropic

func AddU8(a, b uint8, m Mode) uint8    { return AddU(a, b, m) }
func AddU16(a, b uint16, m Mode) uint16 { return AddU(a, b, m) }
func AddU32(a, b uint32, m Mode) uint32 { return AddU(a, b, m) }
func AddU64(a, b uint64, m Mode) uint64 { return AddU(a, b, m) }

func SubU8(a, b uint8, m Mode) uint8    { return SubU(a, b, m) }
func SubU16(a, b uint16, m Mode) uint16 { return SubU(a, b, m) }
func SubU32(a, b uint32, m Mode) uint32 { return SubU(a, b, m) }
func SubU64(a, b uint64, m Mode) uint64 { return SubU(a, b, m) }

func MulU8(a, b uint8, m Mode) uint8    { return MulU(a, b, m) }
func MulU16(a, b uint16, m Mode) uint16 { return MulU(a, b, m) }
func MulU32(a, b uint32, m Mode) uint32 { return MulU(a, b, m) }
func MulU64(a, b uint64, m Mode) uint64 { return MulU(a, b, m) }

func DivU8(a, b uint8, m Mode) uint8    { return DivU(a, b, m) }
func DivU16(a, b uint16, m Mode) uint16 { return DivU(a, b, m) }
func DivU32(a, b uint32, m Mode) uint32 { return DivU(a, b, m) }
func DivU64(a, b uint64, m Mode) uint64 { return DivU(a, b, m) }

func ModU8(a, b uint8, m Mode) uint8    { return ModU(a, b, m) }
func ModU16(a, b uint16, m Mode) uint16 { return ModU(a, b, m) }
func ModU32(a, b uint32, m Mode) uint32 { return ModU(a, b, m) }
func ModU64(a, b uint64, m Mode) uint64 { return ModU(a, b, m) }

func AddI8(a, b int8, m Mode) int8    { return AddI(a, b, m) }
func AddI16(a, b int16, m Mode) int16 { return AddI(a, b, m) }
func AddI32(a, b int32, m Mode) int32 { return AddI(a, b, m) }
func AddI64(a, b int64, m Mode) int64 { return AddI(a, b, m) }

func SubI8(a, b int8, m Mode) int8    { return SubI(a, b, m) }
func SubI16(a, b int16, m Mode) int16 { return SubI(a, b, m) }
func SubI32(a, b int32, m Mode) int32 { return SubI(a, b, m) }
func SubI64(a, b int64, m Mode) int64 { return SubI(a, b, m) }

func MulI8(a, b int8, m Mode) int8    { return MulI(a, b, m) }
func MulI16(a, b int16, m Mode) int16 { return MulI(a, b, m) }
func MulI32(a, b int32, m Mode) int32 { return MulI(a, b, m) }
func MulI64(a, b int64, m Mode) int64 { return MulI(a, b, m) }

func DivI8(a, b int8, m Mode) int8    { return DivI(a, b, m) }
func DivI16(a, b int16, m Mode) int16 { return DivI(a, b, m) }
func DivI32(a, b int32, m Mode) int32 { return DivI(a, b, m) }
func DivI64(a, b int64, m Mode) int64 { return DivI(a, b, m) }

func ModI8(a, b int8, m Mode) int8    { return ModI(a, b, m) }
func ModI16(a, b int16, m Mode) int16 { return ModI(a, b, m) }
func ModI32(a, b int32, m Mode) int32 { return ModI(a, b, m) }
func ModI64(a, b int64, m Mode) int64 { return ModI(a, b, m) }

func NegI8(a int8, m Mode) int8    { return NegI(a, m) }
func NegI16(a int16, m Mode) int16 { return NegI(a, m) }
func NegI32(a int32, m Mode) int32 { return NegI(a, m) }
func NegI64(a int64, m Mode) int64 { return NegI(a, m) }

func AbsI8(a int8, m Mode) int8    { return AbsI(a, m) }
func AbsI16(a int16, m Mode) int16 { return AbsI(a, m) }
func AbsI32(a int32, m Mode) int32 { return AbsI(a, m) }
func AbsI64(a int64, m Mode) int64 { return AbsI(a, m) }

func PowU32(base, exp uint32, m Mode) uint32 { return PowU(base, exp, m) }
func PowU64(base, exp uint64, m Mode) uint64 { return PowU(base, exp, m) }
func PowI64(base int64, exp uint32, m Mode) int64 {
	return PowI(base, exp, m)
}
