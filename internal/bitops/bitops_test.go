package bitops

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seraphos/substrate/internal/absent"
)

func TestSingleBitRange(t *testing.T) {
	assert.Equal(t, uint64(1), GetU64(0b100, 2))
	assert.Equal(t, uint64(0), GetU64(0b100, 3))
	assert.Equal(t, absent.U64, GetU64(0b100, 64))
	assert.Equal(t, absent.U64, GetU64(absent.U64, 0))

	assert.Equal(t, uint64(0b101), SetU64(0b100, 0))
	assert.Equal(t, uint64(0b000), ClearU64(0b100, 2))
	assert.Equal(t, uint64(0b110), ToggleU64(0b100, 1))
	assert.Equal(t, absent.VTrue, TestU64(0b100, 2))
	assert.Equal(t, absent.VAbsent, TestU64(0b100, 99))
}

func TestExtractInsert(t *testing.T) {
	x := uint64(0xABCD_1234_5678_9EF0)
	assert.Equal(t, uint64(0xF), ExtractU64(x, 4, 4))
	assert.Equal(t, x, ExtractU64(x, 0, 64))
	assert.Equal(t, absent.U64, ExtractU64(x, 0, 0))
	assert.Equal(t, absent.U64, ExtractU64(x, 61, 4))

	assert.Equal(t, uint64(0xF0F), InsertU64(0xF00, 0xF, 0, 4))
	assert.Equal(t, absent.U64, InsertU64(0xF00, 0xF, 61, 4))
	assert.Equal(t, absent.U64, InsertU64(0xF00, absent.U64, 0, 4))

	// Round trip: insert then extract reproduces the field.
	merged := InsertU64(0, 0x2A, 17, 9)
	assert.Equal(t, uint64(0x2A), ExtractU64(merged, 17, 9))
}

func TestShiftsAndRotates(t *testing.T) {
	assert.Equal(t, uint64(8), ShlU64(1, 3))
	assert.Equal(t, absent.U64, ShlU64(1, 64))
	assert.Equal(t, absent.U64, ShrU64(1, 64))

	x := uint64(0x8000_0000_0000_0001)
	assert.Equal(t, x, RolU64(x, 64)) // rotate count wraps, never absent
	assert.Equal(t, uint64(3), RolU64(x, 1))
	assert.Equal(t, x, RorU64(RolU64(x, 13), 13))

	assert.Equal(t, int64(-1), SarI64(-1, 5))
	assert.Equal(t, int64(-4), SarI64(-16, 2))
	assert.Equal(t, absent.I64, SarI64(-16, 64))
}

func TestCounts(t *testing.T) {
	assert.Equal(t, uint8(3), PopcountU64(0b10101))
	assert.Equal(t, absent.CountAbsent, PopcountU64(absent.U64))
	assert.Equal(t, uint8(0), FfsU64(0))
	assert.Equal(t, uint8(1), FfsU64(1))
	assert.Equal(t, uint8(5), FfsU64(0b10000))
	assert.Equal(t, uint8(5), FlsU64(0b10001))
	assert.Equal(t, uint8(64), ClzU64(0))
	assert.Equal(t, uint8(0), CtzU64(1))
	assert.Equal(t, absent.CountAbsent, ClzU64(absent.U64))
}

func TestPow2Helpers(t *testing.T) {
	assert.Equal(t, absent.VFalse, IsPow2U64(0))
	assert.Equal(t, absent.VTrue, IsPow2U64(4096))
	assert.Equal(t, absent.VFalse, IsPow2U64(12))
	assert.Equal(t, absent.VAbsent, IsPow2U64(absent.U64))

	assert.Equal(t, uint64(1), NextPow2U64(0))
	assert.Equal(t, uint64(8), NextPow2U64(5))
	assert.Equal(t, uint64(1<<62), NextPow2U64(1<<62))
	assert.Equal(t, absent.U64, NextPow2U64(1<<62+1))
}

func TestBswapBitrev(t *testing.T) {
	assert.Equal(t, uint64(0xEFBE_ADDE_0000_0000), BswapU64(0xDEADBEEF))
	assert.Equal(t, absent.U64, BswapU64(absent.U64))
	assert.Equal(t, uint32(0x80000000), BitrevU32(1))
}

func TestPdepPext(t *testing.T) {
	// Scatter then gather through the same mask is the identity on the
	// packed field.
	mask := uint64(0b1011_0010)
	src := uint64(0b1011)
	dep := PdepU64(src, mask)
	assert.Equal(t, uint64(0b1001_0010), dep)
	assert.Equal(t, src, PextU64(dep, mask))

	assert.Equal(t, absent.U64, PdepU64(absent.U64, mask))
	assert.Equal(t, absent.U64, PextU64(src, absent.U64))
}

func TestBitArray(t *testing.T) {
	a := NewBitArray(130)
	assert.Equal(t, uint64(130), a.Len())

	assert.Equal(t, absent.VTrue, a.Set(0))
	assert.Equal(t, absent.VTrue, a.Set(64))
	assert.Equal(t, absent.VTrue, a.Set(129))
	assert.Equal(t, absent.VAbsent, a.Set(130))

	assert.Equal(t, absent.VTrue, a.Test(64))
	assert.Equal(t, absent.VFalse, a.Test(63))
	assert.Equal(t, uint64(3), a.Popcount())
	assert.Equal(t, uint64(0), a.FirstSet())

	a.Clear(0)
	assert.Equal(t, uint64(64), a.FirstSet())
	a.Reset()
	assert.Equal(t, uint64(0), a.Popcount())
	assert.Equal(t, absent.U64, a.FirstSet())
}
