package absent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinels(t *testing.T) {
	assert.Equal(t, uint8(0xFF), U8)
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), U64)
	assert.Equal(t, int64(-0x8000000000000000), I64)

	assert.Equal(t, U64, Unsigned[uint64]())
	assert.Equal(t, U16, Unsigned[uint16]())
	assert.Equal(t, I8, Signed[int8]())
	assert.Equal(t, I32, Signed[int32]())
	assert.Equal(t, I64, Signed[int64]())
}

func TestSaturationLimitsStayDistinguishable(t *testing.T) {
	assert.Equal(t, U64-1, SatMax[uint64]())
	assert.Equal(t, I64+1, SatMinSigned[int64]())
	assert.Equal(t, int64(0x7FFFFFFFFFFFFFFF), SatMaxSigned[int64]())

	assert.NotEqual(t, U32, SatMaxU32)
	assert.NotEqual(t, I16, SatMinI16)
}

func TestMaskAndSelect(t *testing.T) {
	require.Equal(t, uint64(0), Mask(uint64(42)))
	require.Equal(t, ^uint64(0), Mask(U64))

	// Identity select on a non-absent value.
	x := uint64(0xDEADBEEF)
	assert.Equal(t, x, Select(U64, x, Mask(x)))

	// Absent value routes to the if_absent arm.
	assert.Equal(t, uint64(7), Select(7, U64, Mask(U64)))

	// Binary combinator: absent if either side is absent.
	assert.Equal(t, uint64(0), Mask2(uint64(1), uint64(2)))
	assert.Equal(t, ^uint64(0), Mask2(uint64(1), U64))
	assert.Equal(t, ^uint64(0), Mask2(U64, uint64(2)))
}

func TestVBitKleeneTables(t *testing.T) {
	cases := []struct {
		a, b     VBit
		and, or  VBit
		xor      VBit
	}{
		{VFalse, VFalse, VFalse, VFalse, VFalse},
		{VFalse, VTrue, VFalse, VTrue, VTrue},
		{VTrue, VTrue, VTrue, VTrue, VFalse},
		{VFalse, VAbsent, VFalse, VAbsent, VAbsent}, // false dominates AND only
		{VTrue, VAbsent, VAbsent, VTrue, VAbsent},   // true dominates OR only
		{VAbsent, VAbsent, VAbsent, VAbsent, VAbsent},
	}
	for _, c := range cases {
		assert.Equal(t, c.and, c.a.And(c.b), "%v AND %v", c.a, c.b)
		assert.Equal(t, c.and, c.b.And(c.a), "%v AND %v", c.b, c.a)
		assert.Equal(t, c.or, c.a.Or(c.b), "%v OR %v", c.a, c.b)
		assert.Equal(t, c.or, c.b.Or(c.a), "%v OR %v", c.b, c.a)
		assert.Equal(t, c.xor, c.a.Xor(c.b), "%v XOR %v", c.a, c.b)
	}
	assert.Equal(t, VAbsent, VAbsent.Not())
	assert.Equal(t, VFalse, VTrue.Not())
	assert.Equal(t, VTrue, VFalse.Not())
}
