package arena

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seraphos/substrate/internal/absent"
	"github.com/seraphos/substrate/internal/capability"
)

func TestAllocBumpAndAlignment(t *testing.T) {
	a := New(4096, 16, 0, nil)
	require.NotNil(t, a)
	assert.Equal(t, uint32(1), a.Generation())

	p1 := a.Alloc(10, 0)
	require.False(t, absent.IsU64(p1))
	assert.Zero(t, p1%16)

	p2 := a.Alloc(10, 64)
	require.False(t, absent.IsU64(p2))
	assert.Zero(t, p2%64)
	assert.Greater(t, p2, p1)

	assert.Equal(t, uint64(2), a.AllocCount())
}

func TestAllocExactCapacityBoundary(t *testing.T) {
	a := New(256, 1, 0, nil)
	require.NotNil(t, a)

	// Exactly the remaining capacity succeeds; one byte more fails.
	p := a.Alloc(256, 1)
	require.False(t, absent.IsU64(p))
	assert.Equal(t, uint64(256), a.Used())
	assert.True(t, absent.IsU64(a.Alloc(1, 1)))

	b := New(256, 1, 0, nil)
	assert.True(t, absent.IsU64(b.Alloc(257, 1)))
}

func TestResetAdvancesGeneration(t *testing.T) {
	a := New(1024, 0, ZeroOnReset, nil)
	require.NotNil(t, a)

	p := a.Alloc(64, 0)
	require.False(t, absent.IsU64(p))
	copy(a.Bytes(p, 4), []byte{1, 2, 3, 4})

	a.Reset()
	assert.Equal(t, uint32(2), a.Generation())
	assert.Equal(t, uint64(0), a.Used())
	assert.Equal(t, []byte{0, 0, 0, 0}, a.Bytes(p, 4))
}

func TestGenerationWrapSkipsSentinel(t *testing.T) {
	a := New(64, 0, 0, nil)
	a.generation = maxValidGeneration
	a.Reset()
	assert.Equal(t, uint32(1), a.Generation())
}

func TestCapabilityLifecycle(t *testing.T) {
	a := New(4096, 0, 0, nil)
	p := a.Alloc(128, 0)
	require.False(t, absent.IsU64(p))

	c := a.GetCapability(p, 128, capability.PermRW)
	require.False(t, c.IsAbsent())
	assert.True(t, a.CheckCapability(c))

	// End-to-end: write through the capability, read back, reset, absent.
	assert.Equal(t, absent.VTrue, a.Write8(c, 0, 0x42))
	assert.Equal(t, uint8(0x42), a.Read8(c, 0))

	a.Reset()
	assert.False(t, a.CheckCapability(c))
	assert.Equal(t, absent.U8, a.Read8(c, 0))
	assert.Equal(t, absent.VFalse, a.Write8(c, 0, 1))

	// Out-of-pool windows are refused at issue time.
	bad := a.GetCapability(p, a.Capacity()+1, capability.PermRead)
	assert.True(t, bad.IsAbsent())
}

func TestPersistentArenaRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pool := filepath.Join(dir, "pool.seraph")

	a, err := NewPersistent(pool, 8192, 0, 0, true, nil)
	require.NoError(t, err)

	p := a.Alloc(32, 0)
	require.False(t, absent.IsU64(p))
	binary.LittleEndian.PutUint64(a.Bytes(p, 8), 0xFEEDFACE)
	require.NoError(t, a.Sync())

	ms, err := OpenMetaStore(filepath.Join(dir, "meta"))
	require.NoError(t, err)
	defer ms.Close()
	require.NoError(t, ms.SaveArena(a))

	used := a.Used()
	gen := a.Generation()
	off := p - a.base()
	require.NoError(t, a.Destroy())

	// Reopen: pool content survives, metadata comes from the store.
	b, err := NewPersistent(pool, 8192, 0, 0, true, nil)
	require.NoError(t, err)
	defer b.Destroy()

	meta, found, err := ms.LoadArena(pool)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, used, meta.Used)
	assert.Equal(t, gen, meta.Generation)
	require.NoError(t, b.Restore(meta))

	assert.Equal(t, uint64(0xFEEDFACE), binary.LittleEndian.Uint64(b.Bytes(b.base()+off, 8)))
	assert.Equal(t, used, b.Used())
}

func TestSoAScatterGather(t *testing.T) {
	a := New(1<<16, 0, 0, nil)
	schema := Schema{
		RecordSize: 16,
		Fields: []Field{
			{Offset: 0, Size: 8, Align: 8},  // id
			{Offset: 8, Size: 4, Align: 4},  // score
			{Offset: 12, Size: 4, Align: 4}, // flags
		},
	}
	soa := NewSoA(a, schema, 32)
	require.NotNil(t, soa)

	rec := make([]byte, 16)
	for i := uint64(0); i < 4; i++ {
		binary.LittleEndian.PutUint64(rec[0:], 100+i)
		binary.LittleEndian.PutUint32(rec[8:], uint32(i*i))
		binary.LittleEndian.PutUint32(rec[12:], uint32(i))
		require.Equal(t, absent.VTrue, soa.Push(rec))
	}
	assert.Equal(t, uint64(4), soa.Count())

	out := make([]byte, 16)
	require.Equal(t, absent.VTrue, soa.Get(2, out))
	assert.Equal(t, uint64(102), binary.LittleEndian.Uint64(out[0:]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(out[8:]))

	// Set overwrites in place.
	binary.LittleEndian.PutUint32(rec[8:], 999)
	require.Equal(t, absent.VTrue, soa.Set(2, rec))
	require.Equal(t, absent.VTrue, soa.Get(2, out))
	assert.Equal(t, uint32(999), binary.LittleEndian.Uint32(out[8:]))

	assert.Equal(t, absent.VFalse, soa.Get(9, out))
}

func TestPrismStridedView(t *testing.T) {
	a := New(1<<16, 0, 0, nil)
	schema := Schema{
		RecordSize: 12,
		Fields: []Field{
			{Offset: 0, Size: 8, Align: 8},
			{Offset: 8, Size: 4, Align: 4},
		},
	}
	soa := NewSoA(a, schema, 8)
	require.NotNil(t, soa)

	rec := make([]byte, 12)
	for i := uint64(0); i < 3; i++ {
		binary.LittleEndian.PutUint64(rec[0:], i+1)
		binary.LittleEndian.PutUint32(rec[8:], uint32(i+1)*10)
		require.Equal(t, absent.VTrue, soa.Push(rec))
	}

	p := soa.Prism(1, capability.PermRead)
	require.False(t, p.IsAbsent())
	assert.Equal(t, uint64(4), p.Stride)
	assert.Equal(t, uint64(3), p.Count)

	el := p.Element(a, 1)
	require.NotNil(t, el)
	assert.Equal(t, uint32(20), binary.LittleEndian.Uint32(el))

	assert.Nil(t, p.Element(a, 3))

	// Arena reset makes the prism stale.
	a.Reset()
	assert.Nil(t, p.Element(a, 1))

	assert.True(t, soa.Prism(5, capability.PermRead).IsAbsent())
}

func TestSoAFailsWhenArenaFull(t *testing.T) {
	a := New(64, 0, 0, nil)
	schema := Schema{RecordSize: 8, Fields: []Field{{Offset: 0, Size: 8}}}
	assert.Nil(t, NewSoA(a, schema, 1024)) // 8 KiB of fields in a 64-byte arena
}
