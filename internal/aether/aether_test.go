package aether

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seraphos/substrate/internal/absent"
	"github.com/seraphos/substrate/internal/arena"
	"github.com/seraphos/substrate/internal/shield"
	"github.com/seraphos/substrate/internal/vclock"
)

func TestAddressCodec(t *testing.T) {
	addr := MakeAddr(5, 0x1234)
	assert.True(t, IsRemote(addr))
	assert.Equal(t, uint16(5), AddrNode(addr))
	assert.Equal(t, uint32(0x1234), AddrOffset(addr))

	assert.Equal(t, uint32(0x1000), PageAlign(0x1FFF))
	assert.Equal(t, uint32(0x1000), PageAlign(0x1000))

	assert.False(t, IsRemote(0x1000))
	assert.False(t, IsRemote(AddrEnd+1))
	assert.True(t, IsRemote(AddrBase))
	assert.True(t, IsRemote(AddrEnd))

	// 14-bit node space.
	assert.Equal(t, absent.U64, MakeAddr(0x4000, 0))
	top := MakeAddr(0x3FFF, 0xFFFFFFFF)
	assert.Equal(t, AddrEnd, top)
}

/* -------------------------------------------------------------------------
   Cluster harness
   ------------------------------------------------------------------------- */

type cluster struct {
	fabric *Fabric
	ring   *shield.Keyring
	nodes  map[uint16]*Node
}

func newCluster(t *testing.T, ids ...uint16) *cluster {
	t.Helper()
	c := &cluster{
		fabric: NewFabric(),
		ring:   shield.NewKeyring([]byte("test master")),
		nodes:  make(map[uint16]*Node),
	}
	for _, id := range ids {
		require.NoError(t, c.ring.Derive(id))
		c.ring.Grant(id, shield.OpAll)
	}
	for _, id := range ids {
		mem := arena.New(1<<20, 0, 0, nil)
		guard := shield.NewGuard(c.ring, shield.RateConfig{
			TokensPerSecond: 1 << 20, BucketSize: 1 << 20, TicksPerSecond: 1000,
		}, nil)
		n, err := NewNode(id, mem, guard, c.fabric, 8, nil)
		require.NoError(t, err)
		c.fabric.Attach(n)
		c.nodes[id] = n
	}
	return c
}

func TestPageCacheLRU(t *testing.T) {
	mem := arena.New(1<<16, 0, 0, nil)
	var writebacks int
	pc := NewPageCache(mem, 2, func(e *CacheEntry, page []byte) { writebacks++ })
	require.NotNil(t, pc)

	a1 := MakeAddr(1, 0)
	a2 := MakeAddr(1, PageSize)
	a3 := MakeAddr(1, 2*PageSize)

	require.NotNil(t, pc.Install(a1, []byte{1}, 1, 1, 0, nil))
	require.NotNil(t, pc.Install(a2, []byte{2}, 1, 1, 0, nil))

	// Touch a1 so a2 becomes the tail, then install a3: a2 evicts.
	require.NotNil(t, pc.Lookup(a1))
	require.NotNil(t, pc.Install(a3, []byte{3}, 1, 1, 0, nil))
	assert.Nil(t, pc.Peek(a2))
	assert.NotNil(t, pc.Peek(a1))
	assert.NotNil(t, pc.Peek(a3))
	assert.Zero(t, writebacks) // clean eviction

	// Dirty eviction goes through write-back.
	pc.Peek(a1).Dirty = true
	require.NotNil(t, pc.Lookup(a3)) // a1 becomes tail
	require.NotNil(t, pc.Install(a2, []byte{2}, 1, 1, 0, nil))
	assert.Equal(t, 1, writebacks)

	// Only Lookup counts misses, and every Lookup above hit.
	_, misses, evictions := pc.Stats()
	assert.Equal(t, uint64(0), misses)
	assert.Equal(t, uint64(2), evictions)
}

func TestReadRemotePage(t *testing.T) {
	c := newCluster(t, 1, 2)
	owner, reader := c.nodes[1], c.nodes[2]
	ctx := context.Background()

	// Seed the owner's home page locally.
	addr := MakeAddr(1, 64)
	require.Equal(t, StatusOK, owner.Write(ctx, addr, []byte("seraph")))

	buf := make([]byte, 6)
	require.Equal(t, StatusOK, reader.Read(ctx, addr, buf))
	assert.Equal(t, []byte("seraph"), buf)

	// Second read is a cache hit: no further fetch.
	before := reader.Snapshot()
	require.Equal(t, StatusOK, reader.Read(ctx, addr, buf))
	after := reader.Snapshot()
	assert.Equal(t, before.CacheMisses, after.CacheMisses)
	assert.Greater(t, after.CacheHits, before.CacheHits)

	// The owner's directory now lists the reader as a sharer.
	e := owner.dir.Get(0)
	require.NotNil(t, e)
	assert.Equal(t, DirShared, e.State)
	assert.True(t, e.HasSharer(2))
}

func TestRemoteWriteAndInvalidation(t *testing.T) {
	c := newCluster(t, 1, 2, 3)
	owner, writer, reader := c.nodes[1], c.nodes[2], c.nodes[3]
	ctx := context.Background()

	addr := MakeAddr(1, 0)
	require.Equal(t, StatusOK, owner.Write(ctx, addr, []byte{0xAA}))

	// Reader caches the page.
	buf := make([]byte, 1)
	require.Equal(t, StatusOK, reader.Read(ctx, addr, buf))
	require.NotNil(t, reader.cache.Peek(addr))

	// Remote write from another node invalidates the reader's copy and
	// takes the directory exclusive for the writer.
	require.Equal(t, StatusOK, writer.Write(ctx, addr, []byte{0xBB}))
	assert.Nil(t, reader.cache.Peek(addr))

	e := owner.dir.Get(0)
	require.NotNil(t, e)
	assert.Equal(t, DirExclusive, e.State)
	assert.Equal(t, uint16(2), e.ExclusiveOwner)
	assert.Empty(t, e.Sharers)

	// Reader re-fetches and sees the new value; directory downgrades to
	// SHARED and the writer's exclusivity is revoked.
	require.Equal(t, StatusOK, reader.Read(ctx, addr, buf))
	assert.Equal(t, byte(0xBB), buf[0])
	assert.Equal(t, DirShared, e.State)
}

func TestVectorClockCausalityAcrossNodes(t *testing.T) {
	c := newCluster(t, 1, 2)
	a, b := c.nodes[1], c.nodes[2]
	ctx := context.Background()

	addr := MakeAddr(1, 0)
	require.Equal(t, StatusOK, a.Write(ctx, addr, []byte{1}))
	snapA := a.VClock()

	// B reads the page: it inherits A's causal history and then writes,
	// advancing past it.
	buf := make([]byte, 1)
	require.Equal(t, StatusOK, b.Read(ctx, addr, buf))
	require.Equal(t, StatusOK, b.Write(ctx, addr, []byte{2}))

	assert.Equal(t, vclock.Before, vclock.Compare(snapA, b.VClock()))
	assert.Equal(t, vclock.After, vclock.Compare(b.VClock(), snapA))
}

func TestGenerationStaleness(t *testing.T) {
	c := newCluster(t, 1, 2)
	owner, reader := c.nodes[1], c.nodes[2]
	ctx := context.Background()

	addr := MakeAddr(1, 0)
	require.Equal(t, StatusOK, owner.Write(ctx, addr, []byte{7}))

	// Bump the owner's generation behind the reader's back.
	owner.mu.Lock()
	owner.generation++
	owner.mu.Unlock()

	buf := make([]byte, 1)
	require.Equal(t, StatusGeneration, reader.Read(ctx, addr, buf))

	// The rejection taught the reader the new generation; retry works.
	require.Equal(t, StatusOK, reader.Read(ctx, addr, buf))
	assert.Equal(t, byte(7), buf[0])

	// The owner logged the stale request.
	events := owner.SecurityLog().Read(4)
	require.NotEmpty(t, events)
	assert.Equal(t, shield.CheckGeneration, events[0].Failed)
}

func TestQueryGeneration(t *testing.T) {
	c := newCluster(t, 1, 2)
	owner, other := c.nodes[1], c.nodes[2]

	gen, st := other.QueryGeneration(context.Background(), 1)
	require.Equal(t, StatusOK, st)
	assert.Equal(t, uint64(1), gen)

	owner.mu.Lock()
	owner.generation = 9
	owner.mu.Unlock()

	gen, st = other.QueryGeneration(context.Background(), 1)
	require.Equal(t, StatusOK, st)
	assert.Equal(t, uint64(9), gen)
}

func TestRevokeInvalidatesCaches(t *testing.T) {
	c := newCluster(t, 1, 2)
	owner, reader := c.nodes[1], c.nodes[2]
	ctx := context.Background()

	addr := MakeAddr(1, 0)
	require.Equal(t, StatusOK, owner.Write(ctx, addr, []byte{1}))
	buf := make([]byte, 1)
	require.Equal(t, StatusOK, reader.Read(ctx, addr, buf))
	require.NotNil(t, reader.cache.Peek(addr))

	// A revocation frame bumps the reader's generation and clears its
	// cache.
	c.fabric.Post(reader.ID(), owner.buildRevoke(reader.ID()))

	assert.Nil(t, reader.cache.Peek(addr))
	assert.Equal(t, uint64(2), reader.Generation())
}

// buildRevoke creates an encoded REVOKE frame from n.
func (n *Node) buildRevoke(dst uint16) []byte {
	n.mu.Lock()
	f := n.newFrameLocked(shield.FrameRevoke, dst, 0, n.generation, n.vclock.Clone(), nil)
	n.mu.Unlock()
	return f.Encode(n.selfKey)
}

func TestUnreachableAndTimeout(t *testing.T) {
	c := newCluster(t, 1)
	n := c.nodes[1]

	buf := make([]byte, 1)
	assert.Equal(t, StatusUnreachable, n.Read(context.Background(), MakeAddr(9, 0), buf))

	// An already-expired context is a timeout; the vclock is untouched.
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	before := n.VClock()
	assert.Equal(t, StatusTimeout, n.Read(ctx, MakeAddr(9, 0), buf))
	assert.Equal(t, vclock.Equal, vclock.Compare(before, n.VClock()))
}

func TestReadRejectsNonAetherAddress(t *testing.T) {
	c := newCluster(t, 1)
	buf := make([]byte, 1)
	assert.Equal(t, StatusMalformed, c.nodes[1].Read(context.Background(), 0x1234, buf))
	assert.Equal(t, StatusMalformed, c.nodes[1].Read(context.Background(), absent.U64, buf))
}

func TestReadSpanningPages(t *testing.T) {
	c := newCluster(t, 1, 2)
	owner, reader := c.nodes[1], c.nodes[2]
	ctx := context.Background()

	// Write across a page boundary on the owner, read it back remotely.
	start := MakeAddr(1, PageSize-3)
	require.Equal(t, StatusOK, owner.Write(ctx, start, []byte{1, 2, 3, 4, 5, 6}))

	buf := make([]byte, 6)
	require.Equal(t, StatusOK, reader.Read(ctx, start, buf))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, buf)
}

func TestUnauthenticatedSourceIsDropped(t *testing.T) {
	c := newCluster(t, 1, 2)
	owner := c.nodes[1]

	// A forged frame signed with an unrelated key never reaches the
	// directory.
	rogue := shield.NewKeyring([]byte("rogue"))
	require.NoError(t, rogue.Derive(77))
	key, _ := rogue.KeyFor(77)
	f := &shield.Frame{
		Type: shield.FramePageReq, SrcNode: 77, DstNode: 1, Seq: 1,
		Generation: 1, VClock: vclock.New(77, 1),
	}
	assert.Nil(t, owner.HandleFrame(f.Encode(key)))
	assert.Equal(t, 0, owner.dir.Len())
	assert.NotZero(t, owner.SecurityLog().Count())
}
