package substrate

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seraphos/substrate/internal/absent"
	"github.com/seraphos/substrate/internal/aether"
	"github.com/seraphos/substrate/internal/capability"
)

func TestEndToEndReadWrite(t *testing.T) {
	s, err := New(3, WithArenaCapacity(2<<20), WithCacheSlots(16))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	addr := aether.MakeAddr(0, 128)

	require.Equal(t, aether.StatusOK, s.Write(ctx, 0, addr, []byte("hello")))

	buf := make([]byte, 5)
	require.Equal(t, aether.StatusOK, s.Read(ctx, 1, addr, buf))
	assert.Equal(t, []byte("hello"), buf)

	require.Equal(t, aether.StatusOK, s.Write(ctx, 2, addr, []byte("world")))
	require.Equal(t, aether.StatusOK, s.Read(ctx, 1, addr, buf))
	assert.Equal(t, []byte("world"), buf)

	stats := s.Stats()
	assert.NotZero(t, stats[1].RemoteReads)
	assert.NotZero(t, stats[2].RemoteWrites)
}

func TestArenaCapabilityThroughFacade(t *testing.T) {
	s, err := New(1, WithArenaCapacity(1<<20), WithCacheSlots(4))
	require.NoError(t, err)
	defer s.Close()

	mem := s.Arena(0)
	require.NotNil(t, mem)

	p := mem.Alloc(128, 0)
	require.False(t, absent.IsU64(p))
	c := mem.GetCapability(p, 128, capability.PermRW|capability.PermDerive)
	require.False(t, c.IsAbsent())

	h := s.Table().Alloc(c)
	require.False(t, h.IsAbsent())
	got := s.Table().Lookup(h)
	assert.Equal(t, c.Base, got.Base)
}

func TestMetricsCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := New(2, WithArenaCapacity(1<<20), WithCacheSlots(4), WithMetrics(reg))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Register())

	addr := aether.MakeAddr(0, 0)
	require.Equal(t, aether.StatusOK, s.Write(context.Background(), 0, addr, []byte{1}))
	buf := make([]byte, 1)
	require.Equal(t, aether.StatusOK, s.Read(context.Background(), 1, addr, buf))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["seraph_cache_misses_total"])
	assert.True(t, names["seraph_arena_used_bytes"])
}

func TestConfigValidation(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)

	// Arena too small to hold the page cache.
	_, err = New(1, WithArenaCapacity(4096), WithCacheSlots(64))
	assert.Error(t, err)
}
