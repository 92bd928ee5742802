package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seraphos/substrate/internal/absent"
)

func TestTickMonotone(t *testing.T) {
	c := New(1)
	prev := c.Current()
	for i := 0; i < 100; i++ {
		v := c.Tick()
		require.False(t, absent.IsU64(v))
		require.Greater(t, v, prev)
		prev = v
	}
}

func TestTickOverflowIsAbsent(t *testing.T) {
	c := New(1)
	c.current = absent.SatMaxU64 // one below the sentinel
	assert.Equal(t, absent.U64, c.Tick())
	assert.Equal(t, absent.SatMaxU64, c.Current()) // counter held
}

func TestMergeReceive(t *testing.T) {
	c := New(1)
	c.Tick() // 1

	assert.Equal(t, uint64(11), c.MergeReceive(10))
	assert.Equal(t, uint64(12), c.MergeReceive(3)) // local already ahead

	assert.Equal(t, absent.U64, c.MergeReceive(absent.U64))
	assert.Equal(t, uint64(12), c.Current())

	c.current = absent.SatMaxU64
	assert.Equal(t, absent.U64, c.MergeReceive(5))
}

func TestEventChain(t *testing.T) {
	g := Genesis(1, 7, PayloadHash([]byte("boot")))
	assert.Equal(t, uint64(0), g.PredecessorHash)
	assert.False(t, g.IsAbsent())

	e1 := Chain(g, 2, 7, 1, PayloadHash([]byte("a")))
	require.False(t, e1.IsAbsent())
	assert.Equal(t, g.Hash(), e1.PredecessorHash)

	// Time must strictly advance across a link.
	assert.True(t, Chain(e1, 2, 7, 2, 0).IsAbsent())
	assert.True(t, Chain(e1, 1, 7, 2, 0).IsAbsent())
	assert.True(t, Chain(e1, absent.U64, 7, 2, 0).IsAbsent())

	// Any field perturbs the chained hash.
	e2 := Chain(e1, 3, 7, 2, 5)
	e2b := e2
	e2b.Sequence = 3
	assert.NotEqual(t, e2.Hash(), e2b.Hash())
}

func TestFNVKnownVector(t *testing.T) {
	// FNV-1a of "a" is a published constant; verify the primitive the
	// event hash is built from.
	h := fnv1a(fnvOffset, []byte("a"))
	assert.Equal(t, uint64(0xaf63dc4c8601ec8c), h)
}
