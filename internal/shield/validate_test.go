package shield

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seraphos/substrate/internal/vclock"
)

func testRing(t *testing.T, nodes ...uint16) *Keyring {
	t.Helper()
	ring := NewKeyring([]byte("cluster master secret"))
	for _, n := range nodes {
		require.NoError(t, ring.Derive(n))
		ring.Grant(n, OpAll)
	}
	return ring
}

func encodeFor(t *testing.T, ring *Keyring, f *Frame) []byte {
	t.Helper()
	key, ok := ring.KeyFor(f.SrcNode)
	require.True(t, ok)
	return f.Encode(key)
}

func sampleFrame(src uint16, seq uint32) *Frame {
	vc := vclock.New(src, 4)
	vc.Increment()
	return &Frame{
		Type:       FramePageReq,
		SrcNode:    src,
		DstNode:    2,
		Seq:        seq,
		Offset:     0x1000,
		Generation: 1,
		SenderTime: 7,
		VClock:     vc,
		Payload:    []byte("payload"),
	}
}

func TestFrameRoundTrip(t *testing.T) {
	ring := testRing(t, 1)
	f := sampleFrame(1, 42)
	raw := encodeFor(t, ring, f)

	got, ok := DecodeStructure(raw)
	require.True(t, ok)
	assert.Equal(t, f.Type, got.Type)
	assert.Equal(t, f.SrcNode, got.SrcNode)
	assert.Equal(t, f.DstNode, got.DstNode)
	assert.Equal(t, f.Seq, got.Seq)
	assert.Equal(t, f.Offset, got.Offset)
	assert.Equal(t, f.Generation, got.Generation)
	assert.Equal(t, f.SenderTime, got.SenderTime)
	assert.Equal(t, f.Payload, got.Payload)
	assert.Equal(t, f.VClock.Entries(), got.VClock.Entries())

	key, _ := ring.KeyFor(1)
	assert.True(t, VerifyFrameMAC(raw, key))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	ring := testRing(t, 1)
	raw := encodeFor(t, ring, sampleFrame(1, 1))

	_, ok := DecodeStructure(raw[:10])
	assert.False(t, ok)

	badMagic := append([]byte(nil), raw...)
	badMagic[0] ^= 0xFF
	_, ok = DecodeStructure(badMagic)
	assert.False(t, ok)

	badVersion := append([]byte(nil), raw...)
	badVersion[4] = 9
	_, ok = DecodeStructure(badVersion)
	assert.False(t, ok)

	badType := append([]byte(nil), raw...)
	badType[6] = 0xEE
	_, ok = DecodeStructure(badType)
	assert.False(t, ok)
}

func TestPipelineOrderAndVerdicts(t *testing.T) {
	ring := testRing(t, 1)
	guard := NewGuard(ring, RateConfig{TokensPerSecond: 1000, BucketSize: 64, TicksPerSecond: 1000}, nil)

	// Happy path.
	f, v := guard.Validate(encodeFor(t, ring, sampleFrame(1, 1)), 0)
	require.Equal(t, VerdictOK, v)
	require.NotNil(t, f)

	// Replay of the same sequence.
	_, v = guard.Validate(encodeFor(t, ring, sampleFrame(1, 1)), 1)
	assert.Equal(t, VerdictReplay, v)

	// Tampered payload flips the MAC.
	raw := encodeFor(t, ring, sampleFrame(1, 2))
	raw[len(raw)-Size-1] ^= 0x01
	_, v = guard.Validate(raw, 2)
	assert.Equal(t, VerdictBadMAC, v)

	// Unknown source has no key.
	stranger := NewKeyring([]byte("cluster master secret"))
	require.NoError(t, stranger.Derive(9))
	key, _ := stranger.KeyFor(9)
	_, v = guard.Validate(sampleFrame(9, 1).Encode(key), 3)
	assert.Equal(t, VerdictBadMAC, v)

	// Permission mask: strip write, then send a write request.
	ring.Grant(1, OpRead)
	wf := sampleFrame(1, 3)
	wf.Type = FrameWriteReq
	_, v = guard.Validate(encodeFor(t, ring, wf), 4)
	assert.Equal(t, VerdictDenied, v)

	// Every rejection landed in the log, newest first.
	events := guard.Log().Read(10)
	require.Len(t, events, 4)
	assert.Equal(t, CheckPermission, events[0].Failed)
	assert.Equal(t, CheckMAC, events[1].Failed)
	assert.Equal(t, CheckMAC, events[2].Failed)
	assert.Equal(t, CheckReplay, events[3].Failed)
}

func TestPipelineRateLimitPrecedesCrypto(t *testing.T) {
	ring := testRing(t, 1)
	guard := NewGuard(ring, RateConfig{TokensPerSecond: 1, BucketSize: 2, TicksPerSecond: 1000}, nil)

	_, v := guard.Validate(encodeFor(t, ring, sampleFrame(1, 1)), 0)
	require.Equal(t, VerdictOK, v)
	_, v = guard.Validate(encodeFor(t, ring, sampleFrame(1, 2)), 0)
	require.Equal(t, VerdictOK, v)

	// Bucket exhausted: even a perfectly valid frame is limited.
	_, v = guard.Validate(encodeFor(t, ring, sampleFrame(1, 3)), 0)
	assert.Equal(t, VerdictRateLimited, v)
}

func TestKeyringDeriveDeterministic(t *testing.T) {
	a := NewKeyring([]byte("secret"))
	b := NewKeyring([]byte("secret"))
	require.NoError(t, a.Derive(5))
	require.NoError(t, b.Derive(5))
	ka, _ := a.KeyFor(5)
	kb, _ := b.KeyFor(5)
	assert.Equal(t, ka, kb)

	c := NewKeyring([]byte("other"))
	require.NoError(t, c.Derive(5))
	kc, _ := c.KeyFor(5)
	assert.NotEqual(t, ka, kc)
}
