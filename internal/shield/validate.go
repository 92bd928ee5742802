// validate.go runs the receive-side pipeline in its fixed order:
// structure, rate limit (before any crypto so floods cannot burn CPU),
// constant-time MAC, replay window, permission mask.  Every rejection
// lands in the security log with the failing check; generation
// staleness is not decided here — that belongs to page handling.
//
// © 2025 seraph authors. MIT License.

package shield

import (
	"sync"

	"go.uber.org/zap"
)

// Verdict is the pipeline outcome.
type Verdict uint8

const (
	VerdictOK Verdict = iota
	VerdictMalformed
	VerdictRateLimited
	VerdictBadMAC
	VerdictReplay
	VerdictDenied
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictMalformed:
		return "malformed"
	case VerdictRateLimited:
		return "rate_limited"
	case VerdictBadMAC:
		return "bad_mac"
	case VerdictReplay:
		return "replay"
	case VerdictDenied:
		return "denied"
	default:
		return "verdict?"
	}
}

// RateConfig sizes the per-source token buckets.
type RateConfig struct {
	TokensPerSecond uint32
	BucketSize      uint32
	TicksPerSecond  uint64
}

// DefaultRateConfig admits small bursts at a sustained packet rate.
var DefaultRateConfig = RateConfig{
	TokensPerSecond: 1000,
	BucketSize:      64,
	TicksPerSecond:  1000,
}

// Guard is the per-node receive-side security state.
type Guard struct {
	mu      sync.Mutex
	ring    *Keyring
	replay  map[uint16]*ReplayWindow
	buckets map[uint16]*TokenBucket
	rate    RateConfig
	log     *Log
}

// NewGuard wires a guard over a keyring.
func NewGuard(ring *Keyring, rate RateConfig, zlog *zap.Logger) *Guard {
	if rate.TokensPerSecond == 0 {
		rate = DefaultRateConfig
	}
	return &Guard{
		ring:    ring,
		replay:  make(map[uint16]*ReplayWindow),
		buckets: make(map[uint16]*TokenBucket),
		rate:    rate,
		log:     NewLog(zlog),
	}
}

// Log exposes the security event ring.
func (g *Guard) Log() *Log { return g.log }

// Keyring exposes the underlying key material.
func (g *Guard) Keyring() *Keyring { return g.ring }

func (g *Guard) bucketFor(src uint16) *TokenBucket {
	b, ok := g.buckets[src]
	if !ok {
		nb := NewTokenBucket(g.rate.TokensPerSecond, g.rate.BucketSize, g.rate.TicksPerSecond)
		b = &nb
		g.buckets[src] = b
	}
	return b
}

func (g *Guard) windowFor(src uint16) *ReplayWindow {
	w, ok := g.replay[src]
	if !ok {
		w = &ReplayWindow{}
		g.replay[src] = w
	}
	return w
}

func (g *Guard) reject(f *Frame, raw []byte, tick uint64, check Check) {
	e := Event{Tick: tick, Failed: check}
	if f != nil {
		e.Source = f.SrcNode
		e.Type = uint16(f.Type)
		e.Seq = f.Seq
		e.Offset = f.Offset
	} else if len(raw) >= 16 {
		// Best-effort attribution for structurally broken frames.
		e.Source = uint16(raw[8]) | uint16(raw[9])<<8
		e.Seq = uint32(raw[12]) | uint32(raw[13])<<8 | uint32(raw[14])<<16 | uint32(raw[15])<<24
	}
	g.log.Append(e)
}

// Validate runs the full pipeline over a raw frame.  On OK the decoded
// frame is returned and the replay state has advanced; on any failure
// the frame is nil, the verdict names the stage, and an event is
// logged.
func (g *Guard) Validate(raw []byte, tick uint64) (*Frame, Verdict) {
	f, ok := DecodeStructure(raw)
	if !ok {
		g.reject(nil, raw, tick, CheckStructure)
		return nil, VerdictMalformed
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.bucketFor(f.SrcNode).Allow(tick) {
		g.reject(f, raw, tick, CheckRate)
		return nil, VerdictRateLimited
	}

	key, authed := g.ring.KeyFor(f.SrcNode)
	if !authed || !VerifyFrameMAC(raw, key) {
		g.reject(f, raw, tick, CheckMAC)
		return nil, VerdictBadMAC
	}

	if g.windowFor(f.SrcNode).Check(f.Seq) != ReplayAccept {
		g.reject(f, raw, tick, CheckReplay)
		return nil, VerdictReplay
	}

	if !g.ring.Allowed(f.SrcNode, f.Type.Op()) {
		g.reject(f, raw, tick, CheckPermission)
		return nil, VerdictDenied
	}

	return f, VerdictOK
}

// NoteGenerationStale records a generation rejection decided by the
// page-handling layer.
func (g *Guard) NoteGenerationStale(f *Frame, tick uint64) {
	g.reject(f, nil, tick, CheckGeneration)
}
