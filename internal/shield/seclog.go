// seclog.go is the security event ring: a fixed buffer with a head
// cursor and a cumulative count, overwriting the oldest entry when
// full.  Readers receive a copy of the newest events, newest first.
// Appends optionally mirror into a zap logger for operators; the ring
// itself never blocks the pipeline.
//
// © 2025 seraph authors. MIT License.

package shield

import (
	"sync"

	"go.uber.org/zap"
)

// LogSize is the ring capacity.
const LogSize = 256

// Check names the pipeline stage a frame failed.
type Check uint8

const (
	CheckNone Check = iota
	CheckStructure
	CheckRate
	CheckMAC
	CheckReplay
	CheckPermission
	CheckGeneration
)

func (c Check) String() string {
	switch c {
	case CheckNone:
		return "none"
	case CheckStructure:
		return "structure"
	case CheckRate:
		return "rate"
	case CheckMAC:
		return "mac"
	case CheckReplay:
		return "replay"
	case CheckPermission:
		return "permission"
	case CheckGeneration:
		return "generation"
	default:
		return "check?"
	}
}

// Event is one logged rejection.
type Event struct {
	Tick    uint64
	Source  uint16
	Type    uint16
	Seq     uint32
	Offset  uint64
	Failed  Check
}

// Log is the ring buffer.
type Log struct {
	mu     sync.Mutex
	events [LogSize]Event
	head   int    // next write position
	count  uint64 // cumulative appends

	zlog *zap.Logger
}

// NewLog returns an empty ring.  A nil logger disables mirroring.
func NewLog(zlog *zap.Logger) *Log {
	if zlog == nil {
		zlog = zap.NewNop()
	}
	return &Log{zlog: zlog}
}

// Append records an event, overwriting the oldest when full.
func (l *Log) Append(e Event) {
	l.mu.Lock()
	l.events[l.head] = e
	l.head = (l.head + 1) % LogSize
	l.count++
	l.mu.Unlock()

	l.zlog.Warn("dsm frame rejected",
		zap.Uint16("source", e.Source),
		zap.Uint16("frame_type", e.Type),
		zap.Uint32("seq", e.Seq),
		zap.Uint64("offset", e.Offset),
		zap.String("check", e.Failed.String()))
}

// Count returns the cumulative number of appends.
func (l *Log) Count() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Read copies out up to max events, newest first.
func (l *Log) Read(max int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := int(l.count)
	if n > LogSize {
		n = LogSize
	}
	if max < n {
		n = max
	}
	if n <= 0 {
		return nil
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		idx := (l.head - 1 - i + 2*LogSize) % LogSize
		out[i] = l.events[idx]
	}
	return out
}
