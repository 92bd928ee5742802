// Package clock implements the substrate's scalar logical time: a
// Lamport counter per clock id, plus event records chained into a DAG by
// an FNV-1a hash over their fixed fields.
//
// The counter never decreases and reserves the u64 sentinel; a tick or
// merge that would reach it reports absence and leaves the counter
// unchanged.
//
// © 2025 seraph authors. MIT License.

package clock

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/seraphos/substrate/internal/absent"
)

// Clock is a scalar Lamport counter.
type Clock struct {
	ID      uint32
	current uint64
}

// New returns a clock starting at zero.
func New(id uint32) *Clock {
	return &Clock{ID: id}
}

// Current returns the counter without advancing it.
func (c *Clock) Current() uint64 {
	if c == nil {
		return absent.U64
	}
	return c.current
}

// Tick advances the counter by one and returns the new value.  Reaching
// the reserved sentinel is overflow: the result is absent and the
// counter holds.
func (c *Clock) Tick() uint64 {
	if c == nil {
		return absent.U64
	}
	next := c.current + 1
	if absent.IsU64(next) {
		return absent.U64
	}
	c.current = next
	return next
}

// MergeReceive applies the Lamport receive rule: the counter becomes
// max(current, received) + 1.  An absent received stamp or overflow is
// absent and leaves the counter unchanged.
func (c *Clock) MergeReceive(received uint64) uint64 {
	if c == nil || absent.IsU64(received) {
		return absent.U64
	}
	m := c.current
	if received > m {
		m = received
	}
	next := m + 1
	if absent.IsU64(next) {
		return absent.U64
	}
	c.current = next
	return next
}

/* -------------------------------------------------------------------------
   Events
   ------------------------------------------------------------------------- */

// Event is one node in the hash-chained event DAG.
type Event struct {
	Timestamp       uint64
	PredecessorHash uint64
	SourceID        uint32
	Sequence        uint64
	PayloadHash     uint64
}

const (
	fnvOffset uint64 = 14695981039346656037
	fnvPrime  uint64 = 1099511628211
)

func fnv1a(h uint64, buf []byte) uint64 {
	for _, b := range buf {
		h ^= uint64(b)
		h *= fnvPrime
	}
	return h
}

// Hash computes the FNV-1a digest of the event's fields in declared
// order, chaining in the predecessor hash.
func (e Event) Hash() uint64 {
	var buf [8]byte
	h := fnvOffset
	binary.LittleEndian.PutUint64(buf[:], e.Timestamp)
	h = fnv1a(h, buf[:])
	binary.LittleEndian.PutUint64(buf[:], e.PredecessorHash)
	h = fnv1a(h, buf[:])
	binary.LittleEndian.PutUint32(buf[:4], e.SourceID)
	h = fnv1a(h, buf[:4])
	binary.LittleEndian.PutUint64(buf[:], e.Sequence)
	h = fnv1a(h, buf[:])
	binary.LittleEndian.PutUint64(buf[:], e.PayloadHash)
	h = fnv1a(h, buf[:])
	return h
}

// PayloadHash digests an opaque payload for embedding into an event.
func PayloadHash(payload []byte) uint64 {
	return xxhash.Sum64(payload)
}

// Genesis builds the first event of a chain; its predecessor hash is
// zero by construction.
func Genesis(timestamp uint64, source uint32, payloadHash uint64) Event {
	return Event{
		Timestamp:   timestamp,
		SourceID:    source,
		PayloadHash: payloadHash,
	}
}

// Chain builds the successor of prev.  Logical time must strictly
// advance across the link; otherwise the event is absent (reported via
// an absent timestamp).
func Chain(prev Event, timestamp uint64, source uint32, sequence, payloadHash uint64) Event {
	if absent.IsU64(timestamp) || timestamp <= prev.Timestamp {
		return Event{Timestamp: absent.U64}
	}
	return Event{
		Timestamp:       timestamp,
		PredecessorHash: prev.Hash(),
		SourceID:        source,
		Sequence:        sequence,
		PayloadHash:     payloadHash,
	}
}

// IsAbsent reports a rejected event.
func (e Event) IsAbsent() bool { return absent.IsU64(e.Timestamp) }
