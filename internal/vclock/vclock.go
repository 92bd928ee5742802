// Package vclock implements sparse vector clocks: a sorted array of
// (node id, timestamp) entries in which a zero timestamp is implicit and
// never stored.  The clock supports the causal receive rule (entry-wise
// max merge), four-way comparison, and a fixed little-endian wire form.
//
// Capacity grows by 3/2 up to MaxEntries; once the cap is reached the
// clock sets the SATURATED flag and refuses entries for new nodes while
// still updating existing ones.
//
// © 2025 seraph authors. MIT License.

package vclock

import (
	"encoding/binary"
	"sort"

	"github.com/seraphos/substrate/internal/absent"
)

// MaxEntries bounds the number of distinct nodes one clock can track.
const MaxEntries = 64

// Flag bits.
const (
	FlagSaturated uint8 = 1 << 0
	FlagBorrowed  uint8 = 1 << 1
)

// Ordering is the result of comparing two clocks.
type Ordering uint8

const (
	Before Ordering = iota
	Equal
	After
	Concurrent
)

func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case Equal:
		return "equal"
	case After:
		return "after"
	default:
		return "concurrent"
	}
}

// Entry is one (node, timestamp) pair.
type Entry struct {
	NodeID    uint16
	Timestamp uint64
}

// VClock is a sparse vector clock owned by one node.
type VClock struct {
	entries []Entry
	owner   uint16
	flags   uint8
}

// New returns an empty clock for owner with an initial capacity hint.
func New(owner uint16, capacityHint int) *VClock {
	if capacityHint <= 0 {
		capacityHint = 4
	}
	if capacityHint > MaxEntries {
		capacityHint = MaxEntries
	}
	return &VClock{
		entries: make([]Entry, 0, capacityHint),
		owner:   owner,
	}
}

// Owner returns the owning node id.
func (v *VClock) Owner() uint16 { return v.owner }

// Flags returns the flag bits.
func (v *VClock) Flags() uint8 { return v.flags }

// Count returns the number of stored (nonzero) entries.
func (v *VClock) Count() int {
	if v == nil {
		return 0
	}
	return len(v.entries)
}

// Entries returns the sorted entry slice; callers must not mutate it.
func (v *VClock) Entries() []Entry { return v.entries }

// find binary-searches for node; returns its index and whether it is
// present.
func (v *VClock) find(node uint16) (int, bool) {
	i := sort.Search(len(v.entries), func(i int) bool {
		return v.entries[i].NodeID >= node
	})
	return i, i < len(v.entries) && v.entries[i].NodeID == node
}

// Get returns the timestamp for node; missing entries are implicitly
// zero.
func (v *VClock) Get(node uint16) uint64 {
	if v == nil {
		return 0
	}
	if i, ok := v.find(node); ok {
		return v.entries[i].Timestamp
	}
	return 0
}

// Set stores a timestamp for node, preserving sort order.  A zero
// timestamp removes the entry (zero is implicit).  Inserting a new node
// into a saturated clock fails; updates to present nodes always work.
func (v *VClock) Set(node uint16, ts uint64) absent.VBit {
	if v == nil || absent.IsU64(ts) {
		return absent.VFalse
	}
	i, ok := v.find(node)
	if ok {
		if ts == 0 {
			v.entries = append(v.entries[:i], v.entries[i+1:]...)
			return absent.VTrue
		}
		v.entries[i].Timestamp = ts
		return absent.VTrue
	}
	if ts == 0 {
		return absent.VTrue
	}
	if len(v.entries) >= MaxEntries {
		v.flags |= FlagSaturated
		return absent.VFalse
	}
	v.entries = grow(v.entries)
	v.entries = append(v.entries, Entry{})
	copy(v.entries[i+1:], v.entries[i:])
	v.entries[i] = Entry{NodeID: node, Timestamp: ts}
	return absent.VTrue
}

// grow widens the backing array by 3/2 when full, capped at MaxEntries.
func grow(e []Entry) []Entry {
	if len(e) < cap(e) {
		return e
	}
	next := cap(e) + cap(e)/2
	if next <= cap(e) {
		next = cap(e) + 1
	}
	if next > MaxEntries {
		next = MaxEntries
	}
	out := make([]Entry, len(e), next)
	copy(out, e)
	return out
}

// Increment advances the owner entry by one, inserting it on first use.
// Overflow into the sentinel is absent and leaves the clock unchanged.
func (v *VClock) Increment() uint64 {
	if v == nil {
		return absent.U64
	}
	cur := v.Get(v.owner)
	next := cur + 1
	if absent.IsU64(next) {
		return absent.U64
	}
	if v.Set(v.owner, next) != absent.VTrue {
		return absent.U64
	}
	return next
}

// Merge folds other into v entry-wise: every node's timestamp becomes
// the max of both sides.  New nodes are inserted in sorted order; a
// saturated destination keeps updating known nodes but drops new ones.
func (v *VClock) Merge(other *VClock) absent.VBit {
	if v == nil || other == nil {
		return absent.VFalse
	}
	ok := absent.VTrue
	merged := make([]Entry, 0, len(v.entries)+len(other.entries))
	i, j := 0, 0
	for i < len(v.entries) && j < len(other.entries) {
		a, b := v.entries[i], other.entries[j]
		switch {
		case a.NodeID == b.NodeID:
			ts := a.Timestamp
			if b.Timestamp > ts {
				ts = b.Timestamp
			}
			merged = append(merged, Entry{NodeID: a.NodeID, Timestamp: ts})
			i++
			j++
		case a.NodeID < b.NodeID:
			merged = append(merged, a)
			i++
		default:
			merged = append(merged, b)
			j++
		}
	}
	merged = append(merged, v.entries[i:]...)
	merged = append(merged, other.entries[j:]...)

	if len(merged) > MaxEntries {
		// Known nodes always stay; new nodes fill the remaining room in
		// node order and the rest are dropped.
		room := MaxEntries - len(v.entries)
		kept := make([]Entry, 0, MaxEntries)
		for _, e := range merged {
			if _, known := v.find(e.NodeID); known {
				kept = append(kept, e)
			} else if room > 0 {
				kept = append(kept, e)
				room--
			}
		}
		merged = kept
		v.flags |= FlagSaturated
		ok = absent.VFalse
	}
	v.entries = merged
	return ok
}

// Compare classifies the causal relation between a and b with one
// two-pointer walk.  An entry missing on one side counts as zero there.
func Compare(a, b *VClock) Ordering {
	aLtB, bLtA := false, false
	var ae, be []Entry
	if a != nil {
		ae = a.entries
	}
	if b != nil {
		be = b.entries
	}
	i, j := 0, 0
	for i < len(ae) || j < len(be) {
		switch {
		case j >= len(be) || (i < len(ae) && ae[i].NodeID < be[j].NodeID):
			// Present only in a: b is behind here.
			bLtA = true
			i++
		case i >= len(ae) || be[j].NodeID < ae[i].NodeID:
			aLtB = true
			j++
		default:
			if ae[i].Timestamp < be[j].Timestamp {
				aLtB = true
			} else if ae[i].Timestamp > be[j].Timestamp {
				bLtA = true
			}
			i++
			j++
		}
	}
	switch {
	case aLtB && !bLtA:
		return Before
	case !aLtB && bLtA:
		return After
	case !aLtB && !bLtA:
		return Equal
	default:
		return Concurrent
	}
}

// Clone returns an independent copy.
func (v *VClock) Clone() *VClock {
	if v == nil {
		return nil
	}
	out := &VClock{
		entries: make([]Entry, len(v.entries), cap(v.entries)),
		owner:   v.owner,
		flags:   v.flags,
	}
	copy(out.entries, v.entries)
	return out
}

/* -------------------------------------------------------------------------
   Wire form
   ------------------------------------------------------------------------- */

// EntryWireSize is the encoded size of one entry: u16 id + u16 pad +
// u64 timestamp.
const EntryWireSize = 12

// WireSize returns the encoded size of the clock.
func (v *VClock) WireSize() int { return 2 + v.Count()*EntryWireSize }

// AppendWire encodes the clock onto buf in the little-endian wire form
// [count:u16][entries...] and returns the extended slice.
func (v *VClock) AppendWire(buf []byte) []byte {
	var hdr [2]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(v.Count()))
	buf = append(buf, hdr[:]...)
	var ent [EntryWireSize]byte
	for _, e := range v.entries {
		binary.LittleEndian.PutUint16(ent[0:2], e.NodeID)
		binary.LittleEndian.PutUint16(ent[2:4], 0) // pad
		binary.LittleEndian.PutUint64(ent[4:12], e.Timestamp)
		buf = append(buf, ent[:]...)
	}
	return buf
}

// ParseWire decodes a clock for owner from the wire form.  It rejects
// short buffers, counts above MaxEntries, zero timestamps and entries
// out of strict node order; the byte count consumed is returned.
func ParseWire(owner uint16, buf []byte) (*VClock, int, bool) {
	if len(buf) < 2 {
		return nil, 0, false
	}
	count := int(binary.LittleEndian.Uint16(buf[0:2]))
	if count > MaxEntries {
		return nil, 0, false
	}
	need := 2 + count*EntryWireSize
	if len(buf) < need {
		return nil, 0, false
	}
	v := New(owner, count)
	prev := -1
	for i := 0; i < count; i++ {
		off := 2 + i*EntryWireSize
		id := binary.LittleEndian.Uint16(buf[off : off+2])
		ts := binary.LittleEndian.Uint64(buf[off+4 : off+12])
		if int(id) <= prev || ts == 0 || absent.IsU64(ts) {
			return nil, 0, false
		}
		prev = int(id)
		v.entries = append(v.entries, Entry{NodeID: id, Timestamp: ts})
	}
	return v, need, true
}
