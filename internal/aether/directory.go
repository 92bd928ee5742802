// directory.go is the owner-side coherence metadata: one entry per
// homed page, tracking whether the page is INVALID, held EXCLUSIVE by
// one writer, or SHARED by a set of readers.  In EXCLUSIVE the sharer
// set is empty and the exclusive owner is meaningful; in SHARED the
// sharer list enumerates every node holding a valid copy.
//
// © 2025 seraph authors. MIT License.

package aether

import (
	"github.com/seraphos/substrate/internal/vclock"
)

// DirState is the coherence state of a homed page.
type DirState uint8

const (
	DirInvalid DirState = iota
	DirExclusive
	DirShared
)

func (s DirState) String() string {
	switch s {
	case DirInvalid:
		return "invalid"
	case DirExclusive:
		return "exclusive"
	case DirShared:
		return "shared"
	default:
		return "state?"
	}
}

// DirEntry is the per-page directory record.
type DirEntry struct {
	Offset         uint32
	State          DirState
	ExclusiveOwner uint16
	Sharers        []uint16
	Generation     uint64
	VClock         *vclock.VClock
	Valid          bool
}

// Directory maps page-aligned offsets to entries.
type Directory struct {
	entries map[uint32]*DirEntry
	owner   uint16
}

// NewDirectory returns an empty directory for the given home node.
func NewDirectory(owner uint16) *Directory {
	return &Directory{
		entries: make(map[uint32]*DirEntry),
		owner:   owner,
	}
}

// Get returns the entry for a page-aligned offset, or nil.
func (d *Directory) Get(offset uint32) *DirEntry {
	return d.entries[PageAlign(offset)]
}

// Ensure returns the entry for offset, creating an INVALID one seeded
// with a fresh vector clock if needed.
func (d *Directory) Ensure(offset uint32, generation uint64) *DirEntry {
	off := PageAlign(offset)
	e, ok := d.entries[off]
	if !ok {
		e = &DirEntry{
			Offset:     off,
			State:      DirInvalid,
			Generation: generation,
			VClock:     vclock.New(d.owner, 4),
			Valid:      true,
		}
		d.entries[off] = e
	}
	return e
}

// Len returns the number of tracked pages.
func (d *Directory) Len() int { return len(d.entries) }

// HasSharer reports membership of node in the sharer set.
func (e *DirEntry) HasSharer(node uint16) bool {
	for _, s := range e.Sharers {
		if s == node {
			return true
		}
	}
	return false
}

// AddSharer inserts node into the sharer set once.
func (e *DirEntry) AddSharer(node uint16) {
	if !e.HasSharer(node) {
		e.Sharers = append(e.Sharers, node)
	}
}

// RemoveSharer drops node from the sharer set.
func (e *DirEntry) RemoveSharer(node uint16) {
	for i, s := range e.Sharers {
		if s == node {
			e.Sharers = append(e.Sharers[:i], e.Sharers[i+1:]...)
			return
		}
	}
}

// ToShared moves the entry to SHARED; the exclusive owner field becomes
// meaningless.
func (e *DirEntry) ToShared() {
	e.State = DirShared
	e.ExclusiveOwner = 0
}

// ToExclusive moves the entry to EXCLUSIVE for writer, emptying the
// sharer set as the invariant requires.
func (e *DirEntry) ToExclusive(writer uint16) {
	e.State = DirExclusive
	e.ExclusiveOwner = writer
	e.Sharers = e.Sharers[:0]
}
