// soa.go implements the Structure-of-Arrays transform: a Schema
// describes how a packed logical record scatters into parallel per-field
// arrays allocated from an arena, and a Prism exposes one field as a
// strided window for bulk traversal.  Indices are stable; the whole
// structure dies with the arena epoch it was created under.
//
// © 2025 seraph authors. MIT License.

package arena

import (
	"github.com/seraphos/substrate/internal/absent"
	"github.com/seraphos/substrate/internal/capability"
)

// Field describes one record member: its offset inside the packed
// record, its size and its required alignment in the field array.
type Field struct {
	Offset uint32
	Size   uint32
	Align  uint32
}

// Schema is an ordered field list plus the packed record size.
type Schema struct {
	Fields     []Field
	RecordSize uint32
}

// valid rejects empty schemas, zero-size fields and fields escaping the
// record.
func (s *Schema) valid() bool {
	if s == nil || len(s.Fields) == 0 || s.RecordSize == 0 {
		return false
	}
	for _, f := range s.Fields {
		if f.Size == 0 {
			return false
		}
		if uint64(f.Offset)+uint64(f.Size) > uint64(s.RecordSize) {
			return false
		}
		if f.Align != 0 && f.Align&(f.Align-1) != 0 {
			return false
		}
	}
	return true
}

// SoA owns one field array per schema field, each contiguous with
// capacity elements.
type SoA struct {
	arena      *Arena
	schema     Schema
	fieldAddrs []uint64
	capacity   uint64
	count      uint64
	generation uint32
}

// NewSoA allocates the field arrays from the arena.  Failure of any
// single field allocation fails the whole construction.
func NewSoA(a *Arena, schema Schema, capacity uint64) *SoA {
	if a == nil || !schema.valid() || capacity == 0 || absent.IsU64(capacity) {
		return nil
	}
	addrs := make([]uint64, len(schema.Fields))
	for i, f := range schema.Fields {
		align := uint64(f.Align)
		addr := a.Alloc(uint64(f.Size)*capacity, align)
		if absent.IsU64(addr) {
			return nil
		}
		addrs[i] = addr
	}
	return &SoA{
		arena:      a,
		schema:     schema,
		fieldAddrs: addrs,
		capacity:   capacity,
		generation: a.Generation(),
	}
}

// Count returns the number of pushed records.
func (s *SoA) Count() uint64 {
	if s == nil {
		return absent.U64
	}
	return s.count
}

// Generation returns the arena epoch the array was created under.
func (s *SoA) Generation() uint32 {
	if s == nil {
		return absent.U32
	}
	return s.generation
}

// live reports whether the backing arena is still in the creation epoch.
func (s *SoA) live() bool {
	return s != nil && s.arena != nil && s.arena.Generation() == s.generation
}

// Push scatters one packed record to the tail of every field array.
func (s *SoA) Push(record []byte) absent.VBit {
	if !s.live() || uint32(len(record)) < s.schema.RecordSize {
		return absent.VFalse
	}
	if s.count >= s.capacity {
		return absent.VFalse
	}
	for i, f := range s.schema.Fields {
		dst := s.arena.Bytes(s.fieldAddrs[i]+uint64(f.Size)*s.count, uint64(f.Size))
		if dst == nil {
			return absent.VFalse
		}
		copy(dst, record[f.Offset:f.Offset+f.Size])
	}
	s.count++
	return absent.VTrue
}

// Get gathers record index into out, which must hold RecordSize bytes.
func (s *SoA) Get(index uint64, out []byte) absent.VBit {
	if !s.live() || index >= s.count || uint32(len(out)) < s.schema.RecordSize {
		return absent.VFalse
	}
	for i, f := range s.schema.Fields {
		src := s.arena.Bytes(s.fieldAddrs[i]+uint64(f.Size)*index, uint64(f.Size))
		if src == nil {
			return absent.VFalse
		}
		copy(out[f.Offset:f.Offset+f.Size], src)
	}
	return absent.VTrue
}

// Set scatters a packed record over an existing index.
func (s *SoA) Set(index uint64, record []byte) absent.VBit {
	if !s.live() || index >= s.count || uint32(len(record)) < s.schema.RecordSize {
		return absent.VFalse
	}
	for i, f := range s.schema.Fields {
		dst := s.arena.Bytes(s.fieldAddrs[i]+uint64(f.Size)*index, uint64(f.Size))
		if dst == nil {
			return absent.VFalse
		}
		copy(dst, record[f.Offset:f.Offset+f.Size])
	}
	return absent.VTrue
}

/* -------------------------------------------------------------------------
   Prism
   ------------------------------------------------------------------------- */

// Prism is a strided window onto one field of an SoA array.
type Prism struct {
	Base        uint64
	Stride      uint64
	ElementSize uint64
	Count       uint64
	Generation  uint32
	Perms       capability.Perm
}

// Prism exposes field k.  The window carries the array's creation epoch
// so later dereferences can be validated against the arena.
func (s *SoA) Prism(k int, perms capability.Perm) Prism {
	if s == nil || k < 0 || k >= len(s.schema.Fields) {
		return Prism{Base: absent.U64, Generation: absent.U32}
	}
	f := s.schema.Fields[k]
	return Prism{
		Base:        s.fieldAddrs[k],
		Stride:      uint64(f.Size),
		ElementSize: uint64(f.Size),
		Count:       s.count,
		Generation:  s.generation,
		Perms:       perms,
	}
}

// IsAbsent reports an invalid prism.
func (p Prism) IsAbsent() bool {
	return absent.IsU64(p.Base) || absent.IsU32(p.Generation)
}

// Element returns a view of element i, validated against the arena's
// current epoch and bounds.  A stale generation or bad index is nil.
func (p Prism) Element(a *Arena, i uint64) []byte {
	if p.IsAbsent() || a == nil || i >= p.Count {
		return nil
	}
	if a.Generation() != p.Generation {
		return nil
	}
	return a.Bytes(p.Base+p.Stride*i, p.ElementSize)
}
