// Package arena implements the substrate's ownership-discipline bump
// allocator.  An Arena owns one contiguous pool, serves allocations by
// aligning a bump offset forward, and carries a generation epoch that
// invalidates every outstanding reference in O(1) on Reset: capabilities
// issued by the arena embed the epoch at issue time and fail their check
// once it moves.
//
// Pools are anonymous by default; a file-backed variant maps a regular
// file (shared or private) and can flush it with Sync.  The raw pool is
// the on-disk layout; metadata (bump offset, epoch) lives in a separate
// MetaStore (see metastore.go) because reopening the file alone cannot
// recover it.
//
// Failure model: every operation is defined and returns absence on a bad
// arena or a bounds violation.  There is no out-of-band error on the
// allocation path; only the file-backed setup surface returns error.
//
// Concurrency: the arena is single-writer.  A mutex serialises Alloc and
// Reset so the enclosing system may also call from a per-resource
// critical section without double locking concerns.
//
// © 2025 seraph authors. MIT License.

package arena

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/seraphos/substrate/internal/absent"
	"github.com/seraphos/substrate/internal/capability"
)

// Flags adjust allocation and reset behaviour.
type Flags uint32

const (
	// ZeroOnAlloc clears each allocation before returning it.
	ZeroOnAlloc Flags = 1 << 0
	// ZeroOnReset clears the whole pool when the epoch advances.
	ZeroOnReset Flags = 1 << 1
)

const (
	// DefaultAlign is the minimum alignment of every allocation.
	DefaultAlign = 16

	// maxValidGeneration is the largest epoch before wrapping back to 1;
	// the u32 sentinel itself is never a live generation.
	maxValidGeneration = absent.U32 - 1
)

// Arena is a bump allocator over one contiguous pool.
type Arena struct {
	mu sync.Mutex

	mem        []byte
	used       uint64
	capacity   uint64
	alignment  uint64
	generation uint32
	allocCount uint64
	flags      Flags

	// file backing; zero-valued for anonymous arenas.
	backing backing

	log *zap.Logger
}

// New creates an anonymous arena.  Capacity must be nonzero and the
// alignment a power of two (zero selects DefaultAlign).
func New(capacity, alignment uint64, flags Flags, log *zap.Logger) *Arena {
	if capacity == 0 || absent.IsU64(capacity) {
		return nil
	}
	alignment, ok := normalizeAlign(alignment)
	if !ok {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Arena{
		mem:        make([]byte, capacity),
		capacity:   capacity,
		alignment:  alignment,
		generation: 1,
		flags:      flags,
		log:        log,
	}
}

func normalizeAlign(alignment uint64) (uint64, bool) {
	if alignment == 0 {
		return DefaultAlign, true
	}
	if alignment&(alignment-1) != 0 {
		return 0, false
	}
	return alignment, true
}

// Generation returns the current epoch.
func (a *Arena) Generation() uint32 {
	if a == nil {
		return absent.U32
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

// Used returns the bump offset.
func (a *Arena) Used() uint64 {
	if a == nil {
		return absent.U64
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

// Capacity returns the pool size in bytes.
func (a *Arena) Capacity() uint64 {
	if a == nil {
		return absent.U64
	}
	return a.capacity
}

// AllocCount returns the number of successful allocations this epoch.
func (a *Arena) AllocCount() uint64 {
	if a == nil {
		return absent.U64
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocCount
}

// base returns the host address of the pool start.
func (a *Arena) base() uint64 {
	return uint64(uintptr(unsafe.Pointer(&a.mem[0])))
}

// Alloc reserves size bytes aligned to at least max(align, arena
// alignment) and returns the host address, or the u64 sentinel when the
// aligned request does not fit.
func (a *Arena) Alloc(size, align uint64) uint64 {
	if a == nil || len(a.mem) == 0 || size == 0 || absent.IsU64(size) {
		return absent.U64
	}
	if align < a.alignment {
		align = a.alignment
	}
	if align&(align-1) != 0 {
		return absent.U64
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// The absolute address is what gets aligned, not the bump offset.
	base := a.base()
	addr := (base + a.used + align - 1) &^ (align - 1)
	off := addr - base
	if off > a.capacity || size > a.capacity-off {
		return absent.U64
	}
	a.used = off + size
	a.allocCount++
	if a.flags&ZeroOnAlloc != 0 {
		clear(a.mem[off : off+size])
	}
	return addr
}

// Reset advances the epoch, rewinds the bump offset and optionally
// zeroes the pool.  Every capability issued before the call fails its
// next check.
func (a *Arena) Reset() {
	if a == nil {
		return
	}
	a.mu.Lock()
	prev := a.generation
	if a.generation >= maxValidGeneration {
		a.generation = 1
	} else {
		a.generation++
	}
	a.used = 0
	a.allocCount = 0
	if a.flags&ZeroOnReset != 0 {
		clear(a.mem)
	}
	gen := a.generation
	a.mu.Unlock()

	a.log.Debug("arena reset",
		zap.Uint32("prev_generation", prev),
		zap.Uint32("generation", gen))
}

// Contains reports whether [addr, addr+size) lies inside the pool.
func (a *Arena) Contains(addr, size uint64) bool {
	if a == nil || len(a.mem) == 0 || absent.IsU64(addr) {
		return false
	}
	base := a.base()
	if addr < base || addr-base > a.capacity {
		return false
	}
	return size <= a.capacity-(addr-base)
}

// Bytes returns a view of [addr, addr+size) when the window lies inside
// the pool, nil otherwise.
func (a *Arena) Bytes(addr, size uint64) []byte {
	if size == 0 || !a.Contains(addr, size) {
		return nil
	}
	off := addr - a.base()
	return a.mem[off : off+size]
}

/* -------------------------------------------------------------------------
   Capability issue / check
   ------------------------------------------------------------------------- */

// GetCapability issues a token over [addr, addr+size) stamped with the
// current epoch, or absent when the window escapes the pool.
func (a *Arena) GetCapability(addr, size uint64, perms capability.Perm) capability.Capability {
	if a == nil || !a.Contains(addr, size) {
		return capability.Absent()
	}
	a.mu.Lock()
	gen := a.generation
	a.mu.Unlock()
	return capability.New(addr, size, gen, perms)
}

// CheckCapability reports whether the token's epoch matches the arena's
// and its window still lies within the pool.
func (a *Arena) CheckCapability(c capability.Capability) bool {
	if a == nil || c.IsAbsent() {
		return false
	}
	a.mu.Lock()
	gen := a.generation
	a.mu.Unlock()
	return c.Generation == gen && a.Contains(c.Base, c.Length)
}
