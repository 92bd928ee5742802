// cache.go is the per-node page cache: a fixed slot array searched by
// linear probe, threaded by an intrusive doubly-linked LRU expressed in
// slot indices rather than pointers.  The list is maintained on every
// hit, install and invalidation; eviction takes the tail and hands
// dirty pages to a write-back callback before reuse.
//
// Page frames are allocated once from the node's arena, so cached remote
// data lives in the arena pool rather than in per-page buffers.
//
// © 2025 seraph authors. MIT License.

package aether

import (
	"github.com/seraphos/substrate/internal/absent"
	"github.com/seraphos/substrate/internal/arena"
	"github.com/seraphos/substrate/internal/vclock"
)

// DefaultCacheSlots is the default page-cache capacity.
const DefaultCacheSlots = 256

// noSlot terminates LRU links.
const noSlot int32 = -1

// CacheEntry is one cached remote page.
type CacheEntry struct {
	Addr       uint64 // page-aligned aether address
	PageAddr   uint64 // arena address of the local frame
	OwnerNode  uint16
	Generation uint64
	FetchTime  uint64
	VClock     *vclock.VClock
	Dirty      bool
	Valid      bool

	lruPrev int32
	lruNext int32
}

// writebackFn receives a dirty page on eviction.
type writebackFn func(e *CacheEntry, page []byte)

// PageCache is the fixed-slot cache with intrusive LRU.
type PageCache struct {
	slots   []CacheEntry
	mem     *arena.Arena
	lruHead int32
	lruTail int32

	hits      uint64
	misses    uint64
	evictions uint64

	writeback writebackFn
}

// NewPageCache allocates all page frames up front from the arena; a
// pool too small for the slot count fails construction.
func NewPageCache(mem *arena.Arena, slotCount int, wb writebackFn) *PageCache {
	if mem == nil || slotCount <= 0 {
		return nil
	}
	c := &PageCache{
		slots:     make([]CacheEntry, slotCount),
		mem:       mem,
		lruHead:   noSlot,
		lruTail:   noSlot,
		writeback: wb,
	}
	for i := range c.slots {
		addr := mem.Alloc(PageSize, PageSize)
		if absent.IsU64(addr) {
			return nil
		}
		c.slots[i].PageAddr = addr
		c.slots[i].lruPrev = noSlot
		c.slots[i].lruNext = noSlot
	}
	return c
}

// Page returns the frame bytes for a slot.
func (c *PageCache) Page(e *CacheEntry) []byte {
	return c.mem.Bytes(e.PageAddr, PageSize)
}

// Stats returns the hit/miss/eviction counters.
func (c *PageCache) Stats() (hits, misses, evictions uint64) {
	return c.hits, c.misses, c.evictions
}

/* -------------------------------------------------------------------------
   LRU surgery
   ------------------------------------------------------------------------- */

func (c *PageCache) unlink(i int32) {
	e := &c.slots[i]
	if e.lruPrev != noSlot {
		c.slots[e.lruPrev].lruNext = e.lruNext
	} else if c.lruHead == i {
		c.lruHead = e.lruNext
	}
	if e.lruNext != noSlot {
		c.slots[e.lruNext].lruPrev = e.lruPrev
	} else if c.lruTail == i {
		c.lruTail = e.lruPrev
	}
	e.lruPrev = noSlot
	e.lruNext = noSlot
}

func (c *PageCache) pushFront(i int32) {
	e := &c.slots[i]
	e.lruPrev = noSlot
	e.lruNext = c.lruHead
	if c.lruHead != noSlot {
		c.slots[c.lruHead].lruPrev = i
	}
	c.lruHead = i
	if c.lruTail == noSlot {
		c.lruTail = i
	}
}

func (c *PageCache) touch(i int32) {
	if c.lruHead == i {
		return
	}
	c.unlink(i)
	c.pushFront(i)
}

/* -------------------------------------------------------------------------
   Lookup / install / invalidate
   ------------------------------------------------------------------------- */

// Lookup probes for a valid entry holding the page of addr, moving it
// to the LRU head on hit.
func (c *PageCache) Lookup(addr uint64) *CacheEntry {
	page := pageOf(addr)
	for i := range c.slots {
		e := &c.slots[i]
		if e.Valid && e.Addr == page {
			c.hits++
			c.touch(int32(i))
			return e
		}
	}
	c.misses++
	return nil
}

// Peek is Lookup without LRU or counter effects.
func (c *PageCache) Peek(addr uint64) *CacheEntry {
	page := pageOf(addr)
	for i := range c.slots {
		e := &c.slots[i]
		if e.Valid && e.Addr == page {
			return e
		}
	}
	return nil
}

// Install places page data for addr into a free or evicted slot and
// returns the entry at the LRU head.  Dirty victims go through the
// write-back callback first.
func (c *PageCache) Install(addr uint64, data []byte, owner uint16, generation, fetchTime uint64, vc *vclock.VClock) *CacheEntry {
	page := pageOf(addr)

	// Re-install over an existing entry for the same page.
	slot := int32(-1)
	for i := range c.slots {
		if c.slots[i].Valid && c.slots[i].Addr == page {
			slot = int32(i)
			break
		}
	}
	if slot == noSlot {
		for i := range c.slots {
			if !c.slots[i].Valid {
				slot = int32(i)
				break
			}
		}
	}
	if slot == noSlot {
		slot = c.evictTail()
		if slot == noSlot {
			return nil
		}
	}

	e := &c.slots[slot]
	frame := c.mem.Bytes(e.PageAddr, PageSize)
	if frame == nil {
		return nil
	}
	n := copy(frame, data)
	clear(frame[n:])

	e.Addr = page
	e.OwnerNode = owner
	e.Generation = generation
	e.FetchTime = fetchTime
	e.VClock = vc
	e.Dirty = false
	e.Valid = true
	c.touch(slot)
	return e
}

// evictTail frees the least-recently-used slot.
func (c *PageCache) evictTail() int32 {
	i := c.lruTail
	if i == noSlot {
		return noSlot
	}
	e := &c.slots[i]
	if e.Dirty && c.writeback != nil {
		c.writeback(e, c.Page(e))
	}
	c.evictions++
	c.unlink(i)
	e.Valid = false
	e.Dirty = false
	e.VClock = nil
	return i
}

// Invalidate drops the entry for addr, reporting whether it was dirty;
// the page content is passed to the write-back callback when so.
func (c *PageCache) Invalidate(addr uint64) bool {
	page := pageOf(addr)
	for i := range c.slots {
		e := &c.slots[i]
		if e.Valid && e.Addr == page {
			dirty := e.Dirty
			if dirty && c.writeback != nil {
				c.writeback(e, c.Page(e))
			}
			c.unlink(int32(i))
			e.Valid = false
			e.Dirty = false
			e.VClock = nil
			return dirty
		}
	}
	return false
}

// InvalidateAll drops every entry; used when a revocation bumps the
// address-family generation.
func (c *PageCache) InvalidateAll() {
	for i := range c.slots {
		e := &c.slots[i]
		if e.Valid {
			if e.Dirty && c.writeback != nil {
				c.writeback(e, c.Page(e))
			}
			c.unlink(int32(i))
			e.Valid = false
			e.Dirty = false
			e.VClock = nil
		}
	}
}

func pageOf(addr uint64) uint64 {
	return MakeAddr(AddrNode(addr), PageAlign(AddrOffset(addr)))
}
