// engine.go is the per-node coherence engine.  A Node is simultaneously
// the home for its own 4 GiB slice of the aether range (directory +
// home pages) and a requester caching other nodes' pages.
//
// Read path: cache probe; on miss an authenticated PAGE_REQ round trip
// to the owner, conflict detection against the returned vector clock,
// install, copy out.  Write path: the owner applies writes in place and
// invalidates sharers; a remote writer fetches write permission with
// WRITE_REQ and installs the returned page dirty.  Invalidation and
// revocation arrive as fire-and-forget posts.
//
// Locking: the node mutex guards cache, directory, clocks and counters.
// No transport call ever happens under the mutex — handlers queue their
// outgoing posts in an outbox flushed after release, so synchronous
// in-process delivery cannot deadlock across nodes.
//
// Concurrent fetches of one page are collapsed through singleflight;
// every waiter observes the single installed entry.
//
// © 2025 seraph authors. MIT License.

package aether

import (
	"context"
	"encoding/binary"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/seraphos/substrate/internal/absent"
	"github.com/seraphos/substrate/internal/arena"
	"github.com/seraphos/substrate/internal/clock"
	"github.com/seraphos/substrate/internal/shield"
	"github.com/seraphos/substrate/internal/vclock"
)

// Status is the outcome of a DSM operation.
type Status uint8

const (
	StatusOK Status = iota
	StatusTimeout
	StatusDenied
	StatusGeneration
	StatusUnreachable
	StatusCorruption
	StatusRateLimited
	StatusReplay
	StatusMalformed
	StatusNoMem
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusDenied:
		return "denied"
	case StatusGeneration:
		return "generation"
	case StatusUnreachable:
		return "unreachable"
	case StatusCorruption:
		return "corruption"
	case StatusRateLimited:
		return "rate_limited"
	case StatusReplay:
		return "replay"
	case StatusMalformed:
		return "malformed"
	case StatusNoMem:
		return "nomem"
	default:
		return "status?"
	}
}

// DefaultTimeout bounds a remote operation when the caller's context
// carries no deadline.
const DefaultTimeout = 5 * time.Second

// Stats is a snapshot of the node's coherence counters.
type Stats struct {
	CacheHits         uint64
	CacheMisses       uint64
	CacheEvictions    uint64
	LocalReads        uint64
	LocalWrites       uint64
	RemoteReads       uint64
	RemoteWrites      uint64
	Conflicts         uint64
	InvalidationsSent uint64
	Timeouts          uint64
	GenerationStalls  uint64
	DirectoryPages    int
	SecurityDrops     uint64
}

type outboxEntry struct {
	dst   uint16
	frame *shield.Frame
}

// Node is one DSM participant.
type Node struct {
	mu sync.Mutex

	id        uint16
	mem       *arena.Arena
	cache     *PageCache
	dir       *Directory
	homePages map[uint32]uint64 // page-aligned offset -> arena addr

	clock      *clock.Clock
	vclock     *vclock.VClock
	generation uint64
	knownGen   map[uint16]uint64

	guard     *shield.Guard
	transport Transport
	selfKey   [shield.KeySize]byte
	seq       uint32

	outbox []outboxEntry
	sf     singleflight.Group
	now    func() uint64

	localReads        uint64
	localWrites       uint64
	remoteReads       uint64
	remoteWrites      uint64
	conflicts         uint64
	invalidationsSent uint64
	timeouts          uint64
	generationStalls  uint64

	log *zap.Logger
}

// NewNode wires a node over its arena, guard and transport.  The node's
// own signing key must already be present in the guard's keyring.
func NewNode(id uint16, mem *arena.Arena, guard *shield.Guard, tr Transport, cacheSlots int, log *zap.Logger) (*Node, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cacheSlots <= 0 {
		cacheSlots = DefaultCacheSlots
	}
	key, ok := guard.Keyring().KeyFor(id)
	if !ok {
		return nil, errNoSigningKey(id)
	}
	n := &Node{
		id:         id,
		mem:        mem,
		dir:        NewDirectory(id),
		homePages:  make(map[uint32]uint64),
		clock:      clock.New(uint32(id)),
		vclock:     vclock.New(id, 8),
		generation: 1,
		knownGen:   make(map[uint16]uint64),
		guard:      guard,
		transport:  tr,
		selfKey:    key,
		now:        func() uint64 { return uint64(time.Now().UnixMilli()) },
		log:        log,
	}
	n.cache = NewPageCache(mem, cacheSlots, n.queueWriteBack)
	if n.cache == nil {
		return nil, errCacheFrames(id)
	}
	return n, nil
}

// ID returns the node id.
func (n *Node) ID() uint16 { return n.id }

// VClock returns a copy of the node's vector clock.
func (n *Node) VClock() *vclock.VClock {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vclock.Clone()
}

// Generation returns the node's address-family generation.
func (n *Node) Generation() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.generation
}

// SecurityLog exposes the node's security event ring.
func (n *Node) SecurityLog() *shield.Log { return n.guard.Log() }

// Snapshot returns the coherence counters.
func (n *Node) Snapshot() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	h, m, e := n.cache.Stats()
	return Stats{
		CacheHits:         h,
		CacheMisses:       m,
		CacheEvictions:    e,
		LocalReads:        n.localReads,
		LocalWrites:       n.localWrites,
		RemoteReads:       n.remoteReads,
		RemoteWrites:      n.remoteWrites,
		Conflicts:         n.conflicts,
		InvalidationsSent: n.invalidationsSent,
		Timeouts:          n.timeouts,
		GenerationStalls:  n.generationStalls,
		DirectoryPages:    n.dir.Len(),
		SecurityDrops:     n.guard.Log().Count(),
	}
}

/* -------------------------------------------------------------------------
   Frame plumbing
   ------------------------------------------------------------------------- */

// newFrameLocked stamps a frame with the next sequence number and a
// fresh Lamport tick.  Caller holds the mutex.
func (n *Node) newFrameLocked(t shield.FrameType, dst uint16, offset uint32, gen uint64, vc *vclock.VClock, payload []byte) *shield.Frame {
	n.seq++
	return &shield.Frame{
		Type:       t,
		SrcNode:    n.id,
		DstNode:    dst,
		Seq:        n.seq,
		Offset:     uint64(offset),
		Generation: gen,
		SenderTime: n.clock.Tick(),
		VClock:     vc,
		Payload:    payload,
	}
}

// writePayload packs the WRITE_REQ body: page-relative offset, a
// write-back marker, then the data.  A write-back carries a dirty page
// home without claiming exclusivity.
func writePayload(rel uint32, writeback bool, data []byte) []byte {
	payload := make([]byte, 5+len(data))
	binary.LittleEndian.PutUint32(payload[:4], rel)
	if writeback {
		payload[4] = 1
	}
	copy(payload[5:], data)
	return payload
}

// queueWriteBack is the cache's dirty-page hook (eviction and
// invalidation): the page travels home as a fire-and-forget full-page
// write-back.  Caller holds the mutex.
func (n *Node) queueWriteBack(e *CacheEntry, page []byte) {
	f := n.newFrameLocked(shield.FrameWriteReq, e.OwnerNode,
		PageAlign(AddrOffset(e.Addr)), e.Generation, n.vclock.Clone(),
		writePayload(0, true, page))
	n.outbox = append(n.outbox, outboxEntry{dst: e.OwnerNode, frame: f})
}

// flushOutbox sends queued posts.  Caller must NOT hold the mutex.
func (n *Node) flushOutbox() {
	n.mu.Lock()
	pending := n.outbox
	n.outbox = nil
	n.mu.Unlock()
	for _, o := range pending {
		n.transport.Post(o.dst, o.frame.Encode(n.selfKey))
	}
}

/* -------------------------------------------------------------------------
   Home pages
   ------------------------------------------------------------------------- */

// homePage returns the frame bytes of a homed page, allocating a zeroed
// frame on first touch.  Caller holds the mutex.
func (n *Node) homePage(pageOff uint32) []byte {
	if addr, ok := n.homePages[pageOff]; ok {
		return n.mem.Bytes(addr, PageSize)
	}
	addr := n.mem.Alloc(PageSize, PageSize)
	if absent.IsU64(addr) {
		return nil
	}
	b := n.mem.Bytes(addr, PageSize)
	clear(b)
	n.homePages[pageOff] = addr
	return b
}

/* -------------------------------------------------------------------------
   Read path
   ------------------------------------------------------------------------- */

// Read copies len(buf) bytes from addr.  The operation may suspend at
// the transport boundary; on deadline expiry the status is TIMEOUT and
// the caller's vector clock is untouched.
func (n *Node) Read(ctx context.Context, addr uint64, buf []byte) Status {
	if absent.IsU64(addr) || !IsRemote(addr) || len(buf) == 0 {
		return StatusMalformed
	}
	ctx, cancel := withDefaultDeadline(ctx)
	defer cancel()

	remaining := buf
	for len(remaining) > 0 {
		off := AddrOffset(addr)
		pageOff := PageAlign(off)
		inPage := int(off - pageOff)
		chunk := PageSize - inPage
		if chunk > len(remaining) {
			chunk = len(remaining)
		}
		if st := n.readChunk(ctx, addr, remaining[:chunk]); st != StatusOK {
			return st
		}
		remaining = remaining[chunk:]
		addr += uint64(chunk)
	}
	return StatusOK
}

func (n *Node) readChunk(ctx context.Context, addr uint64, buf []byte) Status {
	owner := AddrNode(addr)
	off := AddrOffset(addr)
	pageOff := PageAlign(off)
	inPage := int(off - pageOff)

	if owner == n.id {
		n.mu.Lock()
		page := n.homePage(pageOff)
		if page == nil {
			n.mu.Unlock()
			return StatusNoMem
		}
		copy(buf, page[inPage:inPage+len(buf)])
		n.localReads++
		n.mu.Unlock()
		return StatusOK
	}

	// Cache probe.
	n.mu.Lock()
	if e := n.cache.Lookup(addr); e != nil {
		copy(buf, n.cache.Page(e)[inPage:inPage+len(buf)])
		n.remoteReads++
		n.mu.Unlock()
		return StatusOK
	}
	n.mu.Unlock()

	if st := n.fetchPage(ctx, owner, pageOff); st != StatusOK {
		return st
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	e := n.cache.Peek(addr)
	if e == nil {
		return StatusCorruption
	}
	copy(buf, n.cache.Page(e)[inPage:inPage+len(buf)])
	n.remoteReads++
	return StatusOK
}

// fetchPage collapses concurrent misses for one page into a single
// round trip.
func (n *Node) fetchPage(ctx context.Context, owner uint16, pageOff uint32) Status {
	key := strconv.FormatUint(MakeAddr(owner, pageOff), 16)
	v, _, _ := n.sf.Do(key, func() (any, error) {
		return n.fetchPageOnce(ctx, owner, pageOff), nil
	})
	return v.(Status)
}

func (n *Node) fetchPageOnce(ctx context.Context, owner uint16, pageOff uint32) Status {
	n.mu.Lock()
	gen := n.knownGenLocked(owner)
	req := n.newFrameLocked(shield.FramePageReq, owner, pageOff, gen, n.vclock.Clone(), nil)
	n.mu.Unlock()

	raw, st := n.roundTrip(ctx, owner, req)
	if st != StatusOK {
		return st
	}
	resp, st := n.acceptResponse(raw)
	if st != StatusOK {
		return st
	}
	return n.installResponse(owner, pageOff, resp, false)
}

/* -------------------------------------------------------------------------
   Write path
   ------------------------------------------------------------------------- */

// Write stores data at addr with the same suspension and timeout rules
// as Read.
func (n *Node) Write(ctx context.Context, addr uint64, data []byte) Status {
	if absent.IsU64(addr) || !IsRemote(addr) || len(data) == 0 {
		return StatusMalformed
	}
	ctx, cancel := withDefaultDeadline(ctx)
	defer cancel()

	remaining := data
	for len(remaining) > 0 {
		off := AddrOffset(addr)
		pageOff := PageAlign(off)
		inPage := int(off - pageOff)
		chunk := PageSize - inPage
		if chunk > len(remaining) {
			chunk = len(remaining)
		}
		if st := n.writeChunk(ctx, addr, remaining[:chunk]); st != StatusOK {
			return st
		}
		remaining = remaining[chunk:]
		addr += uint64(chunk)
	}
	return StatusOK
}

func (n *Node) writeChunk(ctx context.Context, addr uint64, data []byte) Status {
	owner := AddrNode(addr)
	off := AddrOffset(addr)
	pageOff := PageAlign(off)
	inPage := off - pageOff

	if owner == n.id {
		n.mu.Lock()
		page := n.homePage(pageOff)
		if page == nil {
			n.mu.Unlock()
			return StatusNoMem
		}
		copy(page[inPage:], data)
		n.localWrites++
		n.vclock.Increment()

		// The home write takes the directory entry exclusive and evicts
		// every sharer's copy.
		e := n.dir.Ensure(pageOff, n.generation)
		e.VClock.Merge(n.vclock)
		for _, s := range e.Sharers {
			if s == n.id {
				continue
			}
			inv := n.newFrameLocked(shield.FrameInvalidate, s, pageOff, n.generation, n.vclock.Clone(), nil)
			n.outbox = append(n.outbox, outboxEntry{dst: s, frame: inv})
			n.invalidationsSent++
		}
		e.ToExclusive(n.id)
		n.mu.Unlock()
		n.flushOutbox()
		return StatusOK
	}

	// Remote write: tick the writer's own causal component, then fetch
	// write permission and install the returned page dirty.
	n.mu.Lock()
	n.vclock.Increment()
	gen := n.knownGenLocked(owner)
	req := n.newFrameLocked(shield.FrameWriteReq, owner, pageOff, gen, n.vclock.Clone(),
		writePayload(inPage, false, data))
	n.mu.Unlock()

	raw, st := n.roundTrip(ctx, owner, req)
	if st != StatusOK {
		return st
	}
	resp, st := n.acceptResponse(raw)
	if st != StatusOK {
		return st
	}
	n.mu.Lock()
	n.remoteWrites++
	n.mu.Unlock()
	return n.installResponse(owner, pageOff, resp, true)
}

/* -------------------------------------------------------------------------
   Response handling
   ------------------------------------------------------------------------- */

func withDefaultDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}

func (n *Node) knownGenLocked(owner uint16) uint64 {
	if g, ok := n.knownGen[owner]; ok {
		return g
	}
	return 1
}

func (n *Node) roundTrip(ctx context.Context, dst uint16, f *shield.Frame) ([]byte, Status) {
	raw, err := n.transport.RoundTrip(ctx, dst, f.Encode(n.selfKey))
	switch {
	case err == nil && raw != nil:
		return raw, StatusOK
	case err == context.DeadlineExceeded || err == context.Canceled:
		n.mu.Lock()
		n.timeouts++
		n.mu.Unlock()
		return nil, StatusTimeout
	case err == ErrUnreachable:
		return nil, StatusUnreachable
	default:
		// A dropped frame surfaces as no response within the deadline;
		// the simulated fabric reports it immediately.
		n.mu.Lock()
		n.timeouts++
		n.mu.Unlock()
		return nil, StatusTimeout
	}
}

// acceptResponse runs the full security pipeline over a response frame.
func (n *Node) acceptResponse(raw []byte) (*shield.Frame, Status) {
	f, verdict := n.guard.Validate(raw, n.now())
	switch verdict {
	case shield.VerdictOK:
	case shield.VerdictRateLimited:
		return nil, StatusRateLimited
	case shield.VerdictReplay:
		return nil, StatusReplay
	case shield.VerdictDenied:
		return nil, StatusDenied
	case shield.VerdictBadMAC:
		return nil, StatusCorruption
	default:
		return nil, StatusCorruption
	}

	n.mu.Lock()
	n.clock.MergeReceive(f.SenderTime)
	n.mu.Unlock()
	return f, StatusOK
}

// installResponse folds a PAGE_RESP (or GEN_RESP) into local state.
func (n *Node) installResponse(owner uint16, pageOff uint32, resp *shield.Frame, dirty bool) Status {
	switch resp.Type {
	case shield.FrameGenResp:
		n.mu.Lock()
		n.knownGen[owner] = resp.Generation
		n.generationStalls++
		n.mu.Unlock()
		return StatusGeneration
	case shield.FramePageResp:
	default:
		return StatusCorruption
	}
	if len(resp.Payload) != PageSize {
		return StatusCorruption
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	addr := MakeAddr(owner, pageOff)

	// Write-write conflict: a concurrent returned clock means both
	// sides advanced independently.  Owner wins; the local copy is
	// overwritten.
	if old := n.cache.Peek(addr); old != nil && old.VClock != nil && resp.VClock != nil {
		if vclock.Compare(old.VClock, resp.VClock) == vclock.Concurrent {
			n.conflicts++
			n.log.Warn("write-write conflict, owner wins",
				zap.Uint16("owner", owner),
				zap.Uint32("page", pageOff))
		}
	}

	e := n.cache.Install(addr, resp.Payload, owner, resp.Generation, n.now(), resp.VClock)
	if e == nil {
		return StatusNoMem
	}
	e.Dirty = dirty
	n.knownGen[owner] = resp.Generation
	n.vclock.Merge(resp.VClock)
	return StatusOK
}

/* -------------------------------------------------------------------------
   Generation query
   ------------------------------------------------------------------------- */

// QueryGeneration asks owner for its current address-family generation
// and records it for subsequent requests.
func (n *Node) QueryGeneration(ctx context.Context, owner uint16) (uint64, Status) {
	ctx, cancel := withDefaultDeadline(ctx)
	defer cancel()

	n.mu.Lock()
	req := n.newFrameLocked(shield.FrameGenQuery, owner, 0, 0, n.vclock.Clone(), nil)
	n.mu.Unlock()

	raw, st := n.roundTrip(ctx, owner, req)
	if st != StatusOK {
		return absent.U64, st
	}
	resp, st := n.acceptResponse(raw)
	if st != StatusOK {
		return absent.U64, st
	}
	if resp.Type != shield.FrameGenResp {
		return absent.U64, StatusCorruption
	}
	n.mu.Lock()
	n.knownGen[owner] = resp.Generation
	n.mu.Unlock()
	return resp.Generation, StatusOK
}

/* -------------------------------------------------------------------------
   Receive side
   ------------------------------------------------------------------------- */

// HandleFrame validates and dispatches one raw frame, returning the
// encoded response or nil for posts and rejected frames.
func (n *Node) HandleFrame(raw []byte) []byte {
	f, verdict := n.guard.Validate(raw, n.now())
	if verdict != shield.VerdictOK {
		return nil
	}

	n.mu.Lock()
	n.clock.MergeReceive(f.SenderTime)

	var resp *shield.Frame
	switch f.Type {
	case shield.FramePageReq:
		resp = n.handlePageReqLocked(f)
	case shield.FrameWriteReq:
		resp = n.handleWriteReqLocked(f)
	case shield.FrameInvalidate:
		n.handleInvalidateLocked(f)
	case shield.FrameRevoke:
		n.handleRevokeLocked(f)
	case shield.FrameGenQuery:
		resp = n.newFrameLocked(shield.FrameGenResp, f.SrcNode, 0, n.generation, n.vclock.Clone(), nil)
	default:
		// Responses arriving outside a round trip are dropped.
	}
	n.mu.Unlock()
	n.flushOutbox()

	if resp == nil {
		return nil
	}
	return resp.Encode(n.selfKey)
}

func (n *Node) handlePageReqLocked(f *shield.Frame) *shield.Frame {
	if f.Generation != n.generation {
		n.guard.NoteGenerationStale(f, n.now())
		return n.newFrameLocked(shield.FrameGenResp, f.SrcNode, 0, n.generation, n.vclock.Clone(), nil)
	}
	pageOff := PageAlign(uint32(f.Offset))
	page := n.homePage(pageOff)
	if page == nil {
		return nil
	}

	e := n.dir.Ensure(pageOff, n.generation)
	switch e.State {
	case DirInvalid:
		// First reader: seed causality from the requester, then tick.
		e.VClock.Merge(f.VClock)
		e.ToShared()
		e.AddSharer(f.SrcNode)
	case DirExclusive:
		if e.ExclusiveOwner != f.SrcNode && e.ExclusiveOwner != n.id {
			// Revoke the writer's exclusivity before sharing; its dirty
			// copy comes home as a write-back.
			inv := n.newFrameLocked(shield.FrameInvalidate, e.ExclusiveOwner, pageOff, n.generation, n.vclock.Clone(), nil)
			n.outbox = append(n.outbox, outboxEntry{dst: e.ExclusiveOwner, frame: inv})
			n.invalidationsSent++
		}
		e.ToShared()
		e.VClock.Merge(f.VClock)
		e.AddSharer(f.SrcNode)
	case DirShared:
		e.VClock.Merge(f.VClock)
		e.AddSharer(f.SrcNode)
	}
	e.VClock.Increment()
	n.vclock.Merge(e.VClock)

	payload := make([]byte, PageSize)
	copy(payload, page)
	return n.newFrameLocked(shield.FramePageResp, f.SrcNode, pageOff, n.generation, e.VClock.Clone(), payload)
}

func (n *Node) handleWriteReqLocked(f *shield.Frame) *shield.Frame {
	if f.Generation != n.generation {
		n.guard.NoteGenerationStale(f, n.now())
		return n.newFrameLocked(shield.FrameGenResp, f.SrcNode, 0, n.generation, n.vclock.Clone(), nil)
	}
	if len(f.Payload) < 5 {
		return nil
	}
	rel := binary.LittleEndian.Uint32(f.Payload[:4])
	writeback := f.Payload[4] == 1
	data := f.Payload[5:]
	if int(rel)+len(data) > PageSize {
		return nil
	}

	pageOff := PageAlign(uint32(f.Offset))
	page := n.homePage(pageOff)
	if page == nil {
		return nil
	}
	copy(page[rel:], data)

	e := n.dir.Ensure(pageOff, n.generation)
	e.VClock.Merge(f.VClock)

	if writeback {
		// A dirty page coming home: the sender gave up its copy and
		// claims nothing.
		e.RemoveSharer(f.SrcNode)
		if e.State == DirExclusive && e.ExclusiveOwner == f.SrcNode {
			e.ToShared()
		}
		e.VClock.Increment()
		n.vclock.Merge(e.VClock)
		return nil
	}

	for _, s := range e.Sharers {
		if s == f.SrcNode || s == n.id {
			continue
		}
		inv := n.newFrameLocked(shield.FrameInvalidate, s, pageOff, n.generation, n.vclock.Clone(), nil)
		n.outbox = append(n.outbox, outboxEntry{dst: s, frame: inv})
		n.invalidationsSent++
	}
	e.ToExclusive(f.SrcNode)
	e.VClock.Increment()
	n.vclock.Merge(e.VClock)

	payload := make([]byte, PageSize)
	copy(payload, page)
	return n.newFrameLocked(shield.FramePageResp, f.SrcNode, pageOff, n.generation, e.VClock.Clone(), payload)
}

func (n *Node) handleInvalidateLocked(f *shield.Frame) {
	addr := MakeAddr(f.SrcNode, PageAlign(uint32(f.Offset)))
	n.cache.Invalidate(addr)
	n.vclock.Merge(f.VClock)
}

func (n *Node) handleRevokeLocked(f *shield.Frame) {
	n.generation++
	n.cache.InvalidateAll()
	n.vclock.Merge(f.VClock)
	n.log.Info("generation revoked",
		zap.Uint16("by", f.SrcNode),
		zap.Uint64("generation", n.generation))
}

/* -------------------------------------------------------------------------
   Errors
   ------------------------------------------------------------------------- */

type nodeError struct {
	id   uint16
	what string
}

func (e nodeError) Error() string {
	return "aether: node " + strconv.Itoa(int(e.id)) + ": " + e.what
}

func errNoSigningKey(id uint16) error {
	return nodeError{id: id, what: "no signing key in keyring"}
}

func errCacheFrames(id uint16) error {
	return nodeError{id: id, what: "arena too small for page cache"}
}
