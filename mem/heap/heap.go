// Package heap implements the kernel heap allocator, spec.md §4.4: a
// doubly-linked explicit free list over a growable byte arena, header/
// footer blocks for O(1) backward and forward coalescing, first-fit scan
// from the most recently inserted free block, alignment support, and an
// optional integrity-stamping mode. The teacher's in-kernel heap is the Go
// runtime's own allocator (out of scope: the forked runtime is "the build
// toolchain", spec.md §1), so this package has no single teacher file to
// adapt; it is grounded on the block-header/free-list idiom the teacher
// uses everywhere else it hand-rolls an allocator (mem.Physmem_t's frame
// free list, fs/blk.go's block cache) and on oommsg.go's channel-based
// pressure-notification handshake.
package heap

import (
	"sync"

	"kernix/defs"
	"kernix/util"
)

const (
	headerSize = 20 // size(4) + free(4) + magic(4) + prevFree(4) + nextFree(4)
	footerSize = 8  // size(4) + magic(4)
	overhead   = headerSize + footerSize
	minBlock   = overhead + 8

	integrityMagic = 0x6b6e6c78 // "knlx", stamped in both header and footer when integrity checking is on
	sentinel       = ^uint32(0)
)

// header field offsets, relative to a block's start.
const (
	offSize     = 0
	offFree     = 4
	offMagic    = 8
	offPrevFree = 12
	offNextFree = 16
)

// OOMRequest is sent on Heap.OOMChan when growth fails to satisfy an
// allocation; Resp carries back whether the caller freed enough memory for
// the allocation to be retried, grounded on the teacher's oommsg.go
// request/response channel pair.
type OOMRequest struct {
	Need int
	Resp chan bool
}

// GrowFunc extends the arena by at least minAdditional bytes and returns
// the new, larger backing slice (same leading bytes as before) or ok=false
// if no more memory is available. In a freestanding build this maps fresh
// frames at the end of the heap's virtual range; in tests it simply grows a
// Go slice.
type GrowFunc func(minAdditional int) (arena []uint8, ok bool)

// Heap is a single contiguous growable arena managed as an explicit free
// list of header/footer blocks.
type Heap struct {
	mu        sync.Mutex
	arena     []uint8
	freeHead  uint32
	grow      GrowFunc
	integrity bool
	OOMChan   chan OOMRequest
}

// New creates a heap over an initial arena, at least minBlock bytes long,
// entirely free.
func New(initial []uint8, grow GrowFunc, integrity bool) *Heap {
	h := &Heap{arena: initial, grow: grow, integrity: integrity, freeHead: sentinel}
	h.addFreeBlock(0, uint32(len(initial)))
	return h
}

func (h *Heap) readU32(off uint32) uint32 { return util.ReadU32LE(h.arena, int(off)) }
func (h *Heap) writeU32(off uint32, v uint32) { util.WriteU32LE(h.arena, int(off), v) }

func (h *Heap) blockSize(off uint32) uint32 { return h.readU32(off + offSize) }
func (h *Heap) isFree(off uint32) bool      { return h.readU32(off+offFree) != 0 }

func (h *Heap) footerOff(off uint32) uint32 { return off + h.blockSize(off) - footerSize }

// stampBlock writes a block's header (and footer, mirrored) fully.
func (h *Heap) stampBlock(off, size uint32, free bool) {
	freeVal := uint32(0)
	if free {
		freeVal = 1
	}
	magic := uint32(0)
	if h.integrity {
		magic = integrityMagic
	}
	h.writeU32(off+offSize, size)
	h.writeU32(off+offFree, freeVal)
	h.writeU32(off+offMagic, magic)
	fo := off + size - footerSize
	h.writeU32(fo, size)
	h.writeU32(fo+4, magic)
}

func (h *Heap) checkMagic(off uint32) {
	if !h.integrity {
		return
	}
	if h.readU32(off+offMagic) != integrityMagic {
		panic("heap: header magic corrupted")
	}
	fo := h.footerOff(off)
	if h.readU32(fo+4) != integrityMagic {
		panic("heap: footer magic corrupted")
	}
}

// addFreeBlock stamps [off, off+size) as one free block and links it at the
// head of the free list (most-recently-inserted scan order, spec.md §4.4).
func (h *Heap) addFreeBlock(off, size uint32) {
	h.stampBlock(off, size, true)
	h.writeU32(off+offPrevFree, sentinel)
	h.writeU32(off+offNextFree, h.freeHead)
	if h.freeHead != sentinel {
		h.writeU32(h.freeHead+offPrevFree, off)
	}
	h.freeHead = off
}

func (h *Heap) unlinkFree(off uint32) {
	prev := h.readU32(off + offPrevFree)
	next := h.readU32(off + offNextFree)
	if prev != sentinel {
		h.writeU32(prev+offNextFree, next)
	} else {
		h.freeHead = next
	}
	if next != sentinel {
		h.writeU32(next+offPrevFree, prev)
	}
}

// Allocate reserves at least size usable bytes, optionally page-aligned and
// zero-filled, and returns the offset of the usable region (spec.md §4.4).
// The minimum-remainder rule: a candidate block is only split if what's
// left over is itself a usable block (>= minBlock); otherwise the whole
// block is handed out, a little larger than requested.
func (h *Heap) Allocate(size int, aligned, zeroed bool) (uint32, defs.Err_t) {
	if size <= 0 {
		panic("heap: bad size")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	need := uint32(size) + overhead
	if need < minBlock {
		need = minBlock
	}
	for {
		if off, ok := h.scanFree(need, aligned); ok {
			if zeroed {
				u := off + headerSize
				for i := u; i < off+h.blockSize(off)-footerSize; i++ {
					h.arena[i] = 0
				}
			}
			return off + headerSize, 0
		}
		if !h.growOrFail(int(need)) {
			return 0, -defs.ENOMEM
		}
	}
}

// scanFree walks the free list from its most-recently-inserted head,
// taking the first block large enough (first-fit, spec.md §4.4). An
// aligned request may carve an additional free remainder off the front of
// an oversized candidate so the payload lands on a page boundary, subject
// to the same minimum-remainder rule the back split uses (frontCarveSize).
func (h *Heap) scanFree(need uint32, aligned bool) (uint32, bool) {
	cur := h.freeHead
	for cur != sentinel {
		h.checkMagic(cur)
		sz := h.blockSize(cur)
		next := h.readU32(cur + offNextFree)

		if !aligned {
			if sz >= need {
				h.unlinkFree(cur)
				return h.splitBlock(cur, sz, need), true
			}
			cur = next
			continue
		}

		front := h.frontCarveSize(cur)
		if front <= sz && sz-front >= need {
			h.unlinkFree(cur)
			payloadStart, payloadSize := cur, sz
			if front > 0 {
				h.addFreeBlock(cur, front)
				payloadStart = cur + front
				payloadSize = sz - front
			}
			return h.splitBlock(payloadStart, payloadSize, need), true
		}
		cur = next
	}
	return 0, false
}

// frontCarveSize reports how many bytes must be carved off the front of a
// free block at off so its payload (off+frontCarveSize+headerSize) lands on
// a page boundary. A carve smaller than minBlock would leave an unusable
// free remainder, so it is pushed forward a whole page instead (spec.md
// §4.4: "subject to the same minimum-remainder rule").
func (h *Heap) frontCarveSize(off uint32) uint32 {
	const pageSize = 4096
	payload := off + headerSize
	alignedPayload := (payload + pageSize - 1) &^ (pageSize - 1)
	front := alignedPayload - payload
	if front != 0 && front < minBlock {
		front += pageSize
	}
	return front
}

// splitBlock stamps start as an allocated block of need bytes, carving the
// remainder of size (size-need) into a new free block when it's large
// enough to be usable on its own (the minimum-remainder rule).
func (h *Heap) splitBlock(start, size, need uint32) uint32 {
	remainder := size - need
	if remainder >= minBlock {
		h.stampBlock(start, need, false)
		h.addFreeBlock(start+need, remainder)
	} else {
		h.stampBlock(start, size, false)
	}
	return start
}

// growOrFail extends the arena, notifying OOMChan first if growth fails so
// a listener can try to reclaim memory and ask for a retry, grounded on
// oommsg.go's request/response handshake. Only the tests install a
// listener; the send blocks until one receives it.
func (h *Heap) growOrFail(minAdditional int) bool {
	oldLen := uint32(len(h.arena))
	if arena, ok := h.grow(minAdditional); ok {
		h.arena = arena
		h.addFreeBlock(oldLen, uint32(len(arena))-oldLen)
		return true
	}
	if h.OOMChan == nil {
		return false
	}
	resp := make(chan bool, 1)
	h.OOMChan <- OOMRequest{Need: minAdditional, Resp: resp}
	if !<-resp {
		return false
	}
	arena, ok := h.grow(minAdditional)
	if !ok {
		return false
	}
	h.arena = arena
	h.addFreeBlock(oldLen, uint32(len(arena))-oldLen)
	return true
}

// Free releases a block previously returned by Allocate, coalescing with
// both the physically preceding and following blocks if they are free
// (spec.md §4.4 coalescing).
func (h *Heap) Free(userOff uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	off := userOff - headerSize
	h.checkMagic(off)
	size := h.blockSize(off)

	// Coalesce forward: the block immediately after this one, if in-arena
	// and free.
	next := off + size
	if next+headerSize <= uint32(len(h.arena)) && h.isFree(next) {
		h.unlinkFree(next)
		size += h.blockSize(next)
	}
	// Coalesce backward: read the preceding block's footer to find its
	// start and size.
	if off >= footerSize {
		prevFooter := off - footerSize
		prevSize := h.readU32(prevFooter)
		prevStart := off - prevSize
		if prevSize >= minBlock && h.isFree(prevStart) {
			h.unlinkFree(prevStart)
			off = prevStart
			size += prevSize
		}
	}
	h.addFreeBlock(off, size)
}

// Bytes exposes the live usable region of a previously allocated block, for
// callers that need raw byte access (e.g. a VFS buffer cache entry backed
// by heap memory).
func (h *Heap) Bytes(userOff uint32, length int) []uint8 {
	return h.arena[userOff : userOff+uint32(length)]
}
