// Package pmm implements the physical frame allocator, spec.md §4.1: a
// bitmap over all 4 KiB physical frames, first-fit contiguous-run
// allocation, and boot seeding from the multiboot memory map. Grounded on
// the teacher's mem.Physmem_t, replacing its SMP-refcounted free lists
// (out of scope: SMP is a spec.md §1 Non-goal) with the plain bitmap
// spec.md §3 "Physical frame table" specifies.
package pmm

import (
	"sync"
	"unsafe"

	"kernix/defs"
	"kernix/hal"
	"kernix/mem"
)

// ErrOutOfMemory is a Go error describing frame exhaustion. Alloc does not
// return it: Alloc reports a missing free run as -defs.ENOMEM.
var ErrOutOfMemory = errOOM{}

type errOOM struct{}

func (errOOM) Error() string { return "pmm: out of memory" }

// FrameAllocator is the bitmap-backed allocator over physical frame 0..N-1,
// where frame i corresponds to physical address i*PGSIZE + base.
type FrameAllocator struct {
	mu      sync.Mutex
	bits    []uint64 // 1 bit per frame; bit set => allocated
	base    mem.Pa_t // physical address of frame 0
	nframes int
	free    int
	arena   []byte // backing store for Dmap, one PGSIZE slab per frame
}

// wordIdx/bitIdx split a frame number into its bitmap word and bit.
func wordIdx(f int) int { return f / 64 }
func bitIdx(f int) uint { return uint(f % 64) }

// New creates a frame allocator covering [base, base+totalBytes) and marks
// every frame allocated; callers seed availability with Free or, from a
// multiboot memory map, with SeedFromMmap.
func New(base mem.Pa_t, totalBytes uint64) *FrameAllocator {
	n := int(totalBytes / uint64(mem.PGSIZE))
	fa := &FrameAllocator{
		base:    base,
		nframes: n,
		bits:    make([]uint64, (n+63)/64),
		arena:   make([]byte, n*mem.PGSIZE),
	}
	for i := range fa.bits {
		fa.bits[i] = ^uint64(0)
	}
	// padding bits beyond nframes stay set; they are never handed out,
	// since Alloc bounds-checks against nframes directly.
	return fa
}

// SeedFromMmap clears bits for every MmapAvailable range reported by the
// bootloader (spec.md §4.1: "free regions become bits cleared, everything
// else stays set"), and then re-reserves [reservedStart, reservedEnd) —
// the kernel image, low memory, and any caller-known holes.
func (fa *FrameAllocator) SeedFromMmap(mi *hal.MultibootInfo, reservedStart, reservedEnd mem.Pa_t) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	for _, e := range mi.Mmap {
		if e.Type != hal.MmapAvailable {
			continue
		}
		startF := fa.frameOf(mem.Pa_t(e.Base))
		endF := fa.frameOf(mem.Pa_t(e.Base + e.Length))
		for f := startF; f < endF; f++ {
			if f < 0 || f >= fa.nframes {
				continue
			}
			if fa.testBit(f) {
				fa.clearBit(f)
				fa.free++
			}
		}
	}
	fa.reserveLocked(reservedStart, reservedEnd)
}

func (fa *FrameAllocator) frameOf(pa mem.Pa_t) int {
	if pa < fa.base {
		return 0
	}
	return int((pa - fa.base) / mem.Pa_t(mem.PGSIZE))
}

func (fa *FrameAllocator) testBit(f int) bool {
	return fa.bits[wordIdx(f)]&(1<<bitIdx(f)) != 0
}
func (fa *FrameAllocator) setBit(f int)   { fa.bits[wordIdx(f)] |= 1 << bitIdx(f) }
func (fa *FrameAllocator) clearBit(f int) { fa.bits[wordIdx(f)] &^= 1 << bitIdx(f) }

func (fa *FrameAllocator) reserveLocked(start, end mem.Pa_t) {
	sf, ef := fa.frameOf(start), fa.frameOf(end)
	for f := sf; f < ef && f < fa.nframes; f++ {
		if !fa.testBit(f) {
			fa.setBit(f)
			fa.free--
		}
	}
}

// Reserve marks [start,end) allocated unconditionally; used at boot for the
// kernel image and low-memory hole before the mmap-derived free set is even
// known to be safe to trust.
func (fa *FrameAllocator) Reserve(start, end mem.Pa_t) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.reserveLocked(start, end)
}

// Alloc finds a first-fit run of n contiguous free frames, marks them
// allocated, and returns the physical address of the run's first frame.
func (fa *FrameAllocator) Alloc(n int) (mem.Pa_t, defs.Err_t) {
	if n <= 0 {
		panic("bad n")
	}
	fa.mu.Lock()
	defer fa.mu.Unlock()
	run := 0
	for f := 0; f < fa.nframes; f++ {
		if fa.testBit(f) {
			run = 0
			continue
		}
		run++
		if run == n {
			start := f - n + 1
			for i := start; i <= f; i++ {
				fa.setBit(i)
			}
			fa.free -= n
			return fa.base + mem.Pa_t(start*mem.PGSIZE), 0
		}
	}
	return 0, -defs.ENOMEM
}

// AllocAt reserves a specific run [base, base+n*PGSIZE) if every frame in
// it is currently free; used during boot to reserve known regions (spec.md
// §4.1 alloc_at).
func (fa *FrameAllocator) AllocAt(base mem.Pa_t, n int) defs.Err_t {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	sf := fa.frameOf(base)
	for f := sf; f < sf+n; f++ {
		if f < 0 || f >= fa.nframes || fa.testBit(f) {
			return -defs.ENOMEM
		}
	}
	for f := sf; f < sf+n; f++ {
		fa.setBit(f)
	}
	fa.free -= n
	return 0
}

// Free releases n frames starting at base. The frame allocator is
// stateless about allocation boundaries (spec.md §4.1): the caller (the
// virtual allocator) must pass back the same length it allocated.
func (fa *FrameAllocator) Free(base mem.Pa_t, n int) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	sf := fa.frameOf(base)
	for f := sf; f < sf+n; f++ {
		if f < 0 || f >= fa.nframes {
			continue
		}
		if fa.testBit(f) {
			fa.clearBit(f)
			fa.free++
		}
	}
}

// FreeCount and TotalCount report the bijection invariant operands (spec.md
// §8 "Frame allocator bijection").
func (fa *FrameAllocator) FreeCount() int {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.free
}

func (fa *FrameAllocator) TotalCount() int { return fa.nframes }

// AllocatedCount is TotalCount - FreeCount, the number of outstanding
// allocated frames.
func (fa *FrameAllocator) AllocatedCount() int {
	return fa.TotalCount() - fa.FreeCount()
}

// Dmap is the direct-map boundary: it returns the PGSIZE-length byte slice
// backing physical frame pa, grounded on the teacher's Physmem_t.Dmap. A
// freestanding build's "physical memory" is the identity-mapped region the
// bootloader leaves; a hosted test build's is this arena. Every caller that
// needs to read or write a frame's contents (the paging layer walking page
// tables, the ELF loader, the syscall layer's user-buffer copies) goes
// through Dmap rather than
// holding a raw pointer, so the same code runs unmodified under both.
func (fa *FrameAllocator) Dmap(pa mem.Pa_t) []byte {
	f := fa.frameOf(pa)
	if f < 0 || f >= fa.nframes {
		panic("pmm: Dmap of out-of-range physical address")
	}
	off := f * mem.PGSIZE
	return fa.arena[off : off+mem.PGSIZE]
}

// DmapPmap is Dmap reinterpreted as a page-table-sized array of entries, for
// the paging layer's page-directory and page-table frames.
func (fa *FrameAllocator) DmapPmap(pa mem.Pa_t) *mem.Pmap_t {
	b := fa.Dmap(pa)
	return (*mem.Pmap_t)(unsafe.Pointer(&b[0]))
}
