// Package irq implements interrupt vector dispatch, spec.md §4.5: a
// 256-entry table of handlers keyed by vector, PIC end-of-interrupt
// signaling (slave-then-master when the vector is an IRQ routed through
// the slave PIC), a per-vector re-entry guard, and a dynamic vector
// allocator for drivers that don't own a fixed CPU exception or legacy IRQ
// number. Grounded on the teacher's msi.Msivecs_t for the allocator and on
// the general IDT-dispatch idiom scattered through the teacher's (deleted,
// out of scope) forked runtime trap handler.
package irq

import "sync"

// VecAllocator hands out vectors from a closed range to drivers that need
// one dynamically (MSI-capable devices, in the teacher's usage), grounded
// on msi.Msivecs_t generalized from msi.go's hardcoded [56,63] range to an
// arbitrary caller-supplied one.
type VecAllocator struct {
	mu    sync.Mutex
	avail map[int]bool
}

// NewVecAllocator creates an allocator over the closed range [lo, hi].
func NewVecAllocator(lo, hi int) *VecAllocator {
	va := &VecAllocator{avail: make(map[int]bool, hi-lo+1)}
	for v := lo; v <= hi; v++ {
		va.avail[v] = true
	}
	return va
}

// Alloc returns an available vector, or ok=false if the range is exhausted.
func (va *VecAllocator) Alloc() (int, bool) {
	va.mu.Lock()
	defer va.mu.Unlock()
	for v := range va.avail {
		delete(va.avail, v)
		return v, true
	}
	return 0, false
}

// Free returns vector to the pool. Freeing a vector that is already
// available (never handed out, or freed twice) panics: that is a
// programming error in the driver, not a runtime condition to recover
// from. A vector outside the range the allocator was created over is not
// detected; it is added to the pool.
func (va *VecAllocator) Free(vector int) {
	va.mu.Lock()
	defer va.mu.Unlock()
	if va.avail[vector] {
		panic("irq: double free of vector")
	}
	va.avail[vector] = true
}
