package vmm

import (
	"kernix/defs"
	"kernix/mem"
)

// RangeKind tags what a reserved virtual range is backed by, so the fault
// handler knows what to do when a never-faulted-in page inside it is
// touched (spec.md §4.3: the range list is consulted before the fault
// handler decides demand-zero vs. protection fault).
type RangeKind int

const (
	// RangeAnon is demand-zero anonymous memory: a heap or stack extension,
	// backed by a freshly zeroed frame on first touch.
	RangeAnon RangeKind = iota
	// RangeFixed is already fully mapped (an ELF segment, the kernel
	// image); a fault inside it with no present PTE is a genuine
	// protection violation, not something to demand-page.
	RangeFixed
)

// vrange is one node of the per-context sorted, non-overlapping interval
// list, grounded on the teacher's Vminfo_t list embedded in Vm_t.
type vrange struct {
	start, end uint32 // [start, end), page-aligned
	kind       RangeKind
	next       *vrange
}

type rangeList struct {
	head *vrange
}

func newRangeList() *rangeList { return &rangeList{} }

// Reserve inserts [start, start+length) into the list, rejecting overlap
// with any existing range (spec.md §4.3 reserve).
func (c *Context) Reserve(start uint32, length int, kind RangeKind) defs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	end := start + uint32(length)
	return c.ranges.insert(start, end, kind)
}

func (rl *rangeList) insert(start, end uint32, kind RangeKind) defs.Err_t {
	var prev *vrange
	cur := rl.head
	for cur != nil && cur.start < start {
		if cur.end > start {
			return -defs.EINVAL // overlap
		}
		prev = cur
		cur = cur.next
	}
	if cur != nil && cur.start < end {
		return -defs.EINVAL // overlap
	}
	n := &vrange{start: start, end: end, kind: kind, next: cur}
	if prev == nil {
		rl.head = n
	} else {
		prev.next = n
	}
	return 0
}

// Release removes the range exactly covering [start, start+length); callers
// must already have Unmapped every page within it (spec.md §4.3 release).
func (c *Context) Release(start uint32, length int) defs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	end := start + uint32(length)
	var prev *vrange
	cur := c.ranges.head
	for cur != nil {
		if cur.start == start && cur.end == end {
			if prev == nil {
				c.ranges.head = cur.next
			} else {
				prev.next = cur.next
			}
			return 0
		}
		prev = cur
		cur = cur.next
	}
	return -defs.ENOENT
}

// find returns the range covering va, if any.
func (rl *rangeList) find(va uint32) (*vrange, bool) {
	for cur := rl.head; cur != nil; cur = cur.next {
		if va >= cur.start && va < cur.end {
			return cur, true
		}
	}
	return nil, false
}

// clone deep-copies the range list for Context.Clone; ranges describe
// policy, not physical frames, so a shallow field copy per node suffices.
func (rl *rangeList) clone() *rangeList {
	out := newRangeList()
	var tail *vrange
	for cur := rl.head; cur != nil; cur = cur.next {
		n := &vrange{start: cur.start, end: cur.end, kind: cur.kind}
		if tail == nil {
			out.head = n
		} else {
			tail.next = n
		}
		tail = n
	}
	return out
}

// MapAcross reserves the same range in dst that src has at [start,
// start+length) and copies its present mappings across with fresh frames,
// used when a clone must also extend a range beyond what Clone's full
// address-space copy already did (spec.md §4.3 map_across) — e.g. grafting
// a shared read-only text range from a loader context into a freshly
// forked task without re-walking the whole directory.
func (src *Context) MapAcross(dst *Context, start uint32, length int, kind RangeKind) defs.Err_t {
	if err := dst.Reserve(start, length, kind); err != 0 {
		return err
	}
	for va := start; va < start+uint32(length); va += uint32(mem.PGSIZE) {
		pa, err := src.Translate(va)
		if err != 0 {
			continue // unbacked page within the range; demand-zero on first touch
		}
		newFrame, ferr := dst.fa.Alloc(1)
		if ferr != 0 {
			return ferr
		}
		copy(dst.fa.Dmap(newFrame), src.fa.Dmap(pa&^mem.Pa_t(mem.PGSIZE-1)))
		if derr := dst.Map(va, newFrame, mem.PTE_P|mem.PTE_W|mem.PTE_U|mem.PTE_FREEONUNMAP); derr != 0 {
			return derr
		}
	}
	return 0
}
