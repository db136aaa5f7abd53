// Package vmm implements the paging layer and per-task virtual address
// space (spec.md §4.2-§4.3): two-level x86 page tables over mem.Pmap_t,
// demand-zero and protection-fault handling, and a virtual range list
// driving reserve/release/map-across. Grounded on the teacher's vm.Vm_t and
// vm.Vminfo_t (vm/as.go), narrowed from its four-level 64-bit SMP design
// (refcounted shared page tables, Tlbshoot cross-CPU shootdown) to the
// single-CPU two-level target spec.md §1 and §4.2 specify, and with fork
// changed from the teacher's copy-on-write to an eager copy (spec.md §1
// Non-goals: "copy-on-write after fork").
package vmm

import (
	"sync"

	"kernix/defs"
	"kernix/mem"
	"kernix/mem/pmm"
)

// pdIndex and ptIndex split a 32-bit virtual address into its page-directory
// and page-table indices; the low 12 bits are the in-page offset.
func pdIndex(va uint32) int { return int(va >> 22) }
func ptIndex(va uint32) int { return int((va >> 12) & 0x3ff) }

// Context is one address space: a page directory frame plus the virtual
// range list that tracks what each mapped (or reserved-but-unbacked) region
// is for, grounded on the teacher's Vm_t.
type Context struct {
	mu      sync.Mutex
	fa      *pmm.FrameAllocator
	dirPhys mem.Pa_t
	ranges  *rangeList
}

// NewContext allocates a zeroed page directory and an empty range list.
func NewContext(fa *pmm.FrameAllocator) (*Context, defs.Err_t) {
	dir, err := fa.Alloc(1)
	if err != 0 {
		return nil, err
	}
	zero(fa.Dmap(dir))
	return &Context{fa: fa, dirPhys: dir, ranges: newRangeList()}, 0
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// dir returns the live page-directory view for this context.
func (c *Context) dir() *mem.Pmap_t { return c.fa.DmapPmap(c.dirPhys) }

// walk finds the page-table entry for va, allocating an intermediate page
// table on demand when create is true. It returns a pointer into the
// Dmap'd page-table frame so the caller can read or mutate the entry
// in place, grounded on the teacher's pmap_walk.
func (c *Context) walk(va uint32, create bool) (*mem.Pa_t, defs.Err_t) {
	d := c.dir()
	pdi := pdIndex(va)
	pde := d[pdi]
	if pde&mem.PTE_P == 0 {
		if !create {
			return nil, -defs.ENOENT
		}
		ptPhys, err := c.fa.Alloc(1)
		if err != 0 {
			return nil, err
		}
		zero(c.fa.Dmap(ptPhys))
		d[pdi] = ptPhys | mem.PTE_P | mem.PTE_W | mem.PTE_U
		pde = d[pdi]
	}
	pt := c.fa.DmapPmap(pde & mem.PTE_ADDR)
	return &pt[ptIndex(va)], 0
}

// DirPhys is the physical address of this context's page directory, the
// value a real CR3 load would use; exposed for the bring-up sequence and
// for tests that want to compare two contexts' directories are distinct.
func (c *Context) DirPhys() mem.Pa_t { return c.dirPhys }

// Map installs a present mapping from the page containing va to the page
// containing pa with the given flags (spec.md §4.2 map). va and pa must
// already be page-aligned; callers needing page-granularity from arbitrary
// addresses round down first.
func (c *Context) Map(va uint32, pa mem.Pa_t, flags mem.Pa_t) defs.Err_t {
	c.mu.Lock()
	defer c.mu.Unlock()
	pte, err := c.walk(va, true)
	if err != 0 {
		return err
	}
	*pte = (pa &^ mem.PGOFFSET) | flags | mem.PTE_P
	return 0
}

// Unmap clears the mapping covering va and returns the physical frame it
// referenced, freeing that frame back to fa if the entry carries
// PTE_FREEONUNMAP (spec.md §4.2 unmap). Unmapping an address with no
// mapping is a no-op that returns ENOENT, not a panic: callers releasing an
// already-demand-zero (never-faulted-in) range hit this routinely.
func (c *Context) Unmap(va uint32) (mem.Pa_t, defs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pte, err := c.walk(va, false)
	if err != 0 {
		return 0, err
	}
	if *pte&mem.PTE_P == 0 {
		return 0, -defs.ENOENT
	}
	pa := *pte & mem.PTE_ADDR
	freeOnUnmap := *pte&mem.PTE_FREEONUNMAP != 0
	*pte = 0
	if freeOnUnmap {
		c.fa.Free(pa, 1)
	}
	return pa, 0
}

// Translate walks the page tables without creating anything and returns the
// physical address corresponding to va, offset included (spec.md §8
// "Paging bijection": translate(ctx, v+k) == p+k after map(ctx, v, p, ...)
// for 0<=k<PGSIZE).
func (c *Context) Translate(va uint32) (mem.Pa_t, defs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pte, err := c.walk(va, false)
	if err != 0 {
		return 0, err
	}
	if *pte&mem.PTE_P == 0 {
		return 0, -defs.EFAULT
	}
	return (*pte & mem.PTE_ADDR) + mem.Pa_t(va&uint32(mem.PGOFFSET)), 0
}

// SwitchTo is the CR3-load point (spec.md §4.2 switch_to). On real hardware
// this is a single MOV to CR3 issued from an assembly trampoline; there is
// nothing more for Go code to do, so this only exists as a named operation
// for the bring-up sequence and tests to call symmetrically with Map/Clone.
func (c *Context) SwitchTo() mem.Pa_t { return c.dirPhys }

// Clone builds a new address space that is a complete, independent copy of
// c: every present mapping is duplicated onto a freshly allocated frame
// with its contents copied byte-for-byte (spec.md §4.3 clone, and spec.md
// §1 Non-goals: fork is an eager copy, never copy-on-write). The teacher's
// Vm_t.copy_on_fork instead bumps refcounts and write-protects both sides;
// that path is exactly what this spec excludes.
func (c *Context) Clone() (*Context, defs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dst, err := NewContext(c.fa)
	if err != 0 {
		return nil, err
	}
	srcDir := c.dir()
	for pdi := 0; pdi < 1024; pdi++ {
		pde := srcDir[pdi]
		if pde&mem.PTE_P == 0 {
			continue
		}
		srcPt := c.fa.DmapPmap(pde & mem.PTE_ADDR)
		for pti := 0; pti < 1024; pti++ {
			pte := srcPt[pti]
			if pte&mem.PTE_P == 0 {
				continue
			}
			va := uint32(pdi)<<22 | uint32(pti)<<12
			newFrame, ferr := dst.fa.Alloc(1)
			if ferr != 0 {
				return nil, ferr
			}
			copy(dst.fa.Dmap(newFrame), c.fa.Dmap(pte&mem.PTE_ADDR))
			flags := pte &^ mem.PTE_ADDR
			if derr := dst.Map(va, newFrame, flags|mem.PTE_FREEONUNMAP); derr != 0 {
				return nil, derr
			}
		}
	}
	dst.ranges = c.ranges.clone()
	return dst, 0
}
