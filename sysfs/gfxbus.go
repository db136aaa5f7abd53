package sysfs

import (
	"sync"

	"kernix/defs"
	"kernix/mem"
	"kernix/mem/pmm"
	"kernix/mem/vmm"
	"kernix/proc"
	"kernix/stat"
)

// Graphics-bus ioctl numbers (spec.md §6): 0x2f01 registers the calling
// task as the compositor master; 0x2f02 allocates a shared buffer of the
// given size and maps it into both the caller and the master.
const (
	GfxbusRegisterMaster = 0x2f01
	GfxbusAllocShared    = 0x2f02
)

// Gfxbus is the /dev/gfxbus backend (spec.md §6: "graphics compositor bus
// ... allocates a shared buffer and returns its virtual address, mapped
// into both the caller and the master"). There is no teacher source for a
// compositor bus; this is built directly from spec.md's two named ioctls,
// using mem/vmm.Context.Map the same way the rest of this driver maps
// anything else.
type Gfxbus struct {
	mu     sync.Mutex
	fa     *pmm.FrameAllocator
	master *vmm.Context
	nextVA uint32
}

// NewGfxbus creates a bus that hands out shared-buffer virtual addresses
// starting at baseVA (the caller picks a region known free in every
// address space, e.g. a reserved slice above the user heap).
func NewGfxbus(fa *pmm.FrameAllocator, baseVA uint32) *Gfxbus {
	return &Gfxbus{fa: fa, nextVA: baseVA}
}

// Entry builds the /dev/gfxbus synthetic file backed by g.
func (g *Gfxbus) Entry() *Entry {
	return &Entry{
		Mode: stat.IFCHR | 0600,
		Ioctl: func(cmd int, arg int) (int, defs.Err_t) {
			switch cmd {
			case GfxbusRegisterMaster:
				return g.registerMaster()
			case GfxbusAllocShared:
				return g.allocShared(arg)
			default:
				return 0, -defs.EINVAL
			}
		},
	}
}

func (g *Gfxbus) registerMaster() (int, defs.Err_t) {
	cur := proc.Current()
	if cur.AS == nil {
		return 0, -defs.EINVAL
	}
	g.mu.Lock()
	g.master = cur.AS
	g.mu.Unlock()
	return 0, 0
}

func (g *Gfxbus) allocShared(size int) (int, defs.Err_t) {
	if size <= 0 {
		return 0, -defs.EINVAL
	}
	cur := proc.Current()
	if cur.AS == nil {
		return 0, -defs.EINVAL
	}
	g.mu.Lock()
	master := g.master
	g.mu.Unlock()
	if master == nil {
		return 0, -defs.EINVAL
	}

	npages := (size + mem.PGSIZE - 1) / mem.PGSIZE
	base, err := g.fa.Alloc(npages)
	if err != 0 {
		return 0, err
	}

	g.mu.Lock()
	va := g.nextVA
	g.nextVA += uint32(npages * mem.PGSIZE)
	g.mu.Unlock()

	for i := 0; i < npages; i++ {
		pageVA := va + uint32(i*mem.PGSIZE)
		pagePA := base + mem.Pa_t(i*mem.PGSIZE)
		if err := cur.AS.Map(pageVA, pagePA, mem.PTE_P|mem.PTE_W|mem.PTE_U); err != 0 {
			return 0, err
		}
		if master != cur.AS {
			if err := master.Map(pageVA, pagePA, mem.PTE_P|mem.PTE_W|mem.PTE_U); err != 0 {
				return 0, err
			}
		}
	}
	return int(va), 0
}
