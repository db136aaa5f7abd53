package hal

// TickSource is the millisecond tick external timer driver the core
// consumes (spec.md §1). A registrant hands RegisterTick a function that
// the driver calls on every timer interrupt.
type TickSource interface {
	RegisterTick(fn func())
}

// BlockDevice is the raw block read/write boundary ext2 consumes (spec.md
// §1: "raw block read/write against the backing disk").
type BlockDevice interface {
	ReadBlock(blockno int, dst []uint8) error
	WriteBlock(blockno int, src []uint8) error
	BlockSize() int
}

// Framebuffer is the linear framebuffer descriptor boundary (spec.md §1);
// the core only needs its geometry to hand addresses to /dev/gfxbus
// consumers, never to render into it itself (console text rendering is
// out of scope).
type Framebuffer struct {
	PhysAddr uint64
	Width    uint32
	Height   uint32
	Pitch    uint32
	Bpp      uint8
}

// InterruptRegistrar is the surface the core exposes to external drivers
// (spec.md §1: "interrupt-handler registration"). Concrete vector
// management lives in package irq; this interface lets hal-level bring-up
// code register driver handlers without irq depending on hal.
type InterruptRegistrar interface {
	Register(vector int, handler func(errcode uintptr))
}

// HeapAllocator is the surface the core exposes to external drivers
// (spec.md §1: "heap allocation"). Nothing in this tree implements it:
// mem/heap.Heap allocates uint32 arena offsets and reports failure as a
// defs.Err_t, so its method set does not match.
type HeapAllocator interface {
	Allocate(size int, aligned, zeroed bool) (uintptr, bool)
	Free(ptr uintptr)
}

// VFSRegistrar is the surface the core exposes to external drivers
// (spec.md §1: "VFS registration"); concrete implementation is
// vfs.Namespace.Mount.
type VFSRegistrar interface {
	Mount(point string, devpath string, typeTag string, ops interface{}, priv interface{}) error
}

// SynthFileAdder is the surface the core exposes to external drivers
// (spec.md §1: "a mechanism to add synthetic files"); concrete
// implementation is sysfs.Tree (its AddFile and RemoveFile methods).
type SynthFileAdder interface {
	AddFile(path string, entry interface{}) error
	RemoveFile(path string) error
}
