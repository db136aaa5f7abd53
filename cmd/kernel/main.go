// Command kernel wires together this tree's packages into the bring-up
// sequence spec.md §2 describes: multiboot validation, the physical and
// virtual memory managers, the interrupt/syscall dispatch tables, the VFS
// namespace with its ext2 and synthetic backends, and the scheduler that
// hands control to /sbin/init.
//
// Everything below this package is hosted and testable in isolation
// (construct a Config against fakes, call Boot, inspect the result). What
// this package cannot itself provide — protected-mode CPU bring-up, GDT/IDT
// loading, the assembly trap stubs that push a uniform register frame and
// call into package irq and package syscall — is the boundary package hal
// already names as external collaborators (spec.md §1's "out of scope"
// list) and package irq's Dispatcher doc comment already documents as
// assembly-trampoline territory. main itself is an empty placeholder: it
// does not call Boot, and Boot loads and enqueues init without running the
// scheduler; driving the scheduler is left to Boot's caller.
package main

import (
	"fmt"
	"io"

	"kernix/elf"
	"kernix/ext2"
	"kernix/hal"
	"kernix/irq"
	"kernix/klog"
	"kernix/mem"
	"kernix/mem/heap"
	"kernix/mem/pmm"
	"kernix/mem/vmm"
	"kernix/proc"
	"kernix/sysfs"
	"kernix/syscall"
	"kernix/ustr"
	"kernix/vfs"
)

// Config bundles everything Boot needs from the hardware/bootloader side:
// the raw multiboot record, a serial sink for klog, the root filesystem's
// backing disk, and the path to the init binary on that disk.
type Config struct {
	MultibootMagic uint32
	MultibootRaw   []uint8
	Serial         klog.SerialWriter
	RootDisk       hal.BlockDevice
	InitPath       string
	InitArgv       []string
}

// Kernel holds every wired subsystem Boot produced, for tests and for
// diagnostics code to reach into after boot.
type Kernel struct {
	Log     *klog.Logger
	FA      *pmm.FrameAllocator
	Heap    *heap.Heap
	IRQ     *irq.Dispatcher
	Sched   *proc.Scheduler
	NS      *vfs.Namespace
	Sys     *sysfs.Tree
	Dev     *sysfs.Tree
	Panic   *sysfs.PanicBuf
	Syscall *syscall.Dispatcher
	Loader  *elf.Loader
	Init    *proc.Task
}

// diskReader adapts hal.BlockDevice's block-granular interface to the
// io.ReaderAt/io.WriterAt pair package ext2 mounts against (spec.md §1:
// ext2 is handed "raw block read/write against the backing disk", but its
// own mount path wants byte-offset access since the ext2 superblock lives
// at a fixed byte offset that needn't align to the device's block size).
type diskReader struct{ dev hal.BlockDevice }

func (d diskReader) ReadAt(p []byte, off int64) (int, error) {
	bs := d.dev.BlockSize()
	blockno := int(off) / bs
	within := int(off) % bs
	buf := make([]byte, bs)
	n := 0
	for n < len(p) {
		if err := d.dev.ReadBlock(blockno, buf); err != nil {
			return n, err
		}
		c := copy(p[n:], buf[within:])
		n += c
		within = 0
		blockno++
	}
	return n, nil
}

func (d diskReader) WriteAt(p []byte, off int64) (int, error) {
	bs := d.dev.BlockSize()
	blockno := int(off) / bs
	within := int(off) % bs
	buf := make([]byte, bs)
	n := 0
	for n < len(p) {
		if err := d.dev.ReadBlock(blockno, buf); err != nil {
			return n, err
		}
		c := copy(buf[within:], p[n:])
		if err := d.dev.WriteBlock(blockno, buf); err != nil {
			return n, err
		}
		n += c
		within = 0
		blockno++
	}
	return n, nil
}

var _ io.ReaderAt = diskReader{}
var _ io.WriterAt = diskReader{}

// Boot runs spec.md §2's bring-up sequence against cfg and returns every
// wired subsystem, with init loaded and enqueued but not yet run (the
// caller's scheduler-drive loop — real interrupt-driven preemption in a
// freestanding build, a plain for-loop calling Sched.Tick in a hosted test
// — owns actually running it).
func Boot(cfg Config) (*Kernel, error) {
	mi, err := hal.ParseMultiboot(cfg.MultibootMagic, cfg.MultibootRaw)
	if err != nil {
		return nil, err
	}

	log := klog.New(cfg.Serial, 64*1024)
	log.Logf(klog.Info, "boot", "multiboot ok: %d MiB total", mi.TotalBytes()/(1024*1024))

	// Physical memory: seed the frame allocator from the multiboot map
	// (spec.md §4.1 "boot seeding consumes the multiboot memory map"),
	// reserving only the low 1MiB; Boot is given no kernel-image range, so
	// no frames are reserved for the kernel image.
	fa := pmm.New(0, mi.TotalBytes())
	fa.SeedFromMmap(mi, 0, mem.Pa_t(1<<20)) // reserve the low 1MiB: BIOS/boot data lives there

	// Heap: carve out of a fixed-size arena grown by mapping fresh frames
	// as needed (spec.md §4.4 "a single contiguous kernel region ...
	// carved into a doubly-linked list of blocks").
	const initialHeapPages = 64
	arena := make([]uint8, initialHeapPages*mem.PGSIZE)
	grow := func(minAdditional int) ([]uint8, bool) {
		n := (minAdditional + mem.PGSIZE - 1) / mem.PGSIZE
		if n < 1 {
			n = 1
		}
		_, aerr := fa.Alloc(n)
		if aerr != 0 {
			return nil, false
		}
		arena = append(arena, make([]uint8, n*mem.PGSIZE)...)
		return arena, true
	}
	hp := heap.New(arena, grow, true)

	// Interrupts: the dispatch table itself is pure Go; the IDT it backs
	// and the PIC remapping that feeds it EOI are the assembly-trampoline
	// boundary noted above. pic is nil here because Boot has no hardware
	// PIC handle to give it; a production image supplies one through its
	// own hal wiring before Boot runs.
	irqd := irq.NewDispatcher(nil)

	sched := proc.New()
	ns := vfs.NewNamespace()

	rfs, rerr := ext2.Mount(diskReader{cfg.RootDisk}, diskReader{cfg.RootDisk})
	if rerr != 0 {
		return nil, fmt.Errorf("mounting root ext2 volume: errno %d", rerr)
	}
	if merr := ns.MountFS(ustr.MkUstrRoot(), rfs, "", "ext2"); merr != 0 {
		return nil, fmt.Errorf("mounting root at /: errno %d", merr)
	}

	sysTree := sysfs.NewTree()
	sysTree.Add("memfree", sysfs.NewMemfree(fa))
	sysTree.Add("irqcounts", sysfs.NewIrqCounts(irqd))
	sysTree.Add("kmsg", sysfs.NewKmsg(log))
	panicBuf := sysfs.NewPanicBuf(4096)
	sysTree.Add("panicbuf", panicBuf.Entry())
	if merr := ns.MountFS(ustr.Ustr("/sys"), sysTree, "", "sysfs"); merr != 0 {
		return nil, fmt.Errorf("mounting /sys: errno %d", merr)
	}

	devTree := sysfs.NewTree()
	devTree.Add("null", sysfs.NewNull())
	devTree.Add("zero", sysfs.NewZero())
	console := sysfs.NewConsole()
	devTree.Add("tty0", console.Entry())
	devTree.Add("ide0", sysfs.NewIde(cfg.RootDisk))
	if merr := ns.MountFS(ustr.Ustr("/dev"), devTree, "", "sysfs"); merr != 0 {
		return nil, fmt.Errorf("mounting /dev: errno %d", merr)
	}

	loader := elf.New(ns, fa)

	env := &syscall.Env{Sched: sched, NS: ns, FA: fa, Load: loader.Load}
	sysd := syscall.NewDispatcher(env)
	sysTree.Add("syscounts", sysfs.NewSyscallCounts(sysd))
	// irq.SyscallVector's handler is the assembly trampoline that decodes
	// a trapframe into a syscall.Frame and calls sysd.Dispatch; irq.Handler
	// carries no register payload to do that from pure Go, so there is
	// nothing to irqd.Register here (see this package's doc comment).

	init := sched.SpawnInit()
	as, aerr := vmm.NewContext(fa)
	if aerr != 0 {
		return nil, fmt.Errorf("building init's address space: errno %d", aerr)
	}
	init.AS = as
	init.Files = vfs.NewFDTable()
	if lerr := loader.Load(init, cfg.InitPath, cfg.InitArgv, nil); lerr != 0 {
		return nil, fmt.Errorf("loading %s: errno %d", cfg.InitPath, lerr)
	}
	sched.Enqueue(init)

	log.Logf(klog.Info, "boot", "init loaded from %s, pid %d", cfg.InitPath, init.Pid)

	return &Kernel{
		Log: log, FA: fa, Heap: hp, IRQ: irqd, Sched: sched, NS: ns,
		Sys: sysTree, Dev: devTree, Panic: panicBuf, Syscall: sysd,
		Loader: loader, Init: init,
	}, nil
}

func main() {
	// A real freestanding image never reaches here through Go's normal
	// entry: the forked toolchain's runtime init hands off to this
	// package's init/Boot sequence directly once the assembly trampoline
	// above has validated multiboot state. There is nothing for a hosted
	// main to do without that hardware context, so it only documents the
	// hand-off point; Boot is what actually gets exercised, by
	// main_test.go against fakes.
}
