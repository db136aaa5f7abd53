// Package elf loads 32-bit little-endian ELF executables into a fresh
// address space (spec.md §4.6 execve, §6 "ELF binaries"). There is no
// surviving teacher in-kernel loader (the teacher's chentry.go only patches
// an entry address post-link; see cmd/chentry), so the segment-mapping loop
// is grounded on the debug/elf-driven guest-loading pattern other retrieved
// VM-monitor code uses: walk Progs, keep PT_LOAD, read each segment's file
// bytes at its program-header offset.
package elf

import (
	"debug/elf"
	"io"

	"kernix/bpath"
	"kernix/defs"
	"kernix/mem"
	"kernix/mem/pmm"
	"kernix/mem/vmm"
	"kernix/proc"
	"kernix/ustr"
	"kernix/util"
	"kernix/vfs"
)

// userStackPages sizes the initial user stack, reserved just below
// mem.UserTop (see that constant for the user/kernel split decision).
const userStackPages = 8

// Loader builds proc.Loader values bound to the filesystem namespace and
// frame allocator a fresh address space is built against.
type Loader struct {
	ns *vfs.Namespace
	fa *pmm.FrameAllocator
}

// New returns a Loader wired to ns (for resolving the executable's path)
// and fa (for allocating the frames backing the new address space).
func New(ns *vfs.Namespace, fa *pmm.FrameAllocator) *Loader {
	return &Loader{ns: ns, fa: fa}
}

// Load implements proc.Loader: it resolves path, parses the ELF image,
// builds a fresh address space mapping every PT_LOAD segment, sets up the
// user stack with argv/envp, and on success installs the new address space,
// entry point, and program break onto t (spec.md §4.6 execve). On any
// failure the fresh address space is simply discarded; t is never touched
// until every step has succeeded, so proc.Execve's own unchanged-on-failure
// guarantee holds even though this function is the one performing the
// writes to t.
func (l *Loader) Load(t *proc.Task, path string, argv, envp []string) defs.Err_t {
	fd, err := l.open(path, t.Cwd)
	if err != 0 {
		return err
	}
	defer fd.Close()

	ef, ferr := elf.NewFile(&fdReaderAt{fd: fd})
	if ferr != nil {
		return -defs.ENOEXEC
	}
	if ef.Class != elf.ELFCLASS32 || ef.Data != elf.ELFDATA2LSB || ef.Machine != elf.EM_386 {
		return -defs.ENOEXEC
	}
	if ef.Type != elf.ET_EXEC {
		return -defs.ENOEXEC
	}
	for _, p := range ef.Progs {
		// PT_INTERP/PT_DYNAMIC are recognised (spec.md §6) only far enough
		// to reject them cleanly: dynamic linking is out of scope (spec.md
		// §1 Non-goals), so a binary that needs one is not loadable here.
		if p.Type == elf.PT_INTERP || p.Type == elf.PT_DYNAMIC {
			return -defs.ENOEXEC
		}
	}

	as, aerr := vmm.NewContext(l.fa)
	if aerr != 0 {
		return aerr
	}

	var brk uint32
	for _, p := range ef.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		top, lerr := l.mapSegment(as, p)
		if lerr != 0 {
			return lerr
		}
		if top > brk {
			brk = top
		}
	}

	stackBase := mem.UserTop - uint32(userStackPages*mem.PGSIZE)
	esp, serr := l.buildStack(as, stackBase, argv, envp)
	if serr != 0 {
		return serr
	}

	t.AS = as
	t.EntryPoint = uint32(ef.Entry)
	t.Brk = brk
	t.StackPointer = esp
	return 0
}

// mapSegment maps one PT_LOAD program header into as, returning the
// page-rounded top of its virtual extent (spec.md §4.6: "map PT_LOAD
// segments at their requested virtual addresses with the requested
// protections ... no segment may be both writable and executable").
func (l *Loader) mapSegment(as *vmm.Context, p *elf.Prog) (uint32, defs.Err_t) {
	if p.Flags&elf.PF_W != 0 && p.Flags&elf.PF_X != 0 {
		return 0, -defs.ENOEXEC
	}

	start := uint32(p.Vaddr) &^ uint32(mem.PGOFFSET)
	end := (uint32(p.Vaddr+p.Memsz) + uint32(mem.PGOFFSET)) &^ uint32(mem.PGOFFSET)
	if end <= start {
		return end, 0
	}

	content := make([]byte, p.Filesz)
	if p.Filesz > 0 {
		if _, rerr := p.ReadAt(content, 0); rerr != nil && rerr != io.EOF {
			return 0, -defs.ENOEXEC
		}
	}

	if rerr := as.Reserve(start, int(end-start), vmm.RangeFixed); rerr != 0 {
		return 0, rerr
	}

	flags := mem.PTE_P | mem.PTE_U
	if p.Flags&elf.PF_W != 0 {
		flags |= mem.PTE_W
	}

	fileStart, fileEnd := uint32(p.Vaddr), uint32(p.Vaddr)+uint32(p.Filesz)
	for va := start; va < end; va += uint32(mem.PGSIZE) {
		frame, ferr := l.fa.Alloc(1)
		if ferr != 0 {
			return 0, ferr
		}
		dst := l.fa.Dmap(frame)
		for i := range dst {
			dst[i] = 0
		}
		lo, hi := va, va+uint32(mem.PGSIZE)
		if lo < fileStart {
			lo = fileStart
		}
		if hi > fileEnd {
			hi = fileEnd
		}
		if hi > lo {
			copy(dst[lo-va:], content[lo-fileStart:hi-fileStart])
		}
		if merr := as.Map(va, frame, flags); merr != 0 {
			return 0, merr
		}
	}
	return end, 0
}

// buildStack lays out argc/argv/envp at the top of [stackBase,
// stackBase+userStackPages*PGSIZE) following spec.md §6's "stack populated
// with argc, a pointer array for argv, and a pointer array for envp, all
// null-terminated", and maps the backing frames. It returns the initial
// stack pointer: the address of the argc word.
func (l *Loader) buildStack(as *vmm.Context, stackBase uint32, argv, envp []string) (uint32, defs.Err_t) {
	size := userStackPages * mem.PGSIZE
	buf := make([]byte, size)

	esp, ok := layoutStack(buf, stackBase, argv, envp)
	if !ok {
		return 0, -defs.ENOMEM
	}

	if rerr := as.Reserve(stackBase, size, vmm.RangeFixed); rerr != 0 {
		return 0, rerr
	}
	for off := 0; off < size; off += mem.PGSIZE {
		frame, ferr := l.fa.Alloc(1)
		if ferr != 0 {
			return 0, ferr
		}
		copy(l.fa.Dmap(frame), buf[off:off+mem.PGSIZE])
		if merr := as.Map(stackBase+uint32(off), frame, mem.PTE_P|mem.PTE_W|mem.PTE_U); merr != 0 {
			return 0, merr
		}
	}
	return esp, 0
}

// layoutStack fills buf (representing [stackBase, stackBase+len(buf))) from
// the top down with argv/envp strings, their pointer arrays, and argc, and
// returns the resulting stack-pointer address. ok is false if argv/envp did
// not fit in the available stack space.
func layoutStack(buf []byte, stackBase uint32, argv, envp []string) (uint32, bool) {
	top := len(buf)
	ok := true

	reserve := func(n int) bool {
		if !ok || top-n < 0 {
			ok = false
			return false
		}
		top -= n
		return true
	}

	writeStr := func(s string) uint32 {
		if !reserve(len(s) + 1) {
			return 0
		}
		copy(buf[top:], s)
		buf[top+len(s)] = 0
		return stackBase + uint32(top)
	}

	envAddrs := make([]uint32, len(envp))
	for i := len(envp) - 1; i >= 0; i-- {
		envAddrs[i] = writeStr(envp[i])
	}
	argAddrs := make([]uint32, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		argAddrs[i] = writeStr(argv[i])
	}

	top &^= 3 // align the pointer arrays

	writePtrArray := func(addrs []uint32) uint32 {
		n := (len(addrs) + 1) * 4
		if !reserve(n) {
			return 0
		}
		base := top
		for i, a := range addrs {
			util.WriteU32LE(buf, base+i*4, a)
		}
		util.WriteU32LE(buf, base+len(addrs)*4, 0)
		return stackBase + uint32(base)
	}

	envpArr := writePtrArray(envAddrs)
	argvArr := writePtrArray(argAddrs)

	if !reserve(4) {
		return 0, false
	}
	util.WriteU32LE(buf, top, envpArr)
	if !reserve(4) {
		return 0, false
	}
	util.WriteU32LE(buf, top, argvArr)
	if !reserve(4) {
		return 0, false
	}
	util.WriteU32LE(buf, top, uint32(len(argv)))

	if !ok {
		return 0, false
	}
	return stackBase + uint32(top), true
}

// open resolves path (relative paths are joined against cwd) through l.ns
// and returns an open, read-only file description for it.
func (l *Loader) open(path string, cwd ustr.Ustr) (vfs.Fdops_i, defs.Err_t) {
	p := ustr.Ustr(path)
	if !p.IsAbsolute() {
		p = cwd.Extend(p)
	}
	p = bpath.Canonicalize(p)

	ops, rel, err := l.ns.Resolve(p)
	if err != 0 {
		return nil, err
	}
	return ops.Open(rel, defs.O_RDONLY, 0)
}

// fdReaderAt adapts a vfs.Fdops_i (which is seek-then-read, like every
// other backend in this tree) to the io.ReaderAt debug/elf requires.
type fdReaderAt struct {
	fd vfs.Fdops_i
}

func (r *fdReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := r.fd.Seek(int(off), 0); err != 0 {
		return 0, io.ErrUnexpectedEOF
	}
	n, err := r.fd.Read(p)
	if err != 0 {
		return n, io.ErrUnexpectedEOF
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
