package syscall

import (
	"kernix/bpath"
	"kernix/defs"
	"kernix/mem"
	"kernix/mem/vmm"
	"kernix/proc"
	"kernix/stat"
	"kernix/ustr"
	"kernix/util"
	"kernix/vfs"
)

// Bounds on user-controlled request sizes; none of these are named by
// spec.md, which only fixes behavior at the syscall-surface level, so the
// exact values are an implementation choice rather than an open question.
const (
	maxPathLen = 256
	maxArgs    = 64
	maxIOSize  = 1 << 20
)

// mmapBase is the bump allocator's starting address for anonymous mmap
// (spec.md §6 "mmap"), chosen well clear of a typical ELF image's text/brk
// region and below the user stack (mem.UserTop).
const mmapBase uint32 = 0xa0000000

func fdtableOf(t *proc.Task) *vfs.FDTable { return t.Files.(*vfs.FDTable) }

// resolvePath joins a possibly-relative path against t.Cwd, canonicalizes
// it, and resolves it through the mount namespace.
func resolvePath(e *Env, t *proc.Task, p ustr.Ustr) (vfs.MountOps, ustr.Ustr, defs.Err_t) {
	if !p.IsAbsolute() {
		p = t.Cwd.Extend(p)
	}
	p = bpath.Canonicalize(p)
	return e.NS.Resolve(p)
}

func sysOpen(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	pathStr, err := ub.CopyInStr(f.Args[0], maxPathLen)
	if err != 0 {
		return 0, err
	}
	flags, mode := int(f.Args[1]), int(f.Args[2])
	ops, rel, err := resolvePath(e, t, ustr.Ustr(pathStr))
	if err != 0 {
		return 0, err
	}
	fops, err := ops.Open(rel, flags, mode)
	if err != 0 {
		return 0, err
	}
	perms := 0
	if flags&defs.O_WRONLY == 0 {
		perms |= vfs.FD_READ
	}
	if flags&(defs.O_WRONLY|defs.O_RDWR) != 0 {
		perms |= vfs.FD_WRITE
	}
	n, aerr := fdtableOf(t).Alloc(&vfs.Fd_t{Fops: fops, Perms: perms}, 0)
	if aerr != 0 {
		fops.Close()
		return 0, aerr
	}
	return int(n), 0
}

func sysClose(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	if err := fdtableOf(t).Close(defs.Fdnum_t(f.Args[0])); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysRead(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	desc, ok := fdtableOf(t).Get(defs.Fdnum_t(f.Args[0]))
	if !ok {
		return 0, -defs.EBADF
	}
	if desc.Perms&vfs.FD_READ == 0 {
		return 0, -defs.EBADF
	}
	n := int(f.Args[2])
	if n < 0 {
		return 0, -defs.EINVAL
	}
	if n > maxIOSize {
		n = maxIOSize
	}
	buf := make([]byte, n)
	nread, rerr := desc.Fops.Read(buf)
	if rerr != 0 {
		return 0, rerr
	}
	if werr := ub.CopyOut(f.Args[1], buf[:nread]); werr != 0 {
		return 0, werr
	}
	return nread, 0
}

func sysWrite(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	desc, ok := fdtableOf(t).Get(defs.Fdnum_t(f.Args[0]))
	if !ok {
		return 0, -defs.EBADF
	}
	if desc.Perms&vfs.FD_WRITE == 0 {
		return 0, -defs.EBADF
	}
	n := int(f.Args[2])
	if n < 0 {
		return 0, -defs.EINVAL
	}
	if n > maxIOSize {
		n = maxIOSize
	}
	buf := make([]byte, n)
	if err := ub.CopyIn(f.Args[1], buf); err != 0 {
		return 0, err
	}
	nwrote, werr := desc.Fops.Write(buf)
	if werr != 0 {
		return 0, werr
	}
	return nwrote, 0
}

func sysSeek(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	desc, ok := fdtableOf(t).Get(defs.Fdnum_t(f.Args[0]))
	if !ok {
		return 0, -defs.EBADF
	}
	return desc.Fops.Seek(int(int32(f.Args[1])), int(f.Args[2]))
}

func sysStat(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	pathStr, err := ub.CopyInStr(f.Args[0], maxPathLen)
	if err != 0 {
		return 0, err
	}
	ops, rel, err := resolvePath(e, t, ustr.Ustr(pathStr))
	if err != 0 {
		return 0, err
	}
	var st stat.Stat_t
	if err := ops.Stat(rel, &st); err != 0 {
		return 0, err
	}
	if err := ub.CopyOut(f.Args[1], st.Bytes()); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysFstat(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	desc, ok := fdtableOf(t).Get(defs.Fdnum_t(f.Args[0]))
	if !ok {
		return 0, -defs.EBADF
	}
	var st stat.Stat_t
	if err := desc.Fops.Stat(&st); err != 0 {
		return 0, err
	}
	if err := ub.CopyOut(f.Args[1], st.Bytes()); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysGetdent(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	pathStr, err := ub.CopyInStr(f.Args[0], maxPathLen)
	if err != 0 {
		return 0, err
	}
	ops, rel, err := resolvePath(e, t, ustr.Ustr(pathStr))
	if err != 0 {
		return 0, err
	}
	ents, err := ops.Getdents(rel)
	if err != 0 {
		return 0, err
	}
	bufsize := int(f.Args[2])
	out := make([]byte, 0, bufsize)
	for _, d := range ents {
		// [u16 reclen][u8 type][u8 namelen][u64 ino][name], reclen rounded
		// up to a 4-byte boundary: there is no POSIX getdents wire format
		// to match here, so this is a self-contained choice (see DESIGN.md).
		reclen := (12 + len(d.Name) + 3) &^ 3
		if len(out)+reclen > bufsize {
			break
		}
		rec := make([]byte, reclen)
		util.WriteU16LE(rec, 0, uint16(reclen))
		rec[2] = d.Type
		rec[3] = uint8(len(d.Name))
		util.Writen(rec, 8, 4, int(d.Ino))
		copy(rec[12:], d.Name)
		out = append(out, rec...)
	}
	if werr := ub.CopyOut(f.Args[1], out); werr != 0 {
		return 0, werr
	}
	return len(out), 0
}

func sysChdir(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	pathStr, err := ub.CopyInStr(f.Args[0], maxPathLen)
	if err != 0 {
		return 0, err
	}
	// Built ephemerally: t.Cwd is a plain ustr.Ustr (proc must not import
	// vfs), so vfs.Cwd_t's canonicalization logic is borrowed for the
	// duration of this call rather than held as persistent task state.
	cwd := &vfs.Cwd_t{Path: t.Cwd}
	target := cwd.Canonicalpath(ustr.Ustr(pathStr))

	ops, rel, err := e.NS.Resolve(target)
	if err != 0 {
		return 0, err
	}
	var st stat.Stat_t
	if err := ops.Stat(rel, &st); err != 0 {
		return 0, err
	}
	if !st.IsDir() {
		return 0, -defs.ENOTDIR
	}
	t.Cwd = target
	return 0, 0
}

func sysGetcwd(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	size := int(f.Args[1])
	n := len(t.Cwd) + 1
	if n > size {
		return 0, -defs.ENAMETOOLONG
	}
	buf := make([]byte, n)
	copy(buf, t.Cwd)
	if werr := ub.CopyOut(f.Args[0], buf); werr != 0 {
		return 0, werr
	}
	return n, 0
}

func sysPipe(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	rd, wr := vfs.NewPipe()
	ft := fdtableOf(t)
	rn, err := ft.Alloc(&vfs.Fd_t{Fops: rd, Perms: vfs.FD_READ}, 0)
	if err != 0 {
		rd.Close()
		wr.Close()
		return 0, err
	}
	wn, err := ft.Alloc(&vfs.Fd_t{Fops: wr, Perms: vfs.FD_WRITE}, 0)
	if err != 0 {
		ft.Close(rn)
		wr.Close()
		return 0, err
	}
	var buf [8]byte
	util.WriteU32LE(buf[:], 0, uint32(rn))
	util.WriteU32LE(buf[:], 4, uint32(wn))
	if werr := ub.CopyOut(f.Args[0], buf[:]); werr != 0 {
		return 0, werr
	}
	return 0, 0
}

// sysFork clones the file descriptor table before asking the scheduler to
// clone the address space: if duplicating the fd table fails, no child
// task is ever created, so there is nothing to unwind (spec.md §4.6 fork).
func sysFork(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	childFT, err := fdtableOf(t).Clone()
	if err != 0 {
		return 0, err
	}
	child, err := e.Sched.Fork(t)
	if err != 0 {
		childFT.CloseAll()
		return 0, err
	}
	child.Files = childFT
	return int(child.Pid), 0
}

func sysExecve(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	path, err := ub.CopyInStr(f.Args[0], maxPathLen)
	if err != 0 {
		return 0, err
	}
	argv, err := ub.CopyInStrs(f.Args[1], maxArgs, maxPathLen)
	if err != 0 {
		return 0, err
	}
	envp, err := ub.CopyInStrs(f.Args[2], maxArgs, maxPathLen)
	if err != 0 {
		return 0, err
	}
	if err := t.Execve(e.Load, path, argv, envp); err != 0 {
		return 0, err
	}
	return 0, 0
}

func sysExit(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	e.Sched.Exit(t, int(int32(f.Args[0])))
	return 0, 0
}

// sysWait implements the single-argument "wait for any child" form spec.md
// §6 names. Nothing terminated yet is reported as EAGAIN (spec.md §4.7:
// wait-for-child is itself a named suspension point), for the caller
// driving task execution to park t and retry once a child exits.
func sysWait(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	pid, status, ch, err := t.Wait(-1)
	if err != 0 {
		return 0, err
	}
	if ch != nil {
		return 0, -defs.EAGAIN
	}
	if f.Args[0] != 0 {
		var buf [4]byte
		util.WriteU32LE(buf[:], 0, uint32(status))
		if werr := ub.CopyOut(f.Args[0], buf[:]); werr != 0 {
			return 0, werr
		}
	}
	e.Sched.Reap(pid)
	return int(pid), 0
}

func sysGetpid(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	return int(t.Pid), 0
}

func sysIoctl(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	desc, ok := fdtableOf(t).Get(defs.Fdnum_t(f.Args[0]))
	if !ok {
		return 0, -defs.EBADF
	}
	return desc.Fops.Ioctl(int(f.Args[1]), int(f.Args[2]))
}

func sysPoll(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	desc, ok := fdtableOf(t).Get(defs.Fdnum_t(f.Args[0]))
	if !ok {
		return 0, -defs.EBADF
	}
	ready, err := desc.Fops.Poll(vfs.Pollmsg_t{Events: vfs.Ready_t(f.Args[1])})
	if err != 0 {
		return 0, err
	}
	return int(ready), 0
}

// sysMmap supports anonymous mappings only (spec.md §1 Non-goals: no
// demand paging from a file), bump-allocated from mmapBase. The requested
// address (f.Args[0]) is a hint this implementation ignores, matching the
// freedom POSIX mmap grants the kernel when MAP_FIXED isn't set.
func sysMmap(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	length := int(f.Args[1])
	if length <= 0 {
		return 0, -defs.EINVAL
	}
	if t.MmapNext == 0 {
		t.MmapNext = mmapBase
	}
	start := t.MmapNext
	size := util.Roundup(length, mem.PGSIZE)
	if err := t.AS.Reserve(start, size, vmm.RangeAnon); err != 0 {
		return 0, err
	}
	t.MmapNext = start + uint32(size)
	return int(start), 0
}

// sysBrk moves the top of t's data segment (spec.md §6: "the top of a
// task's data segment, movable by the brk syscall"). A request of 0 only
// queries the current value. Shrinking updates t.Brk without releasing the
// underlying range: partial release of a vmm range isn't supported, and a
// task that later grows brk back into previously-shrunk space finds it
// already reserved and zeroed, which is harmless.
func sysBrk(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t) {
	newBrk := f.Args[0]
	if newBrk == 0 || newBrk <= t.Brk {
		if newBrk != 0 {
			t.Brk = newBrk
		}
		return int(t.Brk), 0
	}
	oldPage := util.Roundup(int(t.Brk), mem.PGSIZE)
	newPage := util.Roundup(int(newBrk), mem.PGSIZE)
	if newPage > oldPage {
		if err := t.AS.Reserve(uint32(oldPage), newPage-oldPage, vmm.RangeAnon); err != 0 {
			return 0, err
		}
	}
	t.Brk = newBrk
	return int(t.Brk), 0
}
