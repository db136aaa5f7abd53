package syscall

import (
	"kernix/defs"
	"kernix/mem/pmm"
	"kernix/proc"
	"kernix/stats"
	"kernix/vfs"
)

// Frame holds one trapped syscall's call number and argument registers
// (spec.md §5.1: "reads the call number and up to six argument registers
// into a record"). Decoding the actual CPU trapframe into a Frame is an
// assembly-trampoline concern outside pure Go's reach; that wiring belongs
// to the bring-up code that installs irq.SyscallVector's handler, which
// constructs a Frame from the saved registers and calls Dispatch.
type Frame struct {
	Num  int
	Args [6]uint32
}

// Env bundles the kernel services a syscall handler needs: the scheduler
// for fork/wait/exit, the mount namespace for path resolution, the frame
// allocator backing every address space, and the loader execve installs a
// fresh image through.
type Env struct {
	Sched *proc.Scheduler
	NS    *vfs.Namespace
	FA    *pmm.FrameAllocator
	Load  proc.Loader
}

// handlerFunc is one syscall's implementation: given the environment, the
// calling task, a UserBuf bound to that task's address space, and the
// decoded frame, it returns either a non-negative result value or a
// non-zero error. It never returns both.
type handlerFunc func(e *Env, t *proc.Task, ub *UserBuf, f Frame) (int, defs.Err_t)

// Dispatcher is the static, vector-indexed syscall table (spec.md §5.1:
// "looks up the call in a static table"), mirroring irq.Dispatcher's shape
// one layer up the trap-handling stack.
type Dispatcher struct {
	env    *Env
	table  [defs.SYS_COUNT]handlerFunc
	counts [defs.SYS_COUNT]stats.Counter_t
}

// NewDispatcher builds the dispatch table against env, wiring every
// syscall spec.md §6 names.
func NewDispatcher(env *Env) *Dispatcher {
	d := &Dispatcher{env: env}
	d.table[defs.SYS_READ] = sysRead
	d.table[defs.SYS_WRITE] = sysWrite
	d.table[defs.SYS_OPEN] = sysOpen
	d.table[defs.SYS_CLOSE] = sysClose
	d.table[defs.SYS_SEEK] = sysSeek
	d.table[defs.SYS_STAT] = sysStat
	d.table[defs.SYS_FSTAT] = sysFstat
	d.table[defs.SYS_CHDIR] = sysChdir
	d.table[defs.SYS_GETCWD] = sysGetcwd
	d.table[defs.SYS_PIPE] = sysPipe
	d.table[defs.SYS_FORK] = sysFork
	d.table[defs.SYS_EXECVE] = sysExecve
	d.table[defs.SYS_EXIT] = sysExit
	d.table[defs.SYS_WAIT] = sysWait
	d.table[defs.SYS_GETPID] = sysGetpid
	d.table[defs.SYS_IOCTL] = sysIoctl
	d.table[defs.SYS_POLL] = sysPoll
	d.table[defs.SYS_MMAP] = sysMmap
	d.table[defs.SYS_BRK] = sysBrk
	d.table[defs.SYS_GETDENT] = sysGetdent
	return d
}

// Counts implements sysfs.SyscallCounter, feeding /sys/syscounts.
func (d *Dispatcher) Counts() map[int]int64 {
	out := make(map[int]int64, defs.SYS_COUNT)
	for i := range d.counts {
		out[i] = d.counts[i].Get()
	}
	return out
}

// Fail is the register-level return value Dispatch produces on failure:
// the bit pattern of -1, not the signed value. A successful call can
// legitimately return any 32-bit value (an mmap address above 0x80000000,
// for instance), so the failure/success distinction is carried entirely by
// t.Errno, never by the sign of the returned word.
const Fail uint32 = ^uint32(0)

// Dispatch runs one trapped syscall on behalf of t (spec.md §5.1's
// dispatch convention: >=0 on success, -1 on failure with t.Errno set,
// reinterpreted here as "Fail on failure", since a 32-bit return register
// has no sign on its own). An out-of-range or unregistered call number is
// ENOSYS. Handlers that report EAGAIN (blocking I/O or wait-for-child with
// nothing ready yet, spec.md §4.7 "suspension points") are not retried
// here: Dispatch itself never blocks, so the caller driving task execution
// decides whether to park t and re-issue the same Frame once something
// wakes it, rather than advancing past the trapping instruction.
func (d *Dispatcher) Dispatch(t *proc.Task, f Frame) uint32 {
	if f.Num < 0 || f.Num >= defs.SYS_COUNT || d.table[f.Num] == nil {
		t.Errno = -defs.ENOSYS
		return Fail
	}
	d.counts[f.Num].Inc()
	ub := NewUserBuf(t.AS, d.env.FA)
	ret, err := d.table[f.Num](d.env, t, ub, f)
	if err != 0 {
		t.Errno = err
		return Fail
	}
	t.Errno = 0
	return uint32(ret)
}
