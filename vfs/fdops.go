// Package vfs implements the virtual file system layer, spec.md §4.7:
// mount table resolution by longest matching path prefix, per-task file
// descriptor tables, path resolution through bpath, pipes, and poll/ioctl
// passthrough to the backing filesystem. Grounded on the teacher's fd.Fd_t
// and fd.Cwd_t; the fdops.Fdops_i interface itself has no surviving
// teacher source (the `fdops` package carried only a stub go.mod) and is
// reconstructed here from its call sites in fd.go (Fops.Reopen, Fops.Close)
// generalized to the full read/write/seek/stat/poll/ioctl surface spec.md
// §4.7 and §6 require.
package vfs

import "kernix/defs"
import "kernix/stat"

// Ready_t is a poll-readiness bitmask.
type Ready_t int

const (
	ReadyRead Ready_t = 1 << iota
	ReadyWrite
	ReadyError
)

// Pollmsg_t is the events a caller is polling for, and (filled in by Poll)
// the events actually ready.
type Pollmsg_t struct {
	Events Ready_t
}

// Fdops_i is the operation set every open file description implements,
// whether it is backed by ext2, a pipe, or a synthetic file (spec.md §4.7:
// "poll/ioctl passthrough" implies every backend answers the same
// interface uniformly). Read and Write operate on an already
// user/kernel-validated byte buffer: the syscall layer (package syscall)
// is responsible for translating and bounds-checking user pointers before
// an Fdops_i ever sees them, matching the teacher's division of labor
// between `vm.Userbuf_t` (pointer validation) and `fd.Fd_t` (the
// operation itself).
type Fdops_i interface {
	Read(dst []uint8) (int, defs.Err_t)
	Write(src []uint8) (int, defs.Err_t)
	Seek(off int, whence int) (int, defs.Err_t)
	Stat(st *stat.Stat_t) defs.Err_t
	Close() defs.Err_t
	Reopen() defs.Err_t
	Ioctl(cmd int, arg int) (int, defs.Err_t)
	Poll(pm Pollmsg_t) (Ready_t, defs.Err_t)
}
