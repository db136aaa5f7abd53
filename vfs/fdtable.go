package vfs

import (
	"sync"

	"kernix/defs"
	"kernix/limits"
)

// FDTable is a per-task file descriptor table: lowest-free-integer-at-or-
// above-floor allocation, bounded by limits.Syslimit.MaxFdPerTask (spec.md
// §4.7). It implements proc.FileOwner (CloseAll) without importing package
// proc, matching the fd-table/task decoupling the teacher achieves by
// keeping fd.Fd_t entirely ignorant of the task that holds it.
type FDTable struct {
	mu  sync.Mutex
	fds map[defs.Fdnum_t]*Fd_t
}

// NewFDTable creates an empty descriptor table.
func NewFDTable() *FDTable {
	return &FDTable{fds: make(map[defs.Fdnum_t]*Fd_t)}
}

// Alloc installs fd at the lowest unused descriptor number >= floor,
// failing with EMFILE once limits.Syslimit.MaxFdPerTask is reached.
func (t *FDTable) Alloc(fd *Fd_t, floor defs.Fdnum_t) (defs.Fdnum_t, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.fds) >= limits.Syslimit.MaxFdPerTask {
		return 0, -defs.EMFILE
	}
	n := floor
	for {
		if _, used := t.fds[n]; !used {
			break
		}
		n++
	}
	t.fds[n] = fd
	return n, 0
}

// Get returns the descriptor installed at n, if any.
func (t *FDTable) Get(n defs.Fdnum_t) (*Fd_t, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd, ok := t.fds[n]
	return fd, ok
}

// Close closes and removes descriptor n (spec.md §6 close(fd)).
func (t *FDTable) Close(n defs.Fdnum_t) defs.Err_t {
	t.mu.Lock()
	fd, ok := t.fds[n]
	if !ok {
		t.mu.Unlock()
		return -defs.EBADF
	}
	delete(t.fds, n)
	t.mu.Unlock()
	return fd.Fops.Close()
}

// Dup installs a reopened reference to n's descriptor at the lowest free
// slot >= floor.
func (t *FDTable) Dup(n defs.Fdnum_t, floor defs.Fdnum_t) (defs.Fdnum_t, defs.Err_t) {
	src, ok := t.Get(n)
	if !ok {
		return 0, -defs.EBADF
	}
	nfd, err := Copyfd(src)
	if err != 0 {
		return 0, err
	}
	return t.Alloc(nfd, floor)
}

// CloseAll releases every open descriptor; called once by the scheduler
// when a task exits (spec.md §4.6 exit: "the parent's wait ... releases
// the task's ... fd table").
func (t *FDTable) CloseAll() {
	t.mu.Lock()
	fds := t.fds
	t.fds = make(map[defs.Fdnum_t]*Fd_t)
	t.mu.Unlock()
	for _, fd := range fds {
		fd.Fops.Close()
	}
}

// Len reports the number of open descriptors, for accounting/diagnostics.
func (t *FDTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fds)
}

// Clone builds an independent table holding a reopened reference to every
// descriptor in t, for fork (spec.md §4.6: a child inherits its parent's
// open file descriptors). A reopen failure on any one descriptor aborts
// the clone and releases everything copied so far, rather than leaving the
// child with a partially-populated table.
func (t *FDTable) Clone() (*FDTable, defs.Err_t) {
	t.mu.Lock()
	src := make(map[defs.Fdnum_t]*Fd_t, len(t.fds))
	for n, fd := range t.fds {
		src[n] = fd
	}
	t.mu.Unlock()

	nt := NewFDTable()
	for n, fd := range src {
		nfd, err := Copyfd(fd)
		if err != 0 {
			nt.CloseAll()
			return nil, err
		}
		nt.fds[n] = nfd
	}
	return nt, 0
}
