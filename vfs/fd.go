package vfs

import (
	"sync"

	"kernix/bpath"
	"kernix/defs"
	"kernix/ustr"
)

// File descriptor permission bits, grounded on fd.go's FD_READ/FD_WRITE/
// FD_CLOEXEC.
const (
	FD_READ    = 0x1
	FD_WRITE   = 0x2
	FD_CLOEXEC = 0x4
)

// Fd_t is one open file description, grounded on fd.Fd_t.
type Fd_t struct {
	Fops  Fdops_i
	Perms int
}

// Copyfd duplicates an open file description by reopening its underlying
// operations object, grounded on fd.Copyfd.
func Copyfd(fd *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *fd
	if err := nfd.Fops.Reopen(); err != 0 {
		return nil, err
	}
	return nfd, 0
}

// Cwd_t tracks a task's current working directory, grounded on fd.Cwd_t.
type Cwd_t struct {
	mu   sync.Mutex
	Fd   *Fd_t
	Path ustr.Ustr
}

// MkRootCwd constructs a Cwd_t rooted at "/", grounded on fd.MkRootCwd.
func MkRootCwd(fd *Fd_t) *Cwd_t {
	return &Cwd_t{Fd: fd, Path: ustr.MkUstrRoot()}
}

// Fullpath joins cwd with p if p is not already absolute, grounded on
// fd.Cwd_t.Fullpath.
func (cwd *Cwd_t) Fullpath(p ustr.Ustr) ustr.Ustr {
	cwd.mu.Lock()
	defer cwd.mu.Unlock()
	if p.IsAbsolute() {
		return p
	}
	full := append(ustr.Ustr{}, cwd.Path...)
	full = append(full, '/')
	return append(full, p...)
}

// Canonicalpath resolves p relative to cwd and collapses "."/".." lexically,
// grounded on fd.Cwd_t.Canonicalpath.
func (cwd *Cwd_t) Canonicalpath(p ustr.Ustr) ustr.Ustr {
	return bpath.Canonicalize(cwd.Fullpath(p))
}

// Chdir updates cwd to the canonical form of p; callers must already have
// verified p names a directory.
func (cwd *Cwd_t) Chdir(fd *Fd_t, p ustr.Ustr) {
	canon := cwd.Canonicalpath(p)
	cwd.mu.Lock()
	defer cwd.mu.Unlock()
	cwd.Fd = fd
	cwd.Path = canon
}
