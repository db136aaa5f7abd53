package vfs

import (
	"fmt"
	"sort"
	"sync"

	"kernix/defs"
	"kernix/stat"
	"kernix/ustr"
)

// Dirent_t is one directory entry, backend-agnostic (spec.md §6 getdent).
type Dirent_t struct {
	Name ustr.Ustr
	Ino  uint64
	Type uint8
}

// Directory entry types, mirroring stat.Stat_t's IFMT bits narrowed to a
// byte for on-wire getdents records.
const (
	DT_UNKNOWN = 0
	DT_REG     = 1
	DT_DIR     = 2
	DT_LNK     = 3
	DT_CHR     = 4
	DT_FIFO    = 5
)

// MountOps is what a filesystem backend (ext2, sysfs) provides once
// mounted: every path it receives is already relative to the mount point.
// There is no surviving teacher `fdops`/mount-table source to ground the
// exact method set on, so this is built directly from spec.md §4.7's
// named operations (open/stat/readlink/unlink/getdents) plus chmod, which
// spec.md §6 lists among ext2's best-effort writes.
type MountOps interface {
	Open(path ustr.Ustr, flags int, mode int) (Fdops_i, defs.Err_t)
	Stat(path ustr.Ustr, st *stat.Stat_t) defs.Err_t
	Readlink(path ustr.Ustr) (ustr.Ustr, defs.Err_t)
	Unlink(path ustr.Ustr) defs.Err_t
	Getdents(path ustr.Ustr) ([]Dirent_t, defs.Err_t)
	Chmod(path ustr.Ustr, mode int) defs.Err_t
}

type mountEntry struct {
	point   ustr.Ustr
	ops     MountOps
	devpath string
	typeTag string
}

// Namespace is the system-wide mount table: append-only after boot (spec.md
// §4.9: "VFS mount table: append-only after init, no locking needed for
// reads"). Resolve holds the lock only long enough to read the mount slice
// and scans it unlocked; MountFS holds it for the whole insertion.
type Namespace struct {
	mu     sync.Mutex
	mounts []mountEntry
}

// NewNamespace creates an empty mount table.
func NewNamespace() *Namespace { return &Namespace{} }

// MountFS records ops as the backend for everything under point, the
// internal, statically typed counterpart to Mount (which exists to satisfy
// hal.VFSRegistrar's interface{}-typed signature for external drivers).
func (ns *Namespace) MountFS(point ustr.Ustr, ops MountOps, devpath, typeTag string) defs.Err_t {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	for _, m := range ns.mounts {
		if m.point.Eq(point) {
			return -defs.EEXIST
		}
	}
	ns.mounts = append(ns.mounts, mountEntry{point: point, ops: ops, devpath: devpath, typeTag: typeTag})
	// Longest-prefix-first ordering makes Resolve's scan trivial: the first
	// match found is already the longest.
	sort.Slice(ns.mounts, func(i, j int) bool { return len(ns.mounts[i].point) > len(ns.mounts[j].point) })
	return 0
}

// Mount implements hal.VFSRegistrar for external bring-up code that only
// knows about the hal boundary, not vfs.MountOps concretely.
func (ns *Namespace) Mount(point string, devpath string, typeTag string, ops interface{}, priv interface{}) error {
	mo, ok := ops.(MountOps)
	if !ok {
		return fmt.Errorf("vfs: mount ops for %q does not implement vfs.MountOps", point)
	}
	if err := ns.MountFS(ustr.MkUstrSlice([]uint8(point)), mo, devpath, typeTag); err != 0 {
		return fmt.Errorf("vfs: mount %q: errno %d", point, err)
	}
	return nil
}

// Resolve finds the mount covering path by longest matching prefix (spec.md
// §8 "VFS longest-prefix") and returns its ops plus path relative to the
// mount point. A prefix only matches on a path-component boundary: "/dev"
// must not match "/device/foo".
func (ns *Namespace) Resolve(path ustr.Ustr) (MountOps, ustr.Ustr, defs.Err_t) {
	ns.mu.Lock()
	mounts := ns.mounts
	ns.mu.Unlock()
	for _, m := range mounts {
		if !isPrefixOnBoundary(m.point, path) {
			continue
		}
		rel := path[len(m.point):]
		if len(rel) == 0 {
			rel = ustr.MkUstrRoot()
		}
		return m.ops, rel, 0
	}
	return nil, nil, -defs.ENOENT
}

func isPrefixOnBoundary(prefix, path ustr.Ustr) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	if len(prefix) == 1 { // "/" matches everything
		return true
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
