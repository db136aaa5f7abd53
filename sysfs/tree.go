// Package sysfs implements the synthetic filesystem spec.md §4.11
// describes: a flat, named list of entries, each with a callback table and
// optional private state, mounted under a `/sys`-shaped tree for
// introspection and a `/dev`-shaped tree for device nodes. There is no
// surviving teacher source for this concern specifically (the forked
// runtime's devfs equivalent lived in code this pack never retrieved), so
// the callback-table shape is built directly from spec.md §4.9's general
// mount-table callback set, narrowed to what a flat synthetic namespace
// needs (no real directories to descend into, so getdents lists entries by
// name prefix rather than walking a tree).
package sysfs

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"kernix/defs"
	"kernix/stat"
	"kernix/ustr"
	"kernix/vfs"
)

// Entry is one named synthetic file: a callback table plus whatever
// private state the callbacks close over (spec.md §4.11: "each with a
// callback table and optional private state"). Every callback is
// optional: a nil Read, Write or Ioctl makes that operation fail EINVAL,
// a nil Poll reports always-ready, and a nil Close succeeds.
type Entry struct {
	Mode  uint16 // file-type + permission bits, as in stat.Stat_t
	Read  func(off int, dst []uint8) (int, defs.Err_t)
	Write func(off int, src []uint8) (int, defs.Err_t)
	Ioctl func(cmd int, arg int) (int, defs.Err_t)
	Poll  func(pm vfs.Pollmsg_t) (vfs.Ready_t, defs.Err_t)
	Close func() defs.Err_t
}

// Tree is the mount-table backend for both the /sys and /dev namespaces
// (one Tree instance per mount point; the bring-up sequence constructs
// two). Adding and removing entries by name is idempotent (spec.md §4.11).
type Tree struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewTree creates an empty synthetic namespace.
func NewTree() *Tree { return &Tree{entries: make(map[string]*Entry)} }

// Add installs entry under name, replacing any existing entry of the same
// name (idempotent: adding the same name twice is not an error).
func (t *Tree) Add(name string, entry *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[strings.TrimPrefix(name, "/")] = entry
}

// Remove deletes the entry named name, if present; removing an absent
// name is not an error (spec.md §4.11's idempotence applies symmetrically).
func (t *Tree) Remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, strings.TrimPrefix(name, "/"))
}

// AddFile implements hal.SynthFileAdder for external bring-up code that
// only knows the hal-level interface{} signature.
func (t *Tree) AddFile(path string, entry interface{}) error {
	e, ok := entry.(*Entry)
	if !ok {
		return fmt.Errorf("sysfs: entry for %q is not a *sysfs.Entry", path)
	}
	t.Add(path, e)
	return nil
}

// RemoveFile implements hal.SynthFileAdder.
func (t *Tree) RemoveFile(path string) error {
	t.Remove(path)
	return nil
}

func (t *Tree) lookup(path ustr.Ustr) (string, *Entry, defs.Err_t) {
	name := strings.TrimPrefix(path.String(), "/")
	t.mu.Lock()
	e, ok := t.entries[name]
	t.mu.Unlock()
	if !ok {
		return "", nil, -defs.ENOENT
	}
	return name, e, 0
}

// Open implements vfs.MountOps.
func (t *Tree) Open(path ustr.Ustr, flags int, mode int) (vfs.Fdops_i, defs.Err_t) {
	_, e, err := t.lookup(path)
	if err != 0 {
		return nil, err
	}
	return &synthFd{entry: e}, 0
}

// Stat implements vfs.MountOps; synthetic entries report size 0 always
// (spec.md §4.11: "offsets are meaningful only when the callback honours
// them" — there is no general notion of file size here).
func (t *Tree) Stat(path ustr.Ustr, st *stat.Stat_t) defs.Err_t {
	_, e, err := t.lookup(path)
	if err != 0 {
		return err
	}
	st.Wmode(uint(e.Mode))
	st.Wnlink(1)
	return 0
}

// Readlink implements vfs.MountOps; no synthetic entry is a symlink.
func (t *Tree) Readlink(path ustr.Ustr) (ustr.Ustr, defs.Err_t) {
	return nil, -defs.EINVAL
}

// Unlink implements vfs.MountOps: removing a device node or sysfs entry
// through the filesystem namespace is not supported (use Remove/RemoveFile
// to change the table itself).
func (t *Tree) Unlink(path ustr.Ustr) defs.Err_t { return -defs.EPERM }

// Chmod implements vfs.MountOps by rewriting the permission bits of the
// entry's in-memory Mode; the file-type bits are kept and nothing is
// persisted.
func (t *Tree) Chmod(path ustr.Ustr, mode int) defs.Err_t {
	_, e, err := t.lookup(path)
	if err != 0 {
		return err
	}
	e.Mode = (e.Mode &^ stat.PERMSK) | uint16(mode)&stat.PERMSK
	return 0
}

// Getdents implements vfs.MountOps: since the namespace is a flat map, not
// a real tree, this lists entries whose name is an immediate child of
// path (spec.md §4.11 "flat list of named entries" generalized just
// enough to let `ls /dev` work).
func (t *Tree) Getdents(path ustr.Ustr) ([]vfs.Dirent_t, defs.Err_t) {
	prefix := strings.TrimPrefix(path.String(), "/")
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := map[string]bool{}
	var names []string
	for name := range t.entries {
		rel := name
		if prefix != "" {
			if !strings.HasPrefix(name, prefix+"/") {
				continue
			}
			rel = name[len(prefix)+1:]
		}
		child := rel
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			child = rel[:i]
		}
		if child == "" || seen[child] {
			continue
		}
		seen[child] = true
		names = append(names, child)
	}
	sort.Strings(names)
	out := make([]vfs.Dirent_t, len(names))
	for i, n := range names {
		out[i] = vfs.Dirent_t{Name: ustr.Ustr(n), Type: vfs.DT_REG}
	}
	return out, 0
}
