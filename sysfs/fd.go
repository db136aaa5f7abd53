package sysfs

import (
	"sync"

	"kernix/defs"
	"kernix/stat"
	"kernix/vfs"
)

// synthFd is an open handle onto one Entry, implementing vfs.Fdops_i.
// Offsets are tracked here and handed to the entry's callbacks; an entry
// whose callback ignores off is free to do so (spec.md §4.11: "offsets are
// meaningful only when the callback honours them").
type synthFd struct {
	mu    sync.Mutex
	entry *Entry
	off   int
}

func (f *synthFd) Read(dst []uint8) (int, defs.Err_t) {
	if f.entry.Read == nil {
		return 0, -defs.EINVAL
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.entry.Read(f.off, dst)
	if err == 0 {
		f.off += n
	}
	return n, err
}

func (f *synthFd) Write(src []uint8) (int, defs.Err_t) {
	if f.entry.Write == nil {
		return 0, -defs.EINVAL
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.entry.Write(f.off, src)
	if err == 0 {
		f.off += n
	}
	return n, err
}

func (f *synthFd) Seek(off int, whence int) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch whence {
	case 0:
		f.off = off
	case 1:
		f.off += off
	default:
		return 0, -defs.EINVAL
	}
	if f.off < 0 {
		f.off = 0
		return 0, -defs.EINVAL
	}
	return f.off, 0
}

func (f *synthFd) Stat(st *stat.Stat_t) defs.Err_t {
	st.Wmode(uint(f.entry.Mode))
	st.Wnlink(1)
	return 0
}

func (f *synthFd) Close() defs.Err_t {
	if f.entry.Close == nil {
		return 0
	}
	return f.entry.Close()
}

func (f *synthFd) Reopen() defs.Err_t { return 0 }

func (f *synthFd) Ioctl(cmd int, arg int) (int, defs.Err_t) {
	if f.entry.Ioctl == nil {
		return 0, -defs.EINVAL
	}
	return f.entry.Ioctl(cmd, arg)
}

// Poll reports always-ready-for-read/write when the entry has no Poll
// callback (spec.md §4.9: "backends that do not implement poll report
// always-ready for read/write and never-ready for exceptional
// conditions").
func (f *synthFd) Poll(pm vfs.Pollmsg_t) (vfs.Ready_t, defs.Err_t) {
	if f.entry.Poll != nil {
		return f.entry.Poll(pm)
	}
	return pm.Events &^ vfs.ReadyError, 0
}
