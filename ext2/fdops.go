package ext2

import (
	"sync"

	"kernix/defs"
	"kernix/stat"
	"kernix/vfs"
)

// fileFd is an open ext2 regular file, implementing vfs.Fdops_i (spec.md
// §4.7's uniform fd surface). Grounded on the same read-mostly posture as
// the rest of the package: Write always fails, since ext2 write support
// beyond best-effort metadata updates is a named non-goal.
type fileFd struct {
	mu  sync.Mutex
	fs  *FS
	in  *Inode
	off int
}

func (f *fileFd) Read(dst []uint8) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.fs.ReadFile(f.in, f.off, dst)
	if err != 0 {
		return 0, err
	}
	f.off += n
	return n, 0
}

func (f *fileFd) Write(src []uint8) (int, defs.Err_t) { return 0, -defs.EPERM }

func (f *fileFd) Seek(off int, whence int) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch whence {
	case 0:
		f.off = off
	case 1:
		f.off += off
	case 2:
		f.off = int(f.in.Size) + off
	default:
		return 0, -defs.EINVAL
	}
	if f.off < 0 {
		f.off = 0
		return 0, -defs.EINVAL
	}
	return f.off, 0
}

func (f *fileFd) Stat(st *stat.Stat_t) defs.Err_t {
	f.fs.fillStat(f.in, st)
	return 0
}

func (f *fileFd) Close() defs.Err_t  { return 0 }
func (f *fileFd) Reopen() defs.Err_t { return 0 }

func (f *fileFd) Ioctl(cmd int, arg int) (int, defs.Err_t) { return 0, -defs.EINVAL }

func (f *fileFd) Poll(pm vfs.Pollmsg_t) (vfs.Ready_t, defs.Err_t) {
	// A regular file is always ready for whatever was asked of it.
	return pm.Events, 0
}

// fillStat fills st from an ext2 inode's fields, preserving the file-type
// bits already present in Mode (ext2 stores the same IFMT encoding
// stat.Stat_t uses).
func (fs *FS) fillStat(in *Inode, st *stat.Stat_t) {
	st.Wino(uint(in.Num))
	st.Wmode(uint(in.Mode))
	st.Wsize(uint(in.Size))
	st.Wnlink(uint(in.LinksCount))
}
