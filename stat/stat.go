// Package stat defines the on-the-wire structure returned by the stat and
// fstat syscalls (spec.md §6), grounded on the teacher's stat.Stat_t: a
// struct of private fields with explicit accessors. The wire layout is the
// Go struct's in-memory layout, which Bytes exposes directly.
package stat

import "unsafe"

// File type bits, packed into the high bits of Mode alongside permission
// bits, matching common Unix stat conventions.
const (
	IFREG  = 0x8000
	IFDIR  = 0x4000
	IFLNK  = 0xa000
	IFCHR  = 0x2000
	IFIFO  = 0x1000
	IFMT   = 0xf000
	PERMSK = 0x0fff
)

// Stat_t mirrors a file's stat information.
type Stat_t struct {
	dev   uint
	ino   uint
	mode  uint
	size  uint
	rdev  uint
	uid   uint
	gid   uint
	nlink uint
	mtime uint
}

func (st *Stat_t) Wdev(v uint)   { st.dev = v }
func (st *Stat_t) Wino(v uint)   { st.ino = v }
func (st *Stat_t) Wmode(v uint)  { st.mode = v }
func (st *Stat_t) Wsize(v uint)  { st.size = v }
func (st *Stat_t) Wrdev(v uint)  { st.rdev = v }
func (st *Stat_t) Wuid(v uint)   { st.uid = v }
func (st *Stat_t) Wgid(v uint)   { st.gid = v }
func (st *Stat_t) Wnlink(v uint) { st.nlink = v }
func (st *Stat_t) Wmtime(v uint) { st.mtime = v }

func (st *Stat_t) Dev() uint   { return st.dev }
func (st *Stat_t) Ino() uint   { return st.ino }
func (st *Stat_t) Mode() uint  { return st.mode }
func (st *Stat_t) Size() uint  { return st.size }
func (st *Stat_t) Rdev() uint  { return st.rdev }
func (st *Stat_t) Uid() uint   { return st.uid }
func (st *Stat_t) Gid() uint   { return st.gid }
func (st *Stat_t) Nlink() uint { return st.nlink }
func (st *Stat_t) Mtime() uint { return st.mtime }

// IsDir reports whether the stat describes a directory.
func (st *Stat_t) IsDir() bool { return st.mode&IFMT == IFDIR }

// Bytes exposes the raw bytes of the structure for copying into a user
// buffer via the syscall layer.
func (st *Stat_t) Bytes() []uint8 {
	const sz = unsafe.Sizeof(*st)
	sl := (*[sz]uint8)(unsafe.Pointer(st))
	return sl[:]
}
