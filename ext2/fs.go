package ext2

import (
	"io"

	"kernix/defs"
	"kernix/hashtable"
	"kernix/stat"
	"kernix/util"
)

const rootInode = 2

// FS is one mounted ext2 volume (spec.md §4.10). It reads through an
// io.ReaderAt rather than the fixed-blocksize hal.BlockDevice, since the
// superblock itself lives at an arbitrary byte offset (1024) that doesn't
// align to every device's native block size; the teacher's own
// pci.Disk_i/fs.Bdev_block_t pair assumes a single fixed BSIZE for exactly
// this reason (mirrored here with ext2's actual on-disk block size instead
// of the teacher's custom format's). A hosted test backs this with an
// *os.File, grounded on the teacher's ufs test harness.
type FS struct {
	disk  io.ReaderAt
	wdisk io.WriterAt // nil: volume is mounted strictly read-only
	sb    *Superblock
	groups []Blockgroup
	inodes *hashtable.Hashtable_t
}

// Mount reads the superblock and blockgroup descriptor table from disk and
// validates them (spec.md §4.10 "On mount"). wdisk may be nil, in which
// case every write path (chmod, unlink) fails best-effort rather than
// panicking.
func Mount(disk io.ReaderAt, wdisk io.WriterAt) (*FS, defs.Err_t) {
	raw := make([]uint8, sbSize)
	if _, err := disk.ReadAt(raw, 1024); err != nil {
		return nil, -defs.EINVAL
	}
	sb, serr := ParseSuperblock(raw)
	if serr != 0 {
		return nil, serr
	}
	bs := sb.BlockSize()
	n := sb.GroupCount()
	bgRaw := make([]uint8, n*bgEntrySize)
	bgOff := int64(blockgroupDescBlock(sb)) * int64(bs)
	if _, err := disk.ReadAt(bgRaw, bgOff); err != nil {
		return nil, -defs.EINVAL
	}
	groups, gerr := ParseBlockgroups(sb, bgRaw)
	if gerr != 0 {
		return nil, gerr
	}
	fs := &FS{disk: disk, wdisk: wdisk, sb: sb, groups: groups, inodes: hashtable.Mk(128)}
	if wdisk != nil {
		sb.IncMountCount()
		wdisk.WriteAt(raw, 1024)
	}
	return fs, 0
}

// readBlock reads one blockSize-sized block into dst.
func (fs *FS) readBlock(blockno uint32, dst []uint8) defs.Err_t {
	off := int64(blockno) * int64(fs.sb.BlockSize())
	if _, err := fs.disk.ReadAt(dst, off); err != nil {
		return -defs.EINVAL
	}
	return 0
}

// readInode fetches and caches the inode numbered inum (spec.md §3 "cached
// root inode" generalised to every inode this driver touches).
func (fs *FS) readInode(inum uint32) (*Inode, defs.Err_t) {
	if cached, ok := fs.inodes.Get(uint64(inum)); ok {
		return cached.(*Inode), 0
	}
	group, byteOff := inodeBlockAndOffset(fs.sb, inum)
	if group < 0 || group >= len(fs.groups) {
		return nil, -defs.ENOENT
	}
	bs := fs.sb.BlockSize()
	blockWithinTable := byteOff / bs
	offWithinBlock := byteOff % bs
	tableBlock := fs.groups[group].InodeTable + uint32(blockWithinTable)
	buf := make([]uint8, bs)
	if err := fs.readBlock(tableBlock, buf); err != 0 {
		return nil, err
	}
	in, ierr := ParseInode(buf, offWithinBlock, inum)
	if ierr != 0 {
		return nil, ierr
	}
	fs.inodes.Set(uint64(inum), in)
	return in, 0
}

// blockAt resolves in's logical block index idx to a physical block
// number, walking indirect blocks as needed (spec.md §4.10 "Inode block
// resolution").
func (fs *FS) blockAt(in *Inode, idx int) (uint32, defs.Err_t) {
	bs := fs.sb.BlockSize()
	kind, rem := classify(idx, bs)
	switch kind {
	case kindDirect:
		return in.Block[rem], 0
	case kindSingleIndirect:
		return fs.indirectLookup(in.Block[12], rem, bs)
	case kindDoubleIndirect:
		ppb := perBlockPtrCount(bs)
		outer := rem / ppb
		inner := rem % ppb
		mid, err := fs.indirectLookup(in.Block[13], outer, bs)
		if err != 0 || mid == 0 {
			return 0, err
		}
		return fs.indirectLookup(mid, inner, bs)
	default: // kindTripleIndirect
		return 0, defs.Err_t(ErrTripleIndirectUnsupported)
	}
}

// indirectLookup reads indirect block blockno and returns the i'th
// pointer it holds.
func (fs *FS) indirectLookup(blockno uint32, i int, bs int) (uint32, defs.Err_t) {
	if blockno == 0 {
		return 0, 0 // a hole in a sparse file: no block allocated
	}
	buf := make([]uint8, bs)
	if err := fs.readBlock(blockno, buf); err != 0 {
		return 0, err
	}
	return r32(buf, i*4), 0
}

// ReadFile reads up to len(dst) bytes of in's content starting at off,
// returning the number of bytes actually read (spec.md §4.10 "File read:
// walk the necessary blocks, read each through the block-device callback
// in whole blocks, copy the requested window into the caller's buffer";
// spec.md §8 "ext2 read idempotence").
func (fs *FS) ReadFile(in *Inode, off int, dst []uint8) (int, defs.Err_t) {
	if off >= int(in.Size) {
		return 0, 0
	}
	bs := fs.sb.BlockSize()
	want := len(dst)
	if off+want > int(in.Size) {
		want = int(in.Size) - off
	}
	buf := make([]uint8, bs)
	total := 0
	for total < want {
		abs := off + total
		blockIdx := abs / bs
		inBlock := abs % bs
		phys, err := fs.blockAt(in, blockIdx)
		if err != 0 {
			return total, err
		}
		n := bs - inBlock
		if n > want-total {
			n = want - total
		}
		if phys == 0 {
			for i := 0; i < n; i++ {
				dst[total+i] = 0 // sparse hole reads as zero
			}
		} else {
			if err := fs.readBlock(phys, buf); err != 0 {
				return total, err
			}
			copy(dst[total:total+n], buf[inBlock:inBlock+n])
		}
		total += n
	}
	return total, 0
}

// chmodInode rewrites in's mode field, preserving the file-type bits, and
// writes the inode back (spec.md §4.10 "chmod rewrites the inode's mode
// field preserving file-type bits and writes the inode back").
func (fs *FS) chmodInode(in *Inode, permBits int) defs.Err_t {
	if fs.wdisk == nil {
		return -defs.EPERM
	}
	in.Mode = (in.Mode &^ stat.PERMSK) | uint16(permBits)&stat.PERMSK
	group, byteOff := inodeBlockAndOffset(fs.sb, in.Num)
	bs := fs.sb.BlockSize()
	blockWithinTable := byteOff / bs
	offWithinBlock := byteOff % bs
	tableBlock := fs.groups[group].InodeTable + uint32(blockWithinTable)
	buf := make([]uint8, bs)
	if err := fs.readBlock(tableBlock, buf); err != 0 {
		return err
	}
	util.WriteU16LE(buf, offWithinBlock+inoMode, in.Mode)
	off := int64(tableBlock) * int64(bs)
	if _, err := fs.wdisk.WriteAt(buf, off); err != nil {
		return -defs.EINVAL
	}
	return 0
}
