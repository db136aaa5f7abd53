package ext2

import (
	"kernix/defs"
	"kernix/stat"
)

// Inode is a parsed ext2 inode (spec.md §4.10 "ext2 in-memory state").
type Inode struct {
	Num        uint32
	Mode       uint16
	Size       uint32
	LinksCount uint16
	Block      [dirPerInode]uint32 // 12 direct, then single/double/triple indirect
}

// inodeBlockAndOffset locates which group's inode table holds inum and the
// byte offset within that table (spec.md §4.10: "start at inode 2,
// tokenise the path, read the current directory inode's data blocks").
func inodeBlockAndOffset(sb *Superblock, inum uint32) (group int, byteOff int) {
	idx := inum - 1
	group = int(idx / sb.InodesPerGroup)
	within := idx % sb.InodesPerGroup
	byteOff = int(within) * int(sb.InodeSize)
	return
}

// ParseInode decodes inode inum from the raw bytes of the inode table block
// (or run of blocks) that contains it; off is the byte offset within raw
// where this inode's record starts (from inodeBlockAndOffset, adjusted by
// the caller for however many blocks it read starting at the table).
func ParseInode(raw []uint8, off int, inum uint32) (*Inode, defs.Err_t) {
	if off+inoDefaultSize > len(raw) {
		return nil, -defs.EINVAL
	}
	in := &Inode{
		Num:        inum,
		Mode:       r16(raw, off+inoMode),
		Size:       r32(raw, off+inoSize),
		LinksCount: r16(raw, off+inoLinksCount),
	}
	for i := 0; i < dirPerInode; i++ {
		in.Block[i] = r32(raw, off+inoBlock+4*i)
	}
	return in, 0
}

// IsDir, IsReg, IsLnk classify the inode's type bits (shared with stat.Stat_t's
// IFMT encoding: ext2 reuses the POSIX mode bits directly on-disk).
func (in *Inode) IsDir() bool { return in.Mode&stat.IFMT == stat.IFDIR }
func (in *Inode) IsReg() bool { return in.Mode&stat.IFMT == stat.IFREG }
func (in *Inode) IsLnk() bool { return in.Mode&stat.IFMT == stat.IFLNK }

// NumBlocksForSize returns how many blockSize-sized blocks in.Size spans.
func (in *Inode) NumBlocksForSize(blockSize int) int {
	n := int(in.Size) / blockSize
	if int(in.Size)%blockSize != 0 {
		n++
	}
	return n
}

// blockIndexKind classifies a logical block index into which tier of
// in.Block resolves it (spec.md §4.10 "indices 0-11 are direct; 12
// indirects through one block; 13 double-indirects through two blocks; 14
// triple-indirects").
type blockIndexKind int

const (
	kindDirect blockIndexKind = iota
	kindSingleIndirect
	kindDoubleIndirect
	kindTripleIndirect
)

// perBlockPtrCount is how many 4-byte block pointers fit in one block at
// the given block size.
func perBlockPtrCount(blockSize int) int { return blockSize / 4 }

// ErrTripleIndirectUnsupported is returned by blockAt for a logical index
// that falls in the triple-indirect tier (spec.md §9 REDESIGN FLAGS:
// "Triple-indirect block support in ext2 is partially coded ... the
// reference implementation does not cover it" — carried forward here as
// an explicit, documented gap rather than silently returning wrong data).
var ErrTripleIndirectUnsupported = -defs.ENOSYS

// classify returns which indirection tier logical block index idx falls
// into, and the index within that tier.
func classify(idx int, blockSize int) (blockIndexKind, int) {
	if idx < 12 {
		return kindDirect, idx
	}
	idx -= 12
	ppb := perBlockPtrCount(blockSize)
	if idx < ppb {
		return kindSingleIndirect, idx
	}
	idx -= ppb
	if idx < ppb*ppb {
		return kindDoubleIndirect, idx
	}
	idx -= ppb * ppb
	return kindTripleIndirect, idx
}
