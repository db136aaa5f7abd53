package ext2

import "kernix/defs"

// Blockgroup is one parsed blockgroup descriptor table entry (spec.md
// §4.10 "cache the blockgroup descriptor table").
type Blockgroup struct {
	BlockBitmap uint32
	InodeBitmap uint32
	InodeTable  uint32
}

// blockgroupDescBlock is the block immediately following the superblock's
// own block (spec.md §6: "blockgroup descriptor table starting at block 2
// for 1 KiB block size", i.e. FirstDataBlock+1).
func blockgroupDescBlock(sb *Superblock) int { return int(sb.FirstDataBlock) + 1 }

// ParseBlockgroups decodes the n (sb.GroupCount()) consecutive 32-byte
// descriptors starting at raw's first byte, where raw is however many
// whole blocks starting at blockgroupDescBlock the caller has already read.
func ParseBlockgroups(sb *Superblock, raw []uint8) ([]Blockgroup, defs.Err_t) {
	n := sb.GroupCount()
	if len(raw) < n*bgEntrySize {
		return nil, -defs.EINVAL
	}
	out := make([]Blockgroup, n)
	for i := 0; i < n; i++ {
		off := i * bgEntrySize
		out[i] = Blockgroup{
			BlockBitmap: r32(raw, off+bgBlockBitmap),
			InodeBitmap: r32(raw, off+bgInodeBitmap),
			InodeTable:  r32(raw, off+bgInodeTable),
		}
	}
	return out, 0
}
