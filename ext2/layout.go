// Package ext2 implements a read-mostly ext2 driver, spec.md §4.10: on-disk
// superblock and blockgroup parsing, inode/dirent walking with direct,
// single- and double-indirect block resolution (triple-indirect is a
// documented incompleteness, per spec.md §9 REDESIGN FLAGS), symlink
// expansion, and best-effort metadata writes (chmod, unlink). Grounded on
// the teacher's fs.Superblock_t (the field-accessor idiom, adapted from the
// teacher's own custom on-disk format to the real ext2 layout this spec
// requires) and fs.Bdev_block_t/pci.Disk_i for the block-device boundary,
// narrowed to a synchronous io.ReaderAt/io.WriterAt pair (see FS; cmd/kernel
// adapts hal.BlockDevice to it) (the teacher's async request-queue
// block layer has no counterpart to generalize to here: this spec never
// asks for overlapping I/O).
package ext2

import "kernix/util"

// BSIZE1K is the block size ext2 revision 0/1's minimum log_block_size (0)
// implies: 1024 bytes (spec.md §6: "blockgroup descriptor table starting
// at block 2 (for 1 KiB block size)").
const BSIZE1K = 1024

const (
	Ext2Magic = 0xEF53

	sbStateClean = 1
)

// Superblock field byte offsets, relative to the superblock's own start
// (disk byte 1024, spec.md §4.10).
const (
	sbInodesCount     = 0
	sbBlocksCount     = 4
	sbFreeBlocksCount = 12
	sbFreeInodesCount = 16
	sbFirstDataBlock  = 20
	sbLogBlockSize    = 24
	sbBlocksPerGroup  = 32
	sbInodesPerGroup  = 40
	sbMagic           = 56
	sbState           = 58
	sbRevLevel        = 76
	sbFirstIno        = 84
	sbInodeSize       = 88
	sbFeatureCompat   = 92
	sbFeatureIncompat = 96
	sbFeatureROCompat = 100
	sbSize            = 236
)

// Incompatible-feature bits the driver understands; anything else refuses
// the mount (spec.md §4.10: "refuse to mount if ... incompatible-feature
// bits are set that the driver does not understand").
const (
	IncompatFiletype = 0x2
)

// Blockgroup descriptor field byte offsets, relative to one 32-byte entry.
const (
	bgBlockBitmap = 0
	bgInodeBitmap = 4
	bgInodeTable  = 8
	bgEntrySize   = 32
)

// Inode field byte offsets, relative to one inode-sized entry (128 bytes
// for revision 0).
const (
	inoMode       = 0
	inoSize       = 4
	inoLinksCount = 26
	inoBlock      = 40 // 15 * 4 bytes: 12 direct, single/double/triple indirect
	inoDefaultSize = 128
)

const dirPerInode = 15 // i_block has 15 entries: 12 direct + 3 indirection levels

func r32(b []uint8, off int) uint32 { return util.ReadU32LE(b, off) }
func r16(b []uint8, off int) uint16 { return util.ReadU16LE(b, off) }
func w32(b []uint8, off int, v uint32) { util.WriteU32LE(b, off, v) }
