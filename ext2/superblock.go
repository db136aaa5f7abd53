package ext2

import (
	"kernix/defs"
	"kernix/util"
)

// Superblock is a parsed ext2 superblock, grounded on the teacher's
// Superblock_t field-accessor style (fs/super.go) over the real ext2
// on-disk layout.
type Superblock struct {
	raw []uint8 // the sbSize-byte on-disk image, kept for SetX/write-back

	InodesCount     uint32
	BlocksCount     uint32
	FirstDataBlock  uint32
	LogBlockSize    uint32
	BlocksPerGroup  uint32
	InodesPerGroup  uint32
	RevLevel        uint32
	InodeSize       uint16
	FeatureIncompat uint32
	FeatureROCompat uint32
}

// BlockSize is 1024 << LogBlockSize (spec.md §4.10/§6).
func (sb *Superblock) BlockSize() int { return BSIZE1K << sb.LogBlockSize }

// GroupCount is the number of blockgroups the volume is divided into.
func (sb *Superblock) GroupCount() int {
	n := sb.BlocksCount / sb.BlocksPerGroup
	if sb.BlocksCount%sb.BlocksPerGroup != 0 {
		n++
	}
	return int(n)
}

// ParseSuperblock validates and decodes the sbSize-byte image read from
// disk offset 1024 (spec.md §4.10 "read the superblock at on-disk offset
// 1024, validate magic, refuse to mount if not marked clean or if
// incompatible-feature bits are set that the driver does not
// understand").
func ParseSuperblock(raw []uint8) (*Superblock, defs.Err_t) {
	if len(raw) < sbSize {
		return nil, -defs.EINVAL
	}
	if r16(raw, sbMagic) != Ext2Magic {
		return nil, -defs.EINVAL
	}
	if r16(raw, sbState) != sbStateClean {
		return nil, -defs.EINVAL
	}
	sb := &Superblock{
		raw:            raw,
		InodesCount:    r32(raw, sbInodesCount),
		BlocksCount:    r32(raw, sbBlocksCount),
		FirstDataBlock: r32(raw, sbFirstDataBlock),
		LogBlockSize:   r32(raw, sbLogBlockSize),
		BlocksPerGroup: r32(raw, sbBlocksPerGroup),
		InodesPerGroup: r32(raw, sbInodesPerGroup),
		RevLevel:       r32(raw, sbRevLevel),
		InodeSize:      uint16(inoDefaultSize),
	}
	if sb.RevLevel >= 1 {
		sb.InodeSize = r16(raw, sbInodeSize)
		sb.FeatureIncompat = r32(raw, sbFeatureIncompat)
		sb.FeatureROCompat = r32(raw, sbFeatureROCompat)
	}
	if sb.FeatureIncompat&^IncompatFiletype != 0 {
		// An incompatible feature bit this driver doesn't recognise:
		// mounting would risk misinterpreting on-disk structures.
		return nil, -defs.EINVAL
	}
	// Read-only-compat feature bits are not checked: the mount proceeds
	// whatever they hold, and nothing is logged about them.
	return sb, 0
}

// IncMountCount increments the on-disk mount counter (spec.md §4.10: "on
// mount: ... increment the on-disk mount count"). This is one of the
// driver's best-effort metadata writes; the caller is responsible for
// flushing sb.raw back through the block device.
func (sb *Superblock) IncMountCount() {
	cur := r16(sb.raw, 52)
	util.WriteU16LE(sb.raw, 52, cur+1)
}
