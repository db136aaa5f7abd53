// Package hal is the boundary named in spec.md §1: it consumes a tick
// source, raw block I/O, a framebuffer descriptor, serial output, and a
// multiboot memory map from external drivers/bootloader, and exposes
// interrupt-handler registration, heap allocation, VFS registration, and
// synthetic-file addition back to them.
package hal

import "kernix/util"

// MultibootMagic is the value the bootloader must leave in EAX.
const MultibootMagic uint32 = 0x2BADB002

// MinTotalBytes is the boot-time floor spec.md §6 requires ("aborts ... if
// less than 60 MiB total is reported").
const MinTotalBytes = 60 * 1024 * 1024

// MmapEntryType enumerates multiboot memory map region types.
type MmapEntryType uint32

const (
	MmapAvailable MmapEntryType = 1
	MmapReserved  MmapEntryType = 2
	MmapACPI      MmapEntryType = 3
	MmapNVS       MmapEntryType = 4
	MmapBad       MmapEntryType = 5
)

// MmapEntry describes one typed physical memory range.
type MmapEntry struct {
	Base   uint64
	Length uint64
	Type   MmapEntryType
}

// MultibootInfo is the parsed subset of the multiboot information record
// the kernel needs.
type MultibootInfo struct {
	Flags      uint32
	LowerKB    uint32
	UpperKB    uint32
	Mmap       []MmapEntry
	FramebufAddr   uint64
	FramebufWidth  uint32
	FramebufHeight uint32
	FramebufPitch  uint32
	FramebufBpp    uint8
}

const (
	flagMem    = 1 << 0
	flagMmap   = 1 << 6
	flagFbuf   = 1 << 12
)

// TotalBytes reports the total physical memory the map implies.
func (mi *MultibootInfo) TotalBytes() uint64 {
	var top uint64
	for _, e := range mi.Mmap {
		if e.Type == MmapAvailable {
			end := e.Base + e.Length
			if end > top {
				top = end
			}
		}
	}
	if top == 0 {
		top = uint64(mi.LowerKB+mi.UpperKB) * 1024
	}
	return top
}

// ErrBadMagic, ErrNoMmap, and ErrTooSmall are the three boot-abort
// conditions spec.md §6 names.
type BootError string

func (e BootError) Error() string { return string(e) }

const (
	ErrBadMagic  BootError = "multiboot: bad magic"
	ErrNoMmap    BootError = "multiboot: memory map missing"
	ErrTooSmall  BootError = "multiboot: less than 60MiB reported"
)

// ParseMultiboot validates magic and decodes the multiboot information
// structure out of raw, which is the byte image of the structure as the
// bootloader left it (see struct layout in the Multiboot Specification
// v0.6.96, table "multiboot_info").
func ParseMultiboot(magic uint32, raw []uint8) (*MultibootInfo, error) {
	if magic != MultibootMagic {
		return nil, ErrBadMagic
	}
	if len(raw) < 8 {
		return nil, ErrNoMmap
	}
	mi := &MultibootInfo{}
	mi.Flags = util.ReadU32LE(raw, 0)
	if mi.Flags&flagMem != 0 {
		mi.LowerKB = util.ReadU32LE(raw, 4)
		mi.UpperKB = util.ReadU32LE(raw, 8)
	}
	if mi.Flags&flagMmap == 0 {
		return nil, ErrNoMmap
	}
	mmapLen := util.ReadU32LE(raw, 44)
	mmapAddrOff := util.ReadU32LE(raw, 48) // offset into raw of first entry, test-harness convention
	off := int(mmapAddrOff)
	end := off + int(mmapLen)
	for off < end && off+4 <= len(raw) {
		entrySize := util.ReadU32LE(raw, off)
		if entrySize == 0 || off+4+int(entrySize) > len(raw) {
			break
		}
		base := util.ReadU64LE(raw, off+4)
		length := util.ReadU64LE(raw, off+12)
		typ := MmapEntryType(util.ReadU32LE(raw, off+20))
		mi.Mmap = append(mi.Mmap, MmapEntry{Base: base, Length: length, Type: typ})
		off += 4 + int(entrySize)
	}
	if mi.Flags&flagFbuf != 0 && len(raw) >= 88 {
		mi.FramebufAddr = util.ReadU64LE(raw, 60)
		mi.FramebufPitch = util.ReadU32LE(raw, 68)
		mi.FramebufWidth = util.ReadU32LE(raw, 72)
		mi.FramebufHeight = util.ReadU32LE(raw, 76)
		mi.FramebufBpp = raw[80]
	}
	if mi.TotalBytes() < MinTotalBytes {
		return nil, ErrTooSmall
	}
	return mi, nil
}
