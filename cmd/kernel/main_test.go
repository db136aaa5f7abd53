package main

import (
	"testing"

	"kernix/ext2"
	"kernix/hal"
	"kernix/ustr"
)

// memDisk is a fake hal.BlockDevice backed by a plain byte slice, standing
// in for a real IDE/AHCI driver in this hosted test.
type memDisk struct {
	bs   int
	data []byte
}

func newMemDisk(blocks int, bs int) *memDisk {
	return &memDisk{bs: bs, data: make([]byte, blocks*bs)}
}

func (d *memDisk) ReadBlock(blockno int, dst []uint8) error {
	off := blockno * d.bs
	copy(dst, d.data[off:off+d.bs])
	return nil
}

func (d *memDisk) WriteBlock(blockno int, src []uint8) error {
	off := blockno * d.bs
	copy(d.data[off:off+d.bs], src)
	return nil
}

func (d *memDisk) BlockSize() int { return d.bs }

var _ hal.BlockDevice = (*memDisk)(nil)

// nullSerial discards everything written to it; Boot only needs a sink to
// construct klog.New against.
type nullSerial struct{}

func (nullSerial) WriteByte(b byte) error { return nil }

// buildInitImage hand-assembles a minimal ELF32/EM_386/ET_EXEC image with
// one PT_LOAD segment, the same shape elf/load_test.go's buildImage uses.
func buildInitImage(vaddr uint32, code []byte) []byte {
	const ehsize = 52
	const phsize = 32
	buf := make([]byte, ehsize+phsize+len(code))

	copy(buf[0:4], "\x7fELF")
	buf[4] = 1 // ELFCLASS32
	buf[5] = 1 // ELFDATA2LSB
	buf[6] = 1 // EV_CURRENT
	le16 := func(off int, v uint16) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
	}
	le32 := func(off int, v uint32) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}
	le16(16, 2) // ET_EXEC
	le16(18, 3) // EM_386
	le32(20, 1) // e_version
	le32(24, vaddr)
	le32(28, ehsize) // e_phoff
	le16(40, ehsize) // e_ehsize
	le16(42, phsize) // e_phentsize
	le16(44, 1)      // e_phnum

	ph := buf[ehsize:]
	phle32 := func(off int, v uint32) {
		ph[off] = byte(v)
		ph[off+1] = byte(v >> 8)
		ph[off+2] = byte(v >> 16)
		ph[off+3] = byte(v >> 24)
	}
	phle32(0, 1)                     // PT_LOAD
	phle32(4, ehsize+phsize)         // p_offset
	phle32(8, vaddr)                 // p_vaddr
	phle32(12, vaddr)                // p_paddr
	phle32(16, uint32(len(code)))    // p_filesz
	phle32(20, uint32(len(code)))    // p_memsz
	phle32(24, 5)                    // PF_R|PF_X
	phle32(28, 4096)                 // p_align

	copy(buf[ehsize+phsize:], code)
	return buf
}

// buildMultiboot hand-assembles a raw multiboot info record per the byte
// layout hal.ParseMultiboot decodes: flags at 0, a single MmapAvailable
// entry describing totalBytes of RAM starting at physical 0.
func buildMultiboot(totalBytes uint64) []byte {
	const flagMem = 1 << 0
	const flagMmap = 1 << 6
	raw := make([]byte, 52+24)
	put32 := func(off int, v uint32) {
		raw[off] = byte(v)
		raw[off+1] = byte(v >> 8)
		raw[off+2] = byte(v >> 16)
		raw[off+3] = byte(v >> 24)
	}
	put64 := func(off int, v uint64) {
		for i := 0; i < 8; i++ {
			raw[off+i] = byte(v >> (8 * uint(i)))
		}
	}
	put32(0, flagMem|flagMmap)
	put32(4, 0) // lowerKB, unused: mmap supplies TotalBytes
	put32(8, 0) // upperKB
	put32(44, 24) // mmapLen: one 24-byte entry
	put32(48, 52) // mmapAddrOff: entries start right after the fixed header
	put32(52, 20) // entrySize (base+length+type, not counting itself)
	put64(56, 0)  // base
	put64(64, totalBytes)
	put32(72, 1) // type: MmapAvailable
	return raw
}

func buildRootDisk(t *testing.T, initImage []byte) *memDisk {
	t.Helper()
	const bs = ext2.BSIZE1K
	const blocks = 4096
	disk := newMemDisk(blocks, bs)

	entries := []ext2.FormatEntry{
		{Name: ustr.Ustr("init"), Mode: 0o100755, Data: initImage},
	}
	if ferr := ext2.Format(diskReader{disk}, blocks, entries); ferr != 0 {
		t.Fatalf("formatting root disk: errno %d", ferr)
	}
	return disk
}

func TestBootLoadsAndEnqueuesInit(t *testing.T) {
	const vaddr = 0x08048000
	code := []byte{0x90, 0x90, 0x90, 0x90}
	initImage := buildInitImage(vaddr, code)
	disk := buildRootDisk(t, initImage)

	const totalBytes = 64 * 1024 * 1024
	cfg := Config{
		MultibootMagic: hal.MultibootMagic,
		MultibootRaw:   buildMultiboot(totalBytes),
		Serial:         nullSerial{},
		RootDisk:       disk,
		InitPath:       "/init",
		InitArgv:       []string{"/init"},
	}

	k, err := Boot(cfg)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if k.Init == nil {
		t.Fatalf("no init task produced")
	}
	if k.Init.EntryPoint != vaddr {
		t.Fatalf("init entry = %#x, want %#x", k.Init.EntryPoint, uint32(vaddr))
	}
	if _, ok := k.Sched.Lookup(k.Init.Pid); !ok {
		t.Fatalf("init pid %d not found in scheduler", k.Init.Pid)
	}

	for _, path := range []string{
		"/sys/memfree", "/sys/irqcounts", "/sys/kmsg", "/sys/panicbuf", "/sys/syscounts",
		"/dev/null", "/dev/zero", "/dev/tty0", "/dev/ide0",
	} {
		if _, _, rerr := k.NS.Resolve(ustr.Ustr(path)); rerr != 0 {
			t.Fatalf("resolving %s: errno %d", path, rerr)
		}
	}
}

func TestBootRejectsTooSmallMemory(t *testing.T) {
	initImage := buildInitImage(0x08048000, []byte{0x90})
	disk := buildRootDisk(t, initImage)

	cfg := Config{
		MultibootMagic: hal.MultibootMagic,
		MultibootRaw:   buildMultiboot(16 * 1024 * 1024), // below hal.MinTotalBytes
		Serial:         nullSerial{},
		RootDisk:       disk,
		InitPath:       "/init",
	}

	if _, err := Boot(cfg); err == nil {
		t.Fatalf("expected an error for a too-small memory report")
	}
}
