package ext2

import (
	"bytes"
	"testing"

	"kernix/defs"
	"kernix/ustr"
	"kernix/util"
)

// memDisk is an in-memory io.ReaderAt/io.WriterAt, grounded on the
// teacher's ufs test harness pattern of backing a filesystem under test
// with a plain byte-addressable store rather than real hardware.
type memDisk struct {
	data []uint8
}

func (d *memDisk) ReadAt(p []uint8, off int64) (int, error) {
	n := copy(p, d.data[off:])
	return n, nil
}

func (d *memDisk) WriteAt(p []uint8, off int64) (int, error) {
	n := copy(d.data[off:], p)
	return n, nil
}

// buildImage hand-constructs a minimal 1 KiB-block ext2 volume with:
//
//	/              (inode 2, root dir)
//	/etc           (inode 11, dir)
//	/etc/hostname            (inode 12, regular, content "host")
//	/etc/symlink-to-hostname (inode 13, symlink -> "hostname", inline)
//
// matching spec.md §8 scenario 4's exact claim that both paths read back
// as "host".
func buildImage(t *testing.T) *memDisk {
	t.Helper()
	const bs = 1024
	const nblocks = 32
	img := make([]uint8, nblocks*bs)

	// Superblock at byte 1024.
	sb := make([]uint8, sbSize)
	util.WriteU32LE(sb, sbInodesCount, 16)
	util.WriteU32LE(sb, sbBlocksCount, nblocks)
	util.WriteU32LE(sb, sbFirstDataBlock, 1)
	util.WriteU32LE(sb, sbLogBlockSize, 0) // 1024 << 0 == 1024
	util.WriteU32LE(sb, sbBlocksPerGroup, nblocks)
	util.WriteU32LE(sb, sbInodesPerGroup, 16)
	util.WriteU16LE(sb, sbMagic, Ext2Magic)
	util.WriteU16LE(sb, sbState, sbStateClean)
	util.WriteU32LE(sb, sbRevLevel, 1)
	util.WriteU16LE(sb, sbInodeSize, inoDefaultSize)
	copy(img[1024:], sb)

	// Blockgroup descriptor table: block 2 (FirstDataBlock+1).
	// Layout: block 3 = block bitmap, block 4 = inode bitmap,
	// block 5.. = inode table, block 10.. = data blocks.
	const inodeTableBlock = 5
	const rootDataBlock = 10
	const etcDataBlock = 11
	const hostnameDataBlock = 12

	bg := make([]uint8, bgEntrySize)
	util.WriteU32LE(bg, bgBlockBitmap, 3)
	util.WriteU32LE(bg, bgInodeBitmap, 4)
	util.WriteU32LE(bg, bgInodeTable, inodeTableBlock)
	copy(img[2*bs:], bg)

	writeInode := func(inum uint32, mode uint16, size uint32, blocks [15]uint32) {
		off := inodeTableBlock*bs + int(inum-1)*inoDefaultSize
		util.WriteU16LE(img[off:], inoMode, mode)
		util.WriteU32LE(img[off:], inoSize, size)
		util.WriteU16LE(img[off:], inoLinksCount, 1)
		for i := 0; i < 15; i++ {
			util.WriteU32LE(img[off:], inoBlock+4*i, blocks[i])
		}
	}

	// writeDirent packs one dirent at off and returns the offset the next
	// entry should start at, plus off itself so the caller can widen the
	// last entry's rec_len into a block terminator afterward.
	writeDirent := func(buf []uint8, off int, inum uint32, ftype uint8, name string) (next, start int) {
		util.WriteU32LE(buf, off+deInode, inum)
		recLen := deNameOff + len(name)
		recLen = (recLen + 3) &^ 3 // 4-byte align, matching real ext2 packing
		util.WriteU16LE(buf, off+deRecLen, uint16(recLen))
		buf[off+deNameLen] = uint8(len(name))
		buf[off+deFType] = ftype
		copy(buf[off+deNameOff:], name)
		return off + recLen, off
	}
	// widenTerminator stretches the entry starting at start so its
	// rec_len reaches the block boundary, the standard ext2 convention
	// for "no more entries in this block".
	widenTerminator := func(buf []uint8, start int) {
		util.WriteU16LE(buf, start+deRecLen, uint16(bs-start))
	}

	// root dir (inode 2): "." "etc"
	rootBlock := make([]uint8, bs)
	o, _ := writeDirent(rootBlock, 0, rootInode, 2, ".")
	_, lastStart := writeDirent(rootBlock, o, 11, 2, "etc")
	widenTerminator(rootBlock, lastStart)
	copy(img[rootDataBlock*bs:], rootBlock)

	var rootBlocks [15]uint32
	rootBlocks[0] = rootDataBlock
	writeInode(rootInode, 0040755, uint32(len(".")+len("etc")+16), rootBlocks)

	// /etc (inode 11): "hostname" "symlink-to-hostname"
	etcBlock := make([]uint8, bs)
	o, _ = writeDirent(etcBlock, 0, 12, 1, "hostname")
	_, lastStart2 := writeDirent(etcBlock, o, 13, 7, "symlink-to-hostname")
	widenTerminator(etcBlock, lastStart2)
	copy(img[etcDataBlock*bs:], etcBlock)

	var etcBlocks [15]uint32
	etcBlocks[0] = etcDataBlock
	writeInode(11, 0040755, uint32(len("hostname")+len("symlink-to-hostname")+32), etcBlocks)

	// /etc/hostname (inode 12): regular file, content "host"
	content := []byte("host")
	hostBlock := make([]uint8, bs)
	copy(hostBlock, content)
	copy(img[hostnameDataBlock*bs:], hostBlock)
	var hostBlocks [15]uint32
	hostBlocks[0] = hostnameDataBlock
	writeInode(12, 0100644, uint32(len(content)), hostBlocks)

	// /etc/symlink-to-hostname (inode 13): inline symlink target "hostname"
	var linkBlocks [15]uint32
	target := []byte("hostname")
	linkBuf := make([]uint8, 15*4)
	copy(linkBuf, target)
	for i := 0; i < 15; i++ {
		linkBlocks[i] = util.ReadU32LE(linkBuf, i*4)
	}
	writeInode(13, 0120777, uint32(len(target)), linkBlocks)

	return &memDisk{data: img}
}

func TestMountAndReadFile(t *testing.T) {
	disk := buildImage(t)
	fs, err := Mount(disk, disk)
	if err != 0 {
		t.Fatalf("mount: %d", err)
	}
	in, err := fs.resolve(ustr.Ustr("/etc/hostname"))
	if err != 0 {
		t.Fatalf("resolve: %d", err)
	}
	buf := make([]uint8, 16)
	n, err := fs.ReadFile(in, 0, buf)
	if err != 0 {
		t.Fatalf("read: %d", err)
	}
	if !bytes.Equal(buf[:n], []byte("host")) {
		t.Fatalf("got %q, want %q", buf[:n], "host")
	}
}

// TestSymlinkResolvesToSameContent exercises spec.md §8 scenario 4: both
// the direct path and the symlink read back as the identical bytes.
func TestSymlinkResolvesToSameContent(t *testing.T) {
	disk := buildImage(t)
	fs, err := Mount(disk, disk)
	if err != 0 {
		t.Fatalf("mount: %d", err)
	}
	direct, err := fs.resolve(ustr.Ustr("/etc/hostname"))
	if err != 0 {
		t.Fatalf("resolve direct: %d", err)
	}
	viaLink, err := fs.resolve(ustr.Ustr("/etc/symlink-to-hostname"))
	if err != 0 {
		t.Fatalf("resolve symlink: %d", err)
	}
	if direct.Num != viaLink.Num {
		t.Fatalf("symlink resolved to different inode: %d vs %d", direct.Num, viaLink.Num)
	}
	buf := make([]uint8, 8)
	n, rerr := fs.ReadFile(viaLink, 0, buf)
	if rerr != 0 {
		t.Fatalf("read via link: %d", rerr)
	}
	if string(buf[:n]) != "host" {
		t.Fatalf("got %q", buf[:n])
	}
}

// TestReadIdempotence exercises spec.md §8's "ext2 read idempotence":
// repeated reads at the same offset return identical bytes, and reading
// sequentially in two chunks matches one read from zero.
func TestReadIdempotence(t *testing.T) {
	disk := buildImage(t)
	fs, _ := Mount(disk, disk)
	in, err := fs.resolve(ustr.Ustr("/etc/hostname"))
	if err != 0 {
		t.Fatalf("resolve: %d", err)
	}
	a := make([]uint8, 4)
	b := make([]uint8, 4)
	fs.ReadFile(in, 0, a)
	fs.ReadFile(in, 0, b)
	if !bytes.Equal(a, b) {
		t.Fatalf("non-idempotent read: %q vs %q", a, b)
	}
	whole := make([]uint8, 4)
	fs.ReadFile(in, 0, whole)
	part1 := make([]uint8, 2)
	part2 := make([]uint8, 2)
	fs.ReadFile(in, 0, part1)
	fs.ReadFile(in, 2, part2)
	if !bytes.Equal(whole, append(append([]uint8{}, part1...), part2...)) {
		t.Fatalf("split read mismatch: whole=%q parts=%q%q", whole, part1, part2)
	}
}

func TestGetdentsListsDirectory(t *testing.T) {
	disk := buildImage(t)
	fs, _ := Mount(disk, disk)
	ents, err := fs.Getdents(ustr.Ustr("/etc"))
	if err != 0 {
		t.Fatalf("getdents: %d", err)
	}
	names := map[string]bool{}
	for _, e := range ents {
		names[e.Name.String()] = true
	}
	if !names["hostname"] || !names["symlink-to-hostname"] {
		t.Fatalf("missing expected entries: %v", ents)
	}
}

func TestOpenDirectoryFails(t *testing.T) {
	disk := buildImage(t)
	fs, _ := Mount(disk, disk)
	_, err := fs.Open(ustr.Ustr("/etc"), defs.O_RDONLY, 0)
	if err != -defs.EISDIR {
		t.Fatalf("got err %d, want EISDIR", err)
	}
}

func TestUnlinkRemovesEntry(t *testing.T) {
	disk := buildImage(t)
	fs, _ := Mount(disk, disk)
	if err := fs.Unlink(ustr.Ustr("/etc/hostname")); err != 0 {
		t.Fatalf("unlink: %d", err)
	}
	if _, err := fs.resolve(ustr.Ustr("/etc/hostname")); err != -defs.ENOENT {
		t.Fatalf("expected ENOENT after unlink, got %d", err)
	}
}

func TestMountRejectsBadMagic(t *testing.T) {
	disk := buildImage(t)
	util.WriteU16LE(disk.data[1024:], sbMagic, 0)
	if _, err := Mount(disk, disk); err == 0 {
		t.Fatalf("expected mount failure on bad magic")
	}
}

func TestMountRejectsUnknownIncompatFeature(t *testing.T) {
	disk := buildImage(t)
	util.WriteU32LE(disk.data[1024:], sbFeatureIncompat, 0x40) // unknown bit
	if _, err := Mount(disk, disk); err == 0 {
		t.Fatalf("expected mount failure on unrecognised incompat feature")
	}
}
