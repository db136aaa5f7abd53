// Command mkfs builds a bootable ext2 image from a skeleton directory: an
// init binary plus whatever else the root filesystem needs at boot.
// It is a hosted build-time tool, not part of the freestanding kernel.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"

	"kernix/ext2"
	"kernix/ustr"
)

// blocksFor sizes the image in BSIZE1K blocks, rounding up to the next
// block and padding generously for metadata overhead so a handful of
// skeleton files always fit.
func blocksFor(totalDataBytes int) uint32 {
	const overheadBlocks = 32
	dataBlocks := (totalDataBytes + ext2.BSIZE1K - 1) / ext2.BSIZE1K
	return uint32(overheadBlocks + dataBlocks)
}

// readSkeleton walks skeldir (one level: mkfs builds flat root
// filesystems, spec.md's synthetic init image has no need for
// subdirectories) and returns its files sorted by name, for deterministic
// image output.
func readSkeleton(skeldir string) ([]ext2.FormatEntry, error) {
	dirents, err := os.ReadDir(skeldir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, d := range dirents {
		if !d.IsDir() {
			names = append(names, d.Name())
		}
	}
	sort.Strings(names)

	var entries []ext2.FormatEntry
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(skeldir, name))
		if err != nil {
			return nil, err
		}
		mode := uint16(0o100644)
		if len(data) >= 4 && string(data[:4]) == "\x7fELF" { // ELF magic: mark executable
			mode = 0o100755
		}
		entries = append(entries, ext2.FormatEntry{
			Name: ustr.Ustr(name),
			Mode: mode,
			Data: data,
		})
	}
	return entries, nil
}

func main() {
	if len(os.Args) != 3 {
		fmt.Printf("usage: %s <skeleton dir> <output image>\n", os.Args[0])
		os.Exit(1)
	}
	skeldir, outpath := os.Args[1], os.Args[2]

	entries, err := readSkeleton(skeldir)
	if err != nil {
		fmt.Printf("reading skeleton: %v\n", err)
		os.Exit(1)
	}

	total := 0
	for _, e := range entries {
		total += len(e.Data)
	}
	nblocks := blocksFor(total)
	size := int64(nblocks) * ext2.BSIZE1K

	f, err := os.Create(outpath)
	if err != nil {
		fmt.Printf("creating image: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	// Preallocate the backing file like a real mkfs sizing a block device,
	// rather than letting writes punch a sparse hole wherever they land.
	if err := unix.Fallocate(int(f.Fd()), 0, 0, size); err != nil {
		fmt.Printf("fallocate: %v\n", err)
		os.Exit(1)
	}

	var fsstat unix.Statfs_t
	if err := unix.Fstatfs(int(f.Fd()), &fsstat); err == nil && int64(fsstat.Bfree)*int64(fsstat.Bsize) < size {
		fmt.Printf("warning: host filesystem free space (%d bytes) may be tight for a %d byte image\n",
			int64(fsstat.Bfree)*int64(fsstat.Bsize), size)
	}

	if ferr := ext2.Format(f, nblocks, entries); ferr != 0 {
		fmt.Printf("formatting image: errno %d\n", ferr)
		os.Exit(1)
	}

	fmt.Printf("wrote %s: %d blocks, %d files\n", outpath, nblocks, len(entries))
}
