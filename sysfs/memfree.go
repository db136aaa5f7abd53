package sysfs

import (
	"fmt"

	"kernix/defs"
	"kernix/mem"
	"kernix/mem/pmm"
	"kernix/stat"
)

// staticTextRead returns a Read callback that (re)formats gen() on every
// call and serves the requested window of it, the common shape every
// read-only introspection entry in this file shares (spec.md §6:
// "/sys/memfree — reads return <total-bytes> <free-bytes>\n").
func staticTextRead(gen func() string) func(off int, dst []uint8) (int, defs.Err_t) {
	return func(off int, dst []uint8) (int, defs.Err_t) {
		text := gen()
		if off >= len(text) {
			return 0, 0
		}
		n := copy(dst, text[off:])
		return n, 0
	}
}

// NewMemfree builds the /sys/memfree entry (spec.md §6): reads return
// "<total-bytes> <free-bytes>\n".
func NewMemfree(fa *pmm.FrameAllocator) *Entry {
	return &Entry{
		Mode: stat.IFREG | 0444,
		Read: staticTextRead(func() string {
			total := fa.TotalCount() * mem.PGSIZE
			free := fa.FreeCount() * mem.PGSIZE
			return fmt.Sprintf("%d %d\n", total, free)
		}),
	}
}
