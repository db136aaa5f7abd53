package sysfs

import (
	"fmt"
	"strings"

	"kernix/irq"
	"kernix/stat"
)

// NewIrqCounts builds /sys/irqcounts (SPEC_FULL.md supplemental feature,
// §3: "per-vector IRQ counts ... exposed through /sys/irqcounts"): one
// "<vector> <count>\n" line per vector that has ever been dispatched.
func NewIrqCounts(d *irq.Dispatcher) *Entry {
	return &Entry{
		Mode: stat.IFREG | 0444,
		Read: staticTextRead(func() string {
			counts := d.Counts()
			var b strings.Builder
			for v, c := range counts {
				if c > 0 {
					fmt.Fprintf(&b, "%d %d\n", v, c)
				}
			}
			return b.String()
		}),
	}
}

// SyscallCounter is the minimal surface /sys/syscounts needs from package
// syscall's dispatch table, avoiding a sysfs -> syscall import (syscall
// already depends on vfs, which sysfs's mount-point registration sits
// alongside; keeping this one-way prevents a cycle).
type SyscallCounter interface {
	Counts() map[int]int64
}

// NewSyscallCounts builds /sys/syscounts (SPEC_FULL.md supplemental
// feature, §3: "syscall counts ... exposed through ... /sys/syscounts").
func NewSyscallCounts(c SyscallCounter) *Entry {
	return &Entry{
		Mode: stat.IFREG | 0444,
		Read: staticTextRead(func() string {
			var b strings.Builder
			for no, n := range c.Counts() {
				if n > 0 {
					fmt.Fprintf(&b, "%d %d\n", no, n)
				}
			}
			return b.String()
		}),
	}
}
