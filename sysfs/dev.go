package sysfs

import (
	"sync"

	"kernix/defs"
	"kernix/hal"
	"kernix/stat"
	"kernix/vfs"
)

// NewNull builds /dev/null: reads return EOF immediately, writes discard
// everything and report full-length success (spec.md §6 device list).
func NewNull() *Entry {
	return &Entry{
		Mode: stat.IFCHR | 0666,
		Read: func(off int, dst []uint8) (int, defs.Err_t) { return 0, 0 },
		Write: func(off int, src []uint8) (int, defs.Err_t) {
			return len(src), 0
		},
	}
}

// NewZero builds /dev/zero: reads fill the caller's buffer with zero
// bytes; writes discard everything (spec.md §6 device list).
func NewZero() *Entry {
	return &Entry{
		Mode: stat.IFCHR | 0666,
		Read: func(off int, dst []uint8) (int, defs.Err_t) {
			for i := range dst {
				dst[i] = 0
			}
			return len(dst), 0
		},
		Write: func(off int, src []uint8) (int, defs.Err_t) {
			return len(src), 0
		},
	}
}

// Console is an input/output byte stream backing /dev/tty* (spec.md §6:
// "consoles; reads block until input available"). Its Read never blocks:
// with no input pending it returns EAGAIN, which sysRead hands back
// unchanged; package syscall does not park or retry the task, so blocking
// is left to whatever drives task execution. The shape is the same
// buffered, ready-bit-exposing one vfs's pipe uses.
type Console struct {
	mu sync.Mutex
	in []uint8 // bytes typed by input hardware, not yet delivered
}

// NewConsole constructs an empty console with no pending input.
func NewConsole() *Console { return &Console{} }

// Feed is called by the keyboard/serial-input driver to deliver newly
// typed bytes into the console's pending-input buffer.
func (c *Console) Feed(b []uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.in = append(c.in, b...)
}

// Entry builds the /dev/tty* synthetic file backed by c. Read is
// non-blocking (returns 0, EAGAIN when no input is pending); the syscall
// layer passes that EAGAIN through to its caller.
func (c *Console) Entry() *Entry {
	return &Entry{
		Mode: stat.IFCHR | 0620,
		Read: func(off int, dst []uint8) (int, defs.Err_t) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if len(c.in) == 0 {
				return 0, -defs.EAGAIN
			}
			n := copy(dst, c.in)
			c.in = c.in[n:]
			return n, 0
		},
		Write: func(off int, src []uint8) (int, defs.Err_t) {
			return len(src), 0
		},
		Poll: func(pm vfs.Pollmsg_t) (vfs.Ready_t, defs.Err_t) {
			c.mu.Lock()
			defer c.mu.Unlock()
			ready := vfs.Ready_t(0)
			if len(c.in) > 0 {
				ready |= vfs.ReadyRead
			}
			ready |= vfs.ReadyWrite
			return ready & pm.Events, 0
		},
	}
}

// NewIde builds a /dev/ideN entry over a detected disk (spec.md §6:
// "/dev/ide1, /dev/ide2, ... — raw block access to detected disks"). off
// is interpreted as a byte offset, translated to a block number; reads
// and writes are rounded to whole blocks.
func NewIde(dev hal.BlockDevice) *Entry {
	bs := dev.BlockSize()
	return &Entry{
		Mode: stat.IFCHR | 0600,
		Read: func(off int, dst []uint8) (int, defs.Err_t) {
			blockno := off / bs
			buf := make([]uint8, bs)
			if err := dev.ReadBlock(blockno, buf); err != nil {
				return 0, -defs.EINVAL
			}
			inBlock := off % bs
			n := copy(dst, buf[inBlock:])
			return n, 0
		},
		Write: func(off int, src []uint8) (int, defs.Err_t) {
			blockno := off / bs
			buf := make([]uint8, bs)
			if off%bs != 0 || len(src) < bs {
				if err := dev.ReadBlock(blockno, buf); err != nil {
					return 0, -defs.EINVAL
				}
			}
			inBlock := off % bs
			n := copy(buf[inBlock:], src)
			if err := dev.WriteBlock(blockno, buf); err != nil {
				return 0, -defs.EINVAL
			}
			return n, 0
		},
	}
}
