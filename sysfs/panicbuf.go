package sysfs

import (
	"sync"

	"kernix/defs"
	"kernix/stat"
)

// PanicBuf holds the raw sample/backtrace buffer the panic handler writes
// before halting (SPEC_FULL.md §2: "the panic handler writes a raw
// sample/backtrace buffer to a sysfs /sys/panicbuf entry"; cmd/ksymbolize
// reads it back post-mortem from a dumped image). A fixed-size buffer
// avoids any allocation on the panic path, which must not itself risk
// failing.
type PanicBuf struct {
	mu  sync.Mutex
	buf []uint8
	len int
}

// NewPanicBuf allocates a buffer of the given capacity.
func NewPanicBuf(capacity int) *PanicBuf {
	return &PanicBuf{buf: make([]uint8, capacity)}
}

// Record overwrites the buffer with sample, truncated to capacity. Called
// from the panic path (spec.md §7.4): must not allocate or fail.
func (p *PanicBuf) Record(sample []uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.len = copy(p.buf, sample)
}

// Entry builds the /sys/panicbuf synthetic file backed by p.
func (p *PanicBuf) Entry() *Entry {
	return &Entry{
		Mode: stat.IFREG | 0400,
		Read: func(off int, dst []uint8) (int, defs.Err_t) {
			p.mu.Lock()
			defer p.mu.Unlock()
			if off >= p.len {
				return 0, 0
			}
			n := copy(dst, p.buf[off:p.len])
			return n, 0
		},
		Write: func(off int, src []uint8) (int, defs.Err_t) {
			p.mu.Lock()
			defer p.mu.Unlock()
			n := copy(p.buf[off:], src)
			if off+n > p.len {
				p.len = off + n
			}
			return n, 0
		},
	}
}
