package irq

import (
	"fmt"
	"sync"

	"kernix/stats"
)

// NumVectors is the IDT size (spec.md §4.5: "256-entry interrupt descriptor
// table").
const NumVectors = 256

// PICRemapBase is the vector the master PIC's IRQ0 is remapped to; legacy
// 8259 PICs default to a range that collides with CPU exceptions 0-31, so
// every x86 kernel remaps them, conventionally here (spec.md §4.5).
const PICRemapBase = 32

// SyscallVector is the software-interrupt gate user code issues `int` on
// (spec.md §5.1).
const SyscallVector = 0x80

// slaveBase is the first vector routed through the slave 8259, which needs
// its own EOI issued before the master's.
const slaveBase = PICRemapBase + 8

// Handler processes one interrupt; errcode is the CPU-pushed error code for
// exceptions that have one (0 otherwise).
type Handler func(vector int, errcode uintptr)

// EOISender issues end-of-interrupt signaling for a hardware IRQ vector;
// Dispatcher calls it after every handler invocation in the PIC-routed
// range so interrupts of the same or lower priority can resume.
type EOISender interface {
	SendEOI(vector int)
}

// Dispatcher is the table the boot sequence installs as the IDT's backing
// store (vector -> Handler), plus EOI signaling and a re-entry guard.
type Dispatcher struct {
	mu        sync.Mutex
	handlers  [NumVectors]Handler
	inHandler [NumVectors]bool
	pic       EOISender
	counts    [NumVectors]stats.Counter_t
}

// Counts returns the number of times each vector has been dispatched,
// feeding sysfs's /sys/irqcounts entry.
func (d *Dispatcher) Counts() [NumVectors]int64 {
	var out [NumVectors]int64
	for i := range d.counts {
		out[i] = d.counts[i].Get()
	}
	return out
}

// NewDispatcher creates an empty dispatch table; pic may be nil in tests
// that don't care about EOI signaling.
func NewDispatcher(pic EOISender) *Dispatcher {
	return &Dispatcher{pic: pic}
}

// Register installs h as the handler for vector, replacing any previous
// one; registering a nil handler removes it.
func (d *Dispatcher) Register(vector int, h Handler) {
	if vector < 0 || vector >= NumVectors {
		panic("irq: vector out of range")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[vector] = h
}

// Dispatch runs the handler registered for vector, passing errcode through,
// and signals EOI for any vector in the PIC-routed IRQ range once the
// handler returns. A CPU exception (vector < PICRemapBase) with no
// registered handler panics, naming the exception, since there is no
// userspace SIGSEGV-equivalent delivery path to fall back to for an
// exception nothing claimed; an unclaimed IRQ is just acknowledged and
// dropped. Re-entering the same vector before its prior dispatch has
// returned panics: this kernel's interrupt handlers run with interrupts
// disabled on the single core spec.md §1 targets, so genuine re-entry
// means a handler itself re-enabled interrupts (or called back into
// dispatch) and is a bug, not a condition to recover from silently.
func (d *Dispatcher) Dispatch(vector int, errcode uintptr) {
	if vector < 0 || vector >= NumVectors {
		panic("irq: vector out of range")
	}
	d.mu.Lock()
	if d.inHandler[vector] {
		d.mu.Unlock()
		panic(fmt.Sprintf("irq: re-entrant dispatch of vector %d", vector))
	}
	d.inHandler[vector] = true
	h := d.handlers[vector]
	d.mu.Unlock()
	d.counts[vector].Inc()

	if h != nil {
		h(vector, errcode)
	} else if vector < PICRemapBase {
		panic(fmt.Sprintf("unhandled exception %d (%s), errcode=%#x", vector, ExceptionName(vector), errcode))
	}

	if d.pic != nil && vector >= PICRemapBase && vector < PICRemapBase+16 {
		d.pic.SendEOI(vector)
	}

	d.mu.Lock()
	d.inHandler[vector] = false
	d.mu.Unlock()
}
