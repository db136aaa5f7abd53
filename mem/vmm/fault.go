package vmm

import (
	"kernix/defs"
	"kernix/mem"
)

// FaultOutcome tells the caller (the syscall/interrupt dispatch path, which
// owns task termination) what happened.
type FaultOutcome int

const (
	// FaultResolved means the page is now present and the faulting
	// instruction can simply be retried.
	FaultResolved FaultOutcome = iota
	// FaultSegv means va has no backing range at all, or the access
	// violated the range's protection (e.g. a write into RangeFixed
	// read-only text); the caller must terminate the task (spec.md §4.2
	// page fault handler, §8 scenario 3 "page-fault termination").
	FaultSegv
)

// Fault is the page fault entry point (spec.md §4.2): given the faulting
// address and whether the access was a write, it resolves demand-zero
// pages and reports unresolvable faults for the caller to turn into task
// termination. Grounded on the teacher's Vm_t.pgfault / Sys_pgfault, with
// the copy-on-write resolution branch removed: this spec's fork is an eager
// copy (§1 Non-goals), so a present read-only PTE hit by a write fault is
// always a genuine protection violation here, never a COW page to
// duplicate.
func (c *Context) Fault(va uint32, writefault bool) (FaultOutcome, defs.Err_t) {
	page := va &^ uint32(mem.PGOFFSET)

	c.mu.Lock()
	rng, ok := c.ranges.find(va)
	c.mu.Unlock()
	if !ok {
		return FaultSegv, -defs.EFAULT
	}

	pte, err := c.walk(page, false)
	if err == 0 && *pte&mem.PTE_P != 0 {
		// Already present: a write fault against a mapped-but-read-only
		// page is a protection violation, not something to resolve.
		if writefault && *pte&mem.PTE_W == 0 {
			return FaultSegv, -defs.EFAULT
		}
		return FaultResolved, 0
	}

	switch rng.kind {
	case RangeAnon:
		frame, aerr := c.fa.Alloc(1)
		if aerr != 0 {
			return FaultSegv, aerr
		}
		zero(c.fa.Dmap(frame))
		if merr := c.Map(page, frame, mem.PTE_P|mem.PTE_W|mem.PTE_U|mem.PTE_FREEONUNMAP); merr != 0 {
			c.fa.Free(frame, 1)
			return FaultSegv, merr
		}
		return FaultResolved, 0
	case RangeFixed:
		// A RangeFixed region with no present PTE at all means the loader
		// never backed this page (e.g. a hole between filesz and memsz
		// that should have been demand-zeroed by the loader, not here) —
		// treat as a fault.
		return FaultSegv, -defs.EFAULT
	default:
		return FaultSegv, -defs.EFAULT
	}
}
