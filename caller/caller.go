// Package caller de-duplicates kernel warning call-sites, grounded on the
// teacher's caller.Distinct_caller_t. Recoverable kernel errors (spec.md
// §7.2) log at warning level; without de-duplication a hot, repeatedly
// failing path floods the console. DistinctCaller reports a call chain's
// first occurrence and swallows (but counts) subsequent ones.
package caller

import (
	"fmt"
	"runtime"
	"sync"
)

// DistinctCaller tracks whether a given call chain has been seen before.
type DistinctCaller struct {
	sync.Mutex
	Enabled bool
	did     map[uintptr]bool
	suppressed int
}

func (dc *DistinctCaller) hash(pcs []uintptr) uintptr {
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret ^= pc
	}
	return ret
}

// Suppressed returns the number of warnings that were de-duplicated away.
func (dc *DistinctCaller) Suppressed() int {
	dc.Lock()
	defer dc.Unlock()
	return dc.suppressed
}

// Distinct reports whether the current call chain (starting 3 frames up,
// i.e. the caller of the function that called Distinct) is new. When new it
// also returns a formatted stack trace suitable for logging.
func (dc *DistinctCaller) Distinct() (bool, string) {
	dc.Lock()
	defer dc.Unlock()
	if !dc.Enabled {
		return true, ""
	}
	if dc.did == nil {
		dc.did = make(map[uintptr]bool)
	}
	pcs := make([]uintptr, 30)
	got := runtime.Callers(3, pcs)
	if got == 0 {
		return true, ""
	}
	pcs = pcs[:got]
	h := dc.hash(pcs)
	if dc.did[h] {
		dc.suppressed++
		return false, ""
	}
	dc.did[h] = true
	frames := runtime.CallersFrames(pcs)
	s := ""
	for {
		fr, more := frames.Next()
		if s == "" {
			s = fmt.Sprintf("%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		} else {
			s += fmt.Sprintf("\t%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		}
		if !more {
			break
		}
	}
	return true, s
}
