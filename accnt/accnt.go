// Package accnt accumulates per-task CPU-time accounting, grounded on the
// teacher's accnt.Accnt_t. Not named in spec.md's Task fields directly, but
// folded into the task model (see SPEC_FULL.md §3) since a process table
// without usage accounting is incomplete relative to the getrusage-shaped
// data spec.md §6's syscall surface implies.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"

	"kernix/util"
)

// Accnt_t holds nanosecond counters for one task. The embedded mutex is
// held by Add and ToRusage so they see both counters together.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

// Utadd adds delta nanoseconds of user time.
func (a *Accnt_t) Utadd(delta int) { atomic.AddInt64(&a.Userns, int64(delta)) }

// Systadd adds delta nanoseconds of system time.
func (a *Accnt_t) Systadd(delta int) { atomic.AddInt64(&a.Sysns, int64(delta)) }

// Now returns the current time in nanoseconds since the epoch.
func (a *Accnt_t) Now() int64 { return time.Now().UnixNano() }

// Finish adds the time elapsed since inttime to the system-time counter.
// Nothing in the scheduler calls it.
func (a *Accnt_t) Finish(inttime int64) {
	a.Systadd(int(a.Now() - inttime))
}

// Add merges child accounting into the parent's totals; Task.Wait does not
// call it.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	defer a.Unlock()
	n.Lock()
	defer n.Unlock()
	a.Userns += n.Userns
	a.Sysns += n.Sysns
}

// ToRusage serialises the accounting data as a pair of {sec,usec} timevals,
// the shape the rusage syscall ABI expects.
func (a *Accnt_t) ToRusage() []uint8 {
	a.Lock()
	defer a.Unlock()
	ret := make([]uint8, 4*8)
	totv := func(nano int64) (int, int) {
		return int(nano / 1e9), int((nano % 1e9) / 1000)
	}
	off := 0
	write := func(nano int64) {
		s, us := totv(nano)
		util.Writen(ret, 8, off, s)
		off += 8
		util.Writen(ret, 8, off, us)
		off += 8
	}
	write(a.Userns)
	write(a.Sysns)
	return ret
}
