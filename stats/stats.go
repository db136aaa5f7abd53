// Package stats provides the kernel's statistics-counter idiom, grounded on
// the teacher's stats.go: a compile-time boolean gate plus an atomic
// counter type whose Inc becomes a no-op when the gate is off, so
// instrumented call sites cost nothing in a build that doesn't want them.
package stats

import "sync/atomic"

// Enabled gates every Counter_t in the tree. The teacher defaults this to
// false for a production kernel; kernix's /sys/irqcounts and /sys/syscounts
// entries only have something to report with it on, so it stays true here.
const Enabled = true

// Counter_t is one statistical counter.
type Counter_t int64

// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(c), 1)
	}
}

// Get reads the counter's current value.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}
