// Package limits tracks the system-wide resource ceilings the kernel
// enforces, grounded on the teacher's limits.Syslimit_t: a single struct of
// atomically-adjustable counters rather than scattered magic numbers.
package limits

import "sync/atomic"

// Sysatomic_t is a numeric limit that can be atomically taken and given
// back.
type Sysatomic_t int64

// Given increases the limit by delta.
func (s *Sysatomic_t) Given(delta uint) {
	atomic.AddInt64((*int64)(s), int64(delta))
}

// Taken tries to decrement the limit by delta, returning false (and leaving
// the limit unchanged) if that would take it negative.
func (s *Sysatomic_t) Taken(delta uint) bool {
	n := int64(delta)
	g := atomic.AddInt64((*int64)(s), -n)
	if g >= 0 {
		return true
	}
	atomic.AddInt64((*int64)(s), n)
	return false
}

// Take decrements the limit by one.
func (s *Sysatomic_t) Take() bool { return s.Taken(1) }

// Give increments the limit by one.
func (s *Sysatomic_t) Give() { s.Given(1) }

// Cur reports the current value.
func (s *Sysatomic_t) Cur() int64 { return atomic.LoadInt64((*int64)(s)) }

// Syslimit_t holds every system-wide ceiling the kernel enforces.
type Syslimit_t struct {
	// Sysprocs bounds the number of live tasks (spec.md §3 Task table).
	Sysprocs Sysatomic_t
	// Vnodes bounds the ext2 inode cache (spec.md §3 ext2 in-memory state).
	Vnodes Sysatomic_t
	// Pipes bounds outstanding pipe buffers (spec.md §4.9).
	Pipes Sysatomic_t
	// Mfspgs bounds pages handed out to synthetic-fs entries.
	Mfspgs Sysatomic_t
	// Blocks bounds cached ext2 blocks.
	Blocks Sysatomic_t
	// MaxFdPerTask bounds a single task's descriptor table size
	// (spec.md §3 File descriptor). Not atomic: set once at boot.
	MaxFdPerTask int
	// PipeBufSize is PIPE_BUFFER_SIZE from spec.md §8 scenario 5.
	PipeBufSize int
}

// Syslimit is the process-wide instance, populated at boot.
var Syslimit = MkSysLimit()

// MkSysLimit returns the default set of limits.
func MkSysLimit() *Syslimit_t {
	l := &Syslimit_t{
		MaxFdPerTask: 256,
		PipeBufSize:  4096 * 8,
	}
	l.Sysprocs.Given(4096)
	l.Vnodes.Given(20000)
	l.Pipes.Given(1024)
	l.Mfspgs.Given(1 << 16)
	l.Blocks.Given(1 << 18)
	return l
}
