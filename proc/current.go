package proc

import "sync"

// current-task tracking. The teacher stores the running thread's note in a
// dedicated field of its forked runtime's g struct (tinfo.Tnote_t, set via
// runtime.Setgptr/read via runtime.Gptr — both hooks only exist in the
// teacher's forked Go runtime, which is out of scope: "the build
// toolchain", spec.md §1). A single-core kernel (spec.md §1 Non-goal: SMP)
// has exactly one "currently running task" at a time by definition, so a
// package-level variable under a mutex serves the same purpose without the
// runtime fork, at the cost of not generalizing to multiple cores — which
// this spec never asks for.
var (
	curMu sync.Mutex
	cur   *Task
)

// Current returns the running task. Grounded on tinfo.Current: panics if
// called before any task has been marked current, since that is always a
// bring-up ordering bug, never a condition to recover from.
func Current() *Task {
	curMu.Lock()
	defer curMu.Unlock()
	if cur == nil {
		panic("proc: no current task")
	}
	return cur
}

// SetCurrent installs t as the running task, grounded on
// tinfo.SetCurrent.
func SetCurrent(t *Task) {
	curMu.Lock()
	defer curMu.Unlock()
	if t == nil {
		panic("proc: SetCurrent(nil)")
	}
	cur = t
}

// ClearCurrent removes the current-task marker, grounded on
// tinfo.ClearCurrent; called only around a context switch, never leaving
// the kernel with no current task for any observable duration.
func ClearCurrent() {
	curMu.Lock()
	defer curMu.Unlock()
	if cur == nil {
		panic("proc: ClearCurrent with none set")
	}
	cur = nil
}
