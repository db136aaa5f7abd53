package proc

import "kernix/defs"

// Exit terminates t (spec.md §4.6: "exit(code) sets state to terminated,
// records the code, unblocks any parent in wait"): it closes every open
// file descriptor, reparents any live children to the scheduler's init
// task, and wakes anyone blocked in Wait on it. The terminated task itself
// is not removed from the scheduler's task table until its parent reaps it
// via Wait (spec.md §4.6 Task invariant: "terminated tasks persist until
// reaped by the parent").
func (s *Scheduler) Exit(t *Task, status int) {
	t.mu.Lock()
	t.ExitStatus = status
	t.State = StateTerminated
	files := t.Files
	kids := t.children
	t.children = nil
	parent := t.Parent
	t.mu.Unlock()

	// Wait registers its channel on the parent, so that is where the
	// blocked waiters are found.
	var waiters []chan struct{}
	if parent != nil {
		parent.mu.Lock()
		waiters = parent.waiters
		parent.waiters = nil
		parent.mu.Unlock()
	}

	if files != nil {
		files.CloseAll()
	}

	initTask := s.Init()
	if initTask != nil {
		for _, c := range kids {
			initTask.addChild(c)
		}
	}

	for _, w := range waiters {
		close(w)
	}
}

// Wait blocks the calling convention's caller until a terminated child of
// parent is available, then reaps it and returns its pid and exit status
// (spec.md §4.6 and §8 scenario 2 "fork-and-exit"). If wantPid is
// non-negative, only that child is considered; wantPid < 0 matches any
// child. This is the synchronous half of the operation: a freestanding
// caller running on the blocked task's own stack calls Wait from within the
// halt-and-wait suspension point spec.md §4.7 describes, not this package,
// so Wait here simply reports "nothing terminated yet, park on this
// channel" by returning a wait channel the caller selects on alongside the
// scheduler's wake-ups.
//
// spec.md's named errno set has no ECHILD; a parent with no matching child
// at all is reported as EINVAL (documented open-question decision, see
// DESIGN.md), distinguishing it from the "still running, nothing to reap
// yet" case, which instead returns a non-nil channel and a zero err.
func (parent *Task) Wait(wantPid defs.Pid_t) (pid defs.Pid_t, status int, done <-chan struct{}, err defs.Err_t) {
	parent.mu.Lock()
	defer parent.mu.Unlock()

	found := false
	for i, c := range parent.children {
		if wantPid >= 0 && c.Pid != wantPid {
			continue
		}
		found = true
		c.mu.Lock()
		term := c.State == StateTerminated
		c.mu.Unlock()
		if term {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return c.Pid, c.ExitStatus, nil, 0
		}
	}
	if !found {
		return 0, 0, nil, -defs.EINVAL
	}
	ch := make(chan struct{})
	parent.waiters = append(parent.waiters, ch)
	return 0, 0, ch, 0
}
