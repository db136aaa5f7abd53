package proc

import (
	"sync"

	"kernix/defs"
	"kernix/ustr"
)

// Scheduler holds the ready queue and pid allocator (spec.md §4.6:
// "preemptive round-robin driven by the timer IRQ"; invariant: the set
// {running} ∪ ready ∪ waiting ∪ terminated partitions all live task ids).
type Scheduler struct {
	mu      sync.Mutex
	ready   []*Task
	running *Task
	init    *Task
	nextPid defs.Pid_t
	tasks   map[defs.Pid_t]*Task
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{nextPid: 1, tasks: make(map[defs.Pid_t]*Task)}
}

func (s *Scheduler) allocPid() defs.Pid_t {
	p := s.nextPid
	s.nextPid++
	return p
}

// SpawnInit creates the first task (spec.md §4.6: "spawn_init at boot") and
// marks it as the init task orphans are reparented to.
func (s *Scheduler) SpawnInit() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := newTask(s.allocPid(), nil)
	s.tasks[t.Pid] = t
	s.init = t
	return t
}

// Enqueue marks t runnable and appends it to the ready queue's tail (spec.md
// §4.6 fork: a newly created task joins the ready queue).
func (s *Scheduler) Enqueue(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.mu.Lock()
	t.State = StateRunnable
	t.mu.Unlock()
	s.ready = append(s.ready, t)
	s.tasks[t.Pid] = t
}

// Tick is the timer IRQ's entry into the scheduler: it rotates the
// currently running task to the back of the ready queue (if it is still
// runnable; a task that blocked or terminated this tick is not
// re-enqueued) and returns the next task to run, or the same task if
// nothing else is ready (spec.md §4.6: "on tick, if the current task's
// time slice expires ... the scheduler rotates to the next runnable
// task").
func (s *Scheduler) Tick() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != nil {
		s.running.mu.Lock()
		if s.running.State == StateRunning {
			s.running.State = StateRunnable
			s.running.mu.Unlock()
			s.ready = append(s.ready, s.running)
		} else {
			s.running.mu.Unlock()
		}
	}
	if len(s.ready) == 0 {
		s.running = nil
		return nil
	}
	next := s.ready[0]
	s.ready = s.ready[1:]
	next.mu.Lock()
	next.State = StateRunning
	next.mu.Unlock()
	s.running = next
	return next
}

// Wake moves a waiting task back onto the ready queue (spec.md §4.6: "moved
// back to runnable when the channel fires").
func (s *Scheduler) Wake(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.mu.Lock()
	t.State = StateRunnable
	t.mu.Unlock()
	s.ready = append(s.ready, t)
}

// Running returns the currently running task, or nil if the ready queue is
// empty (an idle CPU).
func (s *Scheduler) Running() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Lookup finds a task by pid, for wait()/kill()-style syscalls that take a
// pid rather than holding a *Task.
func (s *Scheduler) Lookup(pid defs.Pid_t) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[pid]
	return t, ok
}

// Init returns the task orphans are reparented to.
func (s *Scheduler) Init() *Task { return s.init }

// Reap forgets a terminated task's pid once its parent has collected its
// exit status (spec.md §4.6: "the parent's wait ... releases the task's
// ... pid").
func (s *Scheduler) Reap(pid defs.Pid_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, pid)
}

// Fork creates a child of parent with an eager, independent copy of its
// address space (spec.md §1 Non-goals: no copy-on-write after fork) and
// enqueues it runnable. The child does not inherit parent's accounting
// counters, matching the teacher's accnt.Accnt_t semantics of starting a
// fresh task's clock at its own birth.
func (s *Scheduler) Fork(parent *Task) (*Task, defs.Err_t) {
	childAS, err := parent.AS.Clone()
	if err != 0 {
		return nil, err
	}
	s.mu.Lock()
	child := newTask(s.allocPid(), nil)
	s.mu.Unlock()
	child.AS = childAS
	child.Cwd = append(ustr.Ustr(nil), parent.Cwd...)
	child.Uid, child.Gid = parent.Uid, parent.Gid
	child.EntryPoint = parent.EntryPoint
	child.StackPointer = parent.StackPointer
	child.Brk = parent.Brk
	parent.addChild(child)
	s.Enqueue(child)
	return child, 0
}
