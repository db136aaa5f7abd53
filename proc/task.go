// Package proc implements the task model and scheduler, spec.md §4.6: task
// lifecycle, preemptive round-robin scheduling, fork (eager copy, spec.md
// §1 Non-goals exclude copy-on-write-after-fork), exit/wait/reaping with
// orphan reparenting to init, and the execve hook point. Grounded on the
// teacher's proc package naming (reconstructed fresh: the teacher's
// `proc/` directory carried only a stub go.mod, no surviving source) and
// on `tinfo.Tnote_t`/`tinfo.Current` for current-task tracking, and
// `accnt.Accnt_t` for per-task CPU accounting.
package proc

import (
	"sync"

	"kernix/accnt"
	"kernix/defs"
	"kernix/mem/vmm"
	"kernix/ustr"
)

// State is a task's position in spec.md §4.6's task-state partition.
type State int

const (
	StateNew State = iota
	StateRunnable
	StateRunning
	StateWaiting
	StateStopped
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunnable:
		return "runnable"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateStopped:
		return "stopped"
	case StateTerminated:
		return "terminated"
	default:
		return "?"
	}
}

// FileOwner is the fd-table boundary a Task holds without importing
// package vfs (which itself needs to know a Task's identity for ownership
// checks): CloseAll releases every open descriptor on exit.
type FileOwner interface {
	CloseAll()
}

// Task is one schedulable unit of execution (spec.md §4.6 Task).
type Task struct {
	mu sync.Mutex

	Pid      defs.Pid_t
	Parent   *Task
	children []*Task

	State State
	AS    *vmm.Context

	Cwd          ustr.Ustr
	Uid, Gid     int
	EntryPoint   uint32
	StackPointer uint32
	Brk          uint32
	MmapNext     uint32

	Files FileOwner

	Accnt accnt.Accnt_t

	// Errno holds the error from the most recent syscall that failed
	// (spec.md §5.1: "a per-task errno cell set on failure"); package
	// syscall is the only writer, and no syscall reads it back.
	Errno defs.Err_t

	ExitStatus int
	waiters    []chan struct{}
}

// newTask allocates a bare task in state new; callers (spawn_init, Fork,
// Execve's replacement path) fill in AS/EntryPoint/Files afterward.
func newTask(pid defs.Pid_t, parent *Task) *Task {
	return &Task{Pid: pid, Parent: parent, State: StateNew}
}

// addChild records t as one of p's children, used by Fork and by
// reparenting orphans to init.
func (p *Task) addChild(t *Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t.Parent = p
	p.children = append(p.children, t)
}

// Children returns a snapshot of p's live child list.
func (p *Task) Children() []*Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Task, len(p.children))
	copy(out, p.children)
	return out
}
