package proc

import (
	"testing"

	"kernix/defs"
	"kernix/mem"
	"kernix/mem/pmm"
	"kernix/mem/vmm"
)

func freeAllocator(t *testing.T, nframes int) *pmm.FrameAllocator {
	t.Helper()
	fa := pmm.New(0, uint64(nframes*mem.PGSIZE))
	for f := 0; f < nframes; f++ {
		fa.Free(mem.Pa_t(f*mem.PGSIZE), 1)
	}
	return fa
}

func TestSchedulerRoundRobinLiveness(t *testing.T) {
	s := New()
	fa := freeAllocator(t, 16)
	var tasks []*Task
	for i := 0; i < 3; i++ {
		as, err := vmm.NewContext(fa)
		if err != 0 {
			t.Fatal(err)
		}
		task := newTask(defs.Pid_t(i+1), nil)
		task.AS = as
		tasks = append(tasks, task)
		s.Enqueue(task)
	}
	seen := map[*Task]int{}
	cur := s.Tick()
	for i := 0; i < 9; i++ {
		if cur == nil {
			t.Fatal("scheduler went idle with runnable tasks present")
		}
		seen[cur]++
		cur = s.Tick()
	}
	for _, task := range tasks {
		if seen[task] == 0 {
			t.Fatalf("task %d never scheduled", task.Pid)
		}
	}
}

func TestForkProducesIndependentAddressSpace(t *testing.T) {
	s := New()
	fa := freeAllocator(t, 64)
	parent := s.SpawnInit()
	as, err := vmm.NewContext(fa)
	if err != 0 {
		t.Fatal(err)
	}
	parent.AS = as
	frame, _ := fa.Alloc(1)
	if err := parent.AS.Map(0x8000, frame, mem.PTE_P|mem.PTE_W|mem.PTE_U); err != 0 {
		t.Fatal(err)
	}

	child, ferr := s.Fork(parent)
	if ferr != 0 {
		t.Fatalf("Fork: %v", ferr)
	}
	if child.Pid == parent.Pid {
		t.Fatal("child must have a distinct pid")
	}
	childPa, terr := child.AS.Translate(0x8000)
	if terr != 0 {
		t.Fatalf("child should inherit the mapping: %v", terr)
	}
	if childPa == frame {
		t.Fatal("fork must eagerly copy, not share, the frame")
	}
	if len(parent.Children()) != 1 || parent.Children()[0] != child {
		t.Fatal("parent should track the new child")
	}
}

func TestExitWakesWaitingParent(t *testing.T) {
	s := New()
	fa := freeAllocator(t, 16)
	parent := s.SpawnInit()
	as, _ := vmm.NewContext(fa)
	parent.AS = as
	child, err := s.Fork(parent)
	if err != 0 {
		t.Fatal(err)
	}

	pid, status, done, werr := parent.Wait(-1)
	if werr != 0 {
		t.Fatalf("Wait: %v", werr)
	}
	if done == nil {
		t.Fatal("expected a wait channel since child is still running")
	}

	s.Exit(child, 7)

	select {
	case <-done:
	default:
		t.Fatal("wait channel should be closed once child exits")
	}

	pid, status, done, werr = parent.Wait(-1)
	if werr != 0 || done != nil {
		t.Fatalf("expected reaped child with no further wait, got done=%v err=%v", done, werr)
	}
	if pid != child.Pid || status != 7 {
		t.Fatalf("got pid=%d status=%d, want pid=%d status=7", pid, status, child.Pid)
	}
}

func TestOrphanReparentedToInit(t *testing.T) {
	s := New()
	fa := freeAllocator(t, 32)
	init := s.SpawnInit()
	as, _ := vmm.NewContext(fa)
	init.AS = as

	parent, _ := s.Fork(init)
	child, _ := s.Fork(parent)

	s.Exit(parent, 0)

	found := false
	for _, c := range init.Children() {
		if c == child {
			found = true
		}
	}
	if !found {
		t.Fatal("orphaned child should be reparented to init")
	}
}
