package sysfs

import (
	"strings"
	"testing"

	"kernix/defs"
	"kernix/irq"
	"kernix/klog"
	"kernix/mem"
	"kernix/mem/pmm"
	"kernix/mem/vmm"
	"kernix/proc"
	"kernix/ustr"
)

func seedAllFree(fa *pmm.FrameAllocator, nframes int) {
	for f := 0; f < nframes; f++ {
		fa.Free(mem.Pa_t(f*mem.PGSIZE), 1)
	}
}

func u(s string) ustr.Ustr { return ustr.Ustr(s) }

func TestMemfreeFormat(t *testing.T) {
	fa := pmm.New(0, uint64(16*mem.PGSIZE))
	seedAllFree(fa, 16)
	fa.Alloc(3)
	tree := NewTree()
	tree.Add("memfree", NewMemfree(fa))
	fd, err := tree.Open(u("memfree"), defs.O_RDONLY, 0)
	if err != 0 {
		t.Fatalf("open: %d", err)
	}
	buf := make([]uint8, 64)
	n, rerr := fd.Read(buf)
	if rerr != 0 {
		t.Fatalf("read: %d", rerr)
	}
	got := string(buf[:n])
	want := "65536 53248\n" // 16 pages total, 13 free, * 4096
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAddRemoveIdempotent(t *testing.T) {
	tree := NewTree()
	tree.Add("null", NewNull())
	tree.Add("null", NewNull()) // re-add: not an error
	tree.Remove("null")
	tree.Remove("null") // re-remove: not an error
	if _, err := tree.Open(u("null"), defs.O_RDONLY, 0); err != -defs.ENOENT {
		t.Fatalf("expected ENOENT after remove, got %d", err)
	}
}

func TestGetdentsListsTopLevel(t *testing.T) {
	tree := NewTree()
	tree.Add("memfree", NewMemfree(pmm.New(0, uint64(mem.PGSIZE))))
	tree.Add("kmsg", NewKmsg(klog.New(nil, 4096)))
	ents, err := tree.Getdents(u("/"))
	if err != 0 {
		t.Fatalf("getdents: %d", err)
	}
	names := map[string]bool{}
	for _, e := range ents {
		names[e.Name.String()] = true
	}
	if !names["memfree"] || !names["kmsg"] {
		t.Fatalf("missing expected entries: %v", ents)
	}
}

func TestNullAndZero(t *testing.T) {
	tree := NewTree()
	tree.Add("null", NewNull())
	tree.Add("zero", NewZero())

	nullFd, _ := tree.Open(u("null"), defs.O_RDONLY, 0)
	n, err := nullFd.Read(make([]uint8, 8))
	if err != 0 || n != 0 {
		t.Fatalf("null read: n=%d err=%d", n, err)
	}
	wn, werr := nullFd.Write([]uint8("hello"))
	if werr != 0 || wn != 5 {
		t.Fatalf("null write: n=%d err=%d", wn, werr)
	}

	zeroFd, _ := tree.Open(u("zero"), defs.O_RDONLY, 0)
	buf := []uint8{1, 2, 3}
	n, err = zeroFd.Read(buf)
	if err != 0 || n != 3 || buf[0] != 0 || buf[1] != 0 || buf[2] != 0 {
		t.Fatalf("zero read: n=%d err=%d buf=%v", n, err, buf)
	}
}

func TestConsoleReadEAGAINUntilInput(t *testing.T) {
	c := NewConsole()
	tree := NewTree()
	tree.Add("tty0", c.Entry())
	fd, _ := tree.Open(u("tty0"), defs.O_RDONLY, 0)

	_, err := fd.Read(make([]uint8, 8))
	if err != -defs.EAGAIN {
		t.Fatalf("expected EAGAIN with no input, got %d", err)
	}
	c.Feed([]uint8("hi"))
	buf := make([]uint8, 8)
	n, err := fd.Read(buf)
	if err != 0 || string(buf[:n]) != "hi" {
		t.Fatalf("got %q err=%d", buf[:n], err)
	}
}

func TestPanicBufRoundTrip(t *testing.T) {
	pb := NewPanicBuf(64)
	tree := NewTree()
	tree.Add("panicbuf", pb.Entry())
	fd, _ := tree.Open(u("panicbuf"), defs.O_RDONLY, 0)
	fd.Write([]uint8("crash-sample"))
	fd.Seek(0, 0) // the write advanced the shared offset past the sample
	buf := make([]uint8, 64)
	n, err := fd.Read(buf)
	if err != 0 || string(buf[:n]) != "crash-sample" {
		t.Fatalf("got %q err=%d", buf[:n], err)
	}
}

func TestIrqCountsFormat(t *testing.T) {
	d := irq.NewDispatcher(nil)
	d.Register(irq.PICRemapBase, func(vector int, errcode uintptr) {})
	d.Dispatch(irq.PICRemapBase, 0)
	d.Dispatch(irq.PICRemapBase, 0)
	tree := NewTree()
	tree.Add("irqcounts", NewIrqCounts(d))
	fd, _ := tree.Open(u("irqcounts"), defs.O_RDONLY, 0)
	buf := make([]uint8, 256)
	n, _ := fd.Read(buf)
	line := string(buf[:n])
	want := "32 2\n"
	if !strings.Contains(line, want) {
		t.Fatalf("got %q, want a line containing %q", line, want)
	}
}

func TestGfxbusMapsSharedBufferIntoBothContexts(t *testing.T) {
	const nframes = 64
	fa := pmm.New(0, uint64(nframes*mem.PGSIZE))
	seedAllFree(fa, nframes)

	master, err := vmm.NewContext(fa)
	if err != 0 {
		t.Fatalf("NewContext master: %d", err)
	}
	client, err := vmm.NewContext(fa)
	if err != 0 {
		t.Fatalf("NewContext client: %d", err)
	}

	masterTask := &proc.Task{AS: master}
	clientTask := &proc.Task{AS: client}

	bus := NewGfxbus(fa, 0x50000000)
	tree := NewTree()
	tree.Add("gfxbus", bus.Entry())
	fd, _ := tree.Open(u("gfxbus"), defs.O_RDONLY, 0)

	proc.SetCurrent(masterTask)
	if _, ierr := fd.Ioctl(GfxbusRegisterMaster, 0); ierr != 0 {
		t.Fatalf("register master: %d", ierr)
	}
	proc.ClearCurrent()

	proc.SetCurrent(clientTask)
	va, ierr := fd.Ioctl(GfxbusAllocShared, mem.PGSIZE)
	if ierr != 0 {
		t.Fatalf("alloc shared: %d", ierr)
	}
	proc.ClearCurrent()

	clientPA, terr := client.Translate(uint32(va))
	if terr != 0 {
		t.Fatalf("client translate: %d", terr)
	}
	masterPA, terr := master.Translate(uint32(va))
	if terr != 0 {
		t.Fatalf("master translate: %d", terr)
	}
	if clientPA != masterPA {
		t.Fatalf("client and master see different physical pages: %#x vs %#x", clientPA, masterPA)
	}
}
