package vfs

import (
	"testing"

	"kernix/defs"
	"kernix/stat"
	"kernix/ustr"
)

type fakeOps struct{ name string }

func (f *fakeOps) Open(path ustr.Ustr, flags, mode int) (Fdops_i, defs.Err_t) { return nil, 0 }
func (f *fakeOps) Stat(path ustr.Ustr, st *stat.Stat_t) defs.Err_t            { return 0 }
func (f *fakeOps) Readlink(path ustr.Ustr) (ustr.Ustr, defs.Err_t)            { return nil, -defs.EINVAL }
func (f *fakeOps) Unlink(path ustr.Ustr) defs.Err_t                           { return 0 }
func (f *fakeOps) Getdents(path ustr.Ustr) ([]Dirent_t, defs.Err_t)           { return nil, 0 }
func (f *fakeOps) Chmod(path ustr.Ustr, mode int) defs.Err_t                  { return 0 }

func u(s string) ustr.Ustr { return ustr.MkUstrSlice([]uint8(s)) }

func TestNamespaceLongestPrefix(t *testing.T) {
	ns := NewNamespace()
	root := &fakeOps{name: "root"}
	dev := &fakeOps{name: "dev"}
	devTty := &fakeOps{name: "devtty"}
	if err := ns.MountFS(u("/"), root, "", ""); err != 0 {
		t.Fatal(err)
	}
	if err := ns.MountFS(u("/dev"), dev, "", ""); err != 0 {
		t.Fatal(err)
	}
	if err := ns.MountFS(u("/dev/tty"), devTty, "", ""); err != 0 {
		t.Fatal(err)
	}

	ops, rel, err := ns.Resolve(u("/dev/tty/0"))
	if err != 0 {
		t.Fatal(err)
	}
	if ops.(*fakeOps) != devTty {
		t.Fatalf("expected longest prefix /dev/tty to win, got %v", ops.(*fakeOps).name)
	}
	if string(rel) != "/0" {
		t.Fatalf("relative path = %q, want /0", rel)
	}

	ops, rel, err = ns.Resolve(u("/devices/foo"))
	if err != 0 {
		t.Fatal(err)
	}
	if ops.(*fakeOps) != root {
		t.Fatalf("/dev must not match /devices (not a path-component boundary), got %v", ops.(*fakeOps).name)
	}

	ops, _, err = ns.Resolve(u("/dev/null"))
	if err != 0 || ops.(*fakeOps) != dev {
		t.Fatalf("expected /dev mount for /dev/null, got %v err=%v", ops, err)
	}
}

func TestFDTableLowestFree(t *testing.T) {
	tbl := NewFDTable()
	r, w := NewPipe()
	n0, err := tbl.Alloc(&Fd_t{Fops: r, Perms: FD_READ}, 0)
	if err != 0 || n0 != 0 {
		t.Fatalf("expected fd 0, got %d err=%v", n0, err)
	}
	n1, _ := tbl.Alloc(&Fd_t{Fops: w, Perms: FD_WRITE}, 0)
	if n1 != 1 {
		t.Fatalf("expected fd 1, got %d", n1)
	}
	if err := tbl.Close(0); err != 0 {
		t.Fatal(err)
	}
	r2, w2 := NewPipe()
	_ = w2
	n2, _ := tbl.Alloc(&Fd_t{Fops: r2, Perms: FD_READ}, 0)
	if n2 != 0 {
		t.Fatalf("expected closed fd 0 to be reused, got %d", n2)
	}
}

func TestFDTableCloseAll(t *testing.T) {
	tbl := NewFDTable()
	r, w := NewPipe()
	tbl.Alloc(&Fd_t{Fops: r, Perms: FD_READ}, 0)
	tbl.Alloc(&Fd_t{Fops: w, Perms: FD_WRITE}, 0)
	tbl.CloseAll()
	if tbl.Len() != 0 {
		t.Fatalf("expected empty table after CloseAll, got %d", tbl.Len())
	}
	if _, err := w.Write([]uint8("x")); err == 0 {
		t.Fatal("write end should have been closed")
	}
}

func TestPipeBackpressure(t *testing.T) {
	r, w := NewPipe()
	cap := r.buf.cb.Cap()
	exact := make([]uint8, cap)
	n, err := w.Write(exact)
	if err != 0 || n != cap {
		t.Fatalf("exact-capacity write should fully succeed, got n=%d err=%v", n, err)
	}
	tooBig := make([]uint8, cap+1)
	if _, err := w.Write(tooBig); err != -defs.EFBIG {
		t.Fatalf("expected EFBIG writing more than pipe capacity, got %v", err)
	}
	dst := make([]uint8, cap)
	n, err = r.Read(dst)
	if err != 0 || n != cap {
		t.Fatalf("read back: n=%d err=%v", n, err)
	}
}

func TestPipeRoundTrip(t *testing.T) {
	r, w := NewPipe()
	msg := []uint8("hello")
	if _, err := w.Write(msg); err != 0 {
		t.Fatal(err)
	}
	dst := make([]uint8, len(msg))
	n, err := r.Read(dst)
	if err != 0 || n != len(msg) || string(dst) != "hello" {
		t.Fatalf("got %q n=%d err=%v", dst[:n], n, err)
	}
}
