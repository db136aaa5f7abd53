package elf

import (
	"encoding/binary"
	"testing"

	"kernix/defs"
	"kernix/mem"
	"kernix/mem/pmm"
	"kernix/proc"
	"kernix/sysfs"
	"kernix/ustr"
	"kernix/vfs"
)

// buildImage hand-assembles a minimal ELF32/EM_386/ET_EXEC image: one
// PT_LOAD segment covering a handful of code bytes, mapped read-execute.
func buildImage(t *testing.T, vaddr uint32, code []byte) []byte {
	t.Helper()
	const ehsize = 52
	const phsize = 32
	buf := make([]byte, ehsize+phsize+len(code))

	copy(buf[0:4], "\x7fELF")
	buf[4] = 1 // ELFCLASS32
	buf[5] = 1 // ELFDATA2LSB
	buf[6] = 1 // EV_CURRENT
	le := binary.LittleEndian
	le.PutUint16(buf[16:], 2) // ET_EXEC
	le.PutUint16(buf[18:], 3) // EM_386
	le.PutUint32(buf[20:], 1) // e_version
	le.PutUint32(buf[24:], vaddr)
	le.PutUint32(buf[28:], ehsize) // e_phoff
	le.PutUint16(buf[40:], ehsize) // e_ehsize
	le.PutUint16(buf[42:], phsize) // e_phentsize
	le.PutUint16(buf[44:], 1)      // e_phnum

	ph := buf[ehsize:]
	le.PutUint32(ph[0:], 1)                   // PT_LOAD
	le.PutUint32(ph[4:], ehsize+phsize)       // p_offset
	le.PutUint32(ph[8:], vaddr)               // p_vaddr
	le.PutUint32(ph[12:], vaddr)               // p_paddr
	le.PutUint32(ph[16:], uint32(len(code)))  // p_filesz
	le.PutUint32(ph[20:], uint32(len(code))+16) // p_memsz: extends past file content, needs zero-fill
	le.PutUint32(ph[24:], 5)                  // PF_R|PF_X
	le.PutUint32(ph[28:], uint32(mem.PGSIZE)) // p_align

	copy(buf[ehsize+phsize:], code)
	return buf
}

func imageEntry(image []byte) *sysfs.Entry {
	return &sysfs.Entry{
		Read: func(off int, dst []uint8) (int, defs.Err_t) {
			if off >= len(image) {
				return 0, 0
			}
			return copy(dst, image[off:]), 0
		},
	}
}

func TestLoadMapsSegmentAndSetsEntry(t *testing.T) {
	const nframes = 256
	fa := pmm.New(0, uint64(nframes*mem.PGSIZE))
	for f := 0; f < nframes; f++ {
		fa.Free(mem.Pa_t(f*mem.PGSIZE), 1)
	}

	const vaddr = 0x08048000
	code := []byte{0x90, 0x90, 0x90, 0x90} // four NOPs; content doesn't execute in this test
	image := buildImage(t, vaddr, code)

	tree := sysfs.NewTree()
	tree.Add("init", imageEntry(image))

	ns := vfs.NewNamespace()
	if err := ns.MountFS(ustr.MkUstrRoot(), tree, "", "sysfs"); err != 0 {
		t.Fatalf("mount: %d", err)
	}

	ld := New(ns, fa)
	task := &proc.Task{Cwd: ustr.MkUstrRoot()}
	if err := ld.Load(task, "/init", []string{"/init", "-x"}, []string{"HOME=/"}); err != 0 {
		t.Fatalf("load: %d", err)
	}

	if task.EntryPoint != vaddr {
		t.Fatalf("entry = %#x, want %#x", task.EntryPoint, uint32(vaddr))
	}
	if task.Brk == 0 {
		t.Fatalf("brk not set")
	}
	if task.StackPointer == 0 {
		t.Fatalf("stack pointer not set")
	}

	pa, terr := task.AS.Translate(vaddr)
	if terr != 0 {
		t.Fatalf("translate entry: %d", terr)
	}
	got := fa.Dmap(pa &^ mem.Pa_t(mem.PGOFFSET))[:len(code)]
	for i, b := range got {
		if b != code[i] {
			t.Fatalf("code byte %d: got %#x want %#x", i, b, code[i])
		}
	}

	spa, serr := task.AS.Translate(task.StackPointer)
	if serr != 0 {
		t.Fatalf("translate stack pointer: %d", serr)
	}
	sbuf := fa.Dmap(spa &^ mem.Pa_t(mem.PGOFFSET))
	argc := le32(sbuf[task.StackPointer&uint32(mem.PGOFFSET):])
	if argc != 2 {
		t.Fatalf("argc = %d, want 2", argc)
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
