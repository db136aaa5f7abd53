// Package syscall implements the system-call dispatch layer, spec.md
// §5.1: a fixed IDT gate (irq.SyscallVector) whose handler reads the call
// number and up to six argument registers into a record, validates any
// pointer arguments against the calling task's address space, looks the
// call up in a static table, and returns >=0 on success or -1 with the
// per-task errno cell set on failure. There is no surviving teacher
// syscall.go (the forked runtime's equivalent lived in code this pack
// never retrieved), so the dispatch table and per-task errno cell are
// built directly from spec.md's own description; the user-pointer
// validation/copy layer is grounded on the teacher's vm.Userbuf_t, adapted
// from its Vm_t.Userdmap8_inner page lookup to this tree's
// vmm.Context.Translate + pmm.FrameAllocator.Dmap.
package syscall

import (
	"kernix/defs"
	"kernix/mem"
	"kernix/mem/pmm"
	"kernix/mem/vmm"
	"kernix/util"
)

// UserBuf validates and copies between a task's user address space and
// kernel-side byte slices, rejecting unmapped, out-of-range, or
// kernel-half addresses (spec.md §5.1: "validates pointer arguments ...
// reject out-of-range, unmapped, or kernel addresses").
type UserBuf struct {
	as *vmm.Context
	fa *pmm.FrameAllocator
}

// NewUserBuf binds a UserBuf to one task's address space for the duration
// of a single syscall dispatch.
func NewUserBuf(as *vmm.Context, fa *pmm.FrameAllocator) *UserBuf {
	return &UserBuf{as: as, fa: fa}
}

// translate resolves one user virtual address to a physical address,
// rejecting anything at or above mem.UserTop outright: a task should never
// be able to pass a kernel address through a syscall and have it silently
// dereferenced.
func (u *UserBuf) translate(va uint32) (mem.Pa_t, defs.Err_t) {
	if va >= mem.UserTop {
		return 0, -defs.EFAULT
	}
	return u.as.Translate(va)
}

// CopyIn copies len(dst) bytes starting at uva into dst.
func (u *UserBuf) CopyIn(uva uint32, dst []byte) defs.Err_t {
	return u.tx(uva, dst, false)
}

// CopyOut copies src into len(src) bytes of user memory starting at uva.
func (u *UserBuf) CopyOut(uva uint32, src []byte) defs.Err_t {
	return u.tx(uva, src, true)
}

// tx walks buf page by page, translating and Dmap'ing one user page at a
// time, grounded on Userbuf_t._tx's chunked copy loop. write selects the
// direction: true copies buf into user memory, false copies user memory
// into buf.
func (u *UserBuf) tx(uva uint32, buf []byte, write bool) defs.Err_t {
	done := 0
	for done < len(buf) {
		va := uva + uint32(done)
		pa, err := u.translate(va)
		if err != 0 {
			return err
		}
		pageBase := pa &^ mem.PGOFFSET
		page := u.fa.Dmap(pageBase)
		off := int(pa & mem.PGOFFSET)
		n := len(page) - off
		if rem := len(buf) - done; n > rem {
			n = rem
		}
		if write {
			copy(page[off:off+n], buf[done:done+n])
		} else {
			copy(buf[done:done+n], page[off:off+n])
		}
		done += n
	}
	return 0
}

// CopyInStr reads a NUL-terminated string of at most max bytes starting at
// uva (spec.md §5.1 path arguments), failing ENAMETOOLONG if no NUL
// appears within max bytes.
func (u *UserBuf) CopyInStr(uva uint32, max int) (string, defs.Err_t) {
	out := make([]byte, 0, 64)
	var chunk [64]byte
	for len(out) < max {
		n := len(chunk)
		if rem := max - len(out); n > rem {
			n = rem
		}
		if err := u.CopyIn(uva+uint32(len(out)), chunk[:n]); err != 0 {
			return "", err
		}
		for i := 0; i < n; i++ {
			if chunk[i] == 0 {
				return string(append(out, chunk[:i]...)), 0
			}
		}
		out = append(out, chunk[:n]...)
	}
	return "", -defs.ENAMETOOLONG
}

// CopyInStrs reads a NULL-terminated array of uint32 user pointers starting
// at uva (an argv or envp vector), following each to its NUL-terminated
// string. maxEntries and maxStrLen bound the amount of user-controlled work
// a single syscall can demand.
func (u *UserBuf) CopyInStrs(uva uint32, maxEntries, maxStrLen int) ([]string, defs.Err_t) {
	var out []string
	var word [4]byte
	for i := 0; i < maxEntries; i++ {
		if err := u.CopyIn(uva+uint32(i*4), word[:]); err != 0 {
			return nil, err
		}
		ptr := util.ReadU32LE(word[:], 0)
		if ptr == 0 {
			return out, 0
		}
		s, err := u.CopyInStr(ptr, maxStrLen)
		if err != 0 {
			return nil, err
		}
		out = append(out, s)
	}
	return nil, -defs.ENAMETOOLONG
}
