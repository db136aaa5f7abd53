package proc

import "kernix/defs"

// Loader replaces t's program image in place: it builds a fresh address
// space from path's contents, installs argv/envp on the new stack, and
// updates t.AS/t.EntryPoint/t.Brk — package elf provides the concrete
// implementation. Defined here rather than imported directly so proc does
// not depend on elf (which itself depends on vmm and vfs), avoiding an
// import cycle through the fd-table boundary both packages touch.
type Loader func(t *Task, path string, argv, envp []string) defs.Err_t

// Execve runs load against t, replacing its current address space (spec.md
// §4.6: "execve replacing the current task's image"; §1 Non-goals:
// dynamic linking, so load only ever produces a single statically linked
// image). On success the old address space is gone; on failure t is left
// exactly as it was; Execve never partially replaces a task's image.
func (t *Task) Execve(load Loader, path string, argv, envp []string) defs.Err_t {
	oldAS := t.AS
	if err := load(t, path, argv, envp); err != 0 {
		t.AS = oldAS
		return err
	}
	return 0
}
