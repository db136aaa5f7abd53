// Package defs holds the small set of types and constants shared by every
// layer of the kernel: the syscall error convention, device/pid/tid
// new-types, and the syscall number table.
package defs

/// Err_t is a POSIX-aligned errno, always stored negated so that syscall
/// return values follow the convention: >= 0 on success, -1 with Err_t set
/// on failure.
type Err_t int

// Errno values. Only these are defined; handlers must not invent others.
// Besides the POSIX-aligned core set, EEXIST, ENOTDIR, ENOSPC and
// ENAMETOOLONG cover filesystem and path-length failures.
const (
	ENOENT       Err_t = 2
	EBADF        Err_t = 9
	EAGAIN       Err_t = 11
	ENOMEM       Err_t = 12
	EFAULT       Err_t = 14
	EEXIST       Err_t = 17
	ENOTDIR      Err_t = 20
	EISDIR       Err_t = 21
	EINVAL       Err_t = 22
	EMFILE       Err_t = 24
	EFBIG        Err_t = 27
	ENOSPC       Err_t = 28
	ENOEXEC      Err_t = 8
	EPERM        Err_t = 1
	ENOSYS       Err_t = 38
	ENAMETOOLONG Err_t = 36
)

/// Pid_t identifies a task's process id.
type Pid_t int

/// Tid_t identifies a task's thread id; kernix runs one thread per task so
/// Tid_t and Pid_t share a numbering space, but are kept distinct types to
/// match the teacher's convention of not conflating the two concepts.
type Tid_t int

/// Fdnum_t is a per-task file descriptor number.
type Fdnum_t int

// open() flags, matching the syscall surface named in spec.md §6.
const (
	O_RDONLY int = 0
	O_WRONLY int = 1
	O_RDWR   int = 2
	O_CREAT  int = 0x40
	O_TRUNC  int = 0x200
	O_APPEND int = 0x400
)

// seek() whence values.
const (
	SEEK_SET int = 0
	SEEK_CUR int = 1
	SEEK_END int = 2
)
