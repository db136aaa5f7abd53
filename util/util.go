// Package util contains byte-level helpers used to read and write on-disk
// and wire structures without relying on type punning through packed
// structs (spec.md §9's "ad-hoc type-punning" re-architecting note): every
// multiboot, ELF, and ext2 on-disk field goes through Readn/Writen.
package util

import "unsafe"

// Int is satisfied by all built-in integer types.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Min returns the smaller of a and b.
func Min[T Int](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T Int](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Rounddown aligns v down to the nearest multiple of b.
func Rounddown[T Int](v, b T) T {
	return v - (v % b)
}

// Roundup aligns v up to the nearest multiple of b.
func Roundup[T Int](v, b T) T {
	return Rounddown(v+b-1, b)
}

// Readn reads n little-endian bytes from a starting at off and returns the
// value. All on-disk and wire values are little-endian (spec.md §9).
func Readn(a []uint8, n int, off int) int {
	if off < 0 || n < 0 || off+n > len(a) {
		panic("Readn out of bounds")
	}
	var ret uint64
	for i := n - 1; i >= 0; i-- {
		ret = ret<<8 | uint64(a[off+i])
	}
	return int(ret)
}

// Writen writes val using sz little-endian bytes into a starting at off.
func Writen(a []uint8, sz int, off int, val int) {
	if off < 0 || sz < 0 || off+sz > len(a) {
		panic("Writen out of bounds")
	}
	v := uint64(val)
	for i := 0; i < sz; i++ {
		a[off+i] = uint8(v)
		v >>= 8
	}
}

// ReadU16LE reads a little-endian uint16 at off.
func ReadU16LE(a []uint8, off int) uint16 { return uint16(Readn(a, 2, off)) }

// ReadU32LE reads a little-endian uint32 at off.
func ReadU32LE(a []uint8, off int) uint32 { return uint32(Readn(a, 4, off)) }

// ReadU64LE reads a little-endian uint64 at off.
func ReadU64LE(a []uint8, off int) uint64 {
	lo := uint64(ReadU32LE(a, off))
	hi := uint64(ReadU32LE(a, off+4))
	return lo | hi<<32
}

// WriteU16LE writes v as a little-endian uint16 at off.
func WriteU16LE(a []uint8, off int, v uint16) { Writen(a, 2, off, int(v)) }

// WriteU32LE writes v as a little-endian uint32 at off.
func WriteU32LE(a []uint8, off int, v uint32) { Writen(a, 4, off, int(v)) }

// Zero clears n bytes at off.
func Zero(a []uint8, off, n int) {
	for i := 0; i < n; i++ {
		a[off+i] = 0
	}
}

// PtrEq reports whether two arbitrary pointers are the same address.
func PtrEq(a, b unsafe.Pointer) bool { return a == b }
