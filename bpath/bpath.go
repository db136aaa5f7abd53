// Package bpath canonicalises absolute paths: it collapses "." and ".."
// components lexically. Symlink expansion is a separate, stateful step
// (it requires consulting the filesystem) and lives in vfs.Resolve, which
// calls back into this package to re-canonicalise after each substitution.
package bpath

import "kernix/ustr"

// MaxSymlinkDepth bounds symlink-expansion recursion during path resolution
// (spec.md §4.9: "symlink expansion at each component up to a small depth
// bound").
const MaxSymlinkDepth = 20

// Canonicalize collapses "." and ".." components of an absolute path p and
// returns a path starting with "/" with no trailing slash (except for the
// root itself, which is returned as "/").
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	parts := p.Split()
	stack := make([]ustr.Ustr, 0, len(parts))
	for _, c := range parts {
		switch {
		case c.Isdot():
			// no-op
		case c.Isdotdot():
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, c)
		}
	}
	if len(stack) == 0 {
		return ustr.MkUstrRoot()
	}
	ret := ustr.Ustr{'/'}
	for i, c := range stack {
		if i > 0 {
			ret = append(ret, '/')
		}
		ret = append(ret, c...)
	}
	return ret
}

// Dirname returns the parent directory component of an absolute,
// already-canonical path, and Basename returns the final component. Both
// return the root for "/".
func Dirname(p ustr.Ustr) ustr.Ustr {
	parts := p.Split()
	if len(parts) <= 1 {
		return ustr.MkUstrRoot()
	}
	ret := ustr.Ustr{}
	for i := 0; i < len(parts)-1; i++ {
		ret = append(ret, '/')
		ret = append(ret, parts[i]...)
	}
	return ret
}

// Basename returns the final path component.
func Basename(p ustr.Ustr) ustr.Ustr {
	parts := p.Split()
	if len(parts) == 0 {
		return ustr.MkUstrRoot()
	}
	return parts[len(parts)-1]
}
