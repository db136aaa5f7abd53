// Package ustr provides the immutable byte-string value used for every path
// and path component passed through the kernel, mirroring the teacher's
// ustr package: a plain []uint8 avoids forcing UTF-8 validity on path bytes
// that arrive raw from userspace or an ext2 directory entry.
package ustr

// Ustr represents a path or path component as raw bytes.
type Ustr []uint8

// Isdot reports whether the string equals ".".
func (us Ustr) Isdot() bool {
	return len(us) == 1 && us[0] == '.'
}

// Isdotdot reports whether the string equals "..".
func (us Ustr) Isdotdot() bool {
	return len(us) == 2 && us[0] == '.' && us[1] == '.'
}

// Eq compares two Ustr values byte for byte.
func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

// MkUstr returns an empty Ustr.
func MkUstr() Ustr { return Ustr{} }

// MkUstrRoot returns a Ustr for "/".
func MkUstrRoot() Ustr { return Ustr("/") }

// MkUstrSlice truncates buf at the first NUL byte.
func MkUstrSlice(buf []uint8) Ustr {
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0 {
			return buf[:i]
		}
	}
	return buf
}

// Extend appends '/' and p, returning a new Ustr.
func (us Ustr) Extend(p Ustr) Ustr {
	tmp := make(Ustr, len(us))
	copy(tmp, us)
	r := append(tmp, '/')
	return append(r, p...)
}

// ExtendStr is Extend for a Go string component.
func (us Ustr) ExtendStr(p string) Ustr {
	return us.Extend(Ustr(p))
}

// IsAbsolute reports whether the path begins with '/'.
func (us Ustr) IsAbsolute() bool {
	return len(us) > 0 && us[0] == '/'
}

// IndexByte returns the index of b, or -1.
func (us Ustr) IndexByte(b uint8) int {
	for i, v := range us {
		if v == b {
			return i
		}
	}
	return -1
}

// Split breaks the path into its '/'-delimited non-empty components.
func (us Ustr) Split() []Ustr {
	var parts []Ustr
	start := -1
	for i := 0; i <= len(us); i++ {
		atsep := i == len(us) || us[i] == '/'
		if atsep {
			if start >= 0 {
				parts = append(parts, us[start:i])
			}
			start = -1
		} else if start < 0 {
			start = i
		}
	}
	return parts
}

// String converts the Ustr to a Go string.
func (us Ustr) String() string {
	return string(us)
}
