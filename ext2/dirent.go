package ext2

import (
	"kernix/bpath"
	"kernix/defs"
	"kernix/ustr"
)

// Dirent offsets within one directory-entry record (spec.md §4.10).
const (
	deInode   = 0
	deRecLen  = 4
	deNameLen = 6
	deFType   = 7
	deNameOff = 8
)

// dirent is one decoded directory entry.
type dirent struct {
	inode uint32
	ftype uint8
	name  ustr.Ustr
}

// readDir returns every (non-deleted) entry in dir's data blocks (spec.md
// §4.10: "read the current directory inode's data blocks, scan dirents
// linearly").
func (fs *FS) readDir(dir *Inode) ([]dirent, defs.Err_t) {
	bs := fs.sb.BlockSize()
	nblocks := dir.NumBlocksForSize(bs)
	var out []dirent
	buf := make([]uint8, bs)
	for b := 0; b < nblocks; b++ {
		phys, err := fs.blockAt(dir, b)
		if err != 0 {
			return nil, err
		}
		if phys == 0 {
			continue
		}
		if err := fs.readBlock(phys, buf); err != 0 {
			return nil, err
		}
		off := 0
		for off+deNameOff <= bs {
			inum := r32(buf, off+deInode)
			recLen := int(r16(buf, off+deRecLen))
			if recLen < deNameOff {
				break // corrupt or end-of-block sentinel
			}
			nameLen := int(buf[off+deNameLen])
			if inum != 0 {
				name := make(ustr.Ustr, nameLen)
				copy(name, buf[off+deNameOff:off+deNameOff+nameLen])
				out = append(out, dirent{inode: inum, ftype: buf[off+deFType], name: name})
			}
			off += recLen
		}
	}
	return out, 0
}

// lookup scans dir for a child named name, per spec.md §4.10's linear
// dirent scan ("scan dirents linearly for a matching name_len/name").
func (fs *FS) lookup(dir *Inode, name ustr.Ustr) (uint32, defs.Err_t) {
	ents, err := fs.readDir(dir)
	if err != 0 {
		return 0, err
	}
	for _, e := range ents {
		if e.name.Eq(name) {
			return e.inode, 0
		}
	}
	return 0, -defs.ENOENT
}

// readlinkTarget returns the target of a symlink inode (spec.md §4.10:
// "symlinks with size <= 60 store the target inline in the inode's
// block-pointer array; longer targets live in the file body").
func (fs *FS) readlinkTarget(in *Inode) (ustr.Ustr, defs.Err_t) {
	if in.Size <= 60 {
		raw := make([]uint8, dirPerInode*4)
		for i := 0; i < dirPerInode; i++ {
			w32(raw, 4*i, in.Block[i])
		}
		return ustr.Ustr(raw[:in.Size]), 0
	}
	buf := make([]uint8, in.Size)
	n, err := fs.ReadFile(in, 0, buf)
	if err != 0 {
		return nil, err
	}
	return ustr.Ustr(buf[:n]), 0
}

// resolve walks path from the root inode, descending one component at a
// time and expanding symlinks up to bpath.MaxSymlinkDepth (spec.md §4.10
// "Path-to-inode resolution" and §8 scenario 4). Relative symlink targets
// are resolved against the symlink's containing directory, matching
// spec.md's explicit rule.
func (fs *FS) resolve(path ustr.Ustr) (*Inode, defs.Err_t) {
	return fs.resolveFrom(rootInode, path, 0)
}

func (fs *FS) resolveFrom(startIno uint32, path ustr.Ustr, depth int) (*Inode, defs.Err_t) {
	if depth > bpath.MaxSymlinkDepth {
		return nil, -defs.ENOENT
	}
	cur, err := fs.readInode(startIno)
	if err != 0 {
		return nil, err
	}
	parts := path.Split()
	for i, comp := range parts {
		if !cur.IsDir() {
			return nil, -defs.ENOTDIR
		}
		childIno, err := fs.lookup(cur, comp)
		if err != 0 {
			return nil, err
		}
		child, err := fs.readInode(childIno)
		if err != 0 {
			return nil, err
		}
		if child.IsLnk() {
			target, terr := fs.readlinkTarget(child)
			if terr != 0 {
				return nil, terr
			}
			var base uint32
			var rest ustr.Ustr
			if target.IsAbsolute() {
				base = rootInode
				rest = target
			} else {
				base = cur.Num
				rest = target
			}
			resolved, rerr := fs.resolveFrom(base, rest, depth+1)
			if rerr != 0 {
				return nil, rerr
			}
			if i == len(parts)-1 {
				return resolved, 0
			}
			cur = resolved
			continue
		}
		cur = child
	}
	return cur, 0
}
