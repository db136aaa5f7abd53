package ext2

import (
	"kernix/defs"
	"kernix/stat"
	"kernix/ustr"
	"kernix/vfs"
)

// Open implements vfs.MountOps. path is already relative to the mount
// point (spec.md §4.7: "every path it receives is already relative to the
// mount point").
func (fs *FS) Open(path ustr.Ustr, flags int, mode int) (vfs.Fdops_i, defs.Err_t) {
	in, err := fs.resolve(path)
	if err != 0 {
		return nil, err
	}
	if in.IsDir() {
		return nil, -defs.EISDIR
	}
	if flags&(defs.O_WRONLY|defs.O_RDWR) != 0 {
		// ext2 write beyond best-effort metadata updates is out of scope.
		return nil, -defs.EPERM
	}
	return &fileFd{fs: fs, in: in}, 0
}

// Stat implements vfs.MountOps.
func (fs *FS) Stat(path ustr.Ustr, st *stat.Stat_t) defs.Err_t {
	in, err := fs.resolve(path)
	if err != 0 {
		return err
	}
	fs.fillStat(in, st)
	return 0
}

// Readlink implements vfs.MountOps.
func (fs *FS) Readlink(path ustr.Ustr) (ustr.Ustr, defs.Err_t) {
	in, err := fs.resolveNoFinalSymlink(path)
	if err != 0 {
		return nil, err
	}
	if !in.IsLnk() {
		return nil, -defs.EINVAL
	}
	return fs.readlinkTarget(in)
}

// parentPath returns the '/'-joined path of every component but the last.
func parentPath(parts []ustr.Ustr) ustr.Ustr {
	dirPath := ustr.Ustr{}
	for i := 0; i < len(parts)-1; i++ {
		dirPath = dirPath.Extend(parts[i])
	}
	if len(dirPath) == 0 {
		dirPath = ustr.MkUstrRoot()
	}
	return dirPath
}

// resolveNoFinalSymlink resolves path's parent normally but does not
// expand the final component if it is itself a symlink, since Readlink
// wants the link's target, not what it points to.
func (fs *FS) resolveNoFinalSymlink(path ustr.Ustr) (*Inode, defs.Err_t) {
	parts := path.Split()
	if len(parts) == 0 {
		return fs.readInode(rootInode)
	}
	dir, err := fs.resolve(parentPath(parts))
	if err != 0 {
		return nil, err
	}
	ino, err := fs.lookup(dir, parts[len(parts)-1])
	if err != 0 {
		return nil, err
	}
	return fs.readInode(ino)
}

// Unlink implements vfs.MountOps (spec.md §6: best-effort — removes the
// matching dirent but does not decrement link count or reclaim blocks,
// a documented gap this driver carries forward rather than half-implements).
func (fs *FS) Unlink(path ustr.Ustr) defs.Err_t {
	if fs.wdisk == nil {
		return -defs.EPERM
	}
	parts := path.Split()
	if len(parts) == 0 {
		return -defs.EINVAL
	}
	dir, err := fs.resolve(parentPath(parts))
	if err != 0 {
		return err
	}
	return fs.removeDirent(dir, parts[len(parts)-1])
}

// removeDirent zeroes the target dirent's inode field in place, the
// simplest on-disk representation of "removed" that a linear dirent scan
// already treats as absent (readDir/lookup both skip entries whose inode
// field is 0).
func (fs *FS) removeDirent(dir *Inode, name ustr.Ustr) defs.Err_t {
	bs := fs.sb.BlockSize()
	nblocks := dir.NumBlocksForSize(bs)
	buf := make([]uint8, bs)
	for b := 0; b < nblocks; b++ {
		phys, err := fs.blockAt(dir, b)
		if err != 0 {
			return err
		}
		if phys == 0 {
			continue
		}
		if err := fs.readBlock(phys, buf); err != 0 {
			return err
		}
		off := 0
		found := false
		for off+deNameOff <= bs {
			inum := r32(buf, off+deInode)
			recLen := int(r16(buf, off+deRecLen))
			if recLen < deNameOff {
				break
			}
			nameLen := int(buf[off+deNameLen])
			if inum != 0 && nameLen == len(name) {
				match := true
				for i := 0; i < nameLen; i++ {
					if buf[off+deNameOff+i] != name[i] {
						match = false
						break
					}
				}
				if match {
					w32(buf, off+deInode, 0)
					found = true
					break
				}
			}
			off += recLen
		}
		if found {
			diskOff := int64(phys) * int64(bs)
			if _, werr := fs.wdisk.WriteAt(buf, diskOff); werr != nil {
				return -defs.EINVAL
			}
			return 0
		}
	}
	return -defs.ENOENT
}

// Getdents implements vfs.MountOps: raw directory contents, decoded into
// backend-agnostic vfs.Dirent_t records for the VFS layer to serialize
// (spec.md §4.10: "getdents copies the raw directory blocks up for
// VFS-level serialization").
func (fs *FS) Getdents(path ustr.Ustr) ([]vfs.Dirent_t, defs.Err_t) {
	in, err := fs.resolve(path)
	if err != 0 {
		return nil, err
	}
	if !in.IsDir() {
		return nil, -defs.ENOTDIR
	}
	ents, err := fs.readDir(in)
	if err != 0 {
		return nil, err
	}
	out := make([]vfs.Dirent_t, len(ents))
	for i, e := range ents {
		out[i] = vfs.Dirent_t{Name: e.name, Ino: uint64(e.inode), Type: ftypeToDT(e.ftype)}
	}
	return out, 0
}

// ftypeToDT maps ext2's on-disk file_type byte to vfs's DT_ constants; ext2
// revisions without the filetype feature bit store 0 here, in which case
// the VFS layer falls back to stat-ing the entry itself.
func ftypeToDT(ft uint8) uint8 {
	switch ft {
	case 1:
		return vfs.DT_REG
	case 2:
		return vfs.DT_DIR
	case 7:
		return vfs.DT_LNK
	default:
		return vfs.DT_UNKNOWN
	}
}

// Chmod implements vfs.MountOps, looking the inode up by path before
// delegating to the inode-level update.
func (fs *FS) Chmod(path ustr.Ustr, mode int) defs.Err_t {
	in, err := fs.resolve(path)
	if err != 0 {
		return err
	}
	return fs.chmodInode(in, mode)
}
