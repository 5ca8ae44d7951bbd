package server

import (
	"context"
	"os"
	"syscall"

	"github.com/brettbedarf/cvfs/filesystem"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

const (
	dirMode  = syscall.S_IFDIR | 0o555
	fileMode = syscall.S_IFREG | 0o444
	blkSize  = 4096
)

var (
	_ fs.InodeEmbedder = (*entryNode)(nil)
	_ fs.NodeGetattrer = (*entryNode)(nil)
	_ fs.NodeLookuper  = (*entryNode)(nil)
	_ fs.NodeReaddirer = (*entryNode)(nil)
	_ fs.NodeOpener    = (*entryNode)(nil)
	_ fs.NodeReader    = (*entryNode)(nil)
	_ fs.NodeStatfser  = (*entryNode)(nil)
)

// entryNode is the kernel's handle on a path of the disk. It holds no entry
// pointer; every request resolves the path against the live disk, since undo
// and redo replace the whole tree.
type entryNode struct {
	fs.Inode
	srv  *Server
	path []string // names from the root; nil for the root itself
}

// resolve walks n.path from the root of d.
func (n *entryNode) resolve(d *filesystem.Disk) (*filesystem.Entry, syscall.Errno) {
	e := d.Root()
	for _, name := range n.path {
		if !e.IsDirectory() {
			return nil, syscall.ENOTDIR
		}
		child, err := e.FindFile(name)
		if err != nil {
			return nil, syscall.ENOENT
		}
		e = child
	}
	return e, 0
}

func (n *entryNode) childPath(name string) []string {
	p := make([]string, len(n.path), len(n.path)+1)
	copy(p, n.path)
	return append(p, name)
}

func modeOf(e *filesystem.Entry) uint32 {
	if e.IsDirectory() {
		return dirMode
	}
	return fileMode
}

// fillAttr sets out from e. Documents report their content length in bytes;
// directories report their logical size on the disk.
func (n *entryNode) fillAttr(e *filesystem.Entry, p []string, out *fuse.Attr) {
	ts := uint64(n.srv.started.Unix())
	out.Ino = n.srv.inoFor(e.Kind(), p)
	out.Mode = modeOf(e)
	out.Nlink = 1
	if e.IsDirectory() {
		out.Nlink = 2
		out.Size = uint64(e.Size())
	} else {
		out.Size = uint64(len(e.Content()))
	}
	out.Blksize = blkSize
	out.Blocks = (out.Size + 511) / 512
	out.Atime, out.Mtime, out.Ctime = ts, ts, ts
	out.Owner = fuse.Owner{Uid: uint32(os.Getuid()), Gid: uint32(os.Getgid())}
}

func (n *entryNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	errno := syscall.Errno(0)
	n.srv.src.View(func(d *filesystem.Disk) {
		var e *filesystem.Entry
		if e, errno = n.resolve(d); errno == 0 {
			n.fillAttr(e, n.path, &out.Attr)
		}
	})
	return errno
}

// lookupChild resolves name below n and fills out without touching the
// kernel inode tree.
func (n *entryNode) lookupChild(name string, out *fuse.EntryOut) (*entryNode, fs.StableAttr, syscall.Errno) {
	child := &entryNode{srv: n.srv, path: n.childPath(name)}
	var stable fs.StableAttr
	errno := syscall.Errno(0)

	n.srv.src.View(func(d *filesystem.Disk) {
		dir, err := n.resolve(d)
		if err != 0 {
			errno = err
			return
		}
		if !dir.IsDirectory() {
			errno = syscall.ENOTDIR
			return
		}
		e, findErr := dir.FindFile(name)
		if findErr != nil {
			errno = syscall.ENOENT
			return
		}
		n.fillAttr(e, child.path, &out.Attr)
		stable = fs.StableAttr{Mode: out.Mode & syscall.S_IFMT, Ino: out.Ino}
	})
	return child, stable, errno
}

func (n *entryNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child, stable, errno := n.lookupChild(name, out)
	if errno != 0 {
		return nil, errno
	}
	return n.NewInode(ctx, child, stable), 0
}

func (n *entryNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	var entries []fuse.DirEntry
	errno := syscall.Errno(0)

	n.srv.src.View(func(d *filesystem.Disk) {
		dir, err := n.resolve(d)
		if err != 0 {
			errno = err
			return
		}
		if !dir.IsDirectory() {
			errno = syscall.ENOTDIR
			return
		}
		children := dir.Children()
		entries = make([]fuse.DirEntry, 0, len(children))
		for _, ch := range children {
			entries = append(entries, fuse.DirEntry{
				Name: ch.Name(),
				Mode: modeOf(ch) & syscall.S_IFMT,
				Ino:  n.srv.inoFor(ch.Kind(), n.childPath(ch.Name())),
			})
		}
	})
	if errno != 0 {
		return nil, errno
	}
	return fs.NewListDirStream(entries), 0
}

// Open allows read-only access to documents. Content may change under undo,
// so reads bypass the page cache.
func (n *entryNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0 {
		return nil, 0, syscall.EROFS
	}
	errno := syscall.Errno(0)
	n.srv.src.View(func(d *filesystem.Disk) {
		e, err := n.resolve(d)
		switch {
		case err != 0:
			errno = err
		case e.IsDirectory():
			errno = syscall.EISDIR
		}
	})
	if errno != 0 {
		return nil, 0, errno
	}
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *entryNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	var read int
	errno := syscall.Errno(0)

	n.srv.src.View(func(d *filesystem.Disk) {
		e, err := n.resolve(d)
		switch {
		case err != 0:
			errno = err
		case e.IsDirectory():
			errno = syscall.EISDIR
		default:
			content := e.Content()
			if off < int64(len(content)) {
				read = copy(dest, content[off:])
			}
		}
	})
	if errno != 0 {
		return nil, errno
	}
	return fuse.ReadResultData(dest[:read]), 0
}

// Statfs reports the disk's capacity accounting in one-unit blocks.
func (n *entryNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	n.srv.src.View(func(d *filesystem.Disk) {
		out.Bsize = 1
		out.Frsize = 1
		out.Blocks = uint64(d.Capacity())
		free := uint64(max(d.Free(), 0))
		out.Bfree = free
		out.Bavail = free
		out.NameLen = 255
	})
	return 0
}
