package filesystem

import (
	"fmt"

	"github.com/brettbedarf/cvfs/internal/util"
)

// Disk owns one namespace tree, its capacity and the working directory
// cursor. The cursor is an ancestor stack [root, ..., cwd] of references into
// the tree; it owns nothing.
type Disk struct {
	capacity int
	root     *Entry
	cwd      []*Entry
}

// NewDisk creates an empty disk whose working directory is the root.
func NewDisk(capacity int) (*Disk, error) {
	if capacity <= 0 {
		return nil, opErr("newDisk", "", fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity))
	}
	root := newDir("")
	return &Disk{capacity: capacity, root: root, cwd: []*Entry{root}}, nil
}

func (d *Disk) Capacity() int {
	return d.capacity
}

// Used returns the total size of every entry below the root.
func (d *Disk) Used() int {
	return d.root.Size() - EntryBaseSize
}

func (d *Disk) Free() int {
	return d.capacity - d.Used()
}

func (d *Disk) Root() *Entry {
	return d.root
}

// WorkingDir returns the directory the cursor points at.
func (d *Disk) WorkingDir() *Entry {
	return d.cwd[len(d.cwd)-1]
}

// AtRoot reports whether the cursor is at the root directory.
func (d *Disk) AtRoot() bool {
	return len(d.cwd) == 1
}

// WorkingPath returns the names from the root down to the working directory.
// The root itself yields an empty path.
func (d *Disk) WorkingPath() []string {
	names := make([]string, 0, len(d.cwd)-1)
	for _, dir := range d.cwd[1:] {
		names = append(names, dir.name)
	}
	return names
}

// SetWorkingPath moves the cursor to the directory reached by following names
// from the root. The cursor is unchanged on error.
func (d *Disk) SetWorkingPath(names []string) error {
	stack := []*Entry{d.root}
	cur := d.root
	for _, name := range names {
		next, err := cur.FindFile(name)
		if err != nil {
			return opErr("setWorkingPath", name, ErrNotFound)
		}
		if !next.IsDirectory() {
			return opErr("setWorkingPath", name, ErrNotADirectory)
		}
		stack = append(stack, next)
		cur = next
	}
	d.cwd = stack
	return nil
}

// reserve fails if an entry of size would not fit.
func (d *Disk) reserve(op, name string, size int) error {
	if free := d.Free(); size > free {
		return opErr(op, name, fmt.Errorf("%w: need %d, %d free", ErrCapacityExceeded, size, free))
	}
	return nil
}

// MakeDocument creates a document in the working directory.
func (d *Disk) MakeDocument(name, docType, content string) error {
	logger := util.GetLogger("Disk.MakeDocument")

	if err := d.reserve("newDoc", name, DocumentSize(content)); err != nil {
		return err
	}
	if _, err := d.WorkingDir().CreateChild(name, DocumentKind, docType, content); err != nil {
		return err
	}
	logger.Debug().Str("name", name).Str("type", docType).Int("used", d.Used()).Msg("Created document")
	return nil
}

// MakeDir creates an empty directory in the working directory.
func (d *Disk) MakeDir(name string) error {
	logger := util.GetLogger("Disk.MakeDir")

	if err := d.reserve("newDir", name, EntryBaseSize); err != nil {
		return err
	}
	if _, err := d.WorkingDir().CreateChild(name, DirectoryKind, "", ""); err != nil {
		return err
	}
	logger.Debug().Str("name", name).Int("used", d.Used()).Msg("Created directory")
	return nil
}

// DeleteFile removes an entry of the working directory, recursively for
// directories.
func (d *Disk) DeleteFile(name string) error {
	logger := util.GetLogger("Disk.DeleteFile")

	removed, err := d.WorkingDir().DeleteChild(name)
	if err != nil {
		return err
	}
	d.repairCursor()
	logger.Debug().Str("name", name).Int("freed", removed.Size()).Msg("Deleted entry")
	return nil
}

// repairCursor resets the cursor to the root if any directory on its path is
// no longer linked to its predecessor. DeleteFile only removes children of the
// working directory, which are never on the cursor path, so this is a
// safeguard for trees modified through [Disk.Root] rather than a path the
// public operations reach.
func (d *Disk) repairCursor() {
	for i := 1; i < len(d.cwd); i++ {
		parent, dir := d.cwd[i-1], d.cwd[i]
		if j := parent.indexOf(dir.name); j < 0 || parent.children[j] != dir {
			logger := util.GetLogger("Disk.repairCursor")
			logger.Debug().Strs("path", d.WorkingPath()).Msg("Working directory removed; resetting to root")
			d.cwd = d.cwd[:1]
			return
		}
	}
}

// Rename renames an entry of the working directory.
func (d *Disk) Rename(oldName, newName string) error {
	return d.WorkingDir().RenameChild(oldName, newName)
}

// ChangeDir moves the cursor into the named child directory, or to the parent
// for [ParentToken]. The cursor does not move on error.
func (d *Disk) ChangeDir(name string) error {
	if name == ParentToken {
		if d.AtRoot() {
			return opErr("changeDir", name, ErrAtRoot)
		}
		d.cwd = d.cwd[:len(d.cwd)-1]
		return nil
	}
	dir, err := d.WorkingDir().FindFile(name)
	if err != nil {
		return opErr("changeDir", name, ErrNotFound)
	}
	if !dir.IsDirectory() {
		return opErr("changeDir", name, ErrNotADirectory)
	}
	d.cwd = append(d.cwd, dir)
	return nil
}

// List returns the direct children of the working directory.
func (d *Disk) List() []*Entry {
	return d.WorkingDir().ListShallow()
}

// RList returns every entry below the working directory in pre-order.
func (d *Disk) RList() []Listing {
	return d.WorkingDir().ListRecursive()
}

// IsDocument reports whether the named entry of the working directory is a document.
func (d *Disk) IsDocument(name string) (bool, error) {
	e, err := d.WorkingDir().FindFile(name)
	if err != nil {
		return false, err
	}
	return e.IsDocument(), nil
}

// Clone returns a fully independent copy of the disk, cursor included.
func (d *Disk) Clone() *Disk {
	c := &Disk{capacity: d.capacity, root: d.root.Clone()}
	c.cwd = []*Entry{c.root}
	if err := c.SetWorkingPath(d.WorkingPath()); err != nil {
		// The copy mirrors d, so the path always resolves.
		panic(fmt.Sprintf("clone: cursor lost: %v", err))
	}
	return c
}
