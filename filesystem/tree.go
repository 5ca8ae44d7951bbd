package filesystem

import "path"

// indexOf returns the position of the child named name, or -1.
func (e *Entry) indexOf(name string) int {
	for i, child := range e.children {
		if child.name == name {
			return i
		}
	}
	return -1
}

// AddChild links a detached entry as the last child of e.
func (e *Entry) AddChild(child *Entry) error {
	if !e.IsDirectory() {
		return opErr("add", e.name, ErrNotADirectory)
	}
	if err := ValidateName(child.name); err != nil {
		return opErr("add", child.name, err)
	}
	if e.indexOf(child.name) >= 0 {
		return opErr("add", child.name, ErrDuplicateName)
	}
	e.children = append(e.children, child)
	return nil
}

// CreateChild builds a new entry of the given kind and appends it to e.
// docType and content are ignored for directories.
func (e *Entry) CreateChild(name string, kind Kind, docType, content string) (*Entry, error) {
	var (
		child *Entry
		err   error
	)
	switch kind {
	case DocumentKind:
		child, err = NewDocument(name, docType, content)
	case DirectoryKind:
		child, err = NewDirectory(name)
	default:
		return nil, opErr("create", name, ErrInvalidName)
	}
	if err != nil {
		return nil, opErr("create", name, err)
	}
	if err := e.AddChild(child); err != nil {
		return nil, err
	}
	return child, nil
}

// DeleteChild unlinks the child named name and returns it. Deleting a
// directory takes its whole subtree with it; nothing left in e refers to any
// of the removed entries.
func (e *Entry) DeleteChild(name string) (*Entry, error) {
	i := e.indexOf(name)
	if i < 0 {
		return nil, opErr("delete", name, ErrNotFound)
	}
	child := e.children[i]
	e.children = append(e.children[:i], e.children[i+1:]...)
	return child, nil
}

// RenameChild changes the name of a direct child. Renaming to the current
// name succeeds without change.
func (e *Entry) RenameChild(oldName, newName string) error {
	i := e.indexOf(oldName)
	if i < 0 {
		return opErr("rename", oldName, ErrNotFound)
	}
	if oldName == newName {
		return nil
	}
	if err := ValidateName(newName); err != nil {
		return opErr("rename", newName, err)
	}
	if e.indexOf(newName) >= 0 {
		return opErr("rename", newName, ErrDuplicateName)
	}
	e.children[i].name = newName
	return nil
}

// FindFile resolves name among the direct children of e.
func (e *Entry) FindFile(name string) (*Entry, error) {
	if i := e.indexOf(name); i >= 0 {
		return e.children[i], nil
	}
	return nil, opErr("find", name, ErrNotFound)
}

// ListShallow returns the direct children in insertion order.
func (e *Entry) ListShallow() []*Entry {
	return e.Children()
}

// Listing is one row of a recursive listing.
type Listing struct {
	*Entry
	Depth int    // 0 for direct children
	Path  string // relative to the listed directory
}

// Info returns a value copy of the row.
func (l Listing) Info() EntryInfo {
	info := l.Entry.Info()
	info.Depth = l.Depth
	info.Path = l.Path
	return info
}

// ListRecursive walks the subtree below e in pre-order, children in stored
// order, and returns every entry it reaches.
func (e *Entry) ListRecursive() []Listing {
	out := make([]Listing, 0)
	var walk func(dir *Entry, prefix string, depth int)
	walk = func(dir *Entry, prefix string, depth int) {
		for _, child := range dir.children {
			p := path.Join(prefix, child.name)
			out = append(out, Listing{Entry: child, Depth: depth, Path: p})
			if child.IsDirectory() {
				walk(child, p, depth+1)
			}
		}
	}
	walk(e, "", 0)
	return out
}
