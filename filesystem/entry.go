package filesystem

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind distinguishes the two entry variants
type Kind uint8

const (
	DocumentKind Kind = iota + 1
	DirectoryKind
)

func (k Kind) String() string {
	switch k {
	case DocumentKind:
		return "document"
	case DirectoryKind:
		return "directory"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// ParentToken is the reserved name that moves the working directory up one level.
const ParentToken = ".."

// EntryBaseSize is charged for every entry on top of its payload.
const EntryBaseSize = 40

// Entry is a named node of the namespace: a Document holding content or a
// Directory holding an ordered list of children. Entries own their children
// exclusively and keep no reference to their parent; upward navigation is
// tracked by the [Disk] cursor.
type Entry struct {
	name     string
	kind     Kind
	docType  string   // documents only
	content  string   // documents only
	children []*Entry // directories only, insertion order
}

// NewDocument returns a detached document entry.
func NewDocument(name, docType, content string) (*Entry, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Entry{name: name, kind: DocumentKind, docType: docType, content: content}, nil
}

// NewDirectory returns a detached, empty directory entry.
func NewDirectory(name string) (*Entry, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return newDir(name), nil
}

func newDir(name string) *Entry {
	return &Entry{name: name, kind: DirectoryKind, children: make([]*Entry, 0)}
}

// ValidateName reports whether name may be used for an entry.
// Names must be non-empty and may not be "." or "..", nor contain '/' or NUL.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case name == ParentToken || name == ".":
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// DocumentSize is the size charged for a document with the given content:
// the base size plus two units per character.
func DocumentSize(content string) int {
	return EntryBaseSize + 2*utf8.RuneCountInString(content)
}

func (e *Entry) Name() string {
	return e.name
}

func (e *Entry) Kind() Kind {
	return e.kind
}

// Type returns the document type tag; empty for directories.
func (e *Entry) Type() string {
	return e.docType
}

// Content returns the document payload; empty for directories.
func (e *Entry) Content() string {
	return e.content
}

func (e *Entry) IsDirectory() bool {
	return e.kind == DirectoryKind
}

func (e *Entry) IsDocument() bool {
	return e.kind == DocumentKind
}

// Size returns the entry's size. A directory's size includes every descendant.
func (e *Entry) Size() int {
	if e.kind == DocumentKind {
		return DocumentSize(e.content)
	}
	size := EntryBaseSize
	for _, child := range e.children {
		size += child.Size()
	}
	return size
}

// Children returns the direct children in insertion order. The returned
// slice is a copy; the entries are not.
func (e *Entry) Children() []*Entry {
	out := make([]*Entry, len(e.children))
	copy(out, e.children)
	return out
}

// Clone returns a structural deep copy of the entry and its subtree. The copy
// shares nothing with the original.
func (e *Entry) Clone() *Entry {
	c := &Entry{
		name:    e.name,
		kind:    e.kind,
		docType: e.docType,
		content: e.content,
	}
	if e.kind == DirectoryKind {
		c.children = make([]*Entry, len(e.children))
		for i, child := range e.children {
			c.children[i] = child.Clone()
		}
	}
	return c
}

// EntryInfo is a read-only value copy of an entry as returned to callers.
type EntryInfo struct {
	Name    string
	Kind    Kind
	Type    string
	Content string
	Size    int
	Depth   int    // 0 for direct children of the listed directory
	Path    string // relative to the listed directory, '/' separated
}

// Info returns a value copy of the entry's attributes.
func (e *Entry) Info() EntryInfo {
	return EntryInfo{
		Name:    e.name,
		Kind:    e.kind,
		Type:    e.docType,
		Content: e.content,
		Size:    e.Size(),
		Path:    e.name,
	}
}
